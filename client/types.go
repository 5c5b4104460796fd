package client

import (
	"time"

	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/sheet"
)

// ErrorResponse is the API error envelope
type ErrorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// SessionInfo is returned by POST /v0/sessions and GET /v0/sessions/:id.
// Cells is only filled by the latter.
type SessionInfo struct {
	ID       string          `json:"id"`
	Created  time.Time       `json:"created"`
	Revision int             `json:"revision"`
	Rows     int             `json:"rows"`
	Columns  int             `json:"columns"`
	Cells    [][]sheet.Value `json:"cells,omitempty"`
}

// ExecResponse is the result of one command against a session.
type ExecResponse struct {
	reward.Report
	Revision int `json:"revision"`
}
