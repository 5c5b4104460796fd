package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// Playground is a websocket connection driving one server session.
// Commands are answered in order, so a Playground must not be shared between
// goroutines.
type Playground struct {
	conn *websocket.Conn
}

// DialPlayground opens GET /v0/ws. An empty sessionID asks the server for a
// fresh session that lives as long as the connection.
func (c *Client) DialPlayground(ctx context.Context, sessionID string) (*Playground, error) {
	u, err := url.Parse(c.BaseURL + "/v0/ws")
	if err != nil {
		return nil, fmt.Errorf("building URL: %w", err)
	}
	if sessionID != "" {
		u.RawQuery = url.Values{"session": {sessionID}}.Encode()
	}
	switch strings.ToLower(u.Scheme) {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}

	h := http.Header{}
	h.Set("User-Agent", c.UserAgent)
	if c.APIKey != "" {
		h.Set("Authorization", "Bearer "+c.APIKey)
	}
	conn, resp, err := websocket.Dial(ctx, u.String(), &websocket.DialOptions{
		HTTPClient: c.HTTPClient,
		HTTPHeader: h,
	})
	if err != nil {
		if resp != nil && resp.StatusCode >= 400 {
			// The dialer keeps the first part of a rejected handshake's body.
			var body []byte
			if resp.Body != nil {
				body, _ = io.ReadAll(resp.Body)
			}
			return nil, parseAPIError(resp.StatusCode, body, resp.Header.Get("Retry-After"))
		}
		return nil, fmt.Errorf("dialing playground: %w", err)
	}
	return &Playground{conn: conn}, nil
}

// Send runs one JSON command and waits for its report.
func (p *Playground) Send(ctx context.Context, cmd []byte) (*ExecResponse, error) {
	if err := p.conn.Write(ctx, websocket.MessageText, cmd); err != nil {
		return nil, fmt.Errorf("sending command: %w", err)
	}
	var out ExecResponse
	if err := wsjson.Read(ctx, p.conn, &out); err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	return &out, nil
}

// Close ends the connection. A fresh session ends with it; an attached one
// stays.
func (p *Playground) Close() error {
	return p.conn.Close(websocket.StatusNormalClosure, "")
}
