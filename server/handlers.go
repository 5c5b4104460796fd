package server

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/sheet"
	"github.com/witanlabs/gridcmd/workbook"
)

// SessionInfo describes a session and, when requested, its contents.
type SessionInfo struct {
	ID       string          `json:"id"`
	Created  time.Time       `json:"created"`
	Revision int             `json:"revision"`
	Rows     int             `json:"rows"`
	Columns  int             `json:"columns"`
	Cells    [][]sheet.Value `json:"cells,omitempty"`
}

// ExecResponse is the reward report plus the session revision after the
// command ran.
type ExecResponse struct {
	reward.Report
	Revision int `json:"revision"`
}

func info(sess *session.Session, withCells bool) SessionInfo {
	out := SessionInfo{ID: sess.ID, Created: sess.Created.UTC(), Revision: sess.Revision()}
	sess.View(func(st *sheet.Store) {
		out.Rows, out.Columns = st.RowCount(), st.ColumnCount()
		if withCells {
			out.Cells = st.Rows()
		}
	})
	return out
}

func (s *Server) lookup(w http.ResponseWriter, id string) (*session.Session, bool) {
	sess, ok := s.reg.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("session '%s' not found", id))
	}
	return sess, ok
}

func (s *Server) options(r *http.Request) workbook.Options {
	opts := s.workbook
	if v := r.URL.Query().Get("sheet"); v != "" {
		opts.Sheet = v
	}
	return opts
}

// handleCreateSession starts a session, empty or from a multipart "file"
// upload.
func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	store := sheet.New()
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); mt == "multipart/form-data" {
		r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBytes)
		f, _, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidArg, "multipart field 'file' is required: "+err.Error())
			return
		}
		defer f.Close()
		store, err = workbook.Read(f, s.options(r))
		if err != nil {
			writeError(w, http.StatusBadRequest, CodeInvalidWorkbook, err.Error())
			return
		}
	}
	sess := s.reg.Create(store)
	writeJSON(w, http.StatusCreated, info(sess, false))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, info(sess, true))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.reg.Delete(id) {
		writeError(w, http.StatusNotFound, CodeNotFound, fmt.Sprintf("session '%s' not found", id))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleExec runs one command. A command that fails still answers 200: the
// failure is reported as reward -1, not as an HTTP error.
func (s *Server) handleExec(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCommandBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, CodeInvalidArg, "command body too large")
			return
		}
		writeError(w, http.StatusBadRequest, CodeInvalidArg, "reading command: "+err.Error())
		return
	}
	rep := sess.RunJSON(body)
	writeJSON(w, http.StatusOK, ExecResponse{Report: rep, Revision: sess.Revision()})
}

func (s *Server) handleDownload(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := workbook.Write(&buf, sess.Snapshot(), s.options(r)); err != nil {
		s.log.Error("writing workbook", zap.String("session", sess.ID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, CodeInternal, "writing workbook failed")
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.xlsx"`, sess.ID))
	w.Header().Set("X-Session-Revision", fmt.Sprint(sess.Revision()))
	_, _ = w.Write(buf.Bytes())
}
