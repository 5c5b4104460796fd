package server

import (
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/session"
)

// handlePlayground serves one JSON command per text message and replies with
// one reward report. Without ?session= the connection gets its own empty
// session, which ends with the connection. With it, the connection drives an
// existing session and leaves it in place.
func (s *Server) handlePlayground(w http.ResponseWriter, r *http.Request) {
	var sess *session.Session
	if id := r.URL.Query().Get("session"); id != "" {
		var ok bool
		if sess, ok = s.lookup(w, id); !ok {
			return
		}
	}

	c, err := websocket.Accept(w, r, nil)
	if err != nil {
		s.log.Warn("websocket accept", zap.Error(err))
		return
	}
	defer c.CloseNow()
	c.SetReadLimit(maxCommandBytes)

	if sess == nil {
		sess = s.reg.Create(nil)
		defer s.reg.Delete(sess.ID)
	}
	log := s.log.With(zap.String("session", sess.ID))

	ctx := r.Context()
	for {
		typ, data, err := c.Read(ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status != websocket.StatusNormalClosure && status != websocket.StatusGoingAway {
				log.Debug("websocket closed", zap.Error(err))
			}
			return
		}
		if typ != websocket.MessageText {
			_ = c.Close(websocket.StatusUnsupportedData, "commands must be text messages")
			return
		}
		rep := sess.RunJSON(data)
		if err := wsjson.Write(ctx, c, ExecResponse{Report: rep, Revision: sess.Revision()}); err != nil {
			if !errors.Is(err, ctx.Err()) {
				log.Debug("websocket write", zap.Error(err))
			}
			return
		}
	}
}
