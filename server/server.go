// Package server exposes sessions over HTTP and a websocket playground.
package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/session"
	"github.com/witanlabs/gridcmd/workbook"
)

const (
	maxCommandBytes  = 1 << 20
	maxWorkbookBytes = 32 << 20
)

// Error codes carried in the error envelope.
const (
	CodeNotFound        = "NOT_FOUND"
	CodeInvalidArg      = "INVALID_ARG"
	CodeInvalidWorkbook = "INVALID_WORKBOOK"
	CodeUnauthorized    = "UNAUTHORIZED"
	CodeInternal        = "INTERNAL"
)

// Server routes requests to sessions held in a registry.
type Server struct {
	reg      *session.Registry
	log      *zap.Logger
	token    string
	workbook workbook.Options
	router   chi.Router
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the request and lifecycle logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// WithToken requires "Authorization: Bearer <token>" on /v0 routes.
func WithToken(token string) Option {
	return func(s *Server) { s.token = token }
}

// WithWorkbookOptions selects the worksheet used for uploads and downloads.
func WithWorkbookOptions(o workbook.Options) Option {
	return func(s *Server) { s.workbook = o }
}

// New builds a server over reg.
func New(reg *session.Registry, opts ...Option) *Server {
	s := &Server{reg: reg, log: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "sessions": s.reg.Len()})
	})
	r.Route("/v0", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
		r.Post("/sessions/{id}/exec", s.handleExec)
		r.Get("/sessions/{id}/file", s.handleDownload)
		r.Get("/ws", s.handlePlayground)
	})
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// ExpireIdle drops sessions idle for longer than ttl, checking every
// interval until ctx is done.
func (s *Server) ExpireIdle(ctx context.Context, ttl, interval time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case now := <-t.C:
			s.reg.Expire(now.Add(-ttl))
		}
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// authenticate accepts the token as a bearer header or, for browser
// websocket clients that cannot set headers, a "token" query parameter.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.token == "" {
			next.ServeHTTP(w, r)
			return
		}
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok {
			got = r.URL.Query().Get("token")
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(s.token)) != 1 {
			writeError(w, http.StatusUnauthorized, CodeUnauthorized, "missing or invalid bearer token")
			return
		}
		next.ServeHTTP(w, r)
	})
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}
