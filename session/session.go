// Package session owns one store per caller and serializes dispatches
// against it.
package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/witanlabs/gridcmd/command"
	"github.com/witanlabs/gridcmd/reward"
	"github.com/witanlabs/gridcmd/sheet"
)

// Session is one store with its dispatcher. Dispatches run one at a time.
type Session struct {
	ID      string
	Created time.Time

	mu       sync.Mutex
	disp     *command.Dispatcher
	revision int
	lastUsed time.Time
	log      *zap.Logger
}

// New starts a session over store. A nil store starts empty.
func New(store *sheet.Store, log *zap.Logger) *Session {
	if store == nil {
		store = sheet.New()
	}
	if log == nil {
		log = zap.NewNop()
	}
	id := uuid.NewString()
	log = log.With(zap.String("session", id))
	now := time.Now()
	return &Session{
		ID:       id,
		Created:  now,
		disp:     command.NewDispatcher(store, command.WithLogger(log)),
		lastUsed: now,
		log:      log,
	}
}

// Run dispatches cmd and scores the outcome.
func (s *Session) Run(cmd command.Command) reward.Report {
	rep, _ := s.Exec(cmd)
	return rep
}

// RunJSON parses and dispatches one JSON command.
func (s *Session) RunJSON(data []byte) reward.Report {
	cmd, err := command.Parse(data)
	if err != nil {
		return reward.Evaluate(command.Outcome{Failure: command.FailureOf(err)})
	}
	return s.Run(cmd)
}

// Exec is Run that also returns the raw outcome.
func (s *Session) Exec(cmd command.Command) (reward.Report, command.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := s.disp.Execute(cmd)
	if out.Mutated() {
		s.revision++
	}
	s.lastUsed = time.Now()
	rep := reward.Evaluate(out)
	s.log.Debug("command", zap.String("function", out.Function), zap.Int("reward", rep.Reward), zap.Int("revision", s.revision))
	return rep, out
}

// View calls fn with the store while holding the session lock. fn must not
// retain the store.
func (s *Session) View(fn func(*sheet.Store)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.disp.Store())
}

// Snapshot returns an independent copy of the current store.
func (s *Session) Snapshot() *sheet.Store {
	var c *sheet.Store
	s.View(func(st *sheet.Store) { c = st.Clone() })
	return c
}

// Revision counts successful mutating commands.
func (s *Session) Revision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

// LastUsed returns when the session last ran a command.
func (s *Session) LastUsed() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastUsed
}
