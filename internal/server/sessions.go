package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/quote-cli/internal/pipeline"
)

// Sessions holds the live runs of the HTTP boundary. Runs idle for longer
// than the TTL are discarded.
type Sessions struct {
	mu   sync.Mutex
	runs map[string]*pipeline.Run
	ttl  time.Duration
	now  func() time.Time
}

// NewSessions creates a session table. A zero ttl keeps runs until deleted.
func NewSessions(ttl time.Duration) *Sessions {
	return &Sessions{
		runs: make(map[string]*pipeline.Run),
		ttl:  ttl,
		now:  time.Now,
	}
}

// Put stores run under its id.
func (s *Sessions) Put(run *pipeline.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
}

// Get returns the live run with the given id.
func (s *Sessions) Get(id string) (*pipeline.Run, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return nil, false
	}
	if run.Discarded() || s.expired(run) {
		delete(s.runs, id)
		run.Discard()
		return nil, false
	}
	return run, true
}

// Delete discards and forgets a run. It reports whether the run existed.
func (s *Sessions) Delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	run, ok := s.runs[id]
	if !ok {
		return false
	}
	delete(s.runs, id)
	run.Discard()
	return true
}

// Len returns the number of stored runs.
func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Sweep discards every expired run and returns how many were removed.
func (s *Sessions) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, run := range s.runs {
		if run.Discarded() || s.expired(run) {
			delete(s.runs, id)
			run.Discard()
			n++
		}
	}
	return n
}

// Start sweeps expired runs every interval until ctx is done.
func (s *Sessions) Start(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.Sweep(); n > 0 {
					zap.L().Info("expired runs discarded",
						zap.String("component", "server"),
						zap.Int("count", n),
					)
				}
			}
		}
	}()
}

func (s *Sessions) expired(run *pipeline.Run) bool {
	return s.ttl > 0 && s.now().Sub(run.Touched()) > s.ttl
}
