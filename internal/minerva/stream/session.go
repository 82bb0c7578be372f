package stream

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/msto63/minerva/internal/minerva/telemetry"
)

// Session is one listing: a fetch loop and the consumer end of its bridge
type Session struct {
	id      string
	started time.Time
	config  Config
	bridge  *Bridge
	done    chan struct{}
	outcome Outcome

	mu          sync.Mutex
	cancel      context.CancelFunc
	detached    bool
	interrupted error
}

// NewSession creates a session that has not started fetching yet
func NewSession(cfg Config) *Session {
	return &Session{
		id:      uuid.NewString(),
		started: time.Now(),
		config:  cfg,
		bridge:  NewBridge(cfg.ChannelCapacity),
		done:    make(chan struct{}),
	}
}

// Start launches the fetch loop in its own goroutine and returns at once.
// The loop runs until the listing ends, it fails, the consumer detaches or
// ctx is done. onExit, if set, runs in the loop goroutine with the outcome
// before Done is closed.
func (s *Session) Start(ctx context.Context, acq Acquirer, sc Scanner, metrics *telemetry.Collector, onExit func(*Session, Outcome)) {
	ctx, cancel := context.WithCancel(ctx)

	s.mu.Lock()
	s.cancel = cancel
	if s.detached {
		cancel()
	}
	s.mu.Unlock()

	loop := NewFetchLoop(acq, sc, s.bridge, s.config, metrics)
	go func() {
		defer close(s.done)
		defer cancel()

		s.outcome = loop.Run(ctx)
		if onExit != nil {
			onExit(s, s.outcome)
		}
	}()
}

// Start creates a session and launches its fetch loop
func Start(ctx context.Context, acq Acquirer, sc Scanner, cfg Config, metrics *telemetry.Collector, onExit func(*Session, Outcome)) *Session {
	s := NewSession(cfg)
	s.Start(ctx, acq, sc, metrics, onExit)
	return s
}

// ID returns the session id
func (s *Session) ID() string {
	return s.id
}

// Started returns when the session was created
func (s *Session) Started() time.Time {
	return s.started
}

// Recv returns the next page, io.EOF at the end, or the terminal error.
// After Interrupt, the pages already queued are returned and then the
// interrupt error, unless the listing had completed.
func (s *Session) Recv(ctx context.Context) (Page, error) {
	page, err := s.bridge.Recv(ctx)
	if err != io.EOF {
		return page, err
	}

	s.mu.Lock()
	interrupted := s.interrupted
	s.mu.Unlock()
	if interrupted == nil {
		return nil, io.EOF
	}

	// The bridge is closed, so the loop is on its way out.
	select {
	case <-s.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if s.outcome.State == StateDone {
		return nil, io.EOF
	}
	return nil, interrupted
}

// Interrupt stops the loop on behalf of the server. The consumer still
// drains queued pages and then receives err instead of io.EOF.
func (s *Session) Interrupt(err error) {
	s.mu.Lock()
	if s.interrupted == nil {
		s.interrupted = err
	}
	s.mu.Unlock()

	s.Detach()
}

// Detach abandons the stream. The loop stops before its next store call.
func (s *Session) Detach() {
	s.bridge.Detach()

	s.mu.Lock()
	s.detached = true
	if s.cancel != nil {
		s.cancel()
	}
	s.mu.Unlock()
}

// Done is closed when the loop has exited
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome waits for the loop to exit and returns its result
func (s *Session) Outcome() Outcome {
	<-s.done
	return s.outcome
}
