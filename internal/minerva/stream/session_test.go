package stream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/msto63/minerva/internal/minerva/pool"
)

func TestSessionStreamsAndExits(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	s := createSeededStore(t, p, 120)

	exited := make(chan Outcome, 1)
	sess := Start(context.Background(), p, s, DefaultConfig(), nil, func(_ *Session, out Outcome) {
		exited <- out
	})
	if sess.ID() == "" {
		t.Error("ID() is empty")
	}

	total := 0
	for {
		pg, err := sess.Recv(context.Background())
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Recv() error = %v", err)
		}
		total += len(pg)
	}
	if total != 119 {
		t.Errorf("received %d customers, want 119", total)
	}

	select {
	case out := <-exited:
		if out.State != StateDone {
			t.Errorf("outcome state = %s, want done", out.State)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("onExit not called")
	}
	if sess.Outcome().Pages != 2 {
		t.Errorf("Outcome().Pages = %d, want 2", sess.Outcome().Pages)
	}
}

func TestSessionDetachStopsLoop(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &endlessScanner{}

	sess := Start(context.Background(), p, sc, Config{ChannelCapacity: 2}, nil, nil)

	if _, err := sess.Recv(context.Background()); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}
	sess.Detach()

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running after Detach()")
	}
	if got := sess.Outcome(); got.Reason != ReasonConsumerGone || got.Label() != "consumer_gone" {
		t.Errorf("Outcome() = %+v, want consumer_gone", got)
	}
}

func TestSessionParentCanceled(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &endlessScanner{}

	ctx, cancel := context.WithCancel(context.Background())
	sess := Start(ctx, p, sc, Config{ChannelCapacity: 1}, nil, nil)
	cancel()

	select {
	case <-sess.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("loop still running after parent cancel")
	}
	if got := sess.Outcome().State; got != StateAborted {
		t.Errorf("Outcome().State = %s, want aborted", got)
	}
}

func TestSessionDetachBeforeStart(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &endlessScanner{}

	sess := NewSession(DefaultConfig())
	sess.Detach()
	sess.Start(context.Background(), p, sc, nil, nil)

	if got := sess.Outcome().Reason; got != ReasonConsumerGone {
		t.Errorf("Outcome().Reason = %s, want consumer_gone", got)
	}
	if got := sc.calls.Load(); got != 0 {
		t.Errorf("scanner calls = %d, want 0", got)
	}
}

func TestSessionInterruptEndsWithError(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &endlessScanner{}

	sess := Start(context.Background(), p, sc, Config{ChannelCapacity: 2}, nil, nil)
	if _, err := sess.Recv(context.Background()); err != nil {
		t.Fatalf("Recv() error = %v", err)
	}

	shutdown := errors.New("shutting down")
	sess.Interrupt(shutdown)
	<-sess.Done()

	var err error
	for err == nil {
		_, err = sess.Recv(context.Background())
	}
	if !errors.Is(err, shutdown) {
		t.Errorf("final Recv() error = %v, want the interrupt error", err)
	}
	if got := sess.Outcome().Reason; got != ReasonConsumerGone {
		t.Errorf("Outcome().Reason = %s, want consumer_gone", got)
	}
}

func TestSessionInterruptAfterDone(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &fakeScanner{pages: []Page{pageOf(2, 3)}}

	sess := Start(context.Background(), p, sc, Config{ChannelCapacity: 4}, nil, nil)
	<-sess.Done()
	sess.Interrupt(errors.New("shutting down"))

	if pg, err := sess.Recv(context.Background()); err != nil || len(pg) != 2 {
		t.Fatalf("Recv() = %v, %v", pg, err)
	}
	if _, err := sess.Recv(context.Background()); err != io.EOF {
		t.Errorf("Recv() after last page error = %v, want io.EOF", err)
	}
}
