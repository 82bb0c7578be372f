package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/msto63/minerva/internal/minerva/pool"
	"github.com/msto63/minerva/internal/minerva/store"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/msto63/minerva/pkg/core/logging"
)

func createTestPool(t *testing.T, cfg pool.Config) *pool.Pool {
	t.Helper()

	dsn := store.SQLite.DataSource(filepath.Join(t.TempDir(), "stream.db"))
	p, err := pool.Open(store.SQLite.Driver, dsn, cfg)
	if err != nil {
		t.Fatalf("pool.Open() error = %v", err)
	}
	t.Cleanup(func() { p.Close() })
	return p
}

func createSeededStore(t *testing.T, p *pool.Pool, n int) *store.Store {
	t.Helper()
	ctx := context.Background()

	s := store.New(store.SQLite, store.DefaultConfig())
	if err := s.EnsureSchema(ctx, p.DB()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	for i := 0; i < n; i++ {
		if _, err := s.Insert(ctx, p.DB(), store.NewCustomerFrom("Ciclano da Silva", false, "777.777.777-77")); err != nil {
			t.Fatalf("Insert() error = %v", err)
		}
	}
	return s
}

// fakeScanner serves pages from a fixed list and records every call
type fakeScanner struct {
	mu     sync.Mutex
	pages  []Page
	failAt int
	err    error
	block  bool
	calls  atomic.Int32
	seen   []int
}

func (f *fakeScanner) ScanPage(ctx context.Context, _ store.Querier, page int) ([]store.Customer, error) {
	f.calls.Add(1)
	f.mu.Lock()
	f.seen = append(f.seen, page)
	f.mu.Unlock()

	if f.block {
		<-ctx.Done()
		return nil, mdwerrors.Wrap(ctx.Err(), "query failed").WithCode(mdwerrors.CodeTimeout)
	}
	if f.err != nil && page == f.failAt {
		return nil, f.err
	}
	if page < len(f.pages) {
		return f.pages[page], nil
	}
	return nil, nil
}

// endlessScanner returns a full page for every index
type endlessScanner struct {
	calls atomic.Int32
}

func (e *endlessScanner) ScanPage(_ context.Context, _ store.Querier, page int) ([]store.Customer, error) {
	e.calls.Add(1)
	return pageOf(int32(page)), nil
}

type failingAcquirer struct {
	err error
}

func (f failingAcquirer) Acquire(context.Context) (*pool.Lease, error) {
	return nil, f.err
}

func drain(t *testing.T, b *Bridge) ([]Page, error) {
	t.Helper()

	var pages []Page
	for {
		p, err := b.Recv(context.Background())
		if err == io.EOF {
			return pages, nil
		}
		if err != nil {
			return pages, err
		}
		pages = append(pages, p)
	}
}

func TestStateString(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateFetching, "fetching"},
		{StateEmitting, "emitting"},
		{StateDone, "done"},
		{StateAborted, "aborted"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestFetchLoopListsAllPages(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	s := createSeededStore(t, p, 250)

	b := NewBridge(DefaultChannelCapacity)
	loop := NewFetchLoop(p, s, b, DefaultConfig(), nil)

	out := loop.Run(context.Background())
	if out.State != StateDone {
		t.Fatalf("Run() state = %s (%v), want done", out.State, out.Err)
	}
	if out.Pages != 3 || out.Rows != 249 {
		t.Errorf("Run() = %d pages / %d rows, want 3 / 249", out.Pages, out.Rows)
	}

	pages, err := drain(t, b)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}
	wantSizes := []int{100, 100, 49}
	if len(pages) != len(wantSizes) {
		t.Fatalf("received %d pages, want %d", len(pages), len(wantSizes))
	}
	var last int32
	for i, pg := range pages {
		if len(pg) != wantSizes[i] {
			t.Errorf("page %d size = %d, want %d", i, len(pg), wantSizes[i])
		}
		for _, c := range pg {
			if c.ID <= last {
				t.Fatalf("id %d after %d, want strictly ascending", c.ID, last)
			}
			last = c.ID
		}
	}

	if got := p.Stats().InUse; got != 0 {
		t.Errorf("leases in use after Run() = %d, want 0", got)
	}
}

func TestFetchLoopEmptyStore(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	s := createSeededStore(t, p, 0)

	b := NewBridge(4)
	out := NewFetchLoop(p, s, b, DefaultConfig(), nil).Run(context.Background())

	if out.State != StateDone || out.Pages != 0 {
		t.Errorf("Run() = %+v, want done with 0 pages", out)
	}
	if _, err := b.Recv(context.Background()); err != io.EOF {
		t.Errorf("Recv() error = %v, want io.EOF", err)
	}
}

func TestFetchLoopFetchesEachPageOnce(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &fakeScanner{pages: []Page{pageOf(2, 3), pageOf(4, 5), pageOf(6)}}

	b := NewBridge(8)
	out := NewFetchLoop(p, sc, b, DefaultConfig(), nil).Run(context.Background())
	if out.State != StateDone {
		t.Fatalf("Run() state = %s, want done", out.State)
	}

	want := []int{0, 1, 2, 3}
	if len(sc.seen) != len(want) {
		t.Fatalf("scanned pages %v, want %v", sc.seen, want)
	}
	for i := range want {
		if sc.seen[i] != want[i] {
			t.Errorf("scanned pages %v, want %v", sc.seen, want)
			break
		}
	}
}

func TestFetchLoopLogsEachPage(t *testing.T) {
	var buf bytes.Buffer
	logging.Configure("debug", "json", &buf)
	t.Cleanup(func() { logging.Configure("info", "json", os.Stdout) })

	p := createTestPool(t, pool.DefaultConfig())
	sc := &fakeScanner{pages: []Page{pageOf(2, 3), pageOf(4)}}

	out := NewFetchLoop(p, sc, NewBridge(8), DefaultConfig(), nil).Run(context.Background())
	if out.State != StateDone {
		t.Fatalf("Run() state = %s, want done", out.State)
	}

	var sent []int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry struct {
			Msg       string `json:"msg"`
			Page      int    `json:"page"`
			Customers int    `json:"customers"`
		}
		if json.Unmarshal([]byte(line), &entry) == nil && entry.Msg == "List page sent" {
			sent = append(sent, entry.Customers)
		}
	}
	if len(sent) != 2 || sent[0] != 2 || sent[1] != 1 {
		t.Errorf("page log entries = %v, want [2 1]", sent)
	}
}

func TestFetchLoopStoreError(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	storeErr := mdwerrors.New("connection reset").WithCode(mdwerrors.CodeConnectionLost)
	sc := &fakeScanner{pages: []Page{pageOf(2), pageOf(3)}, failAt: 1, err: storeErr}

	b := NewBridge(8)
	out := NewFetchLoop(p, sc, b, DefaultConfig(), nil).Run(context.Background())

	if out.State != StateAborted || out.Reason != ReasonStore {
		t.Fatalf("Run() = %s/%s, want aborted/store_error", out.State, out.Reason)
	}
	if sc.calls.Load() != 2 {
		t.Errorf("scanner calls = %d, want 2 (no retry)", sc.calls.Load())
	}

	pages, err := drain(t, b)
	if len(pages) != 1 {
		t.Errorf("received %d pages before the error, want 1", len(pages))
	}
	if !mdwerrors.HasCode(err, mdwerrors.CodeConnectionLost) {
		t.Errorf("terminal error = %v, want CONNECTION_LOST", err)
	}
}

func TestFetchLoopPoolError(t *testing.T) {
	poolErr := mdwerrors.New("no connection available").WithCode(mdwerrors.CodePoolExhausted)
	sc := &fakeScanner{pages: []Page{pageOf(2)}}

	b := NewBridge(8)
	out := NewFetchLoop(failingAcquirer{err: poolErr}, sc, b, DefaultConfig(), nil).Run(context.Background())

	if out.State != StateAborted || out.Reason != ReasonPool {
		t.Fatalf("Run() = %s/%s, want aborted/pool_error", out.State, out.Reason)
	}
	if sc.calls.Load() != 0 {
		t.Errorf("scanner calls = %d, want 0", sc.calls.Load())
	}
	if _, err := drain(t, b); !mdwerrors.Is(err, mdwerrors.ErrPoolExhausted) {
		t.Errorf("terminal error = %v, want POOL_EXHAUSTED", err)
	}
}

func TestFetchLoopPageTimeout(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &fakeScanner{block: true}

	b := NewBridge(8)
	cfg := Config{ChannelCapacity: 8, PageTimeout: 20 * time.Millisecond}
	out := NewFetchLoop(p, sc, b, cfg, nil).Run(context.Background())

	if out.Reason != ReasonStore {
		t.Fatalf("Run() reason = %s, want store_error", out.Reason)
	}
	if _, err := drain(t, b); !mdwerrors.HasCode(err, mdwerrors.CodeTimeout) {
		t.Errorf("terminal error = %v, want TIMEOUT", err)
	}
	if got := p.Stats().InUse; got != 0 {
		t.Errorf("leases in use = %d, want 0", got)
	}
}

func TestFetchLoopConsumerGoneBeforeStart(t *testing.T) {
	p := createTestPool(t, pool.DefaultConfig())
	sc := &endlessScanner{}

	b := NewBridge(8)
	b.Detach()

	out := NewFetchLoop(p, sc, b, DefaultConfig(), nil).Run(context.Background())
	if out.Reason != ReasonConsumerGone {
		t.Fatalf("Run() reason = %s, want consumer_gone", out.Reason)
	}
	if !errors.Is(out.Err, ErrConsumerGone) {
		t.Errorf("Run() err = %v, want ErrConsumerGone", out.Err)
	}
	if sc.calls.Load() != 0 {
		t.Errorf("scanner calls = %d, want 0", sc.calls.Load())
	}
}

func TestFetchLoopReleasesLeaseBeforeHandOff(t *testing.T) {
	p := createTestPool(t, pool.Config{MaxConns: 1})
	sc := &endlessScanner{}

	// capacity 1 and no reader: the loop blocks handing off the second page
	b := NewBridge(1)
	loop := NewFetchLoop(p, sc, b, DefaultConfig(), nil)

	result := make(chan Outcome, 1)
	go func() {
		result <- loop.Run(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for sc.calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	lease, err := p.Acquire(ctx)
	if err != nil {
		t.Fatalf("Acquire() while loop is blocked on hand-off error = %v", err)
	}
	lease.Release()

	callsAtDetach := sc.calls.Load()
	b.Detach()

	out := <-result
	if out.Reason != ReasonConsumerGone {
		t.Errorf("Run() reason = %s, want consumer_gone", out.Reason)
	}
	if got := sc.calls.Load(); got != callsAtDetach {
		t.Errorf("scanner calls after detach = %d, want %d", got, callsAtDetach)
	}
}
