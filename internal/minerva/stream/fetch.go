package stream

import (
	"context"
	"errors"
	"time"

	"github.com/msto63/minerva/internal/minerva/pool"
	"github.com/msto63/minerva/internal/minerva/store"
	"github.com/msto63/minerva/internal/minerva/telemetry"
	"github.com/msto63/minerva/pkg/core/logging"
)

// DefaultPageTimeout bounds a single page scan
const DefaultPageTimeout = 30 * time.Second

// ErrConsumerGone ends a loop whose consumer detached. It is never sent to
// the consumer.
var ErrConsumerGone = errors.New("stream consumer gone")

// Acquirer hands out connection leases
type Acquirer interface {
	Acquire(ctx context.Context) (*pool.Lease, error)
}

// Scanner reads one page of customers
type Scanner interface {
	ScanPage(ctx context.Context, q store.Querier, page int) ([]store.Customer, error)
}

// State is a fetch loop state
type State int

const (
	StateFetching State = iota
	StateEmitting
	StateDone
	StateAborted
)

// String returns the state name
func (s State) String() string {
	switch s {
	case StateFetching:
		return "fetching"
	case StateEmitting:
		return "emitting"
	case StateDone:
		return "done"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Reason says why a loop was aborted
type Reason int

const (
	ReasonNone Reason = iota
	ReasonPool
	ReasonStore
	ReasonConsumerGone
)

// String returns the reason name
func (r Reason) String() string {
	switch r {
	case ReasonNone:
		return "none"
	case ReasonPool:
		return "pool_error"
	case ReasonStore:
		return "store_error"
	case ReasonConsumerGone:
		return "consumer_gone"
	default:
		return "unknown"
	}
}

// Outcome is the terminal result of a fetch loop
type Outcome struct {
	State  State
	Reason Reason
	Err    error
	Pages  int
	Rows   int
}

// Label returns a short outcome name for metrics and logs
func (o Outcome) Label() string {
	if o.State == StateDone {
		return StateDone.String()
	}
	return o.Reason.String()
}

// Config holds fetch loop configuration
type Config struct {
	// ChannelCapacity is the bridge buffer size in pages
	ChannelCapacity int

	// PageTimeout bounds each page scan. Zero disables the deadline.
	PageTimeout time.Duration
}

// DefaultConfig returns the default fetch loop configuration
func DefaultConfig() Config {
	return Config{
		ChannelCapacity: DefaultChannelCapacity,
		PageTimeout:     DefaultPageTimeout,
	}
}

// FetchLoop walks the listing page by page:
//
//	Fetching(n) -> Emitting(page) -> Fetching(n+1)
//	Fetching(n) -> Done             on an empty page
//	any         -> Aborted(reason)  on pool, store or consumer failure
//
// Each page index is fetched at most once and nothing is retried. The lease
// is held for the scan only and released before the page is handed off.
type FetchLoop struct {
	acquirer Acquirer
	scanner  Scanner
	bridge   *Bridge
	config   Config
	metrics  *telemetry.Collector
	logger   *logging.Logger
}

// NewFetchLoop creates a loop feeding bridge
func NewFetchLoop(acq Acquirer, sc Scanner, bridge *Bridge, cfg Config, metrics *telemetry.Collector) *FetchLoop {
	return &FetchLoop{
		acquirer: acq,
		scanner:  sc,
		bridge:   bridge,
		config:   cfg,
		metrics:  metrics,
		logger:   logging.New("fetch"),
	}
}

// Run drives the loop to a terminal state. The bridge is closed on return.
func (f *FetchLoop) Run(ctx context.Context) Outcome {
	var (
		out     Outcome
		page    int
		current Page
	)
	state := StateFetching

	for {
		switch state {
		case StateFetching:
			rows, reason, err := f.fetch(ctx, page)
			if err != nil {
				return f.abort(out, reason, err)
			}
			if len(rows) == 0 {
				f.bridge.Close()
				out.State = StateDone
				return out
			}
			current = rows
			state = StateEmitting

		case StateEmitting:
			if err := f.bridge.Send(ctx, current); err != nil {
				return f.abort(out, ReasonConsumerGone, ErrConsumerGone)
			}
			f.metrics.PageStreamed(len(current))
			f.logger.Debug("List page sent", "page", page, "customers", len(current))
			out.Pages++
			out.Rows += len(current)
			current = nil
			page++
			state = StateFetching
		}
	}
}

// fetch scans one page on a fresh lease
func (f *FetchLoop) fetch(ctx context.Context, page int) (Page, Reason, error) {
	if f.gone(ctx) {
		return nil, ReasonConsumerGone, ErrConsumerGone
	}

	lease, err := f.acquirer.Acquire(ctx)
	if err != nil {
		if f.gone(ctx) {
			return nil, ReasonConsumerGone, ErrConsumerGone
		}
		return nil, ReasonPool, err
	}

	scanCtx := ctx
	if f.config.PageTimeout > 0 {
		var cancel context.CancelFunc
		scanCtx, cancel = context.WithTimeout(ctx, f.config.PageTimeout)
		defer cancel()
	}

	rows, err := f.scanner.ScanPage(scanCtx, lease.Conn(), page)
	lease.Release()

	if err != nil {
		if f.gone(ctx) {
			return nil, ReasonConsumerGone, ErrConsumerGone
		}
		return nil, ReasonStore, err
	}
	return rows, ReasonNone, nil
}

// gone reports whether nobody will read further pages: the consumer
// detached or the session context ended.
func (f *FetchLoop) gone(ctx context.Context) bool {
	return f.bridge.Detached() || ctx.Err() != nil
}

func (f *FetchLoop) abort(out Outcome, reason Reason, err error) Outcome {
	out.State = StateAborted
	out.Reason = reason
	out.Err = err

	if reason == ReasonConsumerGone {
		f.bridge.Close()
		return out
	}

	f.logger.Warn("List stream aborted", "reason", reason.String(), "pages", out.Pages, "error", err)
	f.bridge.Fail(err)
	return out
}
