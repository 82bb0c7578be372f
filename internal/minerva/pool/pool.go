// Package pool bounds concurrent database access to a fixed number of
// exclusive connection leases.
//
// database/sql already pools connections, but it hands them out implicitly
// per statement. The registry needs explicit leases: a list stream holds one
// connection for exactly one page scan and must give it back before the page
// is handed to the consumer. Pool layers a weighted semaphore over *sql.DB
// and pins a *sql.Conn to every lease.
package pool

import (
	"context"
	"database/sql"
	"sync"
	"sync/atomic"
	"time"

	"github.com/msto63/minerva/internal/minerva/telemetry"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/msto63/minerva/pkg/core/logging"
	"golang.org/x/sync/semaphore"
)

// DefaultMaxConns is the number of leases a pool hands out at most
const DefaultMaxConns = 15

// Config holds pool configuration
type Config struct {
	// MaxConns bounds the number of simultaneous leases
	MaxConns int

	// AcquireTimeout bounds the wait for a free lease. Zero waits until the
	// caller's context is done.
	AcquireTimeout time.Duration
}

// DefaultConfig returns the default pool configuration
func DefaultConfig() Config {
	return Config{
		MaxConns: DefaultMaxConns,
	}
}

// Stats is a snapshot of pool usage
type Stats struct {
	MaxConns  int   `json:"max_conns"`
	InUse     int   `json:"in_use"`
	Idle      int   `json:"idle"`
	WaitCount int64 `json:"wait_count"`
	Failures  int64 `json:"failures"`
}

// Pool hands out exclusive connection leases
type Pool struct {
	db      *sql.DB
	sem     *semaphore.Weighted
	config  Config
	metrics *telemetry.Collector
	logger  *logging.Logger

	// ctx is cancelled by Close and aborts pending Acquire calls
	ctx    context.Context
	cancel context.CancelFunc
	closed atomic.Bool

	inUse    atomic.Int64
	waits    atomic.Int64
	failures atomic.Int64
}

// Option configures a Pool
type Option func(*Pool)

// WithMetrics records lease metrics on c
func WithMetrics(c *telemetry.Collector) Option {
	return func(p *Pool) {
		p.metrics = c
	}
}

// WithLogger sets the pool logger
func WithLogger(l *logging.Logger) Option {
	return func(p *Pool) {
		p.logger = l
	}
}

// Open opens a database handle and wraps it in a pool. No connection is
// established until the first Acquire.
func Open(driver, dsn string, cfg Config, opts ...Option) (*Pool, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, mdwerrors.Wrap(err, "failed to open database").
			WithCode(mdwerrors.CodeConnectFailed).
			WithOperation("pool.Open")
	}
	return New(db, cfg, opts...), nil
}

// New wraps an existing database handle. The pool takes ownership of db and
// closes it in Close.
func New(db *sql.DB, cfg Config, opts ...Option) *Pool {
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = DefaultMaxConns
	}

	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MaxConns)

	ctx, cancel := context.WithCancel(context.Background())
	p := &Pool{
		db:     db,
		sem:    semaphore.NewWeighted(int64(cfg.MaxConns)),
		config: cfg,
		logger: logging.New("pool"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Acquire waits for a free slot and leases a dedicated connection.
//
// A wait aborted by ctx, by AcquireTimeout or by Close fails with
// POOL_EXHAUSTED. A connection that cannot be established fails with
// CONNECT_FAILED and frees the slot again.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if p.closed.Load() {
		return nil, p.fail("closed", mdwerrors.New("pool is closed"), mdwerrors.CodePoolExhausted)
	}

	if p.config.AcquireTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.AcquireTimeout)
		defer cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(p.ctx, cancel)
	defer stop()

	start := time.Now()
	if !p.sem.TryAcquire(1) {
		p.waits.Add(1)
		if err := p.sem.Acquire(ctx, 1); err != nil {
			return nil, p.fail("exhausted", mdwerrors.Wrap(err, "no connection available"), mdwerrors.CodePoolExhausted)
		}
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		p.sem.Release(1)
		if ctx.Err() != nil || p.closed.Load() {
			return nil, p.fail("exhausted", mdwerrors.Wrap(err, "no connection available"), mdwerrors.CodePoolExhausted)
		}
		return nil, p.fail("connect", mdwerrors.Wrap(err, "failed to connect to database"), mdwerrors.CodeConnectFailed)
	}

	p.inUse.Add(1)
	p.metrics.LeaseAcquired(time.Since(start))

	return &Lease{pool: p, conn: conn}, nil
}

func (p *Pool) fail(reason string, err *mdwerrors.Error, code mdwerrors.Code) error {
	p.failures.Add(1)
	p.metrics.AcquireFailed(reason)
	p.logger.Debug("Lease acquisition failed", "reason", reason, "error", err)
	return err.WithCode(code).WithOperation("pool.Acquire")
}

func (p *Pool) release(conn *sql.Conn) {
	if err := conn.Close(); err != nil && !p.closed.Load() {
		p.logger.Warn("Failed to return connection", "error", err)
	}
	p.inUse.Add(-1)
	p.sem.Release(1)
	p.metrics.LeaseReleased()
}

// Stats returns a snapshot of pool usage
func (p *Pool) Stats() Stats {
	return Stats{
		MaxConns:  p.config.MaxConns,
		InUse:     int(p.inUse.Load()),
		Idle:      p.db.Stats().Idle,
		WaitCount: p.waits.Load(),
		Failures:  p.failures.Load(),
	}
}

// Ping verifies the database is reachable without taking a lease
func (p *Pool) Ping(ctx context.Context) error {
	if err := p.db.PingContext(ctx); err != nil {
		return mdwerrors.Wrap(err, "database unreachable").
			WithCode(mdwerrors.CodeConnectFailed).
			WithOperation("pool.Ping")
	}
	return nil
}

// DB returns the underlying handle, for schema setup outside of leases
func (p *Pool) DB() *sql.DB {
	return p.db
}

// Close aborts pending acquisitions and closes the database handle.
// Leases still held stay usable until released.
func (p *Pool) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.cancel()
	return p.db.Close()
}

// Lease is exclusive use of one database connection
type Lease struct {
	pool *Pool
	conn *sql.Conn
	once sync.Once
}

// Conn returns the leased connection. It must not be used after Release.
func (l *Lease) Conn() *sql.Conn {
	return l.conn
}

// Release returns the connection to the pool. Calling it more than once has
// no further effect.
func (l *Lease) Release() {
	l.once.Do(func() {
		l.pool.release(l.conn)
	})
}
