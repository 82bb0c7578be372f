package service

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/msto63/minerva/internal/minerva/pool"
	"github.com/msto63/minerva/internal/minerva/store"
	"github.com/msto63/minerva/internal/minerva/stream"
	"github.com/msto63/minerva/internal/minerva/telemetry"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	coregrpc "github.com/msto63/minerva/pkg/core/grpc"
	"github.com/msto63/minerva/pkg/core/health"
	"github.com/msto63/minerva/pkg/core/logging"
	"github.com/puzpuzpuz/xsync/v3"
)

// Config holds configuration for the registry service
type Config struct {
	Pool   pool.Config
	Store  store.Config
	Stream stream.Config
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		Pool:   pool.DefaultConfig(),
		Store:  store.DefaultConfig(),
		Stream: stream.DefaultConfig(),
	}
}

// SessionInfo describes a running list stream
type SessionInfo struct {
	ID      string `json:"id"`
	Started string `json:"started"`
}

// Service is the customer registry service
type Service struct {
	pool     *pool.Pool
	store    *store.Store
	config   Config
	metrics  *telemetry.Collector
	logger   *logging.Logger
	sessions *xsync.MapOf[string, *stream.Session]

	// ctx parents every fetch loop and is cancelled by Close
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed atomic.Bool
	loops  sync.WaitGroup
}

// New creates a service on an existing pool and store
func New(p *pool.Pool, st *store.Store, cfg Config, metrics *telemetry.Collector) *Service {
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		pool:     p,
		store:    st,
		config:   cfg,
		metrics:  metrics,
		logger:   logging.New("minerva"),
		sessions: xsync.NewMapOf[string, *stream.Session](),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Open connects to the database named by dsn and creates the service. The
// dialect is picked from the DSN.
func Open(dsn string, cfg Config, metrics *telemetry.Collector) (*Service, error) {
	dialect := store.DialectFor(dsn)

	p, err := pool.Open(dialect.Driver, dialect.DataSource(dsn), cfg.Pool,
		pool.WithMetrics(metrics),
		pool.WithLogger(logging.New("pool")),
	)
	if err != nil {
		return nil, err
	}

	svc := New(p, store.New(dialect, cfg.Store), cfg, metrics)
	svc.logger.Info("Database configured",
		"driver", dialect.Driver,
		"max_connections", p.Stats().MaxConns,
		"page_size", cfg.Store.PageSize,
		"legacy_offset", cfg.Store.LegacyOffset,
	)
	return svc, nil
}

// withLease runs fn on a freshly leased connection and releases it afterwards
func (s *Service) withLease(ctx context.Context, fn func(q store.Querier) error) error {
	lease, err := s.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	return fn(lease.Conn())
}

// EnsureSchema creates the customer table if needed
func (s *Service) EnsureSchema(ctx context.Context) error {
	return s.withLease(ctx, func(q store.Querier) error {
		return s.store.EnsureSchema(ctx, q)
	})
}

// Count returns the number of stored customers
func (s *Service) Count(ctx context.Context) (int, error) {
	var n int
	err := s.withLease(ctx, func(q store.Querier) error {
		var err error
		n, err = s.store.Count(ctx, q)
		return err
	})
	return n, err
}

// Driver returns the database driver in use
func (s *Service) Driver() string {
	return s.store.Dialect().Driver
}

// Create stores a new customer
func (s *Service) Create(ctx context.Context, c store.NewCustomer) (store.Customer, error) {
	var out store.Customer
	err := s.withLease(ctx, func(q store.Querier) error {
		var err error
		out, err = s.store.Insert(ctx, q, c)
		return err
	})
	if err != nil {
		return store.Customer{}, err
	}

	s.logger.Debug("Customer created", "id", out.ID)
	return out, nil
}

// Get returns the customer with the given id
func (s *Service) Get(ctx context.Context, id int32) (store.Customer, error) {
	var out store.Customer
	err := s.withLease(ctx, func(q store.Querier) error {
		var err error
		out, err = s.store.Get(ctx, q, id)
		return err
	})
	return out, err
}

// Delete removes the customer with the given id. Unknown ids succeed.
func (s *Service) Delete(ctx context.Context, id int32) error {
	err := s.withLease(ctx, func(q store.Querier) error {
		return s.store.Delete(ctx, q, id)
	})
	if err != nil {
		return err
	}

	s.logger.Debug("Customer deleted", "id", id)
	return nil
}

// List starts a paginated listing and returns its session at once. The
// caller drains the session and must Detach it if it stops early.
func (s *Service) List(ctx context.Context) (*stream.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed.Load() {
		return nil, mdwerrors.New("service is shutting down").
			WithCode(mdwerrors.CodeUnavailable).
			WithOperation("service.List")
	}

	s.loops.Add(1)
	s.metrics.SessionStarted()

	sess := stream.NewSession(s.config.Stream)
	s.sessions.Store(sess.ID(), sess)
	sess.Start(s.ctx, s.pool, s.store, s.metrics, s.sessionEnded)

	s.logger.Debug("List stream started", "session", sess.ID(), "request_id", coregrpc.GetRequestID(ctx))
	return sess, nil
}

func (s *Service) sessionEnded(sess *stream.Session, out stream.Outcome) {
	defer s.loops.Done()

	s.sessions.Delete(sess.ID())
	s.metrics.SessionEnded(out.Label())

	s.logger.Debug("List stream finished",
		"session", sess.ID(),
		"outcome", out.Label(),
		"pages", out.Pages,
		"customers", out.Rows,
	)
}

// ActiveSessions returns the number of running list streams
func (s *Service) ActiveSessions() int {
	return s.sessions.Size()
}

// Sessions lists the running list streams
func (s *Service) Sessions() []SessionInfo {
	out := make([]SessionInfo, 0, s.sessions.Size())
	s.sessions.Range(func(id string, sess *stream.Session) bool {
		out = append(out, SessionInfo{
			ID:      id,
			Started: sess.Started().Format("2006-01-02T15:04:05.000Z07:00"),
		})
		return true
	})
	return out
}

// PoolStats returns connection pool usage
func (s *Service) PoolStats() pool.Stats {
	return s.pool.Stats()
}

// Close stops every running list stream, waits for the fetch loops to exit
// and closes the pool. Readers of an unfinished stream get UNAVAILABLE once
// the queued pages are drained.
func (s *Service) Close() error {
	s.mu.Lock()
	if !s.closed.CompareAndSwap(false, true) {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	interrupted := mdwerrors.New("server shutting down, listing incomplete").
		WithCode(mdwerrors.CodeUnavailable).
		WithOperation("service.Close")
	s.sessions.Range(func(_ string, sess *stream.Session) bool {
		sess.Interrupt(interrupted)
		return true
	})
	s.cancel()
	s.loops.Wait()

	return s.pool.Close()
}

// HealthChecks returns the service's health checks
func (s *Service) HealthChecks() []health.Checker {
	return []health.Checker{
		health.NewChecker("database", func(ctx context.Context) health.CheckResult {
			result := health.CheckResult{
				Status:  health.StatusHealthy,
				Message: "reachable",
				Details: map[string]any{"driver": s.Driver()},
			}
			if err := s.pool.Ping(ctx); err != nil {
				result.Status = health.StatusUnhealthy
				result.Message = err.Error()
			}
			return result
		}),
		health.NewChecker("pool", func(ctx context.Context) health.CheckResult {
			st := s.pool.Stats()
			result := health.CheckResult{
				Name:   "pool",
				Status: health.StatusHealthy,
				Details: map[string]interface{}{
					"max_conns":  st.MaxConns,
					"in_use":     st.InUse,
					"idle":       st.Idle,
					"wait_count": st.WaitCount,
				},
			}
			if st.InUse >= st.MaxConns {
				result.Status = health.StatusDegraded
				result.Message = "all connections leased"
			}
			return result
		}),
		health.NewChecker("sessions", func(ctx context.Context) health.CheckResult {
			streams := s.Sessions()
			return health.CheckResult{
				Name:    "sessions",
				Status:  health.StatusHealthy,
				Message: fmt.Sprintf("%d active list streams", len(streams)),
				Details: map[string]any{"active": len(streams), "streams": streams},
			}
		}),
	}
}
