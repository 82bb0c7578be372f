package service

import (
	"context"
	"io"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/msto63/minerva/internal/minerva/store"
	"github.com/msto63/minerva/internal/minerva/stream"
	"github.com/msto63/minerva/internal/minerva/telemetry"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/msto63/minerva/pkg/core/health"
)

func createTestService(t *testing.T, cfg Config) *Service {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "minerva.db")
	svc, err := Open(dsn, cfg, telemetry.NewCollector())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { svc.Close() })

	if err := svc.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema() error = %v", err)
	}
	return svc
}

func seedCustomers(t *testing.T, svc *Service, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		if _, err := svc.Create(context.Background(), store.NewCustomerFrom("Beltrano de Souza", false, "999.999.999-99")); err != nil {
			t.Fatalf("Create() error = %v", err)
		}
	}
}

func collect(t *testing.T, sess *stream.Session) ([]int, error) {
	t.Helper()

	var sizes []int
	for {
		pg, err := sess.Recv(context.Background())
		if err == io.EOF {
			return sizes, nil
		}
		if err != nil {
			return sizes, err
		}
		sizes = append(sizes, len(pg))
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Pool.MaxConns != 15 {
		t.Errorf("Pool.MaxConns = %d, want 15", cfg.Pool.MaxConns)
	}
	if cfg.Store.PageSize != 100 {
		t.Errorf("Store.PageSize = %d, want 100", cfg.Store.PageSize)
	}
	if !cfg.Store.LegacyOffset {
		t.Error("Store.LegacyOffset = false, want true")
	}
	if cfg.Stream.ChannelCapacity != 128 {
		t.Errorf("Stream.ChannelCapacity = %d, want 128", cfg.Stream.ChannelCapacity)
	}
	if cfg.Stream.PageTimeout != 30*time.Second {
		t.Errorf("Stream.PageTimeout = %v, want 30s", cfg.Stream.PageTimeout)
	}
}

func TestCreateGetDelete(t *testing.T) {
	svc := createTestService(t, DefaultConfig())
	ctx := context.Background()

	created, err := svc.Create(ctx, store.NewCustomerFrom("Outra Empresa LTDA", true, "99.999.999/9999-99"))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := svc.Get(ctx, created.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Name != "Outra Empresa LTDA" || !got.Business || !got.Active || got.Blocked {
		t.Errorf("Get() = %+v", got)
	}

	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := svc.Delete(ctx, created.ID); err != nil {
		t.Errorf("second Delete() error = %v, want nil", err)
	}

	if _, err := svc.Get(ctx, created.ID); !mdwerrors.HasCode(err, mdwerrors.CodeNotFound) {
		t.Errorf("Get() after delete error = %v, want NOT_FOUND", err)
	}

	if got := svc.PoolStats().InUse; got != 0 {
		t.Errorf("leases in use = %d, want 0", got)
	}
}

func TestListPages(t *testing.T) {
	svc := createTestService(t, DefaultConfig())
	seedCustomers(t, svc, 250)

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}

	sizes, err := collect(t, sess)
	if err != nil {
		t.Fatalf("stream error = %v", err)
	}
	want := []int{100, 100, 49}
	if len(sizes) != len(want) {
		t.Fatalf("page sizes = %v, want %v", sizes, want)
	}
	for i := range want {
		if sizes[i] != want[i] {
			t.Errorf("page sizes = %v, want %v", sizes, want)
			break
		}
	}

	<-sess.Done()
	waitForSessions(t, svc, 0)
}

func TestListEmpty(t *testing.T) {
	svc := createTestService(t, DefaultConfig())

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	sizes, err := collect(t, sess)
	if err != nil || len(sizes) != 0 {
		t.Errorf("collect() = %v, %v; want no pages and no error", sizes, err)
	}
}

func TestConcurrentListsAreIndependent(t *testing.T) {
	svc := createTestService(t, DefaultConfig())
	seedCustomers(t, svc, 250)

	const streams = 20
	var wg sync.WaitGroup
	for i := 0; i < streams; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			sess, err := svc.List(context.Background())
			if err != nil {
				t.Errorf("List() error = %v", err)
				return
			}

			// every third consumer walks away after one page
			if i%3 == 0 {
				if _, err := sess.Recv(context.Background()); err != nil {
					t.Errorf("Recv() error = %v", err)
				}
				sess.Detach()
				return
			}

			sizes, err := collect(t, sess)
			if err != nil {
				t.Errorf("stream %d error = %v", i, err)
				return
			}
			total := 0
			for _, n := range sizes {
				total += n
			}
			if total != 249 {
				t.Errorf("stream %d received %d customers, want 249", i, total)
			}
		}(i)
	}
	wg.Wait()

	waitForSessions(t, svc, 0)
	if got := svc.PoolStats().InUse; got != 0 {
		t.Errorf("leases in use = %d, want 0", got)
	}
}

func TestCloseStopsSessions(t *testing.T) {
	svc := createTestService(t, Config{
		Pool:   DefaultConfig().Pool,
		Store:  DefaultConfig().Store,
		Stream: stream.Config{ChannelCapacity: 1, PageTimeout: time.Second},
	})
	seedCustomers(t, svc, 300)

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if svc.ActiveSessions() != 1 {
		t.Errorf("ActiveSessions() = %d, want 1", svc.ActiveSessions())
	}

	done := make(chan error, 1)
	go func() { done <- svc.Close() }()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close() blocked on an undrained session")
	}
	<-sess.Done()

	if _, err := svc.List(context.Background()); !mdwerrors.HasCode(err, mdwerrors.CodeUnavailable) {
		t.Errorf("List() after Close() error = %v, want UNAVAILABLE", err)
	}
}

func TestCloseFailsUnfinishedListing(t *testing.T) {
	svc := createTestService(t, Config{
		Pool:   DefaultConfig().Pool,
		Store:  DefaultConfig().Store,
		Stream: stream.Config{ChannelCapacity: 1, PageTimeout: time.Second},
	})
	seedCustomers(t, svc, 300)

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sizes, err := collect(t, sess)
	if !mdwerrors.HasCode(err, mdwerrors.CodeUnavailable) {
		t.Fatalf("drain error = %v after %v, want UNAVAILABLE", err, sizes)
	}
	rows := 0
	for _, n := range sizes {
		rows += n
	}
	if rows >= 299 {
		t.Errorf("drained %d rows, want a cut-off listing", rows)
	}
}

func TestCloseKeepsCompletedListing(t *testing.T) {
	svc := createTestService(t, Config{
		Pool:   DefaultConfig().Pool,
		Store:  DefaultConfig().Store,
		Stream: stream.Config{ChannelCapacity: 4, PageTimeout: time.Second},
	})
	seedCustomers(t, svc, 50)

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	<-sess.Done()
	if err := svc.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	sizes, err := collect(t, sess)
	if err != nil {
		t.Fatalf("drain error = %v, want clean end", err)
	}
	if len(sizes) != 1 || sizes[0] != 49 {
		t.Errorf("page sizes = %v, want [49]", sizes)
	}
}

func TestHealthChecks(t *testing.T) {
	svc := createTestService(t, DefaultConfig())

	registry := health.NewRegistry("minerva", "test")
	for _, c := range svc.HealthChecks() {
		registry.Register(c)
	}

	report := registry.Check(context.Background())
	if !report.Healthy() {
		t.Errorf("report status = %v, want healthy (%+v)", report.Status, report.Checks)
	}
	for _, name := range []string{"database", "pool", "sessions"} {
		if _, ok := report.Result(name); !ok {
			t.Errorf("check %q missing", name)
		}
	}
	if db, _ := report.Result("database"); db.Details["driver"] != "sqlite3" {
		t.Errorf("database driver = %v, want sqlite3", db.Details["driver"])
	}
}

func TestHealthChecksListSessions(t *testing.T) {
	svc := createTestService(t, Config{
		Pool:   DefaultConfig().Pool,
		Store:  DefaultConfig().Store,
		Stream: stream.Config{ChannelCapacity: 1, PageTimeout: time.Second},
	})
	seedCustomers(t, svc, 300)

	sess, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	defer sess.Detach()

	registry := health.NewRegistry("minerva", "test")
	registry.Register(svc.HealthChecks()...)

	res, _ := registry.Check(context.Background()).Result("sessions")
	streams, ok := res.Details["streams"].([]SessionInfo)
	if !ok || len(streams) != 1 || streams[0].ID != sess.ID() {
		t.Errorf("sessions details = %+v, want the running stream %s", res.Details, sess.ID())
	}
}

func TestCount(t *testing.T) {
	svc := createTestService(t, DefaultConfig())

	if n, err := svc.Count(context.Background()); err != nil || n != 0 {
		t.Fatalf("Count() = %d, %v, want 0", n, err)
	}
	seedCustomers(t, svc, 7)
	if n, err := svc.Count(context.Background()); err != nil || n != 7 {
		t.Errorf("Count() = %d, %v, want 7", n, err)
	}
	if svc.Driver() != "sqlite3" {
		t.Errorf("Driver() = %q, want sqlite3", svc.Driver())
	}
}

func waitForSessions(t *testing.T, svc *Service, want int) {
	t.Helper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if svc.ActiveSessions() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Errorf("ActiveSessions() = %d, want %d", svc.ActiveSessions(), want)
}
