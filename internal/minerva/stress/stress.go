// Package stress drives a running registry with many concurrent clients.
//
// Every worker pings the server, registers a random number of batches of
// sample customers, reads a random selection of them back, walks the full
// listing stream and finally deletes what it created.
package stress

import (
	"context"
	"io"
	"math/rand/v2"
	"sync/atomic"
	"time"

	pb "github.com/msto63/minerva/api/gen/minerva"
	mdwerrors "github.com/msto63/minerva/pkg/core/errors"
	"github.com/msto63/minerva/pkg/core/logging"
	"golang.org/x/sync/errgroup"
	"google.golang.org/protobuf/types/known/emptypb"
)

// Config holds stress run settings
type Config struct {
	// Workers is the number of concurrent clients. Zero picks a random
	// number between MinWorkers and MaxWorkers.
	Workers    int
	MinWorkers int
	MaxWorkers int

	// MaxBatches bounds the random number of sample batches each worker
	// registers
	MaxBatches int
}

// DefaultConfig returns default stress settings
func DefaultConfig() Config {
	return Config{
		MinWorkers: 15,
		MaxWorkers: 50,
		MaxBatches: 49,
	}
}

// Result summarizes a stress run
type Result struct {
	Workers  int           `json:"workers" yaml:"workers"`
	Created  int64         `json:"created" yaml:"created"`
	Fetched  int64         `json:"fetched" yaml:"fetched"`
	Deleted  int64         `json:"deleted" yaml:"deleted"`
	Pages    int64         `json:"pages" yaml:"pages"`
	Listed   int64         `json:"listed" yaml:"listed"`
	Failures int64         `json:"failures" yaml:"failures"`
	Duration time.Duration `json:"duration" yaml:"duration"`
}

// Samples returns the customers registered by each batch
func Samples() []*pb.NewCustomerRequest {
	return []*pb.NewCustomerRequest{
		{Name: "Beltrano de Souza", IsBusiness: false, Document: "999.999.999-99"},
		{Name: "Fulano de Tal", IsBusiness: false, Document: "888.888.888-88"},
		{Name: "Empresa S/A", IsBusiness: true, Document: "99.999.999/9999-99"},
		{Name: "Ciclano da Silva", IsBusiness: false, Document: "777.777.777-77"},
		{Name: "Outra Empresa LTDA", IsBusiness: true, Document: "99.999.999/9999-99"},
	}
}

// Runner runs stress workers against one client connection
type Runner struct {
	client pb.MinervaClient
	config Config
	logger *logging.Logger

	created  atomic.Int64
	fetched  atomic.Int64
	deleted  atomic.Int64
	pages    atomic.Int64
	listed   atomic.Int64
	failures atomic.Int64
}

// NewRunner creates a runner
func NewRunner(client pb.MinervaClient, cfg Config) *Runner {
	if cfg.MinWorkers <= 0 {
		cfg.MinWorkers = 15
	}
	if cfg.MaxWorkers < cfg.MinWorkers {
		cfg.MaxWorkers = cfg.MinWorkers
	}
	if cfg.MaxBatches <= 0 {
		cfg.MaxBatches = 1
	}
	return &Runner{
		client: client,
		config: cfg,
		logger: logging.New("stress"),
	}
}

// Run starts the workers and waits for all of them. A worker that cannot
// reach the server stops the run; any other failed call is counted and the
// worker moves on.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	workers := r.config.Workers
	if workers <= 0 {
		workers = r.config.MinWorkers + rand.IntN(r.config.MaxWorkers-r.config.MinWorkers+1)
	}

	r.logger.Info("Starting stress run", "workers", workers)
	start := time.Now()

	g, ctx := errgroup.WithContext(ctx)
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			return r.worker(ctx, w)
		})
	}
	err := g.Wait()

	res := Result{
		Workers:  workers,
		Created:  r.created.Load(),
		Fetched:  r.fetched.Load(),
		Deleted:  r.deleted.Load(),
		Pages:    r.pages.Load(),
		Listed:   r.listed.Load(),
		Failures: r.failures.Load(),
		Duration: time.Since(start),
	}
	r.logger.Info("Stress run finished",
		"workers", res.Workers,
		"created", res.Created,
		"pages", res.Pages,
		"failures", res.Failures,
		"duration", res.Duration.Round(time.Millisecond),
	)
	return res, err
}

func (r *Runner) worker(ctx context.Context, id int) error {
	logger := r.logger.With("worker", id)

	if _, err := r.client.Ping(ctx, &emptypb.Empty{}); err != nil {
		r.failures.Add(1)
		return mdwerrors.Wrap(err, "ping failed").
			WithCode(mdwerrors.CodeConnectFailed).
			WithOperation("stress.worker")
	}

	ids := r.create(ctx, logger)
	r.fetch(ctx, logger, ids)
	r.list(ctx, logger)
	r.remove(ctx, logger, ids)

	logger.Debug("Worker finished", "customers", len(ids))
	return nil
}

func (r *Runner) create(ctx context.Context, logger *logging.Logger) []int32 {
	batches := 1 + rand.IntN(r.config.MaxBatches)
	samples := Samples()

	ids := make([]int32, 0, batches*len(samples))
	for b := 0; b < batches; b++ {
		for _, req := range samples {
			c, err := r.client.CreateCustomer(ctx, req)
			if err != nil {
				r.failures.Add(1)
				logger.Warn("CreateCustomer failed", "error", err)
				continue
			}
			r.created.Add(1)
			ids = append(ids, c.GetId())
		}
	}
	return ids
}

func (r *Runner) fetch(ctx context.Context, logger *logging.Logger, ids []int32) {
	if len(ids) == 0 {
		return
	}

	n := 1 + rand.IntN(len(ids))
	for i := 0; i < n; i++ {
		id := ids[rand.IntN(len(ids))]
		if _, err := r.client.GetCustomer(ctx, &pb.CustomerIDRequest{Id: id}); err != nil {
			r.failures.Add(1)
			logger.Warn("GetCustomer failed", "id", id, "error", err)
			continue
		}
		r.fetched.Add(1)
	}
}

func (r *Runner) list(ctx context.Context, logger *logging.Logger) {
	stream, err := r.client.ListCustomers(ctx, &emptypb.Empty{})
	if err != nil {
		r.failures.Add(1)
		logger.Warn("ListCustomers failed", "error", err)
		return
	}

	var pages, customers int
	for {
		page, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			r.failures.Add(1)
			logger.Warn("List stream ended unexpectedly", "pages", pages, "error", err)
			break
		}
		pages++
		customers += len(page.GetCustomers())
	}

	r.pages.Add(int64(pages))
	r.listed.Add(int64(customers))
	logger.Debug("List stream closed by server", "pages", pages, "customers", customers)
}

func (r *Runner) remove(ctx context.Context, logger *logging.Logger, ids []int32) {
	for _, id := range ids {
		if _, err := r.client.DeleteCustomer(ctx, &pb.CustomerIDRequest{Id: id}); err != nil {
			r.failures.Add(1)
			logger.Warn("DeleteCustomer failed", "id", id, "error", err)
			continue
		}
		r.deleted.Add(1)
	}
}
