package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/mesh-intelligence/folio/internal/telemetry"
	"github.com/mesh-intelligence/folio/pkg/types"
)

// Defaults for Options.
const (
	DefaultWorkers      = 1
	DefaultPollInterval = time.Second
)

// Store is the job persistence the pool needs.
type Store interface {
	ClaimJob(ctx context.Context, worker string) (*types.Job, error)
	CompleteJob(ctx context.Context, id string, result *string) error
	FailJob(ctx context.Context, id, reason string) error
	FailRunningJobs(ctx context.Context, claimerPrefix, reason string) (int64, error)
}

// Options configure a pool.
type Options struct {
	Workers      int
	PollInterval time.Duration
	// Name prefixes worker ids recorded on claimed jobs. Defaults to the
	// host name.
	Name string
}

// Pool runs jobs on a fixed number of workers.
type Pool struct {
	store    Store
	registry *Registry
	opts     Options
	logger   zerolog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewPool returns a pool that claims from store and dispatches through
// registry. It does not start any worker.
func NewPool(store Store, registry *Registry, opts Options, logger zerolog.Logger) *Pool {
	if opts.Workers < 1 {
		opts.Workers = DefaultWorkers
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	if opts.Name == "" {
		opts.Name, _ = os.Hostname()
		if opts.Name == "" {
			opts.Name = "folio"
		}
	}
	return &Pool{
		store:    store,
		registry: registry,
		opts:     opts,
		logger:   logger.With().Str("component", "jobs").Logger(),
		stop:     make(chan struct{}),
	}
}

// Start launches the workers. They run until Stop is called or ctx is
// cancelled.
func (p *Pool) Start(ctx context.Context) {
	p.logger.Info().Int("workers", p.opts.Workers).Strs("job_types", p.registry.Types()).Msg("Worker pool starting")
	for i := 1; i <= p.opts.Workers; i++ {
		id := fmt.Sprintf("%s%d", p.workerPrefix(), i)
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.worker(ctx, id)
		}()
	}
}

// workerPrefix starts the id of every worker of this pool, and of no worker
// of another pool.
func (p *Pool) workerPrefix() string {
	return fmt.Sprintf("%s-%d-", p.opts.Name, os.Getpid())
}

// Stop tells the workers to exit once their current job is done.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

// Wait blocks until every worker has exited, then fails the jobs this
// pool's workers left RUNNING with the shutdown reason. Jobs claimed by
// other pools are left alone.
func (p *Pool) Wait(ctx context.Context) error {
	p.wg.Wait()
	n, err := p.store.FailRunningJobs(context.WithoutCancel(ctx), p.workerPrefix(), types.ErrShutdownInterrupted.Error())
	if err != nil {
		p.logger.Error().Err(err).Msg("Shutdown sweep failed")
		return fmt.Errorf("sweeping running jobs: %w", err)
	}
	if n > 0 {
		telemetry.JobsSwept(ctx, n)
		p.logger.Warn().Int64("jobs", n).Msg("Failed jobs left running at shutdown")
	}
	p.logger.Info().Msg("Worker pool stopped")
	return nil
}

// Run starts the pool and blocks until ctx is cancelled or Stop is called,
// then shuts it down.
func (p *Pool) Run(ctx context.Context) error {
	p.Start(ctx)
	select {
	case <-ctx.Done():
	case <-p.stop:
	}
	p.Stop()
	return p.Wait(ctx)
}

func (p *Pool) stopping(ctx context.Context) bool {
	select {
	case <-p.stop:
		return true
	case <-ctx.Done():
		return true
	default:
		return false
	}
}

// worker claims and runs jobs one at a time until the pool stops.
func (p *Pool) worker(ctx context.Context, id string) {
	log := p.logger.With().Str("worker_id", id).Logger()
	log.Debug().Msg("Worker started")
	defer log.Debug().Msg("Worker exited")

	for !p.stopping(ctx) {
		job, err := p.store.ClaimJob(ctx, id)
		if err != nil && ctx.Err() == nil {
			log.Error().Err(err).Msg("Claiming job failed")
		}
		if job == nil {
			p.idle(ctx)
			continue
		}
		p.process(ctx, log, job)
	}
}

// idle waits for the poll interval or until the pool stops.
func (p *Pool) idle(ctx context.Context) {
	t := time.NewTimer(p.opts.PollInterval)
	defer t.Stop()
	select {
	case <-t.C:
	case <-p.stop:
	case <-ctx.Done():
	}
}

// process runs one claimed job and records its outcome. The handler and the
// outcome commit are detached from ctx so shutdown never aborts them.
func (p *Pool) process(ctx context.Context, log zerolog.Logger, job *types.Job) {
	ctx = context.WithoutCancel(ctx)
	log = log.With().Str("job_id", job.JobID).Str("job_type", job.JobType).Logger()
	telemetry.JobClaimed(ctx, job.JobType)
	log.Info().Msg("Job claimed")

	handler, ok := p.registry.Lookup(job.JobType)
	if !ok {
		p.fail(ctx, log, job, "unknown_type", fmt.Sprintf("no handler registered for job type %q", job.JobType))
		return
	}

	start := time.Now()
	value, err := handler(ctx, job.Payload)
	if err != nil {
		log.Error().Err(err).Str("kind", types.KindOf(err)).Dur("elapsed", time.Since(start)).Msg("Job handler failed")
		p.fail(ctx, log, job, "handler", err.Error())
		return
	}

	result, err := encodeResult(value)
	if err != nil {
		p.fail(ctx, log, job, "result", err.Error())
		return
	}
	if err := p.store.CompleteJob(ctx, job.JobID, result); err != nil {
		log.Error().Err(err).Msg("Recording job completion failed")
		return
	}
	telemetry.JobCompleted(ctx, job.JobType)
	log.Info().Dur("elapsed", time.Since(start)).Msg("Job completed")
}

// fail records reason on the job. cause is the short label counted in
// telemetry.
func (p *Pool) fail(ctx context.Context, log zerolog.Logger, job *types.Job, cause, reason string) {
	if err := p.store.FailJob(ctx, job.JobID, reason); err != nil {
		log.Error().Err(err).Msg("Recording job failure failed")
		return
	}
	telemetry.JobFailed(ctx, job.JobType, cause)
	log.Warn().Str("reason", reason).Msg("Job failed")
}

// encodeResult renders a handler result for the job row.
func encodeResult(v any) (*string, error) {
	switch r := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &r, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding job result: %w", err)
	}
	s := string(b)
	return &s, nil
}
