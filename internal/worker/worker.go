package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/atomic"
	"golang.org/x/sync/errgroup"

	"github.com/Abdullah0x0/dreamdirector/pkg/media"
)

const (
	DefaultWorkers    = 2
	DefaultQueueSize  = 16
	DefaultJobTimeout = 45 * time.Second
)

// MusicJob asks for one background music track.
type MusicJob struct {
	ID           string
	AdventureID  uuid.UUID
	SceneContext string
	Tone         string
	Reason       string
	Enqueued     time.Time
}

// MusicResult is a finished MusicJob. Result is never nil-valued; a failed
// generation carries a non-OK status.
type MusicResult struct {
	Job      MusicJob
	Result   media.Result
	WorkerID string
	Duration time.Duration
}

// Stats are cumulative pool counters.
type Stats struct {
	Workers   int   `json:"workers"`
	Queued    int64 `json:"queued"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Dropped   int64 `json:"dropped"`
	Pending   int   `json:"pending"`
}

// Pool runs music generation off the request path. Finished jobs are
// delivered on Results in completion order.
type Pool struct {
	gateway    media.Gateway
	workers    int
	jobTimeout time.Duration
	jobs       chan MusicJob
	results    chan MusicResult
	log        *slog.Logger

	queued    atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	mu      sync.Mutex
	started bool
	stopped bool
	ctx     context.Context
	cancel  context.CancelFunc
	group   *errgroup.Group
}

type PoolOption func(*Pool)

// WithWorkers sets the number of concurrent workers
func WithWorkers(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithQueueSize sets the job buffer size
func WithQueueSize(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.jobs = make(chan MusicJob, n)
			p.results = make(chan MusicResult, n)
		}
	}
}

// WithJobTimeout bounds a single generation
func WithJobTimeout(d time.Duration) PoolOption {
	return func(p *Pool) {
		if d > 0 {
			p.jobTimeout = d
		}
	}
}

func WithLogger(log *slog.Logger) PoolOption {
	return func(p *Pool) {
		p.log = log
	}
}

func NewPool(gateway media.Gateway, opts ...PoolOption) *Pool {
	p := &Pool{
		gateway:    gateway,
		workers:    DefaultWorkers,
		jobTimeout: DefaultJobTimeout,
		jobs:       make(chan MusicJob, DefaultQueueSize),
		results:    make(chan MusicResult, DefaultQueueSize),
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start launches the workers. Calling it more than once is a no-op.
func (p *Pool) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.ctx, p.cancel = context.WithCancel(context.Background())
	p.group, _ = errgroup.WithContext(p.ctx)

	for i := 0; i < p.workers; i++ {
		id := fmt.Sprintf("worker-%s", uuid.New().String()[:8])
		p.group.Go(func() error {
			p.run(id)
			return nil
		})
	}
	p.log.Info("Music workers started", "workers", p.workers)
}

// Stop cancels in-flight jobs, waits for the workers, and closes Results.
func (p *Pool) Stop() {
	p.mu.Lock()
	if !p.started || p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.cancel()
	p.mu.Unlock()

	_ = p.group.Wait()
	close(p.results)
	p.log.Info("Music workers stopped", "completed", p.completed.Load(), "failed", p.failed.Load())
}

// Submit queues job without blocking. It reports false when the pool is
// stopped or the queue is full.
func (p *Pool) Submit(job MusicJob) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started || p.stopped {
		p.dropped.Inc()
		return false
	}
	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.Enqueued.IsZero() {
		job.Enqueued = time.Now()
	}

	select {
	case p.jobs <- job:
		p.queued.Inc()
		p.log.Debug("Music job queued", "job_id", job.ID, "reason", job.Reason, "adventure_id", job.AdventureID.String())
		return true
	default:
		p.dropped.Inc()
		p.log.Warn("Music queue full, dropping job", "job_id", job.ID, "reason", job.Reason)
		return false
	}
}

// Results delivers finished jobs. It is closed by Stop.
func (p *Pool) Results() <-chan MusicResult {
	return p.results
}

func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Queued:    p.queued.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Dropped:   p.dropped.Load(),
		Pending:   len(p.jobs),
	}
}

func (p *Pool) run(id string) {
	p.log.Debug("Worker starting", "worker_id", id)
	for {
		select {
		case <-p.ctx.Done():
			p.log.Debug("Worker shutting down", "worker_id", id)
			return
		case job := <-p.jobs:
			result := p.process(id, job)
			select {
			case p.results <- result:
			case <-p.ctx.Done():
				return
			}
		}
	}
}

func (p *Pool) process(id string, job MusicJob) MusicResult {
	ctx, cancel := context.WithTimeout(p.ctx, p.jobTimeout)
	defer cancel()

	start := time.Now()
	result := p.gateway.StreamMusic(ctx, job.SceneContext, job.Tone)
	duration := time.Since(start)

	if result.OK() {
		p.completed.Inc()
	} else {
		p.failed.Inc()
	}

	p.log.Info("Music job finished",
		"worker_id", id,
		"job_id", job.ID,
		"reason", job.Reason,
		"status", result.Status,
		"duration_ms", duration.Milliseconds(),
	)

	return MusicResult{Job: job, Result: result, WorkerID: id, Duration: duration}
}
