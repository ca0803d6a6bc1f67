package tasks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/crx/internal/services"
	"github.com/desertthunder/crx/internal/shared"
)

const (
	defaultWorkers    = 5
	defaultWriteDelay = 500 * time.Millisecond
)

// EngineOpts configures a [SyncEngine]. Service is required; everything else
// falls back to production defaults. A nil Retry selects the default policy;
// a pointer to a zero policy disables retrying outright.
type EngineOpts struct {
	Service    services.Service
	Reporter   Reporter
	Logger     *log.Logger
	Retry      *RetryPolicy
	Workers    int
	WriteDelay time.Duration
}

// SyncEngine captures, diffs, and imports one profile's library.
type SyncEngine struct {
	service    services.Service
	reporter   Reporter
	logger     *log.Logger
	retry      RetryPolicy
	workers    int
	writeDelay time.Duration
}

// NewSyncEngine creates an engine from opts.
func NewSyncEngine(opts EngineOpts) (*SyncEngine, error) {
	if opts.Service == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if opts.Reporter == nil {
		opts.Reporter = nopReporter{}
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Retry == nil {
		policy := DefaultRetryPolicy()
		opts.Retry = &policy
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.WriteDelay == 0 {
		opts.WriteDelay = defaultWriteDelay
	}

	return &SyncEngine{
		service:    opts.Service,
		reporter:   opts.Reporter,
		logger:     opts.Logger,
		retry:      *opts.Retry,
		workers:    opts.Workers,
		writeDelay: opts.WriteDelay,
	}, nil
}

type writeJob struct {
	id    string
	label string
}

type writeResult struct {
	label string
	err   error
}

// fanOut distributes write jobs across the worker pool. Each worker retries
// its write under the engine policy and pauses for the write delay before
// taking the next job. The results channel closes once all workers exit,
// whether by drained jobs or cancellation.
func (e *SyncEngine) fanOut(ctx context.Context, jobs []writeJob, op func(ctx context.Context, id string) error) <-chan writeResult {
	jobCh := make(chan writeJob)
	results := make(chan writeResult, len(jobs))

	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobCh {
				select {
				case <-ctx.Done():
					return
				default:
				}

				err := retryWrite(ctx, e.retry, func() error {
					return op(ctx, job.id)
				})
				sleepCtx(ctx, e.writeDelay)
				results <- writeResult{label: job.label, err: err}
			}
		}()
	}

	go func() {
		defer close(jobCh)
		for _, job := range jobs {
			select {
			case jobCh <- job:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}
