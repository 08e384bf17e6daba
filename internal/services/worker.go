package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/eresh-mittal/ImageProc/internal/batch"
	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
	"github.com/eresh-mittal/ImageProc/internal/logger"
)

const (
	// DefaultMaxConcurrentJobs bounds jobs running at the same time
	DefaultMaxConcurrentJobs = 2
	// DefaultPollInterval is how often the worker looks for PENDING jobs
	DefaultPollInterval = 2 * time.Second

	staleJobReason = "job interrupted by restart"
)

// JobRunner drives a single job to a terminal state
type JobRunner interface {
	Run(ctx context.Context, job *models.Job) error
}

// Worker picks up PENDING jobs and runs them in the background
type Worker struct {
	jobRepo      *repos.JobRepository
	runner       JobRunner
	maxJobs      int
	pollInterval time.Duration
	sem          *semaphore.Weighted
	wakeup       chan struct{}

	mu       sync.Mutex
	inFlight map[string]context.CancelFunc
	jobs     sync.WaitGroup
}

// NewWorker creates a worker. Non-positive limits use the defaults.
func NewWorker(jobRepo *repos.JobRepository, runner JobRunner, maxJobs int, pollInterval time.Duration) *Worker {
	if maxJobs < 1 {
		maxJobs = DefaultMaxConcurrentJobs
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Worker{
		jobRepo:      jobRepo,
		runner:       runner,
		maxJobs:      maxJobs,
		pollInterval: pollInterval,
		sem:          semaphore.NewWeighted(int64(maxJobs)),
		wakeup:       make(chan struct{}, 1),
		inFlight:     make(map[string]context.CancelFunc),
	}
}

// Wake triggers an immediate poll
func (w *Worker) Wake() {
	select {
	case w.wakeup <- struct{}{}:
	default:
	}
}

// Abort cancels a job running in this process
func (w *Worker) Abort(requestID string) bool {
	w.mu.Lock()
	cancel, ok := w.inFlight[requestID]
	w.mu.Unlock()
	if ok {
		logger.Infof("Aborting job %s", requestID)
		cancel()
	}
	return ok
}

// Running reports how many jobs are in flight
func (w *Worker) Running() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.inFlight)
}

// Start runs the polling loop until ctx is done. Jobs still running at
// shutdown are aborted and waited for.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	if n, err := w.jobRepo.FailStale(ctx, staleJobReason); err != nil {
		logger.Errorf("Worker failed to recover stale jobs: %v", err)
	} else if n > 0 {
		logger.Warnf("Worker marked %d interrupted jobs as failed", n)
	}

	logger.Info("Worker started")
	for {
		w.dispatch(ctx)

		select {
		case <-ctx.Done():
			logger.Info("Worker received shutdown signal, stopping...")
			w.abortAll()
			w.jobs.Wait()
			return
		case <-w.wakeup:
		case <-time.After(w.pollInterval):
		}
	}
}

func (w *Worker) dispatch(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	jobs, err := w.jobRepo.ListByStatus(ctx, models.JobStatusPending, &models.ListOptions{Limit: w.maxJobs * 2})
	if err != nil {
		logger.Errorf("Worker error fetching jobs: %v", err)
		return
	}
	if len(jobs) == 0 {
		logger.Debug("Worker: No jobs to process")
		return
	}

	for i := range jobs {
		job := jobs[i]
		if w.isRunning(job.RequestID) {
			continue
		}
		if !w.sem.TryAcquire(1) {
			return
		}

		jobCtx, cancel := context.WithCancel(ctx)
		w.mu.Lock()
		w.inFlight[job.RequestID] = cancel
		w.mu.Unlock()

		w.jobs.Add(1)
		go w.execute(jobCtx, cancel, &job)
	}
}

func (w *Worker) execute(ctx context.Context, cancel context.CancelFunc, job *models.Job) {
	defer func() {
		w.mu.Lock()
		delete(w.inFlight, job.RequestID)
		w.mu.Unlock()
		cancel()
		w.sem.Release(1)
		w.jobs.Done()
	}()

	// an abort may have failed the job after it was listed; a cancelled ctx
	// still reaches Run so the job is recorded as aborted
	current, err := w.jobRepo.GetByRequestID(context.WithoutCancel(ctx), job.RequestID)
	if err != nil {
		logger.Errorf("Worker failed to reload job %s: %v", job.RequestID, err)
		return
	}
	if current.Status != models.JobStatusPending {
		return
	}

	err = w.runner.Run(ctx, current)
	switch {
	case errors.Is(err, batch.ErrJobNotPending):
		logger.Infof("Job %s left PENDING before it started", current.RequestID)
	case err != nil:
		logger.Errorf("Job %s failed: %v", current.RequestID, err)
	}
}

func (w *Worker) isRunning(requestID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, ok := w.inFlight[requestID]
	return ok
}

func (w *Worker) abortAll() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, cancel := range w.inFlight {
		cancel()
	}
}
