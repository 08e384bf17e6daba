package batch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

// DefaultRowConcurrency bounds concurrent rows within one job
const DefaultRowConcurrency = 4

// JobStore persists job state transitions
type JobStore interface {
	// MarkProcessing moves a PENDING job to PROCESSING and reports whether it did
	MarkProcessing(ctx context.Context, requestID string) (bool, error)
	// FailPending moves a PENDING job to FAILED and reports whether it did
	FailPending(ctx context.Context, requestID, reason string) (bool, error)
	UpdateStatus(ctx context.Context, requestID string, update models.JobStatusUpdate) error
	SetWebhookResult(ctx context.Context, requestID string, sent bool, errMsg string) error
}

// ProductStore persists per-row records
type ProductStore interface {
	Create(ctx context.Context, product *models.Product) error
	UpdateResult(ctx context.Context, requestID string, rowIndex int, update models.ProductUpdate) error
}

// Loader yields the rows of a job in input order
type Loader interface {
	Load(ctx context.Context, job *models.Job) ([]Row, error)
}

// Processor computes the result of a single row
type Processor interface {
	Process(ctx context.Context, requestID string, row Row) RowResult
}

// ResultWriter stores the result artifact and returns its reference
type ResultWriter interface {
	Write(ctx context.Context, requestID string, results []RowResult) (string, error)
}

// Notifier announces a completed job to target
type Notifier interface {
	Notify(ctx context.Context, target string, event types.CompletionEvent) error
}

// Options tunes an Orchestrator
type Options struct {
	RowConcurrency int
	// Now defaults to time.Now
	Now func() time.Time
}

// Orchestrator drives a job through PENDING -> PROCESSING -> COMPLETED|FAILED
type Orchestrator struct {
	jobs           JobStore
	products       ProductStore
	loader         Loader
	processor      Processor
	writer         ResultWriter
	notifier       Notifier
	rowConcurrency int
	now            func() time.Time
}

// NewOrchestrator wires the collaborators of a job run. notifier may be nil.
func NewOrchestrator(
	jobs JobStore,
	products ProductStore,
	loader Loader,
	processor Processor,
	writer ResultWriter,
	notifier Notifier,
	opts Options,
) *Orchestrator {
	if opts.RowConcurrency < 1 {
		opts.RowConcurrency = DefaultRowConcurrency
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		jobs:           jobs,
		products:       products,
		loader:         loader,
		processor:      processor,
		writer:         writer,
		notifier:       notifier,
		rowConcurrency: opts.RowConcurrency,
		now:            opts.Now,
	}
}

// rowCompletion is sent by row workers to the aggregator
type rowCompletion struct {
	pos    int
	result RowResult
	err    error
}

// accumulator is owned by the aggregator goroutine of a single run
type accumulator struct {
	total int
	done  int
	// progress is the last value persisted for the job
	progress float64
	fatal    error
}

// Run processes job to a terminal state. The returned error is nil when the
// job completed; job is updated in place to mirror what was persisted.
// Cancelling ctx aborts the job.
func (o *Orchestrator) Run(ctx context.Context, job *models.Job) error {
	logger.InfoWithFields("Starting job", map[string]interface{}{
		"request_id": job.RequestID,
	})

	rows, err := o.loader.Load(ctx, job)
	if err != nil {
		return o.failPending(ctx, job, fmt.Errorf("%w: failed to load rows: %w", ErrJobFatal, err))
	}

	started, err := o.jobs.MarkProcessing(ctx, job.RequestID)
	if err != nil {
		return o.fail(ctx, job, fmt.Errorf("%w: failed to set job status %s: %w", ErrJobFatal, models.JobStatusProcessing, err))
	}
	if !started {
		logger.WarnWithFields("Job left PENDING before it started, skipping", map[string]interface{}{
			"request_id": job.RequestID,
		})
		return ErrJobNotPending
	}
	job.Status = models.JobStatusProcessing
	job.Progress = 0

	results, err := o.runRows(ctx, job, rows)
	if err != nil {
		return o.fail(ctx, job, err)
	}

	ref, err := o.writer.Write(ctx, job.RequestID, results)
	if err != nil {
		return o.fail(ctx, job, fmt.Errorf("%w: failed to write results: %w", ErrJobFatal, err))
	}

	completedAt := o.now().UTC()
	err = o.setStatus(ctx, job, models.JobStatusUpdate{
		Status:       models.JobStatusCompleted,
		Progress:     1,
		CompletedAt:  &completedAt,
		OutputCSVURL: ref,
	})
	if err != nil {
		return o.fail(ctx, job, fmt.Errorf("%w: %w", ErrJobFatal, err))
	}

	logger.InfoWithFields("Job completed", map[string]interface{}{
		"request_id": job.RequestID,
		"rows":       len(rows),
		"output":     ref,
	})

	o.notify(ctx, job)
	return nil
}

// runRows dispatches rows in input order to a bounded pool while a single
// aggregator persists their results and the job progress. job.Progress is
// left at the last value persisted.
func (o *Orchestrator) runRows(ctx context.Context, job *models.Job, rows []Row) ([]RowResult, error) {
	requestID := job.RequestID
	results := make([]RowResult, len(rows))
	if len(rows) == 0 {
		return results, nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	acc := &accumulator{total: len(rows)}
	completions := make(chan rowCompletion)
	aggregated := make(chan struct{})
	go func() {
		defer close(aggregated)
		o.aggregate(ctx, cancel, requestID, acc, completions, results)
	}()

	var dispatchErr error
	var g errgroup.Group
	g.SetLimit(o.rowConcurrency)
	for pos, row := range rows {
		if runCtx.Err() != nil {
			break
		}
		row.Index = pos
		err := o.products.Create(runCtx, &models.Product{
			RequestID: requestID,
			RowIndex:  pos,
			ProductID: row.ProductID,
			ImageURL:  row.RawImageURL,
			Status:    models.ProductStatusPending,
		})
		if err != nil {
			dispatchErr = fmt.Errorf("%w: failed to persist row %d: %w", ErrJobFatal, pos, err)
			cancel()
			break
		}
		pos, row := pos, row
		g.Go(func() error {
			completions <- o.processRow(runCtx, requestID, pos, row)
			return nil
		})
	}
	_ = g.Wait()
	close(completions)
	<-aggregated
	job.Progress = acc.progress

	switch {
	case acc.fatal != nil:
		return nil, acc.fatal
	case ctx.Err() != nil:
		return nil, ErrJobAborted
	case dispatchErr != nil:
		return nil, dispatchErr
	}
	return results, nil
}

// processRow converts a worker panic into a job-level fault
func (o *Orchestrator) processRow(ctx context.Context, requestID string, pos int, row Row) (c rowCompletion) {
	c.pos = pos
	defer func() {
		if r := recover(); r != nil {
			c.err = fmt.Errorf("%w: row %d panicked: %v", ErrJobFatal, row.Index, r)
		}
	}()

	c.result = o.processor.Process(ctx, requestID, row)
	// a row cut short by cancellation is not a real outcome
	if err := ctx.Err(); err != nil {
		c.err = err
	}
	return c
}

// aggregate is the only writer of product results and progress for a run.
// It keeps draining completions after a fatal error so workers never block.
func (o *Orchestrator) aggregate(
	ctx context.Context,
	cancel context.CancelFunc,
	requestID string,
	acc *accumulator,
	completions <-chan rowCompletion,
	results []RowResult,
) {
	// results already computed are committed even while an abort is under way
	persistCtx := context.WithoutCancel(ctx)

	for c := range completions {
		if acc.fatal != nil {
			continue
		}
		if c.err != nil {
			if errors.Is(c.err, ErrJobFatal) {
				acc.fatal = c.err
				cancel()
			}
			continue
		}

		err := o.products.UpdateResult(persistCtx, requestID, c.pos, models.ProductUpdate{
			Status:            c.result.Status,
			ProcessedImageURL: c.result.ProcessedImageURL(),
			Error:             c.result.Diagnostics(),
		})
		if err != nil {
			acc.fatal = fmt.Errorf("%w: failed to persist result of row %d: %w", ErrJobFatal, c.pos, err)
			cancel()
			continue
		}

		results[c.pos] = c.result
		acc.done++

		logger.DebugWithFields("Row finished", map[string]interface{}{
			"request_id": requestID,
			"row":        c.pos,
			"status":     c.result.Status.String(),
			"done":       acc.done,
			"total":      acc.total,
		})

		if acc.done == acc.total {
			continue
		}
		progress := float64(acc.done) / float64(acc.total)
		err = o.jobs.UpdateStatus(persistCtx, requestID, models.JobStatusUpdate{
			Status:   models.JobStatusProcessing,
			Progress: progress,
		})
		if err != nil {
			acc.fatal = fmt.Errorf("%w: failed to persist progress: %w", ErrJobFatal, err)
			cancel()
			continue
		}
		acc.progress = progress
	}
}

func (o *Orchestrator) setStatus(ctx context.Context, job *models.Job, update models.JobStatusUpdate) error {
	if err := o.jobs.UpdateStatus(ctx, job.RequestID, update); err != nil {
		return fmt.Errorf("failed to set job status %s: %w", update.Status, err)
	}
	job.Status = update.Status
	job.Progress = update.Progress
	job.CompletedAt = update.CompletedAt
	job.OutputCSVURL = update.OutputCSVURL
	job.Error = update.Error
	return nil
}

// failureCause records any failure after cancellation as an abort
func failureCause(ctx context.Context, job *models.Job, cause error) error {
	if ctx.Err() != nil && !errors.Is(cause, ErrJobAborted) {
		cause = fmt.Errorf("%w: %w", ErrJobAborted, cause)
	}
	logger.ErrorWithFields("Job failed", map[string]interface{}{
		"request_id": job.RequestID,
		"error":      cause.Error(),
	})
	return cause
}

// failureMessage is the error stored on a failed job
func failureMessage(cause error) string {
	if errors.Is(cause, ErrJobAborted) {
		return ErrJobAborted.Error()
	}
	return cause.Error()
}

// failPending fails a job that never reached PROCESSING. A job that already
// left PENDING keeps its state.
func (o *Orchestrator) failPending(ctx context.Context, job *models.Job, cause error) error {
	cause = failureCause(ctx, job, cause)
	msg := failureMessage(cause)

	changed, err := o.jobs.FailPending(context.WithoutCancel(ctx), job.RequestID, msg)
	if err != nil {
		logger.Errorf("Failed to mark job %s as failed: %v", job.RequestID, err)
		return errors.Join(cause, err)
	}
	if !changed {
		return errors.Join(cause, ErrJobNotPending)
	}
	job.Status = models.JobStatusFailed
	job.Error = msg
	return cause
}

// fail persists FAILED with the last persisted progress even when ctx has
// been cancelled and returns cause
func (o *Orchestrator) fail(ctx context.Context, job *models.Job, cause error) error {
	cause = failureCause(ctx, job, cause)
	msg := failureMessage(cause)

	err := o.setStatus(context.WithoutCancel(ctx), job, models.JobStatusUpdate{
		Status:   models.JobStatusFailed,
		Progress: job.Progress,
		Error:    msg,
	})
	if err != nil {
		logger.Errorf("Failed to mark job %s as failed: %v", job.RequestID, err)
		return errors.Join(cause, err)
	}
	return cause
}

func (o *Orchestrator) notify(ctx context.Context, job *models.Job) {
	if o.notifier == nil {
		return
	}

	event := types.CompletionEvent{
		RequestID:    job.RequestID,
		Status:       job.Status.String(),
		OutputCSVURL: job.OutputCSVURL,
	}
	err := o.notifier.Notify(ctx, job.WebhookURL, event)
	if err != nil {
		logger.WarnWithFields("Completion notification failed", map[string]interface{}{
			"request_id": job.RequestID,
			"target":     job.WebhookURL,
			"error":      err.Error(),
		})
	}
	if job.WebhookURL == "" && err == nil {
		return
	}

	errMsg := ""
	if err != nil {
		errMsg = err.Error()
	}
	sent := err == nil
	if recErr := o.jobs.SetWebhookResult(context.WithoutCancel(ctx), job.RequestID, sent, errMsg); recErr != nil {
		logger.Warnf("Failed to record notification result for job %s: %v", job.RequestID, recErr)
		return
	}
	job.WebhookSent = sent
	job.WebhookError = errMsg
}
