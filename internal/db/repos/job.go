package repos

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// ErrJobNotFound is returned when no job matches the request id
var ErrJobNotFound = errors.New("job not found")

// JobRepository provides access to job-related database operations
type JobRepository struct {
	db *gorm.DB
}

// NewJobRepository creates a new job repository instance
func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create creates a new job in the database
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	return r.db.WithContext(ctx).Create(job).Error
}

// GetByRequestID retrieves a job by its request id
func (r *JobRepository) GetByRequestID(ctx context.Context, requestID string) (*models.Job, error) {
	var job models.Job
	err := r.db.WithContext(ctx).
		Where(&models.Job{RequestID: requestID}).
		First(&job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, requestID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return &job, nil
}

// ListByStatus returns jobs in the given status, oldest first
func (r *JobRepository) ListByStatus(ctx context.Context, status models.JobStatus, opts *models.ListOptions) ([]models.Job, error) {
	var jobs []models.Job
	query := r.db.WithContext(ctx).
		Where(&models.Job{Status: status}).
		Order("created_at ASC")
	if opts != nil {
		if opts.Limit > 0 {
			query = query.Limit(opts.Limit)
		}
		query = query.Offset(opts.Offset)
	}
	if err := query.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a job to PROCESSING only while it is still PENDING.
// It reports whether the job was changed.
func (r *JobRepository) MarkProcessing(ctx context.Context, requestID string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobRequestIDField+" = ? AND "+models.JobStatusField+" = ?", requestID, models.JobStatusPending).
		Updates(map[string]interface{}{
			models.JobStatusField:   models.JobStatusProcessing,
			models.JobProgressField: 0,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to start job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// UpdateStatus writes a status transition together with the progress value
func (r *JobRepository) UpdateStatus(ctx context.Context, requestID string, upd models.JobStatusUpdate) error {
	columns := map[string]interface{}{
		models.JobStatusField:   upd.Status,
		models.JobProgressField: upd.Progress,
	}
	if upd.CompletedAt != nil {
		columns[models.JobCompletedAtField] = *upd.CompletedAt
	}
	if upd.OutputCSVURL != "" {
		columns[models.JobOutputCSVURLField] = upd.OutputCSVURL
	}
	if upd.Error != "" {
		columns[models.JobErrorField] = upd.Error
	}

	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobRequestIDField+" = ?", requestID).
		Updates(columns)
	if res.Error != nil {
		return fmt.Errorf("failed to update job status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, requestID)
	}
	return nil
}

// SetWebhookResult records the outcome of the completion notification
func (r *JobRepository) SetWebhookResult(ctx context.Context, requestID string, sent bool, errMsg string) error {
	return r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobRequestIDField+" = ?", requestID).
		Updates(map[string]interface{}{
			models.JobWebhookSentField:  sent,
			models.JobWebhookErrorField: errMsg,
		}).Error
}

// FailStale marks jobs left in PROCESSING (for example by a crash) as FAILED
// and returns how many were changed
func (r *JobRepository) FailStale(ctx context.Context, reason string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobStatusField+" = ?", models.JobStatusProcessing).
		Updates(map[string]interface{}{
			models.JobStatusField: models.JobStatusFailed,
			models.JobErrorField:  reason,
		})
	return res.RowsAffected, res.Error
}

// FailPending marks a job FAILED only while it is still PENDING. It reports
// whether the job was changed.
func (r *JobRepository) FailPending(ctx context.Context, requestID, reason string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Job{}).
		Where(models.JobRequestIDField+" = ? AND "+models.JobStatusField+" = ?", requestID, models.JobStatusPending).
		Updates(map[string]interface{}{
			models.JobStatusField: models.JobStatusFailed,
			models.JobErrorField:  reason,
		})
	if res.Error != nil {
		return false, fmt.Errorf("failed to fail pending job: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
