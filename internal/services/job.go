package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/eresh-mittal/ImageProc/internal/batch"
	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/storage"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

var (
	// ErrInvalidFile is returned for uploads that are not CSV files
	ErrInvalidFile = errors.New("invalid file")
	// ErrInvalidWebhookURL is returned for webhook URLs that are not absolute http(s) URLs
	ErrInvalidWebhookURL = errors.New("invalid webhook url")
	// ErrJobNotFound is returned for unknown request IDs
	ErrJobNotFound = repos.ErrJobNotFound
)

// Dispatcher is the part of the worker the job service talks to
type Dispatcher interface {
	Wake()
	Abort(requestID string) bool
}

// SubmitRequest describes an uploaded CSV file
type SubmitRequest struct {
	Filename   string
	Content    io.Reader
	WebhookURL string
}

// Job provides business logic for job operations
type Job struct {
	jobRepo     *repos.JobRepository
	productRepo *repos.ProductRepository
	dispatcher  Dispatcher
	uploadDir   string
}

// NewJobService creates a new job service instance
func NewJobService(jobRepo *repos.JobRepository, productRepo *repos.ProductRepository, dispatcher Dispatcher, uploadDir string) *Job {
	return &Job{
		jobRepo:     jobRepo,
		productRepo: productRepo,
		dispatcher:  dispatcher,
		uploadDir:   uploadDir,
	}
}

// Submit stores the upload, creates a PENDING job and wakes the worker
func (s *Job) Submit(ctx context.Context, req SubmitRequest) (*models.Job, error) {
	name := filepath.Base(strings.ReplaceAll(req.Filename, "\\", "/"))
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return nil, fmt.Errorf("%w: only .csv files are accepted", ErrInvalidFile)
	}
	if err := validateWebhookURL(req.WebhookURL); err != nil {
		return nil, err
	}

	requestID := uuid.NewString()
	if err := os.MkdirAll(s.uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	path := filepath.Join(s.uploadDir, requestID+"_"+storage.SafeName(name))
	if err := writeUpload(path, req.Content); err != nil {
		return nil, err
	}

	job := &models.Job{
		RequestID:   requestID,
		Status:      models.JobStatusPending,
		WebhookURL:  req.WebhookURL,
		CSVFilePath: path,
	}
	if err := s.jobRepo.Create(ctx, job); err != nil {
		_ = os.Remove(path)
		return nil, err
	}

	logger.InfoWithFields("Job submitted", map[string]interface{}{
		"request_id": requestID,
		"file":       path,
	})

	if s.dispatcher != nil {
		s.dispatcher.Wake()
	}
	return job, nil
}

// Status answers a status query from the job record and its product count
func (s *Job) Status(ctx context.Context, requestID string) (*types.JobStatusResponse, error) {
	job, err := s.jobRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return nil, err
	}
	count, err := s.productRepo.Count(ctx, requestID, nil)
	if err != nil {
		return nil, err
	}
	resp := types.NewJobStatusResponse(job, count)
	return &resp, nil
}

// Abort stops a running job or fails a pending one. It reports false for
// jobs that already reached a terminal state.
func (s *Job) Abort(ctx context.Context, requestID string) (bool, error) {
	job, err := s.jobRepo.GetByRequestID(ctx, requestID)
	if err != nil {
		return false, err
	}
	if job.Status.IsTerminal() {
		return false, nil
	}

	if s.dispatcher != nil && s.dispatcher.Abort(requestID) {
		return true, nil
	}

	changed, err := s.jobRepo.FailPending(ctx, requestID, batch.ErrJobAborted.Error())
	if err != nil {
		return false, err
	}
	// the worker may have claimed the job between the two checks
	if s.dispatcher != nil && s.dispatcher.Abort(requestID) {
		return true, nil
	}
	return changed, nil
}

func validateWebhookURL(raw string) error {
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidWebhookURL, err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", ErrInvalidWebhookURL, raw)
	}
	return nil
}

func writeUpload(path string, content io.Reader) error {
	if content == nil {
		return fmt.Errorf("%w: empty upload", ErrInvalidFile)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create upload file: %w", err)
	}
	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("failed to save upload: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("failed to save upload: %w", err)
	}
	return nil
}
