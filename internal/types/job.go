package types

import (
	"time"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// UploadResponse is returned when a CSV file has been accepted
// swagger:model
// Example: {"message":"File uploaded successfully","requestId":"3f0c1a52-3a8e-4d3c-9d36-2b8a0a3c4f10"}
type UploadResponse struct {
	// Human readable confirmation
	Message string `json:"message"`

	// Identifier used to query the job
	RequestID string `json:"requestId"`
}

// JobStatusResponse describes the state of a job
// swagger:model
// Example: {"requestId":"3f0c...","status":"PROCESSING","progress":0.5,"createdAt":"2024-01-01T00:00:00Z","completedAt":null,"productsProcessed":2,"outputCsvUrl":null}
type JobStatusResponse struct {
	RequestID string `json:"requestId"`

	// One of PENDING, PROCESSING, COMPLETED, FAILED
	Status string `json:"status"`

	// Fraction of rows finished, between 0 and 1
	Progress float64 `json:"progress"`

	// RFC 3339 timestamps
	CreatedAt   string  `json:"createdAt"`
	CompletedAt *string `json:"completedAt"`

	// Number of product rows recorded for the job
	ProductsProcessed int64 `json:"productsProcessed"`

	// Reference to the result CSV, set once the job has completed
	OutputCSVURL *string `json:"outputCsvUrl"`

	// Failure reason for FAILED jobs
	Error string `json:"error,omitempty"`
}

// NewJobStatusResponse builds the status view of a job
func NewJobStatusResponse(job *models.Job, productsProcessed int64) JobStatusResponse {
	resp := JobStatusResponse{
		RequestID:         job.RequestID,
		Status:            job.Status.String(),
		Progress:          job.Progress,
		CreatedAt:         job.CreatedAt.UTC().Format(time.RFC3339),
		ProductsProcessed: productsProcessed,
		Error:             job.Error,
	}
	if job.CompletedAt != nil {
		completedAt := job.CompletedAt.UTC().Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}
	if job.OutputCSVURL != "" {
		outputURL := job.OutputCSVURL
		resp.OutputCSVURL = &outputURL
	}
	return resp
}

// AbortResponse is returned by the abort endpoint
type AbortResponse struct {
	RequestID string `json:"requestId"`
	Aborted   bool   `json:"aborted"`
}

// CompletionEvent is delivered to the webhook and the event bus once a job completes
// swagger:model
// Example: {"requestId":"3f0c...","status":"COMPLETED","outputCsvUrl":"/outputs/3f0c..._output.csv"}
type CompletionEvent struct {
	RequestID    string `json:"requestId"`
	Status       string `json:"status"`
	OutputCSVURL string `json:"outputCsvUrl"`
}
