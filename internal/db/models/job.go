package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// Field names for job model
const (
	JobRequestIDField    = "request_id"
	JobStatusField       = "status"
	JobProgressField     = "progress"
	JobCompletedAtField  = "completed_at"
	JobOutputCSVURLField = "output_csv_url"
	JobErrorField        = "error"
	JobWebhookSentField  = "webhook_sent"
	JobWebhookErrorField = "webhook_error"
)

// JobStatus represents the lifecycle state of a batch job
type JobStatus string

// Job status constants
const (
	// JobStatusPending is set at intake, before a worker picks the job up
	JobStatusPending JobStatus = "PENDING"
	// JobStatusProcessing is set when the orchestrator starts running rows
	JobStatusProcessing JobStatus = "PROCESSING"
	// JobStatusCompleted is set once every row ran and the artifact is written
	JobStatusCompleted JobStatus = "COMPLETED"
	// JobStatusFailed is set on an unrecoverable, job-level error
	JobStatusFailed JobStatus = "FAILED"
)

// Job is one batch run over an uploaded CSV file
type Job struct {
	gorm.Model
	RequestID    string     `json:"request_id" gorm:"type:varchar(36);uniqueIndex;not null"`
	Status       JobStatus  `json:"status" gorm:"type:varchar(20);not null;index"`
	Progress     float64    `json:"progress" gorm:"not null;default:0"`
	WebhookURL   string     `json:"webhook_url,omitempty" gorm:"type:text"`
	WebhookSent  bool       `json:"webhook_sent" gorm:"not null;default:false"`
	WebhookError string     `json:"webhook_error,omitempty" gorm:"type:text"`
	CSVFilePath  string     `json:"csv_file_path" gorm:"type:text;not null"`
	OutputCSVURL string     `json:"output_csv_url,omitempty" gorm:"type:text"`
	Error        string     `json:"error,omitempty" gorm:"type:text"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// JobStatusUpdate carries the columns written by a status transition.
// Progress is always written; CompletedAt, OutputCSVURL and Error only when set.
type JobStatusUpdate struct {
	Status       JobStatus
	Progress     float64
	CompletedAt  *time.Time
	OutputCSVURL string
	Error        string
}

// String returns the string representation of the job status
func (s JobStatus) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition can happen
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// ParseJobStatus converts a string to a JobStatus
func ParseJobStatus(str string) (JobStatus, error) {
	switch JobStatus(str) {
	case JobStatusPending, JobStatusProcessing, JobStatusCompleted, JobStatusFailed:
		return JobStatus(str), nil
	default:
		return "", fmt.Errorf("invalid job status: %s", str)
	}
}

// UnmarshalJSON implements json.Unmarshaler for JobStatus
func (s *JobStatus) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}

	status, err := ParseJobStatus(str)
	if err != nil {
		return err
	}

	*s = status
	return nil
}

// Validate ensures that the job data is valid
func (j *Job) Validate() error {
	if j.RequestID == "" {
		return fmt.Errorf("job request id cannot be empty")
	}
	if j.CSVFilePath == "" {
		return fmt.Errorf("job csv file path cannot be empty")
	}
	return nil
}

// BeforeCreate is a GORM hook that runs before creating a new job
func (j *Job) BeforeCreate(_ *gorm.DB) error {
	if j.Status == "" {
		j.Status = JobStatusPending
	}
	return j.Validate()
}
