// Package handlers provides HTTP request handling
package handlers

// Job error messages
const (
	ErrMsgFileRequired       = "csvFile is required"
	ErrMsgFileOpenFailed     = "Failed to read uploaded file"
	ErrMsgSubmitFailed       = "Failed to submit job"
	ErrMsgJobIDRequired      = "Request id is required"
	ErrMsgJobNotFound        = "Job not found"
	ErrMsgJobStatusFailed    = "Failed to get job status"
	ErrMsgJobAbortFailed     = "Failed to abort job"
	ErrMsgJobAlreadyFinished = "Job already finished"
)

// MsgUploadAccepted confirms an accepted upload
const MsgUploadAccepted = "File uploaded successfully"
