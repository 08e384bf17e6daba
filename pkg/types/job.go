package types

import (
	internaltypes "github.com/eresh-mittal/ImageProc/internal/types"
)

// UploadResponse is returned when a CSV file has been accepted (public alias).
type UploadResponse = internaltypes.UploadResponse

// JobStatusResponse describes the state of a job (public alias).
type JobStatusResponse = internaltypes.JobStatusResponse

// AbortResponse is returned by the abort endpoint (public alias).
type AbortResponse = internaltypes.AbortResponse

// CompletionEvent is the payload delivered once a job completes (public alias).
type CompletionEvent = internaltypes.CompletionEvent
