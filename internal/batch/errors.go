package batch

import "errors"

var (
	// ErrJobFatal marks errors that fail the whole job
	ErrJobFatal = errors.New("job failed")

	// ErrJobAborted is recorded on jobs stopped through cancellation
	ErrJobAborted = errors.New("job aborted")

	// ErrJobNotPending is returned when a job was claimed or failed elsewhere
	// before the run could start it
	ErrJobNotPending = errors.New("job is no longer pending")

	// ErrNoEntries is recorded on rows whose image cell holds no URL
	ErrNoEntries = errors.New("row has no image urls")
)
