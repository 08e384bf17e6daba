// Package notify announces completed jobs to webhooks and the event bus
package notify

import (
	"context"
	"errors"

	"github.com/eresh-mittal/ImageProc/internal/types"
)

// ErrNotification wraps every delivery failure
var ErrNotification = errors.New("notification failed")

// Notifier delivers a completion event. target is the job's webhook URL and
// may be empty.
type Notifier interface {
	Notify(ctx context.Context, target string, event types.CompletionEvent) error
}

// Multi fans an event out to every sink and joins their errors
type Multi []Notifier

// Notify delivers to all sinks even when some fail
func (m Multi) Notify(ctx context.Context, target string, event types.CompletionEvent) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(ctx, target, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
