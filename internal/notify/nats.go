package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

// JobCompleteSubject is the subject completion events are published on
const JobCompleteSubject = "jobs.complete"

// Publisher is the subset of *nats.Conn used for publishing
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATS publishes completion events on the event bus, ignoring the webhook target
type NATS struct {
	publisher Publisher
	subject   string
}

// NewNATS creates a NATS notifier publishing on JobCompleteSubject
func NewNATS(publisher Publisher) *NATS {
	return &NATS{publisher: publisher, subject: JobCompleteSubject}
}

// ConnectNATS dials url and returns a notifier plus the connection to close
func ConnectNATS(url string) (*NATS, *nats.Conn, error) {
	nc, err := nats.Connect(url, nats.Name("imageproc"))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to NATS at %s: %w", url, err)
	}
	return NewNATS(nc), nc, nil
}

// Notify publishes the event as JSON
func (n *NATS) Notify(ctx context.Context, _ string, event types.CompletionEvent) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrNotification, n.subject, err)
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("%w: encode event: %w", ErrNotification, err)
	}
	if err := n.publisher.Publish(n.subject, data); err != nil {
		return fmt.Errorf("%w: publish %s: %w", ErrNotification, n.subject, err)
	}

	logger.InfoWithFields("Published completion", map[string]interface{}{
		"request_id": event.RequestID,
		"subject":    n.subject,
	})
	return nil
}
