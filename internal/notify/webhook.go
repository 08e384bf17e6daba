package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

// DefaultWebhookTimeout bounds a single webhook delivery
const DefaultWebhookTimeout = 30 * time.Second

// Webhook POSTs the event as JSON to the job's webhook URL. Deliveries are
// never retried.
type Webhook struct {
	timeout time.Duration
}

// NewWebhook creates a Webhook; a non-positive timeout uses DefaultWebhookTimeout
func NewWebhook(timeout time.Duration) *Webhook {
	if timeout <= 0 {
		timeout = DefaultWebhookTimeout
	}
	return &Webhook{timeout: timeout}
}

type webhookResponse struct {
	code int
	errs []error
}

// Notify is a no-op for an empty target
func (w *Webhook) Notify(ctx context.Context, target string, event types.CompletionEvent) error {
	if target == "" {
		return nil
	}

	done := make(chan webhookResponse, 1)
	go func() {
		agent := fiber.Post(target)
		agent.Timeout(w.timeout)
		agent.JSON(event)
		code, _, errs := agent.Bytes()
		done <- webhookResponse{code: code, errs: errs}
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("%w: webhook %s: %w", ErrNotification, target, ctx.Err())
	case res := <-done:
		if len(res.errs) > 0 {
			return fmt.Errorf("%w: webhook %s: %w", ErrNotification, target, res.errs[0])
		}
		if res.code < fiber.StatusOK || res.code >= fiber.StatusMultipleChoices {
			return fmt.Errorf("%w: webhook %s returned status %d", ErrNotification, target, res.code)
		}
	}

	logger.InfoWithFields("Webhook delivered", map[string]interface{}{
		"request_id": event.RequestID,
		"target":     target,
	})
	return nil
}
