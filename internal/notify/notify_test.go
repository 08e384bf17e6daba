package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eresh-mittal/ImageProc/internal/types"
)

var testEvent = types.CompletionEvent{
	RequestID:    "req-1",
	Status:       "COMPLETED",
	OutputCSVURL: "/outputs/req-1_output.csv",
}

func TestWebhookDelivers(t *testing.T) {
	received := make(chan types.CompletionEvent, 1)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		var event types.CompletionEvent
		assert.NoError(t, json.Unmarshal(body, &event))
		received <- event
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewWebhook(time.Second).Notify(context.Background(), server.URL, testEvent)
	require.NoError(t, err)
	assert.Equal(t, testEvent, <-received)
}

func TestWebhookFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	webhook := NewWebhook(time.Second)

	err := webhook.Notify(context.Background(), server.URL, testEvent)
	require.ErrorIs(t, err, ErrNotification)
	assert.Contains(t, err.Error(), "500")

	err = webhook.Notify(context.Background(), "http://127.0.0.1:1/hook", testEvent)
	require.ErrorIs(t, err, ErrNotification)
}

func TestWebhookEmptyTargetIsNoop(t *testing.T) {
	require.NoError(t, NewWebhook(0).Notify(context.Background(), "", testEvent))
}

type fakePublisher struct {
	subject string
	data    []byte
	err     error
}

func (p *fakePublisher) Publish(subject string, data []byte) error {
	p.subject = subject
	p.data = data
	return p.err
}

func TestNATSPublishes(t *testing.T) {
	pub := &fakePublisher{}
	require.NoError(t, NewNATS(pub).Notify(context.Background(), "ignored", testEvent))

	assert.Equal(t, JobCompleteSubject, pub.subject)
	var event types.CompletionEvent
	require.NoError(t, json.Unmarshal(pub.data, &event))
	assert.Equal(t, testEvent, event)

	pub.err = errors.New("nats: connection closed")
	err := NewNATS(pub).Notify(context.Background(), "", testEvent)
	require.ErrorIs(t, err, ErrNotification)
}

func TestMultiJoinsErrors(t *testing.T) {
	ok := &fakePublisher{}
	broken := &fakePublisher{err: errors.New("down")}

	err := Multi{NewNATS(ok), NewNATS(broken), nil}.Notify(context.Background(), "", testEvent)
	require.ErrorIs(t, err, ErrNotification)
	assert.NotEmpty(t, ok.data, "healthy sinks still receive the event")

	require.NoError(t, Multi{NewNATS(ok), NewWebhook(0)}.Notify(context.Background(), "", testEvent))
}
