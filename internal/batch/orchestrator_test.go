package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/imaging"
)

const testRequestID = "req-1"

type harness struct {
	jobs     *memJobStore
	products *memProductStore
	images   *memStore
	outputs  *memStore
	notifier *recordingNotifier
	fixedNow time.Time
}

func newHarness() *harness {
	return &harness{
		jobs:     &memJobStore{},
		products: newMemProductStore(),
		images:   newMemStore("/processed_images"),
		outputs:  newMemStore("/outputs"),
		notifier: &recordingNotifier{},
		fixedNow: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (h *harness) orchestrator(loader Loader, processor Processor, rowConcurrency int) *Orchestrator {
	return NewOrchestrator(h.jobs, h.products, loader, processor, NewCSVResultWriter(h.outputs), h.notifier, Options{
		RowConcurrency: rowConcurrency,
		Now:            func() time.Time { return h.fixedNow },
	})
}

func newJob() *models.Job {
	return &models.Job{
		RequestID:   testRequestID,
		Status:      models.JobStatusPending,
		CSVFilePath: "input.csv",
		WebhookURL:  "http://hooks.local/done",
	}
}

func TestOrchestratorThreeRowScenario(t *testing.T) {
	h := newHarness()
	fetcher := mapFetcher{payloads: map[string][]byte{
		"http://img/a.png":   testPNG(t, 8, 8),
		"http://img/b.png":   testPNG(t, 4, 6),
		"http://img/bad.png": []byte("not an image"),
	}}
	processor := NewRowProcessor(fetcher, imaging.NewResizer(5*time.Second), h.images, 2)
	rows := []Row{
		{Index: 0, ProductID: "P1", RawImageURL: "http://img/a.png"},
		{Index: 1, ProductID: "P2", RawImageURL: "http://img/b.png,http://img/bad.png"},
		{Index: 2, ProductID: "P3", RawImageURL: ""},
	}

	job := newJob()
	err := h.orchestrator(sliceLoader{rows: rows}, processor, 3).Run(context.Background(), job)
	require.NoError(t, err)

	// progress
	progress := h.jobs.progress()
	require.Len(t, progress, 3)
	assert.InDelta(t, 1.0/3, progress[0], 1e-9)
	assert.InDelta(t, 2.0/3, progress[1], 1e-9)
	assert.Equal(t, 1.0, progress[2])

	final := h.jobs.last()
	assert.Equal(t, models.JobStatusCompleted, final.Status)
	require.NotNil(t, final.CompletedAt)
	assert.Equal(t, h.fixedNow, *final.CompletedAt)
	assert.Equal(t, "/outputs/req-1_output.csv", final.OutputCSVURL)
	assert.Equal(t, models.JobStatusCompleted, job.Status)

	// rows
	products := h.products.sorted()
	require.Len(t, products, 3)
	assert.Equal(t, models.ProductStatusCompleted, products[0].Status)
	assert.Equal(t, "/processed_images/req-1/0_P1_resized.jpg", products[0].ProcessedImageURL)
	assert.Equal(t, models.ProductStatusPartial, products[1].Status)
	assert.Equal(t, "/processed_images/req-1/1_P2_0_resized.jpg", products[1].ProcessedImageURL)
	assert.Contains(t, products[1].Error, "entry 1")
	assert.Equal(t, models.ProductStatusFailed, products[2].Status)
	assert.Empty(t, products[2].ProcessedImageURL)
	assert.Equal(t, ErrNoEntries.Error(), products[2].Error)

	resized, ok := h.images.get("req-1/0_P1_resized.jpg")
	require.True(t, ok)
	cfg, err := jpegConfig(resized)
	require.NoError(t, err)
	assert.Equal(t, 4, cfg.Width)

	// artifact
	artifact, ok := h.outputs.get("req-1_output.csv")
	require.True(t, ok)
	want := "product_id,original_image_url,processed_image_url,status\n" +
		"P1,http://img/a.png,/processed_images/req-1/0_P1_resized.jpg,COMPLETED\n" +
		"P2,\"http://img/b.png,http://img/bad.png\",/processed_images/req-1/1_P2_0_resized.jpg,PARTIAL\n" +
		"P3,,,FAILED\n"
	assert.Equal(t, want, string(artifact))

	// notification
	require.Len(t, h.notifier.events, 1)
	assert.Equal(t, testRequestID, h.notifier.events[0].RequestID)
	assert.Equal(t, "COMPLETED", h.notifier.events[0].Status)
	assert.Equal(t, "/outputs/req-1_output.csv", h.notifier.events[0].OutputCSVURL)
	require.Len(t, h.jobs.webhooks, 1)
	assert.True(t, h.jobs.webhooks[0].sent)
	assert.True(t, job.WebhookSent)
}

func TestOrchestratorLoadFailure(t *testing.T) {
	h := newHarness()
	job := newJob()
	loader := sliceLoader{err: errors.New("cannot parse input")}

	err := h.orchestrator(loader, NewRowProcessor(mapFetcher{}, passTransformer{}, h.images, 1), 2).
		Run(context.Background(), job)
	require.ErrorIs(t, err, ErrJobFatal)

	require.Len(t, h.jobs.updates, 1, "PENDING goes straight to FAILED")
	assert.Equal(t, models.JobStatusFailed, h.jobs.updates[0].Status)
	assert.Contains(t, h.jobs.updates[0].Error, "cannot parse input")
	assert.Empty(t, h.products.sorted())
	assert.Zero(t, h.outputs.len())
	assert.Empty(t, h.notifier.events)
	assert.Equal(t, models.JobStatusFailed, job.Status)
}

func TestOrchestratorNotificationFailureKeepsCompleted(t *testing.T) {
	h := newHarness()
	h.notifier.err = errors.New("dial tcp: connection refused")
	rows := []Row{{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"}}
	fetcher := mapFetcher{payloads: map[string][]byte{"http://img/a": []byte("a")}}

	job := newJob()
	err := h.orchestrator(sliceLoader{rows: rows}, NewRowProcessor(fetcher, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), job)
	require.NoError(t, err)

	assert.Equal(t, models.JobStatusCompleted, h.jobs.last().Status)
	assert.Equal(t, 1, h.outputs.len())
	require.Len(t, h.jobs.webhooks, 1)
	assert.False(t, h.jobs.webhooks[0].sent)
	assert.Contains(t, h.jobs.webhooks[0].errMsg, "connection refused")
	assert.Equal(t, models.JobStatusCompleted, job.Status)
}

func TestOrchestratorWithoutWebhookRecordsNothing(t *testing.T) {
	h := newHarness()
	job := newJob()
	job.WebhookURL = ""

	err := h.orchestrator(sliceLoader{}, NewRowProcessor(mapFetcher{}, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), job)
	require.NoError(t, err)
	assert.Empty(t, h.jobs.webhooks)
}

func TestOrchestratorEmptyInput(t *testing.T) {
	h := newHarness()
	err := h.orchestrator(sliceLoader{}, NewRowProcessor(mapFetcher{}, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), newJob())
	require.NoError(t, err)

	require.Len(t, h.jobs.updates, 2)
	assert.Equal(t, models.JobStatusCompleted, h.jobs.last().Status)
	assert.Equal(t, 1.0, h.jobs.last().Progress)
	artifact, ok := h.outputs.get("req-1_output.csv")
	require.True(t, ok)
	assert.Equal(t, "product_id,original_image_url,processed_image_url,status\n", string(artifact))
}

func TestOrchestratorConcurrencyDoesNotChangeOutput(t *testing.T) {
	payloads := map[string][]byte{}
	var rows []Row
	for i := 0; i < 25; i++ {
		raw := fmt.Sprintf("http://img/%d-a", i)
		payloads[raw] = []byte(raw)
		if i%3 == 0 {
			raw += fmt.Sprintf(",http://img/%d-missing", i)
		}
		if i%5 == 0 {
			raw = ""
		}
		rows = append(rows, Row{Index: i, ProductID: fmt.Sprintf("P%d", i), RawImageURL: raw})
	}

	run := func(concurrency int) ([]byte, []float64) {
		h := newHarness()
		processor := NewRowProcessor(mapFetcher{payloads: payloads}, passTransformer{}, h.images, concurrency)
		err := h.orchestrator(sliceLoader{rows: rows}, processor, concurrency).Run(context.Background(), newJob())
		require.NoError(t, err)
		artifact, ok := h.outputs.get("req-1_output.csv")
		require.True(t, ok)
		return artifact, h.jobs.progress()
	}

	sequentialArtifact, sequentialProgress := run(1)
	parallelArtifact, parallelProgress := run(8)

	assert.True(t, bytes.Equal(sequentialArtifact, parallelArtifact))
	assert.Equal(t, sequentialProgress, parallelProgress)
	require.Len(t, parallelProgress, len(rows))
	for i := 1; i < len(parallelProgress); i++ {
		assert.Greater(t, parallelProgress[i], parallelProgress[i-1])
	}
}

func TestOrchestratorAbort(t *testing.T) {
	h := newHarness()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// abort once the first row has been committed
	h.jobs.onUpdate = func(update models.JobStatusUpdate) {
		if update.Status == models.JobStatusProcessing && update.Progress > 0 {
			cancel()
		}
	}

	rows := []Row{
		{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"},
		{Index: 1, ProductID: "P2", RawImageURL: "block://"},
		{Index: 2, ProductID: "P3", RawImageURL: "http://img/a"},
	}
	fetcher := mapFetcher{payloads: map[string][]byte{"http://img/a": []byte("a")}}

	job := newJob()
	err := h.orchestrator(sliceLoader{rows: rows}, NewRowProcessor(fetcher, passTransformer{}, h.images, 1), 1).
		Run(ctx, job)
	require.ErrorIs(t, err, ErrJobAborted)

	final := h.jobs.last()
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.Equal(t, "job aborted", final.Error)
	assert.Equal(t, models.JobStatusFailed, job.Status)
	assert.InDelta(t, 1.0/3, final.Progress, 1e-9, "abort keeps the persisted progress")
	assert.InDelta(t, h.jobs.lastProgress(), final.Progress, 1e-9)
	assert.InDelta(t, 1.0/3, job.Progress, 1e-9)

	products := h.products.sorted()
	require.NotEmpty(t, products)
	assert.Equal(t, models.ProductStatusCompleted, products[0].Status)
	for _, p := range products[1:] {
		assert.Equal(t, models.ProductStatusPending, p.Status)
	}
	assert.Zero(t, h.outputs.len())
	assert.Empty(t, h.notifier.events)
}

func TestOrchestratorStorageFaultFailsJob(t *testing.T) {
	h := newHarness()
	h.products.failUpdate = true
	rows := []Row{
		{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"},
		{Index: 1, ProductID: "P2", RawImageURL: "http://img/a"},
	}
	fetcher := mapFetcher{payloads: map[string][]byte{"http://img/a": []byte("a")}}

	err := h.orchestrator(sliceLoader{rows: rows}, NewRowProcessor(fetcher, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), newJob())
	require.ErrorIs(t, err, ErrJobFatal)
	require.ErrorIs(t, err, errStorage)

	assert.Equal(t, models.JobStatusFailed, h.jobs.last().Status)
	assert.Zero(t, h.outputs.len())
	assert.Empty(t, h.notifier.events)
}

func TestOrchestratorStorageFaultKeepsProgress(t *testing.T) {
	h := newHarness()
	h.products.failUpdate = true
	h.products.okUpdates = 2
	rows := []Row{
		{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"},
		{Index: 1, ProductID: "P2", RawImageURL: "http://img/a"},
		{Index: 2, ProductID: "P3", RawImageURL: "http://img/a"},
		{Index: 3, ProductID: "P4", RawImageURL: "http://img/a"},
	}
	fetcher := mapFetcher{payloads: map[string][]byte{"http://img/a": []byte("a")}}

	job := newJob()
	err := h.orchestrator(sliceLoader{rows: rows}, NewRowProcessor(fetcher, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), job)
	require.ErrorIs(t, err, errStorage)

	progress := h.jobs.progress()
	require.Len(t, progress, 3)
	assert.InDelta(t, 0.25, progress[0], 1e-9)
	assert.InDelta(t, 0.5, progress[1], 1e-9)

	final := h.jobs.last()
	assert.Equal(t, models.JobStatusFailed, final.Status)
	assert.InDelta(t, 0.5, final.Progress, 1e-9)
	assert.InDelta(t, 0.5, job.Progress, 1e-9)
}

func TestOrchestratorSkipsJobNoLongerPending(t *testing.T) {
	h := newHarness()
	h.jobs.left = true
	rows := []Row{{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"}}
	fetcher := mapFetcher{payloads: map[string][]byte{"http://img/a": []byte("a")}}

	job := newJob()
	err := h.orchestrator(sliceLoader{rows: rows}, NewRowProcessor(fetcher, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), job)
	require.ErrorIs(t, err, ErrJobNotPending)

	assert.Empty(t, h.jobs.updates, "no status is written over the existing one")
	assert.Empty(t, h.products.sorted())
	assert.Zero(t, h.images.len())
	assert.Zero(t, h.outputs.len())
	assert.Empty(t, h.notifier.events)
	assert.Equal(t, models.JobStatusPending, job.Status)
}

func TestOrchestratorLoadFailureAfterAbortKeepsState(t *testing.T) {
	h := newHarness()
	h.jobs.left = true

	err := h.orchestrator(sliceLoader{err: errors.New("cannot parse input")}, NewRowProcessor(mapFetcher{}, passTransformer{}, h.images, 1), 1).
		Run(context.Background(), newJob())
	require.ErrorIs(t, err, ErrJobNotPending)
	assert.Empty(t, h.jobs.updates)
}

func TestOrchestratorWorkerPanicFailsJob(t *testing.T) {
	h := newHarness()
	rows := []Row{{Index: 0, ProductID: "P1", RawImageURL: "http://img/a"}}

	err := h.orchestrator(sliceLoader{rows: rows}, panicProcessor{}, 1).Run(context.Background(), newJob())
	require.ErrorIs(t, err, ErrJobFatal)
	assert.Equal(t, models.JobStatusFailed, h.jobs.last().Status)
	assert.Contains(t, h.jobs.last().Error, "panicked")
	assert.Zero(t, h.outputs.len())
}
