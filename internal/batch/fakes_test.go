package batch

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
	"github.com/eresh-mittal/ImageProc/internal/types"
)

var errStorage = errors.New("storage unavailable")

type webhookResult struct {
	sent   bool
	errMsg string
}

type memJobStore struct {
	mu       sync.Mutex
	updates  []models.JobStatusUpdate
	webhooks []webhookResult
	// left simulates a job failed by an abort before the run claimed it
	left bool
	// onUpdate is called outside the lock after each recorded update
	onUpdate func(models.JobStatusUpdate)
}

func (s *memJobStore) MarkProcessing(ctx context.Context, requestID string) (bool, error) {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return false, nil
	}
	return true, s.UpdateStatus(ctx, requestID, models.JobStatusUpdate{Status: models.JobStatusProcessing})
}

func (s *memJobStore) FailPending(ctx context.Context, requestID, reason string) (bool, error) {
	s.mu.Lock()
	left := s.left
	s.mu.Unlock()
	if left {
		return false, nil
	}
	return true, s.UpdateStatus(ctx, requestID, models.JobStatusUpdate{Status: models.JobStatusFailed, Error: reason})
}

func (s *memJobStore) UpdateStatus(_ context.Context, _ string, update models.JobStatusUpdate) error {
	s.mu.Lock()
	s.updates = append(s.updates, update)
	s.mu.Unlock()
	if s.onUpdate != nil {
		s.onUpdate(update)
	}
	return nil
}

func (s *memJobStore) SetWebhookResult(_ context.Context, _ string, sent bool, errMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.webhooks = append(s.webhooks, webhookResult{sent: sent, errMsg: errMsg})
	return nil
}

func (s *memJobStore) progress() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []float64
	for _, u := range s.updates[1:] {
		out = append(out, u.Progress)
	}
	return out
}

// lastProgress is the highest progress persisted before the final update
func (s *memJobStore) lastProgress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var highest float64
	for _, u := range s.updates[:len(s.updates)-1] {
		if u.Progress > highest {
			highest = u.Progress
		}
	}
	return highest
}

func (s *memJobStore) last() models.JobStatusUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updates[len(s.updates)-1]
}

type memProductStore struct {
	mu       sync.Mutex
	products map[int]*models.Product
	// failUpdate makes UpdateResult fail once okUpdates results were stored
	failUpdate bool
	okUpdates  int
	stored     int
}

func newMemProductStore() *memProductStore {
	return &memProductStore{products: make(map[int]*models.Product)}
}

func (s *memProductStore) Create(_ context.Context, product *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[product.RowIndex]; ok {
		return fmt.Errorf("duplicate row %d", product.RowIndex)
	}
	cp := *product
	s.products[product.RowIndex] = &cp
	return nil
}

func (s *memProductStore) UpdateResult(_ context.Context, _ string, rowIndex int, update models.ProductUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failUpdate && s.stored >= s.okUpdates {
		return errStorage
	}
	p, ok := s.products[rowIndex]
	if !ok {
		return fmt.Errorf("row %d not found", rowIndex)
	}
	p.Status = update.Status
	p.ProcessedImageURL = update.ProcessedImageURL
	p.Error = update.Error
	s.stored++
	return nil
}

func (s *memProductStore) sorted() []models.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RowIndex < out[j].RowIndex })
	return out
}

type sliceLoader struct {
	rows []Row
	err  error
}

func (l sliceLoader) Load(context.Context, *models.Job) ([]Row, error) {
	return l.rows, l.err
}

// mapFetcher serves fixed payloads; unknown URLs fail, "block://" URLs wait
// for cancellation
type mapFetcher struct {
	payloads map[string][]byte
}

func (f mapFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if url == "block://" {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	data, ok := f.payloads[url]
	if !ok {
		return nil, fmt.Errorf("fetch %s: status 404", url)
	}
	return data, nil
}

type memStore struct {
	mu     sync.Mutex
	prefix string
	blobs  map[string][]byte
}

func newMemStore(prefix string) *memStore {
	return &memStore{prefix: prefix, blobs: make(map[string][]byte)}
}

func (s *memStore) Save(ctx context.Context, key string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.blobs[key] = append([]byte(nil), data...)
	return s.prefix + "/" + key, nil
}

func (s *memStore) get(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.blobs[key]
	return data, ok
}

func (s *memStore) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.blobs)
}

// passTransformer returns its input unchanged unless it equals "garbage"
type passTransformer struct{}

func (passTransformer) Transform(_ context.Context, data []byte) ([]byte, error) {
	if string(data) == "garbage" {
		return nil, errors.New("decode failed")
	}
	return data, nil
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []types.CompletionEvent
	err    error
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, event types.CompletionEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return n.err
}

type panicProcessor struct{}

func (panicProcessor) Process(context.Context, string, Row) RowResult {
	panic("boom")
}

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		for y := 0; y < height; y++ {
			img.Set(x, y, color.RGBA{R: 255, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func jpegConfig(data []byte) (image.Config, error) {
	return jpeg.DecodeConfig(bytes.NewReader(data))
}
