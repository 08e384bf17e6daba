package test

import (
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/eresh-mittal/ImageProc/pkg/types"
)

// Image server paths
const (
	// imagePathPrefix serves /images/<width>x<height>.png
	imagePathPrefix = "/images/"
	// MissingImagePath always answers 404
	MissingImagePath = "/missing.png"
	// SlowImagePath blocks until the client gives up or the server closes
	SlowImagePath = "/slow.png"
)

// ImageServer serves generated images for the fetch stage
type ImageServer struct {
	*httptest.Server

	release  chan struct{}
	once     sync.Once
	mu       sync.Mutex
	requests int
}

// NewImageServer starts an image server
func NewImageServer() *ImageServer {
	s := &ImageServer{release: make(chan struct{})}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// ImageURL returns the URL of a generated PNG of the given size
func (s *ImageServer) ImageURL(width, height int) string {
	return fmt.Sprintf("%s%s%dx%d.png", s.URL, imagePathPrefix, width, height)
}

// MissingURL returns a URL that answers 404
func (s *ImageServer) MissingURL() string {
	return s.URL + MissingImagePath
}

// SlowURL returns a URL that never answers on its own
func (s *ImageServer) SlowURL() string {
	return s.URL + SlowImagePath
}

// Requests returns the number of requests served so far
func (s *ImageServer) Requests() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

// Close releases blocked handlers and stops the server
func (s *ImageServer) Close() {
	s.once.Do(func() { close(s.release) })
	s.Server.Close()
}

func (s *ImageServer) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.requests++
	s.mu.Unlock()

	switch {
	case r.URL.Path == SlowImagePath:
		select {
		case <-r.Context().Done():
		case <-s.release:
		}
		w.WriteHeader(http.StatusServiceUnavailable)
	case strings.HasPrefix(r.URL.Path, imagePathPrefix):
		width, height, ok := parseSize(strings.TrimPrefix(r.URL.Path, imagePathPrefix))
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		_ = png.Encode(w, gradient(width, height))
	default:
		http.NotFound(w, r)
	}
}

// parseSize reads "<width>x<height>.png"
func parseSize(name string) (int, int, bool) {
	dims := strings.SplitN(strings.TrimSuffix(name, ".png"), "x", 2)
	if len(dims) != 2 {
		return 0, 0, false
	}
	width, err := strconv.Atoi(dims[0])
	if err != nil || width < 1 {
		return 0, 0, false
	}
	height, err := strconv.Atoi(dims[1])
	if err != nil || height < 1 {
		return 0, 0, false
	}
	return width, height, true
}

func gradient(width, height int) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 255 / width), G: uint8(y * 255 / height), B: 128, A: 255})
		}
	}
	return img
}

// WebhookRecorder collects completion events posted to it
type WebhookRecorder struct {
	*httptest.Server

	events chan types.CompletionEvent
}

// NewWebhookRecorder starts a webhook receiver
func NewWebhookRecorder() *WebhookRecorder {
	rec := &WebhookRecorder{events: make(chan types.CompletionEvent, 16)}
	rec.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var event types.CompletionEvent
		if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		select {
		case rec.events <- event:
		default:
		}
		w.WriteHeader(http.StatusOK)
	}))
	return rec
}

// Next waits for the next event
func (r *WebhookRecorder) Next(timeout time.Duration) (types.CompletionEvent, bool) {
	select {
	case event := <-r.events:
		return event, true
	case <-time.After(timeout):
		return types.CompletionEvent{}, false
	}
}

// SetupFixtures starts the image server and webhook receiver of the suite
func SetupFixtures(suite *Suite) {
	suite.Images = NewImageServer()
	suite.Webhook = NewWebhookRecorder()
	suite.addCleanup(func() {
		suite.Images.Close()
		suite.Webhook.Close()
	})
}
