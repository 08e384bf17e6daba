// Package imaging fetches remote images and produces their downscaled copies
package imaging

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
)

// DefaultFetchTimeout bounds a single image download
const DefaultFetchTimeout = 30 * time.Second

// maxRedirects is how many redirects a download follows
const maxRedirects = 5

// ErrFetchTimeout is wrapped by a FetchError when the download outlives the fetch timeout
var ErrFetchTimeout = errors.New("fetch timed out")

// FetchError is returned for any failed download: transport error, timeout,
// cancellation or a non-2xx response
type FetchError struct {
	URL string
	// StatusCode is zero when no response was received
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// HTTPFetcher downloads images with a single GET per URL and no retry
type HTTPFetcher struct {
	timeout time.Duration
}

// NewHTTPFetcher creates a fetcher; a non-positive timeout uses DefaultFetchTimeout
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	return &HTTPFetcher{timeout: timeout}
}

type fetchResponse struct {
	code int
	body []byte
	errs []error
}

// Fetch downloads url and returns the response body. Every failure is
// reported as a *FetchError.
func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	timeout, clamped := f.timeout, false
	if deadline, ok := ctx.Deadline(); ok {
		if until := time.Until(deadline); until < timeout {
			timeout, clamped = until, true
		}
	}

	done := make(chan fetchResponse, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fetchResponse{errs: []error{fmt.Errorf("panic during request: %v", r)}}
			}
		}()
		agent := fiber.Get(url)
		agent.Timeout(timeout)
		agent.MaxRedirectsCount(maxRedirects)
		code, body, errs := agent.Bytes()
		done <- fetchResponse{code: code, body: body, errs: errs}
	}()

	// fasthttp has no context support and ignores the agent timeout while
	// following redirects, so the deadline is enforced here. An abandoned
	// request keeps running in the background until the server lets go.
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, &FetchError{URL: url, Err: ctx.Err()}
	case <-timer.C:
		// a clamped timer expires with the caller's deadline
		if clamped {
			return nil, &FetchError{URL: url, Err: context.DeadlineExceeded}
		}
		return nil, &FetchError{URL: url, Err: ErrFetchTimeout}
	case res := <-done:
		if len(res.errs) > 0 {
			return nil, &FetchError{URL: url, Err: res.errs[0]}
		}
		if res.code < fiber.StatusOK || res.code >= fiber.StatusMultipleChoices {
			return nil, &FetchError{
				URL:        url,
				StatusCode: res.code,
				Err:        fmt.Errorf("unexpected status code"),
			}
		}
		return res.body, nil
	}
}
