package test

import (
	"context"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/eresh-mittal/ImageProc/config"
	"github.com/eresh-mittal/ImageProc/internal/app"
	"github.com/eresh-mittal/ImageProc/internal/db/repos"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/client"
	"github.com/eresh-mittal/ImageProc/pkg/types"
)

// DefaultTestTimeout is the default timeout for test suites.
const DefaultTestTimeout = 30 * time.Second

// statusPollInterval is how often WaitForStatus polls the API
const statusPollInterval = 25 * time.Millisecond

// Suite encapsulates all components needed for integration testing.
// It provides a complete test setup with:
//   - File-based SQLite database
//   - Real API server and worker
//   - Real API client
//   - Local image and webhook servers
type Suite struct {
	t *testing.T // The testing.T instance for this suite

	// Server components
	App    *app.App
	Server *httptest.Server
	Config config.Config

	// Client components
	APIClient client.Client

	// External parties
	Images  *ImageServer
	Webhook *WebhookRecorder

	// Database components
	DB          *gorm.DB
	DataDir     string
	JobRepo     *repos.JobRepository
	ProductRepo *repos.ProductRepository

	// Context management
	ctx        context.Context
	cancelFunc context.CancelFunc
	workers    sync.WaitGroup

	// Cleanup function
	cleanup func()
}

// Option adjusts the configuration of a suite before the server starts.
type Option func(*config.Config)

// WithMaxConcurrentJobs limits how many jobs the worker runs at once.
func WithMaxConcurrentJobs(n int) Option {
	return func(cfg *config.Config) {
		cfg.MaxConcurrentJobs = n
	}
}

// WithFetchTimeout sets the per-image fetch timeout.
func WithFetchTimeout(d time.Duration) Option {
	return func(cfg *config.Config) {
		cfg.FetchTimeout = d
	}
}

// NewSuite creates a new test suite with the given options.
// The suite must be cleaned up after use by calling Cleanup.
func NewSuite(t *testing.T, opts ...Option) *Suite {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), DefaultTestTimeout)

	suite := &Suite{
		t:          t,
		ctx:        ctx,
		cancelFunc: cancel,
	}
	suite.cleanup = func() {
		if suite.cancelFunc != nil {
			suite.cancelFunc()
		}
	}

	SetupTestDB(suite)
	SetupFixtures(suite)
	SetupServer(suite, opts...)

	return suite
}

// addCleanup registers fn to run before every previously registered step.
func (s *Suite) addCleanup(fn func()) {
	previous := s.cleanup
	s.cleanup = func() {
		fn()
		if previous != nil {
			previous()
		}
	}
}

// Cleanup tears down the test suite, releasing all resources.
// This should be deferred immediately after creating the suite.
func (s *Suite) Cleanup() {
	if s.cleanup != nil {
		s.cleanup()
		s.cleanup = nil
	}
}

// T returns the testing.T instance for this suite
func (s *Suite) T() *testing.T {
	return s.t
}

// Context returns the suite's context, which is automatically
// canceled when the suite is cleaned up.
func (s *Suite) Context() context.Context {
	return s.ctx
}

// Require returns a require.Assertions instance for this suite.
// This is a convenience method to avoid passing t around.
func (s *Suite) Require() *require.Assertions {
	return require.New(s.t)
}

// Retry retries a function until it succeeds or the number of retries is reached.
func (s *Suite) Retry(fn func() error, retries int, interval time.Duration) (err error) {
	for i := 0; i < retries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		time.Sleep(interval)
	}
	return
}

// WaitForStatus polls the status endpoint until the job reports want or the
// suite context expires.
func (s *Suite) WaitForStatus(requestID, want string) types.JobStatusResponse {
	s.t.Helper()

	var last types.JobStatusResponse
	for {
		status, err := s.APIClient.GetStatus(s.ctx, requestID)
		s.Require().NoError(err, "Failed to get job status")
		last = status
		if status.Status == want {
			return status
		}

		select {
		case <-s.ctx.Done():
			s.t.Fatalf("job %s did not reach %s, last status %+v", requestID, want, last)
			return last
		case <-time.After(statusPollInterval):
		}
	}
}
