package test

import (
	"net/http/httptest"
	"path/filepath"
	"time"

	"github.com/gofiber/fiber/v2/middleware/adaptor"

	"github.com/eresh-mittal/ImageProc/config"
	"github.com/eresh-mittal/ImageProc/internal/app"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/client"
)

// testClientTimeout is the timeout for test API client requests
const testClientTimeout = 5 * time.Second

// TestConfig returns a configuration rooted at dataDir with short timeouts
func TestConfig(dataDir string) config.Config {
	return config.Config{
		BodyLimit:         config.DefaultBodyLimit,
		UploadDir:         filepath.Join(dataDir, "uploads"),
		ProcessedDir:      filepath.Join(dataDir, "processed_images"),
		OutputDir:         filepath.Join(dataDir, "outputs"),
		RowConcurrency:    2,
		EntryConcurrency:  2,
		MaxConcurrentJobs: 2,
		FetchTimeout:      5 * time.Second,
		TransformTimeout:  5 * time.Second,
		WebhookTimeout:    5 * time.Second,
		PollInterval:      50 * time.Millisecond,
	}
}

// SetupServer configures the test suite with a real API server and worker
func SetupServer(suite *Suite, opts ...Option) {
	suite.Config = TestConfig(suite.DataDir)
	for _, opt := range opts {
		opt(&suite.Config)
	}

	application, err := app.New(suite.Config, suite.DB)
	suite.Require().NoError(err, "Failed to assemble application")
	suite.App = application

	// Create test server using adaptor to convert Fiber app to http.Handler
	suite.Server = httptest.NewServer(adaptor.FiberApp(application.Fiber))

	suite.workers.Add(1)
	go application.Start(suite.ctx, &suite.workers)

	// Create API client with test configuration
	apiClient, err := client.NewClient(&client.Options{
		BaseURL: suite.Server.URL,
		Timeout: testClientTimeout,
	})
	suite.Require().NoError(err, "Failed to create API client")
	suite.APIClient = apiClient

	suite.addCleanup(func() {
		// Stop the worker before the database goes away
		suite.cancelFunc()
		suite.workers.Wait()
		suite.Server.Close()
		application.Close()
	})
}
