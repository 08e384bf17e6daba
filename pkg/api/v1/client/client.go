// Package client provides the API client for interacting with the image processing API
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	fiber "github.com/gofiber/fiber/v2"

	"github.com/eresh-mittal/ImageProc/pkg/api/v1/handlers"
	"github.com/eresh-mittal/ImageProc/pkg/api/v1/routes"
	"github.com/eresh-mittal/ImageProc/pkg/types"
)

// DefaultTimeout is the default timeout for API requests
const DefaultTimeout = 30 * time.Second

// Client is the interface for API client
type Client interface {
	// Health Check
	HealthCheck(ctx context.Context) (map[string]string, error)

	// Job Endpoints
	Upload(ctx context.Context, params UploadParams) (types.UploadResponse, error)
	GetStatus(ctx context.Context, requestID string) (types.JobStatusResponse, error)
	Abort(ctx context.Context, requestID string) (types.AbortResponse, error)
}

var _ Client = &APIClient{}

// UploadParams describes a CSV file to submit
type UploadParams struct {
	// FilePath is the local CSV file to upload
	FilePath string
	// WebhookURL is optional
	WebhookURL string
}

// Options contains configuration options for the API client
type Options struct {
	// BaseURL is the base URL of the API
	BaseURL string

	// Timeout is the request timeout
	Timeout time.Duration
}

// DefaultOptions returns the default client options
func DefaultOptions() *Options {
	return &Options{
		BaseURL: routes.DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// APIClient implements the Client interface
type APIClient struct {
	baseURL string
	timeout time.Duration
}

// NewClient creates a new API client with the given options
func NewClient(opts *Options) (Client, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	u, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &APIClient{
		baseURL: opts.BaseURL,
		timeout: timeout,
	}, nil
}

// createAgent creates a new Fiber Agent for the given method and endpoint
func (c *APIClient) createAgent(ctx context.Context, method, endpoint string) (*fiber.Agent, error) {
	fullURL := c.baseURL + endpoint

	var agent *fiber.Agent
	switch method {
	case http.MethodGet:
		agent = fiber.Get(fullURL)
	case http.MethodPost:
		agent = fiber.Post(fullURL)
	default:
		return nil, fmt.Errorf("unsupported HTTP method: %s", method)
	}

	// Set timeout from context or client default
	if deadline, ok := ctx.Deadline(); ok {
		agent.Timeout(time.Until(deadline))
	} else {
		agent.Timeout(c.timeout)
	}
	agent.Set("Accept", "application/json")

	return agent, nil
}

// doRequest sends the HTTP request and processes the response
func (c *APIClient) doRequest(agent *fiber.Agent, v interface{}) error {
	statusCode, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("error sending request: %w", errs[0])
	}

	if statusCode < 200 || statusCode >= 300 {
		// Prefer the slug error message when the server sent one
		var slug types.SlugResponse
		if err := json.Unmarshal(body, &slug); err == nil && slug.Error != "" {
			return &fiber.Error{Code: statusCode, Message: slug.Error}
		}
		return &fiber.Error{Code: statusCode, Message: string(body)}
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("error decoding response: %w", err)
		}
	}
	return nil
}

// executeRequest creates an agent, sends the request, and processes the response
func (c *APIClient) executeRequest(ctx context.Context, method, endpoint string, response interface{}) error {
	agent, err := c.createAgent(ctx, method, endpoint)
	if err != nil {
		return err
	}
	return c.doRequest(agent, response)
}

// HealthCheck checks the health of the API
func (c *APIClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	var response map[string]string
	if err := c.executeRequest(ctx, http.MethodGet, routes.HealthCheckURL(), &response); err != nil {
		return nil, err
	}
	return response, nil
}

// Upload submits a CSV file as a multipart form
func (c *APIClient) Upload(ctx context.Context, params UploadParams) (types.UploadResponse, error) {
	var response types.UploadResponse
	if params.FilePath == "" {
		return response, fmt.Errorf("file path is required")
	}
	if _, err := os.Stat(params.FilePath); err != nil {
		return response, fmt.Errorf("cannot read %s: %w", params.FilePath, err)
	}

	agent, err := c.createAgent(ctx, http.MethodPost, routes.UploadURL())
	if err != nil {
		return response, err
	}

	args := fiber.AcquireArgs()
	defer fiber.ReleaseArgs(args)
	if params.WebhookURL != "" {
		args.Set(handlers.FormFieldWebhookURL, params.WebhookURL)
	}
	agent.SendFile(params.FilePath, handlers.FormFieldCSVFile).MultipartForm(args)

	if err := c.doRequest(agent, &response); err != nil {
		return response, err
	}
	return response, nil
}

// GetStatus retrieves the status of a job
func (c *APIClient) GetStatus(ctx context.Context, requestID string) (types.JobStatusResponse, error) {
	var response types.JobStatusResponse
	err := c.executeRequest(ctx, http.MethodGet, routes.GetStatusURL(requestID), &response)
	return response, err
}

// Abort stops a pending or running job
func (c *APIClient) Abort(ctx context.Context, requestID string) (types.AbortResponse, error) {
	var response types.AbortResponse
	err := c.executeRequest(ctx, http.MethodPost, routes.AbortJobURL(requestID), &response)
	return response, err
}
