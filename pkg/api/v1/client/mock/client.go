// Package mock provides a function-field implementation of client.Client for tests
package mock

import (
	"context"
	"sync"

	"github.com/eresh-mittal/ImageProc/pkg/api/v1/client"
	"github.com/eresh-mittal/ImageProc/pkg/types"
)

var _ client.Client = &MockClient{}

// MockClient implements the Client interface for testing
type MockClient struct {
	// Function fields that can be set to mock behavior
	HealthCheckFn func(ctx context.Context) (map[string]string, error)
	UploadFn      func(ctx context.Context, params client.UploadParams) (types.UploadResponse, error)
	GetStatusFn   func(ctx context.Context, requestID string) (types.JobStatusResponse, error)
	AbortFn       func(ctx context.Context, requestID string) (types.AbortResponse, error)

	mu sync.Mutex

	// Call tracking for verification
	UploadCalls    []client.UploadParams
	GetStatusCalls []string
	AbortCalls     []string
}

// HealthCheck implements the Client interface
func (m *MockClient) HealthCheck(ctx context.Context) (map[string]string, error) {
	if m.HealthCheckFn != nil {
		return m.HealthCheckFn(ctx)
	}
	return map[string]string{"status": "healthy"}, nil
}

// Upload implements the Client interface
func (m *MockClient) Upload(ctx context.Context, params client.UploadParams) (types.UploadResponse, error) {
	m.mu.Lock()
	m.UploadCalls = append(m.UploadCalls, params)
	m.mu.Unlock()
	if m.UploadFn != nil {
		return m.UploadFn(ctx, params)
	}
	return types.UploadResponse{}, nil
}

// GetStatus implements the Client interface
func (m *MockClient) GetStatus(ctx context.Context, requestID string) (types.JobStatusResponse, error) {
	m.mu.Lock()
	m.GetStatusCalls = append(m.GetStatusCalls, requestID)
	m.mu.Unlock()
	if m.GetStatusFn != nil {
		return m.GetStatusFn(ctx, requestID)
	}
	return types.JobStatusResponse{}, nil
}

// Abort implements the Client interface
func (m *MockClient) Abort(ctx context.Context, requestID string) (types.AbortResponse, error) {
	m.mu.Lock()
	m.AbortCalls = append(m.AbortCalls, requestID)
	m.mu.Unlock()
	if m.AbortFn != nil {
		return m.AbortFn(ctx, requestID)
	}
	return types.AbortResponse{}, nil
}
