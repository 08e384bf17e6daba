// Package client provides unit tests for the API client.
//
// The tests use httptest to create a mock server that simulates the API,
// allowing the client to be tested without requiring an actual API server.
package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	fiber "github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eresh-mittal/ImageProc/pkg/types"
)

// TestNewClient tests the NewClient function with various configurations.
func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		opts    *Options
		wantErr bool
	}{
		{name: "nil options"},
		{name: "valid options", opts: &Options{BaseURL: "http://example.com", Timeout: 10 * time.Second}},
		{name: "invalid base URL", opts: &Options{BaseURL: "://bad"}, wantErr: true},
		{name: "missing host", opts: &Options{BaseURL: "example"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(tt.opts)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			apiClient, ok := c.(*APIClient)
			require.True(t, ok)
			if tt.opts == nil {
				assert.Equal(t, DefaultOptions().BaseURL, apiClient.baseURL)
				assert.Equal(t, DefaultTimeout, apiClient.timeout)
			}
		})
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	c, err := NewClient(&Options{BaseURL: server.URL, Timeout: 5 * time.Second})
	require.NoError(t, err)
	return c
}

func TestClient_Upload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "products.csv")
	require.NoError(t, os.WriteFile(path, []byte("product_id,image_url\n"), 0o600))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/upload", r.URL.Path)

		file, header, err := r.FormFile("csvFile")
		if assert.NoError(t, err) {
			defer file.Close()
			data, _ := io.ReadAll(file)
			assert.Equal(t, "products.csv", header.Filename)
			assert.Equal(t, "product_id,image_url\n", string(data))
		}
		assert.Equal(t, "https://example.com/hook", r.FormValue("webhookUrl"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(types.UploadResponse{Message: "ok", RequestID: "req-1"})
	})

	resp, err := c.Upload(context.Background(), UploadParams{FilePath: path, WebhookURL: "https://example.com/hook"})
	require.NoError(t, err)
	assert.Equal(t, "req-1", resp.RequestID)

	_, err = c.Upload(context.Background(), UploadParams{FilePath: filepath.Join(t.TempDir(), "missing.csv")})
	require.Error(t, err)
}

func TestClient_GetStatus(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/status/req-1":
			_ = json.NewEncoder(w).Encode(types.JobStatusResponse{RequestID: "req-1", Status: "COMPLETED", Progress: 1})
		default:
			w.WriteHeader(http.StatusNotFound)
			_ = json.NewEncoder(w).Encode(types.SlugResponse{Slug: types.NotFoundSlug, Error: "Job not found"})
		}
	})

	status, err := c.GetStatus(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, "COMPLETED", status.Status)

	_, err = c.GetStatus(context.Background(), "missing")
	var fiberErr *fiber.Error
	require.True(t, errors.As(err, &fiberErr))
	assert.Equal(t, http.StatusNotFound, fiberErr.Code)
	assert.Equal(t, "Job not found", fiberErr.Message)
}

func TestClient_AbortAndHealth(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/health":
			_ = json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
		case r.Method == http.MethodPost && r.URL.Path == "/api/abort/req-1":
			_ = json.NewEncoder(w).Encode(types.AbortResponse{RequestID: "req-1", Aborted: true})
		default:
			w.WriteHeader(http.StatusTeapot)
		}
	})

	health, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "healthy", health["status"])

	abort, err := c.Abort(context.Background(), "req-1")
	require.NoError(t, err)
	assert.True(t, abort.Aborted)
}
