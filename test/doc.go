// Package test provides infrastructure and utilities for integration testing in ImageProc.
//
// The test package implements a complete test environment that runs the real
// API server, worker and job pipeline against a file-based SQLite database,
// while external parties are replaced by local HTTP servers.
//
// The package provides:
//
//   - Suite: a struct that manages a complete test setup including the
//     database, the assembled application, an API client and the background
//     worker
//
//   - ImageServer: serves generated PNG images, missing images and slow
//     responses for the fetch stage
//
//   - WebhookRecorder: receives completion events sent by the notifier
//
// Example Usage:
//
//	func TestExample(t *testing.T) {
//	    suite := test.NewSuite(t)
//	    defer suite.Cleanup()
//
//	    resp, err := suite.APIClient.Upload(suite.Context(), client.UploadParams{FilePath: path})
//	    // ...
//	    status := suite.WaitForStatus(resp.RequestID, "COMPLETED")
//	}
package test
