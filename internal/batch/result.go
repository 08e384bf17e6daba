package batch

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// ResultHeader is the header row of every result CSV
var ResultHeader = []string{"product_id", "original_image_url", "processed_image_url", "status"}

// ArtifactKey names the result CSV of a job
func ArtifactKey(requestID string) string {
	return requestID + "_output.csv"
}

// CSVResultWriter encodes row results and stores them as the job artifact
type CSVResultWriter struct {
	outputs Store
}

// NewCSVResultWriter creates a writer saving into outputs
func NewCSVResultWriter(outputs Store) *CSVResultWriter {
	return &CSVResultWriter{outputs: outputs}
}

// Write stores the result CSV for requestID and returns its reference
func (w *CSVResultWriter) Write(ctx context.Context, requestID string, results []RowResult) (string, error) {
	var buf bytes.Buffer
	if err := EncodeResults(&buf, results); err != nil {
		return "", err
	}
	ref, err := w.outputs.Save(ctx, ArtifactKey(requestID), buf.Bytes())
	if err != nil {
		return "", fmt.Errorf("failed to store result file: %w", err)
	}
	return ref, nil
}

// EncodeResults writes one record per result in the given order. Identical
// input yields identical bytes.
func EncodeResults(w io.Writer, results []RowResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(ResultHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for _, r := range results {
		record := []string{
			r.Row.ProductID,
			r.Row.RawImageURL,
			r.ProcessedImageURL(),
			r.Status.String(),
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("failed to write row %d: %w", r.Row.Index, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
