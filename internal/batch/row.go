// Package batch turns a job's CSV rows into resized images, per-row outcomes
// and a result CSV
package batch

import (
	"fmt"
	"strings"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// Row is one input record. Index is its zero-based position in the input.
type Row struct {
	Index       int
	ProductID   string
	RawImageURL string
}

// Stage names the step an entry failed in
type Stage string

// Entry stages
const (
	StageFetch     Stage = "fetch"
	StageTransform Stage = "transform"
	StageStore     Stage = "store"
)

// Outcome is the result of one image entry of a row
type Outcome struct {
	Index int
	URL   string
	// Ref is set on success
	Ref   string
	Stage Stage
	Err   error
}

// OK reports whether the entry produced an output reference
func (o Outcome) OK() bool {
	return o.Err == nil
}

// RowResult is the reduced outcome of a row. OutputRefs follow entry order.
type RowResult struct {
	Row        Row
	Status     models.ProductStatus
	OutputRefs []string
	Failures   []Outcome
}

// ParseImageURLs splits a comma separated cell into trimmed, non-empty URLs
func ParseImageURLs(raw string) []string {
	var urls []string
	for _, part := range strings.Split(raw, ",") {
		if u := strings.TrimSpace(part); u != "" {
			urls = append(urls, u)
		}
	}
	return urls
}

// Reduce derives a row status from its entry outcomes: all succeeded is
// COMPLETED, none succeeded (including zero entries) is FAILED, anything else
// is PARTIAL
func Reduce(row Row, outcomes []Outcome) RowResult {
	result := RowResult{Row: row}
	for _, o := range outcomes {
		if o.OK() {
			result.OutputRefs = append(result.OutputRefs, o.Ref)
		} else {
			result.Failures = append(result.Failures, o)
		}
	}

	switch {
	case len(outcomes) == 0 || len(result.OutputRefs) == 0:
		result.Status = models.ProductStatusFailed
	case len(result.Failures) == 0:
		result.Status = models.ProductStatusCompleted
	default:
		result.Status = models.ProductStatusPartial
	}
	return result
}

// ProcessedImageURL joins the output references in entry order
func (r RowResult) ProcessedImageURL() string {
	return strings.Join(r.OutputRefs, ",")
}

// Diagnostics summarises why entries failed; empty when none did
func (r RowResult) Diagnostics() string {
	if len(r.OutputRefs) == 0 && len(r.Failures) == 0 {
		return ErrNoEntries.Error()
	}
	msgs := make([]string, 0, len(r.Failures))
	for _, f := range r.Failures {
		msgs = append(msgs, fmt.Sprintf("entry %d (%s) %s: %v", f.Index, f.URL, f.Stage, f.Err))
	}
	return strings.Join(msgs, "; ")
}
