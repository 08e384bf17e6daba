package batch

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/eresh-mittal/ImageProc/internal/imaging"
	"github.com/eresh-mittal/ImageProc/internal/logger"
	"github.com/eresh-mittal/ImageProc/internal/storage"
)

// DefaultEntryConcurrency bounds concurrent entries within one row
const DefaultEntryConcurrency = 2

// Fetcher downloads the bytes behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Transformer produces the downscaled encoding of an image
type Transformer interface {
	Transform(ctx context.Context, data []byte) ([]byte, error)
}

// Store saves a blob under a key and returns its reference
type Store interface {
	Save(ctx context.Context, key string, data []byte) (string, error)
}

// RowProcessor fetches, transforms and stores every entry of a row
type RowProcessor struct {
	fetcher          Fetcher
	transformer      Transformer
	images           Store
	entryConcurrency int
}

// NewRowProcessor creates a RowProcessor; entryConcurrency below 1 uses
// DefaultEntryConcurrency
func NewRowProcessor(fetcher Fetcher, transformer Transformer, images Store, entryConcurrency int) *RowProcessor {
	if entryConcurrency < 1 {
		entryConcurrency = DefaultEntryConcurrency
	}
	return &RowProcessor{
		fetcher:          fetcher,
		transformer:      transformer,
		images:           images,
		entryConcurrency: entryConcurrency,
	}
}

// Process handles every entry of row. Entry failures never escape: they are
// folded into the returned RowResult.
func (p *RowProcessor) Process(ctx context.Context, requestID string, row Row) RowResult {
	urls := ParseImageURLs(row.RawImageURL)
	outcomes := make([]Outcome, len(urls))

	var g errgroup.Group
	g.SetLimit(p.entryConcurrency)
	for i, url := range urls {
		i, url := i, url
		g.Go(func() error {
			outcomes[i] = p.processEntry(ctx, requestID, row, i, len(urls), url)
			return nil
		})
	}
	_ = g.Wait()

	return Reduce(row, outcomes)
}

func (p *RowProcessor) processEntry(ctx context.Context, requestID string, row Row, idx, total int, url string) Outcome {
	out := Outcome{Index: idx, URL: url}

	data, err := p.fetcher.Fetch(ctx, url)
	if err != nil {
		out.Stage, out.Err = StageFetch, err
		p.logFailure(requestID, row, out)
		return out
	}

	resized, err := p.transformer.Transform(ctx, data)
	if err != nil {
		out.Stage, out.Err = StageTransform, err
		p.logFailure(requestID, row, out)
		return out
	}

	ref, err := p.images.Save(ctx, OutputKey(requestID, row.Index, row.ProductID, idx, total), resized)
	if err != nil {
		out.Stage, out.Err = StageStore, err
		p.logFailure(requestID, row, out)
		return out
	}

	out.Ref = ref
	logger.DebugWithFields("Processed image", map[string]interface{}{
		"request_id": requestID,
		"row":        row.Index,
		"entry":      idx,
		"ref":        ref,
	})
	return out
}

func (p *RowProcessor) logFailure(requestID string, row Row, out Outcome) {
	logger.WarnWithFields("Image entry failed", map[string]interface{}{
		"request_id": requestID,
		"row":        row.Index,
		"entry":      out.Index,
		"url":        out.URL,
		"stage":      string(out.Stage),
		"error":      out.Err.Error(),
	})
}

// OutputKey names the stored image of an entry. The row index prefix keeps
// rows apart even when their product ids match after sanitizing; the entry
// index is only appended when the row has more than one entry.
func OutputKey(requestID string, rowIndex int, productID string, idx, total int) string {
	name := fmt.Sprintf("%d_%s", rowIndex, storage.SafeName(productID))
	if total > 1 {
		name = fmt.Sprintf("%s_%d", name, idx)
	}
	return requestID + "/" + name + "_resized" + imaging.OutputExtension
}
