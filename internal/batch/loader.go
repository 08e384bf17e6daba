package batch

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/eresh-mittal/ImageProc/internal/db/models"
)

// Input column names
const (
	ColumnProductID = "product_id"
	ColumnImageURL  = "image_url"
)

// ErrMissingColumn is returned when the CSV header lacks a required column
var ErrMissingColumn = errors.New("missing required column")

// CSVLoader reads the rows of a job from its uploaded CSV file
type CSVLoader struct{}

// NewCSVLoader creates a CSVLoader
func NewCSVLoader() *CSVLoader {
	return &CSVLoader{}
}

// Load opens the job's CSV file and parses its rows
func (l *CSVLoader) Load(ctx context.Context, job *models.Job) ([]Row, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(job.CSVFilePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open input file: %w", err)
	}
	defer f.Close()

	return ReadRows(f)
}

// ReadRows parses a CSV document with a header containing product_id and
// image_url. Extra columns are ignored and short records yield empty cells.
func ReadRows(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty input: %w", err)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	productCol, imageCol := -1, -1
	for i, name := range header {
		switch strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")) {
		case ColumnProductID:
			productCol = i
		case ColumnImageURL:
			imageCol = i
		}
	}
	if productCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnProductID)
	}
	if imageCol < 0 {
		return nil, fmt.Errorf("%w: %s", ErrMissingColumn, ColumnImageURL)
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(rows), err)
		}
		rows = append(rows, Row{
			Index:       len(rows),
			ProductID:   strings.TrimSpace(cell(record, productCol)),
			RawImageURL: cell(record, imageCol),
		})
	}
	return rows, nil
}

func cell(record []string, idx int) string {
	if idx < len(record) {
		return record[idx]
	}
	return ""
}
