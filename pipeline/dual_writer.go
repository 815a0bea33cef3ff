package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/models"
)

// DualWriter mirrors every batch to a quoted CSV file and a JSON lines file.
type DualWriter struct {
	csvWriter  *CSVWriter
	jsonWriter *JSONWriter
	mu         sync.Mutex
}

// NewDualWriter opens both files with the same column headers.
func NewDualWriter(csvFilename, jsonFilename string, headers []string) (*DualWriter, error) {
	csvWriter, err := NewCSVWriter(csvFilename, headers)
	if err != nil {
		return nil, fmt.Errorf("create csv writer: %w", err)
	}

	jsonWriter, err := NewJSONWriter(jsonFilename, headers)
	if err != nil {
		csvWriter.Close()
		return nil, fmt.Errorf("create json writer: %w", err)
	}

	return &DualWriter{
		csvWriter:  csvWriter,
		jsonWriter: jsonWriter,
	}, nil
}

// Write appends records to the CSV file, then to the JSON file.
func (dw *DualWriter) Write(records []models.ProductRecord) error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	if err := dw.csvWriter.Write(records); err != nil {
		return fmt.Errorf("csv: %w", err)
	}
	if err := dw.jsonWriter.Write(records); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

// Close flushes and closes both files, reporting every failure.
func (dw *DualWriter) Close() error {
	dw.mu.Lock()
	defer dw.mu.Unlock()

	var errs []error
	if err := dw.csvWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close csv: %w", err))
	}
	if err := dw.jsonWriter.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close json: %w", err))
	}
	return errors.Join(errs...)
}

// Validate checks that both files exist and hold data.
func (dw *DualWriter) Validate() error {
	var errs []error
	if err := dw.csvWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("validate csv: %w", err))
	}
	if err := dw.jsonWriter.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("validate json: %w", err))
	}
	return errors.Join(errs...)
}

// NewWriter picks the writer for format: csv, json, or dual. In dual mode
// the JSON lines go next to filename with a .json extension.
func NewWriter(format, filename string, headers []string) (OutputWriter, error) {
	switch format {
	case "json":
		return NewJSONWriter(filename, headers)
	case "csv":
		return NewCSVWriter(filename, headers)
	case "dual":
		jsonFilename := strings.TrimSuffix(filename, ".csv") + ".json"
		return NewDualWriter(filename, jsonFilename, headers)
	default:
		return nil, fmt.Errorf("unsupported format: %s", format)
	}
}
