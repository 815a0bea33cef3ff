package pipeline

import (
	"errors"
	"testing"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/google/go-cmp/cmp"
)

type mockWriter struct {
	batches     [][]models.ProductRecord
	closed      bool
	writeErr    error
	validateErr error
}

func (mw *mockWriter) Write(records []models.ProductRecord) error {
	if mw.writeErr != nil {
		return mw.writeErr
	}
	copyBatch := make([]models.ProductRecord, len(records))
	copy(copyBatch, records)
	mw.batches = append(mw.batches, copyBatch)
	return nil
}

func (mw *mockWriter) Close() error {
	mw.closed = true
	return nil
}

func (mw *mockWriter) Validate() error {
	return mw.validateErr
}

func (mw *mockWriter) all() []models.ProductRecord {
	var out []models.ProductRecord
	for _, batch := range mw.batches {
		out = append(out, batch...)
	}
	return out
}

func twoFieldConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Fields = []models.FieldSpec{
		{Header: "Name", Label: "Product name"},
		{Header: "Price", Label: "Unit price"},
	}
	return cfg
}

func TestPipelineProcessValidation(t *testing.T) {
	writer := &mockWriter{}
	p, err := NewPipeline(writer, twoFieldConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	records := []models.ProductRecord{
		{"Widget", "9.99"},
		{"Broken"},
		{"Widget", "9.99"},
		{"Gadget", "1.00", "extra"},
	}
	if err := p.Process(records); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	// duplicates pass through when de-duplication is disabled
	want := []models.ProductRecord{{"Widget", "9.99"}, {"Widget", "9.99"}}
	if diff := cmp.Diff(want, writer.all()); diff != "" {
		t.Fatalf("written records mismatch (-want +got):\n%s", diff)
	}

	metrics := p.GetMetrics()
	if got := metrics["processed_records"].(int64); got != 2 {
		t.Fatalf("processed = %d, want 2", got)
	}
	validation := metrics["validation_errors"].(map[string]int)
	if validation["field_count_mismatch"] != 2 {
		t.Fatalf("validation = %v, want 2 field_count_mismatch", validation)
	}
}

func TestPipelineDedupe(t *testing.T) {
	cfg := twoFieldConfig()
	cfg.Results.DedupeMaxSize = 16

	writer := &mockWriter{}
	p, err := NewPipeline(writer, cfg)
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	if err := p.Process([]models.ProductRecord{{"Widget", "9.99"}, {"Gadget", "1.00"}}); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := p.Process([]models.ProductRecord{{"Widget", "9.99"}, {"Widget", "10.99"}}); err != nil {
		t.Fatalf("process: %v", err)
	}

	want := []models.ProductRecord{{"Widget", "9.99"}, {"Gadget", "1.00"}, {"Widget", "10.99"}}
	if diff := cmp.Diff(want, writer.all()); diff != "" {
		t.Fatalf("written records mismatch (-want +got):\n%s", diff)
	}
	validation := p.GetMetrics()["validation_errors"].(map[string]int)
	if validation["duplicate_record"] != 1 {
		t.Fatalf("validation = %v, want 1 duplicate_record", validation)
	}
}

func TestPipelineWriteErrorClosesPipeline(t *testing.T) {
	writeErr := errors.New("disk full")
	writer := &mockWriter{writeErr: writeErr}
	p, err := NewPipeline(writer, twoFieldConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}

	err = p.Process([]models.ProductRecord{{"Widget", "9.99"}})
	if !errors.Is(err, writeErr) {
		t.Fatalf("process error = %v, want %v", err, writeErr)
	}
	if err := p.Process([]models.ProductRecord{{"Gadget", "1.00"}}); !errors.Is(err, writeErr) {
		t.Fatalf("process after failure = %v, want sticky %v", err, writeErr)
	}
	if err := p.Close(); !errors.Is(err, writeErr) {
		t.Fatalf("close error = %v, want %v", err, writeErr)
	}
}

func TestPipelineProcessAfterClose(t *testing.T) {
	p, err := NewPipeline(&mockWriter{}, twoFieldConfig())
	if err != nil {
		t.Fatalf("new pipeline: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := p.Process([]models.ProductRecord{{"Widget", "9.99"}}); !errors.Is(err, ErrPipelineClosed) {
		t.Fatalf("process after close = %v, want ErrPipelineClosed", err)
	}
	if err := p.Process(nil); err != nil {
		t.Fatalf("empty batch after close = %v, want nil", err)
	}
}
