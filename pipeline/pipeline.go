package pipeline

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	// ErrPipelineClosed is returned when Process is called after shutdown.
	ErrPipelineClosed = errors.New("pipeline: closed")
)

// OutputWriter defines the interface for data output.
type OutputWriter interface {
	Write(records []models.ProductRecord) error
	Close() error
	Validate() error
}

// Pipeline validates records, optionally drops duplicates, and writes each
// batch through the output writer before Process returns. A write failure
// closes the pipeline for good.
type Pipeline struct {
	writer OutputWriter
	width  int
	seen   *lru.Cache[uint64, struct{}]

	metrics metrics

	mu     sync.Mutex // guards closed/err
	closed bool
	err    error
}

// NewPipeline builds a pipeline for records with one value per configured
// field. De-duplication is enabled when cfg.Results.DedupeMaxSize > 0.
func NewPipeline(writer OutputWriter, cfg *config.Config) (*Pipeline, error) {
	p := &Pipeline{
		writer:  writer,
		width:   len(cfg.Fields),
		metrics: newMetrics(),
	}
	if size := cfg.Results.DedupeMaxSize; size > 0 {
		seen, err := lru.New[uint64, struct{}](size)
		if err != nil {
			return nil, fmt.Errorf("create dedupe cache: %w", err)
		}
		p.seen = seen
	}
	return p, nil
}

// Process writes records in order.
func (p *Pipeline) Process(records []models.ProductRecord) error {
	if len(records) == 0 {
		return nil
	}

	closed, err := p.state()
	if err != nil {
		return err
	}
	if closed {
		return ErrPipelineClosed
	}

	batch := make([]models.ProductRecord, 0, len(records))
	for _, record := range records {
		if p.prepare(record) {
			batch = append(batch, record)
		}
	}
	if len(batch) == 0 {
		return nil
	}

	if err := p.writer.Write(batch); err != nil {
		p.setErr(fmt.Errorf("write batch: %w", err))
		return p.Err()
	}
	p.metrics.addProcessed(len(batch))
	return nil
}

// Close prevents more submissions. The writer is closed by its owner.
func (p *Pipeline) Close() error {
	p.mu.Lock()
	p.closed = true
	p.mu.Unlock()
	return p.Err()
}

// Err returns the first error encountered during processing.
func (p *Pipeline) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// GetMetrics returns a snapshot of the internal counters.
func (p *Pipeline) GetMetrics() map[string]interface{} {
	return p.metrics.snapshot()
}

func (p *Pipeline) prepare(record models.ProductRecord) bool {
	if err := parser.ValidateRecord(record, p.width); err != nil {
		p.metrics.addValidation("field_count_mismatch")
		return false
	}

	if p.seen != nil {
		key := xxhash.Sum64String(strings.Join(record, "\x1f"))
		if p.seen.Contains(key) {
			p.metrics.addValidation("duplicate_record")
			return false
		}
		p.seen.Add(key, struct{}{})
	}
	return true
}

func (p *Pipeline) setErr(err error) {
	if err == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return
	}
	p.err = err
	p.closed = true
}

func (p *Pipeline) state() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed, p.err
}

type metrics struct {
	mu         sync.Mutex
	processed  int64
	validation map[string]int
}

func newMetrics() metrics {
	return metrics{
		validation: make(map[string]int),
	}
}

func (m *metrics) addProcessed(n int) {
	m.mu.Lock()
	m.processed += int64(n)
	m.mu.Unlock()
}

func (m *metrics) addValidation(kind string) {
	m.mu.Lock()
	m.validation[kind]++
	m.mu.Unlock()
}

func (m *metrics) snapshot() map[string]interface{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	copyValidation := make(map[string]int, len(m.validation))
	for k, v := range m.validation {
		copyValidation[k] = v
	}

	return map[string]interface{}{
		"processed_records": m.processed,
		"validation_errors": copyValidation,
	}
}
