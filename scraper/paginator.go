package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/cespare/xxhash/v2"
	lru "github.com/hashicorp/golang-lru/v2"
)

const seenPagesSize = 256

// PaginatorOptions tune a Paginator.
type PaginatorOptions struct {
	// ContainerSelector decides whether a fetched page is structurally empty.
	ContainerSelector string
	// MaxPages bounds the number of paged requests.
	MaxPages int
	Metrics  *Metrics
	Logger   *slog.Logger
}

// Paginator walks one category's AJAX listing by offset. The same post body
// is sent for every offset. A Paginator is single use: once Next has returned
// an error, including io.EOF, every later call returns io.EOF.
type Paginator struct {
	fetcher  Fetcher
	endpoint models.EndpointSpec
	fields   []models.FieldSpec
	opts     PaginatorOptions
	logger   *slog.Logger

	form       map[string]string
	offset     int
	requests   int
	pages      int
	mismatched int
	seen       *lru.Cache[uint64, int]
	done       bool
}

// NewPaginator prepares a paginator starting at offset zero.
func NewPaginator(fetcher Fetcher, endpoint models.EndpointSpec, fields []models.FieldSpec, opts PaginatorOptions) (*Paginator, error) {
	if endpoint.ItemsPerPage <= 0 {
		return nil, fmt.Errorf("items per page must be positive, got %d", endpoint.ItemsPerPage)
	}
	if opts.ContainerSelector == "" {
		opts.ContainerSelector = "div"
	}
	seen, err := lru.New[uint64, int](seenPagesSize)
	if err != nil {
		return nil, fmt.Errorf("create page cache: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Paginator{
		fetcher:  fetcher,
		endpoint: endpoint,
		fields:   fields,
		opts:     opts,
		logger:   logger,
		form:     formValues(endpoint.PostBody),
		seen:     seen,
	}, nil
}

// Next fetches the page at the current offset and returns its records. It
// returns io.EOF once a page is structurally empty or yields no records,
// ErrPaginationLimit when MaxPages requests were made without reaching the
// end, and ErrPaginationStalled when a page repeats an earlier one.
func (p *Paginator) Next(ctx context.Context) ([]models.ProductRecord, error) {
	if p.done {
		return nil, io.EOF
	}
	if p.opts.MaxPages > 0 && p.requests >= p.opts.MaxPages {
		return nil, p.finish(fmt.Errorf("%w after %d pages at offset %d", ErrPaginationLimit, p.requests, p.offset))
	}

	url := p.endpoint.RequestURL(p.offset)
	p.requests++
	resp, err := p.fetcher.Post(ctx, "listing", url, p.form)
	if err != nil {
		return nil, p.finish(fmt.Errorf("fetch listing page: %w", err))
	}

	page, err := parser.NewPage(resp.Body)
	if err != nil {
		return nil, p.finish(fmt.Errorf("listing page %s: %w", url, err))
	}
	if !page.HasContainer(p.opts.ContainerSelector) {
		p.logger.Debug("listing exhausted", slog.String("url", url), slog.String("reason", "structurally empty"))
		return nil, p.finish(io.EOF)
	}

	fingerprint := xxhash.Sum64(resp.Body)
	if previous, ok := p.seen.Get(fingerprint); ok {
		return nil, p.finish(fmt.Errorf("%w: offset %d returned the page seen at offset %d", ErrPaginationStalled, p.offset, previous))
	}
	p.seen.Add(fingerprint, p.offset)

	records, mismatched := parser.ZipColumns(p.extract(page, url))
	if mismatched > 0 {
		p.mismatched += mismatched
		p.opts.Metrics.AddMismatched(mismatched)
		p.logger.Warn("field count mismatch, skipping rows",
			slog.String("url", url),
			slog.Int("complete_rows", len(records)),
			slog.Int("skipped_rows", mismatched),
		)
	}
	if len(records) == 0 {
		p.logger.Debug("listing exhausted", slog.String("url", url), slog.String("reason", "no records"))
		return nil, p.finish(io.EOF)
	}

	p.pages++
	p.opts.Metrics.IncPages()
	p.offset += p.endpoint.ItemsPerPage
	return records, nil
}

// Requests returns the number of paged requests issued so far.
func (p *Paginator) Requests() int {
	return p.requests
}

// Pages returns the number of listing pages that yielded records.
func (p *Paginator) Pages() int {
	return p.pages
}

// Mismatched returns the number of rows dropped for missing fields so far.
func (p *Paginator) Mismatched() int {
	return p.mismatched
}

func (p *Paginator) extract(page *parser.Page, url string) []parser.Column {
	columns := make([]parser.Column, len(p.fields))
	for i, field := range p.fields {
		values, err := parser.ExtractField(page, field.Label)
		if err != nil {
			p.logger.Error("field extraction failed, leaving column empty",
				slog.String("field", field.Header),
				slog.String("url", url),
				slog.Any("error", err),
			)
			columns[i] = parser.Column{Skipped: true}
			continue
		}
		columns[i] = parser.Column{Values: values}
	}
	return columns
}

func (p *Paginator) finish(err error) error {
	p.done = true
	return err
}

// isExhausted reports whether err is the normal end of a listing.
func isExhausted(err error) bool {
	return errors.Is(err, io.EOF)
}
