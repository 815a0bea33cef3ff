package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/aluiziolira/go-scrape-catalog/models"
	"github.com/aluiziolira/go-scrape-catalog/parser"
	"github.com/aluiziolira/go-scrape-catalog/pipeline"
)

// Scraper crawls the homepage's categories and feeds their paged listings
// through the pipeline. It issues one request at a time.
type Scraper struct {
	cfg        *config.Config
	fetcher    Fetcher
	discoverer parser.Discoverer
	logger     *slog.Logger
	Metrics    *Metrics

	result models.CrawlResult
}

// NewScraper builds a scraper instance configured from cfg.
func NewScraper(cfg *config.Config, logger *slog.Logger) (*Scraper, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}
	if len(cfg.Fields) == 0 {
		return nil, fmt.Errorf("no fields to scrape")
	}
	if logger == nil {
		logger = slog.Default()
	}

	metrics := NewMetrics()
	return &Scraper{
		cfg:     cfg,
		fetcher: NewCollyFetcher(cfg, metrics),
		discoverer: parser.Discoverer{
			BaseURL:             cfg.Remote.BaseURL,
			DefaultItemsPerPage: cfg.Remote.ItemsPerPageDefault,
		},
		logger:  logger,
		Metrics: metrics,
	}, nil
}

// Run crawls every category and returns a summary. The returned error is
// fatal: the homepage could not be fetched or the pipeline failed to write.
// Failures scoped to one category are logged and counted instead.
func (s *Scraper) Run(ctx context.Context, p *pipeline.Pipeline) (*models.CrawlResult, error) {
	s.result = models.CrawlResult{
		StartTime:    time.Now(),
		ErrorsByType: make(map[string]int),
	}

	urls, err := s.CategoryURLs(ctx)
	if err != nil {
		return s.finish(), err
	}
	s.logger.Info("gathered category urls", slog.Int("count", len(urls)))

	for _, url := range urls {
		if ctx.Err() != nil {
			s.logger.Info("crawl cancelled", slog.Any("error", ctx.Err()))
			break
		}
		if err := s.crawlCategory(ctx, url, p); err != nil {
			return s.finish(), err
		}
	}

	return s.finish(), nil
}

// CategoryURLs fetches the homepage and resolves the first link of every
// category container.
func (s *Scraper) CategoryURLs(ctx context.Context) ([]string, error) {
	home := s.cfg.Remote.HomeURL
	s.logger.Info("downloading page", slog.String("url", home))

	resp, err := s.get(ctx, "home", home)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHomepage, err)
	}
	page, err := parser.NewPage(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrHomepage, err)
	}
	s.logger.Info("finished downloading page", slog.String("url", home))

	hrefs := parser.CategoryHrefs(page, s.cfg.Remote.CategoryClass)
	urls := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		urls = append(urls, ResolveCategoryURL(href, home, s.cfg.Remote.BaseURL))
	}
	return urls, nil
}

// ResolveCategoryURL maps a category href onto a fetchable URL. "#" links
// back to the homepage; anything else is appended to baseURL unchanged.
func ResolveCategoryURL(href, homeURL, baseURL string) string {
	if href == "#" {
		return homeURL
	}
	return baseURL + href
}

// crawlCategory returns an error only when the pipeline fails.
func (s *Scraper) crawlCategory(ctx context.Context, url string, p *pipeline.Pipeline) error {
	logger := s.logger.With(slog.String("category", url))
	s.result.CategoryCount++

	logger.Info("downloading page", slog.String("url", url))
	resp, err := s.get(ctx, "category", url)
	if err != nil {
		logger.Error("category fetch failed, skipping", slog.Any("error", err))
		s.result.SkippedCount++
		return nil
	}
	logger.Info("finished downloading page", slog.String("url", url))

	endpoint, found, err := s.discoverer.Discover(string(resp.Body))
	if err != nil {
		logger.Error("ajax endpoint unreadable, skipping", slog.Any("error", err))
		s.recordError(url, err)
		s.result.SkippedCount++
		return nil
	}
	if !found {
		logger.Info("no paginated listing on page, skipping")
		s.result.SkippedCount++
		return nil
	}
	logger.Debug("discovered listing endpoint",
		slog.String("url_template", endpoint.URLTemplate),
		slog.String("offset_var", endpoint.OffsetParamName),
		slog.Int("items_per_page", endpoint.ItemsPerPage),
	)

	paginator, err := NewPaginator(s.fetcher, endpoint, s.cfg.Fields, PaginatorOptions{
		ContainerSelector: s.cfg.Remote.ContainerSelector,
		MaxPages:          s.cfg.Remote.MaxPagesPerCategory,
		Metrics:           s.Metrics,
		Logger:            logger,
	})
	if err != nil {
		logger.Error("cannot paginate category, skipping", slog.Any("error", err))
		s.result.SkippedCount++
		return nil
	}
	defer func() {
		s.result.PageCount += paginator.Pages()
		s.result.RequestCount += paginator.Requests()
		s.result.MismatchedRows += paginator.Mismatched()
	}()

	for {
		records, err := paginator.Next(ctx)
		if isExhausted(err) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Warn("listing ended early", slog.Any("error", err))
			if errors.Is(err, ErrPaginationLimit) || errors.Is(err, ErrPaginationStalled) {
				s.Metrics.IncError(errorTypeLabel(err))
			}
			s.recordError(url, err)
			s.result.IncompleteCount++
			return nil
		}

		logger.Info("adding products to result file", slog.Int("count", len(records)))
		s.Metrics.AddRecords(len(records))
		if err := p.Process(records); err != nil {
			return fmt.Errorf("write records for %s: %w", url, err)
		}
		s.result.TotalCount += len(records)
	}
}

func (s *Scraper) get(ctx context.Context, phase, url string) (*Response, error) {
	s.result.RequestCount++
	resp, err := s.fetcher.Get(ctx, phase, url)
	if err != nil {
		s.recordError(url, err)
		return nil, err
	}
	return resp, nil
}

func (s *Scraper) recordError(url string, err error) {
	s.result.ErrorCount++
	s.result.ErrorsByType[errorTypeLabel(err)]++
	s.result.FailedURLs = append(s.result.FailedURLs, url)
}

func (s *Scraper) finish() *models.CrawlResult {
	s.result.EndTime = time.Now()
	result := s.result
	return &result
}
