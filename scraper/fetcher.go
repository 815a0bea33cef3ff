package scraper

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/aluiziolira/go-scrape-catalog/config"
	"github.com/gocolly/colly/v2"
)

// Response is a successfully fetched page.
type Response struct {
	URL        string
	StatusCode int
	Body       []byte
}

// Fetcher issues blocking HTTP requests, one at a time, without retries.
type Fetcher interface {
	Get(ctx context.Context, phase, url string) (*Response, error)
	Post(ctx context.Context, phase, url string, form map[string]string) (*Response, error)
}

// CollyFetcher implements Fetcher on a synchronous colly collector.
type CollyFetcher struct {
	collector *colly.Collector
	metrics   *Metrics
}

// NewCollyFetcher builds a fetcher configured from cfg.
func NewCollyFetcher(cfg *config.Config, metrics *Metrics) *CollyFetcher {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.Remote.UserAgent),
		colly.AllowURLRevisit(),
	)

	collector.SetRequestTimeout(cfg.Remote.Timeout)
	collector.IgnoreRobotsTxt = !cfg.Remote.RespectRobotsTxt
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Remote.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	return &CollyFetcher{
		collector: collector,
		metrics:   metrics,
	}
}

// WithTransport replaces the HTTP transport used for every request.
func (f *CollyFetcher) WithTransport(rt http.RoundTripper) {
	f.collector.WithTransport(rt)
}

// Get fetches url.
func (f *CollyFetcher) Get(ctx context.Context, phase, url string) (*Response, error) {
	return f.do(ctx, phase, http.MethodGet, url, nil)
}

// Post submits form to url as application/x-www-form-urlencoded.
func (f *CollyFetcher) Post(ctx context.Context, phase, url string, form map[string]string) (*Response, error) {
	return f.do(ctx, phase, http.MethodPost, url, form)
}

func (f *CollyFetcher) do(ctx context.Context, phase, method, url string, form map[string]string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// A clone shares the transport and settings but not callbacks, so each
	// request captures only its own response.
	c := f.collector.Clone()
	c.Context = ctx

	var resp *Response
	statusCode := 0
	c.OnResponse(func(r *colly.Response) {
		resp = &Response{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
	})
	c.OnError(func(r *colly.Response, _ error) {
		if r != nil {
			statusCode = r.StatusCode
		}
	})

	f.metrics.IncRequest(phase)
	start := time.Now()

	var err error
	if method == http.MethodPost {
		err = c.Post(url, form)
	} else {
		err = c.Visit(url)
	}
	f.metrics.ObserveDuration(time.Since(start))

	if err == nil && resp == nil {
		err = errors.New("no response received")
	}
	if err != nil && ctx.Err() != nil {
		return nil, fmt.Errorf("%s %s: %w", method, url, ctx.Err())
	}
	if err != nil {
		classified := classifyError(err, statusCode)
		f.metrics.IncError(errorTypeLabel(classified))
		return nil, fmt.Errorf("%s %s: %w", method, url, classified)
	}
	return resp, nil
}

func classifyError(err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout{Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrTimeout{Err: err}
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return ErrConnection{Err: err}
	}

	if statusCode != 0 {
		wrapped := err
		if wrapped == nil {
			wrapped = fmt.Errorf("http status %d", statusCode)
		}
		switch {
		case statusCode == http.StatusForbidden:
			return ErrForbidden{Err: wrapped}
		case statusCode == http.StatusNotFound:
			return ErrNotFound{Err: wrapped}
		case statusCode == http.StatusTooManyRequests:
			return ErrRateLimited{Err: wrapped}
		case statusCode >= http.StatusInternalServerError:
			return ErrServer{Err: wrapped}
		}
	}

	if err == nil {
		return nil
	}
	return err
}

// formValues renders a decoded JSON payload as form fields: strings as-is,
// numbers in shortest decimal form, null as empty and nested values as JSON.
func formValues(body map[string]any) map[string]string {
	form := make(map[string]string, len(body))
	for key, value := range body {
		switch v := value.(type) {
		case nil:
			form[key] = ""
		case string:
			form[key] = v
		case bool:
			form[key] = strconv.FormatBool(v)
		case float64:
			form[key] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			encoded, err := json.Marshal(v)
			if err != nil {
				form[key] = fmt.Sprint(v)
				continue
			}
			form[key] = string(encoded)
		}
	}
	return form
}
