// Package models defines data structures for the scraper.
package models

import (
	"strconv"
	"time"
)

// FieldSpec pairs an output column header with the label searched for in
// listing markup. The order of a []FieldSpec is the output column order.
type FieldSpec struct {
	Header string
	Label  string
}

// EndpointSpec describes the AJAX listing endpoint discovered on a category page.
type EndpointSpec struct {
	URLTemplate     string
	OffsetParamName string
	// ItemsPerPage is the configured default when the page does not declare it.
	ItemsPerPage int
	PostBody     map[string]any
}

// RequestURL returns the paged data URL for offset.
func (e EndpointSpec) RequestURL(offset int) string {
	return e.URLTemplate + strconv.Itoa(offset)
}

// ProductRecord holds one value per FieldSpec, positionally aligned.
type ProductRecord []string

// CrawlResult holds the overall result of a crawl.
type CrawlResult struct {
	StartTime       time.Time
	EndTime         time.Time
	CategoryCount   int
	SkippedCount    int
	TotalCount      int
	ErrorCount      int
	MismatchedRows  int
	FailedURLs      []string
	ErrorsByType    map[string]int
	RequestCount    int
	// PageCount counts listing pages that yielded records.
	PageCount       int
	IncompleteCount int
}
