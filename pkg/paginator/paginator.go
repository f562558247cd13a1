// Package paginator walks a page-indexed endpoint from page 0 until it returns
// an empty list, a page fails, or the safety bound is reached.
package paginator

import (
	"bytes"
	"context"
	"encoding/json"
	"strconv"
	"time"

	"competesync/pkg/client"
	errs "competesync/pkg/errors"
	"competesync/pkg/logger"
	"competesync/pkg/metrics"
)

// DefaultMaxPages bounds a fetch when the caller passes maxPages <= 0
const DefaultMaxPages = 100

// DefaultItemPath is where the item list lives when the endpoint sets no path
const DefaultItemPath = "data.data.itemList"

// RawItem is an opaque record passed through unmodified
type RawItem = map[string]any

// PageRequest identifies one page of one resource
type PageRequest struct {
	ResourceID string
	PageIndex  int
	FilterID   string
}

// Reason explains why a fetch stopped
type Reason string

const (
	ReasonExhausted     Reason = "exhausted"
	ReasonFailed        Reason = "failed"
	ReasonSafetyStopped Reason = "safety_stopped"
)

// FetchResult is the accumulated outcome of FetchAll
type FetchResult struct {
	Items []RawItem
	Count int
	// Pages is the number of page requests issued
	Pages  int
	Reason Reason
	// Err is set when Reason is ReasonFailed
	Err error
}

// Complete reports whether the remote list was read to its end
func (r FetchResult) Complete() bool {
	return r.Reason == ReasonExhausted
}

// Requester is the part of the authenticated client the paginator needs
type Requester interface {
	Request(ctx context.Context, url string, query, headers map[string]string) (*client.Response, error)
}

// Endpoint describes how to turn a PageRequest into a GET and where its items are
type Endpoint struct {
	URL string
	// PageParam carries FirstPage+PageIndex on the wire
	PageParam string
	FirstPage int
	// ResourceParam carries ResourceID when non-empty
	ResourceParam string
	// FilterParam carries FilterID when both are non-empty
	FilterParam string
	// Query holds static parameters sent with every page
	Query map[string]string
	// Extra adds per-request parameters, e.g. ones that only apply with a filter
	Extra func(PageRequest) map[string]string
	// Headers adds per-request headers, e.g. a resource-specific referer
	Headers func(PageRequest) map[string]string

	ItemPath      string
	FallbackPaths []string
}

// Paginator fetches every page of one endpoint
type Paginator struct {
	requester Requester
	endpoint  Endpoint
	log       logger.Logger
	metrics   *metrics.Metrics
}

// New creates a paginator for endpoint
func New(requester Requester, endpoint Endpoint, log logger.Logger, m *metrics.Metrics) *Paginator {
	if endpoint.ItemPath == "" {
		endpoint.ItemPath = DefaultItemPath
	}
	if log == nil {
		log = logger.Component("paginator")
	}
	return &Paginator{requester: requester, endpoint: endpoint, log: log, metrics: m}
}

// FetchAll requests pages 0..maxPages-1 in order. It stops at the first empty
// page (exhausted), the first error (failed, partial items kept) or after
// maxPages pages (safety_stopped). Page maxPages is never requested.
func (p *Paginator) FetchAll(ctx context.Context, resourceID, filterID string, maxPages int) FetchResult {
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}

	start := time.Now()
	result := FetchResult{Items: []RawItem{}}
	log := p.log.WithFields(map[string]interface{}{
		"resource": resourceID,
		"filter":   filterID,
	})

	for pageIndex := 0; ; pageIndex++ {
		if pageIndex == maxPages {
			result.Reason = ReasonSafetyStopped
			log.WarnWithFields("page limit reached before an empty page", map[string]interface{}{
				"max_pages": maxPages,
			})
			break
		}

		if err := ctx.Err(); err != nil {
			result.Reason = ReasonFailed
			result.Err = errs.New(errs.KindTransport, err, "fetch aborted before page %d", pageIndex)
			break
		}

		req := PageRequest{ResourceID: resourceID, PageIndex: pageIndex, FilterID: filterID}
		result.Pages++
		items, err := p.fetchPage(ctx, req)
		if err != nil {
			result.Reason = ReasonFailed
			result.Err = err
			log.WithError(err).WarnWithFields("page fetch failed", map[string]interface{}{
				"page":      pageIndex,
				"collected": len(result.Items),
			})
			break
		}

		p.metrics.PageFetched()
		if len(items) == 0 {
			result.Reason = ReasonExhausted
			break
		}

		result.Items = append(result.Items, items...)
		log.DebugWithFields("page fetched", map[string]interface{}{
			"page":  pageIndex,
			"items": len(items),
			"total": len(result.Items),
		})
	}

	result.Count = len(result.Items)
	p.metrics.FetchFinished(string(result.Reason))
	log.InfoWithFields("fetch finished", map[string]interface{}{
		"count":       result.Count,
		"pages":       result.Pages,
		"reason":      string(result.Reason),
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result
}

func (p *Paginator) fetchPage(ctx context.Context, req PageRequest) ([]RawItem, error) {
	query, headers := p.endpoint.build(req)

	resp, err := p.requester.Request(ctx, p.endpoint.URL, query, headers)
	if err != nil {
		return nil, err
	}

	// numbers stay json.Number so large ids survive unrounded
	var body any
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()
	if err := dec.Decode(&body); err != nil {
		return nil, errs.New(errs.KindParseFailure, err, "page %d is not valid JSON", req.PageIndex)
	}

	items, path, dropped := p.endpoint.extract(body)
	if path != "" && path != p.endpoint.ItemPath {
		p.log.DebugWithFields("items found under fallback path", map[string]interface{}{
			"path": path,
			"page": req.PageIndex,
		})
	}
	if dropped > 0 {
		if len(items) == 0 {
			return nil, errs.New(errs.KindParseFailure, nil, "page %d lists %d entries but none are objects", req.PageIndex, dropped)
		}
		p.log.DebugWithFields("dropped non-object entries", map[string]interface{}{
			"page":    req.PageIndex,
			"dropped": dropped,
		})
	}
	return items, nil
}

// build returns the query and headers for req
func (e Endpoint) build(req PageRequest) (map[string]string, map[string]string) {
	query := make(map[string]string, len(e.Query)+4)
	for k, v := range e.Query {
		query[k] = v
	}
	if e.PageParam != "" {
		query[e.PageParam] = strconv.Itoa(e.FirstPage + req.PageIndex)
	}
	if e.ResourceParam != "" && req.ResourceID != "" {
		query[e.ResourceParam] = req.ResourceID
	}
	if e.FilterParam != "" && req.FilterID != "" {
		query[e.FilterParam] = req.FilterID
	}
	if e.Extra != nil {
		for k, v := range e.Extra(req) {
			query[k] = v
		}
	}

	var headers map[string]string
	if e.Headers != nil {
		headers = e.Headers(req)
	}
	return query, headers
}

// extract returns the object entries of the first list found under ItemPath
// or a fallback path, the path it came from and how many non-object entries
// were skipped. No match yields an empty list.
func (e Endpoint) extract(body any) ([]RawItem, string, int) {
	paths := append([]string{e.ItemPath}, e.FallbackPaths...)
	for _, path := range paths {
		if list, ok := Lookup(body, path).([]any); ok {
			items, dropped := toItems(list)
			return items, path, dropped
		}
	}
	return []RawItem{}, "", 0
}

func toItems(list []any) ([]RawItem, int) {
	items := make([]RawItem, 0, len(list))
	for _, v := range list {
		if m, ok := v.(map[string]any); ok {
			items = append(items, m)
		}
	}
	return items, len(list) - len(items)
}
