// Package search implements the query layer over the index store: postcode
// and free-text phrase lookups with deterministic sorting, capped totals and
// page clamping, plus an optional short-lived result cache.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/LandRegistry/address-search-api/internal/index"
	"github.com/LandRegistry/address-search-api/internal/platform/metrics"
	"github.com/LandRegistry/address-search-api/internal/platform/redis"
)

// Request carries one search: a postcode or a free-text phrase plus
// pagination. Phrase takes precedence when both are supplied.
type Request struct {
	Postcode   string
	Phrase     string
	PageNumber int
	PageSize   int
}

// Page is one page of search results.
type Page struct {
	Addresses  []index.Document `json:"addresses"`
	Total      int              `json:"total"`
	PageNumber int              `json:"page_number"`
	PageSize   int              `json:"page_size"`
}

// Service executes searches against the index store. It is stateless and
// safe for concurrent use; each request issues its own store query.
type Service struct {
	store      index.Store
	logger     *slog.Logger
	metrics    *metrics.Metrics
	cache      *redis.Client
	cacheTTL   time.Duration
	maxResults int
	perPage    int
}

type Option func(*Service)

// WithMetrics attaches Prometheus metrics to the service.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCache enables the redis result cache. A nil client leaves caching off.
func WithCache(cache *redis.Client, ttl time.Duration) Option {
	return func(s *Service) {
		s.cache = cache
		s.cacheTTL = ttl
	}
}

// New constructs a search Service. maxResults caps the reported total;
// perPage is the default page size.
func New(store index.Store, maxResults, perPage int, logger *slog.Logger, opts ...Option) *Service {
	s := &Service{
		store:      store,
		logger:     logger,
		maxResults: maxResults,
		perPage:    perPage,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs one lookup. A request with neither postcode nor phrase returns
// an empty page without touching the store.
func (s *Service) Search(ctx context.Context, req Request) (Page, error) {
	start := time.Now()
	defer func() {
		s.metrics.ObserveSearchDuration(time.Since(start))
	}()

	if req.PageNumber < 0 {
		req.PageNumber = 0
	}
	if req.PageSize <= 0 {
		req.PageSize = s.perPage
	}

	kind, field, view, term := classify(req)
	s.metrics.IncrementSearch(kind)
	if kind == "empty" {
		return emptyPage(req.PageSize), nil
	}

	cacheKey := fmt.Sprintf("search:%s:%s:%d:%d", kind, term, req.PageNumber, req.PageSize)
	if page, ok := s.cacheGet(ctx, cacheKey); ok {
		return page, nil
	}

	result, err := s.store.Search(ctx, index.Query{
		View:  view,
		Field: field,
		Term:  term,
		From:  req.PageNumber * req.PageSize,
		Size:  req.PageSize,
	})
	if err != nil {
		return Page{}, fmt.Errorf("search %s: %w", kind, err)
	}

	page := s.paginate(result, req.PageNumber, req.PageSize)
	s.cacheSet(ctx, cacheKey, page)
	return page, nil
}

// paginate caps the total at the configured maximum and clamps the reported
// page number to the last valid page.
func (s *Service) paginate(result index.Result, pageNumber, pageSize int) Page {
	total := result.Total
	if total > s.maxResults {
		total = s.maxResults
	}
	pages := (total + pageSize - 1) / pageSize
	if pages == 0 {
		pageNumber = 0
	} else if pageNumber > pages-1 {
		pageNumber = pages - 1
	}

	addresses := result.Documents
	if addresses == nil {
		addresses = []index.Document{}
	}
	return Page{
		Addresses:  addresses,
		Total:      total,
		PageNumber: pageNumber,
		PageSize:   pageSize,
	}
}

// classify picks the view and normalized term for a request. Postcodes match
// exactly against their uppercased form; phrases match the lowercased joined
// fields string.
func classify(req Request) (kind, field, view, term string) {
	switch {
	case req.Phrase != "":
		return "phrase", index.FieldJoinedFields, index.ViewJoinedFields, strings.ToLower(req.Phrase)
	case req.Postcode != "":
		return "postcode", index.FieldPostcode, index.ViewPostcode, strings.ToUpper(req.Postcode)
	default:
		return "empty", "", "", ""
	}
}

func emptyPage(pageSize int) Page {
	return Page{Addresses: []index.Document{}, PageSize: pageSize}
}

func (s *Service) cacheGet(ctx context.Context, key string) (Page, bool) {
	if s.cache == nil {
		return Page{}, false
	}
	raw, err := s.cache.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			s.metrics.IncrementCacheLookup("miss")
		} else {
			s.metrics.IncrementCacheLookup("error")
			s.logger.WarnContext(ctx, "search cache lookup failed", "error", err)
		}
		return Page{}, false
	}
	var page Page
	if err := json.Unmarshal(raw, &page); err != nil {
		s.metrics.IncrementCacheLookup("error")
		return Page{}, false
	}
	s.metrics.IncrementCacheLookup("hit")
	return page, true
}

func (s *Service) cacheSet(ctx context.Context, key string, page Page) {
	if s.cache == nil {
		return
	}
	raw, err := json.Marshal(page)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, key, raw, s.cacheTTL).Err(); err != nil {
		s.logger.WarnContext(ctx, "search cache write failed", "error", err)
	}
}
