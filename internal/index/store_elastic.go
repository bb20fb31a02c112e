package index

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esutil"

	"github.com/LandRegistry/address-search-api/internal/platform/config"
	"github.com/LandRegistry/address-search-api/pkg/sentinel"
)

// ElasticStore implements Store against an Elasticsearch cluster. Each
// indexed view is one index; the view's search field is the only field whose
// mapping differs between them.
type ElasticStore struct {
	client *elasticsearch.Client
	logger *slog.Logger
}

func NewElasticStore(cfg config.Elasticsearch, logger *slog.Logger) (*ElasticStore, error) {
	client, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.Endpoint},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &ElasticStore{client: client, logger: logger}, nil
}

func (s *ElasticStore) EnsureViews(ctx context.Context) error {
	for _, view := range Views {
		exists, err := s.client.Indices.Exists(
			[]string{view},
			s.client.Indices.Exists.WithContext(ctx),
		)
		if err != nil {
			return fmt.Errorf("check view %s: %w", view, err)
		}
		exists.Body.Close()
		if exists.StatusCode == 200 {
			continue
		}

		body, err := json.Marshal(viewMapping(view))
		if err != nil {
			return fmt.Errorf("marshal mapping for view %s: %w", view, err)
		}
		res, err := s.client.Indices.Create(
			view,
			s.client.Indices.Create.WithContext(ctx),
			s.client.Indices.Create.WithBody(bytes.NewReader(body)),
		)
		if err != nil {
			return fmt.Errorf("create view %s: %w", view, err)
		}
		defer res.Body.Close()
		if res.IsError() {
			return fmt.Errorf("create view %s: %s", view, res.Status())
		}
		s.logger.InfoContext(ctx, "created indexed view", "view", view)
	}
	return nil
}

func (s *ElasticStore) Bulk(ctx context.Context, src MutationSource) (BulkResult, error) {
	bi, err := esutil.NewBulkIndexer(esutil.BulkIndexerConfig{
		Client:     s.client,
		NumWorkers: 1,
	})
	if err != nil {
		return BulkResult{}, fmt.Errorf("create bulk indexer: %w", err)
	}

	var (
		mu       sync.Mutex
		firstErr string
	)
	onFailure := func(ctx context.Context, item esutil.BulkIndexerItem, res esutil.BulkIndexerResponseItem, err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr != "" {
			return
		}
		if err != nil {
			firstErr = err.Error()
			return
		}
		firstErr = fmt.Sprintf("%s %s/%s: %s", item.Action, item.Index, item.DocumentID, res.Error.Reason)
	}

	drainErr := drain(ctx, src, func(m Mutation) error {
		item, err := bulkItem(m)
		if err != nil {
			return err
		}
		item.OnFailure = onFailure
		return bi.Add(ctx, item)
	})

	if err := bi.Close(ctx); err != nil {
		return BulkResult{}, fmt.Errorf("close bulk indexer: %w", err)
	}
	if drainErr != nil {
		return BulkResult{}, drainErr
	}

	stats := bi.Stats()
	result := BulkResult{
		Succeeded: int(stats.NumIndexed + stats.NumCreated + stats.NumUpdated + stats.NumDeleted),
		Failed:    int(stats.NumFailed),
	}
	if result.Failed > 0 {
		return result, fmt.Errorf("bulk submission: %d of %d operations failed, first: %s",
			result.Failed, result.Failed+result.Succeeded, firstErr)
	}
	return result, nil
}

func drain(ctx context.Context, src MutationSource, fn func(Mutation) error) error {
	for {
		m, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(m); err != nil {
			return err
		}
	}
}

func bulkItem(m Mutation) (esutil.BulkIndexerItem, error) {
	item := esutil.BulkIndexerItem{
		Index:      m.View,
		DocumentID: m.ID,
	}
	switch m.Op {
	case OpInsert:
		body, err := json.Marshal(m.Doc)
		if err != nil {
			return item, fmt.Errorf("marshal document %s: %w", m.ID, err)
		}
		item.Action = "index"
		item.Body = bytes.NewReader(body)
	case OpUpdate:
		body, err := json.Marshal(map[string]*Document{"doc": m.Doc})
		if err != nil {
			return item, fmt.Errorf("marshal document %s: %w", m.ID, err)
		}
		item.Action = "update"
		item.Body = bytes.NewReader(body)
	case OpDelete:
		item.Action = "delete"
	default:
		return item, fmt.Errorf("unknown mutation op %q for document %s", m.Op, m.ID)
	}
	return item, nil
}

func (s *ElasticStore) Search(ctx context.Context, q Query) (Result, error) {
	sorts := make([]any, 0, len(SortFields))
	for _, field := range SortFields {
		sorts = append(sorts, map[string]any{field: map[string]any{"missing": "_last"}})
	}
	body, err := json.Marshal(map[string]any{
		"query": map[string]any{
			"term": map[string]any{q.Field: map[string]any{"value": q.Term}},
		},
		"sort": sorts,
		"from": q.From,
		"size": q.Size,
	})
	if err != nil {
		return Result{}, fmt.Errorf("marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(q.View),
		s.client.Search.WithBody(bytes.NewReader(body)),
		s.client.Search.WithTrackTotalHits(true),
	)
	if err != nil {
		return Result{}, fmt.Errorf("search %s: %w", q.View, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return Result{}, fmt.Errorf("search %s: %s", q.View, res.Status())
	}

	var sr struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source Document `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return Result{}, fmt.Errorf("decode search response: %w", err)
	}

	docs := make([]Document, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		docs = append(docs, hit.Source)
	}
	return Result{Documents: docs, Total: sr.Hits.Total.Value}, nil
}

func (s *ElasticStore) Ping(ctx context.Context) error {
	res, err := s.client.Info(s.client.Info.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch %w: %v", sentinel.ErrUnavailable, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("elasticsearch %w: %s", sentinel.ErrUnavailable, res.Status())
	}
	return nil
}

// viewMapping declares the field mapping for one view. Every address
// component is exact-match so the deterministic sort works; the joined-fields
// view additionally analyzes joined_fields for free-text search.
func viewMapping(view string) map[string]any {
	props := map[string]any{
		"uprn":                        map[string]any{"type": "keyword"},
		"organisation_name":           map[string]any{"type": "keyword"},
		"department_name":             map[string]any{"type": "keyword"},
		"sub_building_name":           map[string]any{"type": "keyword"},
		"building_name":               map[string]any{"type": "keyword"},
		"building_number":             map[string]any{"type": "keyword"},
		"dependent_thoroughfare_name": map[string]any{"type": "keyword"},
		"thoroughfare_name":           map[string]any{"type": "keyword"},
		"double_dependent_locality":   map[string]any{"type": "keyword"},
		"dependent_locality":          map[string]any{"type": "keyword"},
		"post_town":                   map[string]any{"type": "keyword"},
		"postcode":                    map[string]any{"type": "keyword"},
		"joined_fields":               map[string]any{"type": "keyword", "index": false},
		"x_coordinate":                map[string]any{"type": "float"},
		"y_coordinate":                map[string]any{"type": "float"},
		"entry_datetime":              map[string]any{"type": "date", "format": "date_time_no_millis"},
	}
	if view == ViewJoinedFields {
		props[FieldJoinedFields] = map[string]any{"type": "text"}
	}
	return map[string]any{"mappings": map[string]any{"properties": props}}
}
