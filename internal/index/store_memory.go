package index

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
)

// InMemoryStore keeps every view as a map of UPRN to document. It mirrors the
// Elasticsearch store's observable behaviour closely enough for tests and
// local development: term equality, missing-last sort, offset/limit
// pagination, and update/delete failures for unknown documents.
type InMemoryStore struct {
	mu    sync.RWMutex
	views map[string]map[string]Document
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{views: make(map[string]map[string]Document)}
}

func (s *InMemoryStore) EnsureViews(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, view := range Views {
		if s.views[view] == nil {
			s.views[view] = make(map[string]Document)
		}
	}
	return nil
}

func (s *InMemoryStore) Bulk(ctx context.Context, src MutationSource) (BulkResult, error) {
	var res BulkResult
	for {
		m, err := src.Next()
		if errors.Is(err, io.EOF) {
			if res.Failed > 0 {
				return res, fmt.Errorf("bulk submission: %d of %d operations failed",
					res.Failed, res.Failed+res.Succeeded)
			}
			return res, nil
		}
		if err != nil {
			return res, err
		}
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if s.apply(m) {
			res.Succeeded++
		} else {
			res.Failed++
		}
	}
}

func (s *InMemoryStore) apply(m Mutation) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	view := s.views[m.View]
	if view == nil {
		return false
	}
	switch m.Op {
	case OpInsert:
		view[m.ID] = *m.Doc
	case OpUpdate:
		// Like the real store, a partial update of an absent document fails.
		if _, ok := view[m.ID]; !ok {
			return false
		}
		view[m.ID] = *m.Doc
	case OpDelete:
		if _, ok := view[m.ID]; !ok {
			return false
		}
		delete(view, m.ID)
	default:
		return false
	}
	return true
}

func (s *InMemoryStore) Search(_ context.Context, q Query) (Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	view, ok := s.views[q.View]
	if !ok {
		return Result{}, nil
	}

	var matched []Document
	for _, doc := range view {
		if fieldValue(doc, q.Field) == q.Term {
			matched = append(matched, doc)
		}
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return lessBySortFields(matched[i], matched[j])
	})

	total := len(matched)
	start := q.From
	if start > total {
		start = total
	}
	end := start + q.Size
	if end > total {
		end = total
	}
	return Result{Documents: matched[start:end], Total: total}, nil
}

func (s *InMemoryStore) Ping(_ context.Context) error {
	return nil
}

// Count reports the number of documents held in a view. Test helper.
func (s *InMemoryStore) Count(view string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.views[view])
}

// Get returns a document by view and id. Test helper.
func (s *InMemoryStore) Get(view, id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.views[view][id]
	return doc, ok
}

func lessBySortFields(a, b Document) bool {
	for _, field := range SortFields {
		av, bv := fieldValue(a, field), fieldValue(b, field)
		if av == bv {
			continue
		}
		// Empty values sort last, matching the store's missing-last semantics.
		if av == "" {
			return false
		}
		if bv == "" {
			return true
		}
		return av < bv
	}
	return false
}

func fieldValue(d Document, field string) string {
	switch field {
	case "uprn":
		return d.UPRN
	case "organisation_name":
		return d.OrganisationName
	case "department_name":
		return d.DepartmentName
	case "sub_building_name":
		return d.SubBuildingName
	case "building_name":
		return d.BuildingName
	case "building_number":
		return d.BuildingNumber
	case "dependent_thoroughfare_name":
		return d.DependentThoroughfareName
	case "thoroughfare_name":
		return d.ThoroughfareName
	case "double_dependent_locality":
		return d.DoubleDependentLocality
	case "dependent_locality":
		return d.DependentLocality
	case "post_town":
		return d.PostTown
	case "postcode":
		return d.Postcode
	case "joined_fields":
		return d.JoinedFields
	case "entry_datetime":
		return d.EntryDatetime
	default:
		return ""
	}
}
