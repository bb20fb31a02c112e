// Package index defines the contract with the search-index store: the
// denormalized address document, the mutation operations the import pipeline
// produces, and the query shape the search service issues. Two
// implementations exist, an Elasticsearch-backed store and an in-memory store
// used by tests and local development.
package index

import (
	"context"
	"io"
)

// Indexed views. Each view is one queryable projection of the address
// document; the view's search field is the only analyzed or exact-matched
// field that differs between them.
const (
	ViewPostcode     = "address_by_postcode"
	ViewJoinedFields = "address_by_joined_fields"
)

// Search fields per view.
const (
	FieldPostcode     = "postcode"
	FieldJoinedFields = "joined_fields"
)

// Views lists every indexed view the store must maintain.
var Views = []string{ViewPostcode, ViewJoinedFields}

// SortFields is the deterministic multi-field sort applied by every search,
// in order. Documents missing a field sort last on that field.
var SortFields = []string{
	"sub_building_name",
	"building_name",
	"building_number",
	"dependent_thoroughfare_name",
	"thoroughfare_name",
}

// Document is the denormalized projection of one property group. Field names
// are snake_case on the wire to the index store.
type Document struct {
	UPRN                      string  `json:"uprn"`
	OrganisationName          string  `json:"organisation_name"`
	DepartmentName            string  `json:"department_name"`
	SubBuildingName           string  `json:"sub_building_name"`
	BuildingName              string  `json:"building_name"`
	BuildingNumber            string  `json:"building_number"`
	DependentThoroughfareName string  `json:"dependent_thoroughfare_name"`
	ThoroughfareName          string  `json:"thoroughfare_name"`
	DoubleDependentLocality   string  `json:"double_dependent_locality"`
	DependentLocality         string  `json:"dependent_locality"`
	PostTown                  string  `json:"post_town"`
	Postcode                  string  `json:"postcode"`
	JoinedFields              string  `json:"joined_fields"`
	XCoordinate               float64 `json:"x_coordinate"`
	YCoordinate               float64 `json:"y_coordinate"`
	EntryDatetime             string  `json:"entry_datetime"`
}

// Op tags a mutation operation.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Mutation is one tagged operation against one indexed view. Doc is nil for
// deletes.
type Mutation struct {
	Op   Op
	View string
	ID   string
	Doc  *Document
}

// MutationSource yields the mutations of one import run in order. Next
// returns io.EOF after the final mutation. Implementations are one-shot.
type MutationSource interface {
	Next() (Mutation, error)
}

// SliceSource adapts a fixed slice of mutations into a MutationSource.
type SliceSource struct {
	mutations []Mutation
	pos       int
}

func NewSliceSource(mutations []Mutation) *SliceSource {
	return &SliceSource{mutations: mutations}
}

func (s *SliceSource) Next() (Mutation, error) {
	if s.pos >= len(s.mutations) {
		return Mutation{}, io.EOF
	}
	m := s.mutations[s.pos]
	s.pos++
	return m, nil
}

// Query is a term-equality search against one view with the fixed sort and
// offset/limit pagination.
type Query struct {
	View  string
	Field string
	Term  string
	From  int
	Size  int
}

// Result is one page of matching documents plus the store's total match
// count before pagination.
type Result struct {
	Documents []Document
	Total     int
}

// BulkResult aggregates the outcome of one bulk submission. There is no
// per-operation transactionality: a run either fully succeeds or is reported
// as one aggregate failure.
type BulkResult struct {
	Succeeded int
	Failed    int
}

// Store is the index-store contract required by the import pipeline and the
// search service.
type Store interface {
	// EnsureViews creates every indexed view with its field mapping if it
	// does not already exist.
	EnsureViews(ctx context.Context) error

	// Bulk drains src and submits all mutations as one bulk operation.
	Bulk(ctx context.Context, src MutationSource) (BulkResult, error)

	// Search executes a term query with the deterministic sort.
	Search(ctx context.Context, q Query) (Result, error)

	// Ping probes store liveness.
	Ping(ctx context.Context) error
}
