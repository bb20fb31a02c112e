package search

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LandRegistry/address-search-api/internal/index"
)

// stubStore records the queries it receives and plays back a canned result.
type stubStore struct {
	queries []index.Query
	result  index.Result
	err     error
}

func (s *stubStore) EnsureViews(context.Context) error { return nil }
func (s *stubStore) Ping(context.Context) error        { return nil }
func (s *stubStore) Bulk(context.Context, index.MutationSource) (index.BulkResult, error) {
	return index.BulkResult{}, nil
}
func (s *stubStore) Search(_ context.Context, q index.Query) (index.Result, error) {
	s.queries = append(s.queries, q)
	return s.result, s.err
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func docs(n int) []index.Document {
	out := make([]index.Document, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, index.Document{UPRN: strconv.Itoa(i), Postcode: "EX4 4QU"})
	}
	return out
}

func TestSearchByPostcode(t *testing.T) {
	store := &stubStore{result: index.Result{Documents: docs(2), Total: 2}}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "ex4 4qu", PageNumber: 0, PageSize: 20})
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, index.ViewPostcode, q.View)
	assert.Equal(t, index.FieldPostcode, q.Field)
	assert.Equal(t, "EX4 4QU", q.Term, "postcode input is uppercased")
	assert.Zero(t, q.From)
	assert.Equal(t, 20, q.Size)

	assert.Len(t, page.Addresses, 2)
	assert.Equal(t, 2, page.Total)
	assert.Zero(t, page.PageNumber)
	assert.Equal(t, 20, page.PageSize)
}

func TestSearchByPhrase(t *testing.T) {
	store := &stubStore{result: index.Result{Documents: docs(1), Total: 1}}
	svc := New(store, 1000, 20, discardLogger())

	_, err := svc.Search(context.Background(), Request{Phrase: "Glenthorne Road, Exeter"})
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	q := store.queries[0]
	assert.Equal(t, index.ViewJoinedFields, q.View)
	assert.Equal(t, index.FieldJoinedFields, q.Field)
	assert.Equal(t, "glenthorne road, exeter", q.Term, "phrase input is lowercased")
}

func TestSearchPhraseTakesPrecedence(t *testing.T) {
	store := &stubStore{}
	svc := New(store, 1000, 20, discardLogger())

	_, err := svc.Search(context.Background(), Request{Phrase: "high street", Postcode: "EX4 4QU"})
	require.NoError(t, err)

	require.Len(t, store.queries, 1)
	assert.Equal(t, index.ViewJoinedFields, store.queries[0].View)
}

func TestSearchWithoutParametersSkipsStore(t *testing.T) {
	store := &stubStore{}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{PageNumber: 3})
	require.NoError(t, err)

	assert.Empty(t, store.queries, "store must not be queried")
	assert.NotNil(t, page.Addresses)
	assert.Empty(t, page.Addresses)
	assert.Zero(t, page.Total)
	assert.Zero(t, page.PageNumber)
	assert.Equal(t, 20, page.PageSize)
}

func TestSearchCapsTotalAtMaximum(t *testing.T) {
	store := &stubStore{result: index.Result{Documents: docs(20), Total: 5000}}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "EX4 4QU"})
	require.NoError(t, err)
	assert.Equal(t, 1000, page.Total)
}

func TestSearchClampsPageNumberToLastPage(t *testing.T) {
	store := &stubStore{result: index.Result{Documents: nil, Total: 45}}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "EX4 4QU", PageNumber: 9})
	require.NoError(t, err)

	// 45 results at 20 per page is 3 pages; the last valid page is 2.
	assert.Equal(t, 2, page.PageNumber)
}

func TestSearchDefaultsPageSize(t *testing.T) {
	store := &stubStore{result: index.Result{Total: 1}}
	svc := New(store, 1000, 25, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "EX4 4QU"})
	require.NoError(t, err)
	assert.Equal(t, 25, page.PageSize)
	assert.Equal(t, 25, store.queries[0].Size)
}

func TestSearchNegativePageNumberTreatedAsFirst(t *testing.T) {
	store := &stubStore{result: index.Result{Total: 1}}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "EX4 4QU", PageNumber: -4})
	require.NoError(t, err)
	assert.Zero(t, page.PageNumber)
	assert.Zero(t, store.queries[0].From)
}

func TestSearchEmptyResultReportsPageZero(t *testing.T) {
	store := &stubStore{result: index.Result{Total: 0}}
	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(context.Background(), Request{Postcode: "ZZ9 9ZZ", PageNumber: 5})
	require.NoError(t, err)
	assert.Zero(t, page.PageNumber)
	assert.NotNil(t, page.Addresses)
	assert.Empty(t, page.Addresses)
}

func TestSearchPropagatesStoreFailure(t *testing.T) {
	store := &stubStore{err: errors.New("cluster unreachable")}
	svc := New(store, 1000, 20, discardLogger())

	_, err := svc.Search(context.Background(), Request{Postcode: "EX4 4QU"})
	require.Error(t, err)
}

func TestSearchAgainstMemoryStore(t *testing.T) {
	store := index.NewInMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.EnsureViews(ctx))

	doc1 := index.Document{UPRN: "1", BuildingName: "ALPHA", Postcode: "EX4 4QU", JoinedFields: "alpha, ex4 4qu"}
	doc2 := index.Document{UPRN: "2", BuildingName: "BETA", Postcode: "EX4 4QU", JoinedFields: "beta, ex4 4qu"}
	_, err := store.Bulk(ctx, index.NewSliceSource([]index.Mutation{
		{Op: index.OpInsert, View: index.ViewPostcode, ID: "1", Doc: &doc1},
		{Op: index.OpInsert, View: index.ViewPostcode, ID: "2", Doc: &doc2},
		{Op: index.OpInsert, View: index.ViewJoinedFields, ID: "1", Doc: &doc1},
		{Op: index.OpInsert, View: index.ViewJoinedFields, ID: "2", Doc: &doc2},
	}))
	require.NoError(t, err)

	svc := New(store, 1000, 20, discardLogger())

	page, err := svc.Search(ctx, Request{Postcode: "EX4 4QU", PageSize: 20})
	require.NoError(t, err)
	require.Len(t, page.Addresses, 2)
	assert.Equal(t, "ALPHA", page.Addresses[0].BuildingName)
	assert.Equal(t, "BETA", page.Addresses[1].BuildingName)
	assert.Equal(t, 2, page.Total)

	page, err = svc.Search(ctx, Request{Phrase: "ALPHA, EX4 4QU"})
	require.NoError(t, err)
	require.Len(t, page.Addresses, 1)
	assert.Equal(t, "1", page.Addresses[0].UPRN)
}
