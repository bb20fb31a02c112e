package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LandRegistry/address-search-api/internal/index"
	"github.com/LandRegistry/address-search-api/internal/search"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSearchRouter(t *testing.T) (http.Handler, *index.InMemoryStore) {
	t.Helper()
	store := index.NewInMemoryStore()
	require.NoError(t, store.EnsureViews(context.Background()))

	svc := search.New(store, 1000, 20, discardLogger())
	r := chi.NewRouter()
	New(svc, store, discardLogger()).Register(r)
	return r, store
}

func seedAddresses(t *testing.T, store *index.InMemoryStore, docs ...index.Document) {
	t.Helper()
	var mutations []index.Mutation
	for i := range docs {
		for _, view := range index.Views {
			mutations = append(mutations, index.Mutation{
				Op: index.OpInsert, View: view, ID: docs[i].UPRN, Doc: &docs[i],
			})
		}
	}
	_, err := store.Bulk(context.Background(), index.NewSliceSource(mutations))
	require.NoError(t, err)
}

type searchResponse struct {
	Data struct {
		Addresses  []index.Document `json:"addresses"`
		Total      int              `json:"total"`
		PageNumber int              `json:"page_number"`
		PageSize   int              `json:"page_size"`
	} `json:"data"`
}

func TestSearchByPostcodeEndpoint(t *testing.T) {
	router, store := newSearchRouter(t)
	seedAddresses(t, store,
		index.Document{UPRN: "1", BuildingName: "ALPHA", Postcode: "EX4 4QU"},
		index.Document{UPRN: "2", BuildingName: "BETA", Postcode: "EX4 4QU"},
		index.Document{UPRN: "3", BuildingName: "GAMMA", Postcode: "PL1 1AA"},
	)

	req := httptest.NewRequest(http.MethodGet, "/search?postcode=ex4+4qu&page_number=0&page_size=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp searchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Len(t, resp.Data.Addresses, 2)
	assert.Equal(t, 2, resp.Data.Total)
	assert.Equal(t, 0, resp.Data.PageNumber)
	assert.Equal(t, 20, resp.Data.PageSize)
}

func TestSearchByPhraseEndpoint(t *testing.T) {
	router, store := newSearchRouter(t)
	seedAddresses(t, store,
		index.Document{UPRN: "1", Postcode: "EX4 4QU", JoinedFields: "1, glenthorne road, exeter, ex4 4qu"},
	)

	req := httptest.NewRequest(http.MethodGet, "/search?phrase=1,+Glenthorne+Road,+Exeter,+EX4+4QU", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Data.Addresses, 1)
	assert.Equal(t, "1", resp.Data.Addresses[0].UPRN)
}

func TestSearchWithoutParametersReturnsEmptyPage(t *testing.T) {
	router, _ := newSearchRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/search", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotNil(t, resp.Data.Addresses)
	assert.Empty(t, resp.Data.Addresses)
	assert.Zero(t, resp.Data.Total)
}

func TestSearchRejectsNonNumericPagination(t *testing.T) {
	router, _ := newSearchRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/search?postcode=EX4+4QU&page_number=abc", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type failingService struct{}

func (failingService) Search(context.Context, search.Request) (search.Page, error) {
	return search.Page{}, errors.New("cluster on fire: secret detail")
}

type failingProber struct{}

func (failingProber) Ping(context.Context) error {
	return errors.New("connection refused")
}

type okProber struct{}

func (okProber) Ping(context.Context) error { return nil }

func TestSearchFailureReturnsOpaque500(t *testing.T) {
	r := chi.NewRouter()
	New(failingService{}, okProber{}, discardLogger()).Register(r)

	req := httptest.NewRequest(http.MethodGet, "/search?postcode=EX4+4QU", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
	assert.NotContains(t, rec.Body.String(), "secret detail")
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy store", func(t *testing.T) {
		router, _ := newSearchRouter(t)

		for _, path := range []string{"/health", "/"} {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			require.Equal(t, http.StatusOK, rec.Code, "path %s", path)
			assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
		}
	})

	t.Run("unreachable store surfaces probe error", func(t *testing.T) {
		r := chi.NewRouter()
		New(failingService{}, failingProber{}, discardLogger()).Register(r)

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)

		require.Equal(t, http.StatusInternalServerError, rec.Code)

		var resp struct {
			Status string   `json:"status"`
			Errors []string `json:"errors"`
		}
		require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
		assert.Equal(t, "error", resp.Status)
		require.Len(t, resp.Errors, 1)
		assert.Contains(t, resp.Errors[0], "connection refused")
	})
}

func TestPanicInHandlerReturnsOpaque500(t *testing.T) {
	r := chi.NewRouter()
	h := New(panickyService{}, okProber{}, discardLogger())
	h.Register(r)

	req := httptest.NewRequest(http.MethodGet, "/search?postcode=EX4+4QU", nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

type panickyService struct{}

func (panickyService) Search(context.Context, search.Request) (search.Page, error) {
	panic("boom")
}

func TestRequestIDPropagatedToResponse(t *testing.T) {
	router, _ := newSearchRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-ID"))
}
