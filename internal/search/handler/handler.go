package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/LandRegistry/address-search-api/internal/platform/middleware"
	"github.com/LandRegistry/address-search-api/internal/search"
)

const internalServerErrorBody = `{"error":"Internal server error"}`

// Service defines the interface for search operations.
type Service interface {
	Search(ctx context.Context, req search.Request) (search.Page, error)
}

// Prober checks index-store liveness for the health endpoint.
type Prober interface {
	Ping(ctx context.Context) error
}

// Handler handles the public search endpoints.
type Handler struct {
	logger *slog.Logger
	search Service
	prober Prober
}

// New creates a new search Handler.
func New(search Service, prober Prober, logger *slog.Logger) *Handler {
	return &Handler{
		logger: logger,
		search: search,
		prober: prober,
	}
}

// Register registers the search routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	searchRouter := chi.NewRouter()
	searchRouter.Use(middleware.Recovery(h.logger))
	searchRouter.Use(middleware.RequestID)
	searchRouter.Use(middleware.Logger(h.logger))
	searchRouter.Use(middleware.Timeout(30 * time.Second))
	searchRouter.Get("/search", h.handleSearch)
	searchRouter.Get("/health", h.handleHealth)
	// Monitoring tools still probe the root path.
	searchRouter.Get("/", h.handleHealth)

	r.Mount("/", searchRouter)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := middleware.GetRequestID(ctx)

	q := r.URL.Query()
	pageNumber, err := intParam(q.Get("page_number"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page_number must be an integer"})
		return
	}
	pageSize, err := intParam(q.Get("page_size"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "page_size must be an integer"})
		return
	}

	page, err := h.search.Search(ctx, search.Request{
		Postcode:   q.Get("postcode"),
		Phrase:     q.Get("phrase"),
		PageNumber: pageNumber,
		PageSize:   pageSize,
	})
	if err != nil {
		// The caller sees an opaque 500; the detail stays in the logs.
		h.logger.ErrorContext(ctx, "search request failed",
			"request_id", requestID,
			"error", err.Error(),
		)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(internalServerErrorBody))
		return
	}

	writeJSON(w, http.StatusOK, map[string]search.Page{"data": page})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.prober.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"status": "error",
			"errors": []string{"problem talking to elasticsearch: " + err.Error()},
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
