package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/LandRegistry/address-search-api/internal/index"
	"github.com/LandRegistry/address-search-api/internal/platform/config"
	"github.com/LandRegistry/address-search-api/internal/platform/httpserver"
	"github.com/LandRegistry/address-search-api/internal/platform/logger"
	"github.com/LandRegistry/address-search-api/internal/platform/metrics"
	"github.com/LandRegistry/address-search-api/internal/platform/redis"
	"github.com/LandRegistry/address-search-api/internal/search"
	"github.com/LandRegistry/address-search-api/internal/search/handler"
)

// main wires high-level dependencies and keeps the server lifecycle small.
// Business logic lives in the internal packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := index.NewElasticStore(cfg.Elasticsearch, log)
	if err != nil {
		log.Error("failed to create index store", "error", err)
		os.Exit(1)
	}

	m := metrics.New()

	opts := []search.Option{search.WithMetrics(m)}
	cache, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		log.Warn("search cache unavailable, continuing without it", "error", err)
	}
	if cache != nil {
		defer cache.Close()
		opts = append(opts, search.WithCache(cache, cfg.SearchCacheTTL))
		log.Info("search cache enabled", "ttl", cfg.SearchCacheTTL)
	}

	svc := search.New(store, cfg.MaxSearchResults, cfg.ResultsPerPage, log, opts...)

	router := chi.NewRouter()
	handler.New(svc, store, log).Register(router)
	srv := httpserver.New(cfg.Addr, router)

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsSrv := httpserver.New(cfg.MetricsAddr, metricsMux)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting address search api", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		log.Info("starting metrics listener", "addr", cfg.MetricsAddr)
		if err := metricsSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		err := srv.Shutdown(shutdownCtx)
		if merr := metricsSrv.Shutdown(shutdownCtx); err == nil {
			err = merr
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("shut down cleanly")
}
