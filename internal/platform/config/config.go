package config

import (
	"os"
	"strconv"
	"time"
)

// Server captures configuration for the search API process.
type Server struct {
	Addr        string
	MetricsAddr string

	Elasticsearch Elasticsearch
	Redis         Redis

	MaxSearchResults int
	ResultsPerPage   int
	ShutdownTimeout  time.Duration
	SearchCacheTTL   time.Duration
	RequestTimeout   time.Duration
}

// Elasticsearch holds index-store connection settings.
type Elasticsearch struct {
	Endpoint string
}

// Redis holds optional search-cache settings. An empty URL means the cache
// is not configured.
type Redis struct {
	URL string
}

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	return Server{
		Addr:             envOr("ADDRESS_SEARCH_ADDR", ":8080"),
		MetricsAddr:      envOr("METRICS_ADDR", ":9090"),
		Elasticsearch:    Elasticsearch{Endpoint: envOr("ELASTICSEARCH_ENDPOINT", "http://localhost:9200")},
		Redis:            Redis{URL: os.Getenv("REDIS_URL")},
		MaxSearchResults: envIntOr("MAX_NUMBER_SEARCH_RESULTS", 1000),
		ResultsPerPage:   envIntOr("SEARCH_RESULTS_PER_PAGE", 20),
		ShutdownTimeout:  10 * time.Second,
		SearchCacheTTL:   time.Minute,
		RequestTimeout:   30 * time.Second,
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
