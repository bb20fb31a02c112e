package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/LandRegistry/address-search-api/internal/addressbase"
	"github.com/LandRegistry/address-search-api/internal/index"
	"github.com/LandRegistry/address-search-api/internal/platform/config"
	"github.com/LandRegistry/address-search-api/internal/platform/logger"
	"github.com/LandRegistry/address-search-api/internal/platform/metrics"
)

// main imports AddressBase change files into the search index: either one
// CSV file, or a directory tree of zip archives containing CSV members.
// A failed run exits non-zero; per-record progress lives in the logs.
func main() {
	var (
		file = flag.String("file", "", "AddressBase CSV change file to import")
		dir  = flag.String("dir", "", "directory containing zip archives of change files")
	)
	flag.Parse()

	if (*file == "") == (*dir == "") {
		fmt.Fprintln(os.Stderr, "exactly one of -file or -dir is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg := config.FromEnv()
	log := logger.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := index.NewElasticStore(cfg.Elasticsearch, log)
	if err != nil {
		log.Error("failed to create index store", "error", err)
		os.Exit(1)
	}

	importer := addressbase.NewImporter(store, log, addressbase.WithMetrics(metrics.New()))

	if *dir != "" {
		if err := importer.RunZipDir(ctx, *dir); err != nil {
			log.Error("import failed", "dir", *dir, "error", err)
			os.Exit(1)
		}
		return
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Error("failed to open change file", "file", *file, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	if _, err := importer.Run(ctx, f); err != nil {
		os.Exit(1) // the run boundary already logged the failure
	}
}
