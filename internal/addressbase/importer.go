package addressbase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/LandRegistry/address-search-api/internal/index"
	"github.com/LandRegistry/address-search-api/internal/platform/metrics"
)

// Importer drives import runs against the index store. One run is a single
// sequential pass over one change file ending in one bulk submission; there
// is no per-operation retry or rollback.
type Importer struct {
	store   index.Store
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Importer)

// WithMetrics attaches Prometheus metrics to the importer.
func WithMetrics(m *metrics.Metrics) Option {
	return func(i *Importer) {
		i.metrics = m
	}
}

// NewImporter constructs an Importer.
func NewImporter(store index.Store, logger *slog.Logger, opts ...Option) *Importer {
	i := &Importer{store: store, logger: logger}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Summary aggregates the outcome of one import run.
type Summary struct {
	RunID      string
	Translated int
	Skipped    int
	Succeeded  int
	Failed     int
	Duration   time.Duration
}

// Run imports one change file. Every error is caught at this boundary,
// logged with full context and returned as a failed run; Run never panics
// the host process. The returned Summary is valid even when err is non-nil.
func (i *Importer) Run(ctx context.Context, input io.Reader) (Summary, error) {
	runID := uuid.NewString()
	start := time.Now()
	logger := i.logger.With("run_id", runID)

	summary, err := i.run(ctx, logger, input)
	summary.RunID = runID
	summary.Duration = time.Since(start)

	i.metrics.IncrementGroups("translated", summary.Translated)
	i.metrics.IncrementGroups("skipped", summary.Skipped)
	i.metrics.IncrementOps("ok", summary.Succeeded)
	i.metrics.IncrementOps("failed", summary.Failed)
	i.metrics.ObserveImportDuration(summary.Duration)

	if err != nil {
		i.metrics.IncrementImportRun("failed")
		logger.Error("import run failed",
			"error", err,
			"groups_translated", summary.Translated,
			"groups_skipped", summary.Skipped,
			"operations_failed", summary.Failed,
			"duration_ms", summary.Duration.Milliseconds(),
		)
		return summary, err
	}

	i.metrics.IncrementImportRun("ok")
	logger.Info("import run complete",
		"groups_translated", summary.Translated,
		"groups_skipped", summary.Skipped,
		"operations_submitted", summary.Succeeded,
		"duration_ms", summary.Duration.Milliseconds(),
	)
	return summary, nil
}

func (i *Importer) run(ctx context.Context, logger *slog.Logger, input io.Reader) (Summary, error) {
	if err := i.store.EnsureViews(ctx); err != nil {
		return Summary{}, err
	}

	src := newMutationSource(NewGroupReader(input, logger), logger)
	res, err := i.store.Bulk(ctx, src)

	summary := Summary{
		Translated: src.translated,
		Skipped:    src.groups.Skipped() + src.skipped,
		Succeeded:  res.Succeeded,
		Failed:     res.Failed,
	}
	return summary, err
}

// mutationSource adapts the group reader and translator into the pull-based
// stream the store's bulk API consumes, so a run never buffers more than one
// group's mutations.
type mutationSource struct {
	groups *GroupReader
	logger *slog.Logger

	queue      []index.Mutation
	translated int
	skipped    int
}

func newMutationSource(groups *GroupReader, logger *slog.Logger) *mutationSource {
	return &mutationSource{groups: groups, logger: logger}
}

func (s *mutationSource) Next() (index.Mutation, error) {
	for len(s.queue) == 0 {
		group, err := s.groups.Next()
		if err != nil {
			return index.Mutation{}, err // io.EOF or a format error
		}
		mutations, err := Translate(*group, s.groups.EntryDatetime())
		if err != nil {
			// Translation refuses undefined inputs; the group is skipped
			// without failing the run.
			s.skipped++
			s.logger.Warn("skipping untranslatable property group", "uprn", group.UPRN, "error", err)
			continue
		}
		s.translated++
		s.queue = mutations
	}

	m := s.queue[0]
	s.queue = s.queue[1:]
	return m, nil
}

// IsFormatError reports whether err was caused by malformed input rather
// than a store failure.
func IsFormatError(err error) bool {
	var fe *FormatError
	return errors.As(err, &fe)
}
