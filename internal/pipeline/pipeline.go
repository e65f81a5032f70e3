// Package pipeline orchestrates the covariate extraction batch: catalog
// discovery, temporal windowing, zonal-stats fan-out, and per-record
// aggregation.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
	"github.com/coralwatch/reef-covariate-etl/internal/observability"
)

// CatalogSource lists collections and exhaustively fetches a collection's
// raster assets.
type CatalogSource interface {
	ListCollections(ctx context.Context) ([]string, error)
	FetchAllItems(ctx context.Context, collection string) ([]domain.AssetDescriptor, error)
}

// StatProvider computes one zonal statistic for one geometry against one
// raster asset.
type StatProvider interface {
	ComputeStat(ctx context.Context, lat, lon, bufferM float64, assetRef, stat string) (float64, error)
}

// Options carries the extraction parameters for a batch run.
type Options struct {
	// Collection is the catalog collection to query. It is a deliberate
	// configuration choice, validated against the catalog; the pipeline never
	// falls back to the first discovered collection.
	Collection string

	WindowMonths int
	Stat         string

	// DefaultBufferM is applied to records that carry no buffer radius.
	DefaultBufferM float64

	// WorkerCount bounds concurrent record processing. Records are
	// independent; only the result slot order matters, and that is fixed by
	// input position.
	WorkerCount int
}

// Diagnostic is one warning captured during a run, returned alongside the
// result table so callers need not scrape logs.
type Diagnostic struct {
	RecordID string `json:"record_id,omitempty"`
	AssetRef string `json:"asset_ref,omitempty"`
	Kind     string `json:"kind"`
	Message  string `json:"message"`
}

// Diagnostic kinds.
const (
	DiagZonalRequestFailed = "zonal_request_failed"
	DiagNoMatchingAssets   = "no_matching_assets"
)

// RunResult is the outcome of one batch: exactly one CovariateResult per
// input record, in input order, plus collected diagnostics.
type RunResult struct {
	RunID       string
	Results     []domain.CovariateResult
	Diagnostics []Diagnostic
}

// Pipeline drives the batch covariate extraction.
type Pipeline struct {
	catalog CatalogSource
	stats   StatProvider
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
}

// New creates a Pipeline with the given collaborators and run options.
func New(catalog CatalogSource, stats StatProvider, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Stat == "" {
		opts.Stat = domain.StatMax
	}
	if opts.WorkerCount <= 0 {
		opts.WorkerCount = 1
	}
	return &Pipeline{
		catalog: catalog,
		stats:   stats,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once the asset index has been built, or an
// error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("asset index has not been built yet")
	}
	return nil
}

// Run executes one batch. Catalog failures abort the run; every per-record
// and per-asset failure degrades only its own output row. The returned table
// always has one row per input record, in input order.
func (p *Pipeline) Run(ctx context.Context, records []domain.SurveyRecord) (RunResult, error) {
	runID := uuid.NewString()
	logger := p.logger.With("run_id", runID)

	start := time.Now()
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)
	defer func() {
		p.metrics.BatchDuration.Observe(time.Since(start).Seconds())
	}()

	index, err := p.buildIndex(ctx, logger)
	if err != nil {
		return RunResult{RunID: runID}, err
	}
	p.ready.Store(true)

	logger.Info("batch started",
		"records", len(records),
		"window_months", p.opts.WindowMonths,
		"stat", p.opts.Stat,
		"workers", p.opts.WorkerCount,
	)

	results := make([]domain.CovariateResult, len(records))
	diags := &diagnostics{}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.WorkerCount)

	for i, rec := range records {
		g.Go(func() error {
			// Operator cancellation stops the batch between records.
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = p.processRecord(gctx, logger, index, rec, diags)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return RunResult{RunID: runID}, fmt.Errorf("batch interrupted: %w", err)
	}

	logger.Info("batch complete",
		"records", len(records),
		"warnings", diags.len(),
		"duration", time.Since(start),
	)

	return RunResult{RunID: runID, Results: results, Diagnostics: diags.snapshot()}, nil
}

// buildIndex validates the configured collection and indexes the full
// catalog listing by time bucket.
func (p *Pipeline) buildIndex(ctx context.Context, logger *slog.Logger) (domain.AssetIndex, error) {
	collections, err := p.catalog.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}
	if !slices.Contains(collections, p.opts.Collection) {
		return nil, fmt.Errorf("collection %q not found in catalog (available: %v)", p.opts.Collection, collections)
	}

	descriptors, err := p.catalog.FetchAllItems(ctx, p.opts.Collection)
	if err != nil {
		return nil, fmt.Errorf("fetching catalog items: %w", err)
	}

	index := domain.BuildIndex(descriptors)
	p.metrics.AssetsIndexed.Set(float64(index.Len()))
	logger.Info("asset index built",
		"collection", p.opts.Collection,
		"assets", index.Len(),
		"buckets", len(index),
	)
	return index, nil
}

// processRecord resolves one record's window, fans out zonal-stats requests
// for the matched assets, and reduces the outcomes to a single covariate row.
func (p *Pipeline) processRecord(ctx context.Context, logger *slog.Logger, index domain.AssetIndex, rec domain.SurveyRecord, diags *diagnostics) domain.CovariateResult {
	start := time.Now()

	buckets := domain.MonthBuckets(rec.SampleDate, p.opts.WindowMonths)
	candidates := index.Resolve(buckets)

	buffer := rec.BufferRadiusM
	if buffer <= 0 {
		buffer = p.opts.DefaultBufferM
	}

	statResults := make([]domain.ZonalStatResult, 0, len(candidates))
	for _, asset := range candidates {
		value, err := p.stats.ComputeStat(ctx, rec.Latitude, rec.Longitude, buffer, asset.AssetRef, p.opts.Stat)
		if err != nil {
			logger.Warn("zonal-stats request failed, skipping asset",
				"record_id", rec.ID,
				"asset_ref", asset.AssetRef,
				"error", err,
			)
			diags.add(Diagnostic{
				RecordID: rec.ID,
				AssetRef: asset.AssetRef,
				Kind:     DiagZonalRequestFailed,
				Message:  err.Error(),
			})
			statResults = append(statResults, domain.ZonalStatResult{
				AssetRef: asset.AssetRef,
				Status:   domain.ZonalRequestFailed,
			})
			continue
		}
		statResults = append(statResults, domain.ZonalStatResult{
			AssetRef: asset.AssetRef,
			Value:    value,
			Status:   domain.ZonalOK,
		})
	}

	result := domain.Aggregate(rec, statResults, p.opts.Stat)
	if result.Status == domain.CovariateNoMatchingAssets {
		logger.Warn("no raster assets matched record window",
			"record_id", rec.ID,
			"sample_date", rec.SampleDate.Format("2006-01-02"),
			"window_months", p.opts.WindowMonths,
		)
		diags.add(Diagnostic{
			RecordID: rec.ID,
			Kind:     DiagNoMatchingAssets,
			Message:  fmt.Sprintf("no assets in %d-month window ending %s", p.opts.WindowMonths, domain.Bucket(rec.SampleDate)),
		})
	}

	p.metrics.RecordsProcessed.WithLabelValues(string(result.Status)).Inc()
	p.metrics.RecordDuration.Observe(time.Since(start).Seconds())
	return result
}

// diagnostics is a concurrency-safe warning collector shared by record
// workers.
type diagnostics struct {
	mu   sync.Mutex
	list []Diagnostic
}

func (d *diagnostics) add(diag Diagnostic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.list = append(d.list, diag)
}

func (d *diagnostics) len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.list)
}

func (d *diagnostics) snapshot() []Diagnostic {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Diagnostic, len(d.list))
	copy(out, d.list)
	return out
}
