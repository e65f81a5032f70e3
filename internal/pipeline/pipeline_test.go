package pipeline_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
	"github.com/coralwatch/reef-covariate-etl/internal/observability"
	"github.com/coralwatch/reef-covariate-etl/internal/pipeline"
)

// --- mocks ---

type mockCatalog struct {
	collections    []string
	collectionsErr error
	items          []domain.AssetDescriptor
	itemsErr       error
}

func (m *mockCatalog) ListCollections(_ context.Context) ([]string, error) {
	if m.collectionsErr != nil {
		return nil, m.collectionsErr
	}
	return m.collections, nil
}

func (m *mockCatalog) FetchAllItems(_ context.Context, _ string) ([]domain.AssetDescriptor, error) {
	if m.itemsErr != nil {
		return nil, m.itemsErr
	}
	return m.items, nil
}

// mockStats maps asset refs to values; refs in failRefs fail their request.
type mockStats struct {
	mu       sync.Mutex
	values   map[string]float64
	failRefs map[string]bool
	calls    []string
}

func (m *mockStats) ComputeStat(_ context.Context, _, _, _ float64, assetRef, _ string) (float64, error) {
	m.mu.Lock()
	m.calls = append(m.calls, assetRef)
	m.mu.Unlock()

	if m.failRefs[assetRef] {
		return 0, errors.New("service unavailable")
	}
	v, ok := m.values[assetRef]
	if !ok {
		return 0, fmt.Errorf("unexpected asset %s", assetRef)
	}
	return v, nil
}

func (m *mockStats) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func monthlyAsset(ref string, y int, m time.Month) domain.AssetDescriptor {
	ts := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
	return domain.AssetDescriptor{Timestamp: ts, TimeBucket: domain.Bucket(ts), AssetRef: ref}
}

func record(id string, sampleDate time.Time) domain.SurveyRecord {
	return domain.SurveyRecord{
		ID:            id,
		Latitude:      -18.28,
		Longitude:     147.68,
		SampleDate:    sampleDate,
		BufferRadiusM: 450,
		MeasuredValue: 30,
	}
}

func newPipeline(catalog pipeline.CatalogSource, stats pipeline.StatProvider, opts pipeline.Options) *pipeline.Pipeline {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return pipeline.New(catalog, stats, opts, logger, observability.NewMetricsForTesting())
}

// --- tests ---

func TestRun_EndToEndScenario(t *testing.T) {
	// Catalog: assets for 2024-01, 2024-02, 2024-03. Window of 2 months.
	// Record A (2024-03-10) matches {2024-02, 2024-03}, both succeed.
	// Record B (2024-01-05) matches {2023-12, 2024-01}; only 2024-01 exists
	// and its request fails.
	catalog := &mockCatalog{
		collections: []string{"noaa-crw-dhw"},
		items: []domain.AssetDescriptor{
			monthlyAsset("jan", 2024, time.January),
			monthlyAsset("feb", 2024, time.February),
			monthlyAsset("mar", 2024, time.March),
		},
	}
	stats := &mockStats{
		values:   map[string]float64{"feb": 3.1, "mar": 4.2},
		failRefs: map[string]bool{"jan": true},
	}

	p := newPipeline(catalog, stats, pipeline.Options{
		Collection:   "noaa-crw-dhw",
		WindowMonths: 2,
		WorkerCount:  2,
	})

	out, err := p.Run(context.Background(), []domain.SurveyRecord{
		record("A", time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)),
		record("B", time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 2)
	assert.NotEmpty(t, out.RunID)

	a := out.Results[0]
	assert.Equal(t, "A", a.Record.ID)
	assert.Equal(t, domain.CovariateOK, a.Status)
	require.NotNil(t, a.AggregateValue)
	assert.Equal(t, 4.2, *a.AggregateValue)
	assert.Equal(t, 2, a.AssetsMatched)

	b := out.Results[1]
	assert.Equal(t, "B", b.Record.ID)
	assert.Equal(t, domain.CovariateNoSuccessfulRequests, b.Status)
	assert.Nil(t, b.AggregateValue)
	assert.Equal(t, 1, b.AssetsMatched)
	assert.Equal(t, 1, b.RequestsFailed)

	// One request per matched asset: feb, mar for A plus jan for B.
	assert.Equal(t, 3, stats.callCount())

	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pipeline.DiagZonalRequestFailed, out.Diagnostics[0].Kind)
	assert.Equal(t, "B", out.Diagnostics[0].RecordID)
	assert.Equal(t, "jan", out.Diagnostics[0].AssetRef)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	catalog := &mockCatalog{
		collections: []string{"dhw"},
		items: []domain.AssetDescriptor{
			monthlyAsset("ok-asset", 2024, time.March),
			monthlyAsset("bad-asset", 2024, time.June),
		},
	}
	stats := &mockStats{
		values:   map[string]float64{"ok-asset": 2.5},
		failRefs: map[string]bool{"bad-asset": true},
	}

	p := newPipeline(catalog, stats, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
		WorkerCount:  4,
	})

	records := []domain.SurveyRecord{
		record("r1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
		record("r2", time.Date(2024, 6, 15, 0, 0, 0, 0, time.UTC)), // all requests fail
		record("r3", time.Date(2024, 3, 20, 0, 0, 0, 0, time.UTC)),
	}

	out, err := p.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out.Results, 3)

	assert.Equal(t, domain.CovariateOK, out.Results[0].Status)
	assert.Equal(t, 2.5, *out.Results[0].AggregateValue)

	assert.Equal(t, domain.CovariateNoSuccessfulRequests, out.Results[1].Status)
	assert.Nil(t, out.Results[1].AggregateValue)

	assert.Equal(t, domain.CovariateOK, out.Results[2].Status)
	assert.Equal(t, 2.5, *out.Results[2].AggregateValue)
}

func TestRun_PreservesInputOrderAcrossWorkers(t *testing.T) {
	catalog := &mockCatalog{
		collections: []string{"dhw"},
		items:       []domain.AssetDescriptor{monthlyAsset("mar", 2024, time.March)},
	}
	stats := &mockStats{values: map[string]float64{"mar": 1.0}}

	p := newPipeline(catalog, stats, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
		WorkerCount:  8,
	})

	var records []domain.SurveyRecord
	for i := 0; i < 50; i++ {
		records = append(records, record(fmt.Sprintf("rec-%02d", i), time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)))
	}

	out, err := p.Run(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, out.Results, len(records))

	for i, r := range out.Results {
		assert.Equal(t, fmt.Sprintf("rec-%02d", i), r.Record.ID)
	}
}

func TestRun_EmptyWindowYieldsNoMatchStatusAndWarning(t *testing.T) {
	catalog := &mockCatalog{
		collections: []string{"dhw"},
		items:       []domain.AssetDescriptor{monthlyAsset("jan", 2020, time.January)},
	}
	stats := &mockStats{}

	var logs strings.Builder
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	p := pipeline.New(catalog, stats, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 3,
	}, logger, observability.NewMetricsForTesting())

	out, err := p.Run(context.Background(), []domain.SurveyRecord{
		record("lonely", time.Date(2024, 8, 1, 0, 0, 0, 0, time.UTC)),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)

	assert.Equal(t, domain.CovariateNoMatchingAssets, out.Results[0].Status)
	assert.Nil(t, out.Results[0].AggregateValue)
	assert.Zero(t, stats.callCount())

	require.Len(t, out.Diagnostics, 1)
	assert.Equal(t, pipeline.DiagNoMatchingAssets, out.Diagnostics[0].Kind)
	assert.Equal(t, "lonely", out.Diagnostics[0].RecordID)
	assert.Contains(t, logs.String(), "lonely")
	assert.Contains(t, logs.String(), "window_months=3")
}

func TestRun_UnknownCollectionAborts(t *testing.T) {
	catalog := &mockCatalog{collections: []string{"other-layer"}}

	p := newPipeline(catalog, &mockStats{}, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
	})

	_, err := p.Run(context.Background(), []domain.SurveyRecord{
		record("r1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorContains(t, err, `collection "dhw" not found`)
}

func TestRun_CatalogFailureAborts(t *testing.T) {
	catalog := &mockCatalog{
		collections: []string{"dhw"},
		itemsErr:    errors.New("catalog unavailable: status 502"),
	}

	p := newPipeline(catalog, &mockStats{}, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
	})

	_, err := p.Run(context.Background(), []domain.SurveyRecord{
		record("r1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorContains(t, err, "fetching catalog items")
}

func TestRun_CancelledContextStopsBatch(t *testing.T) {
	catalog := &mockCatalog{
		collections: []string{"dhw"},
		items:       []domain.AssetDescriptor{monthlyAsset("mar", 2024, time.March)},
	}

	p := newPipeline(catalog, &mockStats{values: map[string]float64{"mar": 1.0}}, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx, []domain.SurveyRecord{
		record("r1", time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)),
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCheckReadiness(t *testing.T) {
	catalog := &mockCatalog{collections: []string{"dhw"}}
	p := newPipeline(catalog, &mockStats{}, pipeline.Options{
		Collection:   "dhw",
		WindowMonths: 1,
	})

	assert.Error(t, p.CheckReadiness(context.Background()))

	_, err := p.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.NoError(t, p.CheckReadiness(context.Background()))
}
