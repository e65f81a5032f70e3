// Package zonal queries an external zonal-statistics service for raster
// summaries at point+buffer geometries.
package zonal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/coralwatch/reef-covariate-etl/internal/observability"
)

const (
	outcomeSuccess = "success"
	outcomeError   = "error"
)

// Client computes zonal statistics through the service's HTTP API. The
// service handles one statistic for one geometry against one raster per
// request; there is no batch endpoint.
type Client struct {
	baseURL    string
	httpClient *http.Client
	metrics    *observability.Metrics
}

// NewClient creates a zonal-statistics client.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		metrics:    metrics,
	}
}

// ComputeStat requests the named statistic for a circular buffer around the
// point, evaluated against the raster at assetRef. Any non-success status or
// malformed response is returned as an error; callers record it and move on.
func (c *Client) ComputeStat(ctx context.Context, lat, lon, bufferM float64, assetRef, stat string) (float64, error) {
	body := request{
		AOI: aoi{
			Type:        "Point",
			Coordinates: []float64{lon, lat},
			BufferSize:  bufferM,
		},
		Image: image{URL: assetRef},
		Stats: []string{stat},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return 0, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/zonal-stats", bytes.NewReader(payload))
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.ZonalRequests.WithLabelValues(outcomeError).Inc()
		return 0, fmt.Errorf("zonal-stats request: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.ZonalRequestDuration.Observe(time.Since(start).Seconds())

	if resp.StatusCode != http.StatusOK {
		c.metrics.ZonalRequests.WithLabelValues(outcomeError).Inc()
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("zonal-stats service: status %d: %s", resp.StatusCode, snippet)
	}

	var bands response
	if err := json.NewDecoder(resp.Body).Decode(&bands); err != nil {
		c.metrics.ZonalRequests.WithLabelValues(outcomeError).Inc()
		return 0, fmt.Errorf("decode response: %w", err)
	}

	value, err := extractStat(bands, stat)
	if err != nil {
		c.metrics.ZonalRequests.WithLabelValues(outcomeError).Inc()
		return 0, err
	}

	c.metrics.ZonalRequests.WithLabelValues(outcomeSuccess).Inc()
	return value, nil
}

// extractStat pulls the statistic from the per-band response. Single-band
// covariate rasters report under "band_1"; if that key is absent the first
// band in key order is used so multi-band responses still resolve
// deterministically.
func extractStat(bands response, stat string) (float64, error) {
	band, ok := bands["band_1"]
	if !ok {
		if len(bands) == 0 {
			return 0, fmt.Errorf("response has no bands")
		}
		keys := make([]string, 0, len(bands))
		for k := range bands {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		band = bands[keys[0]]
	}

	value, ok := band[stat]
	if !ok {
		return 0, fmt.Errorf("response band missing %q statistic", stat)
	}
	return value, nil
}

// Zonal-stats API request/response types.

type request struct {
	AOI   aoi      `json:"aoi"`
	Image image    `json:"image"`
	Stats []string `json:"stats"`
}

type aoi struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"` // [lon, lat]
	BufferSize  float64   `json:"buffer_size"`
}

type image struct {
	URL string `json:"url"`
}

type response map[string]map[string]float64
