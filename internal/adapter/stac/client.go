// Package stac fetches raster asset listings from a SpatioTemporal Asset
// Catalog (STAC) API.
package stac

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
	"github.com/coralwatch/reef-covariate-etl/internal/observability"
)

// Sentinel errors for run-aborting catalog failures. A truncated catalog
// silently produces wrong covariate answers, so item fetching is
// all-or-nothing.
var (
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrPaginationLoop     = errors.New("pagination loop detected")
)

// Client talks to a STAC API. It paginates item listings to exhaustion and
// converts features into domain asset descriptors.
type Client struct {
	baseURL    string
	httpClient *http.Client
	pageLimit  int
	maxPages   int
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates a STAC catalog client. maxPages bounds link-following so
// a catalog that erroneously repeats its "next" link fails fast instead of
// looping forever.
func NewClient(baseURL string, timeout time.Duration, pageLimit, maxPages int, metrics *observability.Metrics, logger *slog.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		pageLimit:  pageLimit,
		maxPages:   maxPages,
		metrics:    metrics,
		logger:     logger,
	}
}

// ListCollections returns the identifiers of all collections in the catalog.
func (c *Client) ListCollections(ctx context.Context) ([]string, error) {
	var page collectionsResponse
	if err := c.getJSON(ctx, c.baseURL+"/collections", &page); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(page.Collections))
	for _, col := range page.Collections {
		ids = append(ids, col.ID)
	}
	return ids, nil
}

// FetchAllItems pages through every item of the collection, following
// rel="next" links until none remains, and returns one descriptor per feature
// with a resolvable timestamp. Features without one are dropped with a
// warning; any page-level failure aborts the fetch.
func (c *Client) FetchAllItems(ctx context.Context, collection string) ([]domain.AssetDescriptor, error) {
	next := fmt.Sprintf("%s/collections/%s/items?limit=%d", c.baseURL, collection, c.pageLimit)

	var descriptors []domain.AssetDescriptor
	for page := 0; next != ""; page++ {
		if page >= c.maxPages {
			return nil, fmt.Errorf("%w: exceeded %d pages for collection %s", ErrPaginationLoop, c.maxPages, collection)
		}

		var items itemsResponse
		if err := c.getJSON(ctx, next, &items); err != nil {
			return nil, err
		}
		c.metrics.CatalogPagesFetched.Inc()

		for _, f := range items.Features {
			d, err := c.toDescriptor(f)
			if err != nil {
				c.logger.Warn("dropping catalog feature",
					"collection", collection,
					"feature_id", f.ID,
					"error", err,
				)
				c.metrics.AssetsDropped.Inc()
				continue
			}
			descriptors = append(descriptors, d)
		}

		next = nextLink(items.Links)
	}

	return descriptors, nil
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrCatalogUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrCatalogUnavailable, resp.StatusCode, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrCatalogUnavailable, err)
	}
	return nil
}

// toDescriptor extracts the timestamp and asset URL from a feature. Features
// may carry several named assets; the lexicographically first with a
// non-empty href is chosen so repeated runs resolve identically.
func (c *Client) toDescriptor(f feature) (domain.AssetDescriptor, error) {
	ts, err := parseDatetime(f.Properties.Datetime)
	if err != nil {
		return domain.AssetDescriptor{}, err
	}

	keys := make([]string, 0, len(f.Assets))
	for k := range f.Assets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		if href := f.Assets[k].Href; href != "" {
			return domain.AssetDescriptor{
				Timestamp:  ts,
				TimeBucket: domain.Bucket(ts),
				AssetRef:   href,
			}, nil
		}
	}
	return domain.AssetDescriptor{}, errors.New("feature has no asset href")
}

func parseDatetime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, errors.New("feature has no datetime property")
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	ts, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unparseable datetime %q", s)
	}
	return ts, nil
}

func nextLink(links []link) string {
	for _, l := range links {
		if l.Rel == "next" {
			return l.Href
		}
	}
	return ""
}

// STAC API response types.

type collectionsResponse struct {
	Collections []struct {
		ID string `json:"id"`
	} `json:"collections"`
}

type itemsResponse struct {
	Features []feature `json:"features"`
	Links    []link    `json:"links"`
}

type feature struct {
	ID         string `json:"id"`
	Properties struct {
		Datetime string `json:"datetime"`
	} `json:"properties"`
	Assets map[string]assetRef `json:"assets"`
}

type assetRef struct {
	Href string `json:"href"`
}

type link struct {
	Rel  string `json:"rel"`
	Href string `json:"href"`
}
