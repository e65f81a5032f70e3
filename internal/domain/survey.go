package domain

import "time"

// SurveyRecord is one geo-located reef survey row supplied by the upstream
// survey store. Immutable for the lifetime of a run.
type SurveyRecord struct {
	ID            string    `json:"id"`
	Project       string    `json:"project,omitempty"`
	SiteID        string    `json:"site_id,omitempty"`
	Latitude      float64   `json:"latitude"`
	Longitude     float64   `json:"longitude"`
	SampleDate    time.Time `json:"sample_date"`
	BufferRadiusM float64   `json:"buffer_radius_m"`
	MeasuredValue float64   `json:"measured_value"`
}

// AssetDescriptor references one time-stamped raster asset discovered in the
// catalog. TimeBucket is the year-month truncation of Timestamp ("2006-01").
type AssetDescriptor struct {
	Timestamp  time.Time `json:"timestamp"`
	TimeBucket string    `json:"time_bucket"`
	AssetRef   string    `json:"asset_ref"`
}

// ZonalStatStatus classifies the outcome of a single zonal-stats request.
type ZonalStatStatus string

const (
	ZonalOK            ZonalStatStatus = "ok"
	ZonalRequestFailed ZonalStatStatus = "request_failed"
)

// ZonalStatResult is the outcome of one (record, asset) zonal-stats request.
// Value is meaningful only when Status is ZonalOK.
type ZonalStatResult struct {
	AssetRef string
	Value    float64
	Status   ZonalStatStatus
}

// CovariateStatus classifies a per-record covariate outcome. These are
// statuses on the output row, never errors: the batch always emits one row
// per input record.
type CovariateStatus string

const (
	CovariateOK                   CovariateStatus = "ok"
	CovariateNoMatchingAssets     CovariateStatus = "no_matching_assets"
	CovariateNoSuccessfulRequests CovariateStatus = "no_successful_requests"
)

// CovariateResult is the final output row for one survey record.
// AggregateValue is nil unless Status is CovariateOK.
type CovariateResult struct {
	Record         SurveyRecord    `json:"record"`
	AggregateValue *float64        `json:"aggregate_value"`
	Status         CovariateStatus `json:"status"`
	AssetsMatched  int             `json:"assets_matched"`
	RequestsFailed int             `json:"requests_failed"`
	ComputedAt     time.Time       `json:"computed_at"`
}
