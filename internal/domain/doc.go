// Package domain models reef survey covariate extraction.
//
// # Data Source
//
// Survey records originate from reef monitoring programs: one row per survey
// with a site location (WGS-84 lat/lon), a sample date, a buffer radius
// defining the area of interest around the site, and the measured ecological
// value (e.g. percent coral cover) the covariate will later be regressed
// against.
//
// The environmental covariate comes from a SpatioTemporal Asset Catalog
// (STAC) of monthly raster layers. The default layer is Degree Heating Weeks
// (DHW), a thermal-stress index derived from sea-surface-temperature
// anomalies, published one raster per month.
//
// # Time Buckets and Windows
//
// Rasters are monthly, so survey dates are aligned with assets through
// year-month keys ("2006-01" layout). A record's window of interest is the
// trailing N months ending at the month containing its sample date: exactly N
// distinct contiguous buckets, computed with calendar-month arithmetic
// anchored at the first of the month (see [MonthBuckets]). For DHW the
// conventional window is 12 months, capturing the worst thermal stress over
// the year preceding a survey.
//
// # Aggregation Policy
//
// Each matched asset yields one zonal statistic (default "max") for the
// record's point+buffer geometry. Per-asset values are then combined by the
// statistic's own operator (max of maxes for DHW) and rounded to two
// decimals after reduction. The reduction is commutative and associative, so
// request ordering and concurrency cannot change results.
//
// # Degraded Outcomes
//
// Missing rasters and failed service calls degrade a single row, never the
// batch:
//
//	no_matching_assets      window resolved to zero catalog assets
//	no_successful_requests  assets matched but every request failed
//
// Both carry a nil aggregate value. Downstream joins key on record ID and
// filter on status.
package domain
