package domain

import "math"

// Statistic names accepted by the aggregation policy and the zonal-stats
// service. StatMax is the default for "maximum over period" covariates such
// as degree heating weeks.
const (
	StatMax  = "max"
	StatMin  = "min"
	StatMean = "mean"
)

// Aggregate reduces the per-asset zonal results for one record into its final
// covariate row.
//
// An empty results slice means the record's window matched no assets in the
// catalog. A non-empty slice with no ZonalOK entries means every request for
// the record failed. Both degrade the row to a nil value with an explanatory
// status; neither is an error. Otherwise the ok values are combined by the
// statistic's natural operator and rounded to two decimals after reduction.
// A single matched asset reduces to its own value, no special case.
func Aggregate(record SurveyRecord, results []ZonalStatResult, stat string) CovariateResult {
	out := CovariateResult{
		Record:        record,
		AssetsMatched: len(results),
		ComputedAt:    clock.Now().UTC(),
	}

	if len(results) == 0 {
		out.Status = CovariateNoMatchingAssets
		return out
	}

	var values []float64
	for _, r := range results {
		if r.Status == ZonalOK {
			values = append(values, r.Value)
		} else {
			out.RequestsFailed++
		}
	}

	if len(values) == 0 {
		out.Status = CovariateNoSuccessfulRequests
		return out
	}

	v := round2(reduce(values, stat))
	out.AggregateValue = &v
	out.Status = CovariateOK
	return out
}

// reduce applies the statistic's combining operator: max composes
// element-wise for a maximum-over-period covariate, min symmetrically, and
// mean averages the per-asset aggregates. Unknown statistics fall back to max.
func reduce(values []float64, stat string) float64 {
	switch stat {
	case StatMin:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Min(m, v)
		}
		return m
	case StatMean:
		sum := 0.0
		for _, v := range values {
			sum += v
		}
		return sum / float64(len(values))
	default:
		m := values[0]
		for _, v := range values[1:] {
			m = math.Max(m, v)
		}
		return m
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
