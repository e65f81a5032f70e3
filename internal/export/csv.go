// Package export writes the covariate result table to files for downstream
// join and plot consumers.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
)

var csvHeader = []string{
	"id", "project", "site_id", "latitude", "longitude", "sample_date",
	"measured_value", "aggregate_value", "status",
}

// WriteCSV writes one row per covariate result to path, creating parent
// directories as needed. Records with a nil aggregate value get an empty
// cell, not a zero.
func WriteCSV(path string, results []domain.CovariateResult) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("writing header: %w", err)
	}

	for _, r := range results {
		if err := w.Write(resultRow(r)); err != nil {
			return fmt.Errorf("writing row for record %s: %w", r.Record.ID, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flushing output: %w", err)
	}
	return f.Close()
}

func resultRow(r domain.CovariateResult) []string {
	aggregate := ""
	if r.AggregateValue != nil {
		aggregate = strconv.FormatFloat(*r.AggregateValue, 'f', 2, 64)
	}
	return []string{
		r.Record.ID,
		r.Record.Project,
		r.Record.SiteID,
		strconv.FormatFloat(r.Record.Latitude, 'f', -1, 64),
		strconv.FormatFloat(r.Record.Longitude, 'f', -1, 64),
		r.Record.SampleDate.Format("2006-01-02"),
		strconv.FormatFloat(r.Record.MeasuredValue, 'f', -1, 64),
		aggregate,
		string(r.Status),
	}
}
