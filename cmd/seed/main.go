// Command seed loads survey records from a CSV file into the survey SQLite
// database, using the same store the batch pipeline reads from.
//
// Usage:
//
//	go run ./cmd/seed -csv surveys.csv -db data/surveys.db
//
// Expected CSV columns:
//
//	id,project,site_id,latitude,longitude,sample_date,buffer_radius_m,measured_value
//
// sample_date is YYYY-MM-DD. buffer_radius_m may be empty; the pipeline then
// applies its configured default.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/coralwatch/reef-covariate-etl/internal/domain"
	"github.com/coralwatch/reef-covariate-etl/internal/store"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	csvPath := flag.String("csv", "", "path to the survey records CSV")
	dbPath := flag.String("db", "data/surveys.db", "path to the survey SQLite database")
	flag.Parse()

	if *csvPath == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -csv")
	}

	records, err := readSurveyCSV(*csvPath)
	if err != nil {
		return err
	}

	s, err := store.Open(*dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.InsertSurveyRecords(context.Background(), records); err != nil {
		return err
	}

	fmt.Printf("seeded %d survey records into %s\n", len(records), *dbPath)
	return nil
}

func readSurveyCSV(path string) ([]domain.SurveyRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%s: no data rows", path)
	}

	var records []domain.SurveyRecord
	for i, row := range rows[1:] { // skip header
		rec, err := parseRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func parseRow(row []string) (domain.SurveyRecord, error) {
	if len(row) != 8 {
		return domain.SurveyRecord{}, fmt.Errorf("expected 8 columns, got %d", len(row))
	}

	lat, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return domain.SurveyRecord{}, fmt.Errorf("invalid latitude %q", row[3])
	}
	lon, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return domain.SurveyRecord{}, fmt.Errorf("invalid longitude %q", row[4])
	}
	sampleDate, err := time.Parse("2006-01-02", row[5])
	if err != nil {
		return domain.SurveyRecord{}, fmt.Errorf("invalid sample_date %q", row[5])
	}

	buffer := 0.0
	if row[6] != "" {
		buffer, err = strconv.ParseFloat(row[6], 64)
		if err != nil {
			return domain.SurveyRecord{}, fmt.Errorf("invalid buffer_radius_m %q", row[6])
		}
	}

	measured, err := strconv.ParseFloat(row[7], 64)
	if err != nil {
		return domain.SurveyRecord{}, fmt.Errorf("invalid measured_value %q", row[7])
	}

	return domain.SurveyRecord{
		ID:            row[0],
		Project:       row[1],
		SiteID:        row[2],
		Latitude:      lat,
		Longitude:     lon,
		SampleDate:    sampleDate,
		BufferRadiusM: buffer,
		MeasuredValue: measured,
	}, nil
}
