package domain

import "time"

// BucketLayout is the time-bucket key format aligning survey dates with
// monthly raster assets.
const BucketLayout = "2006-01"

// Bucket returns the year-month key for t.
func Bucket(t time.Time) string {
	return t.UTC().Format(BucketLayout)
}

// MonthBuckets returns the windowMonths year-month keys covering the trailing
// window that ends at the bucket containing sampleDate, in chronological
// order: exactly windowMonths distinct contiguous buckets, the last being
// sampleDate's own month.
//
// The anchor is truncated to the first of the month before stepping back, so
// calendar arithmetic from a day-31 sample date cannot skip or repeat a month
// the way fixed 30-day steps would.
func MonthBuckets(sampleDate time.Time, windowMonths int) []string {
	if windowMonths <= 0 {
		return nil
	}
	t := sampleDate.UTC()
	anchor := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)

	buckets := make([]string, 0, windowMonths)
	for i := windowMonths - 1; i >= 0; i-- {
		buckets = append(buckets, anchor.AddDate(0, -i, 0).Format(BucketLayout))
	}
	return buckets
}
