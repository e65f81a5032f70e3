package domain

// AssetIndex maps a time-bucket key to the raster assets stamped within that
// month. Built once per run from the full catalog listing, read-only after.
type AssetIndex map[string][]AssetDescriptor

// BuildIndex groups descriptors by time bucket. Multiple assets sharing a
// bucket are all retained in input order; the aggregation step wants every
// candidate, not one representative.
func BuildIndex(descriptors []AssetDescriptor) AssetIndex {
	idx := make(AssetIndex)
	for _, d := range descriptors {
		idx[d.TimeBucket] = append(idx[d.TimeBucket], d)
	}
	return idx
}

// Resolve returns the assets for the given buckets, in bucket order. Buckets
// absent from the index are omitted; an empty result is a per-record outcome
// for the aggregator, not an error.
func (idx AssetIndex) Resolve(buckets []string) []AssetDescriptor {
	var assets []AssetDescriptor
	for _, b := range buckets {
		assets = append(assets, idx[b]...)
	}
	return assets
}

// Len returns the total number of indexed assets across all buckets.
func (idx AssetIndex) Len() int {
	n := 0
	for _, assets := range idx {
		n += len(assets)
	}
	return n
}
