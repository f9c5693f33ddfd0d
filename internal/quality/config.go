package quality

// Config holds all quality gate thresholds.
type Config struct {
	NullThreshold        float64 // max missing fraction per column
	SchemaStrict         bool    // reject unknown extra columns
	MinRows              int     // minimum series length
	MaxAgeHours          float64 // max age of the latest observation
	OutlierMultiplier    float64 // price outlier band around the median
	MaxOutlierFraction   float64 // max tolerated fraction of outlier rows
	MaxDuplicateFraction float64 // max tolerated fraction of exact-duplicate rows

	// FreshnessAdvisory reports staleness without failing the aggregate
	// decision. Default false: a stale series fails the gate.
	FreshnessAdvisory bool
}

// DefaultConfig returns the standard gate thresholds.
func DefaultConfig() Config {
	return Config{
		NullThreshold:        0.01,
		SchemaStrict:         true,
		MinRows:              100,
		MaxAgeHours:          48,
		OutlierMultiplier:    5.0,
		MaxOutlierFraction:   0.05,
		MaxDuplicateFraction: 0.005,
	}
}
