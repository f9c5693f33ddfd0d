package quality

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"crypto-vol-lab/internal/domain"
)

// Checker runs the quality gate: six independent checks over a normalized
// series, aggregated into a single pass/fail decision. The checker only
// reports; halting on a failed gate is the caller's decision.
type Checker struct {
	cfg   Config
	clock func() time.Time
	log   zerolog.Logger
}

// NewChecker creates a checker with the given thresholds.
func NewChecker(cfg Config) *Checker {
	return &Checker{
		cfg:   cfg,
		clock: func() time.Time { return time.Now().UTC() },
		log:   zerolog.Nop(),
	}
}

// WithClock sets a custom clock, used by the freshness check and the
// report timestamp. Needed for deterministic output.
func (c *Checker) WithClock(clock func() time.Time) *Checker {
	c.clock = clock
	return c
}

// WithLogger attaches a logger for per-check outcomes.
func (c *Checker) WithLogger(log zerolog.Logger) *Checker {
	c.log = log
	return c
}

// RunAll executes every check in canonical order and aggregates the
// results. The returned report is never mutated afterwards; overall
// Passed is the AND of all non-advisory results.
func (c *Checker) RunAll(series *domain.Series) *domain.QualityReport {
	checks := []domain.CheckResult{
		c.checkDataVolume(series),
		c.checkNullValues(series),
		c.checkSchema(series),
		c.checkDataRanges(series),
		c.checkDuplicates(series),
		c.checkFreshness(series),
	}

	report := &domain.QualityReport{
		AssetID:       series.AssetID,
		GeneratedAtMs: c.clock().UnixMilli(),
		RowCount:      series.Len(),
		Columns:       append([]string(nil), series.Columns...),
		Checks:        checks,
		Passed:        true,
	}

	for _, check := range checks {
		if check.Passed {
			report.PassedChecks++
		} else {
			report.FailedChecks++
		}
		if !check.Passed && !check.Advisory {
			report.Passed = false
		}

		ev := c.log.Info()
		if !check.Passed {
			ev = c.log.Warn()
		}
		ev.Str("check", check.Name).
			Bool("passed", check.Passed).
			Str("threshold", check.Threshold).
			Str("actual", check.Actual).
			Msg("quality check")
	}

	c.log.Info().
		Bool("passed", report.Passed).
		Int("passed_checks", report.PassedChecks).
		Int("failed_checks", report.FailedChecks).
		Msg("quality gate decision")

	return report
}

// checkDataVolume: row count >= MinRows.
func (c *Checker) checkDataVolume(series *domain.Series) domain.CheckResult {
	rows := series.Len()
	return domain.CheckResult{
		Name:      domain.CheckDataVolume,
		Passed:    rows >= c.cfg.MinRows,
		Threshold: fmt.Sprintf(">= %d rows", c.cfg.MinRows),
		Actual:    fmt.Sprintf("%d rows", rows),
		Metrics:   map[string]float64{"row_count": float64(rows)},
	}
}

// checkNullValues: per-column missing fraction must not exceed NullThreshold.
// Any violating column fails the whole check; every offender is reported.
func (c *Checker) checkNullValues(series *domain.Series) domain.CheckResult {
	result := domain.CheckResult{
		Name:      domain.CheckNullValues,
		Passed:    true,
		Threshold: fmt.Sprintf("<= %.2f%% nulls per column", c.cfg.NullThreshold*100),
		Metrics:   map[string]float64{},
	}

	rows := series.Len()
	if rows == 0 {
		result.Actual = "no rows"
		return result
	}

	totalNulls := 0
	for _, col := range series.Columns {
		nulls, counted := countNulls(series, col)
		if !counted {
			continue
		}
		totalNulls += nulls
		fraction := float64(nulls) / float64(rows)
		result.Metrics["null_fraction."+col] = fraction
		if fraction > c.cfg.NullThreshold {
			result.Passed = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("column %s: %.2f%% nulls (%d of %d rows)", col, fraction*100, nulls, rows))
		}
	}

	result.Metrics["total_nulls"] = float64(totalNulls)
	result.Actual = fmt.Sprintf("%d nulls, %d columns over threshold", totalNulls, len(result.Violations))
	return result
}

// countNulls returns the missing-cell count for a materialized column.
// The second return is false for columns the series does not materialize
// (unknown extras only matter for the schema check).
func countNulls(series *domain.Series, col string) (int, bool) {
	nulls := 0
	switch col {
	case domain.ColumnTimestamp:
		return 0, true // unparseable timestamps never reach the series
	case domain.ColumnPrice:
		for i := range series.Rows {
			if series.Rows[i].PriceMissing() {
				nulls++
			}
		}
	case domain.ColumnOpen:
		for i := range series.Rows {
			if series.Rows[i].Open == nil {
				nulls++
			}
		}
	case domain.ColumnHigh:
		for i := range series.Rows {
			if series.Rows[i].High == nil {
				nulls++
			}
		}
	case domain.ColumnLow:
		for i := range series.Rows {
			if series.Rows[i].Low == nil {
				nulls++
			}
		}
	case domain.ColumnClose:
		for i := range series.Rows {
			if series.Rows[i].Close == nil {
				nulls++
			}
		}
	case domain.ColumnVolume:
		for i := range series.Rows {
			if series.Rows[i].Volume == nil {
				nulls++
			}
		}
	case domain.ColumnVolumeUSD:
		for i := range series.Rows {
			if series.Rows[i].VolumeUSD == nil {
				nulls++
			}
		}
	default:
		return 0, false
	}
	return nulls, true
}

// checkSchema: required columns present, expected types match, and in
// strict mode no unknown extra columns. Every mismatch is reported.
func (c *Checker) checkSchema(series *domain.Series) domain.CheckResult {
	result := domain.CheckResult{
		Name:      domain.CheckSchema,
		Passed:    true,
		Threshold: fmt.Sprintf("required columns present, types match, strict=%v", c.cfg.SchemaStrict),
		Metrics:   map[string]float64{},
	}

	missing := 0
	for _, req := range domain.RequiredColumns {
		if !series.HasColumn(req) {
			missing++
			result.Passed = false
			result.Violations = append(result.Violations, fmt.Sprintf("missing required column: %s", req))
		}
	}

	extras := 0
	mismatches := 0
	for _, col := range series.Columns {
		expected, known := domain.ExpectedColumnTypes[col]
		if !known {
			extras++
			if c.cfg.SchemaStrict {
				result.Passed = false
				result.Violations = append(result.Violations, fmt.Sprintf("unexpected extra column: %s", col))
			}
			continue
		}
		if actual := series.ColumnTypes[col]; actual != expected {
			mismatches++
			result.Passed = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("column %s: expected type %s, got %s", col, expected, actual))
		}
	}

	result.Metrics["missing_columns"] = float64(missing)
	result.Metrics["extra_columns"] = float64(extras)
	result.Metrics["type_mismatches"] = float64(mismatches)
	result.Actual = fmt.Sprintf("%d missing, %d extra, %d type mismatches", missing, extras, mismatches)
	return result
}

// checkDataRanges: prices strictly positive, outliers beyond the
// multiplier band around the median bounded by MaxOutlierFraction, and
// no unparseable timestamps in the raw input.
func (c *Checker) checkDataRanges(series *domain.Series) domain.CheckResult {
	result := domain.CheckResult{
		Name:   domain.CheckDataRanges,
		Passed: true,
		Threshold: fmt.Sprintf("price > 0, outliers (>%.0fx or <1/%.0fx median) <= %.1f%%, timestamps parseable",
			c.cfg.OutlierMultiplier, c.cfg.OutlierMultiplier, c.cfg.MaxOutlierFraction*100),
		Metrics: map[string]float64{},
	}

	prices := make([]float64, 0, series.Len())
	nonPositive := 0
	for i := range series.Rows {
		p := series.Rows[i].Price
		if math.IsNaN(p) {
			continue
		}
		prices = append(prices, p)
		if p <= 0 {
			nonPositive++
		}
	}
	if nonPositive > 0 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("%d non-positive price values", nonPositive))
	}
	result.Metrics["nonpositive_count"] = float64(nonPositive)

	outliers := 0
	outlierFraction := 0.0
	if len(prices) > 0 {
		sorted := append([]float64(nil), prices...)
		sort.Float64s(sorted)
		median := stat.Quantile(0.5, stat.Empirical, sorted, nil)
		result.Metrics["median_price"] = median

		if median > 0 {
			upper := median * c.cfg.OutlierMultiplier
			lower := median / c.cfg.OutlierMultiplier
			for _, p := range prices {
				if p > upper || p < lower {
					outliers++
				}
			}
		}
		outlierFraction = float64(outliers) / float64(series.Len())
		if outlierFraction > c.cfg.MaxOutlierFraction {
			result.Passed = false
			result.Violations = append(result.Violations,
				fmt.Sprintf("excessive outliers: %d rows (%.2f%%)", outliers, outlierFraction*100))
		}
	}
	result.Metrics["outlier_count"] = float64(outliers)
	result.Metrics["outlier_fraction"] = outlierFraction

	badTs := series.Stats.TimestampParseErrors
	result.Metrics["timestamp_parse_errors"] = float64(badTs)
	if badTs > 0 {
		result.Passed = false
		result.Violations = append(result.Violations,
			fmt.Sprintf("%d rows with unparseable timestamps", badTs))
	}

	result.Actual = fmt.Sprintf("%d non-positive, %.2f%% outliers, %d bad timestamps",
		nonPositive, outlierFraction*100, badTs)
	return result
}

// checkDuplicates: exact-duplicate fraction of the raw input must not
// exceed MaxDuplicateFraction.
func (c *Checker) checkDuplicates(series *domain.Series) domain.CheckResult {
	total := series.Stats.TotalRawRows
	dups := series.Stats.DuplicateRows

	fraction := 0.0
	if total > 0 {
		fraction = float64(dups) / float64(total)
	}

	return domain.CheckResult{
		Name:      domain.CheckDuplicates,
		Passed:    fraction <= c.cfg.MaxDuplicateFraction,
		Threshold: fmt.Sprintf("<= %.2f%% duplicate rows", c.cfg.MaxDuplicateFraction*100),
		Actual:    fmt.Sprintf("%d duplicates (%.2f%%)", dups, fraction*100),
		Metrics: map[string]float64{
			"duplicate_count":    float64(dups),
			"duplicate_fraction": fraction,
		},
	}
}

// checkFreshness: age of the latest observation relative to the clock
// must not exceed MaxAgeHours. Advisory mode keeps the result out of the
// aggregate decision.
func (c *Checker) checkFreshness(series *domain.Series) domain.CheckResult {
	result := domain.CheckResult{
		Name:      domain.CheckFreshness,
		Passed:    true,
		Advisory:  c.cfg.FreshnessAdvisory,
		Threshold: fmt.Sprintf("<= %.0fh old", c.cfg.MaxAgeHours),
		Metrics:   map[string]float64{},
	}

	if series.Len() == 0 {
		result.Actual = "no rows"
		return result
	}

	latest := series.Rows[series.Len()-1].TimestampMs
	ageHours := c.clock().Sub(time.UnixMilli(latest)).Hours()
	result.Metrics["age_hours"] = ageHours
	result.Metrics["latest_timestamp_ms"] = float64(latest)
	result.Passed = ageHours <= c.cfg.MaxAgeHours
	result.Actual = fmt.Sprintf("%.2fh old", ageHours)
	return result
}
