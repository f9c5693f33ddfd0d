// Package dataset assembles feature columns and labels into the final
// model-ready matrix with a frozen schema.
package dataset

import (
	"fmt"
	"math"

	"crypto-vol-lab/internal/domain"
	"crypto-vol-lab/internal/features"
)

// Assemble merges the selected feature columns with the label, then:
// drops rows lacking a valid label, forward-fills remaining missing
// feature values, and drops any residual rows still missing after the
// fill (only possible in the leading warm-up region). The output matrix
// is timestamp-ascending and every row is fully finite.
func Assemble(
	assetID string,
	fs *features.FeatureSet,
	target, targetNorm []float64,
	schema domain.FeatureSchema,
) (*domain.Dataset, error) {
	n := len(fs.TimestampsMs)
	if len(target) != n || len(targetNorm) != n {
		return nil, fmt.Errorf("label length %d does not match series length %d", len(target), n)
	}

	names := schema.Names()
	cols := make([][]float64, len(names))
	for c, name := range names {
		src := fs.Column(name)
		if src == nil {
			return nil, fmt.Errorf("schema column %q not present in feature set", name)
		}
		// Copy, sanitizing non-finite values to the missing sentinel.
		col := make([]float64, n)
		for i, v := range src {
			if math.IsInf(v, 0) {
				col[i] = math.NaN()
			} else {
				col[i] = v
			}
		}
		cols[c] = col
	}

	// Drop rows without a valid label.
	keep := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if !math.IsNaN(target[i]) {
			keep = append(keep, i)
		}
	}

	for c := range cols {
		compacted := make([]float64, len(keep))
		for k, i := range keep {
			compacted[k] = cols[c][i]
		}
		ForwardFill(compacted)
		cols[c] = compacted
	}

	// Residual drop: warm-up rows that never had a value to carry.
	var (
		timestamps []int64
		matrix     [][]float64
		outTarget  []float64
		outNorm    []float64
	)
	for k, i := range keep {
		complete := true
		for c := range cols {
			if math.IsNaN(cols[c][k]) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		row := make([]float64, len(cols))
		for c := range cols {
			row[c] = cols[c][k]
		}
		timestamps = append(timestamps, fs.TimestampsMs[i])
		matrix = append(matrix, row)
		outTarget = append(outTarget, target[i])
		outNorm = append(outNorm, targetNorm[i])
	}

	return &domain.Dataset{
		AssetID:      assetID,
		TimestampsMs: timestamps,
		Schema:       schema,
		Matrix:       matrix,
		Target:       outTarget,
		TargetNorm:   outNorm,
	}, nil
}

// ForwardFill carries the last valid value over NaN holes, in place.
// Leading NaNs have nothing to carry and stay NaN. Applying it to
// already-filled data is a no-op.
func ForwardFill(values []float64) {
	last := math.NaN()
	for i, v := range values {
		if math.IsNaN(v) {
			values[i] = last
		} else {
			last = v
		}
	}
}
