package domain

// FeatureSchema is the ordered, immutable list of canonical feature names.
// Training and serving share it read-only to guarantee identical column
// ordering across runs.
type FeatureSchema struct {
	names []string
}

// NewFeatureSchema copies names into an immutable schema.
func NewFeatureSchema(names []string) FeatureSchema {
	out := make([]string, len(names))
	copy(out, names)
	return FeatureSchema{names: out}
}

// Names returns a copy of the ordered feature names.
func (s FeatureSchema) Names() []string {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out
}

// Len returns the number of features.
func (s FeatureSchema) Len() int { return len(s.names) }

// Index returns the position of a feature name, or -1.
func (s FeatureSchema) Index(name string) int {
	for i, n := range s.names {
		if n == name {
			return i
		}
	}
	return -1
}

// Dataset is the assembled model-ready output of one pipeline run.
// Invariant: len(Matrix) == len(Target) == len(TargetNorm) == len(TimestampsMs),
// and every Matrix row has Schema.Len() values, all finite.
type Dataset struct {
	AssetID      string
	TimestampsMs []int64
	Schema       FeatureSchema
	Matrix       [][]float64
	Target       []float64 // future volatility, raw
	TargetNorm   []float64 // future volatility / current price
}

// Len returns the number of dataset rows.
func (d *Dataset) Len() int { return len(d.Matrix) }

// FeatureRow is one dataset row in storage form: timestamp plus the values
// in schema order and both label variants.
type FeatureRow struct {
	AssetID     string
	TimestampMs int64
	Values      []float64
	Target      float64
	TargetNorm  float64
}

// Rows flattens the dataset into storage rows.
func (d *Dataset) Rows() []*FeatureRow {
	out := make([]*FeatureRow, len(d.Matrix))
	for i := range d.Matrix {
		out[i] = &FeatureRow{
			AssetID:     d.AssetID,
			TimestampMs: d.TimestampsMs[i],
			Values:      d.Matrix[i],
			Target:      d.Target[i],
			TargetNorm:  d.TargetNorm[i],
		}
	}
	return out
}
