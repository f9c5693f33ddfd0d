package domain

// Quality check identifiers, in canonical execution order.
const (
	CheckDataVolume = "data_volume"
	CheckNullValues = "null_values"
	CheckSchema     = "schema_validation"
	CheckDataRanges = "data_ranges"
	CheckDuplicates = "duplicates"
	CheckFreshness  = "data_freshness"
)

// CheckResult is the structured outcome of one quality check.
// Quality defects are results, never errors.
type CheckResult struct {
	Name       string             `json:"check"`
	Passed     bool               `json:"passed"`
	Threshold  string             `json:"threshold"`
	Actual     string             `json:"actual"`
	Advisory   bool               `json:"advisory,omitempty"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
	Violations []string           `json:"violations,omitempty"`
}

// QualityReport aggregates all check results for one pipeline run.
// It is immutable once produced and persisted as an audit artifact.
// Passed is the AND of all non-advisory check results.
type QualityReport struct {
	AssetID       string        `json:"asset_id"`
	GeneratedAtMs int64         `json:"generated_at_ms"`
	RowCount      int           `json:"row_count"`
	Columns       []string      `json:"columns"`
	Checks        []CheckResult `json:"checks"`
	Passed        bool          `json:"passed"`
	PassedChecks  int           `json:"passed_checks"`
	FailedChecks  int           `json:"failed_checks"`
}

// Check returns the result with the given name, or nil.
func (r *QualityReport) Check(name string) *CheckResult {
	for i := range r.Checks {
		if r.Checks[i].Name == name {
			return &r.Checks[i]
		}
	}
	return nil
}
