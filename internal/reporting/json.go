package reporting

import (
	"encoding/json"
	"fmt"
	"io"

	"crypto-vol-lab/internal/domain"
)

// WriteQualityReportJSON writes the quality report as indented JSON.
// This is the audit artifact persisted alongside the dataset.
func WriteQualityReportJSON(w io.Writer, report *domain.QualityReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode quality report: %w", err)
	}
	return nil
}
