package reporting

import (
	"fmt"
	"strconv"
	"strings"

	"crypto-vol-lab/internal/domain"
)

// RenderDatasetCSV renders feature rows as a CSV string.
// Columns: timestamp, the schema names in order, target, target_norm.
// Values keep full float64 precision.
func RenderDatasetCSV(rows []*domain.FeatureRow, featureNames []string) (string, error) {
	var sb strings.Builder

	sb.WriteString("timestamp")
	for _, name := range featureNames {
		sb.WriteByte(',')
		sb.WriteString(name)
	}
	sb.WriteString(",target,target_norm\n")

	for i, row := range rows {
		if len(row.Values) != len(featureNames) {
			return "", fmt.Errorf("row %d has %d values, schema has %d",
				i, len(row.Values), len(featureNames))
		}
		sb.WriteString(strconv.FormatInt(row.TimestampMs, 10))
		for _, v := range row.Values {
			sb.WriteByte(',')
			sb.WriteString(strconv.FormatFloat(v, 'g', -1, 64))
		}
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(row.Target, 'g', -1, 64))
		sb.WriteByte(',')
		sb.WriteString(strconv.FormatFloat(row.TargetNorm, 'g', -1, 64))
		sb.WriteByte('\n')
	}

	return sb.String(), nil
}
