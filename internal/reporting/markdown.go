package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run report as a Markdown string.
func RenderMarkdown(r *RunReport) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("# Pipeline Report: %s\n\n", r.AssetID))
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))

	sb.WriteString("## Quality Gate\n\n")
	if r.Quality == nil {
		sb.WriteString("No quality report available.\n\n")
	} else {
		sb.WriteString(fmt.Sprintf("Rows checked: %d | Checks passed: %d | Failed: %d\n\n",
			r.Quality.RowCount, r.Quality.PassedChecks, r.Quality.FailedChecks))

		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range r.Quality.Checks {
			status := "FAIL"
			if check.Passed {
				status = "PASS"
			}
			if !check.Passed && check.Advisory {
				status = "FAIL (advisory)"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if r.Quality.Passed {
			sb.WriteString("**Gate passed.** Features were generated.\n\n")
		} else {
			sb.WriteString("**Gate failed.** Pipeline halted before feature generation.\n\n")
		}

		violations := collectViolations(r)
		if len(violations) > 0 {
			sb.WriteString("### Violations\n\n")
			for _, v := range violations {
				sb.WriteString(fmt.Sprintf("- %s\n", v))
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("## Dataset\n\n")
	if r.Dataset.Rows == 0 {
		sb.WriteString("No feature rows were produced.\n")
	} else {
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Rows | %d |\n", r.Dataset.Rows))
		sb.WriteString(fmt.Sprintf("| Features | %d |\n", r.Dataset.Features))
		sb.WriteString(fmt.Sprintf("| Time Range Start (ms) | %d |\n", r.Dataset.TimeRangeStart))
		sb.WriteString(fmt.Sprintf("| Time Range End (ms) | %d |\n", r.Dataset.TimeRangeEnd))
	}

	return sb.String()
}

func collectViolations(r *RunReport) []string {
	var out []string
	for _, check := range r.Quality.Checks {
		for _, v := range check.Violations {
			out = append(out, fmt.Sprintf("%s: %s", check.Name, v))
		}
	}
	return out
}
