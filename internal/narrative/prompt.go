package narrative

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"eda-backend/internal/profile"
)

const (
	// DefaultSignificanceThreshold is the p-value cutoff used when composing
	// experiment prompts unless a job overrides it.
	DefaultSignificanceThreshold = 0.05

	maxPromptColumns      = 40
	maxPromptCorrelations = 10
)

// BuildProfilePrompt serializes the numeric facts of a profile report into a
// bounded-length prompt asking for a business-facing interpretation.
func BuildProfilePrompt(r *profile.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Dataset: %d rows, %d columns.\n\n", r.RowCount, r.ColumnCount)

	b.WriteString("Column statistics:\n")
	columns := r.Columns
	truncated := false
	if len(columns) > maxPromptColumns {
		columns = columns[:maxPromptColumns]
		truncated = true
	}
	for _, col := range columns {
		fmt.Fprintf(&b, "- %s (%s): %d values, %d missing", col.Name, col.Type, col.Count, col.MissingCount)
		if col.Numeric != nil {
			fmt.Fprintf(&b, "; mean=%.4g std=%.4g min=%.4g p25=%.4g median=%.4g p75=%.4g max=%.4g",
				col.Numeric.Mean, col.Numeric.Std, col.Numeric.Min, col.Numeric.P25, col.Numeric.Median, col.Numeric.P75, col.Numeric.Max)
		}
		if col.Text != nil {
			fmt.Fprintf(&b, "; %d distinct values", col.Text.Distinct)
			if len(col.Text.TopValues) > 0 {
				top := col.Text.TopValues[0]
				fmt.Fprintf(&b, ", most frequent %q (%d)", top.Value, top.Count)
			}
		}
		b.WriteString("\n")
	}
	if truncated {
		fmt.Fprintf(&b, "(%d more columns omitted)\n", len(r.Columns)-maxPromptColumns)
	}

	if corrs := strongestCorrelations(r.Correlations); len(corrs) > 0 {
		b.WriteString("\nStrongest correlations:\n")
		for _, c := range corrs {
			fmt.Fprintf(&b, "- %s vs %s: r=%.3f (n=%d)\n", c.ColumnA, c.ColumnB, c.Pearson, c.SampleSize)
		}
	}

	b.WriteString("\n")
	b.WriteString(templates.Profile.Instructions)
	return b.String()
}

func strongestCorrelations(corrs []profile.Correlation) []profile.Correlation {
	sorted := make([]profile.Correlation, len(corrs))
	copy(sorted, corrs)
	sort.Slice(sorted, func(i, j int) bool {
		return math.Abs(sorted[i].Pearson) > math.Abs(sorted[j].Pearson)
	})
	if len(sorted) > maxPromptCorrelations {
		sorted = sorted[:maxPromptCorrelations]
	}
	return sorted
}

// BuildExperimentPrompt serializes experiment rows with their significance
// classification against the threshold.
func BuildExperimentPrompt(rows []ExperimentRow, threshold float64) string {
	if threshold <= 0 {
		threshold = DefaultSignificanceThreshold
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Geo lift experiment results (significance threshold p < %v, interval must exclude zero):\n", threshold)
	for _, row := range rows {
		verdict := "NOT significant"
		if row.Significant(threshold) {
			verdict = fmt.Sprintf("significant, %s effect", row.Direction())
		}
		fmt.Fprintf(&b, "- %s: treatment=%.4g control=%.4g lift=%.4g CI=[%.4g, %.4g] p=%.4g -> %s\n",
			row.Geo, row.Treatment, row.Control, row.Lift, row.CILow, row.CIHigh, row.PValue, verdict)
	}

	b.WriteString("\n")
	b.WriteString(templates.Experiment.Instructions)
	return b.String()
}
