package profile

import (
	"context"
	"fmt"
	"math"
	"sort"

	"eda-backend/internal/dataset"
)

const defaultTopValues = 5

// Engine is the built-in profiling engine. It computes per-column descriptive
// statistics and a pairwise correlation matrix over numeric columns.
type Engine struct {
	// TopValues caps how many frequent values are reported per text column.
	TopValues int
}

var _ Profiler = (*Engine)(nil)

func NewEngine() *Engine {
	return &Engine{TopValues: defaultTopValues}
}

func (e *Engine) Profile(ctx context.Context, t *dataset.Table) (*Report, error) {
	if t == nil || t.NumCols() == 0 {
		return nil, fmt.Errorf("%w: table has no columns", ErrProfiling)
	}
	if t.NumRows() == 0 {
		return nil, fmt.Errorf("%w: table has no rows", ErrProfiling)
	}

	report := &Report{
		RowCount:    t.NumRows(),
		ColumnCount: t.NumCols(),
	}

	for i := range t.Columns() {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrProfiling, err)
		}

		col := &t.Columns()[i]
		cp := ColumnProfile{
			Name:         col.Name,
			Type:         string(col.Type),
			MissingCount: col.MissingCount(),
		}
		cp.Count = t.NumRows() - cp.MissingCount

		switch col.Type {
		case dataset.Numeric:
			if stats := describeNumeric(col.NonMissingFloats()); stats != nil {
				cp.Numeric = stats
			}
		case dataset.Text:
			cp.Text = e.describeText(col)
		}

		report.Columns = append(report.Columns, cp)
	}

	report.Correlations = correlations(t)

	return report, nil
}

func describeNumeric(values []float64) *NumericStats {
	n := len(values)
	if n == 0 {
		return nil
	}

	sum := 0.0
	min, max := values[0], values[0]
	for _, v := range values {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean := sum / float64(n)

	variance := 0.0
	if n > 1 {
		for _, v := range values {
			d := v - mean
			variance += d * d
		}
		variance /= float64(n - 1)
	}

	sorted := make([]float64, n)
	copy(sorted, values)
	sort.Float64s(sorted)

	return &NumericStats{
		Mean:   mean,
		Std:    math.Sqrt(variance),
		Min:    min,
		Max:    max,
		P25:    percentile(sorted, 25),
		Median: percentile(sorted, 50),
		P75:    percentile(sorted, 75),
	}
}

// percentile computes the p-th percentile of a sorted slice with linear
// interpolation between ranks.
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}

	rank := p / 100 * float64(n-1)
	lower := int(rank)
	upper := lower + 1
	weight := rank - float64(lower)
	if upper >= n {
		return sorted[lower]
	}
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}

func (e *Engine) describeText(col *dataset.Column) *TextStats {
	counts := make(map[string]int)
	for i, v := range col.Values {
		if !col.Missing[i] {
			counts[v]++
		}
	}

	values := make([]ValueCount, 0, len(counts))
	for v, c := range counts {
		values = append(values, ValueCount{Value: v, Count: c})
	}
	sort.Slice(values, func(i, j int) bool {
		if values[i].Count == values[j].Count {
			return values[i].Value < values[j].Value
		}
		return values[i].Count > values[j].Count
	})

	top := e.TopValues
	if top <= 0 {
		top = defaultTopValues
	}
	if len(values) > top {
		values = values[:top]
	}

	return &TextStats{Distinct: len(counts), TopValues: values}
}

func correlations(t *dataset.Table) []Correlation {
	var numeric []*dataset.Column
	for i := range t.Columns() {
		col := &t.Columns()[i]
		if col.Type == dataset.Numeric {
			numeric = append(numeric, col)
		}
	}

	var out []Correlation
	for i := 0; i < len(numeric); i++ {
		for j := i + 1; j < len(numeric); j++ {
			r, n := pearson(numeric[i], numeric[j])
			out = append(out, Correlation{
				ColumnA:    numeric[i].Name,
				ColumnB:    numeric[j].Name,
				Pearson:    r,
				SampleSize: n,
			})
		}
	}
	return out
}

// pearson computes the correlation of two columns over rows where both values
// are present.
func pearson(a, b *dataset.Column) (float64, int) {
	var sumX, sumY, sumXY, sumX2, sumY2 float64
	n := 0
	for i := range a.Floats {
		if a.Missing[i] || b.Missing[i] {
			continue
		}
		x, y := a.Floats[i], b.Floats[i]
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
		sumY2 += y * y
		n++
	}
	if n == 0 {
		return 0, 0
	}

	fn := float64(n)
	numerator := fn*sumXY - sumX*sumY
	denominator := math.Sqrt((fn*sumX2 - sumX*sumX) * (fn*sumY2 - sumY*sumY))
	if denominator == 0 {
		return 0, n
	}
	return numerator / denominator, n
}
