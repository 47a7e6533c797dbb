package profile

import (
	"context"
	"errors"

	"eda-backend/internal/dataset"
)

// ErrProfiling indicates the profiling engine could not produce a report for
// the given table. Profiling failures are terminal for the run.
var ErrProfiling = errors.New("profiling failed")

// Profiler is the delegation boundary for the statistics engine. Everything
// downstream depends only on the Report shape, so engines can be swapped
// without touching the rest of the pipeline.
type Profiler interface {
	Profile(ctx context.Context, t *dataset.Table) (*Report, error)
}

// Report is the structured output of a profiling run.
type Report struct {
	RowCount     int             `json:"row_count"`
	ColumnCount  int             `json:"column_count"`
	Columns      []ColumnProfile `json:"columns"`
	Correlations []Correlation   `json:"correlations"`
}

type ColumnProfile struct {
	Name         string        `json:"name"`
	Type         string        `json:"type"`
	Count        int           `json:"count"`
	MissingCount int           `json:"missing_count"`
	Numeric      *NumericStats `json:"numeric,omitempty"`
	Text         *TextStats    `json:"text,omitempty"`
}

type NumericStats struct {
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	P25    float64 `json:"p25"`
	Median float64 `json:"median"`
	P75    float64 `json:"p75"`
}

type TextStats struct {
	Distinct  int          `json:"distinct"`
	TopValues []ValueCount `json:"top_values"`
}

type ValueCount struct {
	Value string `json:"value"`
	Count int    `json:"count"`
}

// Correlation is a single entry of the pairwise Pearson correlation matrix
// over numeric columns, computed on rows where both values are present.
type Correlation struct {
	ColumnA    string  `json:"column_a"`
	ColumnB    string  `json:"column_b"`
	Pearson    float64 `json:"pearson"`
	SampleSize int     `json:"sample_size"`
}

// Column returns the profile for a named column, if present.
func (r *Report) Column(name string) (*ColumnProfile, bool) {
	for i := range r.Columns {
		if r.Columns[i].Name == name {
			return &r.Columns[i], true
		}
	}
	return nil, false
}
