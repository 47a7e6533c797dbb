package narrative

import (
	"fmt"

	"eda-backend/internal/dataset"
)

// ExperimentRow is one geo's result from a lift experiment.
type ExperimentRow struct {
	Geo       string  `json:"geo"`
	Treatment float64 `json:"treatment"`
	Control   float64 `json:"control"`
	Lift      float64 `json:"lift"`
	CILow     float64 `json:"ci_low"`
	CIHigh    float64 `json:"ci_high"`
	PValue    float64 `json:"p_value"`
}

func (r ExperimentRow) Validate() error {
	if r.Geo == "" {
		return fmt.Errorf("experiment row is missing a geo label")
	}
	if r.PValue < 0 || r.PValue > 1 {
		return fmt.Errorf("geo %s: p-value %v is outside [0, 1]", r.Geo, r.PValue)
	}
	if r.CILow > r.Lift || r.Lift > r.CIHigh {
		return fmt.Errorf("geo %s: confidence interval [%v, %v] does not contain the lift estimate %v", r.Geo, r.CILow, r.CIHigh, r.Lift)
	}
	return nil
}

// Significant reports whether the effect clears the significance threshold:
// the p-value is below it and the confidence interval excludes zero.
func (r ExperimentRow) Significant(threshold float64) bool {
	if r.PValue >= threshold {
		return false
	}
	return r.CILow > 0 || r.CIHigh < 0
}

func (r ExperimentRow) Direction() string {
	switch {
	case r.Lift > 0:
		return "positive"
	case r.Lift < 0:
		return "negative"
	default:
		return "flat"
	}
}

var experimentColumns = []string{"geo", "treatment", "control", "lift", "ci_low", "ci_high", "p_value"}

// ExperimentRowsFromTable converts a loaded table with the fixed experiment
// schema into rows. Every column is required and the numeric ones must have
// no missing values.
func ExperimentRowsFromTable(t *dataset.Table) ([]ExperimentRow, error) {
	cols := make(map[string]*dataset.Column, len(experimentColumns))
	for _, name := range experimentColumns {
		col, ok := t.Column(name)
		if !ok {
			return nil, fmt.Errorf("experiment table is missing column %q", name)
		}
		if name != "geo" && col.Type != dataset.Numeric {
			return nil, fmt.Errorf("experiment column %q must be numeric", name)
		}
		if col.MissingCount() > 0 {
			return nil, fmt.Errorf("experiment column %q has missing values", name)
		}
		cols[name] = col
	}

	rows := make([]ExperimentRow, 0, t.NumRows())
	for i := 0; i < t.NumRows(); i++ {
		row := ExperimentRow{
			Geo:       cols["geo"].Values[i],
			Treatment: cols["treatment"].Floats[i],
			Control:   cols["control"].Floats[i],
			Lift:      cols["lift"].Floats[i],
			CILow:     cols["ci_low"].Floats[i],
			CIHigh:    cols["ci_high"].Floats[i],
			PValue:    cols["p_value"].Floats[i],
		}
		if err := row.Validate(); err != nil {
			return nil, err
		}
		rows = append(rows, row)
	}
	return rows, nil
}
