package dataset_test

import (
	"strings"
	"testing"

	"eda-backend/internal/dataset"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func experimentTable(t *testing.T) *dataset.Table {
	input := strings.Join([]string{
		"geo,lift,p_value",
		"NY,0.12,0.01",
		"CA,0.02,0.20",
		"TX,0.15,0.03",
	}, "\n")

	table, err := dataset.ReadCSV(strings.NewReader(input))
	require.NoError(t, err)
	return table
}

func filteredGeos(t *testing.T, table *dataset.Table, query string) []string {
	filter, err := dataset.ParseFilter(query)
	require.NoError(t, err)

	out := dataset.Apply(table, filter)
	geo, ok := out.Column("geo")
	require.True(t, ok)
	return geo.Values
}

func TestFilterNumericComparison(t *testing.T) {
	table := experimentTable(t)

	assert.Equal(t, []string{"NY", "TX"}, filteredGeos(t, table, `p_value < 0.05`))
	assert.Equal(t, []string{"CA"}, filteredGeos(t, table, `p_value > 0.05`))
	assert.Equal(t, []string{"CA"}, filteredGeos(t, table, `lift = 0.02`))
}

func TestFilterStringComparison(t *testing.T) {
	table := experimentTable(t)

	assert.Equal(t, []string{"NY"}, filteredGeos(t, table, `geo = "NY"`))
	assert.Equal(t, []string{"TX"}, filteredGeos(t, table, `geo CONTAINS "X"`))
}

func TestFilterBooleanOperators(t *testing.T) {
	table := experimentTable(t)

	assert.Equal(t, []string{"TX"}, filteredGeos(t, table, `p_value < 0.05 AND lift > 0.13`))
	assert.Equal(t, []string{"NY", "CA"}, filteredGeos(t, table, `geo = "NY" OR geo = "CA"`))
	assert.Equal(t, []string{"CA"}, filteredGeos(t, table, `NOT p_value < 0.05`))
	assert.Equal(t, []string{"NY", "TX"}, filteredGeos(t, table, `(geo = "NY" OR geo = "TX") AND p_value < 0.05`))
}

func TestFilterUnknownColumnNeverMatches(t *testing.T) {
	table := experimentTable(t)

	assert.Empty(t, filteredGeos(t, table, `region = "NY"`))
}

func TestFilterParseError(t *testing.T) {
	_, err := dataset.ParseFilter(`geo == "NY"`)
	assert.Error(t, err)
}

func TestFilterNumericValueOnTextColumn(t *testing.T) {
	table := experimentTable(t)

	// geo is a text column, so a numeric comparison never matches.
	assert.Empty(t, filteredGeos(t, table, `geo < 10`))
}
