package profile_test

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"eda-backend/internal/dataset"
	"eda-backend/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTable(t *testing.T, csv string) *dataset.Table {
	table, err := dataset.ReadCSV(strings.NewReader(csv))
	require.NoError(t, err)
	return table
}

func TestProfileNumericColumn(t *testing.T) {
	table := loadTable(t, "x\n1\n2\n3\n4\n5\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, report.Columns, 1)
	col := report.Columns[0]
	assert.Equal(t, "x", col.Name)
	assert.Equal(t, 5, col.Count)
	assert.Equal(t, 0, col.MissingCount)

	require.NotNil(t, col.Numeric)
	assert.InDelta(t, 3.0, col.Numeric.Mean, 1e-9)
	assert.InDelta(t, 1.5811388, col.Numeric.Std, 1e-6)
	assert.Equal(t, 1.0, col.Numeric.Min)
	assert.Equal(t, 5.0, col.Numeric.Max)
	assert.InDelta(t, 2.0, col.Numeric.P25, 1e-9)
	assert.InDelta(t, 3.0, col.Numeric.Median, 1e-9)
	assert.InDelta(t, 4.0, col.Numeric.P75, 1e-9)
}

func TestProfileMissingValues(t *testing.T) {
	table := loadTable(t, "x\n1\nNA\n3\n\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	col := report.Columns[0]
	assert.Equal(t, 2, col.Count)
	assert.Equal(t, 1, col.MissingCount)
	require.NotNil(t, col.Numeric)
	assert.InDelta(t, 2.0, col.Numeric.Mean, 1e-9)
}

func TestProfileTextColumn(t *testing.T) {
	table := loadTable(t, "channel\nsearch\nsocial\nsearch\nsearch\ndisplay\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	col := report.Columns[0]
	require.NotNil(t, col.Text)
	assert.Equal(t, 3, col.Text.Distinct)
	assert.Equal(t, profile.ValueCount{Value: "search", Count: 3}, col.Text.TopValues[0])
}

func TestProfileCorrelations(t *testing.T) {
	table := loadTable(t, "x,y,z\n1,2,9\n2,4,7\n3,6,5\n4,8,3\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, report.Correlations, 3)

	xy := report.Correlations[0]
	assert.Equal(t, "x", xy.ColumnA)
	assert.Equal(t, "y", xy.ColumnB)
	assert.InDelta(t, 1.0, xy.Pearson, 1e-9)
	assert.Equal(t, 4, xy.SampleSize)

	xz := report.Correlations[1]
	assert.InDelta(t, -1.0, xz.Pearson, 1e-9)
}

func TestProfileCorrelationPairwiseComplete(t *testing.T) {
	table := loadTable(t, "x,y\n1,2\n2,NA\n3,6\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	require.Len(t, report.Correlations, 1)
	assert.Equal(t, 2, report.Correlations[0].SampleSize)
}

func TestProfileEmptyTable(t *testing.T) {
	_, err := profile.NewEngine().Profile(context.Background(), nil)
	assert.ErrorIs(t, err, profile.ErrProfiling)
}

func TestRenderHTML(t *testing.T) {
	table := loadTable(t, "x,channel\n1,search\n2,social\n")

	report, err := profile.NewEngine().Profile(context.Background(), table)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, profile.RenderHTML(&buf, report))

	html := buf.String()
	assert.Contains(t, html, "2 rows, 2 columns")
	assert.Contains(t, html, "channel")
}
