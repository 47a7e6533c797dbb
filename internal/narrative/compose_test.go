package narrative_test

import (
	"context"
	"errors"
	"testing"

	"eda-backend/internal/narrative"
	"eda-backend/internal/profile"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubLLM struct {
	response string
	err      error
	prompts  []string
}

func (s *stubLLM) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	s.prompts = append(s.prompts, userPrompt)
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func TestSummarizeExperimentSplitsSections(t *testing.T) {
	llm := &stubLLM{response: `Summary:
- NY shows a significant positive lift.
- CA shows no measurable effect.

Recommendations:
1. Scale spend in NY.
2. Rerun the CA test with a larger sample.`}

	composer := narrative.NewComposer(llm)
	summary, err := composer.SummarizeExperiment(context.Background(), exampleRows())
	require.NoError(t, err)

	assert.Equal(t, []string{
		"NY shows a significant positive lift.",
		"CA shows no measurable effect.",
	}, summary.Bullets)
	assert.Equal(t, []string{
		"Scale spend in NY.",
		"Rerun the CA test with a larger sample.",
	}, summary.Recommendations)
	assert.Equal(t, llm.response, summary.Text)
}

func TestSummarizeExperimentWithoutMarker(t *testing.T) {
	llm := &stubLLM{response: "- The test shows a clear lift in NY.\n- No effect in CA."}

	composer := narrative.NewComposer(llm)
	summary, err := composer.SummarizeExperiment(context.Background(), exampleRows())
	require.NoError(t, err)

	assert.Len(t, summary.Bullets, 2)
	assert.Empty(t, summary.Recommendations)
}

func TestSummarizeExperimentCompletionError(t *testing.T) {
	llm := &stubLLM{err: narrative.ErrCompletion}

	composer := narrative.NewComposer(llm)
	_, err := composer.SummarizeExperiment(context.Background(), exampleRows())
	assert.ErrorIs(t, err, narrative.ErrCompletion)
}

func TestSummarizeExperimentNoRows(t *testing.T) {
	composer := narrative.NewComposer(&stubLLM{response: "ok"})
	_, err := composer.SummarizeExperiment(context.Background(), nil)
	assert.ErrorIs(t, err, narrative.ErrCompletion)
}

func TestSummarizeProfile(t *testing.T) {
	report := &profile.Report{
		RowCount:    10,
		ColumnCount: 2,
		Columns: []profile.ColumnProfile{
			{Name: "spend", Type: "numeric", Count: 9, MissingCount: 1, Numeric: &profile.NumericStats{Mean: 100, Std: 5, Min: 90, Max: 110, P25: 97, Median: 100, P75: 103}},
			{Name: "channel", Type: "text", Count: 10, Text: &profile.TextStats{Distinct: 2, TopValues: []profile.ValueCount{{Value: "search", Count: 7}}}},
		},
		Correlations: []profile.Correlation{{ColumnA: "spend", ColumnB: "clicks", Pearson: 0.9, SampleSize: 9}},
	}

	llm := &stubLLM{response: "All good.\n\nRecommendations\n- Collect the missing spend values."}
	composer := narrative.NewComposer(llm)

	summary, err := composer.SummarizeProfile(context.Background(), report)
	require.NoError(t, err)

	require.Len(t, llm.prompts, 1)
	prompt := llm.prompts[0]
	assert.Contains(t, prompt, "spend")
	assert.Contains(t, prompt, "channel")
	assert.Contains(t, prompt, "10 rows")
	assert.Contains(t, prompt, "r=0.900")

	assert.Equal(t, []string{"All good."}, summary.Bullets)
	assert.Equal(t, []string{"Collect the missing spend values."}, summary.Recommendations)
}

func TestSummarizeProfileCompletionError(t *testing.T) {
	llm := &stubLLM{err: errors.New("connection refused")}
	composer := narrative.NewComposer(llm)

	report := &profile.Report{RowCount: 1, ColumnCount: 1, Columns: []profile.ColumnProfile{{Name: "x", Type: "numeric", Count: 1}}}

	_, err := composer.SummarizeProfile(context.Background(), report)
	assert.Error(t, err)

	// The already-computed report is untouched by the failed narration.
	assert.Equal(t, 1, report.RowCount)
	assert.Len(t, report.Columns, 1)
}
