package narrative

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"eda-backend/internal/profile"
)

// Summary is the post-processed narrative: the verbatim model output plus the
// split finding/recommendation lines.
type Summary struct {
	Text            string   `json:"text"`
	Bullets         []string `json:"bullets"`
	Recommendations []string `json:"recommendations"`
}

// Composer turns reports into prompts, runs them through the completion
// service, and post-processes the reply.
type Composer struct {
	llm                   LLM
	SignificanceThreshold float64
}

func NewComposer(llm LLM) *Composer {
	return &Composer{llm: llm, SignificanceThreshold: DefaultSignificanceThreshold}
}

func (c *Composer) SummarizeProfile(ctx context.Context, r *profile.Report) (*Summary, error) {
	prompt := BuildProfilePrompt(r)

	text, err := c.llm.Generate(ctx, templates.Profile.System, prompt)
	if err != nil {
		return nil, fmt.Errorf("composing profile narrative: %w", err)
	}

	return postProcess(text), nil
}

func (c *Composer) SummarizeExperiment(ctx context.Context, rows []ExperimentRow) (*Summary, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: no experiment rows to summarize", ErrCompletion)
	}

	prompt := BuildExperimentPrompt(rows, c.SignificanceThreshold)

	text, err := c.llm.Generate(ctx, templates.Experiment.System, prompt)
	if err != nil {
		return nil, fmt.Errorf("composing experiment narrative: %w", err)
	}

	return postProcess(text), nil
}

var listMarker = regexp.MustCompile(`^\s*(?:[-*•]|\d+[.)])\s+`)

// postProcess splits the reply into a summary block and a recommendations
// block on a heading containing the recommendations marker. Without the marker
// the entire reply is summary with no recommendations.
func postProcess(text string) *Summary {
	lines := strings.Split(text, "\n")

	split := -1
	for i, line := range lines {
		if isRecommendationsHeading(line) {
			split = i
			break
		}
	}

	summary := &Summary{Text: text}
	if split == -1 {
		summary.Bullets = listItems(lines)
		return summary
	}

	summary.Bullets = listItems(lines[:split])
	summary.Recommendations = listItems(lines[split+1:])
	return summary
}

func isRecommendationsHeading(line string) bool {
	trimmed := strings.TrimSpace(strings.Trim(strings.TrimSpace(line), "#*:"))
	if trimmed == "" || len(trimmed) > 60 {
		return false
	}
	return strings.Contains(strings.ToLower(trimmed), strings.ToLower(templates.RecommendationsHeading))
}

// listItems extracts bullet or numbered lines, falling back to all non-empty
// lines when the block has no list formatting.
func listItems(lines []string) []string {
	var items []string
	for _, line := range lines {
		if listMarker.MatchString(line) {
			items = append(items, strings.TrimSpace(listMarker.ReplaceAllString(line, "")))
		}
	}
	if items != nil {
		return items
	}

	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
