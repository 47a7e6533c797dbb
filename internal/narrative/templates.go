package narrative

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v2"
)

//go:embed templates.yaml
var templatesYAML []byte

type promptTemplates struct {
	Profile struct {
		System       string `yaml:"system"`
		Instructions string `yaml:"instructions"`
	} `yaml:"profile"`
	Experiment struct {
		System       string `yaml:"system"`
		Instructions string `yaml:"instructions"`
	} `yaml:"experiment"`
	Chat struct {
		System string `yaml:"system"`
	} `yaml:"chat"`
	RecommendationsHeading string `yaml:"recommendations_heading"`
}

var templates = loadTemplates()

func loadTemplates() promptTemplates {
	var t promptTemplates
	if err := yaml.Unmarshal(templatesYAML, &t); err != nil {
		panic(fmt.Sprintf("invalid embedded prompt templates: %v", err))
	}
	return t
}

// ChatSystemPrompt is the system prompt for follow-up Q&A sessions over a
// completed report.
func ChatSystemPrompt() string {
	return templates.Chat.System
}
