package agent

import (
	"strings"
	"testing"
)

func TestBuildSystemPromptSections(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInputs{
		AgentName:   "sales",
		AgentPrompt: "Focus on enterprise accounts.",
		Memory:      "Acme's champion is Dana Lee.",
		Skills: []SkillSummary{
			{Name: "lead-scoring", Description: "Score inbound leads", Path: "skills/lead-scoring.md"},
		},
		Services: []string{"salesforce", "hubspot"},
	})

	for _, want := range []string{
		"SDRbot",
		"Connected services: salesforce, hubspot.",
		"Agent instructions (sales)",
		"Focus on enterprise accounts.",
		"Dana Lee",
		"lead-scoring: Score inbound leads (skills/lead-scoring.md)",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestBuildSystemPromptOmitsEmptySections(t *testing.T) {
	prompt := BuildSystemPrompt(PromptInputs{AgentName: "default"})
	if strings.Contains(prompt, "## Memory") {
		t.Error("empty memory should not produce a section")
	}
	if strings.Contains(prompt, "## Skills") {
		t.Error("no skills should not produce a section")
	}
	if strings.Contains(prompt, "Connected services") {
		t.Error("no services should not produce a line")
	}
}
