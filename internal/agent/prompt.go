package agent

import (
	"fmt"
	"strings"
	"time"
)

const basePrompt = `You are SDRbot, a revenue-operations assistant running in a terminal.
You help with prospecting, lead research, enrichment, and CRM hygiene using
the tools available to you.

Rules:
- Never show raw tool output (JSON, query results, API payloads) to the user.
  Consume tool results silently and reply in natural language, summarizing
  what you found or did.
- When a search returns many records, summarize counts and highlights instead
  of listing everything.
- Before mutating CRM data, state exactly what will change.
- If a tool fails, explain the failure briefly and suggest a next step; do
  not retry the same call more than once.
- Keep responses concise. This is a terminal, not a document.`

// SkillSummary is what the system prompt shows per skill: enough for the
// model to decide whether to read the full skill file.
type SkillSummary struct {
	Name        string
	Description string
	Path        string
}

// PromptInputs carries everything that varies per session or per turn.
type PromptInputs struct {
	AgentName    string
	AgentPrompt  string // agents/<name>/prompt.md
	Memory       string // agents/<name>/memory.md
	Skills       []SkillSummary
	Services     []string // enabled service names
	SandboxLabel string   // non-empty when a remote sandbox backend is active
}

// BuildSystemPrompt assembles the system prompt from the base contract, the
// active agent's instructions and memory, and a progressive-disclosure skill
// listing (name and description only; the model reads the full file with
// read_file when a skill applies).
func BuildSystemPrompt(in PromptInputs) string {
	var b strings.Builder
	b.WriteString(basePrompt)

	fmt.Fprintf(&b, "\n\nToday's date: %s.", time.Now().Format("2006-01-02"))

	if in.SandboxLabel != "" {
		fmt.Fprintf(&b, "\nFile and shell tools run in a remote sandbox (%s), not on the user's machine.", in.SandboxLabel)
	}

	if len(in.Services) > 0 {
		fmt.Fprintf(&b, "\n\nConnected services: %s.", strings.Join(in.Services, ", "))
	}

	if in.AgentPrompt != "" {
		fmt.Fprintf(&b, "\n\n## Agent instructions (%s)\n\n%s", in.AgentName, strings.TrimSpace(in.AgentPrompt))
	}

	if strings.TrimSpace(in.Memory) != "" {
		fmt.Fprintf(&b, "\n\n## Memory\n\nNotes from previous sessions (update with the memory tools):\n\n%s", strings.TrimSpace(in.Memory))
	}

	if len(in.Skills) > 0 {
		b.WriteString("\n\n## Skills\n\nSpecialized instructions are available. When a task matches a skill, read its file with read_file before proceeding:\n")
		for _, s := range in.Skills {
			fmt.Fprintf(&b, "\n- %s: %s (%s)", s.Name, s.Description, s.Path)
		}
	}

	return b.String()
}
