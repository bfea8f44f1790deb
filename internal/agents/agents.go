// Package agents manages the per-agent workspace files: each named agent
// owns ./agents/<name>/ with a prompt.md (persistent instructions) and a
// memory.md (long-term memory the memory tools read and write).
package agents

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/config"
)

// DefaultName is the agent used when --agent is not given.
const DefaultName = "agent"

const defaultPrompt = `# Agent Instructions

You are a revenue-operations assistant. Focus on prospecting, lead research,
enrichment, and keeping CRM data clean.

Working style:
- Verify records before mutating them. Search first, then act.
- Prefer enrichment sources (Lusha, Hunter) over guessing contact details.
- When a request is ambiguous about which CRM object it targets, ask.

Edit this file to change the agent's standing instructions. Changes take
effect on the next session.
`

// namePattern limits agent names to filesystem-safe characters: letters,
// numbers, hyphens, underscores, and spaces.
var namePattern = regexp.MustCompile(`^[a-zA-Z0-9_\-\s]+$`)

// ValidateName rejects names that would produce unsafe directory paths.
func ValidateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return fmt.Errorf("agent name is required")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("invalid agent name %q: only letters, numbers, hyphens, underscores, and spaces are allowed", name)
	}
	return nil
}

// Agent is one named agent's on-disk state. It implements the memory store
// the memory tools operate on.
type Agent struct {
	name string
	dir  string
}

// Open validates the name and creates ./agents/<name>/ with a default
// prompt.md and an empty memory.md on first use. Existing files are left
// untouched.
func Open(name string) (*Agent, error) {
	if err := ValidateName(name); err != nil {
		return nil, err
	}
	a := &Agent{name: name, dir: filepath.Join(config.AgentsDir(), name)}
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return nil, fmt.Errorf("create agent directory: %w", err)
	}
	if err := ensureFile(a.PromptPath(), defaultPrompt); err != nil {
		return nil, err
	}
	if err := ensureFile(a.MemoryPath(), ""); err != nil {
		return nil, err
	}
	return a, nil
}

func ensureFile(path, defaultContent string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	if err := os.WriteFile(path, []byte(defaultContent), 0644); err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	return nil
}

func (a *Agent) Name() string       { return a.name }
func (a *Agent) Dir() string        { return a.dir }
func (a *Agent) PromptPath() string { return filepath.Join(a.dir, "prompt.md") }
func (a *Agent) MemoryPath() string { return filepath.Join(a.dir, "memory.md") }

// SkillsDir is the agent-local skills directory. It may not exist.
func (a *Agent) SkillsDir() string { return filepath.Join(a.dir, "skills") }

// Prompt returns the agent's standing instructions. Re-read on every call so
// edits made while a session is running take effect on the next turn.
func (a *Agent) Prompt() (string, error) {
	data, err := os.ReadFile(a.PromptPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// ReadMemory returns the memory file's content, or "" when it is missing.
func (a *Agent) ReadMemory() (string, error) {
	data, err := os.ReadFile(a.MemoryPath())
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(data), nil
}

// WriteMemory replaces the memory file wholesale.
func (a *Agent) WriteMemory(text string) error {
	if err := os.MkdirAll(a.dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(a.MemoryPath(), []byte(text), 0644)
}

// AppendMemory adds text to the end of the memory file, separated from
// existing content by a blank line.
func (a *Agent) AppendMemory(text string) error {
	existing, err := a.ReadMemory()
	if err != nil {
		return err
	}
	var b strings.Builder
	if trimmed := strings.TrimRight(existing, "\n"); trimmed != "" {
		b.WriteString(trimmed)
		b.WriteString("\n\n")
	}
	b.WriteString(strings.TrimRight(text, "\n"))
	b.WriteString("\n")
	return a.WriteMemory(b.String())
}

// List returns the names of every agent directory under ./agents/, sorted.
// A missing agents directory is an empty list, not an error.
func List() ([]string, error) {
	entries, err := os.ReadDir(config.AgentsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

// Reset deletes an agent's memory file, keeping its prompt.
func (a *Agent) Reset() error {
	err := os.Remove(a.MemoryPath())
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return ensureFile(a.MemoryPath(), "")
}
