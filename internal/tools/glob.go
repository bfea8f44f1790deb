package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const globMaxResults = 200

// GlobTool finds files matching a glob pattern. It always operates on the
// local filesystem; remote sandboxes use shell for discovery.
type GlobTool struct{}

func NewGlobTool() *GlobTool { return &GlobTool{} }

type GlobArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

func (t *GlobTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "glob",
		Description: "Find files matching a glob pattern (supports ** for recursive matching). Returns paths sorted by modification time, newest first.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Glob pattern, e.g. '**/*.csv'",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Base directory to search (default: current directory)",
				},
			},
			"required":             []string{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GlobTool) Preview(args json.RawMessage) string {
	var a GlobArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Pattern == "" {
		return ""
	}
	if a.Path != "" {
		return a.Pattern + " in " + a.Path
	}
	return a.Pattern
}

func (t *GlobTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a GlobArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}

	base := a.Path
	if base == "" {
		base = "."
	}

	type entry struct {
		path  string
		mtime int64
	}
	var entries []entry
	truncated := false

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "node_modules" || name == ".sdrbot" {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(base, path)
		if err != nil {
			return nil
		}
		matched, err := doublestar.Match(a.Pattern, filepath.ToSlash(rel))
		if err != nil {
			return err
		}
		if !matched {
			return nil
		}
		if len(entries) >= globMaxResults {
			truncated = true
			return filepath.SkipAll
		}
		info, err := os.Stat(path)
		if err != nil {
			return nil
		}
		entries = append(entries, entry{path: path, mtime: info.ModTime().UnixNano()})
		return nil
	})
	if err != nil {
		return "", err
	}

	if len(entries) == 0 {
		return "No files match " + a.Pattern, nil
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].mtime > entries[j].mtime })

	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.path)
		b.WriteString("\n")
	}
	if truncated {
		fmt.Fprintf(&b, "[Truncated at %d results]\n", globMaxResults)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
