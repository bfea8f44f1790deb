package tools

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const grepMaxMatches = 100

// GrepTool searches file contents with a regular expression.
type GrepTool struct {
	limits OutputLimits
}

func NewGrepTool(limits OutputLimits) *GrepTool {
	return &GrepTool{limits: limits}
}

type GrepArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Include string `json:"include,omitempty"`
}

func (t *GrepTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "grep",
		Description: "Search file contents with a regular expression. Returns matching lines with file and line number.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"pattern": map[string]any{
					"type":        "string",
					"description": "Regular expression to search for",
				},
				"path": map[string]any{
					"type":        "string",
					"description": "Directory or file to search (default: current directory)",
				},
				"include": map[string]any{
					"type":        "string",
					"description": "Glob filter for file names, e.g. '*.csv'",
				},
			},
			"required":             []string{"pattern"},
			"additionalProperties": false,
		},
	}
}

func (t *GrepTool) Preview(args json.RawMessage) string {
	var a GrepArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Pattern == "" {
		return ""
	}
	return truncateOneLine(a.Pattern, 50)
}

func (t *GrepTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a GrepArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Pattern == "" {
		return "", fmt.Errorf("pattern is required")
	}
	re, err := regexp.Compile(a.Pattern)
	if err != nil {
		return "", fmt.Errorf("invalid pattern: %w", err)
	}

	base := a.Path
	if base == "" {
		base = "."
	}

	var b strings.Builder
	matches := 0
	err = filepath.WalkDir(base, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return nil
		}
		if d.IsDir() {
			name := d.Name()
			if name == ".git" || name == "node_modules" || name == ".sdrbot" {
				return filepath.SkipDir
			}
			return nil
		}
		if a.Include != "" {
			ok, _ := doublestar.Match(a.Include, d.Name())
			if !ok {
				return nil
			}
		}
		n, err := grepFile(re, path, &b, grepMaxMatches-matches)
		if err != nil {
			return nil
		}
		matches += n
		if matches >= grepMaxMatches {
			return filepath.SkipAll
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	if matches == 0 {
		return "No matches for " + a.Pattern, nil
	}
	out := strings.TrimRight(b.String(), "\n")
	if matches >= grepMaxMatches {
		out += fmt.Sprintf("\n[Truncated at %d matches]", grepMaxMatches)
	}
	out, truncated := truncateBytes(out, t.limits)
	if truncated {
		out += "\n[Output truncated due to size limit]"
	}
	return out, nil
}

func grepFile(re *regexp.Regexp, path string, b *strings.Builder, budget int) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	matches := 0
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.ContainsRune(line, 0) {
			return matches, nil // binary file
		}
		if re.MatchString(line) {
			fmt.Fprintf(b, "%s:%d: %s\n", path, lineNo, truncateOneLine(line, 200))
			matches++
			if matches >= budget {
				return matches, nil
			}
		}
	}
	return matches, scanner.Err()
}
