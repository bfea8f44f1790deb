package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// LsTool lists a directory.
type LsTool struct{}

func NewLsTool() *LsTool { return &LsTool{} }

type LsArgs struct {
	Path string `json:"path,omitempty"`
}

func (t *LsTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "ls",
		Description: "List directory contents with sizes. Directories are suffixed with /.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Directory to list (default: current directory)",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *LsTool) Preview(args json.RawMessage) string {
	var a LsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.Path == "" {
		return "."
	}
	return a.Path
}

func (t *LsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a LsArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	path := a.Path
	if path == "" {
		path = "."
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "(empty directory)", nil
	}

	var b strings.Builder
	for _, e := range entries {
		if e.IsDir() {
			fmt.Fprintf(&b, "%s/\n", e.Name())
			continue
		}
		info, err := e.Info()
		if err != nil {
			fmt.Fprintf(&b, "%s\n", e.Name())
			continue
		}
		fmt.Fprintf(&b, "%s (%d bytes)\n", e.Name(), info.Size())
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
