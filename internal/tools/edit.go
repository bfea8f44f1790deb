package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// EditFileTool replaces an exact text match in a file. The match must be
// unique unless replace_all is set.
type EditFileTool struct {
	exec sandbox.Executor
}

func NewEditFileTool(exec sandbox.Executor) *EditFileTool {
	return &EditFileTool{exec: exec}
}

type EditFileArgs struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

func (t *EditFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "edit_file",
		Description: "Replace an exact string in a file. old_string must match exactly once unless replace_all is true.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to edit",
				},
				"old_string": map[string]any{
					"type":        "string",
					"description": "Exact text to replace",
				},
				"new_string": map[string]any{
					"type":        "string",
					"description": "Replacement text",
				},
				"replace_all": map[string]any{
					"type":        "boolean",
					"description": "Replace every occurrence instead of requiring a unique match",
				},
			},
			"required":             []string{"path", "old_string", "new_string"},
			"additionalProperties": false,
		},
	}
}

func (t *EditFileTool) Preview(args json.RawMessage) string {
	var a EditFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	return a.Path
}

func (t *EditFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a EditFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}
	if a.OldString == "" {
		return "", fmt.Errorf("old_string is required")
	}
	if a.OldString == a.NewString {
		return "", fmt.Errorf("old_string and new_string are identical")
	}

	data, err := t.exec.ReadFile(ctx, a.Path)
	if err != nil {
		return "", err
	}
	content := string(data)

	count := strings.Count(content, a.OldString)
	switch {
	case count == 0:
		return "", fmt.Errorf("old_string not found in %s", a.Path)
	case count > 1 && !a.ReplaceAll:
		return "", fmt.Errorf("old_string matches %d times in %s; provide more context or set replace_all", count, a.Path)
	}

	var updated string
	replaced := count
	if a.ReplaceAll {
		updated = strings.ReplaceAll(content, a.OldString, a.NewString)
	} else {
		updated = strings.Replace(content, a.OldString, a.NewString, 1)
		replaced = 1
	}

	if err := t.exec.WriteFile(ctx, a.Path, []byte(updated)); err != nil {
		return "", err
	}
	if replaced == 1 {
		return fmt.Sprintf("Edited %s (1 replacement)", a.Path), nil
	}
	return fmt.Sprintf("Edited %s (%d replacements)", a.Path, replaced), nil
}
