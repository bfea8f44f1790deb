package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// WriteFileTool creates or overwrites a file through the active sandbox
// executor. Parent directories are created as needed.
type WriteFileTool struct {
	exec sandbox.Executor
}

func NewWriteFileTool(exec sandbox.Executor) *WriteFileTool {
	return &WriteFileTool{exec: exec}
}

type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (t *WriteFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "write_file",
		Description: "Create or overwrite a file with the given content. Creates parent directories if needed.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to write",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "Full file content to write",
				},
			},
			"required":             []string{"path", "content"},
			"additionalProperties": false,
		},
	}
}

func (t *WriteFileTool) Preview(args json.RawMessage) string {
	var a WriteFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	return a.Path
}

func (t *WriteFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a WriteFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	existed := true
	if _, err := t.exec.ReadFile(ctx, a.Path); err != nil {
		existed = false
	}

	if err := t.exec.WriteFile(ctx, a.Path, []byte(a.Content)); err != nil {
		return "", err
	}

	lines := strings.Count(a.Content, "\n")
	if a.Content != "" && !strings.HasSuffix(a.Content, "\n") {
		lines++
	}
	verb := "Created"
	if existed {
		verb = "Overwrote"
	}
	return fmt.Sprintf("%s %s (%d lines)", verb, a.Path, lines), nil
}
