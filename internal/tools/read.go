package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// ReadFileTool reads a file through the active sandbox executor.
type ReadFileTool struct {
	exec   sandbox.Executor
	limits OutputLimits
}

func NewReadFileTool(exec sandbox.Executor, limits OutputLimits) *ReadFileTool {
	return &ReadFileTool{exec: exec, limits: limits}
}

type ReadFileArgs struct {
	Path      string `json:"path"`
	StartLine int    `json:"start_line,omitempty"`
	EndLine   int    `json:"end_line,omitempty"`
}

func (t *ReadFileTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "read_file",
		Description: "Read file contents. Returns line-numbered output. Use start_line/end_line for pagination.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"path": map[string]any{
					"type":        "string",
					"description": "Path to the file to read",
				},
				"start_line": map[string]any{
					"type":        "integer",
					"description": "1-indexed start line (default: 1)",
				},
				"end_line": map[string]any{
					"type":        "integer",
					"description": "1-indexed end line (default: EOF)",
				},
			},
			"required":             []string{"path"},
			"additionalProperties": false,
		},
	}
}

func (t *ReadFileTool) Preview(args json.RawMessage) string {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Path == "" {
		return ""
	}
	if a.StartLine > 0 || a.EndLine > 0 {
		return fmt.Sprintf("%s:%d-%d", a.Path, max(a.StartLine, 1), a.EndLine)
	}
	return a.Path
}

func (t *ReadFileTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ReadFileArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Path == "" {
		return "", fmt.Errorf("path is required")
	}

	data, err := t.exec.ReadFile(ctx, a.Path)
	if err != nil {
		return "", err
	}
	if isBinaryContent(data) {
		return "", fmt.Errorf("%s appears to be a binary file", a.Path)
	}

	lines := strings.Split(string(data), "\n")
	start := 1
	if a.StartLine > 1 {
		start = a.StartLine
	}
	end := len(lines)
	if a.EndLine > 0 && a.EndLine < end {
		end = a.EndLine
	}
	if start > len(lines) {
		return "", fmt.Errorf("start_line %d is past the end of the file (%d lines)", start, len(lines))
	}

	var b strings.Builder
	for i := start; i <= end; i++ {
		fmt.Fprintf(&b, "%6d\t%s\n", i, lines[i-1])
	}
	out, truncated := truncateBytes(b.String(), t.limits)
	if truncated {
		out += "\n[Output truncated; use start_line/end_line to page through the file]"
	}
	return out, nil
}

func isBinaryContent(data []byte) bool {
	if len(data) > 8000 {
		data = data[:8000]
	}
	return bytes.ContainsRune(data, 0)
}
