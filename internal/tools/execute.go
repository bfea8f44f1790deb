package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// ExecuteTool runs a command in the remote sandbox. Registered only when a
// remote backend is active; the shell tool covers local execution.
type ExecuteTool struct {
	exec   sandbox.Executor
	limits OutputLimits
}

func NewExecuteTool(exec sandbox.Executor, limits OutputLimits) *ExecuteTool {
	return &ExecuteTool{exec: exec, limits: limits}
}

type executeArgs struct {
	Command        string `json:"command"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (t *ExecuteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "execute",
		Description: fmt.Sprintf(
			"Execute a command in the remote sandbox (%s). Use for code execution and longer-running work that should not touch the user's machine.",
			t.exec.Name()),
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Command to execute in the sandbox",
				},
				"timeout_seconds": map[string]any{
					"type":        "integer",
					"description": "Command timeout in seconds (default: 120, max: 600)",
				},
			},
			"required":             []string{"command"},
			"additionalProperties": false,
		},
	}
}

func (t *ExecuteTool) Preview(args json.RawMessage) string {
	var a executeArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Command == "" {
		return ""
	}
	return truncateOneLine(a.Command, 60)
}

func (t *ExecuteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a executeArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := 120
	if a.TimeoutSeconds > 0 {
		timeout = a.TimeoutSeconds
	}
	if timeout > 600 {
		timeout = 600
	}

	result, err := t.exec.Exec(ctx, a.Command, time.Duration(timeout)*time.Second)
	if err != nil {
		return "", fmt.Errorf("sandbox error: %w", err)
	}
	formatted := formatShellResult(result, t.limits)
	if result.TimedOut {
		return "", fmt.Errorf("command timed out after %ds\n%s", timeout, formatted)
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("command exited %d\n%s", result.ExitCode, formatted)
	}
	return formatted, nil
}

// DescribeExecuteAction formats the approval prompt for the execute tool.
func DescribeExecuteAction(args map[string]any) string {
	command, _ := args["command"].(string)
	return fmt.Sprintf("Execute command: %s\nLocation: remote sandbox", command)
}
