package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// ShellTool executes a shell command through the active sandbox executor.
type ShellTool struct {
	exec   sandbox.Executor
	limits OutputLimits
}

func NewShellTool(exec sandbox.Executor, limits OutputLimits) *ShellTool {
	return &ShellTool{exec: exec, limits: limits}
}

type ShellArgs struct {
	Command        string `json:"command"`
	WorkingDir     string `json:"working_dir,omitempty"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

func (t *ShellTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "shell",
		Description: "Execute a shell command. Returns stdout, stderr, and exit code.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"command": map[string]any{
					"type":        "string",
					"description": "Shell command to execute",
				},
				"working_dir": map[string]any{
					"type":        "string",
					"description": "Working directory (defaults to the session working directory)",
				},
				"timeout_seconds": map[string]any{
					"type":        "integer",
					"description": "Command timeout in seconds (default: 60, max: 300)",
				},
			},
			"required":             []string{"command"},
			"additionalProperties": false,
		},
	}
}

func (t *ShellTool) Preview(args json.RawMessage) string {
	var a ShellArgs
	if err := json.Unmarshal(args, &a); err != nil || a.Command == "" {
		return ""
	}
	return truncateOneLine(a.Command, 60)
}

func (t *ShellTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a ShellArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Command == "" {
		return "", fmt.Errorf("command is required")
	}

	timeout := 60
	if a.TimeoutSeconds > 0 {
		timeout = a.TimeoutSeconds
	}
	if timeout > 300 {
		timeout = 300
	}

	command := a.Command
	if a.WorkingDir != "" {
		command = "cd " + shellQuote(a.WorkingDir) + " && " + command
	}

	result, err := t.exec.Exec(ctx, command, time.Duration(timeout)*time.Second)
	if err != nil {
		return "", fmt.Errorf("command error: %w", err)
	}
	formatted := formatShellResult(result, t.limits)
	if result.TimedOut {
		return "", fmt.Errorf("command timed out after %ds\n%s", timeout, formatted)
	}
	if result.ExitCode != 0 {
		// A non-zero exit is surfaced as an error so the failure (and its
		// stderr) is shown to the user, not just fed back to the model.
		return "", fmt.Errorf("command exited %d\n%s", result.ExitCode, formatted)
	}
	return formatted, nil
}

func formatShellResult(result sandbox.ExecResult, limits OutputLimits) string {
	var b strings.Builder

	stdout, outTrunc := truncateBytes(result.Stdout, limits)
	stderr, errTrunc := truncateBytes(result.Stderr, limits)

	if stdout != "" {
		b.WriteString("stdout:\n")
		b.WriteString(stdout)
		if !strings.HasSuffix(stdout, "\n") {
			b.WriteString("\n")
		}
	}
	if stderr != "" {
		if stdout != "" {
			b.WriteString("\n")
		}
		b.WriteString("stderr:\n")
		b.WriteString(stderr)
		if !strings.HasSuffix(stderr, "\n") {
			b.WriteString("\n")
		}
	}

	fmt.Fprintf(&b, "\nexit_code: %d", result.ExitCode)
	if outTrunc || errTrunc {
		b.WriteString("\n\n[Output truncated due to size limit]")
	}
	return b.String()
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
