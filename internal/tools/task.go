package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// TaskRunner executes a delegated sub-task in an isolated agent run and
// returns its final text. Wired by the CLI so the tool layer stays free of
// engine construction.
type TaskRunner func(ctx context.Context, description, prompt string) (string, error)

// TaskTool delegates a self-contained piece of work to a sub-agent with its
// own context window. The sub-agent only gets read-only tools; anything
// mutating still has to come back through the main loop.
type TaskTool struct {
	run TaskRunner
}

func NewTaskTool(run TaskRunner) *TaskTool {
	return &TaskTool{run: run}
}

type taskArgs struct {
	Description string `json:"description"`
	Prompt      string `json:"prompt"`
}

func (t *TaskTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "task",
		Description: "Delegate a self-contained research task to a sub-agent with a fresh context. " +
			"Useful for multi-step lookups whose intermediate output would crowd the conversation. " +
			"The sub-agent has read-only tools and returns a single report.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"description": map[string]any{
					"type":        "string",
					"description": "Short (3-5 word) summary of the task",
				},
				"prompt": map[string]any{
					"type":        "string",
					"description": "Full instructions for the sub-agent, including what to return",
				},
			},
			"required":             []string{"description", "prompt"},
			"additionalProperties": false,
		},
	}
}

func (t *TaskTool) Preview(args json.RawMessage) string {
	var a taskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateOneLine(a.Description, 60)
}

func (t *TaskTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a taskArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Prompt == "" {
		return "", fmt.Errorf("prompt is required")
	}
	return t.run(ctx, a.Description, a.Prompt)
}

// DescribeTaskAction formats the approval prompt for a delegated task.
func DescribeTaskAction(args map[string]any) string {
	description, _ := args["description"].(string)
	prompt, _ := args["prompt"].(string)
	return fmt.Sprintf("Delegate task: %s\n  %s", description, truncateOneLine(prompt, 200))
}
