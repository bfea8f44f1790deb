package tools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// MemoryStore is the per-agent persistent memory the memory tools operate
// on. Implemented by internal/agents.
type MemoryStore interface {
	ReadMemory() (string, error)
	AppendMemory(text string) error
	WriteMemory(text string) error
}

// MemoryReadTool returns the agent's persistent memory file.
type MemoryReadTool struct {
	store MemoryStore
}

func NewMemoryReadTool(store MemoryStore) *MemoryReadTool {
	return &MemoryReadTool{store: store}
}

func (t *MemoryReadTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "memory_read",
		Description: "Read the agent's persistent memory notes.",
		Schema: map[string]any{
			"type":                 "object",
			"properties":           map[string]any{},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryReadTool) Preview(args json.RawMessage) string { return "memory" }

func (t *MemoryReadTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	content, err := t.store.ReadMemory()
	if err != nil {
		return "", err
	}
	if content == "" {
		return "(memory is empty)", nil
	}
	return content, nil
}

// MemoryAppendTool appends a note to the agent's persistent memory.
type MemoryAppendTool struct {
	store MemoryStore
}

func NewMemoryAppendTool(store MemoryStore) *MemoryAppendTool {
	return &MemoryAppendTool{store: store}
}

type memoryWriteArgs struct {
	Content string `json:"content"`
}

func (t *MemoryAppendTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "memory_append",
		Description: "Append a note to the agent's persistent memory. Use for durable facts worth remembering across sessions.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "Note to append",
				},
			},
			"required":             []string{"content"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryAppendTool) Preview(args json.RawMessage) string {
	var a memoryWriteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateOneLine(a.Content, 60)
}

func (t *MemoryAppendTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a memoryWriteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Content == "" {
		return "", fmt.Errorf("content is required")
	}
	if err := t.store.AppendMemory(a.Content); err != nil {
		return "", err
	}
	return "Memory updated.", nil
}

// MemoryWriteTool replaces the agent's persistent memory wholesale.
type MemoryWriteTool struct {
	store MemoryStore
}

func NewMemoryWriteTool(store MemoryStore) *MemoryWriteTool {
	return &MemoryWriteTool{store: store}
}

func (t *MemoryWriteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "memory_write",
		Description: "Replace the agent's persistent memory with new content. Use memory_append to add without replacing.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "Full replacement memory content",
				},
			},
			"required":             []string{"content"},
			"additionalProperties": false,
		},
	}
}

func (t *MemoryWriteTool) Preview(args json.RawMessage) string { return "memory" }

func (t *MemoryWriteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a memoryWriteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if err := t.store.WriteMemory(a.Content); err != nil {
		return "", err
	}
	return "Memory replaced.", nil
}
