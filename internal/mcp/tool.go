package mcp

import (
	"context"
	"encoding/json"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// Tool adapts one MCP server tool to the agent's tool interface.
type Tool struct {
	manager *Manager
	spec    ToolSpec
}

func (t *Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        t.spec.Name,
		Description: t.spec.Description,
		Schema:      t.spec.Schema,
	}
}

func (t *Tool) Preview(json.RawMessage) string { return "" }

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return t.manager.CallTool(ctx, t.spec.Name, args)
}

// RegisterTools bridges every running server's tools into the registry.
// Returns the registered names so they can be unregistered on reload.
func RegisterTools(manager *Manager, registry *llm.ToolRegistry) []string {
	specs := manager.AllTools()
	names := make([]string, 0, len(specs))
	for _, spec := range specs {
		registry.Register(&Tool{manager: manager, spec: spec})
		names = append(names, spec.Name)
	}
	return names
}
