package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// Tool describes a callable external tool.
type Tool interface {
	Spec() ToolSpec
	Execute(ctx context.Context, args json.RawMessage) (string, error)
	// Preview returns a human-readable description of what the tool will do,
	// shown to the user before execution starts (e.g., "Searching leads: acme").
	// Returns empty string if no preview is available.
	Preview(args json.RawMessage) string
}

// ActionDescriber formats the approval-prompt description for a pending
// action. Registered per interrupting tool so side-effecting tools can show
// exactly what they are about to do (the shell tool shows command and cwd,
// CRM writers show the record payload).
type ActionDescriber func(args map[string]any) string

// ToolRegistry stores tools by name for execution and tracks which of them
// require user approval before running.
type ToolRegistry struct {
	tools        map[string]Tool
	interrupting map[string]ActionDescriber
}

func NewToolRegistry() *ToolRegistry {
	return &ToolRegistry{
		tools:        make(map[string]Tool),
		interrupting: make(map[string]ActionDescriber),
	}
}

func (r *ToolRegistry) Register(tool Tool) {
	r.tools[tool.Spec().Name] = tool
}

// RegisterInterrupting registers a tool whose execution must pause for user
// approval. describe may be nil, in which case the tool's Preview is used
// for the approval prompt.
func (r *ToolRegistry) RegisterInterrupting(tool Tool, describe ActionDescriber) {
	name := tool.Spec().Name
	r.tools[name] = tool
	r.interrupting[name] = describe
}

// MarkInterrupting flags an already-registered tool as requiring approval.
func (r *ToolRegistry) MarkInterrupting(name string, describe ActionDescriber) {
	r.interrupting[name] = describe
}

func (r *ToolRegistry) Get(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

func (r *ToolRegistry) Unregister(name string) {
	delete(r.tools, name)
	delete(r.interrupting, name)
}

// IsInterrupting reports whether the named tool requires approval.
func (r *ToolRegistry) IsInterrupting(name string) bool {
	_, ok := r.interrupting[name]
	return ok
}

// DescribeAction builds the approval-prompt description for a pending call.
// Falls back to the tool's Preview, then to the tool name.
func (r *ToolRegistry) DescribeAction(name string, args map[string]any, raw json.RawMessage) string {
	if describe, ok := r.interrupting[name]; ok && describe != nil {
		if s := describe(args); s != "" {
			return s
		}
	}
	if tool, ok := r.tools[name]; ok {
		if s := tool.Preview(raw); s != "" {
			return s
		}
	}
	return fmt.Sprintf("Run tool: %s", name)
}

// AllSpecs returns the specs for all registered tools.
func (r *ToolRegistry) AllSpecs() []ToolSpec {
	specs := make([]ToolSpec, 0, len(r.tools))
	for _, tool := range r.tools {
		specs = append(specs, tool.Spec())
	}
	return specs
}
