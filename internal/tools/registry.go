package tools

import (
	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

// Options configures the built-in tool set.
type Options struct {
	TavilyAPIKey string
	Memory       MemoryStore // nil disables the memory tools
	Limits       OutputLimits
}

// RegisterBuiltins adds the standard tool set to a registry. Shell and file
// tools route through the sandbox executor; which of them interrupt for
// approval is decided by the caller (via the registry's interrupt marks).
func RegisterBuiltins(reg *llm.ToolRegistry, exec sandbox.Executor, opts Options) {
	if opts.Limits.MaxBytes == 0 {
		opts.Limits = DefaultLimits()
	}

	reg.Register(NewShellTool(exec, opts.Limits))
	reg.Register(NewReadFileTool(exec, opts.Limits))
	reg.Register(NewWriteFileTool(exec))
	reg.Register(NewEditFileTool(exec))
	reg.Register(NewLsTool())
	reg.Register(NewGlobTool())
	reg.Register(NewGrepTool(opts.Limits))
	reg.Register(NewFetchURLTool(opts.Limits))
	reg.Register(NewWebSearchTool(opts.TavilyAPIKey))

	if opts.Memory != nil {
		reg.Register(NewMemoryReadTool(opts.Memory))
		reg.Register(NewMemoryAppendTool(opts.Memory))
		reg.Register(NewMemoryWriteTool(opts.Memory))
	}
}
