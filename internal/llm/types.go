package llm

import (
	"context"
	"encoding/json"
)

// contextKey is a private type for context keys to prevent collisions.
type contextKey string

// toolCallIDKey is the context key for the current tool call ID.
const toolCallIDKey contextKey = "tool_call_id"

// ContextWithCallID returns a new context with the tool call ID set.
func ContextWithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, toolCallIDKey, callID)
}

// CallIDFromContext extracts the tool call ID from context, or returns empty string.
func CallIDFromContext(ctx context.Context) string {
	if v := ctx.Value(toolCallIDKey); v != nil {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// Provider streams model output events for a request.
type Provider interface {
	Name() string
	Credential() string // credential source for diagnostics (e.g., "api_key", "env")
	Capabilities() Capabilities
	Stream(ctx context.Context, req Request) (Stream, error)
	// Complete issues a single non-streaming call and returns the full text.
	// Used for side calls (conversation summarization) that must not touch
	// the UI streaming path.
	Complete(ctx context.Context, req Request) (string, error)
}

// Capabilities describe optional provider features.
type Capabilities struct {
	ToolCalls       bool
	NativeWebSearch bool
}

// Stream yields events until io.EOF.
type Stream interface {
	Recv() (Event, error)
	Close() error
}

// Request represents a single model turn.
type Request struct {
	Model           string
	Messages        []Message
	Tools           []ToolSpec
	MaxOutputTokens int
	Temperature     float32
	MaxTurns        int // Max agentic turns for tool execution (0 = use default)
}

// Role identifies a message role.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies a message content part.
type PartType string

const (
	PartText       PartType = "text"
	PartToolCall   PartType = "tool_call"
	PartToolResult PartType = "tool_result"
)

// Message holds a role with structured parts.
type Message struct {
	Role  Role
	Parts []Part
}

// Part represents a single content part.
type Part struct {
	Type       PartType
	Text       string
	ToolCall   *ToolCall
	ToolResult *ToolResult
}

// Text returns the concatenated text content of the message.
func (m Message) Text() string {
	return collectTextParts(m.Parts)
}

// ToolSpec describes a callable tool.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// ToolCall is a model-requested tool invocation.
type ToolCall struct {
	ID        string
	Name      string
	Arguments json.RawMessage
}

// ToolResult is the output from executing a tool call.
type ToolResult struct {
	ID      string
	Name    string
	Content string
	IsError bool
}

// EventType describes streaming events.
type EventType string

const (
	EventTextDelta      EventType = "text_delta"
	EventReasoningDelta EventType = "reasoning_delta"
	EventToolCallDelta  EventType = "tool_call_delta" // partial tool-call fragment
	EventToolCall       EventType = "tool_call"       // fully assembled tool call
	EventToolExecStart  EventType = "tool_exec_start"
	EventToolExecEnd    EventType = "tool_exec_end"
	EventInterrupt      EventType = "interrupt" // approval required before tools run
	EventUsage          EventType = "usage"
	EventDone           EventType = "done"
	EventRetry          EventType = "retry"
	EventError          EventType = "error"
)

// InterruptResponse carries the decisions for one pending interrupt,
// in action-request order.
type InterruptResponse struct {
	Decisions []Decision
}

// DecisionType enumerates approval outcomes for a single action request.
type DecisionType string

const (
	DecisionApprove DecisionType = "approve"
	DecisionReject  DecisionType = "reject"
)

// Decision is the resolution of a single action request.
type Decision struct {
	Type    DecisionType
	Message string // populated for rejections
}

// ActionRequest is one tool invocation awaiting approval.
type ActionRequest struct {
	Name        string
	Args        map[string]any
	Description string
	Call        ToolCall // the underlying call, executed if approved
}

// PendingInterrupt is a batch of action requests raised in a single agent
// step. It is created when tools registered as interrupting are about to
// execute and is consumed (answered) within the same turn.
type PendingInterrupt struct {
	ID             string
	ActionRequests []ActionRequest
}

// Event represents a streamed output update.
type Event struct {
	Type        EventType
	Text        string
	Tool        *ToolCall
	Fragment    *ToolCallFragment // For EventToolCallDelta: raw streamed fragment
	ToolCallID  string // For EventToolExecStart/End
	ToolName    string
	ToolInfo    string
	ToolSuccess bool
	ToolOutput  string
	Use         *Usage
	RawUsage    json.RawMessage // provider response metadata for quirk fallbacks
	Err         error

	// Interrupt fields (EventInterrupt). Resume receives the decision map
	// keyed by interrupt ID; closing it without sending aborts the turn.
	Interrupts []PendingInterrupt
	Resume     chan<- map[string]InterruptResponse

	// Retry fields (EventRetry)
	RetryAttempt     int
	RetryMaxAttempts int
	RetryWaitSecs    float64
}

// Usage captures token usage if available.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

func SystemText(text string) Message {
	return Message{Role: RoleSystem, Parts: []Part{{Type: PartText, Text: text}}}
}

func UserText(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{{Type: PartText, Text: text}}}
}

func AssistantText(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{{Type: PartText, Text: text}}}
}

func ToolResultMessage(id, name, content string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type:       PartToolResult,
			ToolResult: &ToolResult{ID: id, Name: name, Content: content},
		}},
	}
}

// ToolErrorMessage creates a tool result message that indicates an error.
// The error is passed back to the model so it can respond gracefully
// instead of failing the stream.
func ToolErrorMessage(id, name, errorText string) Message {
	return Message{
		Role: RoleTool,
		Parts: []Part{{
			Type:       PartToolResult,
			ToolResult: &ToolResult{ID: id, Name: name, Content: errorText, IsError: true},
		}},
	}
}
