package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const defaultMaxTurns = 40

// ErrRejected is returned from a stream when the user rejects one or more
// pending actions. The partial turn is dropped: no assistant message, no
// tool results, no persistence callback.
var ErrRejected = errors.New("action rejected by user")

// ErrInterruptAbandoned is returned when the resume channel for a pending
// interrupt is closed without a decision (the approval prompt was dismissed
// or the UI shut down mid-approval).
var ErrInterruptAbandoned = errors.New("interrupt abandoned without decision")

// getMaxTurns returns the max turns from request, with fallback to default
func getMaxTurns(req Request) int {
	if req.MaxTurns > 0 {
		return req.MaxTurns
	}
	return defaultMaxTurns
}

// TurnMetrics contains metrics collected during a turn.
type TurnMetrics struct {
	InputTokens  int // Tokens consumed as input this turn
	OutputTokens int // Tokens generated as output this turn
	ToolCalls    int // Number of tools executed this turn
}

// TurnCompletedCallback is called after each turn completes with the messages
// generated during that turn and metrics about the turn.
// turnIndex is 0-based, messages contains assistant message(s) and tool result(s).
type TurnCompletedCallback func(ctx context.Context, turnIndex int, messages []Message, metrics TurnMetrics) error

// Engine orchestrates provider calls, tool execution, and the approval gate
// for side-effecting tools.
type Engine struct {
	provider Provider
	tools    *ToolRegistry

	// allowedTools filters which tools can be executed.
	// If nil or empty, all tools are allowed. When set, only listed tools can run.
	// Used by skills with allowed-tools to restrict tool access.
	allowedTools map[string]bool
	allowedMu    sync.RWMutex

	// onTurnCompleted is called after each turn with messages generated.
	// Used for incremental session saving. Protected by callbackMu.
	onTurnCompleted TurnCompletedCallback
	callbackMu      sync.RWMutex
}

func NewEngine(provider Provider, tools *ToolRegistry) *Engine {
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{
		provider: provider,
		tools:    tools,
	}
}

// RegisterTool adds a tool to the engine's registry.
func (e *Engine) RegisterTool(tool Tool) {
	e.tools.Register(tool)
}

// UnregisterTool removes a tool from the engine's registry.
func (e *Engine) UnregisterTool(name string) {
	e.tools.Unregister(name)
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

// Provider returns the engine's provider.
func (e *Engine) Provider() Provider {
	return e.provider
}

// SetAllowedTools sets the list of tools that can be executed.
// When set, only tools in this list can run; all others are blocked.
// Pass nil or empty slice to allow all tools.
// The list is intersected with registered tools (can't allow unregistered tools).
func (e *Engine) SetAllowedTools(tools []string) {
	e.allowedMu.Lock()
	defer e.allowedMu.Unlock()

	if len(tools) == 0 {
		e.allowedTools = nil
		return
	}

	e.allowedTools = make(map[string]bool, len(tools))
	for _, name := range tools {
		if _, ok := e.tools.Get(name); ok {
			e.allowedTools[name] = true
		}
	}
}

// ClearAllowedTools removes the tool filter, allowing all registered tools.
func (e *Engine) ClearAllowedTools() {
	e.allowedMu.Lock()
	defer e.allowedMu.Unlock()
	e.allowedTools = nil
}

// SetTurnCompletedCallback sets the callback for incremental turn completion.
// The callback receives messages generated each turn for incremental persistence.
// Thread-safe: can be called while streaming is in progress.
func (e *Engine) SetTurnCompletedCallback(cb TurnCompletedCallback) {
	e.callbackMu.Lock()
	e.onTurnCompleted = cb
	e.callbackMu.Unlock()
}

func (e *Engine) getCallback() TurnCompletedCallback {
	e.callbackMu.RLock()
	cb := e.onTurnCompleted
	e.callbackMu.RUnlock()
	return cb
}

// IsToolAllowed checks if a tool can be executed under current restrictions.
func (e *Engine) IsToolAllowed(name string) bool {
	e.allowedMu.RLock()
	defer e.allowedMu.RUnlock()

	if e.allowedTools == nil {
		return true
	}
	return e.allowedTools[name]
}

// Stream returns a stream, applying external tools when needed.
func (e *Engine) Stream(ctx context.Context, req Request) (Stream, error) {
	caps := e.provider.Capabilities()

	// Use the agentic loop if the request has tools and the provider
	// supports tool calls.
	if len(req.Tools) > 0 && caps.ToolCalls {
		return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
			return e.runLoop(ctx, req, events)
		}), nil
	}

	stream, err := e.provider.Stream(ctx, req)
	if err != nil {
		return nil, err
	}

	// Wrap to call turn callback even for simple streams.
	if cb := e.getCallback(); cb != nil {
		stream = wrapCallbackStream(ctx, stream, cb)
	}
	return stream, nil
}

// Complete delegates a non-streaming side call (summarization) to the
// provider, bypassing the tool loop entirely.
func (e *Engine) Complete(ctx context.Context, req Request) (string, error) {
	return e.provider.Complete(ctx, req)
}

func (e *Engine) runLoop(ctx context.Context, req Request, events chan<- Event) error {
	maxTurns := getMaxTurns(req)
	callback := e.getCallback()

	for attempt := 0; attempt < maxTurns; attempt++ {
		stream, err := e.provider.Stream(ctx, req)
		if err != nil {
			return err
		}

		// Collect tool calls and text, forward events, track metrics.
		buffer := NewToolCallBuffer()
		var toolCalls []ToolCall
		var textBuilder strings.Builder
		var turnMetrics TurnMetrics
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if event.Type == EventError && event.Err != nil {
				stream.Close()
				return event.Err
			}
			switch event.Type {
			case EventUsage:
				if event.Use != nil {
					in, out := ExtractUsage(event.Use, event.RawUsage)
					turnMetrics.InputTokens += in
					turnMetrics.OutputTokens += out
				}
			case EventTextDelta:
				if event.Text != "" {
					textBuilder.WriteString(event.Text)
				}
			case EventToolCallDelta:
				// Fold streamed fragments into the buffer; a completed
				// call surfaces as an EventToolCall for the UI and joins
				// this turn's execution batch.
				if event.Fragment == nil {
					continue
				}
				if call, ok := buffer.Add(*event.Fragment); ok {
					toolCalls = append(toolCalls, call)
					c := call
					events <- Event{Type: EventToolCall, Tool: &c}
				}
				continue
			case EventToolCall:
				// Pre-assembled call from a provider that does not stream
				// argument fragments.
				if event.Tool != nil {
					toolCalls = append(toolCalls, *event.Tool)
				}
			case EventDone:
				continue
			}
			events <- event
		}
		stream.Close()

		if len(toolCalls) == 0 {
			// Final text-only response.
			if callback != nil && textBuilder.Len() > 0 {
				finalMsg := AssistantText(textBuilder.String())
				_ = callback(ctx, attempt, []Message{finalMsg}, turnMetrics)
			}
			events <- Event{Type: EventDone}
			return nil
		}

		toolCalls = ensureToolCallIDs(toolCalls)

		// Split into registered (to execute) and unregistered (to passthrough)
		var registered, unregistered []ToolCall
		for _, call := range toolCalls {
			if _, ok := e.tools.Get(call.Name); ok {
				registered = append(registered, call)
			} else {
				unregistered = append(unregistered, call)
			}
		}

		// Unregistered calls were already surfaced to the consumer during
		// collection; they are not executed here.
		if len(registered) == 0 {
			if callback != nil {
				var parts []Part
				if textBuilder.Len() > 0 {
					parts = append(parts, Part{Type: PartText, Text: textBuilder.String()})
				}
				for i := range unregistered {
					call := unregistered[i]
					parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
				}
				if len(parts) > 0 {
					_ = callback(ctx, attempt, []Message{{Role: RoleAssistant, Parts: parts}}, turnMetrics)
				}
			}
			events <- Event{Type: EventDone}
			return nil
		}

		if attempt == maxTurns-1 {
			return fmt.Errorf("agentic loop exceeded max turns (%d)", maxTurns)
		}

		// Approval gate: if any call in this batch targets a tool that
		// requires approval, pause the whole batch and wait for decisions.
		if err := e.awaitApproval(ctx, registered, events); err != nil {
			return err
		}

		for _, call := range registered {
			info := e.getToolPreview(call)
			events <- Event{Type: EventToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info}
		}

		toolResults, err := e.executeToolCalls(ctx, registered, events)
		if err != nil {
			return err
		}

		assistantMsg := buildAssistantMessage(textBuilder.String(), registered)
		req.Messages = append(req.Messages, assistantMsg)
		req.Messages = append(req.Messages, toolResults...)

		if callback != nil {
			turnMetrics.ToolCalls = len(registered)
			turnMessages := []Message{assistantMsg}
			turnMessages = append(turnMessages, toolResults...)
			_ = callback(ctx, attempt, turnMessages, turnMetrics)
		}
	}

	return fmt.Errorf("agentic loop ended unexpectedly")
}

// awaitApproval pauses execution when the batch contains tools that require
// user approval. All pending calls in the step are collected into a single
// interrupt with their action requests in call order; the consumer answers
// on the Resume channel with one decision per request. A single rejection
// rejects the batch: the turn ends with ErrRejected and nothing is
// persisted. Calls whose tools are not flagged as interrupting pass through
// without a prompt.
func (e *Engine) awaitApproval(ctx context.Context, calls []ToolCall, events chan<- Event) error {
	var actions []ActionRequest
	for _, call := range calls {
		if !e.tools.IsInterrupting(call.Name) {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal(call.Arguments, &args); err != nil {
			args = map[string]any{}
		}
		actions = append(actions, ActionRequest{
			Name:        call.Name,
			Args:        args,
			Description: e.tools.DescribeAction(call.Name, args, call.Arguments),
			Call:        call,
		})
	}
	if len(actions) == 0 {
		return nil
	}

	pending := PendingInterrupt{ID: uuid.NewString(), ActionRequests: actions}
	resume := make(chan map[string]InterruptResponse, 1)

	select {
	case events <- Event{Type: EventInterrupt, Interrupts: []PendingInterrupt{pending}, Resume: resume}:
	case <-ctx.Done():
		return ctx.Err()
	}

	var responses map[string]InterruptResponse
	select {
	case r, ok := <-resume:
		if !ok {
			return ErrInterruptAbandoned
		}
		responses = r
	case <-ctx.Done():
		return ctx.Err()
	}

	resp, ok := responses[pending.ID]
	if !ok {
		return ErrInterruptAbandoned
	}
	if len(resp.Decisions) != len(actions) {
		return fmt.Errorf("interrupt %s: got %d decisions for %d actions", pending.ID, len(resp.Decisions), len(actions))
	}
	for _, d := range resp.Decisions {
		if d.Type != DecisionApprove {
			return ErrRejected
		}
	}
	return nil
}

// ensureToolCallIDs assigns generated IDs to calls that arrived without one,
// so tool results can be correlated back to their calls.
func ensureToolCallIDs(calls []ToolCall) []ToolCall {
	for i := range calls {
		if calls[i].ID == "" {
			calls[i].ID = "call_" + uuid.NewString()
		}
	}
	return calls
}

func (e *Engine) getToolPreview(call ToolCall) string {
	tool, ok := e.tools.Get(call.Name)
	if !ok {
		return ""
	}
	return tool.Preview(call.Arguments)
}

// executeToolCalls executes multiple tool calls, potentially in parallel.
// Note: When executing in parallel, EventToolExecStart/EventToolExecEnd events
// are emitted from concurrent goroutines. While the channel is thread-safe, events
// may arrive in non-deterministic order. Consumers should use ToolCallID to correlate
// start/end events rather than relying on ordering.
func (e *Engine) executeToolCalls(ctx context.Context, calls []ToolCall, events chan<- Event) ([]Message, error) {
	// Fast path: single call, no concurrency overhead
	if len(calls) == 1 {
		return e.executeSingleToolCall(ctx, calls[0], events)
	}

	type toolResult struct {
		index   int
		message Message
	}

	var wg sync.WaitGroup
	resultChan := make(chan toolResult, len(calls))

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, c ToolCall) {
			defer wg.Done()
			msgs, _ := e.executeSingleToolCall(ctx, c, events)
			if len(msgs) > 0 {
				resultChan <- toolResult{index: idx, message: msgs[0]}
			}
		}(i, call)
	}

	go func() {
		wg.Wait()
		close(resultChan)
	}()

	// Collect results and maintain original order
	results := make([]Message, len(calls))
	for r := range resultChan {
		results[r.index] = r.message
	}

	return results, nil
}

// executeSingleToolCall executes a single tool call and returns the result message.
func (e *Engine) executeSingleToolCall(ctx context.Context, call ToolCall, events chan<- Event) ([]Message, error) {
	tool, ok := e.tools.Get(call.Name)
	if !ok {
		errMsg := fmt.Sprintf("Error: tool not registered: %s", call.Name)
		if events != nil {
			events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolSuccess: false, ToolOutput: errMsg}
		}
		return []Message{ToolErrorMessage(call.ID, call.Name, errMsg)}, nil
	}

	if !e.IsToolAllowed(call.Name) {
		errMsg := fmt.Sprintf("Error: tool '%s' is not in the active skill's allowed-tools list", call.Name)
		if events != nil {
			events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: e.getToolPreview(call), ToolSuccess: false, ToolOutput: errMsg}
		}
		return []Message{ToolErrorMessage(call.ID, call.Name, errMsg)}, nil
	}

	toolCtx := ContextWithCallID(ctx, call.ID)
	output, err := tool.Execute(toolCtx, call.Arguments)
	info := e.getToolPreview(call)

	if err != nil {
		errMsg := fmt.Sprintf("Error: %v", err)
		if events != nil {
			events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: false, ToolOutput: errMsg}
		}
		return []Message{ToolErrorMessage(call.ID, call.Name, errMsg)}, nil
	}

	if events != nil {
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: true, ToolOutput: output}
	}
	return []Message{ToolResultMessage(call.ID, call.Name, output)}, nil
}

// wrapCallbackStream wraps a stream to call the turn callback on completion.
// Used for simple (non-agentic) streams to enable incremental session saving.
func wrapCallbackStream(ctx context.Context, inner Stream, cb TurnCompletedCallback) Stream {
	return &callbackStream{
		inner:    inner,
		ctx:      ctx,
		text:     &strings.Builder{},
		callback: cb,
	}
}

// callbackStream wraps a stream to accumulate text/usage and call callback on EOF.
type callbackStream struct {
	inner    Stream
	ctx      context.Context
	text     *strings.Builder
	metrics  TurnMetrics
	callback TurnCompletedCallback
	done     bool
}

func (s *callbackStream) Recv() (Event, error) {
	event, err := s.inner.Recv()
	if err != nil {
		// Fire on EOF and on error alike (best-effort save of partial output).
		s.fireCallback()
		return event, err
	}

	if event.Type == EventTextDelta && event.Text != "" {
		s.text.WriteString(event.Text)
	}
	if event.Type == EventUsage && event.Use != nil {
		in, out := ExtractUsage(event.Use, event.RawUsage)
		s.metrics.InputTokens += in
		s.metrics.OutputTokens += out
	}

	return event, nil
}

func (s *callbackStream) fireCallback() {
	if s.callback != nil && !s.done && s.text.Len() > 0 {
		s.done = true
		_ = s.callback(s.ctx, 0, []Message{AssistantText(s.text.String())}, s.metrics)
	}
}

func (s *callbackStream) Close() error {
	s.fireCallback()
	return s.inner.Close()
}
