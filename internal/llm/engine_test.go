package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
)

type sliceStream struct {
	events []Event
	index  int
}

func (s *sliceStream) Recv() (Event, error) {
	if s.index >= len(s.events) {
		return Event{}, io.EOF
	}
	event := s.events[s.index]
	s.index++
	return event, nil
}

func (s *sliceStream) Close() error {
	return nil
}

type fakeProvider struct {
	script func(call int, req Request) []Event
	calls  []Request
}

func (p *fakeProvider) Name() string       { return "fake" }
func (p *fakeProvider) Credential() string { return "test" }

func (p *fakeProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: true}
}

func (p *fakeProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.calls = append(p.calls, req)
	call := len(p.calls) - 1
	return &sliceStream{events: p.script(call, req)}, nil
}

func (p *fakeProvider) Complete(ctx context.Context, req Request) (string, error) {
	return "", errors.New("not implemented")
}

type recordingTool struct {
	name  string
	calls []json.RawMessage
}

func (t *recordingTool) Spec() ToolSpec {
	return ToolSpec{
		Name:        t.name,
		Description: "test tool",
		Schema:      map[string]any{"type": "object"},
	}
}

func (t *recordingTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	t.calls = append(t.calls, args)
	return fmt.Sprintf("%s ok", t.name), nil
}

func (t *recordingTool) Preview(args json.RawMessage) string {
	return "running " + t.name
}

func fragmentEvents(idx int, id, name, argsJSON string) []Event {
	i := idx
	return []Event{
		{Type: EventToolCallDelta, Fragment: &ToolCallFragment{Index: &i, ID: id, Name: name}},
		{Type: EventToolCallDelta, Fragment: &ToolCallFragment{Index: &i, ArgsText: argsJSON}},
	}
}

// drainStream consumes all events, invoking onInterrupt for interrupt events.
func drainStream(t *testing.T, stream Stream, onInterrupt func(Event)) ([]Event, error) {
	t.Helper()
	var events []Event
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		if event.Type == EventInterrupt {
			if onInterrupt == nil {
				t.Fatal("unexpected interrupt event")
			}
			onInterrupt(event)
		}
		events = append(events, event)
	}
}

func approveAll(event Event) {
	responses := make(map[string]InterruptResponse)
	for _, pi := range event.Interrupts {
		decisions := make([]Decision, len(pi.ActionRequests))
		for i := range decisions {
			decisions[i] = Decision{Type: DecisionApprove}
		}
		responses[pi.ID] = InterruptResponse{Decisions: decisions}
	}
	event.Resume <- responses
}

func TestEngineTextOnly(t *testing.T) {
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			return []Event{
				{Type: EventTextDelta, Text: "Hello "},
				{Type: EventTextDelta, Text: "there"},
			}
		},
	}
	engine := NewEngine(provider, NewToolRegistry())

	var turnMessages []Message
	engine.SetTurnCompletedCallback(func(ctx context.Context, turnIndex int, messages []Message, metrics TurnMetrics) error {
		turnMessages = append(turnMessages, messages...)
		return nil
	})

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{{Name: "noop"}},
		Messages: []Message{UserText("hi")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	events, err := drainStream(t, stream, nil)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	var text strings.Builder
	for _, e := range events {
		if e.Type == EventTextDelta {
			text.WriteString(e.Text)
		}
	}
	if text.String() != "Hello there" {
		t.Errorf("text = %q, want %q", text.String(), "Hello there")
	}
	if len(turnMessages) != 1 || turnMessages[0].Text() != "Hello there" {
		t.Errorf("callback messages = %+v, want single assistant message", turnMessages)
	}
}

func TestEngineToolLoop(t *testing.T) {
	tool := &recordingTool{name: "search_leads"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			if call == 0 {
				return fragmentEvents(0, "call_1", "search_leads", `{"query":"acme"}`)
			}
			return []Event{{Type: EventTextDelta, Text: "Found 3 leads."}}
		},
	}

	registry := NewToolRegistry()
	registry.Register(tool)
	engine := NewEngine(provider, registry)

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{tool.Spec()},
		Messages: []Message{UserText("find acme leads")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	events, err := drainStream(t, stream, nil)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if len(tool.calls) != 1 {
		t.Fatalf("tool executed %d times, want 1", len(tool.calls))
	}
	var args map[string]string
	if err := json.Unmarshal(tool.calls[0], &args); err != nil {
		t.Fatalf("unmarshal args: %v", err)
	}
	if args["query"] != "acme" {
		t.Errorf("args[query] = %q, want %q", args["query"], "acme")
	}

	var sawCall, sawStart, sawEnd bool
	for _, e := range events {
		switch e.Type {
		case EventToolCall:
			sawCall = true
		case EventToolExecStart:
			sawStart = true
		case EventToolExecEnd:
			sawEnd = true
			if !e.ToolSuccess {
				t.Error("expected successful tool execution")
			}
		}
	}
	if !sawCall || !sawStart || !sawEnd {
		t.Errorf("missing tool events: call=%v start=%v end=%v", sawCall, sawStart, sawEnd)
	}

	// Second provider call should carry the assistant tool call and result.
	if len(provider.calls) != 2 {
		t.Fatalf("provider called %d times, want 2", len(provider.calls))
	}
	msgs := provider.calls[1].Messages
	last := msgs[len(msgs)-1]
	if last.Role != RoleTool {
		t.Errorf("last message role = %q, want tool", last.Role)
	}
	if got := collectToolResultText(last.Parts); got != "search_leads ok" {
		t.Errorf("tool result = %q, want %q", got, "search_leads ok")
	}
}

func TestEngineApprovalApproved(t *testing.T) {
	tool := &recordingTool{name: "shell"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			if call == 0 {
				return fragmentEvents(0, "call_1", "shell", `{"command":"ls","cwd":"/tmp"}`)
			}
			return []Event{{Type: EventTextDelta, Text: "Done."}}
		},
	}

	registry := NewToolRegistry()
	registry.RegisterInterrupting(tool, func(args map[string]any) string {
		return fmt.Sprintf("%v (in %v)", args["command"], args["cwd"])
	})
	engine := NewEngine(provider, registry)

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{tool.Spec()},
		Messages: []Message{UserText("list /tmp")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	var gotDescription string
	_, err = drainStream(t, stream, func(event Event) {
		if len(event.Interrupts) != 1 {
			t.Fatalf("interrupts = %d, want 1", len(event.Interrupts))
		}
		requests := event.Interrupts[0].ActionRequests
		if len(requests) != 1 {
			t.Fatalf("action requests = %d, want 1", len(requests))
		}
		gotDescription = requests[0].Description
		approveAll(event)
	})
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if gotDescription != "ls (in /tmp)" {
		t.Errorf("description = %q, want %q", gotDescription, "ls (in /tmp)")
	}
	if len(tool.calls) != 1 {
		t.Errorf("tool executed %d times, want 1", len(tool.calls))
	}
}

func TestEngineApprovalRejected(t *testing.T) {
	tool := &recordingTool{name: "shell"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			return fragmentEvents(0, "call_1", "shell", `{"command":"rm -rf /"}`)
		},
	}

	registry := NewToolRegistry()
	registry.RegisterInterrupting(tool, nil)
	engine := NewEngine(provider, registry)

	callbackFired := false
	engine.SetTurnCompletedCallback(func(ctx context.Context, turnIndex int, messages []Message, metrics TurnMetrics) error {
		callbackFired = true
		return nil
	})

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{tool.Spec()},
		Messages: []Message{UserText("clean up")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	_, err = drainStream(t, stream, func(event Event) {
		pi := event.Interrupts[0]
		event.Resume <- map[string]InterruptResponse{
			pi.ID: {Decisions: []Decision{{Type: DecisionReject, Message: "User rejected the command"}}},
		}
	})
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("err = %v, want ErrRejected", err)
	}
	if len(tool.calls) != 0 {
		t.Errorf("tool executed %d times, want 0", len(tool.calls))
	}
	if callbackFired {
		t.Error("turn callback fired for a rejected turn")
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider called %d times, want 1 (turn must not resume)", len(provider.calls))
	}
}

func TestEngineApprovalBatch(t *testing.T) {
	shell := &recordingTool{name: "shell"}
	write := &recordingTool{name: "write_file"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			if call == 0 {
				events := fragmentEvents(0, "call_1", "shell", `{"command":"mkdir out"}`)
				events = append(events, fragmentEvents(1, "call_2", "write_file", `{"path":"out/a.txt","content":"hi"}`)...)
				return events
			}
			return []Event{{Type: EventTextDelta, Text: "Both done."}}
		},
	}

	registry := NewToolRegistry()
	registry.RegisterInterrupting(shell, nil)
	registry.RegisterInterrupting(write, nil)
	engine := NewEngine(provider, registry)

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{shell.Spec(), write.Spec()},
		Messages: []Message{UserText("set up the file")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	var names []string
	_, err = drainStream(t, stream, func(event Event) {
		if len(event.Interrupts) != 1 {
			t.Fatalf("interrupts = %d, want a single batched interrupt", len(event.Interrupts))
		}
		for _, req := range event.Interrupts[0].ActionRequests {
			names = append(names, req.Name)
		}
		approveAll(event)
	})
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if len(names) != 2 || names[0] != "shell" || names[1] != "write_file" {
		t.Errorf("action requests = %v, want [shell write_file] in call order", names)
	}
	if len(shell.calls) != 1 || len(write.calls) != 1 {
		t.Errorf("executions: shell=%d write=%d, want 1 each", len(shell.calls), len(write.calls))
	}
}

func TestEngineMixedBatchOnlyInterruptingPrompted(t *testing.T) {
	search := &recordingTool{name: "search_contacts"}
	shell := &recordingTool{name: "shell"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			if call == 0 {
				events := fragmentEvents(0, "call_1", "search_contacts", `{"query":"smith"}`)
				events = append(events, fragmentEvents(1, "call_2", "shell", `{"command":"date"}`)...)
				return events
			}
			return []Event{{Type: EventTextDelta, Text: "ok"}}
		},
	}

	registry := NewToolRegistry()
	registry.Register(search)
	registry.RegisterInterrupting(shell, nil)
	engine := NewEngine(provider, registry)

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{search.Spec(), shell.Spec()},
		Messages: []Message{UserText("go")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	_, err = drainStream(t, stream, func(event Event) {
		requests := event.Interrupts[0].ActionRequests
		if len(requests) != 1 || requests[0].Name != "shell" {
			t.Errorf("prompted actions = %+v, want only shell", requests)
		}
		approveAll(event)
	})
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if len(search.calls) != 1 || len(shell.calls) != 1 {
		t.Errorf("executions: search=%d shell=%d, want 1 each", len(search.calls), len(shell.calls))
	}
}

func TestEngineResumeClosedAbortsTurn(t *testing.T) {
	tool := &recordingTool{name: "shell"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			return fragmentEvents(0, "call_1", "shell", `{"command":"ls"}`)
		},
	}

	registry := NewToolRegistry()
	registry.RegisterInterrupting(tool, nil)
	engine := NewEngine(provider, registry)

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{tool.Spec()},
		Messages: []Message{UserText("ls")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	_, err = drainStream(t, stream, func(event Event) {
		close(event.Resume)
	})
	if !errors.Is(err, ErrInterruptAbandoned) {
		t.Fatalf("err = %v, want ErrInterruptAbandoned", err)
	}
	if len(tool.calls) != 0 {
		t.Errorf("tool executed %d times, want 0", len(tool.calls))
	}
}

func TestEngineUnregisteredToolPassthrough(t *testing.T) {
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			return fragmentEvents(0, "call_1", "mystery_tool", `{"x":1}`)
		},
	}
	engine := NewEngine(provider, NewToolRegistry())

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{{Name: "mystery_tool"}},
		Messages: []Message{UserText("go")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	events, err := drainStream(t, stream, nil)
	if err != nil {
		t.Fatalf("drain error = %v", err)
	}

	var sawCall, sawDone bool
	for _, e := range events {
		if e.Type == EventToolCall && e.Tool != nil && e.Tool.Name == "mystery_tool" {
			sawCall = true
		}
		if e.Type == EventDone {
			sawDone = true
		}
	}
	if !sawCall || !sawDone {
		t.Errorf("sawCall=%v sawDone=%v, want both", sawCall, sawDone)
	}
	if len(provider.calls) != 1 {
		t.Errorf("provider called %d times, want 1", len(provider.calls))
	}
}

func TestEngineAllowedToolsFilter(t *testing.T) {
	tool := &recordingTool{name: "search_leads"}
	provider := &fakeProvider{
		script: func(call int, req Request) []Event {
			if call == 0 {
				return fragmentEvents(0, "call_1", "search_leads", `{"query":"x"}`)
			}
			return []Event{{Type: EventTextDelta, Text: "done"}}
		},
	}

	registry := NewToolRegistry()
	registry.Register(tool)
	engine := NewEngine(provider, registry)
	engine.SetAllowedTools([]string{"some_other_tool"})

	stream, err := engine.Stream(context.Background(), Request{
		Tools:    []ToolSpec{tool.Spec()},
		Messages: []Message{UserText("go")},
	})
	if err != nil {
		t.Fatalf("Stream() error = %v", err)
	}
	defer stream.Close()

	if _, err := drainStream(t, stream, nil); err != nil {
		t.Fatalf("drain error = %v", err)
	}

	if len(tool.calls) != 0 {
		t.Errorf("blocked tool executed %d times, want 0", len(tool.calls))
	}
	// Tool result carries the error back to the model.
	msgs := provider.calls[1].Messages
	last := msgs[len(msgs)-1]
	if got := collectToolResultText(last.Parts); !strings.Contains(got, "allowed-tools") {
		t.Errorf("tool result = %q, want allowed-tools error", got)
	}
}
