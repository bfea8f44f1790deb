package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/session"
)

type sliceStream struct {
	events []llm.Event
	index  int
	err    error // returned after events are exhausted; io.EOF via nil
}

func (s *sliceStream) Recv() (llm.Event, error) {
	if s.index >= len(s.events) {
		if s.err != nil {
			return llm.Event{}, s.err
		}
		return llm.Event{}, io.EOF
	}
	ev := s.events[s.index]
	s.index++
	return ev, nil
}

func (s *sliceStream) Close() error { return nil }

type scriptProvider struct {
	mu     sync.Mutex
	script func(call int) ([]llm.Event, error)
	calls  int
}

func (p *scriptProvider) Name() string       { return "script" }
func (p *scriptProvider) Credential() string { return "test" }
func (p *scriptProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{ToolCalls: true}
}

func (p *scriptProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	p.mu.Lock()
	call := p.calls
	p.calls++
	p.mu.Unlock()
	events, err := p.script(call)
	return &sliceStream{events: events, err: err}, nil
}

func (p *scriptProvider) Complete(ctx context.Context, req llm.Request) (string, error) {
	return "", errors.New("not used")
}

func (p *scriptProvider) callCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type stubTool struct {
	name  string
	out   string
	err   error
	mu    sync.Mutex
	execs int
}

func (t *stubTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{Name: t.name, Description: t.name, Schema: map[string]any{"type": "object"}}
}

func (t *stubTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	t.mu.Lock()
	t.execs++
	t.mu.Unlock()
	return t.out, t.err
}

func (t *stubTool) Preview(args json.RawMessage) string { return "" }

func (t *stubTool) execCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.execs
}

type toolEnd struct {
	name, output string
	success      bool
	diff         *FileDiff
}

type uiRecorder struct {
	markdown  []string
	starts    []string
	ends      []toolEnd
	notifies  []string
	errorCats []llm.ErrorCategory
	approvals []llm.ActionRequest
	decide    func(action llm.ActionRequest) ApprovalResult
}

func (u *uiRecorder) Markdown(text string)        { u.markdown = append(u.markdown, text) }
func (u *uiRecorder) ToolStart(name, info string) { u.starts = append(u.starts, name) }
func (u *uiRecorder) ToolEnd(name, output string, success bool, diff *FileDiff) {
	u.ends = append(u.ends, toolEnd{name, output, success, diff})
}
func (u *uiRecorder) Notify(text string) { u.notifies = append(u.notifies, text) }
func (u *uiRecorder) Error(cat llm.ErrorCategory, msg string) {
	u.errorCats = append(u.errorCats, cat)
}

func (u *uiRecorder) PromptApproval(action llm.ActionRequest) (ApprovalResult, error) {
	u.approvals = append(u.approvals, action)
	if u.decide != nil {
		return u.decide(action), nil
	}
	return ApprovalApprove, nil
}

func (u *uiRecorder) notified(substr string) bool {
	for _, n := range u.notifies {
		if strings.Contains(n, substr) {
			return true
		}
	}
	return false
}

func callEvent(id, name, args string) llm.Event {
	return llm.Event{Type: llm.EventToolCall, Tool: &llm.ToolCall{
		ID: id, Name: name, Arguments: json.RawMessage(args),
	}}
}

func usageEvent(in, out int) llm.Event {
	return llm.Event{Type: llm.EventUsage, Use: &llm.Usage{InputTokens: in, OutputTokens: out}}
}

// interruptDescribers mirrors the CLI's interrupt wiring for the tools the
// tests exercise.
var interruptDescribers = map[string]llm.ActionDescriber{
	"shell": func(args map[string]any) string {
		cmd, _ := args["command"].(string)
		return "Shell command: " + cmd
	},
	"write_file": func(args map[string]any) string {
		path, _ := args["path"].(string)
		return "Write file: " + path
	},
	"edit_file": func(args map[string]any) string {
		path, _ := args["path"].(string)
		return "Edit file: " + path
	},
}

func newTestExecutor(t *testing.T, provider llm.Provider, ui *uiRecorder, tools ...llm.Tool) (*Executor, session.Store) {
	t.Helper()
	registry := llm.NewToolRegistry()
	for _, tool := range tools {
		registry.Register(tool)
	}
	for name, describe := range interruptDescribers {
		if _, ok := registry.Get(name); ok {
			registry.MarkInterrupting(name, describe)
		}
	}

	engine := llm.NewEngine(provider, registry)
	store := session.NewMemoryStore()
	tracker := NewTokenTracker()
	compactor := NewCompactor(provider, store, tracker, "claude-sonnet-4-5", 1_000_000)

	return NewExecutor(engine, store, tracker, compactor, ui, ExecutorOptions{
		Model:        "claude-sonnet-4-5",
		MaxTurns:     5,
		SystemPrompt: func() string { return "test prompt" },
	}), store
}

func TestRunTurnTextOnly(t *testing.T) {
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{
			{Type: llm.EventTextDelta, Text: "Hello "},
			{Type: llm.EventTextDelta, Text: "**world**"},
			usageEvent(100, 20),
		}, nil
	}}
	ui := &uiRecorder{}
	exec, store := newTestExecutor(t, provider, ui, &stubTool{name: "search_contacts", out: "[]"})

	if err := exec.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}

	if len(ui.markdown) != 1 || ui.markdown[0] != "Hello **world**" {
		t.Errorf("expected one flushed block, got %v", ui.markdown)
	}
	msgs, _ := store.Messages(context.Background())
	if len(msgs) != 2 || msgs[0].Role != llm.RoleUser || msgs[1].Role != llm.RoleAssistant {
		t.Errorf("unexpected persisted history: %+v", msgs)
	}
	if exec.tracker.CurrentContext() != 120 {
		t.Errorf("CurrentContext = %d, want 120", exec.tracker.CurrentContext())
	}
}

func TestRunTurnSilentToolResult(t *testing.T) {
	tool := &stubTool{name: "search_contacts", out: `[{"name":"John Smith"}]`}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		if call == 0 {
			return []llm.Event{callEvent("c1", "search_contacts", `{"query":"John"}`)}, nil
		}
		return []llm.Event{{Type: llm.EventTextDelta, Text: "Found one contact named John Smith."}}, nil
	}}
	ui := &uiRecorder{}
	exec, _ := newTestExecutor(t, provider, ui, tool)

	if err := exec.RunTurn(context.Background(), "list my contacts named John"); err != nil {
		t.Fatal(err)
	}

	if len(ui.approvals) != 0 {
		t.Errorf("search tool should not require approval, got %d prompts", len(ui.approvals))
	}
	if len(ui.ends) != 1 || ui.ends[0].output != "" {
		t.Errorf("tool result must be consumed silently, got %+v", ui.ends)
	}
	found := false
	for _, m := range ui.markdown {
		if strings.Contains(m, "raw") || strings.Contains(m, `"name"`) {
			t.Errorf("raw tool output leaked to the user: %q", m)
		}
		if strings.Contains(m, "John Smith") {
			found = true
		}
	}
	if !found {
		t.Error("final natural-language response not rendered")
	}
}

func TestRunTurnFailedToolOutputShown(t *testing.T) {
	tool := &stubTool{name: "search_contacts", err: errors.New("connection refused by CRM")}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		if call == 0 {
			return []llm.Event{callEvent("c1", "search_contacts", `{}`)}, nil
		}
		return []llm.Event{{Type: llm.EventTextDelta, Text: "The search failed."}}, nil
	}}
	ui := &uiRecorder{}
	exec, _ := newTestExecutor(t, provider, ui, tool)

	if err := exec.RunTurn(context.Background(), "search"); err != nil {
		t.Fatal(err)
	}
	if len(ui.ends) != 1 || ui.ends[0].success || ui.ends[0].output == "" {
		t.Errorf("failed tool output must be shown, got %+v", ui.ends)
	}
}

func TestRunTurnRejectionEndsTurn(t *testing.T) {
	shell := &stubTool{name: "shell", out: "ok"}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{callEvent("c1", "shell", `{"command":"rm -rf /tmp/x"}`)}, nil
	}}
	ui := &uiRecorder{decide: func(llm.ActionRequest) ApprovalResult { return ApprovalReject }}
	exec, store := newTestExecutor(t, provider, ui, shell)

	if err := exec.RunTurn(context.Background(), "clean up"); err != nil {
		t.Fatal(err)
	}

	if len(ui.approvals) != 1 {
		t.Fatalf("expected 1 approval prompt, got %d", len(ui.approvals))
	}
	if !strings.Contains(ui.approvals[0].Description, "rm -rf /tmp/x") {
		t.Errorf("approval description must contain the literal command: %q", ui.approvals[0].Description)
	}
	if !ui.notified("Command rejected.") {
		t.Errorf("missing rejection message, notifies: %v", ui.notifies)
	}
	if shell.execCount() != 0 {
		t.Error("rejected tool must not execute")
	}
	if provider.callCount() != 1 {
		t.Errorf("stream must not resume after rejection, provider called %d times", provider.callCount())
	}
	msgs, _ := store.Messages(context.Background())
	if len(msgs) != 1 {
		t.Errorf("partial turn must be dropped; persisted %d messages", len(msgs))
	}
}

func TestRunTurnBatchCollectsAllDecisions(t *testing.T) {
	shell := &stubTool{name: "shell", out: "ok"}
	write := &stubTool{name: "write_file", out: "written"}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{
			callEvent("c1", "shell", `{"command":"ls"}`),
			callEvent("c2", "write_file", `{"path":"a.txt","content":"x"}`),
		}, nil
	}}
	ui := &uiRecorder{decide: func(action llm.ActionRequest) ApprovalResult {
		if action.Name == "shell" {
			return ApprovalReject
		}
		return ApprovalApprove
	}}
	exec, _ := newTestExecutor(t, provider, ui, shell, write)

	if err := exec.RunTurn(context.Background(), "do both"); err != nil {
		t.Fatal(err)
	}

	// Decisions are collected for the whole batch even after a rejection.
	if len(ui.approvals) != 2 {
		t.Fatalf("expected prompts for all actions, got %d", len(ui.approvals))
	}
	if shell.execCount() != 0 || write.execCount() != 0 {
		t.Error("a rejection in the batch must block every action")
	}
	if !ui.notified("Command rejected.") {
		t.Error("missing rejection message")
	}
}

func TestRunTurnAutoApprovePropagation(t *testing.T) {
	shell := &stubTool{name: "shell", out: "ok"}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		switch call {
		case 0:
			return []llm.Event{callEvent("c1", "shell", `{"command":"ls"}`)}, nil
		case 1:
			return []llm.Event{callEvent("c2", "shell", `{"command":"pwd"}`)}, nil
		default:
			return []llm.Event{{Type: llm.EventTextDelta, Text: "done"}}, nil
		}
	}}
	ui := &uiRecorder{decide: func(llm.ActionRequest) ApprovalResult { return ApprovalAutoApproveAll }}
	exec, _ := newTestExecutor(t, provider, ui, shell)

	if err := exec.RunTurn(context.Background(), "run both"); err != nil {
		t.Fatal(err)
	}

	if len(ui.approvals) != 1 {
		t.Errorf("later batches must not prompt again, got %d prompts", len(ui.approvals))
	}
	if shell.execCount() != 2 {
		t.Errorf("both commands should execute, got %d", shell.execCount())
	}
	if !exec.AutoApprove() {
		t.Error("auto-approve must stick for the session")
	}
	if !ui.notified("Auto-approved:") {
		t.Errorf("auto-approved actions need a dim notification, notifies: %v", ui.notifies)
	}
}

func TestRunTurnAutoApproveFlag(t *testing.T) {
	shell := &stubTool{name: "shell", out: "ok"}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		if call == 0 {
			return []llm.Event{callEvent("c1", "shell", `{"command":"ls"}`)}, nil
		}
		return []llm.Event{{Type: llm.EventTextDelta, Text: "done"}}, nil
	}}
	ui := &uiRecorder{}
	exec, _ := newTestExecutor(t, provider, ui, shell)
	exec.SetAutoApprove(true)

	if err := exec.RunTurn(context.Background(), "go"); err != nil {
		t.Fatal(err)
	}
	if len(ui.approvals) != 0 {
		t.Errorf("flag-enabled auto-approve must never prompt, got %d", len(ui.approvals))
	}
	if shell.execCount() != 1 {
		t.Errorf("tool should execute, got %d", shell.execCount())
	}
}

func TestRunTurnErrorCategory(t *testing.T) {
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{
			{Type: llm.EventError, Err: errors.New("429 too many requests")},
		}, nil
	}}
	ui := &uiRecorder{}
	exec, _ := newTestExecutor(t, provider, ui, &stubTool{name: "search_contacts"})

	if err := exec.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if len(ui.errorCats) != 1 || ui.errorCats[0] != llm.ErrRateLimit {
		t.Errorf("expected rate_limit category, got %v", ui.errorCats)
	}
}

func TestRunTurnCancellationPersistsNote(t *testing.T) {
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{{Type: llm.EventTextDelta, Text: "partial"}}, context.Canceled
	}}
	ui := &uiRecorder{}
	exec, store := newTestExecutor(t, provider, ui, &stubTool{name: "search_contacts"})

	if err := exec.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}

	msgs, _ := store.Messages(context.Background())
	if len(msgs) == 0 {
		t.Fatal("expected persisted messages")
	}
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleSystem || !strings.Contains(last.Text(), "cancelled by the system") {
		t.Errorf("expected a synthetic cancellation note, got %+v", last)
	}
}

func TestRunTurnUserInterruptPersistsDistinctNote(t *testing.T) {
	ctx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)

	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		cancel(ErrUserInterrupt)
		return []llm.Event{{Type: llm.EventTextDelta, Text: "partial"}}, context.Canceled
	}}
	ui := &uiRecorder{}
	exec, store := newTestExecutor(t, provider, ui, &stubTool{name: "search_contacts"})

	if err := exec.RunTurn(ctx, "hi"); err != nil {
		t.Fatal(err)
	}

	msgs, _ := store.Messages(context.Background())
	if len(msgs) == 0 {
		t.Fatal("expected persisted messages")
	}
	last := msgs[len(msgs)-1]
	if last.Role != llm.RoleSystem || !strings.Contains(last.Text(), "Ctrl+C") {
		t.Errorf("expected the user-interrupt note, got %+v", last)
	}
	if !ui.notified("Interrupted by user.") {
		t.Errorf("missing interrupt notification, notifies: %v", ui.notifies)
	}
}

func TestRunTurnAutoApproveRendersDiffAfterExecution(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.md")
	if err := os.WriteFile(path, []byte("status: open\n"), 0600); err != nil {
		t.Fatal(err)
	}

	write := &stubTool{name: "write_file", out: "written"}
	args := fmt.Sprintf(`{"path":%q,"content":"status: won\n"}`, path)
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		if call == 0 {
			return []llm.Event{callEvent("c1", "write_file", args)}, nil
		}
		return []llm.Event{{Type: llm.EventTextDelta, Text: "done"}}, nil
	}}
	ui := &uiRecorder{}
	exec, _ := newTestExecutor(t, provider, ui, write)
	exec.SetAutoApprove(true)

	if err := exec.RunTurn(context.Background(), "close it out"); err != nil {
		t.Fatal(err)
	}

	if len(ui.ends) != 1 {
		t.Fatalf("expected one tool end, got %d", len(ui.ends))
	}
	d := ui.ends[0].diff
	if d == nil {
		t.Fatal("auto-approved file op must carry its diff to the post-execution renderer")
	}
	if d.Path != path || d.Old != "status: open\n" || d.New != "status: won\n" {
		t.Errorf("unexpected snapshot: %+v", d)
	}
}

func TestRunTurnPromptApprovedFileOpSkipsPostDiff(t *testing.T) {
	write := &stubTool{name: "write_file", out: "written"}
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		if call == 0 {
			return []llm.Event{callEvent("c1", "write_file", `{"path":"a.txt","content":"x"}`)}, nil
		}
		return []llm.Event{{Type: llm.EventTextDelta, Text: "done"}}, nil
	}}
	ui := &uiRecorder{decide: func(llm.ActionRequest) ApprovalResult { return ApprovalApprove }}
	exec, _ := newTestExecutor(t, provider, ui, write)

	if err := exec.RunTurn(context.Background(), "write it"); err != nil {
		t.Fatal(err)
	}

	if len(ui.ends) != 1 {
		t.Fatalf("expected one tool end, got %d", len(ui.ends))
	}
	if ui.ends[0].diff != nil {
		t.Error("prompt already showed the diff; it must not render twice")
	}
}

func TestClearResetsThreadAndCounters(t *testing.T) {
	provider := &scriptProvider{script: func(call int) ([]llm.Event, error) {
		return []llm.Event{{Type: llm.EventTextDelta, Text: "hi"}, usageEvent(10, 5)}, nil
	}}
	ui := &uiRecorder{}
	exec, store := newTestExecutor(t, provider, ui, &stubTool{name: "search_contacts"})

	if err := exec.RunTurn(context.Background(), "hi"); err != nil {
		t.Fatal(err)
	}
	if err := exec.Clear(context.Background()); err != nil {
		t.Fatal(err)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("expected empty thread after clear, got %d", n)
	}
	if exec.tracker.TotalSessionTokens() != 0 {
		t.Error("token counters must reset on clear")
	}
}
