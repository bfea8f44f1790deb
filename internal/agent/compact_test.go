package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/NForce-ai/sdrbot/internal/llm"
	"github.com/NForce-ai/sdrbot/internal/session"
)

type fakeCompleter struct {
	summary string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (string, error) {
	if len(req.Messages) > 0 {
		f.prompts = append(f.prompts, req.Messages[0].Text())
	}
	return f.summary, f.err
}

func seedHistory(t *testing.T, store session.Store, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		role := llm.UserText("message")
		if i%2 == 1 {
			role = llm.AssistantText("reply")
		}
		if err := store.Append(context.Background(), role); err != nil {
			t.Fatal(err)
		}
	}
}

func TestCompactorBelowThresholdNoop(t *testing.T) {
	store := session.NewMemoryStore()
	tracker := NewTokenTracker()
	tracker.Record(100, 10)
	seedHistory(t, store, 10)

	c := NewCompactor(&fakeCompleter{summary: "s"}, store, tracker, "claude-sonnet-4-5", 1000)
	out, compacted, err := c.MaybeCompact(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if compacted || out != "hello" {
		t.Errorf("expected untouched input, got compacted=%v out=%q", compacted, out)
	}
}

func TestCompactorSkipsShortHistory(t *testing.T) {
	store := session.NewMemoryStore()
	tracker := NewTokenTracker()
	tracker.Record(5000, 100)
	seedHistory(t, store, 6)

	c := NewCompactor(&fakeCompleter{summary: "s"}, store, tracker, "claude-sonnet-4-5", 1000)
	out, compacted, err := c.MaybeCompact(context.Background(), "hello")
	if err != nil {
		t.Fatal(err)
	}
	if compacted {
		t.Error("6 messages should not be compacted")
	}
	if out != "hello" {
		t.Errorf("input changed: %q", out)
	}
	if n, _ := store.Count(context.Background()); n != 6 {
		t.Errorf("history touched: %d messages", n)
	}
	if tracker.CurrentContext() != 5100 {
		t.Errorf("counters changed: %d", tracker.CurrentContext())
	}
}

func TestCompactorReplacesStoreAndPreservesInput(t *testing.T) {
	store := session.NewMemoryStore()
	tracker := NewTokenTracker()
	tracker.Record(5000, 100)
	seedHistory(t, store, 12)

	completer := &fakeCompleter{summary: "Worked on Acme lead list; 3 contacts synced."}
	c := NewCompactor(completer, store, tracker, "claude-sonnet-4-5", 1000)

	userInput := "now export those contacts to HubSpot"
	out, compacted, err := c.MaybeCompact(context.Background(), userInput)
	if err != nil {
		t.Fatal(err)
	}
	if !compacted {
		t.Fatal("expected compaction")
	}
	if !strings.HasPrefix(out, "[Context from previous conversation]") {
		t.Errorf("missing context prefix: %q", out)
	}
	if !strings.Contains(out, completer.summary) {
		t.Errorf("summary missing from output: %q", out)
	}
	if !strings.Contains(out, userInput) {
		t.Errorf("literal user input lost: %q", out)
	}
	if n, _ := store.Count(context.Background()); n != 0 {
		t.Errorf("store not emptied: %d messages", n)
	}
	if tracker.CurrentContext() != 0 || tracker.TotalSessionTokens() != 0 {
		t.Error("token counters not reset")
	}
}

func TestCompactorSummaryFailurePlaceholder(t *testing.T) {
	store := session.NewMemoryStore()
	tracker := NewTokenTracker()
	tracker.Record(5000, 100)
	seedHistory(t, store, 12)

	c := NewCompactor(&fakeCompleter{err: errors.New("boom")}, store, tracker, "claude-sonnet-4-5", 1000)
	out, compacted, err := c.MaybeCompact(context.Background(), "continue")
	if err != nil {
		t.Fatal(err)
	}
	if !compacted {
		t.Fatal("expected compaction despite summary failure")
	}
	if !strings.Contains(out, "[Summary generation failed") {
		t.Errorf("missing placeholder: %q", out)
	}
	if !strings.Contains(out, "continue") {
		t.Errorf("literal user input lost: %q", out)
	}
}

func TestFormatHistoryTruncation(t *testing.T) {
	long := strings.Repeat("x", 600)
	msgs := []llm.Message{llm.UserText(long), llm.AssistantText("short")}
	got := formatHistory(msgs)

	lines := strings.Split(strings.TrimRight(got, "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasPrefix(lines[0], "user: ") || !strings.HasSuffix(lines[0], "...") {
		t.Errorf("long line not truncated: %q", lines[0][:50])
	}
	if len(lines[0]) != len("user: ")+500+3 {
		t.Errorf("truncated to %d chars", len(lines[0]))
	}
	if lines[1] != "assistant: short" {
		t.Errorf("short line altered: %q", lines[1])
	}
}

func TestFormatHistoryCapsAtFifty(t *testing.T) {
	var msgs []llm.Message
	for i := 0; i < 60; i++ {
		msgs = append(msgs, llm.UserText("m"))
	}
	got := formatHistory(msgs)
	if n := strings.Count(got, "\n"); n != 50 {
		t.Errorf("expected 50 lines, got %d", n)
	}
}
