package session

import (
	"context"
	"os"
	"testing"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dir := t.TempDir()
	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(old) })

	store, err := NewSQLiteStore("default", "anthropic", "claude-sonnet-4-5")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestSQLiteAppendAndMessages(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx,
		llm.UserText("find leads at Acme"),
		llm.AssistantText("Searching now."),
	); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := store.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != llm.RoleUser || msgs[0].Text() != "find leads at Acme" {
		t.Errorf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msgs[1].Role)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 2 {
		t.Errorf("expected count 2, got %d", count)
	}
}

func TestSQLiteToolPartsRoundTrip(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	assistant := llm.Message{
		Role: llm.RoleAssistant,
		Parts: []llm.Part{
			{Type: llm.PartText, Text: "Running the search."},
			{Type: llm.PartToolCall, ToolCall: &llm.ToolCall{
				ID:        "call_1",
				Name:      "search_leads",
				Arguments: []byte(`{"company":"Acme"}`),
			}},
		},
	}
	if err := store.Append(ctx, assistant, llm.ToolResultMessage("call_1", "search_leads", "3 results")); err != nil {
		t.Fatalf("Append: %v", err)
	}

	msgs, err := store.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	call := msgs[0].Parts[1].ToolCall
	if call == nil || call.Name != "search_leads" || string(call.Arguments) != `{"company":"Acme"}` {
		t.Errorf("tool call did not survive round trip: %+v", msgs[0].Parts[1])
	}
	result := msgs[1].Parts[0].ToolResult
	if result == nil || result.Content != "3 results" || result.ID != "call_1" {
		t.Errorf("tool result did not survive round trip: %+v", msgs[1].Parts[0])
	}
}

func TestSQLiteReplace(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, llm.UserText("one"), llm.AssistantText("two"), llm.UserText("three")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	summary := []llm.Message{llm.UserText("[Context from previous conversation]\n\nsummary here")}
	if err := store.Replace(ctx, summary); err != nil {
		t.Fatalf("Replace: %v", err)
	}

	msgs, err := store.Messages(ctx)
	if err != nil {
		t.Fatalf("Messages: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message after replace, got %d", len(msgs))
	}
	if msgs[0].Text() != summary[0].Text() {
		t.Errorf("unexpected replaced content: %q", msgs[0].Text())
	}
}

func TestSQLiteNewThread(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.Append(ctx, llm.UserText("hello")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	first := store.ThreadID()

	if err := store.NewThread(ctx); err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	if store.ThreadID() == first {
		t.Error("expected a fresh thread id")
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Errorf("new thread should start empty, got %d messages", count)
	}
}

func TestMemoryStoreReplaceAndClear(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if err := store.Append(ctx, llm.UserText("a"), llm.AssistantText("b")); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := store.Replace(ctx, []llm.Message{llm.UserText("only")}); err != nil {
		t.Fatalf("Replace: %v", err)
	}
	msgs, _ := store.Messages(ctx)
	if len(msgs) != 1 || msgs[0].Text() != "only" {
		t.Fatalf("unexpected messages after replace: %+v", msgs)
	}

	first := store.ThreadID()
	if err := store.NewThread(ctx); err != nil {
		t.Fatalf("NewThread: %v", err)
	}
	if store.ThreadID() == first {
		t.Error("expected a fresh thread id")
	}
	if n, _ := store.Count(ctx); n != 0 {
		t.Errorf("expected empty store, got %d", n)
	}
}
