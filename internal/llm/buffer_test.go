package llm

import (
	"encoding/json"
	"testing"
)

func intp(i int) *int { return &i }

func TestBufferFullObjectEmitsOnce(t *testing.T) {
	b := NewToolCallBuffer()
	call, ok := b.Add(ToolCallFragment{
		Index:      intp(0),
		ID:         "call_1",
		Name:       "hubspot_search_contacts",
		ArgsObject: map[string]any{"query": "John"},
		HasObject:  true,
	})
	if !ok {
		t.Fatal("expected complete call")
	}
	var args map[string]any
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if args["query"] != "John" {
		t.Fatalf("args = %v", args)
	}
	if b.Pending() != 0 {
		t.Fatalf("pending = %d", b.Pending())
	}
}

func TestBufferStringFragments(t *testing.T) {
	b := NewToolCallBuffer()
	if _, ok := b.Add(ToolCallFragment{Index: intp(0), ID: "call_2", Name: "shell"}); ok {
		t.Fatal("no args yet, should not emit")
	}
	if _, ok := b.Add(ToolCallFragment{Index: intp(0), ArgsText: `{"command":`}); ok {
		t.Fatal("partial JSON should not emit")
	}
	call, ok := b.Add(ToolCallFragment{Index: intp(0), ArgsText: `"ls -la"}`})
	if !ok {
		t.Fatal("expected complete call after final fragment")
	}
	if string(call.Arguments) != `{"command":"ls -la"}` {
		t.Fatalf("arguments = %s", call.Arguments)
	}
}

func TestBufferDuplicateFragmentSuppression(t *testing.T) {
	b := NewToolCallBuffer()
	b.Add(ToolCallFragment{Index: intp(0), Name: "grep"})
	// f1, f1, f2: the immediately repeated f1 must be dropped so the
	// reconstructed string is f1+f2, not f1+f1+f2.
	b.Add(ToolCallFragment{Index: intp(0), ArgsText: `{"pattern":`})
	b.Add(ToolCallFragment{Index: intp(0), ArgsText: `{"pattern":`})
	call, ok := b.Add(ToolCallFragment{Index: intp(0), ArgsText: `"x"}`})
	if !ok {
		t.Fatal("expected completion")
	}
	if string(call.Arguments) != `{"pattern":"x"}` {
		t.Fatalf("arguments = %s", call.Arguments)
	}
}

func TestBufferObjectReplacesFragments(t *testing.T) {
	b := NewToolCallBuffer()
	b.Add(ToolCallFragment{Index: intp(3), Name: "read_file", ArgsText: `{"pa`})
	call, ok := b.Add(ToolCallFragment{
		Index:      intp(3),
		ArgsObject: map[string]any{"path": "main.go"},
		HasObject:  true,
	})
	if !ok {
		t.Fatal("expected completion from full object")
	}
	var args map[string]any
	json.Unmarshal(call.Arguments, &args)
	if args["path"] != "main.go" {
		t.Fatalf("args = %v", args)
	}
}

func TestBufferNonObjectWrapped(t *testing.T) {
	b := NewToolCallBuffer()
	call, ok := b.Add(ToolCallFragment{Index: intp(0), Name: "t", ArgsText: `42`})
	if !ok {
		t.Fatal("expected completion")
	}
	var args map[string]any
	json.Unmarshal(call.Arguments, &args)
	if args["value"] != float64(42) {
		t.Fatalf("args = %v", args)
	}
}

func TestBufferIdempotentByCallID(t *testing.T) {
	b := NewToolCallBuffer()
	_, ok := b.Add(ToolCallFragment{Index: intp(0), ID: "dup", Name: "shell", ArgsText: `{}`})
	if !ok {
		t.Fatal("first delivery should emit")
	}
	// Redelivery under the same id (fresh index slot) must not display twice.
	_, ok = b.Add(ToolCallFragment{Index: intp(1), ID: "dup", Name: "shell", ArgsText: `{}`})
	if ok {
		t.Fatal("redelivered id must not emit a second time")
	}
}

func TestBufferSyntheticKeyFlagged(t *testing.T) {
	b := NewToolCallBuffer()
	b.Add(ToolCallFragment{Name: "mystery", ArgsText: `{`})
	if b.Anomalies != 1 {
		t.Fatalf("anomalies = %d", b.Anomalies)
	}
}
