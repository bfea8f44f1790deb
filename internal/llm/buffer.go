package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ToolCallFragment is one streamed piece of a tool call. Providers deliver
// arguments either as accumulating string fragments or as a complete parsed
// object; both modes are observed in the wild and both are supported.
type ToolCallFragment struct {
	Index      *int // stream position, preferred buffer key when present
	ID         string
	Name       string
	ArgsText   string
	ArgsObject map[string]any
	HasObject  bool
}

type bufferEntry struct {
	name      string
	id        string
	object    map[string]any
	hasObject bool
	fragments []string
}

// ToolCallBuffer reassembles complete tool invocations from streamed
// fragments. A call is emitted exactly once, when its name is known and its
// arguments parse as complete JSON; until then fragments accumulate silently
// (partial JSON is expected mid-stream and is never an error). A call ID,
// once emitted, is never emitted again even if further fragments arrive.
type ToolCallBuffer struct {
	entries   map[string]*bufferEntry
	emitted   map[string]bool
	synthetic int

	// Anomalies counts fragments that carried neither a stream index nor a
	// call ID and fell back to a synthetic key.
	Anomalies int
}

func NewToolCallBuffer() *ToolCallBuffer {
	return &ToolCallBuffer{
		entries: make(map[string]*bufferEntry),
		emitted: make(map[string]bool),
	}
}

func (b *ToolCallBuffer) key(f ToolCallFragment) string {
	if f.Index != nil {
		return fmt.Sprintf("idx-%d", *f.Index)
	}
	if f.ID != "" {
		return "id-" + f.ID
	}
	// Last resort: a synthetic counter key. Correlation with later fragments
	// is not possible on this path.
	b.Anomalies++
	b.synthetic++
	return fmt.Sprintf("synthetic-%d", b.synthetic)
}

// Add folds one fragment into the buffer. When the fragment completes a
// call, the assembled ToolCall is returned with ok=true and the buffer slot
// is released.
func (b *ToolCallBuffer) Add(f ToolCallFragment) (ToolCall, bool) {
	key := b.key(f)
	entry := b.entries[key]
	if entry == nil {
		entry = &bufferEntry{}
		b.entries[key] = entry
	}

	if f.Name != "" {
		entry.name = f.Name
	}
	if f.ID != "" {
		entry.id = f.ID
	}

	if f.HasObject {
		// Full-object delivery replaces any accumulated fragment state.
		entry.object = f.ArgsObject
		entry.hasObject = true
		entry.fragments = nil
	} else if f.ArgsText != "" {
		// Suppress immediately-repeated identical fragments; some runtimes
		// redeliver the last fragment verbatim.
		n := len(entry.fragments)
		if n == 0 || entry.fragments[n-1] != f.ArgsText {
			entry.fragments = append(entry.fragments, f.ArgsText)
		}
	}

	if entry.name == "" {
		return ToolCall{}, false
	}

	var args map[string]any
	switch {
	case entry.hasObject:
		args = entry.object
		if args == nil {
			args = map[string]any{}
		}
	case len(entry.fragments) > 0:
		joined := strings.Join(entry.fragments, "")
		var parsed any
		if err := json.Unmarshal([]byte(joined), &parsed); err != nil {
			// Incomplete JSON; wait for more fragments.
			return ToolCall{}, false
		}
		if m, ok := parsed.(map[string]any); ok {
			args = m
		} else {
			// Downstream consumers always expect a mapping.
			args = map[string]any{"value": parsed}
		}
	default:
		return ToolCall{}, false
	}

	delete(b.entries, key)

	if entry.id != "" {
		if b.emitted[entry.id] {
			return ToolCall{}, false
		}
		b.emitted[entry.id] = true
	}

	raw, err := json.Marshal(args)
	if err != nil {
		raw = json.RawMessage("{}")
	}
	return ToolCall{ID: entry.id, Name: entry.name, Arguments: raw}, true
}

// Pending reports how many calls are still accumulating fragments.
func (b *ToolCallBuffer) Pending() int {
	return len(b.entries)
}
