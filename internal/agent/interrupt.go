package agent

import (
	"os"
	"strings"
	"sync"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// FileDiff is a pre-execution snapshot of what a write_file or edit_file
// action will change. The approval prompt renders it before asking; for
// auto-approved actions it is held until the tool succeeds and rendered
// after execution instead, so the user sees the change exactly once.
type FileDiff struct {
	Path string
	Old  string
	New  string
}

// FileOpChange computes the prospective change for a file-operation action.
// Best effort: when the target cannot be read (missing file, remote sandbox)
// the old side degrades to empty for writes and to the edit snippet for
// edits. Returns nil for non-file actions.
func FileOpChange(action llm.ActionRequest) *FileDiff {
	path, _ := action.Args["path"].(string)
	if path == "" {
		return nil
	}

	switch action.Name {
	case "write_file":
		content, _ := action.Args["content"].(string)
		old := ""
		if data, err := os.ReadFile(path); err == nil {
			old = string(data)
		}
		return &FileDiff{Path: path, Old: old, New: content}

	case "edit_file":
		oldStr, _ := action.Args["old_string"].(string)
		newStr, _ := action.Args["new_string"].(string)
		if data, err := os.ReadFile(path); err == nil && strings.Contains(string(data), oldStr) {
			n := 1
			if all, _ := action.Args["replace_all"].(bool); all {
				n = -1
			}
			return &FileDiff{Path: path, Old: string(data), New: strings.Replace(string(data), oldStr, newStr, n)}
		}
		return &FileDiff{Path: path, Old: oldStr, New: newStr}
	}
	return nil
}

// FileOpTracker holds the snapshots of file operations that were approved
// without the prompt showing their diff. The post-execution renderer takes
// them; prompt-approved operations are never recorded here, which is what
// keeps the diff from appearing twice.
type FileOpTracker struct {
	mu      sync.Mutex
	pending map[string]*FileDiff
}

func NewFileOpTracker() *FileOpTracker {
	return &FileOpTracker{pending: make(map[string]*FileDiff)}
}

func (t *FileOpTracker) RecordPending(callID string, d *FileDiff) {
	if d == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[callID] = d
}

// TakePending returns and clears the snapshot for a call, or nil.
func (t *FileOpTracker) TakePending(callID string) *FileDiff {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.pending[callID]
	delete(t.pending, callID)
	return d
}
