package tools

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestGlobRecursiveMatch(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "a.csv"), "x")
	mustWrite(t, filepath.Join(dir, "sub", "b.csv"), "x")
	mustWrite(t, filepath.Join(dir, "sub", "c.txt"), "x")

	tool := NewGlobTool()
	args, _ := json.Marshal(GlobArgs{Pattern: "**/*.csv", Path: dir})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "a.csv") || !strings.Contains(out, "b.csv") {
		t.Errorf("missing matches: %q", out)
	}
	if strings.Contains(out, "c.txt") {
		t.Errorf("non-matching file included: %q", out)
	}
}

func TestGlobNoMatches(t *testing.T) {
	tool := NewGlobTool()
	args, _ := json.Marshal(GlobArgs{Pattern: "*.xyz", Path: t.TempDir()})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No files match") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestGrepFindsLines(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "log.txt"), "ok\nerror: bad thing\nok\n")

	tool := NewGrepTool(DefaultLimits())
	args, _ := json.Marshal(GrepArgs{Pattern: "^error:", Path: dir})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "log.txt:2:") || !strings.Contains(out, "bad thing") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestGrepInvalidPattern(t *testing.T) {
	tool := NewGrepTool(DefaultLimits())
	args, _ := json.Marshal(GrepArgs{Pattern: "([", Path: t.TempDir()})
	if _, err := tool.Execute(context.Background(), args); err == nil {
		t.Error("expected error for invalid regexp")
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}
