package tools

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/NForce-ai/sdrbot/internal/sandbox"
)

func newLocalExec(t *testing.T) sandbox.Executor {
	t.Helper()
	exec, err := sandbox.New(context.Background(), sandbox.Options{Backend: "local"})
	if err != nil {
		t.Fatal(err)
	}
	return exec
}

func writeTestFile(t *testing.T, exec sandbox.Executor, path, content string) {
	t.Helper()
	if err := exec.WriteFile(context.Background(), path, []byte(content)); err != nil {
		t.Fatal(err)
	}
}

func TestEditFileUniqueReplacement(t *testing.T) {
	exec := newLocalExec(t)
	path := t.TempDir() + "/notes.txt"
	writeTestFile(t, exec, path, "lead: Acme\nstatus: open\n")

	tool := NewEditFileTool(exec)
	args, _ := json.Marshal(EditFileArgs{Path: path, OldString: "status: open", NewString: "status: won"})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "1 replacement") {
		t.Errorf("unexpected output: %q", out)
	}

	data, _ := exec.ReadFile(context.Background(), path)
	if string(data) != "lead: Acme\nstatus: won\n" {
		t.Errorf("file content: %q", data)
	}
}

func TestEditFileAmbiguousMatch(t *testing.T) {
	exec := newLocalExec(t)
	path := t.TempDir() + "/notes.txt"
	writeTestFile(t, exec, path, "x\nx\n")

	tool := NewEditFileTool(exec)
	args, _ := json.Marshal(EditFileArgs{Path: path, OldString: "x", NewString: "y"})
	if _, err := tool.Execute(context.Background(), args); err == nil || !strings.Contains(err.Error(), "matches 2 times") {
		t.Errorf("expected ambiguity error, got %v", err)
	}

	args, _ = json.Marshal(EditFileArgs{Path: path, OldString: "x", NewString: "y", ReplaceAll: true})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "2 replacements") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestEditFileNotFound(t *testing.T) {
	exec := newLocalExec(t)
	path := t.TempDir() + "/notes.txt"
	writeTestFile(t, exec, path, "hello\n")

	tool := NewEditFileTool(exec)
	args, _ := json.Marshal(EditFileArgs{Path: path, OldString: "absent", NewString: "y"})
	if _, err := tool.Execute(context.Background(), args); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestWriteFileReportsCreateVsOverwrite(t *testing.T) {
	exec := newLocalExec(t)
	path := t.TempDir() + "/out.txt"
	tool := NewWriteFileTool(exec)

	args, _ := json.Marshal(WriteFileArgs{Path: path, Content: "a\nb\n"})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Created") || !strings.Contains(out, "2 lines") {
		t.Errorf("unexpected output: %q", out)
	}

	out, err = tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "Overwrote") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestShellToolFailureIsError(t *testing.T) {
	exec := newLocalExec(t)
	tool := NewShellTool(exec, DefaultLimits())

	args, _ := json.Marshal(ShellArgs{Command: "echo oops >&2; exit 2"})
	_, err := tool.Execute(context.Background(), args)
	if err == nil {
		t.Fatal("expected error for non-zero exit")
	}
	if !strings.Contains(err.Error(), "exited 2") || !strings.Contains(err.Error(), "oops") {
		t.Errorf("error should carry exit code and stderr: %v", err)
	}
}

func TestShellToolSuccess(t *testing.T) {
	exec := newLocalExec(t)
	tool := NewShellTool(exec, DefaultLimits())

	args, _ := json.Marshal(ShellArgs{Command: "echo hi"})
	out, err := tool.Execute(context.Background(), args)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hi") || !strings.Contains(out, "exit_code: 0") {
		t.Errorf("unexpected output: %q", out)
	}
}
