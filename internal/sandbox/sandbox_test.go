package sandbox

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLocalExec(t *testing.T) {
	l, err := NewLocal()
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Exec(context.Background(), "echo hello", 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if strings.TrimSpace(result.Stdout) != "hello" || result.ExitCode != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestLocalExecNonZeroExit(t *testing.T) {
	l, err := NewLocal()
	if err != nil {
		t.Fatal(err)
	}
	result, err := l.Exec(context.Background(), "exit 3", 10*time.Second)
	if err != nil {
		t.Fatal(err)
	}
	if result.ExitCode != 3 {
		t.Errorf("ExitCode = %d, want 3", result.ExitCode)
	}
}

func TestLocalFileRoundTrip(t *testing.T) {
	l := &Local{workDir: t.TempDir()}
	ctx := context.Background()

	if err := l.WriteFile(ctx, "sub/dir/a.txt", []byte("payload")); err != nil {
		t.Fatal(err)
	}
	data, err := l.ReadFile(ctx, filepath.Join("sub", "dir", "a.txt"))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("got %q", data)
	}
}

func TestShellQuote(t *testing.T) {
	cases := map[string]string{
		"plain":      "'plain'",
		"with space": "'with space'",
		"it's":       `'it'\''s'`,
	}
	for in, want := range cases {
		if got := shellQuote(in); got != want {
			t.Errorf("shellQuote(%q) = %s, want %s", in, got, want)
		}
	}
}

func TestNewUnknownBackend(t *testing.T) {
	_, err := New(context.Background(), Options{Backend: "kubernetes"})
	if err == nil || !strings.Contains(err.Error(), "unknown sandbox backend") {
		t.Errorf("expected unknown backend error, got %v", err)
	}
}
