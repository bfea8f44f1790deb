package sandbox

import (
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Local runs commands directly on the host through the user's shell.
type Local struct {
	workDir string
}

func NewLocal() (*Local, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	return &Local{workDir: wd}, nil
}

func (l *Local) Name() string       { return "local" }
func (l *Local) ID() string         { return "" }
func (l *Local) WorkingDir() string { return l.workDir }

func (l *Local) Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	execCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(execCtx, detectShell(), "-c", command)
	cmd.Dir = l.workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}

	if execCtx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		return result, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		return result, err
	}
	return result, nil
}

func (l *Local) ReadFile(ctx context.Context, path string) ([]byte, error) {
	return os.ReadFile(l.resolve(path))
}

func (l *Local) WriteFile(ctx context.Context, path string, data []byte) error {
	full := l.resolve(path)
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	return os.WriteFile(full, data, 0644)
}

func (l *Local) Close(ctx context.Context) error { return nil }

func (l *Local) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.workDir, path)
}

func detectShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "bash"
}

// shellQuote single-quotes a string for safe interpolation into a shell
// command.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func firstLines(s string, n int) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	return strings.Join(lines, "\n")
}
