package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"
)

// ExecResult is the outcome of one command execution.
type ExecResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// Executor runs shell commands and file operations either locally or in a
// remote sandbox. The shell and file tools route everything through the
// active executor, so a remote backend fully substitutes for local access.
type Executor interface {
	// Name identifies the backend ("local", "modal", "daytona", "runloop").
	Name() string
	// ID is the remote sandbox id, empty for local.
	ID() string
	// WorkingDir is the default directory commands run in.
	WorkingDir() string
	Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	ReadFile(ctx context.Context, path string) ([]byte, error)
	WriteFile(ctx context.Context, path string, data []byte) error
	// Close releases the sandbox. Reused sandboxes (--sandbox-id) are left
	// running.
	Close(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Backend     string // none|local, modal, daytona, runloop
	ID          string // reuse an existing sandbox instead of creating one
	SetupScript string // path to a script run in the sandbox after creation
}

// New creates the executor for the selected backend and runs the optional
// setup script in it.
func New(ctx context.Context, opts Options) (Executor, error) {
	var exec Executor
	var err error

	switch opts.Backend {
	case "", "none", "local":
		exec, err = NewLocal()
	case "modal":
		exec, err = NewModal(ctx, opts.ID)
	case "daytona":
		exec, err = NewDaytona(ctx, opts.ID)
	case "runloop":
		exec, err = NewRunloop(ctx, opts.ID)
	default:
		return nil, fmt.Errorf("unknown sandbox backend: %s (want none, modal, daytona, or runloop)", opts.Backend)
	}
	if err != nil {
		return nil, err
	}

	if opts.SetupScript != "" {
		if err := runSetupScript(ctx, exec, opts.SetupScript); err != nil {
			exec.Close(ctx)
			return nil, err
		}
	}
	return exec, nil
}

func runSetupScript(ctx context.Context, exec Executor, path string) error {
	script, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read setup script: %w", err)
	}
	remote := exec.WorkingDir() + "/.sdrbot-setup.sh"
	if err := exec.WriteFile(ctx, remote, script); err != nil {
		return fmt.Errorf("upload setup script: %w", err)
	}
	result, err := exec.Exec(ctx, "sh "+shellQuote(remote), 5*time.Minute)
	if err != nil {
		return fmt.Errorf("run setup script: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("setup script exited %d: %s", result.ExitCode, firstLines(result.Stderr, 5))
	}
	return nil
}
