package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"
)

const runloopBaseURL = "https://api.runloop.ai/v1"

// NewRunloop connects to an existing Runloop devbox, or creates one when id
// is empty. Requires RUNLOOP_API_KEY.
func NewRunloop(ctx context.Context, id string) (Executor, error) {
	apiKey := os.Getenv("RUNLOOP_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("runloop sandbox: RUNLOOP_API_KEY is not set")
	}
	client := newAPIClient(runloopBaseURL, map[string]string{
		"Authorization": "Bearer " + apiKey,
	})

	reused := id != ""
	if !reused {
		var created struct {
			ID string `json:"id"`
		}
		err := client.do(ctx, "POST", "/devboxes", map[string]any{
			"name": "sdrbot-session",
		}, &created)
		if err != nil {
			return nil, fmt.Errorf("create runloop devbox: %w", err)
		}
		id = created.ID
	}

	r := &remote{
		name:    "runloop",
		id:      id,
		workDir: "/home/user",
		run: func(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
			var resp struct {
				Stdout     string `json:"stdout"`
				Stderr     string `json:"stderr"`
				ExitStatus int    `json:"exit_status"`
			}
			err := client.do(ctx, "POST", "/devboxes/"+id+"/execute_sync", map[string]any{
				"command": command,
			}, &resp)
			if err != nil {
				return ExecResult{}, err
			}
			return ExecResult{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitStatus}, nil
		},
	}
	if !reused {
		r.cleanup = func(ctx context.Context) error {
			return client.do(ctx, "POST", "/devboxes/"+id+"/shutdown", nil, nil)
		}
	}
	return r, nil
}
