package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"
)

const modalBaseURL = "https://api.modal.com/v1"

// NewModal connects to an existing Modal sandbox, or creates one when id is
// empty. Requires MODAL_TOKEN_ID and MODAL_TOKEN_SECRET.
func NewModal(ctx context.Context, id string) (Executor, error) {
	tokenID := os.Getenv("MODAL_TOKEN_ID")
	tokenSecret := os.Getenv("MODAL_TOKEN_SECRET")
	if tokenID == "" || tokenSecret == "" {
		return nil, fmt.Errorf("modal sandbox: MODAL_TOKEN_ID and MODAL_TOKEN_SECRET are not set")
	}
	client := newAPIClient(modalBaseURL, map[string]string{
		"Modal-Key":    tokenID,
		"Modal-Secret": tokenSecret,
	})

	reused := id != ""
	if !reused {
		var created struct {
			SandboxID string `json:"sandbox_id"`
		}
		err := client.do(ctx, "POST", "/sandboxes", map[string]any{
			"image": "python:3.12-slim",
		}, &created)
		if err != nil {
			return nil, fmt.Errorf("create modal sandbox: %w", err)
		}
		id = created.SandboxID
	}

	r := &remote{
		name:    "modal",
		id:      id,
		workDir: "/root",
		run: func(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
			var resp struct {
				Stdout   string `json:"stdout"`
				Stderr   string `json:"stderr"`
				ExitCode int    `json:"exit_code"`
			}
			body := map[string]any{
				"command": []string{"sh", "-c", command},
			}
			if timeout > 0 {
				body["timeout_secs"] = int(timeout.Seconds())
			}
			err := client.do(ctx, "POST", "/sandboxes/"+id+"/exec", body, &resp)
			if err != nil {
				return ExecResult{}, err
			}
			return ExecResult{Stdout: resp.Stdout, Stderr: resp.Stderr, ExitCode: resp.ExitCode}, nil
		},
	}
	if !reused {
		r.cleanup = func(ctx context.Context) error {
			return client.do(ctx, "POST", "/sandboxes/"+id+"/terminate", nil, nil)
		}
	}
	return r, nil
}
