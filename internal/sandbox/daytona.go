package sandbox

import (
	"context"
	"fmt"
	"os"
	"time"
)

const daytonaBaseURL = "https://app.daytona.io/api"

// NewDaytona connects to an existing Daytona sandbox, or creates one when id
// is empty. Requires DAYTONA_API_KEY.
func NewDaytona(ctx context.Context, id string) (Executor, error) {
	apiKey := os.Getenv("DAYTONA_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("daytona sandbox: DAYTONA_API_KEY is not set")
	}
	client := newAPIClient(daytonaBaseURL, map[string]string{
		"Authorization": "Bearer " + apiKey,
	})

	reused := id != ""
	if !reused {
		var created struct {
			ID string `json:"id"`
		}
		if err := client.do(ctx, "POST", "/sandbox", map[string]any{}, &created); err != nil {
			return nil, fmt.Errorf("create daytona sandbox: %w", err)
		}
		id = created.ID
	}

	r := &remote{
		name:    "daytona",
		id:      id,
		workDir: "/home/daytona",
		run: func(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
			var resp struct {
				ExitCode int    `json:"exitCode"`
				Result   string `json:"result"`
			}
			body := map[string]any{"command": command}
			if timeout > 0 {
				body["timeout"] = int(timeout.Seconds())
			}
			err := client.do(ctx, "POST", "/toolbox/"+id+"/toolbox/process/execute", body, &resp)
			if err != nil {
				return ExecResult{}, err
			}
			// Daytona merges stdout and stderr into one result string.
			out := ExecResult{Stdout: resp.Result, ExitCode: resp.ExitCode}
			if resp.ExitCode != 0 {
				out.Stderr = resp.Result
			}
			return out, nil
		},
	}
	if !reused {
		r.cleanup = func(ctx context.Context) error {
			return client.do(ctx, "DELETE", "/sandbox/"+id, nil, nil)
		}
	}
	return r, nil
}
