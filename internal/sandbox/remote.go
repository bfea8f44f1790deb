package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path"
	"time"
)

// remote adapts a backend-specific command runner into the Executor
// interface. File operations go over the same exec channel (cat for reads,
// base64 heredoc for writes) so each REST backend only has to implement
// command execution.
type remote struct {
	name    string
	id      string
	workDir string
	run     func(ctx context.Context, command string, timeout time.Duration) (ExecResult, error)
	cleanup func(ctx context.Context) error // nil when reusing an existing sandbox
}

func (r *remote) Name() string       { return r.name }
func (r *remote) ID() string         { return r.id }
func (r *remote) WorkingDir() string { return r.workDir }

func (r *remote) Exec(ctx context.Context, command string, timeout time.Duration) (ExecResult, error) {
	return r.run(ctx, command, timeout)
}

func (r *remote) ReadFile(ctx context.Context, p string) ([]byte, error) {
	result, err := r.run(ctx, "base64 < "+shellQuote(r.resolve(p)), time.Minute)
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("read %s: %s", p, firstLines(result.Stderr, 3))
	}
	return base64.StdEncoding.DecodeString(trimAllSpace(result.Stdout))
}

func (r *remote) WriteFile(ctx context.Context, p string, data []byte) error {
	full := r.resolve(p)
	encoded := base64.StdEncoding.EncodeToString(data)
	command := fmt.Sprintf("mkdir -p %s && base64 -d > %s <<'SDRBOT_EOF'\n%s\nSDRBOT_EOF",
		shellQuote(path.Dir(full)), shellQuote(full), encoded)
	result, err := r.run(ctx, command, time.Minute)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("write %s: %s", p, firstLines(result.Stderr, 3))
	}
	return nil
}

func (r *remote) Close(ctx context.Context) error {
	if r.cleanup == nil {
		return nil
	}
	return r.cleanup(ctx)
}

func (r *remote) resolve(p string) string {
	if path.IsAbs(p) {
		return p
	}
	return path.Join(r.workDir, p)
}

func trimAllSpace(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '\n', '\r', '\t':
		default:
			out = append(out, s[i])
		}
	}
	return string(out)
}

// apiClient is the minimal JSON-over-HTTP client the sandbox backends share.
type apiClient struct {
	baseURL string
	headers map[string]string
	client  *http.Client
}

func newAPIClient(baseURL string, headers map[string]string) *apiClient {
	return &apiClient{
		baseURL: baseURL,
		headers: headers,
		client:  &http.Client{Timeout: 10 * time.Minute},
	}
}

func (c *apiClient) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s %s: status %d: %s", method, endpoint, resp.StatusCode, firstLines(string(data), 3))
	}
	if out != nil && len(data) > 0 {
		return json.Unmarshal(data, out)
	}
	return nil
}
