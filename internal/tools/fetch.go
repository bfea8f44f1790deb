package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// FetchURLTool retrieves a URL and returns its body as text. HTML is
// returned raw; the model extracts what it needs.
type FetchURLTool struct {
	client *http.Client
	limits OutputLimits
}

func NewFetchURLTool(limits OutputLimits) *FetchURLTool {
	return &FetchURLTool{
		client: &http.Client{Timeout: 30 * time.Second},
		limits: limits,
	}
}

type FetchURLArgs struct {
	URL string `json:"url"`
}

func (t *FetchURLTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "fetch_url",
		Description: "Fetch a URL over HTTP GET and return the response body as text.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"url": map[string]any{
					"type":        "string",
					"description": "URL to fetch (http or https)",
				},
			},
			"required":             []string{"url"},
			"additionalProperties": false,
		},
	}
}

func (t *FetchURLTool) Preview(args json.RawMessage) string {
	var a FetchURLArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.URL
}

func (t *FetchURLTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a FetchURLArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if !strings.HasPrefix(a.URL, "http://") && !strings.HasPrefix(a.URL, "https://") {
		return "", fmt.Errorf("url must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, "GET", a.URL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", "sdrbot/1.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, t.limits.MaxBytes+1))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("GET %s: status %d", a.URL, resp.StatusCode)
	}

	out := string(body)
	if int64(len(out)) > t.limits.MaxBytes {
		out = out[:t.limits.MaxBytes] + "\n[Body truncated due to size limit]"
	}
	return out, nil
}
