package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const tavilyEndpoint = "https://api.tavily.com/search"

// WebSearchTool performs web searches through the Tavily API.
type WebSearchTool struct {
	apiKey  string
	client  *http.Client
	limiter *rate.Limiter
}

func NewWebSearchTool(apiKey string) *WebSearchTool {
	return &WebSearchTool{
		apiKey: apiKey,
		client: &http.Client{Timeout: 30 * time.Second},
		// Tavily's free tier allows roughly 1 request/second.
		limiter: rate.NewLimiter(rate.Limit(1), 2),
	}
}

type WebSearchArgs struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
}

type tavilyResponse struct {
	Answer  string `json:"answer"`
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

func (t *WebSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "web_search",
		Description: "Search the web. Returns a short answer plus result titles, URLs, and snippets.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
				"max_results": map[string]any{
					"type":        "integer",
					"description": "Maximum results to return (default: 5)",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *WebSearchTool) Preview(args json.RawMessage) string {
	var a WebSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateOneLine(a.Query, 60)
}

func (t *WebSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a WebSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Query == "" {
		return "", fmt.Errorf("query is required")
	}
	if t.apiKey == "" {
		return "", fmt.Errorf("web search not configured (set TAVILY_API_KEY)")
	}
	maxResults := a.MaxResults
	if maxResults <= 0 {
		maxResults = 5
	}

	if err := t.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(map[string]any{
		"query":          a.Query,
		"max_results":    maxResults,
		"include_answer": true,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", tavilyEndpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp, err := t.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("tavily search: status %d: %s", resp.StatusCode, truncateOneLine(string(body), 200))
	}

	var parsed tavilyResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("tavily search: decode response: %w", err)
	}
	return formatSearchResults(parsed), nil
}

func formatSearchResults(resp tavilyResponse) string {
	var b strings.Builder
	if resp.Answer != "" {
		fmt.Fprintf(&b, "Answer: %s\n", resp.Answer)
	}
	if len(resp.Results) > 0 {
		b.WriteString("Search Results:\n")
		for i, r := range resp.Results {
			content := r.Content
			if len(content) > 200 {
				content = content[:200] + "..."
			}
			fmt.Fprintf(&b, "  %d. Title: %s\n     URL: %s\n     Content: %s\n", i+1, r.Title, r.URL, content)
		}
	}
	if b.Len() == 0 {
		return "No relevant information found."
	}
	return strings.TrimRight(b.String(), "\n")
}
