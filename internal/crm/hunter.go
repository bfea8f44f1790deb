package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// Hunter wraps the Hunter.io email discovery and verification API. Hunter
// authenticates with an api_key query parameter.
type Hunter struct {
	rest *restClient
}

func NewHunterFromEnv() (*Hunter, error) {
	key := os.Getenv("HUNTER_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("hunter: HUNTER_API_KEY must be set")
	}
	rest := newRESTClient("hunter", "https://api.hunter.io/v2", 2)
	rest.authorize = queryAuth("api_key", key)
	return &Hunter{rest: rest}, nil
}

func (h *Hunter) ServiceName() string { return "hunter" }

func (h *Hunter) Reset() {
	h.rest.authorize = queryAuth("api_key", os.Getenv("HUNTER_API_KEY"))
}

// RegisterStaticTools adds the Hunter discovery and verification tools.
func (h *Hunter) RegisterStaticTools(reg *llm.ToolRegistry) {
	reg.Register(&hunterDomainSearchTool{hunter: h})
	reg.Register(&hunterEmailFinderTool{hunter: h})
	reg.Register(&hunterEmailVerifierTool{hunter: h})
}

type hunterDomainSearchTool struct{ hunter *Hunter }

type hunterDomainSearchArgs struct {
	Domain     string `json:"domain"`
	Limit      int    `json:"limit,omitempty"`
	Department string `json:"department,omitempty"`
}

type hunterDomainSearchResponse struct {
	Data struct {
		Emails []struct {
			Value     string `json:"value"`
			Type      string `json:"type"`
			FirstName string `json:"first_name"`
			LastName  string `json:"last_name"`
			Position  string `json:"position"`
		} `json:"emails"`
	} `json:"data"`
}

func (t *hunterDomainSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hunter_domain_search",
		Description: "Search for email addresses found on the internet for a given domain.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "The domain name to search, e.g. 'stripe.com'",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum number of emails to return (default: 10)",
				},
				"department": map[string]any{
					"type": "string",
					"description": "Filter by department: executive, it, sales, marketing, " +
						"support, communication, finance, hr, legal",
				},
			},
			"required":             []string{"domain"},
			"additionalProperties": false,
		},
	}
}

func (t *hunterDomainSearchTool) Preview(args json.RawMessage) string {
	var a hunterDomainSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Domain
}

func (t *hunterDomainSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hunterDomainSearchArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Domain == "" {
		return "", fmt.Errorf("domain is required")
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}

	params := url.Values{
		"domain": {a.Domain},
		"limit":  {strconv.Itoa(limit)},
	}
	if a.Department != "" {
		params.Set("department", a.Department)
	}

	var resp hunterDomainSearchResponse
	if err := t.hunter.rest.do(ctx, "GET", "/domain-search", params, nil, &resp); err != nil {
		return "", err
	}
	emails := resp.Data.Emails
	if len(emails) == 0 {
		return fmt.Sprintf("No emails found for %s.", a.Domain), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Domain Search Results for %s (%d found):\n", a.Domain, len(emails))
	for _, e := range emails {
		name := strings.TrimSpace(e.FirstName + " " + e.LastName)
		if name == "" {
			name = "Unknown"
		}
		position := e.Position
		if position == "" {
			position = "N/A"
		}
		fmt.Fprintf(&b, "- %s (%s) - %s - %s\n", e.Value, e.Type, name, position)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type hunterEmailFinderTool struct{ hunter *Hunter }

type hunterEmailFinderArgs struct {
	Domain    string `json:"domain"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type hunterEmailFinderResponse struct {
	Data struct {
		Email string `json:"email"`
		Score int    `json:"score"`
	} `json:"data"`
}

func (t *hunterEmailFinderTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hunter_email_finder",
		Description: "Find the email address of a person by their name and company domain.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain":     map[string]any{"type": "string", "description": "The company domain, e.g. 'openai.com'"},
				"first_name": map[string]any{"type": "string", "description": "The person's first name"},
				"last_name":  map[string]any{"type": "string", "description": "The person's last name"},
			},
			"required":             []string{"domain", "first_name", "last_name"},
			"additionalProperties": false,
		},
	}
}

func (t *hunterEmailFinderTool) Preview(args json.RawMessage) string {
	var a hunterEmailFinderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s %s @ %s", a.FirstName, a.LastName, a.Domain)
}

func (t *hunterEmailFinderTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hunterEmailFinderArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Domain == "" || a.FirstName == "" || a.LastName == "" {
		return "", fmt.Errorf("domain, first_name, and last_name are required")
	}

	params := url.Values{
		"domain":     {a.Domain},
		"first_name": {a.FirstName},
		"last_name":  {a.LastName},
	}
	var resp hunterEmailFinderResponse
	if err := t.hunter.rest.do(ctx, "GET", "/email-finder", params, nil, &resp); err != nil {
		return "", err
	}
	if resp.Data.Email == "" {
		return "Email not found.", nil
	}
	return fmt.Sprintf("Found email: %s (Confidence: %d%%)", resp.Data.Email, resp.Data.Score), nil
}

type hunterEmailVerifierTool struct{ hunter *Hunter }

type hunterEmailVerifierArgs struct {
	Email string `json:"email"`
}

type hunterEmailVerifierResponse struct {
	Data struct {
		Status string `json:"status"`
		Score  int    `json:"score"`
	} `json:"data"`
}

func (t *hunterEmailVerifierTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "hunter_email_verifier",
		Description: "Verify the deliverability of an email address. Returns status: " +
			"valid, invalid, accept_all, webmail, disposable, or unknown.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"email": map[string]any{"type": "string", "description": "The email address to verify"},
			},
			"required":             []string{"email"},
			"additionalProperties": false,
		},
	}
}

func (t *hunterEmailVerifierTool) Preview(args json.RawMessage) string {
	var a hunterEmailVerifierArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Email
}

func (t *hunterEmailVerifierTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hunterEmailVerifierArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Email == "" {
		return "", fmt.Errorf("email is required")
	}

	var resp hunterEmailVerifierResponse
	params := url.Values{"email": {a.Email}}
	if err := t.hunter.rest.do(ctx, "GET", "/email-verifier", params, nil, &resp); err != nil {
		return "", err
	}
	if resp.Data.Status == "" {
		return "No verification data returned.", nil
	}
	return fmt.Sprintf("Verification Result for %s:\nStatus: %s\nScore: %d%%",
		a.Email, resp.Data.Status, resp.Data.Score), nil
}
