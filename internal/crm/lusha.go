package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// Lusha wraps the Lusha enrichment and prospecting API. All tools are
// static: Lusha has no user-specific schema.
type Lusha struct {
	rest *restClient
}

func NewLushaFromEnv() (*Lusha, error) {
	key := os.Getenv("LUSHA_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("lusha: LUSHA_API_KEY must be set")
	}
	// Lusha authenticates with a bare api_key header, not a Bearer token.
	rest := newRESTClient("lusha", "https://api.lusha.com", 2)
	rest.authorize = headerAuth("api_key", key)
	return &Lusha{rest: rest}, nil
}

func (l *Lusha) ServiceName() string { return "lusha" }

func (l *Lusha) Reset() {
	l.rest.authorize = headerAuth("api_key", os.Getenv("LUSHA_API_KEY"))
}

// RegisterStaticTools adds the Lusha enrichment and prospecting tools.
func (l *Lusha) RegisterStaticTools(reg *llm.ToolRegistry) {
	reg.Register(&lushaEnrichPersonTool{lusha: l})
	reg.Register(&lushaEnrichCompanyTool{lusha: l})
	reg.Register(&lushaProspectTool{lusha: l})
}

type lushaEnrichPersonTool struct{ lusha *Lusha }

type lushaPersonArgs struct {
	LinkedinURL string `json:"linkedin_url,omitempty"`
	Email       string `json:"email,omitempty"`
}

type lushaPersonResponse struct {
	Data struct {
		FullName       string `json:"fullName"`
		JobTitle       string `json:"jobTitle"`
		EmailAddresses []struct {
			Email string `json:"email"`
		} `json:"emailAddresses"`
		PhoneNumbers []struct {
			InternationalNumber string `json:"internationalNumber"`
		} `json:"phoneNumbers"`
		Company struct {
			Name string `json:"name"`
		} `json:"company"`
	} `json:"data"`
}

func (t *lushaEnrichPersonTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "lusha_enrich_person",
		Description: "Get contact details (email, phone) for a person using Lusha. " +
			"Provide EITHER a LinkedIn URL OR an email address.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"linkedin_url": map[string]any{"type": "string", "description": "The person's LinkedIn profile URL"},
				"email":        map[string]any{"type": "string", "description": "The person's business email"},
			},
			"additionalProperties": false,
		},
	}
}

func (t *lushaEnrichPersonTool) Preview(args json.RawMessage) string {
	var a lushaPersonArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.LinkedinURL != "" {
		return a.LinkedinURL
	}
	return a.Email
}

func (t *lushaEnrichPersonTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a lushaPersonArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	params := url.Values{}
	switch {
	case a.LinkedinURL != "":
		params.Set("linkedinUrl", a.LinkedinURL)
	case a.Email != "":
		params.Set("email", a.Email)
	default:
		return "", fmt.Errorf("must provide either linkedin_url or email")
	}

	var resp lushaPersonResponse
	if err := t.lusha.rest.do(ctx, "GET", "/person/enrich", params, nil, &resp); err != nil {
		return "", err
	}
	p := resp.Data
	if p.FullName == "" && len(p.EmailAddresses) == 0 {
		return "No data found for this person.", nil
	}

	info := []string{fmt.Sprintf("Name: %s", p.FullName)}
	if len(p.EmailAddresses) > 0 {
		var emails []string
		for _, e := range p.EmailAddresses[:min(3, len(p.EmailAddresses))] {
			emails = append(emails, e.Email)
		}
		info = append(info, fmt.Sprintf("Emails: %s", strings.Join(emails, ", ")))
	}
	if len(p.PhoneNumbers) > 0 {
		var phones []string
		for _, ph := range p.PhoneNumbers[:min(3, len(p.PhoneNumbers))] {
			phones = append(phones, ph.InternationalNumber)
		}
		info = append(info, fmt.Sprintf("Phones: %s", strings.Join(phones, ", ")))
	}
	if p.JobTitle != "" && p.Company.Name != "" {
		info = append(info, fmt.Sprintf("Role: %s at %s", p.JobTitle, p.Company.Name))
	}
	return "Lusha Enrichment Result:\n" + strings.Join(info, "\n"), nil
}

type lushaEnrichCompanyTool struct{ lusha *Lusha }

type lushaCompanyArgs struct {
	Domain string `json:"domain"`
}

type lushaCompanyResponse struct {
	Data struct {
		Name                 string `json:"name"`
		IndustryPrimaryGroup string `json:"industryPrimaryGroup"`
		EmployeesSize        string `json:"employeesSize"`
		RevenueRange         string `json:"revenueRange"`
		Description          string `json:"description"`
		Social               struct {
			Linkedin string `json:"linkedin"`
		} `json:"social"`
	} `json:"data"`
}

func (t *lushaEnrichCompanyTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "lusha_enrich_company",
		Description: "Get firmographic data for a company using Lusha.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"domain": map[string]any{
					"type":        "string",
					"description": "Company website domain, e.g. 'openai.com'",
				},
			},
			"required":             []string{"domain"},
			"additionalProperties": false,
		},
	}
}

func (t *lushaEnrichCompanyTool) Preview(args json.RawMessage) string {
	var a lushaCompanyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return a.Domain
}

func (t *lushaEnrichCompanyTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a lushaCompanyArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if a.Domain == "" {
		return "", fmt.Errorf("domain is required")
	}

	var resp lushaCompanyResponse
	params := url.Values{"domain": {a.Domain}}
	if err := t.lusha.rest.do(ctx, "GET", "/company/enrich", params, nil, &resp); err != nil {
		return "", err
	}
	c := resp.Data
	if c.Name == "" {
		return "No data found for this company.", nil
	}

	info := []string{
		fmt.Sprintf("Name: %s", c.Name),
		fmt.Sprintf("Industry: %s", c.IndustryPrimaryGroup),
		fmt.Sprintf("Employees: %s", c.EmployeesSize),
		fmt.Sprintf("Revenue: %s", c.RevenueRange),
		fmt.Sprintf("LinkedIn: %s", c.Social.Linkedin),
	}
	if c.Description != "" {
		desc := c.Description
		if len(desc) > 200 {
			desc = desc[:200] + "..."
		}
		info = append(info, fmt.Sprintf("Description: %s", desc))
	}
	return "Lusha Company Profile:\n" + strings.Join(info, "\n"), nil
}

type lushaProspectTool struct{ lusha *Lusha }

type lushaProspectArgs struct {
	Filters map[string]any `json:"filters"`
	Limit   int            `json:"limit,omitempty"`
}

type lushaProspectResponse struct {
	Data struct {
		Contacts []struct {
			FullName string `json:"fullName"`
			JobTitle string `json:"jobTitle"`
			Company  struct {
				Name string `json:"name"`
			} `json:"company"`
			Social struct {
				Linkedin string `json:"linkedin"`
			} `json:"social"`
		} `json:"contacts"`
	} `json:"data"`
}

func (t *lushaProspectTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "lusha_prospect",
		Description: "Find prospects (people) matching criteria. Filters: jobTitle (list), " +
			"companyName (string), country (string, e.g. \"US\"), industry (string).",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"filters": map[string]any{
					"type":        "object",
					"description": "Search filters, e.g. {\"jobTitle\": [\"CTO\"], \"companyName\": \"Google\"}",
				},
				"limit": map[string]any{
					"type":        "integer",
					"description": "Maximum prospects to return (default: 10)",
				},
			},
			"required":             []string{"filters"},
			"additionalProperties": false,
		},
	}
}

func (t *lushaProspectTool) Preview(args json.RawMessage) string {
	var a lushaProspectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	payload, err := json.Marshal(a.Filters)
	if err != nil {
		return ""
	}
	return truncateLine(string(payload), 80)
}

func (t *lushaProspectTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a lushaProspectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if len(a.Filters) == 0 {
		return "", fmt.Errorf("filters are required")
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}

	var resp lushaProspectResponse
	body := map[string]any{"filters": a.Filters, "limit": limit}
	if err := t.lusha.rest.do(ctx, "POST", "/prospecting/search", nil, body, &resp); err != nil {
		return "", err
	}
	contacts := resp.Data.Contacts
	if len(contacts) == 0 {
		return "No prospects found matching criteria.", nil
	}

	results := make([]map[string]string, 0, len(contacts))
	for _, c := range contacts {
		results = append(results, map[string]string{
			"name":     c.FullName,
			"title":    c.JobTitle,
			"company":  c.Company.Name,
			"linkedin": c.Social.Linkedin,
		})
	}
	payload, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Found %d prospects:\n%s", len(results), payload), nil
}
