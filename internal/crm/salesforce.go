package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

const (
	sfAPIVersion = "v62.0"
	// Salesforce access tokens last about two hours; refresh this far
	// ahead of expiry so an in-flight tool call never hits a 401.
	sfTokenExpiryBuffer = 5 * time.Minute
)

// Salesforce wraps the Salesforce REST API. Tokens are obtained with the
// OAuth refresh-token grant (SF_REFRESH_TOKEN) or, when only user
// credentials are configured, the password grant.
type Salesforce struct {
	rest     *restClient
	loginURL string
	clientID string
	secret   string

	mu          sync.Mutex
	accessToken string
	instanceURL string
	expiresAt   time.Time
}

// NewSalesforceFromEnv builds a client from SF_* environment variables.
func NewSalesforceFromEnv() (*Salesforce, error) {
	clientID := os.Getenv("SF_CLIENT_ID")
	secret := os.Getenv("SF_CLIENT_SECRET")
	if clientID == "" || secret == "" {
		return nil, fmt.Errorf("salesforce: SF_CLIENT_ID and SF_CLIENT_SECRET must be set")
	}
	loginURL := os.Getenv("SF_LOGIN_URL")
	if loginURL == "" {
		loginURL = "https://login.salesforce.com"
	}
	s := &Salesforce{
		rest:     newRESTClient("salesforce", "", 5),
		loginURL: loginURL,
		clientID: clientID,
		secret:   secret,
	}
	s.rest.authorize = func(req *http.Request, params url.Values) {
		req.Header.Set("Authorization", "Bearer "+s.currentToken())
	}
	return s, nil
}

func (s *Salesforce) ServiceName() string { return "salesforce" }

// Reset drops the cached token so the next call re-authenticates. Used
// after credentials change (env reload in /setup).
func (s *Salesforce) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = ""
	s.instanceURL = ""
	s.expiresAt = time.Time{}
}

func (s *Salesforce) currentToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accessToken
}

type sfTokenResponse struct {
	AccessToken string `json:"access_token"`
	InstanceURL string `json:"instance_url"`
	Error       string `json:"error"`
	ErrorDesc   string `json:"error_description"`
}

// ensureToken authenticates (or proactively refreshes) before a request.
func (s *Salesforce) ensureToken(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.accessToken != "" && time.Now().Before(s.expiresAt.Add(-sfTokenExpiryBuffer)) {
		return nil
	}

	form := url.Values{
		"client_id":     {s.clientID},
		"client_secret": {s.secret},
	}
	if refresh := os.Getenv("SF_REFRESH_TOKEN"); refresh != "" {
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", refresh)
	} else if user := os.Getenv("SF_USERNAME"); user != "" {
		form.Set("grant_type", "password")
		form.Set("username", user)
		form.Set("password", os.Getenv("SF_PASSWORD")+os.Getenv("SF_SECURITY_TOKEN"))
	} else {
		return fmt.Errorf("salesforce: set SF_REFRESH_TOKEN or SF_USERNAME/SF_PASSWORD")
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.loginURL+"/services/oauth2/token", strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.rest.client.Do(req)
	if err != nil {
		return fmt.Errorf("salesforce: token request: %w", err)
	}
	defer resp.Body.Close()

	var token sfTokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return fmt.Errorf("salesforce: decode token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("salesforce: authentication failed: %s %s", token.Error, token.ErrorDesc)
	}

	s.accessToken = token.AccessToken
	s.instanceURL = strings.TrimRight(token.InstanceURL, "/")
	s.expiresAt = time.Now().Add(2 * time.Hour)
	s.rest.baseURL = s.instanceURL + "/services/data/" + sfAPIVersion
	return nil
}

func (s *Salesforce) do(ctx context.Context, method, endpoint string, params url.Values, body, out any) error {
	if err := s.ensureToken(ctx); err != nil {
		return err
	}
	return s.rest.do(ctx, method, endpoint, params, body, out)
}

type sfQueryResponse struct {
	TotalSize int              `json:"totalSize"`
	Records   []map[string]any `json:"records"`
}

// Query runs a SOQL query and returns cleaned records.
func (s *Salesforce) Query(ctx context.Context, soql string) (int, []map[string]any, error) {
	var resp sfQueryResponse
	params := url.Values{"q": {soql}}
	if err := s.do(ctx, "GET", "/query", params, nil, &resp); err != nil {
		return 0, nil, err
	}
	for _, rec := range resp.Records {
		// The attributes block repeats the object type per record and
		// wastes tokens.
		delete(rec, "attributes")
	}
	return resp.TotalSize, resp.Records, nil
}

type sfSearchResponse struct {
	SearchRecords []map[string]any `json:"searchRecords"`
}

// Search runs a SOSL full-text search.
func (s *Salesforce) Search(ctx context.Context, sosl string) ([]map[string]any, error) {
	var resp sfSearchResponse
	params := url.Values{"q": {sosl}}
	if err := s.do(ctx, "GET", "/search", params, nil, &resp); err != nil {
		return nil, err
	}
	return resp.SearchRecords, nil
}

// RecordAPI implementation for synced object tools.

func (s *Salesforce) SearchRecords(ctx context.Context, object, query string, limit int) (string, error) {
	sosl := fmt.Sprintf("FIND {%s} IN ALL FIELDS RETURNING %s(Id, Name) LIMIT %d",
		escapeSOSL(query), object, limit)
	records, err := s.Search(ctx, sosl)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No records found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d records:\n", len(records))
	for _, rec := range records {
		name, _ := rec["Name"].(string)
		id, _ := rec["Id"].(string)
		if name == "" {
			name = id
		}
		fmt.Fprintf(&b, "- %s (ID: %s)\n", name, id)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (s *Salesforce) GetRecord(ctx context.Context, object, id string) (string, error) {
	var record map[string]any
	if err := s.do(ctx, "GET", fmt.Sprintf("/sobjects/%s/%s", object, id), nil, nil, &record); err != nil {
		return "", err
	}
	delete(record, "attributes")
	return formatRecordJSON(fmt.Sprintf("%s %s", object, id), record)
}

type sfCreateResponse struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
}

func (s *Salesforce) CreateRecord(ctx context.Context, object string, fields map[string]any) (string, error) {
	var resp sfCreateResponse
	if err := s.do(ctx, "POST", "/sobjects/"+object, nil, fields, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created %s record with ID: %s", object, resp.ID), nil
}

func (s *Salesforce) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (string, error) {
	if err := s.do(ctx, "PATCH", fmt.Sprintf("/sobjects/%s/%s", object, id), nil, fields, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %s record %s", object, id), nil
}

func (s *Salesforce) DeleteRecord(ctx context.Context, object, id string) (string, error) {
	if err := s.do(ctx, "DELETE", fmt.Sprintf("/sobjects/%s/%s", object, id), nil, nil, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s record %s", object, id), nil
}

// Core standard objects synced by default.
var sfSyncObjects = []string{"Lead", "Contact", "Account", "Opportunity"}

type sfDescribeResponse struct {
	Label  string `json:"label"`
	Fields []struct {
		Name       string `json:"name"`
		Type       string `json:"type"`
		Label      string `json:"label"`
		Updateable bool   `json:"updateable"`
	} `json:"fields"`
}

// DescribeObjects fetches the live schema for the standard sales objects.
func (s *Salesforce) DescribeObjects(ctx context.Context) ([]ObjectSchema, error) {
	var schemas []ObjectSchema
	for _, object := range sfSyncObjects {
		var desc sfDescribeResponse
		if err := s.do(ctx, "GET", fmt.Sprintf("/sobjects/%s/describe", object), nil, nil, &desc); err != nil {
			return nil, fmt.Errorf("describe %s: %w", object, err)
		}
		schema := ObjectSchema{
			Service:    "salesforce",
			Name:       object,
			Label:      desc.Label,
			Operations: []string{"search", "get", "create", "update", "delete"},
		}
		for _, f := range desc.Fields {
			if !f.Updateable {
				continue
			}
			schema.Fields = append(schema.Fields, FieldSchema{Name: f.Name, Type: f.Type, Label: f.Label})
			if len(schema.Fields) >= 40 {
				break
			}
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// RegisterStaticTools adds the schema-independent Salesforce tools.
func (s *Salesforce) RegisterStaticTools(reg *llm.ToolRegistry) {
	reg.Register(&soqlTool{sf: s})
	reg.Register(&soslTool{sf: s})
}

type soqlTool struct{ sf *Salesforce }

type soqlArgs struct {
	Query string `json:"query"`
}

func (t *soqlTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "salesforce_soql_query",
		Description: "Execute a SOQL query against Salesforce. Use for complex queries, " +
			"reporting, or joining data across objects. Only SELECT queries are allowed.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "SOQL query, e.g. \"SELECT Id, Name, Email FROM Contact WHERE Name LIKE 'John%' LIMIT 10\"",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *soqlTool) Preview(args json.RawMessage) string {
	var a soqlArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateLine(a.Query, 80)
}

func (t *soqlTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a soqlArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	if !strings.HasPrefix(strings.ToUpper(strings.TrimSpace(a.Query)), "SELECT") {
		return "", fmt.Errorf("only SELECT queries are allowed via this tool")
	}
	total, records, err := t.sf.Query(ctx, a.Query)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "Query returned 0 records.", nil
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Query returned %d records:\n%s", total, payload), nil
}

type soslTool struct{ sf *Salesforce }

type soslArgs struct {
	Search string `json:"search"`
}

func (t *soslTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name: "salesforce_sosl_search",
		Description: "Execute a SOSL full-text search across Salesforce objects, " +
			"e.g. \"FIND {John Smith} IN ALL FIELDS RETURNING Contact(Id, Name), Lead(Id, Name)\".",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"search": map[string]any{
					"type":        "string",
					"description": "SOSL search string",
				},
			},
			"required":             []string{"search"},
			"additionalProperties": false,
		},
	}
}

func (t *soslTool) Preview(args json.RawMessage) string {
	var a soslArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return truncateLine(a.Search, 80)
}

func (t *soslTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a soslArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	records, err := t.sf.Search(ctx, a.Search)
	if err != nil {
		return "", err
	}
	if len(records) == 0 {
		return "No records found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d records:\n", len(records))
	for _, rec := range records {
		objType := "Unknown"
		if attrs, ok := rec["attributes"].(map[string]any); ok {
			if t, ok := attrs["type"].(string); ok {
				objType = t
			}
		}
		id, _ := rec["Id"].(string)
		name, _ := rec["Name"].(string)
		if name == "" {
			name = id
		}
		fmt.Fprintf(&b, "- [%s] %s (ID: %s)\n", objType, name, id)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func escapeSOSL(query string) string {
	replacer := strings.NewReplacer("{", `\{`, "}", `\}`, "\\", `\\`)
	return replacer.Replace(query)
}

func formatRecordJSON(header string, record map[string]any) (string, error) {
	payload, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:\n%s", header, payload), nil
}

func truncateLine(s string, limit int) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
