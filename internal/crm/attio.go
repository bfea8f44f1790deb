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

// Attio wraps the Attio v2 API with a workspace API token.
type Attio struct {
	rest *restClient
}

func NewAttioFromEnv() (*Attio, error) {
	key := os.Getenv("ATTIO_API_KEY")
	if key == "" {
		return nil, fmt.Errorf("attio: ATTIO_API_KEY must be set")
	}
	rest := newRESTClient("attio", "https://api.attio.com/v2", 8)
	rest.authorize = bearerAuth(key)
	return &Attio{rest: rest}, nil
}

func (a *Attio) ServiceName() string { return "attio" }

func (a *Attio) Reset() {
	a.rest.authorize = bearerAuth(os.Getenv("ATTIO_API_KEY"))
}

type attioRecord struct {
	ID struct {
		RecordID string `json:"record_id"`
	} `json:"id"`
	Values map[string][]map[string]any `json:"values"`
}

type attioQueryResponse struct {
	Data          []attioRecord `json:"data"`
	NextPageToken string        `json:"next_page_token"`
}

func (a *Attio) SearchRecords(ctx context.Context, object, query string, limit int) (string, error) {
	body := map[string]any{"limit": limit}
	if query != "" {
		body["filter"] = map[string]any{"name": map[string]any{"$contains": query}}
	}
	var resp attioQueryResponse
	if err := a.rest.do(ctx, "POST", fmt.Sprintf("/objects/%s/records/query", object), nil, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "No records found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d records:\n", len(resp.Data))
	for _, rec := range resp.Data {
		fmt.Fprintf(&b, "- %s (ID: %s)\n", attioRecordLabel(rec.Values), rec.ID.RecordID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *Attio) GetRecord(ctx context.Context, object, id string) (string, error) {
	var resp struct {
		Data attioRecord `json:"data"`
	}
	if err := a.rest.do(ctx, "GET", fmt.Sprintf("/objects/%s/records/%s", object, id), nil, nil, &resp); err != nil {
		return "", err
	}
	rec := resp.Data
	if rec.ID.RecordID == "" {
		return fmt.Sprintf("Record not found: %s", id), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Record ID: %s\n", rec.ID.RecordID)
	for slug, vals := range rec.Values {
		display := attioDisplayValues(vals)
		if len(display) > 0 {
			fmt.Fprintf(&b, "- %s: %s\n", slug, strings.Join(display, ", "))
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (a *Attio) CreateRecord(ctx context.Context, object string, fields map[string]any) (string, error) {
	body := map[string]any{"data": map[string]any{"values": fields}}
	var resp struct {
		Data attioRecord `json:"data"`
	}
	if err := a.rest.do(ctx, "POST", fmt.Sprintf("/objects/%s/records", object), nil, body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created %s record with ID: %s", object, resp.Data.ID.RecordID), nil
}

func (a *Attio) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (string, error) {
	body := map[string]any{"data": map[string]any{"values": fields}}
	if err := a.rest.do(ctx, "PATCH", fmt.Sprintf("/objects/%s/records/%s", object, id), nil, body, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %s record %s", object, id), nil
}

func (a *Attio) DeleteRecord(ctx context.Context, object, id string) (string, error) {
	if err := a.rest.do(ctx, "DELETE", fmt.Sprintf("/objects/%s/records/%s", object, id), nil, nil, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Deleted %s record %s", object, id), nil
}

type attioObjectsResponse struct {
	Data []struct {
		APISlug      string `json:"api_slug"`
		SingularNoun string `json:"singular_noun"`
	} `json:"data"`
}

type attioAttributesResponse struct {
	Data []struct {
		APISlug   string `json:"api_slug"`
		Title     string `json:"title"`
		Type      string `json:"type"`
		IsWritable bool  `json:"is_writable"`
	} `json:"data"`
}

// DescribeObjects lists workspace objects and their writable attributes.
func (a *Attio) DescribeObjects(ctx context.Context) ([]ObjectSchema, error) {
	var objects attioObjectsResponse
	if err := a.rest.do(ctx, "GET", "/objects", nil, nil, &objects); err != nil {
		return nil, err
	}
	var schemas []ObjectSchema
	for _, obj := range objects.Data {
		var attrs attioAttributesResponse
		if err := a.rest.do(ctx, "GET", fmt.Sprintf("/objects/%s/attributes", obj.APISlug), nil, nil, &attrs); err != nil {
			return nil, fmt.Errorf("attributes for %s: %w", obj.APISlug, err)
		}
		schema := ObjectSchema{
			Service:    "attio",
			Name:       obj.APISlug,
			Label:      obj.SingularNoun,
			Operations: []string{"search", "get", "create", "update", "delete"},
		}
		for _, attr := range attrs.Data {
			if !attr.IsWritable {
				continue
			}
			schema.Fields = append(schema.Fields, FieldSchema{Name: attr.APISlug, Type: attr.Type, Label: attr.Title})
			if len(schema.Fields) >= 40 {
				break
			}
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// RegisterStaticTools adds the schema-independent Attio tools (notes and
// record counts).
func (a *Attio) RegisterStaticTools(reg *llm.ToolRegistry) {
	reg.RegisterInterrupting(&attioCreateNoteTool{attio: a}, func(args map[string]any) string {
		return fmt.Sprintf("Create attio note %q on %v/%v", args["title"], args["object_slug"], args["record_id"])
	})
	reg.Register(&attioListNotesTool{attio: a})
	reg.Register(&attioCountRecordsTool{attio: a})
}

type attioNoteArgs struct {
	ObjectSlug string `json:"object_slug"`
	RecordID   string `json:"record_id"`
	Title      string `json:"title,omitempty"`
	Body       string `json:"body,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type attioCreateNoteTool struct{ attio *Attio }

func (t *attioCreateNoteTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "attio_create_note",
		Description: "Add a note to an Attio record. Markdown is supported in the body.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"object_slug": map[string]any{"type": "string", "description": "Object type, e.g. \"people\" or \"companies\""},
				"record_id":   map[string]any{"type": "string", "description": "The record's UUID"},
				"title":       map[string]any{"type": "string", "description": "Note title"},
				"body":        map[string]any{"type": "string", "description": "Note content"},
			},
			"required":             []string{"object_slug", "record_id", "title", "body"},
			"additionalProperties": false,
		},
	}
}

func (t *attioCreateNoteTool) Preview(args json.RawMessage) string {
	var a attioNoteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s on %s/%s", a.Title, a.ObjectSlug, a.RecordID)
}

func (t *attioCreateNoteTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a attioNoteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	body := map[string]any{
		"data": map[string]any{
			"title":            a.Title,
			"content":          a.Body,
			"format":           "plaintext",
			"parent_object":    a.ObjectSlug,
			"parent_record_id": a.RecordID,
		},
	}
	var resp struct {
		Data struct {
			ID struct {
				NoteID string `json:"note_id"`
			} `json:"id"`
		} `json:"data"`
	}
	if err := t.attio.rest.do(ctx, "POST", "/notes", nil, body, &resp); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully created note (ID: %s)", resp.Data.ID.NoteID), nil
}

type attioListNotesTool struct{ attio *Attio }

func (t *attioListNotesTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "attio_list_notes",
		Description: "List notes on an Attio record.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"object_slug": map[string]any{"type": "string", "description": "Object type, e.g. \"people\" or \"companies\""},
				"record_id":   map[string]any{"type": "string", "description": "The record's UUID"},
				"limit":       map[string]any{"type": "integer", "description": "Maximum notes to return (default: 10)"},
			},
			"required":             []string{"object_slug", "record_id"},
			"additionalProperties": false,
		},
	}
}

func (t *attioListNotesTool) Preview(args json.RawMessage) string {
	var a attioNoteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s", a.ObjectSlug, a.RecordID)
}

func (t *attioListNotesTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a attioNoteArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	limit := a.Limit
	if limit <= 0 {
		limit = 10
	}
	params := url.Values{
		"parent_object":    {a.ObjectSlug},
		"parent_record_id": {a.RecordID},
		"limit":            {strconv.Itoa(limit)},
	}
	var resp struct {
		Data []struct {
			Title     string `json:"title"`
			CreatedAt string `json:"created_at"`
		} `json:"data"`
	}
	if err := t.attio.rest.do(ctx, "GET", "/notes", params, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Data) == 0 {
		return "No notes found on this record.", nil
	}
	var b strings.Builder
	b.WriteString("Notes:\n")
	for _, note := range resp.Data {
		title := note.Title
		if title == "" {
			title = "(No title)"
		}
		created := note.CreatedAt
		if len(created) > 10 {
			created = created[:10]
		}
		fmt.Fprintf(&b, "- %s (Created: %s)\n", title, created)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// Default objects counted when none is given.
var attioCountObjects = []string{"people", "companies"}

type attioCountRecordsTool struct{ attio *Attio }

type attioCountArgs struct {
	ObjectSlug string `json:"object_slug,omitempty"`
}

func (t *attioCountRecordsTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "attio_count_records",
		Description: "Count records for each object type in Attio.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"object_slug": map[string]any{
					"type":        "string",
					"description": "Count only this object, e.g. \"people\". Counts standard objects when omitted.",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *attioCountRecordsTool) Preview(args json.RawMessage) string {
	var a attioCountArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.ObjectSlug == "" {
		return strings.Join(attioCountObjects, ", ")
	}
	return a.ObjectSlug
}

func (t *attioCountRecordsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a attioCountArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	objects := attioCountObjects
	if a.ObjectSlug != "" {
		objects = []string{a.ObjectSlug}
	}

	var b strings.Builder
	b.WriteString("Record counts:\n")
	total := 0
	failed := false
	for _, object := range objects {
		count, err := t.countObject(ctx, object)
		if err != nil {
			fmt.Fprintf(&b, "  %s: Error: %v\n", object, err)
			failed = true
			continue
		}
		fmt.Fprintf(&b, "  %s: %d\n", object, count)
		total += count
	}
	if len(objects) > 1 && !failed {
		b.WriteString("  ---\n")
		fmt.Fprintf(&b, "  Total: %d\n", total)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// countObject pages through query results, 500 at a time.
func (t *attioCountRecordsTool) countObject(ctx context.Context, object string) (int, error) {
	const maxPages = 100
	count := 0
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		body := map[string]any{"limit": 500}
		if pageToken != "" {
			body["page_token"] = pageToken
		}
		var resp attioQueryResponse
		if err := t.attio.rest.do(ctx, "POST", fmt.Sprintf("/objects/%s/records/query", object), nil, body, &resp); err != nil {
			return 0, err
		}
		count += len(resp.Data)
		pageToken = resp.NextPageToken
		if pageToken == "" {
			break
		}
	}
	return count, nil
}

// attioDisplayValues extracts up to three human-readable values from an
// attribute's typed value list.
func attioDisplayValues(vals []map[string]any) []string {
	var display []string
	for _, v := range vals {
		if len(display) >= 3 {
			break
		}
		for _, key := range []string{"value", "text", "email_address", "full_name", "domain"} {
			if raw, ok := v[key]; ok {
				display = append(display, fmt.Sprintf("%v", raw))
				break
			}
		}
	}
	return display
}

func attioRecordLabel(values map[string][]map[string]any) string {
	for _, slug := range []string{"name", "full_name", "domains", "email_addresses"} {
		if display := attioDisplayValues(values[slug]); len(display) > 0 {
			return display[0]
		}
	}
	return "(unnamed)"
}
