package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// FieldSchema describes one writable field of a synced CRM object.
type FieldSchema struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Label string `json:"label,omitempty"`
}

// ObjectSchema is one CRM object discovered during sync. The tool factory
// turns it into search/get/create/update/delete tools at runtime, so
// schema changes only require a re-sync, never code generation.
type ObjectSchema struct {
	Service    string        `json:"service"`
	Name       string        `json:"name"`
	Label      string        `json:"label,omitempty"`
	Fields     []FieldSchema `json:"fields"`
	Operations []string      `json:"operations"`
}

// RecordAPI is the per-service record surface the generated tools call.
// Each method returns agent-facing text, already formatted for display.
type RecordAPI interface {
	ServiceName() string
	SearchRecords(ctx context.Context, object, query string, limit int) (string, error)
	GetRecord(ctx context.Context, object, id string) (string, error)
	CreateRecord(ctx context.Context, object string, fields map[string]any) (string, error)
	UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (string, error)
	DeleteRecord(ctx context.Context, object, id string) (string, error)
}

// SchemaAPI is implemented by services whose object model is user-specific
// and must be fetched before record tools can be generated.
type SchemaAPI interface {
	DescribeObjects(ctx context.Context) ([]ObjectSchema, error)
}

// RegisterObjectTools generates tools for every operation of every schema
// and registers them. Mutating operations require user approval.
func RegisterObjectTools(reg *llm.ToolRegistry, api RecordAPI, schemas []ObjectSchema) []string {
	var names []string
	for _, schema := range schemas {
		for _, op := range schema.Operations {
			tool := &objectTool{api: api, schema: schema, op: op}
			switch op {
			case "create", "update", "delete":
				reg.RegisterInterrupting(tool, tool.describeAction)
			default:
				reg.Register(tool)
			}
			names = append(names, tool.Spec().Name)
		}
	}
	return names
}

// objectTool is one generated operation on one synced object.
type objectTool struct {
	api    RecordAPI
	schema ObjectSchema
	op     string
}

type objectArgs struct {
	Query  string         `json:"query,omitempty"`
	Limit  int            `json:"limit,omitempty"`
	ID     string         `json:"id,omitempty"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (t *objectTool) Spec() llm.ToolSpec {
	object := strings.ToLower(t.schema.Name)
	name := fmt.Sprintf("%s_%s_%s", t.api.ServiceName(), t.op, object)
	label := t.schema.Label
	if label == "" {
		label = t.schema.Name
	}

	properties := map[string]any{}
	var required []string
	switch t.op {
	case "search":
		properties["query"] = map[string]any{
			"type":        "string",
			"description": "Text to match against record fields",
		}
		properties["limit"] = map[string]any{
			"type":        "integer",
			"description": "Maximum records to return (default: 10)",
		}
		required = []string{"query"}
	case "get":
		properties["id"] = map[string]any{"type": "string", "description": "Record ID"}
		required = []string{"id"}
	case "create":
		properties["fields"] = t.fieldsSchema()
		required = []string{"fields"}
	case "update":
		properties["id"] = map[string]any{"type": "string", "description": "Record ID"}
		properties["fields"] = t.fieldsSchema()
		required = []string{"id", "fields"}
	case "delete":
		properties["id"] = map[string]any{"type": "string", "description": "Record ID to delete"}
		required = []string{"id"}
	}

	return llm.ToolSpec{
		Name:        name,
		Description: fmt.Sprintf("%s a %s record in %s.", capitalize(t.op), label, t.api.ServiceName()),
		Schema: map[string]any{
			"type":                 "object",
			"properties":           properties,
			"required":             required,
			"additionalProperties": false,
		},
	}
}

// fieldsSchema exposes the synced field list so the model fills in real
// field names instead of guessing.
func (t *objectTool) fieldsSchema() map[string]any {
	props := map[string]any{}
	for _, f := range t.schema.Fields {
		prop := map[string]any{"type": jsonType(f.Type)}
		if f.Label != "" {
			prop["description"] = f.Label
		}
		props[f.Name] = prop
	}
	return map[string]any{
		"type":                 "object",
		"description":          "Field values keyed by field name",
		"properties":           props,
		"additionalProperties": true,
	}
}

func (t *objectTool) Preview(args json.RawMessage) string {
	var a objectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	switch t.op {
	case "search":
		return fmt.Sprintf("%s %s: %s", t.op, t.schema.Name, a.Query)
	case "get", "delete":
		return fmt.Sprintf("%s %s %s", t.op, t.schema.Name, a.ID)
	default:
		return fmt.Sprintf("%s %s", t.op, t.schema.Name)
	}
}

func (t *objectTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a objectArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	switch t.op {
	case "search":
		limit := a.Limit
		if limit <= 0 {
			limit = 10
		}
		if a.Query == "" {
			return "", fmt.Errorf("query is required")
		}
		return t.api.SearchRecords(ctx, t.schema.Name, a.Query, limit)
	case "get":
		if a.ID == "" {
			return "", fmt.Errorf("id is required")
		}
		return t.api.GetRecord(ctx, t.schema.Name, a.ID)
	case "create":
		if len(a.Fields) == 0 {
			return "", fmt.Errorf("fields are required")
		}
		return t.api.CreateRecord(ctx, t.schema.Name, a.Fields)
	case "update":
		if a.ID == "" {
			return "", fmt.Errorf("id is required")
		}
		if len(a.Fields) == 0 {
			return "", fmt.Errorf("fields are required")
		}
		return t.api.UpdateRecord(ctx, t.schema.Name, a.ID, a.Fields)
	case "delete":
		if a.ID == "" {
			return "", fmt.Errorf("id is required")
		}
		return t.api.DeleteRecord(ctx, t.schema.Name, a.ID)
	default:
		return "", fmt.Errorf("unsupported operation %q", t.op)
	}
}

// describeAction renders the approval prompt for mutating operations,
// including the full field payload so the user sees exactly what changes.
func (t *objectTool) describeAction(args map[string]any) string {
	service := t.api.ServiceName()
	id, _ := args["id"].(string)
	switch t.op {
	case "delete":
		return fmt.Sprintf("Delete %s %s record %s", service, t.schema.Name, id)
	case "update":
		return fmt.Sprintf("Update %s %s record %s:\n%s", service, t.schema.Name, id, formatFields(args["fields"]))
	default:
		return fmt.Sprintf("Create %s %s record:\n%s", service, t.schema.Name, formatFields(args["fields"]))
	}
}

func formatFields(v any) string {
	fields, ok := v.(map[string]any)
	if !ok || len(fields) == 0 {
		return "  (no fields)"
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "  %s: %v\n", k, fields[k])
	}
	return strings.TrimRight(b.String(), "\n")
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func jsonType(fieldType string) string {
	switch fieldType {
	case "int", "integer", "double", "currency", "percent", "number":
		return "number"
	case "boolean", "checkbox":
		return "boolean"
	default:
		return "string"
	}
}
