package crm

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

// HubSpot wraps the HubSpot CRM v3/v4 APIs with a private-app access token.
type HubSpot struct {
	rest *restClient
}

func NewHubSpotFromEnv() (*HubSpot, error) {
	token := os.Getenv("HUBSPOT_ACCESS_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("hubspot: HUBSPOT_ACCESS_TOKEN must be set")
	}
	rest := newRESTClient("hubspot", "https://api.hubapi.com", 8)
	rest.authorize = bearerAuth(token)
	return &HubSpot{rest: rest}, nil
}

func (h *HubSpot) ServiceName() string { return "hubspot" }

// Reset re-reads the access token from the environment.
func (h *HubSpot) Reset() {
	h.rest.authorize = bearerAuth(os.Getenv("HUBSPOT_ACCESS_TOKEN"))
}

type hsRecord struct {
	ID         string         `json:"id"`
	Properties map[string]any `json:"properties"`
}

type hsSearchResponse struct {
	Total   int        `json:"total"`
	Results []hsRecord `json:"results"`
}

func (h *HubSpot) SearchRecords(ctx context.Context, object, query string, limit int) (string, error) {
	var resp hsSearchResponse
	body := map[string]any{"query": query, "limit": limit}
	if err := h.rest.do(ctx, "POST", fmt.Sprintf("/crm/v3/objects/%s/search", object), nil, body, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "No records found.", nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Found %d records (showing %d):\n", resp.Total, len(resp.Results))
	for _, rec := range resp.Results {
		fmt.Fprintf(&b, "- %s (ID: %s)\n", hsRecordLabel(rec.Properties), rec.ID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

func (h *HubSpot) GetRecord(ctx context.Context, object, id string) (string, error) {
	var rec hsRecord
	if err := h.rest.do(ctx, "GET", fmt.Sprintf("/crm/v3/objects/%s/%s", object, id), nil, nil, &rec); err != nil {
		return "", err
	}
	return formatRecordJSON(fmt.Sprintf("%s %s", object, rec.ID), rec.Properties)
}

func (h *HubSpot) CreateRecord(ctx context.Context, object string, fields map[string]any) (string, error) {
	var rec hsRecord
	body := map[string]any{"properties": fields}
	if err := h.rest.do(ctx, "POST", fmt.Sprintf("/crm/v3/objects/%s", object), nil, body, &rec); err != nil {
		return "", err
	}
	return fmt.Sprintf("Created %s record with ID: %s", object, rec.ID), nil
}

func (h *HubSpot) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (string, error) {
	body := map[string]any{"properties": fields}
	if err := h.rest.do(ctx, "PATCH", fmt.Sprintf("/crm/v3/objects/%s/%s", object, id), nil, body, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Updated %s record %s", object, id), nil
}

func (h *HubSpot) DeleteRecord(ctx context.Context, object, id string) (string, error) {
	if err := h.rest.do(ctx, "DELETE", fmt.Sprintf("/crm/v3/objects/%s/%s", object, id), nil, nil, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Archived %s record %s", object, id), nil
}

var hsSyncObjects = []string{"contacts", "companies", "deals", "tickets"}

type hsPropertiesResponse struct {
	Results []struct {
		Name                 string `json:"name"`
		Type                 string `json:"type"`
		Label                string `json:"label"`
		ModificationMetadata struct {
			ReadOnlyValue bool `json:"readOnlyValue"`
		} `json:"modificationMetadata"`
	} `json:"results"`
}

// DescribeObjects fetches writable properties for the core CRM objects.
func (h *HubSpot) DescribeObjects(ctx context.Context) ([]ObjectSchema, error) {
	var schemas []ObjectSchema
	for _, object := range hsSyncObjects {
		var resp hsPropertiesResponse
		if err := h.rest.do(ctx, "GET", "/crm/v3/properties/"+object, nil, nil, &resp); err != nil {
			return nil, fmt.Errorf("properties for %s: %w", object, err)
		}
		schema := ObjectSchema{
			Service:    "hubspot",
			Name:       object,
			Operations: []string{"search", "get", "create", "update", "delete"},
		}
		for _, p := range resp.Results {
			if p.ModificationMetadata.ReadOnlyValue {
				continue
			}
			schema.Fields = append(schema.Fields, FieldSchema{Name: p.Name, Type: p.Type, Label: p.Label})
			if len(schema.Fields) >= 40 {
				break
			}
		}
		schemas = append(schemas, schema)
	}
	return schemas, nil
}

// RegisterStaticTools adds the schema-independent HubSpot tools (pipelines
// and associations).
func (h *HubSpot) RegisterStaticTools(reg *llm.ToolRegistry) {
	reg.Register(&hsPipelinesTool{hs: h})
	reg.Register(&hsListAssociationsTool{hs: h})
	reg.RegisterInterrupting(&hsCreateAssociationTool{hs: h}, describeAssociation("Associate"))
	reg.RegisterInterrupting(&hsDeleteAssociationTool{hs: h}, describeAssociation("Remove association between"))
}

func describeAssociation(verb string) llm.ActionDescriber {
	return func(args map[string]any) string {
		return fmt.Sprintf("%s hubspot %v/%v and %v/%v", verb,
			args["from_object_type"], args["from_object_id"],
			args["to_object_type"], args["to_object_id"])
	}
}

type hsPipelinesTool struct{ hs *HubSpot }

type hsPipelinesArgs struct {
	ObjectType string `json:"object_type,omitempty"`
}

type hsPipelinesResponse struct {
	Results []struct {
		ID     string `json:"id"`
		Label  string `json:"label"`
		Stages []struct {
			ID    string `json:"id"`
			Label string `json:"label"`
		} `json:"stages"`
	} `json:"results"`
}

func (t *hsPipelinesTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hubspot_list_pipelines",
		Description: "List all pipelines and their stages for a HubSpot object type (deals or tickets).",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"object_type": map[string]any{
					"type":        "string",
					"description": "Either \"deals\" or \"tickets\" (default: deals)",
				},
			},
			"additionalProperties": false,
		},
	}
}

func (t *hsPipelinesTool) Preview(args json.RawMessage) string {
	var a hsPipelinesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	if a.ObjectType == "" {
		return "deals"
	}
	return a.ObjectType
}

func (t *hsPipelinesTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hsPipelinesArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	objectType := a.ObjectType
	if objectType == "" {
		objectType = "deals"
	}
	var resp hsPipelinesResponse
	if err := t.hs.rest.do(ctx, "GET", "/crm/v3/pipelines/"+objectType, nil, nil, &resp); err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Pipelines for %s:\n", objectType)
	for _, p := range resp.Results {
		fmt.Fprintf(&b, "- %s (ID: %s)\n", p.Label, p.ID)
		for _, stage := range p.Stages {
			fmt.Fprintf(&b, "    Stage: %s (ID: %s)\n", stage.Label, stage.ID)
		}
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type hsAssociationArgs struct {
	FromObjectType string `json:"from_object_type"`
	FromObjectID   string `json:"from_object_id"`
	ToObjectType   string `json:"to_object_type"`
	ToObjectID     string `json:"to_object_id,omitempty"`
}

func hsAssociationSchema(needToID bool) map[string]any {
	properties := map[string]any{
		"from_object_type": map[string]any{"type": "string", "description": "Source object type, e.g. \"contacts\""},
		"from_object_id":   map[string]any{"type": "string", "description": "Source record ID"},
		"to_object_type":   map[string]any{"type": "string", "description": "Target object type, e.g. \"companies\""},
	}
	required := []string{"from_object_type", "from_object_id", "to_object_type"}
	if needToID {
		properties["to_object_id"] = map[string]any{"type": "string", "description": "Target record ID"}
		required = append(required, "to_object_id")
	}
	return map[string]any{
		"type":                 "object",
		"properties":           properties,
		"required":             required,
		"additionalProperties": false,
	}
}

type hsCreateAssociationTool struct{ hs *HubSpot }

type hsAssociationLabelsResponse struct {
	Results []struct {
		Category string `json:"category"`
		TypeID   int    `json:"typeId"`
	} `json:"results"`
}

func (t *hsCreateAssociationTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hubspot_create_association",
		Description: "Create an association between two HubSpot records.",
		Schema:      hsAssociationSchema(true),
	}
}

func (t *hsCreateAssociationTool) Preview(args json.RawMessage) string {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s -> %s/%s", a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID)
}

func (t *hsCreateAssociationTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	// Look up the default association type between the two objects.
	var labels hsAssociationLabelsResponse
	endpoint := fmt.Sprintf("/crm/v4/associations/%s/%s/labels", a.FromObjectType, a.ToObjectType)
	if err := t.hs.rest.do(ctx, "GET", endpoint, nil, nil, &labels); err != nil {
		return "", err
	}
	if len(labels.Results) == 0 {
		return "", fmt.Errorf("no association types found between %s and %s", a.FromObjectType, a.ToObjectType)
	}
	assoc := labels.Results[0]
	body := []map[string]any{{
		"associationCategory": assoc.Category,
		"associationTypeId":   assoc.TypeID,
	}}
	endpoint = fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s/%s",
		a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID)
	if err := t.hs.rest.do(ctx, "PUT", endpoint, nil, body, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully associated %s/%s with %s/%s",
		a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID), nil
}

type hsListAssociationsTool struct{ hs *HubSpot }

type hsAssociationsPage struct {
	Results []struct {
		ToObjectID int64 `json:"toObjectId"`
	} `json:"results"`
}

func (t *hsListAssociationsTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hubspot_list_associations",
		Description: "List all associations from a HubSpot record to another object type.",
		Schema:      hsAssociationSchema(false),
	}
}

func (t *hsListAssociationsTool) Preview(args json.RawMessage) string {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s -> %s", a.FromObjectType, a.FromObjectID, a.ToObjectType)
}

func (t *hsListAssociationsTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	var page hsAssociationsPage
	endpoint := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s",
		a.FromObjectType, a.FromObjectID, a.ToObjectType)
	if err := t.hs.rest.do(ctx, "GET", endpoint, nil, nil, &page); err != nil {
		return "", err
	}
	if len(page.Results) == 0 {
		return fmt.Sprintf("No %s associated with %s/%s", a.ToObjectType, a.FromObjectType, a.FromObjectID), nil
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Associated %s records:\n", a.ToObjectType)
	for _, assoc := range page.Results {
		fmt.Fprintf(&b, "- ID: %d\n", assoc.ToObjectID)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

type hsDeleteAssociationTool struct{ hs *HubSpot }

func (t *hsDeleteAssociationTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "hubspot_delete_association",
		Description: "Remove an association between two HubSpot records.",
		Schema:      hsAssociationSchema(true),
	}
}

func (t *hsDeleteAssociationTool) Preview(args json.RawMessage) string {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return ""
	}
	return fmt.Sprintf("%s/%s -x- %s/%s", a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID)
}

func (t *hsDeleteAssociationTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var a hsAssociationArgs
	if err := json.Unmarshal(args, &a); err != nil {
		return "", fmt.Errorf("invalid arguments: %w", err)
	}
	endpoint := fmt.Sprintf("/crm/v4/objects/%s/%s/associations/%s/%s",
		a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID)
	if err := t.hs.rest.do(ctx, "DELETE", endpoint, nil, nil, nil); err != nil {
		return "", err
	}
	return fmt.Sprintf("Successfully removed association between %s/%s and %s/%s",
		a.FromObjectType, a.FromObjectID, a.ToObjectType, a.ToObjectID), nil
}

// hsRecordLabel picks a display name from common HubSpot properties.
func hsRecordLabel(props map[string]any) string {
	first, _ := props["firstname"].(string)
	last, _ := props["lastname"].(string)
	if name := strings.TrimSpace(first + " " + last); name != "" {
		return name
	}
	for _, key := range []string{"name", "dealname", "subject", "email", "domain"} {
		if v, ok := props[key].(string); ok && v != "" {
			return v
		}
	}
	return "(unnamed)"
}
