package crm

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/NForce-ai/sdrbot/internal/llm"
)

type fakeRecordAPI struct {
	calls []string
}

func (f *fakeRecordAPI) ServiceName() string { return "fakecrm" }

func (f *fakeRecordAPI) SearchRecords(ctx context.Context, object, query string, limit int) (string, error) {
	f.calls = append(f.calls, "search "+object+" "+query)
	return "Found 1 records", nil
}

func (f *fakeRecordAPI) GetRecord(ctx context.Context, object, id string) (string, error) {
	f.calls = append(f.calls, "get "+object+" "+id)
	return "record", nil
}

func (f *fakeRecordAPI) CreateRecord(ctx context.Context, object string, fields map[string]any) (string, error) {
	f.calls = append(f.calls, "create "+object)
	return "created", nil
}

func (f *fakeRecordAPI) UpdateRecord(ctx context.Context, object, id string, fields map[string]any) (string, error) {
	f.calls = append(f.calls, "update "+object+" "+id)
	return "updated", nil
}

func (f *fakeRecordAPI) DeleteRecord(ctx context.Context, object, id string) (string, error) {
	f.calls = append(f.calls, "delete "+object+" "+id)
	return "deleted", nil
}

func contactSchema() ObjectSchema {
	return ObjectSchema{
		Service: "fakecrm",
		Name:    "Contact",
		Fields: []FieldSchema{
			{Name: "FirstName", Type: "string", Label: "First Name"},
			{Name: "AnnualRevenue", Type: "currency"},
			{Name: "DoNotCall", Type: "boolean"},
		},
		Operations: []string{"search", "get", "create", "update", "delete"},
	}
}

func TestRegisterObjectToolsNamesAndInterrupts(t *testing.T) {
	reg := llm.NewToolRegistry()
	api := &fakeRecordAPI{}
	names := RegisterObjectTools(reg, api, []ObjectSchema{contactSchema()})

	want := []string{
		"fakecrm_search_contact",
		"fakecrm_get_contact",
		"fakecrm_create_contact",
		"fakecrm_update_contact",
		"fakecrm_delete_contact",
	}
	if len(names) != len(want) {
		t.Fatalf("len(names) = %d, want %d", len(names), len(want))
	}
	for i, name := range want {
		if names[i] != name {
			t.Fatalf("names[%d] = %q, want %q", i, names[i], name)
		}
		if _, ok := reg.Get(name); !ok {
			t.Fatalf("tool %q not registered", name)
		}
	}

	for _, name := range []string{"fakecrm_create_contact", "fakecrm_update_contact", "fakecrm_delete_contact"} {
		if !reg.IsInterrupting(name) {
			t.Fatalf("%s should require approval", name)
		}
	}
	for _, name := range []string{"fakecrm_search_contact", "fakecrm_get_contact"} {
		if reg.IsInterrupting(name) {
			t.Fatalf("%s should not require approval", name)
		}
	}
}

func TestObjectToolFieldSchemaTypes(t *testing.T) {
	reg := llm.NewToolRegistry()
	RegisterObjectTools(reg, &fakeRecordAPI{}, []ObjectSchema{contactSchema()})

	tool, ok := reg.Get("fakecrm_create_contact")
	if !ok {
		t.Fatal("create tool missing")
	}
	spec := tool.Spec()
	props := spec.Schema["properties"].(map[string]any)
	fields := props["fields"].(map[string]any)
	fieldProps := fields["properties"].(map[string]any)

	first := fieldProps["FirstName"].(map[string]any)
	if first["type"] != "string" {
		t.Fatalf("FirstName type = %v, want string", first["type"])
	}
	if first["description"] != "First Name" {
		t.Fatalf("FirstName description = %v", first["description"])
	}
	if revenue := fieldProps["AnnualRevenue"].(map[string]any); revenue["type"] != "number" {
		t.Fatalf("AnnualRevenue type = %v, want number", revenue["type"])
	}
	if dnc := fieldProps["DoNotCall"].(map[string]any); dnc["type"] != "boolean" {
		t.Fatalf("DoNotCall type = %v, want boolean", dnc["type"])
	}
}

func TestObjectToolExecuteRoutesOperations(t *testing.T) {
	reg := llm.NewToolRegistry()
	api := &fakeRecordAPI{}
	RegisterObjectTools(reg, api, []ObjectSchema{contactSchema()})

	cases := []struct {
		tool string
		args string
		call string
	}{
		{"fakecrm_search_contact", `{"query":"acme"}`, "search Contact acme"},
		{"fakecrm_get_contact", `{"id":"003xx"}`, "get Contact 003xx"},
		{"fakecrm_create_contact", `{"fields":{"FirstName":"Ada"}}`, "create Contact"},
		{"fakecrm_update_contact", `{"id":"003xx","fields":{"FirstName":"Ada"}}`, "update Contact 003xx"},
		{"fakecrm_delete_contact", `{"id":"003xx"}`, "delete Contact 003xx"},
	}
	for _, tc := range cases {
		tool, _ := reg.Get(tc.tool)
		if _, err := tool.Execute(context.Background(), json.RawMessage(tc.args)); err != nil {
			t.Fatalf("%s: %v", tc.tool, err)
		}
	}
	for i, tc := range cases {
		if api.calls[i] != tc.call {
			t.Fatalf("calls[%d] = %q, want %q", i, api.calls[i], tc.call)
		}
	}
}

func TestObjectToolExecuteValidatesArgs(t *testing.T) {
	reg := llm.NewToolRegistry()
	RegisterObjectTools(reg, &fakeRecordAPI{}, []ObjectSchema{contactSchema()})

	cases := []struct {
		tool string
		args string
	}{
		{"fakecrm_search_contact", `{}`},
		{"fakecrm_get_contact", `{}`},
		{"fakecrm_create_contact", `{"fields":{}}`},
		{"fakecrm_update_contact", `{"fields":{"FirstName":"Ada"}}`},
		{"fakecrm_delete_contact", `{}`},
	}
	for _, tc := range cases {
		tool, _ := reg.Get(tc.tool)
		if _, err := tool.Execute(context.Background(), json.RawMessage(tc.args)); err == nil {
			t.Fatalf("%s: expected error for args %s", tc.tool, tc.args)
		}
	}
}

func TestObjectToolApprovalDescription(t *testing.T) {
	reg := llm.NewToolRegistry()
	RegisterObjectTools(reg, &fakeRecordAPI{}, []ObjectSchema{contactSchema()})

	desc := reg.DescribeAction("fakecrm_update_contact",
		map[string]any{"id": "003xx", "fields": map[string]any{"FirstName": "Ada", "DoNotCall": true}},
		json.RawMessage(`{}`))
	if !strings.Contains(desc, "Update fakecrm Contact record 003xx") {
		t.Fatalf("description missing header: %q", desc)
	}
	if !strings.Contains(desc, "FirstName: Ada") || !strings.Contains(desc, "DoNotCall: true") {
		t.Fatalf("description missing fields: %q", desc)
	}

	desc = reg.DescribeAction("fakecrm_delete_contact",
		map[string]any{"id": "003xx"}, json.RawMessage(`{}`))
	if desc != "Delete fakecrm Contact record 003xx" {
		t.Fatalf("delete description = %q", desc)
	}
}
