package crm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRESTClientAuthModes(t *testing.T) {
	var gotHeader, gotAPIKey, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get("Authorization")
		gotAPIKey = r.Header.Get("api_key")
		gotQuery = r.URL.Query().Get("api_key")
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := newRESTClient("test", server.URL, 100)
	c.authorize = bearerAuth("tok-1")
	if err := c.do(context.Background(), "GET", "/x", nil, nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotHeader != "Bearer tok-1" {
		t.Fatalf("Authorization = %q", gotHeader)
	}

	c.authorize = headerAuth("api_key", "key-2")
	if err := c.do(context.Background(), "GET", "/x", nil, nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotAPIKey != "key-2" {
		t.Fatalf("api_key header = %q", gotAPIKey)
	}

	c.authorize = queryAuth("api_key", "key-3")
	if err := c.do(context.Background(), "GET", "/x", nil, nil, nil); err != nil {
		t.Fatalf("do: %v", err)
	}
	if gotQuery != "key-3" {
		t.Fatalf("api_key query = %q", gotQuery)
	}
}

func TestRESTClientJSONRoundTrip(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["query"] != "acme" {
			t.Errorf("query = %v, want acme", body["query"])
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("Content-Type = %q", r.Header.Get("Content-Type"))
		}
		w.Write([]byte(`{"total": 3}`))
	}))
	defer server.Close()

	c := newRESTClient("test", server.URL, 100)
	var out struct {
		Total int `json:"total"`
	}
	if err := c.do(context.Background(), "POST", "/search", nil, map[string]any{"query": "acme"}, &out); err != nil {
		t.Fatalf("do: %v", err)
	}
	if out.Total != 3 {
		t.Fatalf("total = %d, want 3", out.Total)
	}
}

func TestRESTClientErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"message": "invalid   token"}`))
	}))
	defer server.Close()

	c := newRESTClient("hubspot", server.URL, 100)
	err := c.do(context.Background(), "GET", "/x", nil, nil, nil)
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("error type = %T", err)
	}
	if apiErr.Status != http.StatusUnauthorized {
		t.Fatalf("status = %d", apiErr.Status)
	}
	if !strings.Contains(apiErr.Error(), "hubspot API error (401)") {
		t.Fatalf("error = %q", apiErr.Error())
	}
	// Whitespace runs in the body collapse to single spaces.
	if !strings.Contains(apiErr.Body, "invalid token") {
		t.Fatalf("body = %q", apiErr.Body)
	}
}

func TestHunterDomainSearchFormatting(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/domain-search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.URL.Query().Get("api_key") != "hk" {
			t.Errorf("missing api_key param")
		}
		w.Write([]byte(`{"data":{"emails":[
			{"value":"jane@stripe.com","type":"personal","first_name":"Jane","last_name":"Doe","position":"CTO"},
			{"value":"info@stripe.com","type":"generic"}
		]}}`))
	}))
	defer server.Close()

	rest := newRESTClient("hunter", server.URL, 100)
	rest.authorize = queryAuth("api_key", "hk")
	tool := &hunterDomainSearchTool{hunter: &Hunter{rest: rest}}

	out, err := tool.Execute(context.Background(), json.RawMessage(`{"domain":"stripe.com"}`))
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(out, "Domain Search Results for stripe.com (2 found):") {
		t.Fatalf("missing header: %q", out)
	}
	if !strings.Contains(out, "- jane@stripe.com (personal) - Jane Doe - CTO") {
		t.Fatalf("missing named row: %q", out)
	}
	if !strings.Contains(out, "- info@stripe.com (generic) - Unknown - N/A") {
		t.Fatalf("missing fallback row: %q", out)
	}
}

func TestSalesforceSOQLRejectsNonSelect(t *testing.T) {
	tool := &soqlTool{sf: &Salesforce{}}
	_, err := tool.Execute(context.Background(), json.RawMessage(`{"query":"DELETE FROM Contact"}`))
	if err == nil || !strings.Contains(err.Error(), "SELECT") {
		t.Fatalf("err = %v, want SELECT-only error", err)
	}
}

func TestHubSpotSearchRecords(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/crm/v3/objects/contacts/search" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{"total":1,"results":[
			{"id":"101","properties":{"firstname":"Jane","lastname":"Doe"}}
		]}`))
	}))
	defer server.Close()

	rest := newRESTClient("hubspot", server.URL, 100)
	hs := &HubSpot{rest: rest}
	out, err := hs.SearchRecords(context.Background(), "contacts", "jane", 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !strings.Contains(out, "- Jane Doe (ID: 101)") {
		t.Fatalf("out = %q", out)
	}
}
