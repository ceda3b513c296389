package openapi

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestGenerateValidates(t *testing.T) {
	doc, err := Generate("http://localhost:5000", "1.2.3")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if err := doc.Validate(context.Background()); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if doc.Info.Version != "1.2.3" {
		t.Errorf("version = %q", doc.Info.Version)
	}
}

func TestGenerateRoutes(t *testing.T) {
	doc, _ := Generate("", "dev")

	tests := []struct {
		path    string
		method  string
		secured bool
	}{
		{"/api/auth/login", "POST", false},
		{"/api/auth/verify", "GET", true},
		{"/api/projects", "GET", false},
		{"/api/projects", "POST", true},
		{"/api/projects/{id}", "GET", false},
		{"/api/projects/{id}", "PUT", true},
		{"/api/projects/{id}", "DELETE", true},
		{"/api/contact", "POST", false},
		{"/api/contact", "GET", true},
		{"/api/contact/{id}", "GET", true},
		{"/api/contact/{id}", "DELETE", true},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			item := doc.Paths.Value(tt.path)
			if item == nil {
				t.Fatalf("missing path %s", tt.path)
			}
			op := item.GetOperation(tt.method)
			if op == nil {
				t.Fatalf("missing %s operation", tt.method)
			}
			if got := op.Security != nil; got != tt.secured {
				t.Errorf("secured = %v, want %v", got, tt.secured)
			}
			if op.Responses.Value("500") == nil {
				t.Error("expected a 500 response")
			}
		})
	}
}

func TestGenerateMarshals(t *testing.T) {
	doc, err := Generate("/", "dev")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if m["openapi"] != "3.0.3" {
		t.Errorf("openapi = %v", m["openapi"])
	}
	if !strings.Contains(string(b), `"$ref":"#/components/schemas/Project"`) {
		t.Error("resolved refs should still marshal as $ref")
	}
}

func TestGenerateResolvesRefs(t *testing.T) {
	doc, err := Generate("", "dev")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	login := doc.Paths.Value("/api/auth/login").Post
	body := login.RequestBody.Value.Content.Get("application/json").Schema
	if body.Ref != "#/components/schemas/LoginInput" || body.Value == nil {
		t.Fatalf("login body = %q, resolved %v", body.Ref, body.Value != nil)
	}
	if body.Value.Properties["username"] == nil {
		t.Error("login body does not carry the LoginInput properties")
	}

	// Refs between components resolve too.
	errs := doc.Components.Schemas["ErrorResponse"].Value.Properties["errors"].Value.Items
	if errs.Value == nil || errs.Value.Properties["field"] == nil {
		t.Errorf("FieldError ref unresolved: %+v", errs)
	}
}
