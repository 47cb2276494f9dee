package jsonschema

import (
	"context"
	"errors"
	"fmt"
	"testing"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
)

func TestDraftValidator(t *testing.T) {
	v := NewDraftValidator()
	ctx := context.Background()

	valid := map[string]any{
		"type": "object",
		"properties": map[string]any{
			"name": map[string]any{"type": "string"},
		},
	}
	if err := v.ValidateSchema(ctx, "name_component", valid); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}

	invalid := map[string]any{
		"properties": map[string]any{
			"name": map[string]any{"type": "not-a-type"},
		},
	}
	err := v.ValidateSchema(ctx, "broken", invalid)
	if err == nil {
		t.Fatalf("expected metaschema failure")
	}
	var sve *santhosh.SchemaValidationError
	if !errors.As(err, &sve) {
		t.Fatalf("expected SchemaValidationError in chain, got %T: %v", err, err)
	}
}

func TestDraftValidator_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := NewDraftValidator().ValidateSchema(ctx, "x", map[string]any{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context canceled, got %v", err)
	}
}

func TestOpenAPIValidator(t *testing.T) {
	v := NewOpenAPIValidator()
	ctx := context.Background()

	if err := v.ValidateSchema(ctx, "ok", map[string]any{
		"type":       "object",
		"properties": map[string]any{"id": map[string]any{"type": "integer"}},
	}); err != nil {
		t.Fatalf("expected valid schema, got %v", err)
	}

	if err := v.ValidateSchema(ctx, "bad", map[string]any{
		"type": "object",
		"properties": map[string]any{
			"id": map[string]any{"type": "string", "pattern": "(["},
		},
	}); err == nil {
		t.Fatalf("expected invalid pattern to fail")
	}
}

func TestValidatorFor(t *testing.T) {
	cases := map[string]string{
		"":        "*jsonschema.DraftValidator",
		"openapi": "*jsonschema.OpenAPIValidator",
		"none":    "jsonschema.ValidatorFunc",
		"2020-12": "*jsonschema.DraftValidator",
	}
	for value, want := range cases {
		dialect, err := ParseDialect(value)
		if err != nil {
			t.Fatalf("ParseDialect(%q): %v", value, err)
		}
		v, err := ValidatorFor(dialect, nil)
		if err != nil {
			t.Fatalf("ValidatorFor(%q): %v", dialect, err)
		}
		if got := fmt.Sprintf("%T", v); got != want {
			t.Errorf("dialect %q: got %s want %s", value, got, want)
		}
	}

	if _, err := ParseDialect("draft4"); err == nil {
		t.Fatalf("expected unknown dialect error")
	}
}

func TestResourceURL(t *testing.T) {
	if got := ResourceURL("a b/c"); got != "https://tplguard.invalid/components/a%20b%2Fc.json" {
		t.Fatalf("unexpected resource url %q", got)
	}
}
