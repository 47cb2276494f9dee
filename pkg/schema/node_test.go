package schema

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestBuild_NestedProperties(t *testing.T) {
	payload, err := DecodePayload([]byte(`{
  // address is nested
  "type": "object",
  "properties": {
    "name": {"type": "string"},
    "address": {
      "type": "object",
      "properties": {
        "city": {"type": "string"},
      }
    },
    "tags": {"type": "array", "items": {"properties": {"label": {}}}}
  }
}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	node := Build(payload)
	if node.Kind != NodeObject {
		t.Fatalf("expected object root, got %s", node.Kind)
	}

	want := []string{"address", "address.city", "name", "tags"}
	if diff := cmp.Diff(want, node.Paths()); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}

	tags, ok := node.Property("tags")
	if !ok {
		t.Fatalf("expected tags property")
	}
	if tags.Kind != NodeLeaf {
		t.Fatalf("array items are not walked; expected leaf")
	}
	if _, ok := tags.Property("label"); ok {
		t.Fatalf("leaf nodes expose no properties")
	}
}

func TestBuild_NonObjectProperties(t *testing.T) {
	cases := map[string]any{
		"boolean schema":     true,
		"properties array":   map[string]any{"properties": []any{"a"}},
		"missing properties": map[string]any{"type": "object"},
		"nil":                nil,
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			if node := Build(payload); node.Kind != NodeLeaf {
				t.Fatalf("expected leaf, got %s", node.Kind)
			}
		})
	}
}

func TestDecodePayload_YAML(t *testing.T) {
	payload, err := DecodePayload([]byte("type: object\nproperties:\n  count:\n    type: integer\n    minimum: 1\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	props := payload["properties"].(map[string]any)
	count := props["count"].(map[string]any)
	if count["minimum"] != float64(1) {
		t.Fatalf("expected YAML ints normalized to float64, got %#v", count["minimum"])
	}
}

func TestDecodePayload_Errors(t *testing.T) {
	for name, raw := range map[string]string{
		"empty":  "   ",
		"scalar": "just text",
		"null":   "null",
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := DecodePayload([]byte(raw)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestNewDocument(t *testing.T) {
	if _, err := NewDocument(nil, []byte("{}")); err == nil {
		t.Fatalf("expected missing source error")
	}
	doc := MustNewDocument(SourceInline("button"), []byte(`{"properties":{"label":{}}}`))
	if doc.Location() != "inline:button" {
		t.Fatalf("unexpected location %q", doc.Location())
	}
	payload, err := doc.Payload()
	if err != nil {
		t.Fatalf("payload: %v", err)
	}
	if Build(payload).Kind != NodeObject {
		t.Fatalf("expected object node")
	}
	if _, err := SourceFromURL("::bad"); err == nil {
		t.Fatalf("expected invalid URL error")
	}
}
