package jsonschema

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
)

const resourceBase = "https://tplguard.invalid/components/"

// Validator checks that a component schema is structurally valid before it is
// registered.
type Validator interface {
	ValidateSchema(ctx context.Context, name string, payload map[string]any) error
}

// ValidatorFunc adapts a function to the Validator interface.
type ValidatorFunc func(ctx context.Context, name string, payload map[string]any) error

// ValidateSchema implements Validator.
func (fn ValidatorFunc) ValidateSchema(ctx context.Context, name string, payload map[string]any) error {
	return fn(ctx, name, payload)
}

// Noop accepts every schema.
var Noop Validator = ValidatorFunc(func(context.Context, string, map[string]any) error { return nil })

// DraftValidator compiles component schemas with a JSON Schema compiler, which
// validates them against the Draft 2020-12 metaschema unless the document
// selects another draft through "$schema".
type DraftValidator struct {
	draft  *santhosh.Draft
	loader santhosh.URLLoader
}

// DraftOption customises a DraftValidator.
type DraftOption func(*DraftValidator)

// WithDraft sets the default draft applied to schemas without "$schema".
func WithDraft(draft *santhosh.Draft) DraftOption {
	return func(v *DraftValidator) {
		if draft != nil {
			v.draft = draft
		}
	}
}

// WithURLLoader lets the compiler fetch external "$ref" targets. Without it
// only file URLs resolve.
func WithURLLoader(loader santhosh.URLLoader) DraftOption {
	return func(v *DraftValidator) {
		v.loader = loader
	}
}

// NewDraftValidator constructs a DraftValidator.
func NewDraftValidator(options ...DraftOption) *DraftValidator {
	v := &DraftValidator{draft: santhosh.Draft2020}
	for _, opt := range options {
		if opt != nil {
			opt(v)
		}
	}
	return v
}

var _ Validator = (*DraftValidator)(nil)

// ValidateSchema implements Validator.
func (v *DraftValidator) ValidateSchema(ctx context.Context, name string, payload map[string]any) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("jsonschema: encode %q: %w", name, err)
	}
	doc, err := santhosh.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("jsonschema: decode %q: %w", name, err)
	}

	compiler := santhosh.NewCompiler()
	compiler.DefaultDraft(v.draft)
	if v.loader != nil {
		compiler.UseLoader(v.loader)
	}

	location := ResourceURL(name)
	if err := compiler.AddResource(location, doc); err != nil {
		return fmt.Errorf("jsonschema: add %q: %w", name, err)
	}
	if _, err := compiler.Compile(location); err != nil {
		return fmt.Errorf("jsonschema: compile %q: %w", name, err)
	}
	return nil
}

// ResourceURL returns the synthetic URL a component schema is compiled under.
func ResourceURL(name string) string {
	return resourceBase + url.PathEscape(name) + ".json"
}
