package jsonschema

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/getkin/kin-openapi/openapi3"
)

// OpenAPIValidator treats component schemas as OpenAPI 3 schema objects, for
// deployments whose components are lifted from an API document.
type OpenAPIValidator struct {
	options []openapi3.ValidationOption
}

// NewOpenAPIValidator constructs an OpenAPIValidator. Example validation is
// disabled by default because component schemas rarely carry resolvable
// examples.
func NewOpenAPIValidator(options ...openapi3.ValidationOption) *OpenAPIValidator {
	if len(options) == 0 {
		options = []openapi3.ValidationOption{openapi3.DisableExamplesValidation()}
	}
	return &OpenAPIValidator{options: options}
}

var _ Validator = (*OpenAPIValidator)(nil)

// ValidateSchema implements Validator.
func (v *OpenAPIValidator) ValidateSchema(ctx context.Context, name string, payload map[string]any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("openapi schema: encode %q: %w", name, err)
	}

	var schema openapi3.Schema
	if err := json.Unmarshal(raw, &schema); err != nil {
		return fmt.Errorf("openapi schema: decode %q: %w", name, err)
	}
	if err := schema.Validate(ctx, v.options...); err != nil {
		return fmt.Errorf("openapi schema: %q: %w", name, err)
	}
	return nil
}
