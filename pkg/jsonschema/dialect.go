package jsonschema

import (
	"fmt"
	"strings"
)

// Dialect names the structural rules applied to registered component schemas.
type Dialect string

const (
	DialectDraft2020 Dialect = "draft2020-12"
	DialectOpenAPI   Dialect = "openapi3"
	DialectNone      Dialect = "none"
)

// ParseDialect maps a configuration value onto a Dialect. The empty string
// selects Draft 2020-12.
func ParseDialect(value string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "draft2020-12", "draft2020", "2020-12", "jsonschema":
		return DialectDraft2020, nil
	case "openapi3", "openapi":
		return DialectOpenAPI, nil
	case "none", "off":
		return DialectNone, nil
	default:
		return "", fmt.Errorf("jsonschema: unknown schema dialect %q", value)
	}
}

// ValidatorFor returns the validator implementing dialect. A non-nil loader
// lets Draft 2020-12 schemas reference external documents.
func ValidatorFor(dialect Dialect, loader Loader) (Validator, error) {
	switch dialect {
	case DialectDraft2020, "":
		var options []DraftOption
		if loader != nil {
			options = append(options, WithURLLoader(URLLoader(loader)))
		}
		return NewDraftValidator(options...), nil
	case DialectOpenAPI:
		return NewOpenAPIValidator(), nil
	case DialectNone:
		return Noop, nil
	default:
		return nil, fmt.Errorf("jsonschema: unknown schema dialect %q", dialect)
	}
}
