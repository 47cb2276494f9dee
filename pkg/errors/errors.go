package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
)

// Kind classifies compile, register, and render failures.
type Kind string

const (
	// KindParse marks template syntax errors and undecodable render contexts.
	KindParse Kind = "ParseError"
	// KindMissingDependency marks templates that include, extend, or import a
	// template that is not compiled yet.
	KindMissingDependency Kind = "MissingDependency"
	// KindSchemaValidation marks invalid component schemas and templates that
	// read variables none of their components expose.
	KindSchemaValidation Kind = "SchemaValidationError"
	// KindCompile marks any other engine failure during compilation.
	KindCompile Kind = "CompileError"
	// KindTemplateNotFound marks renders of names that were never compiled.
	KindTemplateNotFound Kind = "TemplateNotFound"
	// KindRender marks engine failures while executing a template, including
	// strict undefined variables.
	KindRender Kind = "RenderError"
)

// Error is the structured error returned across the tplguard boundary.
type Error struct {
	Kind    Kind   `json:"error_type"`
	Message string `json:"message"`
	// Template names the template being compiled or rendered, when known.
	Template string `json:"template,omitempty"`
	// Component names the component being registered, when known.
	Component string `json:"component,omitempty"`
	// Variable names the offending variable path for unauthorized reads and
	// strict undefined lookups.
	Variable string `json:"variable,omitempty"`
	// MissingDependencies lists unresolved include/extends/import targets.
	MissingDependencies []string `json:"missing_dependencies,omitempty"`
	// Issues carries schema validation details for rejected components.
	Issues []Issue `json:"issues,omitempty"`
	Cause  error   `json:"-"`
}

// Issue is a single structural problem found in a component schema.
type Issue struct {
	// Path is the JSON pointer of the offending location inside the schema.
	Path string `json:"path,omitempty"`
	// Field is Path rewritten as a dotted property path ("address.city").
	Field   string `json:"field,omitempty"`
	Keyword string `json:"keyword,omitempty"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap exposes the underlying cause to errors.Is and errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// New creates an Error of the given kind.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Newf creates an Error of the given kind with a formatted message.
func Newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error of the given kind around cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// WithTemplate sets the template name and returns e for chaining.
func (e *Error) WithTemplate(name string) *Error {
	if e != nil {
		e.Template = name
	}
	return e
}

// MissingDependency builds the error reported when a template references
// templates that are not available.
func MissingDependency(template string, names []string) *Error {
	missing := append([]string(nil), names...)
	return &Error{
		Kind:                KindMissingDependency,
		Message:             fmt.Sprintf("template %q references missing templates: %s", template, strings.Join(missing, ", ")),
		Template:            template,
		MissingDependencies: missing,
	}
}

// Unauthorized builds the error reported when a template reads a variable
// that no declared component exposes.
func Unauthorized(variable string) *Error {
	return &Error{
		Kind:     KindSchemaValidation,
		Message:  fmt.Sprintf("variable '%s' is not allowed by schema", variable),
		Variable: variable,
	}
}

// TemplateNotFound builds the error reported for renders of unknown names.
func TemplateNotFound(name string) *Error {
	return &Error{
		Kind:     KindTemplateNotFound,
		Message:  fmt.Sprintf("template %q not found", name),
		Template: name,
	}
}

// As returns the first *Error in err's chain.
func As(err error) (*Error, bool) {
	var target *Error
	if stderrors.As(err, &target) && target != nil {
		return target, true
	}
	return nil, false
}

// KindOf reports the Kind of the first *Error in err's chain, or an empty
// Kind when err carries none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries an *Error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// BatchError collects the failures of a best-effort compile batch in
// submission order.
type BatchError struct {
	Errors []*Error
}

// Error implements the error interface.
func (b *BatchError) Error() string {
	if b == nil || len(b.Errors) == 0 {
		return "compile batch failed"
	}
	parts := make([]string, 0, len(b.Errors))
	for _, err := range b.Errors {
		parts = append(parts, err.Error())
	}
	return fmt.Sprintf("compile batch failed (%d errors): %s", len(b.Errors), strings.Join(parts, "; "))
}

// Unwrap exposes every collected error to errors.Is and errors.As.
func (b *BatchError) Unwrap() []error {
	if b == nil {
		return nil
	}
	out := make([]error, 0, len(b.Errors))
	for _, err := range b.Errors {
		out = append(out, err)
	}
	return out
}

// First returns the earliest failure of the batch.
func (b *BatchError) First() *Error {
	if b == nil || len(b.Errors) == 0 {
		return nil
	}
	return b.Errors[0]
}
