package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/jsonschema"
	"github.com/goliatone/go-tplguard/pkg/schema"
	"github.com/goliatone/go-tplguard/pkg/validation"
)

// Component is a registered component schema.
type Component struct {
	Name string
	// Payload is a private copy of the registered document.
	Payload map[string]any
	// Node is the tagged properties tree the resolver walks.
	Node *schema.Node
	// Location records where the schema came from ("inline:<name>" for
	// payloads handed over directly).
	Location string
}

// Registry stores component schemas by name. Registration inserts or
// overwrites; lookups never mutate.
type Registry struct {
	mu         sync.RWMutex
	components map[string]Component

	validator jsonschema.Validator
	logger    *slog.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithValidator replaces the structural validator applied on registration.
// Nil restores the Draft 2020-12 default.
func WithValidator(v jsonschema.Validator) Option {
	return func(r *Registry) {
		r.validator = v
	}
}

// WithLogger sets the logger used for registration events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates an empty registry.
func New(options ...Option) *Registry {
	r := &Registry{
		components: make(map[string]Component),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if opt != nil {
			opt(r)
		}
	}
	if r.validator == nil {
		r.validator = jsonschema.NewDraftValidator()
	}
	return r
}

// Register validates payload and stores it under name. An invalid schema
// leaves the registry unchanged and returns a SchemaValidationError naming
// the component.
func (r *Registry) Register(ctx context.Context, name string, payload map[string]any) error {
	return r.register(ctx, name, payload, schema.SourceInline(name).Location())
}

// RegisterDocument decodes a JSON, JSONC, or YAML document and registers it.
func (r *Registry) RegisterDocument(ctx context.Context, name string, doc schema.Document) error {
	payload, err := doc.Payload()
	if err != nil {
		return r.reject(name, err, fmt.Sprintf("component %q schema could not be decoded", name))
	}
	return r.register(ctx, name, payload, doc.Location())
}

func (r *Registry) register(ctx context.Context, name string, payload map[string]any, location string) error {
	if strings.TrimSpace(name) == "" {
		return &tgerrors.Error{
			Kind:    tgerrors.KindSchemaValidation,
			Message: "component name is required",
		}
	}
	if payload == nil {
		return r.reject(name, nil, fmt.Sprintf("component %q schema must be an object", name))
	}

	copied, _ := schema.NormalizeValue(payload).(map[string]any)
	if err := r.validator.ValidateSchema(ctx, name, copied); err != nil {
		return r.reject(name, err, fmt.Sprintf("component %q schema is invalid", name))
	}

	component := Component{
		Name:     name,
		Payload:  copied,
		Node:     schema.Build(copied),
		Location: location,
	}

	r.mu.Lock()
	_, replaced := r.components[name]
	r.components[name] = component
	r.mu.Unlock()

	r.logger.Debug("component registered",
		"component", name,
		"location", location,
		"replaced", replaced,
		"paths", len(component.Node.Paths()),
	)
	return nil
}

func (r *Registry) reject(name string, cause error, message string) error {
	r.logger.Warn("component rejected", "component", name, "error", cause)
	return &tgerrors.Error{
		Kind:      tgerrors.KindSchemaValidation,
		Message:   message,
		Component: name,
		Issues:    validation.Issues(cause),
		Cause:     cause,
	}
}

// Lookup retrieves a component by name.
func (r *Registry) Lookup(name string) (Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	component, ok := r.components[name]
	return component, ok
}

// Has reports whether a component is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// List returns the registered component names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.components))
	for name := range r.components {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Schemas resolves names to schema trees in the given order. Unknown names
// are skipped; a template naming a component that does not exist simply gets
// no fields from it.
func (r *Registry) Schemas(names []string) []*schema.Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*schema.Node, 0, len(names))
	for _, name := range names {
		if component, ok := r.components[name]; ok {
			out = append(out, component.Node)
		}
	}
	return out
}
