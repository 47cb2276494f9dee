// Package tplguard registers component schemas, compiles templates that may
// only read what their declared components expose, and renders them.
//
//	rt := tplguard.New()
//	_ = rt.RegisterComponent(ctx, "user", map[string]any{
//		"properties": map[string]any{"name": map[string]any{"type": "string"}},
//	})
//	_ = rt.CompileTemplates(ctx, []map[string]any{
//		tplguard.Entity("hello", "Hello {{ name }}!", "user"),
//	})
//	out, _ := rt.RenderTemplate(ctx, "hello", map[string]any{"name": "World"})
package tplguard

import (
	"context"

	"github.com/goliatone/go-tplguard/pkg/compiler"
	"github.com/goliatone/go-tplguard/pkg/manifest"
	"github.com/goliatone/go-tplguard/pkg/orchestrator"
)

// TemplateKey is the entity attribute carrying a template record.
const TemplateKey = orchestrator.TemplateKey

// Runtime owns one component registry and one compiled template set.
type Runtime = orchestrator.Orchestrator

// Option customises a Runtime.
type Option = orchestrator.Option

// TemplateSource is a template to compile with its declared components.
type TemplateSource = compiler.TemplateSource

// New constructs a Runtime. Batches are atomic and rendering is strict unless
// options say otherwise.
func New(options ...Option) *Runtime {
	return orchestrator.New(options...)
}

// Entity builds the entity shape CompileTemplates accepts.
func Entity(name, source string, components ...string) map[string]any {
	return orchestrator.Entity(TemplateSource{Name: name, Source: source, Components: components})
}

// LoadManifestFile reads the manifest at path and returns a Runtime configured
// and loaded from it.
func LoadManifestFile(ctx context.Context, path string, options ...Option) (*Runtime, error) {
	m, err := manifest.LoadFile(path)
	if err != nil {
		return nil, err
	}
	return orchestrator.FromManifest(ctx, m, options...)
}
