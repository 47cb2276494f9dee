package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/goliatone/go-tplguard/pkg/compiler"
	"github.com/goliatone/go-tplguard/pkg/jsonschema"
	"github.com/goliatone/go-tplguard/pkg/manifest"
	"github.com/goliatone/go-tplguard/pkg/render"
)

// DefaultLocale is the fallback locale for manifest translations when it is
// among the declared locales.
const DefaultLocale = "en"

// ManifestOptions returns the options a manifest's settings imply: batch
// policy, strict mode, schema dialect, globals, translations, and where
// component file references resolve.
func ManifestOptions(m *manifest.Manifest) ([]Option, error) {
	if m == nil {
		return nil, errors.New("orchestrator: manifest is nil")
	}

	policy, err := compiler.ParsePolicy(m.Policy)
	if err != nil {
		return nil, err
	}
	dialect, err := jsonschema.ParseDialect(m.Dialect)
	if err != nil {
		return nil, err
	}

	options := []Option{
		WithPolicy(policy),
		WithDialect(dialect),
		WithGlobals(m.Globals),
	}
	if m.Strict != nil {
		options = append(options, WithStrict(*m.Strict))
	}
	if m.FS != nil {
		options = append(options, WithLoaderOptions(jsonschema.WithFileSystem(m.FS)))
	}
	if m.BaseDir != "" {
		options = append(options, WithLoaderOptions(jsonschema.WithBaseDir(m.BaseDir)))
	}

	if len(m.Translations) > 0 {
		translator, err := render.NewCatalogTranslator(fallbackLocale(m.Translations), m.Translations)
		if err != nil {
			return nil, fmt.Errorf("orchestrator: translations: %w", err)
		}
		options = append(options, WithTranslator(translator, render.TemplateI18nConfig{}))
	}
	return options, nil
}

func fallbackLocale(translations map[string]map[string]string) string {
	if _, ok := translations[DefaultLocale]; ok {
		return DefaultLocale
	}
	locales := make([]string, 0, len(translations))
	for locale := range translations {
		locales = append(locales, locale)
	}
	sort.Strings(locales)
	return locales[0]
}

// FromManifest builds an orchestrator configured by m, then loads it. Extra
// options apply after the manifest's own.
func FromManifest(ctx context.Context, m *manifest.Manifest, options ...Option) (*Orchestrator, error) {
	manifestOptions, err := ManifestOptions(m)
	if err != nil {
		return nil, err
	}
	o := New(append(manifestOptions, options...)...)
	if err := o.LoadManifest(ctx, m); err != nil {
		return o, err
	}
	return o, nil
}

// LoadManifest registers the manifest's components, then compiles its
// templates as one batch. Component failures stop the load before any
// template compiles.
func (o *Orchestrator) LoadManifest(ctx context.Context, m *manifest.Manifest) error {
	if err := o.ready(); err != nil {
		return err
	}
	if m == nil {
		return errors.New("orchestrator: manifest is nil")
	}

	if err := o.RegisterComponents(ctx, m); err != nil {
		return err
	}
	return o.compiler.Compile(ctx, m.Templates)
}

// RegisterComponents registers every component the manifest declares.
func (o *Orchestrator) RegisterComponents(ctx context.Context, m *manifest.Manifest) error {
	if err := o.ready(); err != nil {
		return err
	}
	for _, component := range m.Components {
		var err error
		if component.Source != nil {
			err = o.RegisterSource(ctx, component.Name, component.Source)
		} else {
			err = o.registry.Register(ctx, component.Name, component.Schema)
		}
		if err != nil {
			o.logger.Warn("manifest component rejected",
				"manifest", m.Location,
				"component", component.Name,
				"error", err,
			)
			return err
		}
	}
	return nil
}
