package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalLoader "github.com/goliatone/go-tplguard/internal/jsonschema/loader"
	"github.com/goliatone/go-tplguard/pkg/codec"
	"github.com/goliatone/go-tplguard/pkg/compiler"
	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/jsonschema"
	"github.com/goliatone/go-tplguard/pkg/registry"
	"github.com/goliatone/go-tplguard/pkg/render"
	"github.com/goliatone/go-tplguard/pkg/render/template"
	"github.com/goliatone/go-tplguard/pkg/render/template/jinja"
	"github.com/goliatone/go-tplguard/pkg/schema"
)

// Observer is notified once per compiled or rendered template.
type Observer func(name string, elapsed time.Duration, err error)

// Option customises the orchestrator configuration.
type Option func(*Orchestrator)

// WithPolicy sets the batch policy used by CompileTemplates.
func WithPolicy(policy compiler.Policy) Option {
	return func(o *Orchestrator) {
		o.policy = policy
	}
}

// WithStrict toggles strict rendering. Enabled by default.
func WithStrict(strict bool) Option {
	return func(o *Orchestrator) {
		o.strict = strict
	}
}

// WithGlobals seeds values every template can read without declaring them.
func WithGlobals(globals map[string]any) Option {
	return func(o *Orchestrator) {
		if len(globals) == 0 {
			return
		}
		if o.globals == nil {
			o.globals = make(map[string]any, len(globals))
		}
		for key, value := range globals {
			o.globals[key] = value
		}
	}
}

// WithTranslator exposes the translate and current_locale helpers to
// templates.
func WithTranslator(t render.Translator, cfg render.TemplateI18nConfig) Option {
	return func(o *Orchestrator) {
		o.translator = t
		o.i18n = cfg
	}
}

// WithSanitizer filters rendered output through s.
func WithSanitizer(s render.Sanitizer) Option {
	return func(o *Orchestrator) {
		o.sanitizer = s
	}
}

// WithLogger sets the logger handed to every stage.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithDialect selects the structural validator for component schemas.
func WithDialect(dialect jsonschema.Dialect) Option {
	return func(o *Orchestrator) {
		o.dialect = dialect
	}
}

// WithValidator injects a component schema validator, overriding the dialect.
func WithValidator(v jsonschema.Validator) Option {
	return func(o *Orchestrator) {
		o.validator = v
	}
}

// WithLoaderOptions configures how component schema references are fetched.
func WithLoaderOptions(options ...jsonschema.LoaderOption) Option {
	return func(o *Orchestrator) {
		o.loaderOptions = append(o.loaderOptions, options...)
	}
}

// WithEngineOptions forwards options to the pongo2 engine.
func WithEngineOptions(options ...jinja.Option) Option {
	return func(o *Orchestrator) {
		o.engineOptions = append(o.engineOptions, options...)
	}
}

// WithCompileObserver registers a per-template compile hook.
func WithCompileObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.compileObservers = append(o.compileObservers, observer)
		}
	}
}

// WithRenderObserver registers a per-render hook.
func WithRenderObserver(observer Observer) Option {
	return func(o *Orchestrator) {
		if observer != nil {
			o.renderObservers = append(o.renderObservers, observer)
		}
	}
}

// Orchestrator coordinates registration, compilation, and rendering over one
// registry and one engine. It applies sensible defaults (atomic batches,
// strict rendering, Draft 2020-12 schemas) while remaining open to dependency
// injection for advanced callers.
type Orchestrator struct {
	policy        compiler.Policy
	strict        bool
	globals       map[string]any
	translator    render.Translator
	i18n          render.TemplateI18nConfig
	sanitizer     render.Sanitizer
	logger        *slog.Logger
	dialect       jsonschema.Dialect
	validator     jsonschema.Validator
	loaderOptions []jsonschema.LoaderOption
	engineOptions []jinja.Option

	compileObservers []Observer
	renderObservers  []Observer

	registry *registry.Registry
	engine   *jinja.Engine
	compiler *compiler.Compiler
	renderer *render.Renderer

	initialiseErr error
}

// New constructs an Orchestrator applying any provided options. A failed
// engine setup is reported by every later call.
func New(options ...Option) *Orchestrator {
	o := &Orchestrator{
		policy: compiler.PolicyAtomic,
		strict: true,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(o)
	}
	o.initialiseErr = o.applyDefaults()
	return o
}

func (o *Orchestrator) applyDefaults() error {
	validator := o.validator
	if validator == nil {
		var err error
		validator, err = jsonschema.ValidatorFor(o.dialect, o.schemaLoader())
		if err != nil {
			return err
		}
	}
	o.registry = registry.New(
		registry.WithValidator(validator),
		registry.WithLogger(o.logger),
	)

	engineOptions := []jinja.Option{
		jinja.WithStrict(o.strict),
		jinja.WithLogger(o.logger),
		jinja.WithGlobalData(o.globals),
	}
	if o.translator != nil {
		engineOptions = append(engineOptions, jinja.WithTemplateFunc(render.TemplateI18nFuncs(o.translator, o.i18n)))
	}
	engineOptions = append(engineOptions, o.engineOptions...)

	engine, err := jinja.New(engineOptions...)
	if err != nil {
		return fmt.Errorf("orchestrator: engine: %w", err)
	}
	o.engine = engine

	compilerOptions := []compiler.Option{
		compiler.WithPolicy(o.policy),
		compiler.WithLogger(o.logger),
	}
	for _, observer := range o.compileObservers {
		compilerOptions = append(compilerOptions, compiler.WithObserver(compiler.Observer(observer)))
	}
	o.compiler = compiler.New(engine, o.registry, compilerOptions...)

	renderOptions := []render.Option{render.WithLogger(o.logger)}
	if o.sanitizer != nil {
		renderOptions = append(renderOptions, render.WithSanitizer(o.sanitizer))
	}
	for _, observer := range o.renderObservers {
		renderOptions = append(renderOptions, render.WithObserver(render.Observer(observer)))
	}
	o.renderer = render.New(engine, renderOptions...)
	return nil
}

func (o *Orchestrator) schemaLoader() jsonschema.Loader {
	return internalLoader.New(jsonschema.NewLoaderOptions(o.loaderOptions...))
}

func (o *Orchestrator) ready() error {
	if o == nil {
		return errors.New("orchestrator: nil receiver")
	}
	return o.initialiseErr
}

// RegisterComponent validates schema and stores it under name. The schema is
// any structured value: a map, a JSON-compatible struct, or raw JSON bytes.
func (o *Orchestrator) RegisterComponent(ctx context.Context, name string, schemaValue any) error {
	if err := o.ready(); err != nil {
		return err
	}

	var payload map[string]any
	switch v := schemaValue.(type) {
	case map[string]any:
		payload = v
	case []byte:
		decoded, err := schema.DecodePayload(v)
		if err != nil {
			return &tgerrors.Error{
				Kind:      tgerrors.KindSchemaValidation,
				Message:   fmt.Sprintf("component %q schema could not be decoded", name),
				Component: name,
				Cause:     err,
			}
		}
		payload = decoded
	case nil:
	default:
		raw, err := codec.Encode(codec.FormatJSON, v)
		if err == nil {
			payload, err = codec.DecodeObject(codec.FormatJSON, raw)
		}
		if err != nil {
			return &tgerrors.Error{
				Kind:      tgerrors.KindSchemaValidation,
				Message:   fmt.Sprintf("component %q schema must be an object", name),
				Component: name,
				Cause:     err,
			}
		}
	}
	return o.registry.Register(ctx, name, payload)
}

// RegisterEncoded decodes raw in format and registers it under name.
func (o *Orchestrator) RegisterEncoded(ctx context.Context, name string, format codec.Format, raw []byte) error {
	if err := o.ready(); err != nil {
		return err
	}
	payload, err := codec.DecodeObject(format, raw)
	if err != nil {
		return &tgerrors.Error{
			Kind:      tgerrors.KindSchemaValidation,
			Message:   fmt.Sprintf("component %q schema could not be decoded", name),
			Component: name,
			Cause:     err,
		}
	}
	return o.registry.Register(ctx, name, payload)
}

// RegisterSource fetches a schema document through the configured loader and
// registers it under name.
func (o *Orchestrator) RegisterSource(ctx context.Context, name string, src schema.Source) error {
	if err := o.ready(); err != nil {
		return err
	}
	doc, err := o.schemaLoader().Load(ctx, src)
	if err != nil {
		return &tgerrors.Error{
			Kind:      tgerrors.KindSchemaValidation,
			Message:   fmt.Sprintf("component %q schema could not be loaded", name),
			Component: name,
			Cause:     err,
		}
	}
	return o.registry.RegisterDocument(ctx, name, doc)
}

// CompileTemplates compiles every well-formed entity as one batch under the
// configured policy. Entities without a template record are skipped.
func (o *Orchestrator) CompileTemplates(ctx context.Context, entities []map[string]any) error {
	if err := o.ready(); err != nil {
		return err
	}
	sources := SourcesFromEntities(entities)
	o.logger.Debug("compiling entities", "entities", len(entities), "templates", len(sources))
	return o.compiler.Compile(ctx, sources)
}

// Compile compiles sources as one batch under the configured policy.
func (o *Orchestrator) Compile(ctx context.Context, sources []compiler.TemplateSource) error {
	if err := o.ready(); err != nil {
		return err
	}
	return o.compiler.Compile(ctx, sources)
}

// Check reports, for each source, everything compilation would reject without
// keeping any template.
func (o *Orchestrator) Check(ctx context.Context, sources []compiler.TemplateSource) ([]compiler.Finding, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}
	return o.compiler.Check(ctx, sources)
}

// RenderTemplate renders name with data as context.
func (o *Orchestrator) RenderTemplate(ctx context.Context, name string, data any) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	return o.renderer.Render(ctx, name, data)
}

// RenderTemplateJSON renders name with a JSON encoded context.
func (o *Orchestrator) RenderTemplateJSON(ctx context.Context, name string, raw []byte) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	return o.renderer.RenderJSON(ctx, name, raw)
}

// RenderTemplateEncoded renders name with a context encoded in format.
func (o *Orchestrator) RenderTemplateEncoded(ctx context.Context, name string, format codec.Format, raw []byte) (string, error) {
	if err := o.ready(); err != nil {
		return "", err
	}
	return o.renderer.RenderEncoded(ctx, name, format, raw)
}

// Component returns the registered component called name.
func (o *Orchestrator) Component(name string) (registry.Component, bool) {
	if o.ready() != nil {
		return registry.Component{}, false
	}
	return o.registry.Lookup(name)
}

// Components lists registered component names in sorted order.
func (o *Orchestrator) Components() []string {
	if o.ready() != nil {
		return nil
	}
	return o.registry.List()
}

// Template describes the compiled template called name.
func (o *Orchestrator) Template(name string) (template.Info, bool) {
	if o.ready() != nil {
		return template.Info{}, false
	}
	return o.engine.Lookup(name)
}

// Templates lists compiled template names in sorted order.
func (o *Orchestrator) Templates() []string {
	if o.ready() != nil {
		return nil
	}
	return o.engine.List()
}

// Policy reports the batch policy used by CompileTemplates.
func (o *Orchestrator) Policy() compiler.Policy {
	return o.policy
}
