package jinja

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/flosch/pongo2/v6"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
)

// Option configures the engine before construction.
type Option func(*config)

type config struct {
	strict     bool
	trimBlocks bool
	banned     []string
	templateFn map[string]any
	globalData map[string]any
	logger     *slog.Logger
}

// WithStrict toggles strict rendering: every variable a template reads must
// be present in the render context. Enabled by default.
func WithStrict(strict bool) Option {
	return func(cfg *config) {
		cfg.strict = strict
	}
}

// WithTrimBlocks removes the first newline after a block tag and strips
// leading whitespace before it.
func WithTrimBlocks(enabled bool) Option {
	return func(cfg *config) {
		cfg.trimBlocks = enabled
	}
}

// WithBannedTags rejects templates using any of the named tags. Useful to
// forbid ssi or import in untrusted sources.
func WithBannedTags(tags ...string) Option {
	return func(cfg *config) {
		cfg.banned = append(cfg.banned, tags...)
	}
}

// WithTemplateFunc registers helper functions or filters when the engine loads.
func WithTemplateFunc(funcs map[string]any) Option {
	return func(cfg *config) {
		if len(funcs) == 0 {
			return
		}
		if cfg.templateFn == nil {
			cfg.templateFn = make(map[string]any, len(funcs))
		}
		for name, fn := range funcs {
			cfg.templateFn[strings.TrimSpace(name)] = fn
		}
	}
}

// WithGlobalData seeds global context values available to every template.
// Global names are never reported as template variables.
func WithGlobalData(data map[string]any) Option {
	return func(cfg *config) {
		if len(data) == 0 {
			return
		}
		if cfg.globalData == nil {
			cfg.globalData = make(map[string]any, len(data))
		}
		for key, value := range data {
			cfg.globalData[strings.TrimSpace(key)] = value
		}
	}
}

// WithLogger sets the logger used for compile and render events.
func WithLogger(logger *slog.Logger) Option {
	return func(cfg *config) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

type compiled struct {
	info template.Info
	tpl  *pongo2.Template
}

// Engine satisfies template.Engine with a pongo2 template set whose only
// loader is the engine's own in-memory source table.
type Engine struct {
	mu sync.RWMutex

	templateSet *pongo2.TemplateSet
	sources     map[string]string
	compiled    map[string]*compiled
	tx          *txn

	strict bool
	logger *slog.Logger
}

var _ template.Engine = (*Engine)(nil)

// New constructs an Engine using the provided configuration options.
func New(options ...Option) (*Engine, error) {
	cfg := &config{
		strict: true,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	engine := &Engine{
		sources:  make(map[string]string),
		compiled: make(map[string]*compiled),
		strict:   cfg.strict,
		logger:   cfg.logger,
	}
	engine.templateSet = pongo2.NewSet("tplguard", memoryLoader{engine: engine})
	engine.templateSet.Globals = make(pongo2.Context)
	if cfg.trimBlocks {
		engine.templateSet.Options.TrimBlocks = true
		engine.templateSet.Options.LStripBlocks = true
	}
	for _, tag := range cfg.banned {
		if err := engine.templateSet.BanTag(tag); err != nil {
			return nil, fmt.Errorf("jinja: ban tag %q: %w", tag, err)
		}
	}
	registerDefaultFilters()

	if err := engine.GlobalContext(cfg.globalData); err != nil {
		return nil, fmt.Errorf("jinja: apply global data: %w", err)
	}
	for name, fn := range cfg.templateFn {
		if err := engine.registerTemplateFunc(name, fn); err != nil {
			return nil, fmt.Errorf("jinja: register template func %q: %w", name, err)
		}
	}

	return engine, nil
}

// Update runs fn with exclusive access to the template set. Templates kept
// through the transaction are committed when fn returns, whatever fn returns.
func (e *Engine) Update(fn func(tx template.Txn) error) error {
	if e == nil || e.templateSet == nil {
		return errors.New("jinja: engine is nil")
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tx := newTxn(e)
	e.tx = tx
	defer func() {
		e.tx = nil
	}()

	err := fn(tx)
	changed := tx.commit()
	e.tx = nil

	e.refreshDependents(changed)
	return err
}

// refreshDependents re-parses committed templates that include, extend, or
// import a changed template, dependencies first. pongo2 embeds literal targets
// at parse time, so without this they would keep rendering the replaced
// source. A dependent that no longer parses keeps its previous compiled form.
func (e *Engine) refreshDependents(changed []string) {
	if len(changed) == 0 {
		return
	}
	dirty := make(map[string]bool, len(changed))
	for _, name := range changed {
		dirty[name] = true
	}

	for _, name := range e.dependents(dirty) {
		c := e.compiled[name]
		info := c.info
		info.Reads = e.requiredVariables(c)
		tpl, err := e.templateSet.FromFile(name)
		if err != nil {
			e.logger.Warn("dependent template kept stale", "template", name, "error", err)
			e.compiled[name] = &compiled{info: info, tpl: c.tpl}
			continue
		}
		e.compiled[name] = &compiled{info: info, tpl: tpl}
	}
}

// dependents returns every committed template that transitively depends on a
// dirty name, ordered so a template follows the templates it pulls in. Dirty
// templates that depend on other dirty templates are included.
func (e *Engine) dependents(dirty map[string]bool) []string {
	names := make([]string, 0, len(e.compiled))
	for name := range e.compiled {
		names = append(names, name)
	}
	sort.Strings(names)

	stale := make(map[string]bool)
	for grew := true; grew; {
		grew = false
		for _, name := range names {
			if stale[name] {
				continue
			}
			for _, dep := range e.compiled[name].info.Dependencies {
				if dirty[dep] || stale[dep] {
					stale[name] = true
					grew = true
					break
				}
			}
		}
	}

	var out []string
	visited := make(map[string]bool, len(stale))
	var visit func(name string)
	visit = func(name string) {
		if visited[name] || !stale[name] {
			return
		}
		visited[name] = true
		for _, dep := range e.compiled[name].info.Dependencies {
			visit(dep)
		}
		out = append(out, name)
	}
	for _, name := range names {
		visit(name)
	}
	return out
}

// Render executes the compiled template registered under name.
func (e *Engine) Render(name string, data any, out ...io.Writer) (string, error) {
	if e == nil || e.templateSet == nil {
		return "", errors.New("jinja: engine is nil")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.compiled[name]
	if !ok {
		return "", tgerrors.TemplateNotFound(name)
	}

	viewContext, err := convertToContext(data)
	if err != nil {
		return "", tgerrors.Wrap(tgerrors.KindParse, "render context could not be decoded", err).WithTemplate(name)
	}

	if e.strict {
		if missing := e.undefined(tmpl, viewContext); missing != "" {
			return "", &tgerrors.Error{
				Kind:     tgerrors.KindRender,
				Message:  fmt.Sprintf("undefined variable '%s'", missing),
				Template: name,
				Variable: missing,
			}
		}
	}

	var buf bytes.Buffer
	if err := tmpl.tpl.ExecuteWriter(viewContext, &buf); err != nil {
		return "", tgerrors.Wrap(tgerrors.KindRender, fmt.Sprintf("template %q failed to render", name), err).WithTemplate(name)
	}

	rendered := buf.String()
	for _, w := range out {
		if _, err := io.WriteString(w, rendered); err != nil {
			return "", err
		}
	}
	return rendered, nil
}

// Lookup returns the compiled template registered under name.
func (e *Engine) Lookup(name string) (template.Info, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	tmpl, ok := e.compiled[name]
	if !ok {
		return template.Info{}, false
	}
	return cloneInfo(tmpl.info), true
}

// List returns the compiled template names, sorted.
func (e *Engine) List() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()

	names := make([]string, 0, len(e.compiled))
	for name := range e.compiled {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterFilter registers a template filter. pongo2 filters are process-wide,
// so a name can only be registered once.
func (e *Engine) RegisterFilter(name string, fn func(input any, param any) (any, error)) error {
	if strings.TrimSpace(name) == "" || fn == nil {
		return errors.New("jinja: filter name and function required")
	}

	filter := func(in *pongo2.Value, param *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		var paramVal any
		if param != nil {
			paramVal = param.Interface()
		}
		result, err := fn(in.Interface(), paramVal)
		if err != nil {
			return nil, &pongo2.Error{Sender: "custom_filter", OrigError: err}
		}
		return pongo2.AsValue(result), nil
	}

	if pongo2.FilterExists(name) {
		return fmt.Errorf("jinja: filter %q already exists", name)
	}
	return pongo2.RegisterFilter(name, filter)
}

// GlobalContext merges data into the globals every template can read.
func (e *Engine) GlobalContext(data any) error {
	if e == nil || e.templateSet == nil {
		return errors.New("jinja: engine is nil")
	}
	if data == nil {
		return nil
	}

	globalCtx, err := convertToContext(data)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templateSet.Globals.Update(globalCtx)
	return nil
}

func (e *Engine) registerTemplateFunc(name string, fn any) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" || fn == nil {
		return nil
	}

	if filter, ok := fn.(pongo2.FilterFunction); ok {
		if pongo2.FilterExists(trimmed) {
			return nil
		}
		return pongo2.RegisterFilter(trimmed, filter)
	}

	if !isCallable(fn) {
		return fmt.Errorf("jinja: %T is neither a filter nor a function", fn)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.templateSet.Globals[trimmed] = fn
	return nil
}

// globalNames lists the names the template set provides. Callers hold e.mu.
func (e *Engine) globalNames() []string {
	names := make([]string, 0, len(e.templateSet.Globals))
	for name := range e.templateSet.Globals {
		names = append(names, name)
	}
	return names
}

func cloneInfo(info template.Info) template.Info {
	info.Components = append([]string(nil), info.Components...)
	info.Variables = append([]string(nil), info.Variables...)
	info.Dependencies = append([]string(nil), info.Dependencies...)
	info.Reads = append([]string(nil), info.Reads...)
	return info
}

func isCallable(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.IsValid() && rv.Kind() == reflect.Func
}
