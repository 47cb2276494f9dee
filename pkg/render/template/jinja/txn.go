package jinja

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/goliatone/go-tplguard/pkg/analyzer"
	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/render/template"
)

type txn struct {
	engine  *Engine
	staged  map[string]string
	parsed  map[string]*compiled
	kept    []string
	evicted map[string]struct{}
	// misses records loader lookups that failed during the current parse.
	misses []string
}

var _ template.Txn = (*txn)(nil)

func newTxn(engine *Engine) *txn {
	return &txn{
		engine:  engine,
		staged:  make(map[string]string),
		parsed:  make(map[string]*compiled),
		evicted: make(map[string]struct{}),
	}
}

// source resolves name as the batch currently sees it.
func (tx *txn) source(name string) (string, bool) {
	if src, ok := tx.staged[name]; ok {
		return src, true
	}
	if _, gone := tx.evicted[name]; gone {
		return "", false
	}
	src, ok := tx.engine.sources[name]
	return src, ok
}

// lookup resolves a compiled template as the batch currently sees it.
func (tx *txn) lookup(name string) *compiled {
	if c, ok := tx.parsed[name]; ok {
		return c
	}
	if _, gone := tx.evicted[name]; gone {
		return nil
	}
	return tx.engine.compiled[name]
}

func (tx *txn) dependencies(name string) []string {
	if c := tx.lookup(name); c != nil {
		return c.info.Dependencies
	}
	return nil
}

func (tx *txn) Parse(name, source string) (template.Info, error) {
	if strings.TrimSpace(name) == "" {
		return template.Info{}, tgerrors.New(tgerrors.KindCompile, "template name is required")
	}

	result, analyzeErr := analyzer.Analyze(source, analyzer.Options{Globals: tx.engine.globalNames()})
	deps := result.Dependencies
	if analyzeErr == nil {
		if len(result.Dynamic) > 0 {
			return template.Info{}, tgerrors.Newf(tgerrors.KindCompile,
				"template %q picks its %s target at render time; only string literal targets can be authorized",
				name, result.Dynamic[0]).WithTemplate(name)
		}
		// pongo2 embeds an optional target only when it exists at parse time
		for _, optional := range result.Optional {
			if _, ok := tx.source(optional); ok && !slices.Contains(deps, optional) {
				deps = append(slices.Clone(deps), optional)
			}
		}
		if err := tx.checkDependencies(name, deps); err != nil {
			return template.Info{}, err
		}
	}

	previous, hadPrevious := tx.staged[name]
	restore := func() {
		if hadPrevious {
			tx.staged[name] = previous
		} else {
			delete(tx.staged, name)
		}
	}

	tx.staged[name] = source
	tx.misses = tx.misses[:0]
	tpl, err := tx.engine.templateSet.FromFile(name)
	if err != nil {
		restore()
		tx.engine.logger.Debug("template parse failed", "template", name, "error", err)
		return template.Info{}, classifyParseError(name, err, tx.misses)
	}
	if analyzeErr != nil {
		restore()
		return template.Info{}, tgerrors.Wrap(tgerrors.KindCompile, fmt.Sprintf("variables of template %q could not be determined", name), analyzeErr).WithTemplate(name)
	}

	c := &compiled{
		info: template.Info{
			Name:         name,
			Source:       source,
			Variables:    result.Variables,
			Dependencies: deps,
			Reads:        collectReads(name, result.Variables, deps, tx.lookup),
		},
		tpl: tpl,
	}
	tx.parsed[name] = c
	return cloneInfo(c.info), nil
}

func (tx *txn) checkDependencies(name string, deps []string) error {
	var missing []string
	for _, dep := range deps {
		if dep == name {
			return tgerrors.Newf(tgerrors.KindCompile, "template %q includes itself", name).WithTemplate(name)
		}
		if _, ok := tx.source(dep); !ok {
			missing = append(missing, dep)
		}
	}
	if len(missing) > 0 {
		return tgerrors.MissingDependency(name, missing)
	}
	if cycle := tx.cycle(name, deps); cycle != nil {
		return tgerrors.Newf(tgerrors.KindCompile, "dependency cycle: %s", strings.Join(cycle, " -> ")).WithTemplate(name)
	}
	return nil
}

// cycle returns a dependency path leading from name back to itself, if any.
func (tx *txn) cycle(name string, deps []string) []string {
	seen := make(map[string]bool)
	var walk func(node string, path []string) []string
	walk = func(node string, path []string) []string {
		path = append(slices.Clone(path), node)
		if node == name {
			return path
		}
		if seen[node] {
			return nil
		}
		seen[node] = true
		for _, next := range tx.dependencies(node) {
			if found := walk(next, path); found != nil {
				return found
			}
		}
		return nil
	}

	for _, dep := range deps {
		if found := walk(dep, []string{name}); found != nil {
			return found
		}
	}
	return nil
}

func (tx *txn) Keep(name string, components []string) {
	c, ok := tx.parsed[name]
	if !ok {
		return
	}
	c.info.Components = slices.Clone(components)
	delete(tx.evicted, name)
	if !slices.Contains(tx.kept, name) {
		tx.kept = append(tx.kept, name)
	}
}

func (tx *txn) Drop(name string) {
	delete(tx.staged, name)
	delete(tx.parsed, name)
	tx.kept = slices.DeleteFunc(tx.kept, func(kept string) bool { return kept == name })
	tx.evicted[name] = struct{}{}
}

func (tx *txn) Reset() {
	clear(tx.staged)
	clear(tx.parsed)
	clear(tx.evicted)
	tx.kept = nil
}

func (tx *txn) Dependents() []template.Info {
	affected := make(map[string]bool, len(tx.parsed)+len(tx.evicted))
	for name := range tx.parsed {
		affected[name] = true
	}
	for name := range tx.evicted {
		affected[name] = true
	}
	if len(affected) == 0 {
		return nil
	}

	names := make([]string, 0, len(tx.parsed)+len(tx.engine.compiled))
	for name := range tx.parsed {
		names = append(names, name)
	}
	for name := range tx.engine.compiled {
		if _, shadowed := tx.parsed[name]; !shadowed && !affected[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	reached := make(map[string]bool)
	for grew := true; grew; {
		grew = false
		for _, name := range names {
			if reached[name] {
				continue
			}
			if slices.ContainsFunc(tx.dependencies(name), func(dep string) bool { return affected[dep] }) {
				reached[name] = true
				affected[name] = true
				grew = true
			}
		}
	}

	var out []template.Info
	for _, name := range names {
		if !reached[name] {
			continue
		}
		info := cloneInfo(tx.lookup(name).info)
		info.Reads = collectReads(name, info.Variables, info.Dependencies, tx.lookup)
		out = append(out, info)
	}
	return out
}

// commit applies evictions and kept templates and returns the names whose
// committed source changed.
func (tx *txn) commit() []string {
	e := tx.engine
	changed := make([]string, 0, len(tx.evicted)+len(tx.kept))
	for name := range tx.evicted {
		if _, ok := e.compiled[name]; ok {
			changed = append(changed, name)
		}
		delete(e.sources, name)
		delete(e.compiled, name)
	}
	for _, name := range tx.kept {
		c := tx.parsed[name]
		e.sources[name] = c.info.Source
		e.compiled[name] = c
		changed = append(changed, name)
	}
	if len(changed) > 0 {
		e.logger.Debug("templates committed", "kept", tx.kept, "evicted", len(tx.evicted))
	}
	return changed
}
