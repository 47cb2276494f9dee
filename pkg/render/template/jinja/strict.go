package jinja

import (
	"slices"
	"sort"
	"strings"

	"github.com/flosch/pongo2/v6"
)

// undefined returns the first variable path, in sorted order, that the
// template or anything it includes reads but the context does not define.
// Paths are walked down to the first value that is not an object; only keys
// of objects can be missing.
func (e *Engine) undefined(tmpl *compiled, ctx pongo2.Context) string {
	for _, path := range e.requiredVariables(tmpl) {
		if !defined(ctx, strings.Split(path, ".")) {
			return path
		}
	}
	return ""
}

func (e *Engine) requiredVariables(tmpl *compiled) []string {
	return collectReads(tmpl.info.Name, tmpl.info.Variables, tmpl.info.Dependencies, func(name string) *compiled {
		return e.compiled[name]
	})
}

// collectReads returns vars plus the variables of every template reachable
// from deps, sorted. lookup resolves a name as the caller sees the set and
// returns nil for templates that do not exist.
func collectReads(root string, vars, deps []string, lookup func(string) *compiled) []string {
	seen := map[string]bool{root: true}
	set := make(map[string]struct{}, len(vars))
	for _, v := range vars {
		set[v] = struct{}{}
	}

	queue := slices.Clone(deps)
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		if seen[name] {
			continue
		}
		seen[name] = true
		current := lookup(name)
		if current == nil {
			continue
		}
		for _, v := range current.info.Variables {
			set[v] = struct{}{}
		}
		queue = append(queue, current.info.Dependencies...)
	}

	out := make([]string, 0, len(set))
	for v := range set {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func defined(ctx pongo2.Context, path []string) bool {
	var current any = map[string]any(ctx)
	for _, segment := range path {
		object, ok := current.(map[string]any)
		if !ok {
			return true
		}
		value, ok := object[segment]
		if !ok {
			return false
		}
		current = value
	}
	return true
}
