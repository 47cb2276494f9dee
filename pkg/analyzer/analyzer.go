// Package analyzer statically extracts the context variables a Jinja/Django
// style template reads and the templates it pulls in.
//
// The analysis is conservative: loop targets, macro parameters, set/with
// bindings, imported names, and engine globals are excluded, everything else
// referenced in an expression is reported as a dotted path. A binding made in
// a body that may not run, such as an if branch, ends with that body.
package analyzer

import (
	"slices"
	"sort"
	"strings"
)

// Options tunes an analysis.
type Options struct {
	// Globals are names the engine provides itself; they are never reported.
	Globals []string
}

// Result is the outcome of analysing one template source.
type Result struct {
	// Variables holds every undeclared variable path, deduplicated and sorted.
	Variables []string
	// Dependencies lists include/extends/import targets in first-use order.
	Dependencies []string
	// Optional lists if_exists include targets, which may not exist.
	Optional []string
	// Dynamic lists the tags whose target template is an expression evaluated
	// at render time.
	Dynamic []string
}

// Analyze reads source and returns its variables and dependencies.
func Analyze(source string, opts Options) (Result, error) {
	segments, err := lex(source)
	if err != nil {
		return Result{}, err
	}

	a := &analysis{
		globals:   make(map[string]struct{}, len(opts.Globals)),
		variables: make(map[string]struct{}),
		scopes:    []scope{{names: map[string]struct{}{}}},
	}
	for _, name := range opts.Globals {
		a.globals[name] = struct{}{}
	}

	for _, seg := range segments {
		switch seg.kind {
		case segmentVariable:
			err = a.variable(seg.body)
		case segmentTag:
			err = a.tag(seg.body)
		}
		if err != nil {
			return Result{}, syntaxErrorAt(source, seg.offset, err.Error())
		}
	}

	return a.result(), nil
}

type scope struct {
	tag   string
	names map[string]struct{}
}

type analysis struct {
	globals      map[string]struct{}
	scopes       []scope
	variables    map[string]struct{}
	dependencies []string
	optional     []string
	dynamic      []string
}

func (a *analysis) result() Result {
	vars := make([]string, 0, len(a.variables))
	for path := range a.variables {
		vars = append(vars, path)
	}
	sort.Strings(vars)
	return Result{
		Variables:    vars,
		Dependencies: a.dependencies,
		Optional:     a.optional,
		Dynamic:      a.dynamic,
	}
}

func (a *analysis) push(tag string, names ...string) {
	s := scope{tag: tag, names: make(map[string]struct{}, len(names))}
	for _, name := range names {
		s.names[name] = struct{}{}
	}
	a.scopes = append(a.scopes, s)
}

// pop closes the innermost scope when it was opened by tag. The root scope is
// never popped, so a stray end tag cannot unbind top-level names.
func (a *analysis) pop(tag string) {
	if len(a.scopes) > 1 && a.scopes[len(a.scopes)-1].tag == tag {
		a.scopes = a.scopes[:len(a.scopes)-1]
	}
}

func (a *analysis) innermost() string {
	return a.scopes[len(a.scopes)-1].tag
}

func (a *analysis) bind(names ...string) {
	current := a.scopes[len(a.scopes)-1].names
	for _, name := range names {
		current[name] = struct{}{}
	}
}

func (a *analysis) bound(name string) bool {
	if _, ok := a.globals[name]; ok {
		return true
	}
	for i := len(a.scopes) - 1; i >= 0; i-- {
		if _, ok := a.scopes[i].names[name]; ok {
			return true
		}
	}
	return false
}

func (a *analysis) depend(name string) {
	if !slices.Contains(a.dependencies, name) {
		a.dependencies = append(a.dependencies, name)
	}
}

// read records every unbound path an expression reads.
func (a *analysis) read(tokens []token) {
	for _, path := range paths(tokens) {
		if a.bound(path[0]) {
			continue
		}
		a.variables[strings.Join(path, ".")] = struct{}{}
	}
}

func (a *analysis) variable(body string) error {
	if body == "" {
		return errorf("empty variable tag")
	}
	tokens, err := tokenize(body)
	if err != nil {
		return err
	}
	a.read(tokens)
	return nil
}
