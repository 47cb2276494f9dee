package template

import "io"

// Info describes a compiled template.
type Info struct {
	Name   string
	Source string
	// Components are the component names the template declared.
	Components []string
	// Variables are the undeclared variable paths the template reads,
	// deduplicated and sorted.
	Variables []string
	// Dependencies are the templates pulled in through include, extends, or
	// import, in first-use order. Optional includes count once their target
	// exists.
	Dependencies []string
	// Reads are Variables plus the variables of every template reached
	// through Dependencies, sorted. Pulled-in templates render against the
	// including template's context, so Reads is what its components must
	// cover.
	Reads []string
}

// Engine owns the compiled template set. Compilation happens inside Update so
// a batch observes and mutates the set under one lock.
type Engine interface {
	Update(fn func(tx Txn) error) error
	Render(name string, data any, out ...io.Writer) (string, error)
	Lookup(name string) (Info, bool)
	List() []string
	RegisterFilter(name string, fn func(input any, param any) (any, error)) error
	GlobalContext(data any) error
}

// Txn stages templates while a batch compiles. Parsed templates are visible
// to later parses in the same batch (so one may include another) but only
// Kept templates are committed when Update returns.
type Txn interface {
	// Parse analyses and parses source under name.
	Parse(name, source string) (Info, error)
	// Keep marks a parsed template for commit with its declared components.
	Keep(name string, components []string)
	// Drop discards the staged source for name and evicts any committed
	// template with that name at commit time.
	Drop(name string)
	// Reset discards everything staged so far, including evictions.
	Reset()
	// Dependents lists the templates visible to the batch that reach, through
	// their dependencies, a template it parsed or dropped. Reads are
	// recomputed against the batch, so a template parsed before one of its
	// dependencies was replaced reports the replacement's variables.
	Dependents() []Info
}
