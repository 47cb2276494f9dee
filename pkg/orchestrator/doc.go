// Package orchestrator wires the component registry, the pongo2 engine, the
// template compiler, and the renderer into one runtime, providing dependency
// injection friendly helpers for consumers that prefer a single entry point.
package orchestrator
