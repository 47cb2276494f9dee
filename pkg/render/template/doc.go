// Package template defines the engine contract the compiler and renderer
// depend on. Concrete engines live in subpackages (see jinja).
package template
