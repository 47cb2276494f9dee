package jinja

import (
	"fmt"
	"io"
	"io/fs"
	"strings"
)

// MissingTemplateError is returned by the engine's loader when a template
// references a name with no source. It matches fs.ErrNotExist.
type MissingTemplateError struct {
	Name string
}

func (e *MissingTemplateError) Error() string {
	return fmt.Sprintf("template %q not found", e.Name)
}

// Is reports fs.ErrNotExist equivalence.
func (e *MissingTemplateError) Is(target error) bool {
	return target == fs.ErrNotExist
}

// memoryLoader serves template sources from the engine: the open
// transaction's staged sources first, then committed ones. It is only called
// by pongo2 while the engine lock is held (write lock while parsing, read lock
// while rendering lazy includes), so it reads the maps directly.
type memoryLoader struct {
	engine *Engine
}

// Abs treats every name as absolute; template names are flat keys.
func (l memoryLoader) Abs(_, name string) string {
	return name
}

func (l memoryLoader) Get(path string) (io.Reader, error) {
	if tx := l.engine.tx; tx != nil {
		if src, ok := tx.source(path); ok {
			return strings.NewReader(src), nil
		}
		tx.misses = append(tx.misses, path)
		return nil, &MissingTemplateError{Name: path}
	}
	if src, ok := l.engine.sources[path]; ok {
		return strings.NewReader(src), nil
	}
	return nil, &MissingTemplateError{Name: path}
}
