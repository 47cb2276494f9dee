// Package resolver decides whether a dotted variable path is exposed by a set
// of component schemas.
//
// A path is authorized when any schema authorizes it. A schema authorizes a
// path when every segment names a key of the current node's properties and
// every non-final segment leads to another object node. The final segment
// only has to exist; its own type is irrelevant.
package resolver

import (
	"sort"
	"strings"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
	"github.com/goliatone/go-tplguard/pkg/schema"
)

// SplitPath splits a dotted variable path into segments. Segments are passed
// through verbatim, including empty ones.
func SplitPath(path string) []string {
	return strings.Split(path, ".")
}

// IsAuthorized reports whether any of schemas exposes path.
func IsAuthorized(path []string, schemas []*schema.Node) bool {
	for _, node := range schemas {
		if authorize(node, path) {
			return true
		}
	}
	return false
}

func authorize(node *schema.Node, path []string) bool {
	if len(path) == 0 {
		return false
	}
	child, ok := node.Property(path[0])
	if !ok {
		return false
	}
	if len(path) == 1 {
		return true
	}
	return authorize(child, path[1:])
}

// ValidateAll checks every variable against schemas and returns a
// SchemaValidationError naming the first unauthorized one. Variables are
// checked in sorted order so the reported path is stable.
func ValidateAll(vars []string, schemas []*schema.Node) error {
	for _, variable := range sortedUnique(vars) {
		if !IsAuthorized(SplitPath(variable), schemas) {
			return tgerrors.Unauthorized(variable)
		}
	}
	return nil
}

// Unauthorized lists every variable none of schemas exposes, sorted.
func Unauthorized(vars []string, schemas []*schema.Node) []string {
	var out []string
	for _, variable := range sortedUnique(vars) {
		if !IsAuthorized(SplitPath(variable), schemas) {
			out = append(out, variable)
		}
	}
	return out
}

func sortedUnique(vars []string) []string {
	out := make([]string, 0, len(vars))
	seen := make(map[string]struct{}, len(vars))
	for _, variable := range vars {
		if _, ok := seen[variable]; ok {
			continue
		}
		seen[variable] = struct{}{}
		out = append(out, variable)
	}
	sort.Strings(out)
	return out
}
