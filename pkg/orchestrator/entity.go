package orchestrator

import (
	"strings"

	"github.com/goliatone/go-tplguard/pkg/compiler"
)

// TemplateKey is the entity attribute carrying a template record.
const TemplateKey = "template:01JVK339CW6Q67VAMXCA7XAK7D"

// SourcesFromEntities extracts template sources from entities. An entity
// contributes a source only when TemplateKey holds an object with a string
// name, a string source, and a components array; anything else is skipped.
// Non-string component entries are dropped.
func SourcesFromEntities(entities []map[string]any) []compiler.TemplateSource {
	sources := make([]compiler.TemplateSource, 0, len(entities))
	for _, entity := range entities {
		if src, ok := sourceFromEntity(entity); ok {
			sources = append(sources, src)
		}
	}
	return sources
}

func sourceFromEntity(entity map[string]any) (compiler.TemplateSource, bool) {
	record, ok := entity[TemplateKey].(map[string]any)
	if !ok {
		return compiler.TemplateSource{}, false
	}
	name, ok := record["name"].(string)
	if !ok || strings.TrimSpace(name) == "" {
		return compiler.TemplateSource{}, false
	}
	source, ok := record["source"].(string)
	if !ok {
		return compiler.TemplateSource{}, false
	}

	var components []string
	switch list := record["components"].(type) {
	case []any:
		components = make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				components = append(components, s)
			}
		}
	case []string:
		components = append([]string(nil), list...)
	default:
		return compiler.TemplateSource{}, false
	}

	return compiler.TemplateSource{
		Name:       name,
		Source:     source,
		Components: components,
	}, true
}

// Entity wraps src in the entity shape CompileTemplates accepts.
func Entity(src compiler.TemplateSource) map[string]any {
	components := make([]any, 0, len(src.Components))
	for _, name := range src.Components {
		components = append(components, name)
	}
	return map[string]any{
		TemplateKey: map[string]any{
			"name":       src.Name,
			"source":     src.Source,
			"components": components,
		},
	}
}
