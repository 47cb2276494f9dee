package manifest

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/goliatone/go-tplguard/pkg/codec"
	"github.com/goliatone/go-tplguard/pkg/compiler"
	"github.com/goliatone/go-tplguard/pkg/schema"
)

// Manifest describes a set of components and templates to load together.
type Manifest struct {
	// Location is the manifest path, used in error messages.
	Location string
	// Policy is the batch policy name for compiling Templates.
	Policy string
	// Strict overrides strict rendering when set.
	Strict *bool
	// Dialect selects the structural validator for component schemas.
	Dialect string
	// Globals are engine globals available to every template.
	Globals map[string]any
	// Components are sorted by name.
	Components []Component
	// Templates compile in the listed order.
	Templates []compiler.TemplateSource
	// Translations holds messages keyed by locale then key.
	Translations map[string]map[string]string

	// FS and BaseDir let a schema loader resolve component file references.
	FS      fs.FS
	BaseDir string
}

// Component is a component schema given inline or by reference.
type Component struct {
	Name string
	// Schema is set for inline schemas.
	Schema map[string]any
	// Source is set for schemas stored in a file or behind a URL.
	Source schema.Source
}

type manifestFile struct {
	Policy       string                       `json:"policy" yaml:"policy"`
	Strict       *bool                        `json:"strict" yaml:"strict"`
	Dialect      string                       `json:"dialect" yaml:"dialect"`
	Globals      map[string]any               `json:"globals" yaml:"globals"`
	Components   map[string]componentFile     `json:"components" yaml:"components"`
	Templates    []templateFile               `json:"templates" yaml:"templates"`
	Translations map[string]map[string]string `json:"translations" yaml:"translations"`
}

type componentFile struct {
	File   string         `json:"file" yaml:"file"`
	URL    string         `json:"url" yaml:"url"`
	Schema map[string]any `json:"schema" yaml:"schema"`
}

type templateFile struct {
	Name       string   `json:"name" yaml:"name"`
	Source     string   `json:"source" yaml:"source"`
	File       string   `json:"file" yaml:"file"`
	Components []string `json:"components" yaml:"components"`
}

// LoadFile reads a manifest from disk. Relative file references resolve
// against the manifest's directory.
func LoadFile(location string) (*Manifest, error) {
	data, err := os.ReadFile(location)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", location, err)
	}

	dir := filepath.Dir(location)
	readTemplate := func(name string) ([]byte, error) {
		if !filepath.IsAbs(name) {
			name = filepath.Join(dir, name)
		}
		return os.ReadFile(name)
	}
	componentSource := func(name string) schema.Source {
		return schema.SourceFromFile(name)
	}

	m, err := parse(data, location, readTemplate, componentSource)
	if err != nil {
		return nil, err
	}
	m.BaseDir = dir
	return m, nil
}

// LoadFS reads the manifest at name inside fsys. File references resolve
// against the manifest's directory inside fsys.
func LoadFS(fsys fs.FS, name string) (*Manifest, error) {
	if fsys == nil {
		return nil, fmt.Errorf("manifest: fs is nil")
	}
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, fmt.Errorf("manifest: read %s: %w", name, err)
	}

	dir := path.Dir(name)
	readTemplate := func(ref string) ([]byte, error) {
		return fs.ReadFile(fsys, path.Join(dir, ref))
	}
	componentSource := func(ref string) schema.Source {
		return schema.SourceFromFS(path.Join(dir, ref))
	}

	m, err := parse(data, name, readTemplate, componentSource)
	if err != nil {
		return nil, err
	}
	m.FS = fsys
	return m, nil
}

// Parse decodes a manifest held in memory. Template and component file
// references are rejected because there is nowhere to resolve them from.
func Parse(data []byte, location string) (*Manifest, error) {
	noFiles := func(ref string) ([]byte, error) {
		return nil, fmt.Errorf("file references are not supported here (%s)", ref)
	}
	return parse(data, location, noFiles, nil)
}

func parse(data []byte, location string, readTemplate func(string) ([]byte, error), componentSource func(string) schema.Source) (*Manifest, error) {
	doc, err := decode(data, location)
	if err != nil {
		return nil, err
	}

	m := &Manifest{
		Location:     location,
		Policy:       strings.TrimSpace(doc.Policy),
		Strict:       doc.Strict,
		Dialect:      strings.TrimSpace(doc.Dialect),
		Translations: doc.Translations,
	}
	if len(doc.Globals) > 0 {
		m.Globals, _ = schema.NormalizeValue(doc.Globals).(map[string]any)
	}

	if _, err := compiler.ParsePolicy(m.Policy); err != nil {
		return nil, fmt.Errorf("manifest: %s: %w", location, err)
	}

	for _, name := range sortedKeys(doc.Components) {
		component, err := normaliseComponent(name, doc.Components[name], location, componentSource)
		if err != nil {
			return nil, err
		}
		m.Components = append(m.Components, component)
	}

	seen := make(map[string]struct{}, len(doc.Templates))
	for idx, raw := range doc.Templates {
		tpl, err := normaliseTemplate(idx, raw, location, readTemplate)
		if err != nil {
			return nil, err
		}
		if _, exists := seen[tpl.Name]; exists {
			return nil, fmt.Errorf("manifest: %s defines duplicate template %q", location, tpl.Name)
		}
		seen[tpl.Name] = struct{}{}
		m.Templates = append(m.Templates, tpl)
	}

	return m, nil
}

func decode(data []byte, location string) (manifestFile, error) {
	var doc manifestFile
	if len(strings.TrimSpace(string(data))) == 0 {
		return doc, fmt.Errorf("manifest: %s is empty", location)
	}

	switch codec.FormatFromPath(location) {
	case codec.FormatYAML:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return doc, fmt.Errorf("manifest: parse %s: %w", location, err)
		}
	case codec.FormatJSON, codec.FormatJSONC:
		if err := json.Unmarshal(jsonc.ToJSON(data), &doc); err != nil {
			return doc, fmt.Errorf("manifest: parse %s: %w", location, err)
		}
	default:
		return doc, fmt.Errorf("manifest: %s: unsupported manifest format", location)
	}
	return doc, nil
}

func normaliseComponent(name string, raw componentFile, location string, componentSource func(string) schema.Source) (Component, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return Component{}, fmt.Errorf("manifest: %s defines a component with an empty name", location)
	}

	set := 0
	for _, present := range []bool{raw.Schema != nil, raw.File != "", raw.URL != ""} {
		if present {
			set++
		}
	}
	if set != 1 {
		return Component{}, fmt.Errorf("manifest: %s component %q needs exactly one of schema, file, or url", location, trimmed)
	}

	component := Component{Name: trimmed}
	switch {
	case raw.Schema != nil:
		component.Schema, _ = schema.NormalizeValue(raw.Schema).(map[string]any)
	case raw.File != "":
		if componentSource == nil {
			return Component{}, fmt.Errorf("manifest: %s component %q: file references are not supported here", location, trimmed)
		}
		component.Source = componentSource(raw.File)
	default:
		src, err := schema.SourceFromURL(raw.URL)
		if err != nil {
			return Component{}, fmt.Errorf("manifest: %s component %q: %w", location, trimmed, err)
		}
		component.Source = src
	}
	return component, nil
}

func normaliseTemplate(idx int, raw templateFile, location string, readTemplate func(string) ([]byte, error)) (compiler.TemplateSource, error) {
	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return compiler.TemplateSource{}, fmt.Errorf("manifest: %s template at index %d has no name", location, idx)
	}
	if (raw.Source == "") == (raw.File == "") {
		return compiler.TemplateSource{}, fmt.Errorf("manifest: %s template %q needs exactly one of source or file", location, name)
	}

	source := raw.Source
	if raw.File != "" {
		data, err := readTemplate(raw.File)
		if err != nil {
			return compiler.TemplateSource{}, fmt.Errorf("manifest: %s template %q: %w", location, name, err)
		}
		source = string(data)
	}

	components := make([]string, 0, len(raw.Components))
	for _, component := range raw.Components {
		if trimmed := strings.TrimSpace(component); trimmed != "" {
			components = append(components, trimmed)
		}
	}

	return compiler.TemplateSource{Name: name, Source: source, Components: components}, nil
}

// Template returns the template source registered under name.
func (m *Manifest) Template(name string) (compiler.TemplateSource, bool) {
	if m == nil {
		return compiler.TemplateSource{}, false
	}
	for _, tpl := range m.Templates {
		if tpl.Name == name {
			return tpl, true
		}
	}
	return compiler.TemplateSource{}, false
}
