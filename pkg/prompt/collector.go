// Package prompt builds render contexts interactively: one terminal prompt
// per variable path a template reads, typed by the declaring component's
// schema.
package prompt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Option configures a Collector.
type Option func(*Collector)

// WithDriver overrides the prompt driver.
func WithDriver(driver Driver) Option {
	return func(c *Collector) {
		if driver != nil {
			c.driver = driver
		}
	}
}

// WithDefaults seeds answers offered as prompt defaults, keyed by dotted
// path.
func WithDefaults(defaults map[string]any) Option {
	return func(c *Collector) {
		c.defaults = defaults
	}
}

// Collector asks for a value per variable path and assembles the answers
// into a nested context.
type Collector struct {
	driver   Driver
	defaults map[string]any
}

// New constructs a Collector using the survey driver unless overridden.
func New(options ...Option) *Collector {
	c := &Collector{driver: SurveyDriver()}
	for _, opt := range options {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Collect prompts for every path in variables. schemas are the raw
// component schema payloads; the first one declaring a path decides its
// prompt. A path that another variable extends is never asked for directly.
func (c *Collector) Collect(ctx context.Context, variables []string, schemas []map[string]any) (map[string]any, error) {
	paths := leafPaths(variables)
	out := make(map[string]any, len(paths))

	for _, path := range paths {
		segments := strings.Split(path, ".")
		property := lookupProperty(schemas, segments)

		value, err := c.ask(ctx, path, property)
		if err != nil {
			return nil, fmt.Errorf("prompt %s: %w", path, err)
		}
		if err := assign(out, segments, value); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (c *Collector) ask(ctx context.Context, path string, property map[string]any) (any, error) {
	help, _ := property["description"].(string)
	fallback := c.defaults[path]

	if options := enumOptions(property); len(options) > 0 {
		idx, err := c.driver.Select(ctx, SelectConfig{
			Message:      path,
			Options:      options,
			DefaultIndex: indexOf(options, fmt.Sprint(fallback)),
			Help:         help,
		})
		if err != nil {
			return nil, err
		}
		if idx < 0 || idx >= len(options) {
			return nil, fmt.Errorf("selection %d out of range", idx)
		}
		return options[idx], nil
	}

	switch typeOf(property) {
	case "boolean":
		def, _ := fallback.(bool)
		return c.driver.Confirm(ctx, ConfirmConfig{Message: path, Default: def, Help: help})
	case "integer":
		raw, err := c.driver.Input(ctx, InputConfig{
			Message:   path,
			Default:   defaultString(fallback),
			Help:      help,
			Validator: validInteger,
		})
		if err != nil {
			return nil, err
		}
		return strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	case "number":
		raw, err := c.driver.Input(ctx, InputConfig{
			Message:   path,
			Default:   defaultString(fallback),
			Help:      help,
			Validator: validNumber,
		})
		if err != nil {
			return nil, err
		}
		return strconv.ParseFloat(strings.TrimSpace(raw), 64)
	case "array":
		raw, err := c.driver.Input(ctx, InputConfig{
			Message: path + " (comma separated)",
			Default: defaultString(fallback),
			Help:    help,
		})
		if err != nil {
			return nil, err
		}
		return splitList(raw), nil
	case "object":
		raw, err := c.driver.TextArea(ctx, TextAreaConfig{
			Message: path + " (JSON)",
			Default: defaultString(fallback),
			Help:    help,
		})
		if err != nil {
			return nil, err
		}
		var value any
		if strings.TrimSpace(raw) == "" {
			return map[string]any{}, nil
		}
		if err := json.Unmarshal([]byte(raw), &value); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return value, nil
	default:
		return c.driver.Input(ctx, InputConfig{Message: path, Default: defaultString(fallback), Help: help})
	}
}

// leafPaths drops duplicates and every path that is a strict prefix of
// another one, in sorted order.
func leafPaths(variables []string) []string {
	sorted := append([]string(nil), variables...)
	sort.Strings(sorted)

	out := make([]string, 0, len(sorted))
	for i, path := range sorted {
		if path == "" || (i > 0 && sorted[i-1] == path) {
			continue
		}
		extended := false
		for _, other := range sorted[i+1:] {
			if strings.HasPrefix(other, path+".") {
				extended = true
				break
			}
		}
		if !extended {
			out = append(out, path)
		}
	}
	return out
}

func lookupProperty(schemas []map[string]any, segments []string) map[string]any {
	for _, root := range schemas {
		node := root
		for _, segment := range segments {
			props, _ := node["properties"].(map[string]any)
			child, ok := props[segment].(map[string]any)
			if !ok {
				node = nil
				break
			}
			node = child
		}
		if node != nil {
			return node
		}
	}
	return nil
}

func assign(out map[string]any, segments []string, value any) error {
	node := out
	for _, segment := range segments[:len(segments)-1] {
		next, exists := node[segment]
		if !exists {
			child := make(map[string]any)
			node[segment] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("prompt: %s is not an object", segment)
		}
		node = child
	}
	node[segments[len(segments)-1]] = value
	return nil
}

func typeOf(property map[string]any) string {
	switch t := property["type"].(type) {
	case string:
		return t
	case []any:
		// first non-null entry of a type union
		for _, entry := range t {
			if s, ok := entry.(string); ok && s != "null" {
				return s
			}
		}
	}
	return ""
}

func enumOptions(property map[string]any) []string {
	values, _ := property["enum"].([]any)
	out := make([]string, 0, len(values))
	for _, v := range values {
		s, ok := v.(string)
		if !ok {
			return nil
		}
		out = append(out, s)
	}
	return out
}

func defaultString(v any) string {
	if v == nil {
		return ""
	}
	switch typed := v.(type) {
	case string:
		return typed
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, fmt.Sprint(item))
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		raw, err := json.Marshal(typed)
		if err != nil {
			return ""
		}
		return string(raw)
	default:
		return fmt.Sprint(v)
	}
}

func splitList(raw string) []any {
	out := []any{}
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

var errNotNumber = errors.New("enter a number")

func validInteger(s string) error {
	if _, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64); err != nil {
		return errNotNumber
	}
	return nil
}

func validNumber(s string) error {
	if _, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err != nil {
		return errNotNumber
	}
	return nil
}
