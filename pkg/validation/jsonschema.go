package validation

import (
	"errors"
	"strings"

	santhosh "github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
)

var printer = message.NewPrinter(language.English)

// Issues converts a schema compilation or validation error into a flat list of
// issues. Structured jsonschema errors are walked down to their leaves; any
// other error becomes a single issue parsed from its message.
func Issues(err error) []tgerrors.Issue {
	if err == nil {
		return nil
	}

	var ve *santhosh.ValidationError
	var sve *santhosh.SchemaValidationError
	if errors.As(err, &sve) && sve.Err != nil {
		errors.As(sve.Err, &ve)
	}
	if ve != nil || errors.As(err, &ve) {
		var issues []tgerrors.Issue
		collectValidationIssues(ve, &issues)
		if len(issues) > 0 {
			return dedupe(issues)
		}
	}

	return []tgerrors.Issue{issueFromError(err)}
}

func collectValidationIssues(ve *santhosh.ValidationError, issues *[]tgerrors.Issue) {
	if ve == nil {
		return
	}
	if len(ve.Causes) == 0 {
		path := ""
		if len(ve.InstanceLocation) > 0 {
			path = "/" + strings.Join(escapeSegments(ve.InstanceLocation), "/")
		}

		keyword := ""
		msg := ""
		if ve.ErrorKind != nil {
			if kwPath := ve.ErrorKind.KeywordPath(); len(kwPath) > 0 {
				keyword = kwPath[len(kwPath)-1]
			}
			msg = ve.ErrorKind.LocalizedString(printer)
		}

		// container keywords only repeat what their causes already say
		if keyword == "oneOf" || keyword == "allOf" || keyword == "$ref" {
			return
		}
		if msg == "" {
			msg = strings.TrimSpace(ve.Error())
		}

		*issues = append(*issues, tgerrors.Issue{
			Path:    path,
			Field:   fieldPathFromPointer(path),
			Keyword: keyword,
			Message: msg,
		})
		return
	}

	for _, cause := range ve.Causes {
		collectValidationIssues(cause, issues)
	}
}

func dedupe(issues []tgerrors.Issue) []tgerrors.Issue {
	seen := make(map[string]bool, len(issues))
	out := make([]tgerrors.Issue, 0, len(issues))
	for _, issue := range issues {
		key := issue.Path + "|" + issue.Keyword + "|" + issue.Message
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, issue)
	}
	return out
}

func escapeSegments(segments []string) []string {
	out := make([]string, len(segments))
	for i, segment := range segments {
		segment = strings.ReplaceAll(segment, "~", "~0")
		out[i] = strings.ReplaceAll(segment, "/", "~1")
	}
	return out
}

func issueFromError(err error) tgerrors.Issue {
	if err == nil {
		return tgerrors.Issue{Message: "unknown error"}
	}

	msg := strings.TrimSpace(err.Error())
	path := extractJSONPointer(msg)
	if path != "" {
		msg = strings.Replace(msg, " at "+path, "", 1)
	}
	msg = strings.TrimPrefix(msg, "jsonschema: ")
	msg = strings.TrimPrefix(msg, "openapi schema: ")
	msg = strings.TrimSpace(msg)

	return tgerrors.Issue{
		Path:    path,
		Field:   fieldPathFromPointer(path),
		Message: msg,
	}
}

func extractJSONPointer(message string) string {
	if message == "" {
		return ""
	}
	if idx := strings.LastIndex(message, " at "); idx >= 0 {
		candidate := strings.TrimSpace(message[idx+4:])
		if strings.HasPrefix(candidate, "/") || strings.HasPrefix(candidate, "#/") {
			return trimPointer(candidate)
		}
	}
	if idx := strings.LastIndex(message, "#/"); idx >= 0 {
		candidate := strings.TrimSpace(message[idx:])
		if end := strings.IndexAny(candidate, " \t\n'\""); end >= 0 {
			candidate = candidate[:end]
		}
		return trimPointer(candidate)
	}
	return ""
}

func trimPointer(pointer string) string {
	if pointer == "" {
		return ""
	}
	trimmed := strings.TrimRight(pointer, ".)];,")
	return strings.TrimSpace(trimmed)
}

// fieldPathFromPointer rewrites a pointer into a component schema as the
// dotted variable path a template would use: "/properties/address/properties/city"
// becomes "address.city".
func fieldPathFromPointer(pointer string) string {
	trimmed := strings.TrimSpace(pointer)
	trimmed = strings.TrimPrefix(trimmed, "#")
	trimmed = strings.TrimPrefix(trimmed, "/")
	if trimmed == "" {
		return ""
	}

	parts := strings.Split(trimmed, "/")
	out := make([]string, 0, len(parts))
	for idx := 0; idx < len(parts); idx++ {
		segment := unescape(parts[idx])
		switch segment {
		case "properties":
			if idx+1 < len(parts) {
				out = append(out, unescape(parts[idx+1]))
				idx++
			}
		case "items":
			out = append(out, "items")
		case "oneOf", "anyOf", "allOf":
			if idx+1 < len(parts) && isNumeric(parts[idx+1]) {
				idx++
			}
		case "$defs", "definitions":
			if idx+1 < len(parts) {
				idx++
			}
		default:
			if segment == "" {
				continue
			}
			out = append(out, segment)
		}
	}
	return strings.Join(out, ".")
}

func unescape(segment string) string {
	segment = strings.ReplaceAll(segment, "~1", "/")
	return strings.ReplaceAll(segment, "~0", "~")
}

func isNumeric(value string) bool {
	if value == "" {
		return false
	}
	for _, r := range value {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
