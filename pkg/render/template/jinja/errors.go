package jinja

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/flosch/pongo2/v6"

	tgerrors "github.com/goliatone/go-tplguard/pkg/errors"
)

// pongo2 tags every loader failure with this sender and drops the loader's
// own error, so the names come from the misses the loader recorded.
const senderFromFile = "fromfile"

// classifyParseError maps a pongo2 parse failure onto the error taxonomy.
// Unresolved include/extends/import targets surface as MissingDependency.
func classifyParseError(name string, err error, misses []string) *tgerrors.Error {
	var perr *pongo2.Error
	isPongo := errors.As(err, &perr)

	if isPongo && perr.Sender == senderFromFile {
		missing := compactNames(misses)
		if len(missing) == 0 && perr.OrigError != nil {
			missing = missingFromMessage(perr.OrigError.Error())
		}
		if len(missing) == 0 && perr.Filename != "" {
			missing = []string{perr.Filename}
		}
		out := tgerrors.MissingDependency(name, missing)
		out.Cause = err
		return out
	}
	if isPongo {
		return tgerrors.Wrap(tgerrors.KindParse, fmt.Sprintf("template %q could not be parsed", name), err).WithTemplate(name)
	}
	if missing := missingFromMessage(err.Error()); len(missing) > 0 {
		out := tgerrors.MissingDependency(name, missing)
		out.Cause = err
		return out
	}
	return tgerrors.Wrap(tgerrors.KindCompile, fmt.Sprintf("template %q could not be compiled", name), err).WithTemplate(name)
}

func compactNames(names []string) []string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		if !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}

// missingFromMessage is the text fallback for engine errors that carry no
// structured cause: the message is split on every "not found", each piece is
// trimmed, and empty pieces are dropped. Messages without "not found" yield
// nil.
func missingFromMessage(message string) []string {
	if !strings.Contains(message, "not found") {
		return nil
	}
	var out []string
	for _, part := range strings.Split(message, "not found") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
