package analyzer

import (
	"fmt"
	"slices"
	"strings"
)

type analyzeError string

func (e analyzeError) Error() string { return string(e) }

func errorf(format string, args ...any) error {
	return analyzeError(fmt.Sprintf(format, args...))
}

// opaqueTags take arguments that are never context reads.
var opaqueTags = map[string]struct{}{
	"autoescape": {}, "spaceless": {}, "lorem": {},
	"now": {}, "templatetag": {},
}

// branchTags open a body that may not run, so bindings made inside it do not
// outlive it.
var branchTags = map[string]struct{}{
	"if": {}, "ifequal": {}, "ifnotequal": {}, "ifchanged": {},
}

func (a *analysis) tag(body string) error {
	name := tagName(body)
	if name == "" {
		return errorf("empty tag")
	}
	tokens, err := tokenize(strings.TrimSpace(body[len(name):]))
	if err != nil {
		return fmt.Errorf("%s: %w", name, err)
	}

	switch name {
	case "for":
		return a.forTag(tokens)
	case "empty":
		a.pop("for")
		a.push("for", "forloop")
	case "endfor":
		a.pop("for")
	case "elif":
		a.pop("if")
		a.read(tokens)
		a.push("if")
	case "else":
		if a.innermost() == "if" {
			a.pop("if")
			a.push("if")
		}
	case "endif", "endifequal", "endifnotequal", "endifchanged":
		a.pop("if")
	case "with":
		return a.withTag(tokens)
	case "endwith":
		a.pop("with")
	case "set":
		return a.setTag(tokens)
	case "macro":
		return a.macroTag(tokens)
	case "endmacro":
		a.pop("macro")
	case "block":
		a.push("block", "block")
	case "endblock":
		a.pop("block")
	case "include":
		a.includeTag(tokens)
	case "extends":
		a.dependOrRead(name, tokens)
	case "ssi":
		a.dependOrRead(name, trimTrailing(tokens, "parsed"))
	case "import":
		return a.importTag(tokens)
	case "from":
		return a.fromTag(tokens)
	case "cycle":
		a.cycleTag(tokens)
	case "widthratio":
		a.widthratioTag(tokens)
	case "filter":
		// the first token of each link names a filter; arguments are reads
		a.read(append([]token{{kind: tokenPunct, text: "|"}}, tokens...))
	default:
		if _, ok := branchTags[name]; ok {
			a.read(tokens)
			a.push("if")
			return nil
		}
		if _, ok := opaqueTags[name]; ok || strings.HasPrefix(name, "end") {
			return nil
		}
		a.read(tokens)
	}
	return nil
}

// {% for x in items %}, {% for k, v in mapping reversed %}
func (a *analysis) forTag(tokens []token) error {
	in := index(tokens, func(t token) bool { return t.ident("in") })
	if in < 0 {
		return errorf("for: missing 'in'")
	}

	var targets []string
	for _, part := range split(tokens[:in], func(t token) bool { return t.punct(",") }) {
		if len(part) != 1 || part[0].kind != tokenIdent {
			return errorf("for: invalid loop target")
		}
		targets = append(targets, part[0].text)
	}

	iterable := trimTrailing(tokens[in+1:], "reversed", "sorted")
	if len(iterable) == 0 {
		return errorf("for: missing iterable")
	}

	a.read(iterable)
	a.push("for", append(targets, "forloop")...)
	return nil
}

// {% with a=b c=d %} or {% with b as a %}
func (a *analysis) withTag(tokens []token) error {
	if as := index(tokens, func(t token) bool { return t.ident("as") }); as >= 0 {
		if as+1 >= len(tokens) || tokens[as+1].kind != tokenIdent {
			return errorf("with: missing name after 'as'")
		}
		a.read(tokens[:as])
		a.push("with", tokens[as+1].text)
		return nil
	}

	names, values := assignments(tokens)
	for _, value := range values {
		a.read(value)
	}
	a.push("with", names...)
	return nil
}

// assignments splits "a=x b=y.z" or "a=x, b=y" into names and value
// expressions.
func assignments(tokens []token) ([]string, [][]token) {
	var names []string
	var values [][]token
	depth := 0
	for i := 0; i < len(tokens); i++ {
		switch {
		case tokens[i].punct("("), tokens[i].punct("["), tokens[i].punct("{"):
			depth++
		case tokens[i].punct(")"), tokens[i].punct("]"), tokens[i].punct("}"):
			depth--
		}
		if depth == 0 && tokens[i].kind == tokenIdent && i+1 < len(tokens) && tokens[i+1].punct("=") {
			names = append(names, tokens[i].text)
			values = append(values, nil)
			i++
			continue
		}
		if depth == 0 && tokens[i].punct(",") && len(values) > 0 {
			continue
		}
		if len(values) > 0 {
			values[len(values)-1] = append(values[len(values)-1], tokens[i])
		}
	}
	return names, values
}

// {% set x = expr %}
func (a *analysis) setTag(tokens []token) error {
	if len(tokens) == 0 || tokens[0].kind != tokenIdent {
		return errorf("set: missing name")
	}
	if eq := index(tokens, func(t token) bool { return t.punct("=") }); eq >= 0 {
		a.read(tokens[eq+1:])
	}
	a.bind(tokens[0].text)
	return nil
}

// {% macro name(a, b="x") export %}
func (a *analysis) macroTag(tokens []token) error {
	if len(tokens) < 3 || tokens[0].kind != tokenIdent || !tokens[1].punct("(") {
		return errorf("macro: expected name(params)")
	}
	closing := matching(tokens, 1)
	if closing < 0 {
		return errorf("macro: unclosed parameter list")
	}

	var params []string
	for _, part := range split(tokens[2:closing], func(t token) bool { return t.punct(",") }) {
		if len(part) == 0 {
			continue
		}
		if part[0].kind != tokenIdent {
			return errorf("macro: invalid parameter")
		}
		params = append(params, part[0].text)
		if len(part) > 2 && part[1].punct("=") {
			a.read(part[2:])
		}
	}

	a.bind(tokens[0].text)
	a.push("macro", params...)
	return nil
}

// matching returns the index of the ')' closing the '(' at open, or -1.
func matching(tokens []token, open int) int {
	depth := 0
	for i := open; i < len(tokens); i++ {
		switch {
		case tokens[i].punct("("):
			depth++
		case tokens[i].punct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// {% include "x" if_exists with a=b only %}, {% include name %}
func (a *analysis) includeTag(tokens []token) {
	tokens = trimTrailing(tokens, "only")
	target := tokens
	var rest []token
	if idx := index(tokens, func(t token) bool { return t.ident("with") }); idx >= 0 {
		target = tokens[:idx]
		rest = tokens[idx+1:]
	}

	// optional includes may name templates that never exist
	if optional := trimTrailing(target, "if_exists"); len(optional) < len(target) {
		if len(optional) > 0 && optional[0].kind == tokenString {
			if !slices.Contains(a.optional, optional[0].text) {
				a.optional = append(a.optional, optional[0].text)
			}
		} else {
			a.dynamic = append(a.dynamic, "include")
			a.read(optional)
		}
	} else {
		a.dependOrRead("include", target)
	}

	_, values := assignments(rest)
	for _, value := range values {
		a.read(value)
	}
}

func (a *analysis) dependOrRead(tag string, tokens []token) {
	if len(tokens) >= 1 && tokens[0].kind == tokenString {
		a.depend(tokens[0].text)
		a.read(tokens[1:])
		return
	}
	a.dynamic = append(a.dynamic, tag)
	a.read(tokens)
}

// {% import "macros.html" a, b as c %} or {% import "forms.html" as forms %}
func (a *analysis) importTag(tokens []token) error {
	if len(tokens) == 0 {
		return errorf("import: missing template")
	}
	if tokens[0].kind != tokenString {
		a.dynamic = append(a.dynamic, "import")
		a.read(tokens[:1])
	} else {
		a.depend(tokens[0].text)
	}
	return a.bindImports(trimTrailing(tokens[1:], "with", "without", "context"))
}

// {% from "macros.html" import a, b as c %}
func (a *analysis) fromTag(tokens []token) error {
	if len(tokens) < 2 || !tokens[1].ident("import") {
		return errorf("from: expected 'import'")
	}
	if tokens[0].kind == tokenString {
		a.depend(tokens[0].text)
	} else {
		a.dynamic = append(a.dynamic, "from")
		a.read(tokens[:1])
	}
	return a.bindImports(trimTrailing(tokens[2:], "with", "without", "context"))
}

func (a *analysis) bindImports(tokens []token) error {
	for _, part := range split(tokens, func(t token) bool { return t.punct(",") }) {
		switch {
		case len(part) == 0:
		case len(part) == 1 && part[0].kind == tokenIdent:
			a.bind(part[0].text)
		case len(part) == 2 && part[0].ident("as") && part[1].kind == tokenIdent:
			a.bind(part[1].text)
		case len(part) == 3 && part[1].ident("as") && part[2].kind == tokenIdent:
			a.bind(part[2].text)
		default:
			return errorf("import: invalid name list")
		}
	}
	return nil
}

// {% cycle a "b" c as name silent %}
func (a *analysis) cycleTag(tokens []token) {
	tokens = trimTrailing(tokens, "silent")
	if as := index(tokens, func(t token) bool { return t.ident("as") }); as >= 0 {
		a.read(tokens[:as])
		if as+1 < len(tokens) && tokens[as+1].kind == tokenIdent {
			a.bind(tokens[as+1].text)
		}
		return
	}
	a.read(tokens)
}

// {% widthratio value max width as name %}
func (a *analysis) widthratioTag(tokens []token) {
	if as := index(tokens, func(t token) bool { return t.ident("as") }); as >= 0 {
		a.read(tokens[:as])
		if as+1 < len(tokens) && tokens[as+1].kind == tokenIdent {
			a.bind(tokens[as+1].text)
		}
		return
	}
	a.read(tokens)
}
