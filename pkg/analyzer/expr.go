package analyzer

import (
	"fmt"
	"slices"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenIdent tokenKind = iota
	tokenString
	tokenNumber
	tokenPunct
)

type token struct {
	kind tokenKind
	text string
}

func (t token) is(kind tokenKind, text string) bool {
	return t.kind == kind && t.text == text
}

func (t token) punct(text string) bool { return t.is(tokenPunct, text) }

func (t token) ident(text string) bool { return t.is(tokenIdent, text) }

var twoCharOps = []string{"==", "!=", "<=", ">=", "&&", "||", "**", "//", "<>"}

func tokenize(input string) ([]token, error) {
	runes := []rune(input)
	var tokens []token
	depth := make([]rune, 0, 4)

	for i := 0; i < len(runes); {
		ch := runes[i]
		switch {
		case unicode.IsSpace(ch):
			i++
		case ch == '"' || ch == '\'':
			value, next, err := readString(runes, i)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, token{kind: tokenString, text: value})
			i = next
		case ch >= '0' && ch <= '9':
			start := i
			for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
				i++
			}
			if i+1 < len(runes) && runes[i] == '.' && runes[i+1] >= '0' && runes[i+1] <= '9' {
				i++
				for i < len(runes) && runes[i] >= '0' && runes[i] <= '9' {
					i++
				}
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[start:i])})
		case ch == '_' || unicode.IsLetter(ch):
			start := i
			for i < len(runes) && (runes[i] == '_' || unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i])) {
				i++
			}
			tokens = append(tokens, token{kind: tokenIdent, text: string(runes[start:i])})
		default:
			if i+1 < len(runes) {
				pair := string(runes[i : i+2])
				if slices.Contains(twoCharOps, pair) {
					tokens = append(tokens, token{kind: tokenPunct, text: pair})
					i += 2
					continue
				}
			}
			switch ch {
			case '(', '[', '{':
				depth = append(depth, ch)
			case ')', ']', '}':
				if len(depth) == 0 || depth[len(depth)-1] != opening(ch) {
					return nil, fmt.Errorf("unexpected %q", ch)
				}
				depth = depth[:len(depth)-1]
			}
			tokens = append(tokens, token{kind: tokenPunct, text: string(ch)})
			i++
		}
	}
	if len(depth) > 0 {
		return nil, fmt.Errorf("unclosed %q", depth[len(depth)-1])
	}
	return tokens, nil
}

func opening(closer rune) rune {
	switch closer {
	case ')':
		return '('
	case ']':
		return '['
	default:
		return '{'
	}
}

func readString(runes []rune, start int) (string, int, error) {
	quote := runes[start]
	var b strings.Builder
	for i := start + 1; i < len(runes); i++ {
		ch := runes[i]
		if ch == '\\' && i+1 < len(runes) {
			i++
			switch runes[i] {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(runes[i])
			}
			continue
		}
		if ch == quote {
			return b.String(), i + 1, nil
		}
		b.WriteRune(ch)
	}
	return "", 0, fmt.Errorf("unterminated string literal")
}

// keywords never name context variables. Every other identifier, including
// None, nil, or True, is looked up in the context.
var keywords = map[string]struct{}{
	"in": {}, "and": {}, "or": {}, "not": {},
	"true": {}, "false": {}, "as": {}, "export": {},
}

func isKeyword(name string) bool {
	_, ok := keywords[name]
	return ok
}

// paths returns the context paths read by an expression. Attribute chains and
// string subscripts extend a path; other subscripts end it. A called
// attribute chain loses its last segment, the method; a called bare name is
// itself a read.
func paths(tokens []token) [][]string {
	var out [][]string
	for i, tok := range tokens {
		if tok.kind != tokenIdent || !isHead(tokens, i) {
			continue
		}

		path := []string{tok.text}
		j := i + 1
	chain:
		for j < len(tokens) {
			switch {
			case tokens[j].punct(".") && j+1 < len(tokens) && tokens[j+1].kind == tokenIdent:
				path = append(path, tokens[j+1].text)
				j += 2
			case tokens[j].punct("[") && j+2 < len(tokens) && tokens[j+1].kind == tokenString && tokens[j+2].punct("]"):
				path = append(path, tokens[j+1].text)
				j += 3
			default:
				break chain
			}
		}
		if j < len(tokens) && tokens[j].punct("(") && len(path) > 1 {
			path = path[:len(path)-1]
		}
		if len(path) > 0 {
			out = append(out, path)
		}
	}
	return out
}

// isHead reports whether the identifier at i starts a context lookup.
func isHead(tokens []token, i int) bool {
	name := tokens[i].text
	if isKeyword(name) {
		return false
	}
	if i > 0 && (tokens[i-1].punct(".") || tokens[i-1].punct("|")) {
		return false
	}
	if i+1 < len(tokens) && tokens[i+1].punct("=") {
		return false
	}
	return true
}

// split cuts tokens at every top-level occurrence of sep.
func split(tokens []token, sep func(token) bool) [][]token {
	var parts [][]token
	depth := 0
	start := 0
	for i, tok := range tokens {
		switch {
		case tok.punct("("), tok.punct("["), tok.punct("{"):
			depth++
		case tok.punct(")"), tok.punct("]"), tok.punct("}"):
			depth--
		case depth == 0 && sep(tok):
			parts = append(parts, tokens[start:i])
			start = i + 1
		}
	}
	return append(parts, tokens[start:])
}

// index returns the position of the first top-level token matching fn, or -1.
func index(tokens []token, fn func(token) bool) int {
	depth := 0
	for i, tok := range tokens {
		switch {
		case tok.punct("("), tok.punct("["), tok.punct("{"):
			depth++
		case tok.punct(")"), tok.punct("]"), tok.punct("}"):
			depth--
		case depth == 0 && fn(tok):
			return i
		}
	}
	return -1
}

func trimTrailing(tokens []token, names ...string) []token {
	for len(tokens) > 0 {
		last := tokens[len(tokens)-1]
		if last.kind != tokenIdent || !slices.Contains(names, last.text) {
			break
		}
		tokens = tokens[:len(tokens)-1]
	}
	return tokens
}
