package analyzer

import (
	"fmt"
	"regexp"
	"strings"
)

type segmentKind int

const (
	segmentVariable segmentKind = iota
	segmentTag
)

// segment is a single {{ }} or {% %} region with its delimiters and
// whitespace-control markers removed.
type segment struct {
	kind   segmentKind
	body   string
	offset int
}

// rawTags switch the lexer into verbatim mode until their end tag.
var rawTags = map[string]*regexp.Regexp{
	"verbatim": regexp.MustCompile(`\{%[-+]?\s*endverbatim\b[^%]*[-+]?%\}`),
	"comment":  regexp.MustCompile(`\{%[-+]?\s*endcomment\b[^%]*[-+]?%\}`),
}

func lex(source string) ([]segment, error) {
	var segments []segment
	pos := 0
	for pos < len(source) {
		idx := strings.IndexByte(source[pos:], '{')
		if idx < 0 {
			break
		}
		start := pos + idx
		if start+1 >= len(source) {
			break
		}

		switch source[start+1] {
		case '#':
			end := strings.Index(source[start+2:], "#}")
			if end < 0 {
				return nil, syntaxErrorAt(source, start, "unclosed comment")
			}
			pos = start + 2 + end + 2
		case '{':
			body, next, err := scanDelimited(source, start, "}}")
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment{kind: segmentVariable, body: body, offset: start})
			pos = next
		case '%':
			body, next, err := scanDelimited(source, start, "%}")
			if err != nil {
				return nil, err
			}
			segments = append(segments, segment{kind: segmentTag, body: body, offset: start})
			pos = next

			if end, ok := rawTags[tagName(body)]; ok {
				loc := end.FindStringIndex(source[pos:])
				if loc == nil {
					return nil, syntaxErrorAt(source, start, fmt.Sprintf("unclosed %s block", tagName(body)))
				}
				pos += loc[1]
			}
		default:
			pos = start + 1
		}
	}
	return segments, nil
}

// scanDelimited returns the trimmed body between an opening delimiter at
// start and closer, skipping quoted strings so "}}" inside a literal does not
// end the region.
func scanDelimited(source string, start int, closer string) (string, int, error) {
	i := start + 2
	var quote byte
	for i < len(source) {
		ch := source[i]
		if quote != 0 {
			switch ch {
			case '\\':
				i += 2
				continue
			case quote:
				quote = 0
			}
			i++
			continue
		}
		if ch == '"' || ch == '\'' {
			quote = ch
			i++
			continue
		}
		if strings.HasPrefix(source[i:], closer) {
			body := source[start+2 : i]
			body = strings.TrimPrefix(body, "-")
			body = strings.TrimPrefix(body, "+")
			body = strings.TrimSuffix(body, "-")
			body = strings.TrimSuffix(body, "+")
			return strings.TrimSpace(body), i + len(closer), nil
		}
		i++
	}
	if quote != 0 {
		return "", 0, syntaxErrorAt(source, start, "unterminated string literal")
	}
	return "", 0, syntaxErrorAt(source, start, fmt.Sprintf("missing closing %q", closer))
}

func tagName(body string) string {
	end := strings.IndexFunc(body, func(r rune) bool {
		return !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	})
	if end < 0 {
		return body
	}
	return body[:end]
}
