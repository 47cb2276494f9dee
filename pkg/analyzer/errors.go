package analyzer

import (
	"fmt"
	"strings"
)

// SyntaxError reports template source the analyzer cannot read.
type SyntaxError struct {
	Line    int
	Column  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("analyzer: line %d column %d: %s", e.Line, e.Column, e.Message)
}

func syntaxErrorAt(source string, offset int, message string) *SyntaxError {
	if offset > len(source) {
		offset = len(source)
	}
	prefix := source[:offset]
	line := strings.Count(prefix, "\n") + 1
	column := offset - strings.LastIndexByte(prefix, '\n')
	return &SyntaxError{Line: line, Column: column, Message: message}
}
