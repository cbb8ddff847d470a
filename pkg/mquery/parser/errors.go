package parser

import (
	"fmt"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// ParseError represents a parsing error with position information.
type ParseError struct {
	Pos     tree.Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// LexError represents a lexical analysis error.
type LexError struct {
	Pos     tree.Position
	Message string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer error at line %d, column %d: %s", e.Pos.Line, e.Pos.Column, e.Message)
}

// Common error messages
const (
	ErrUnexpectedToken     = "unexpected token %s, expected %s"
	ErrUnexpectedCharacter = "unexpected character %q"
	ErrUnexpectedEOF       = "unexpected end of input"
	ErrUnterminatedString  = "unterminated string literal"
	ErrEmptyExpression     = "empty expression"
	ErrTooDeep             = "expression nesting exceeds %d levels"
)
