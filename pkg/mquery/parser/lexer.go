package parser

import (
	"fmt"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

const (
	whitespaceToken = iota
	lineCommentToken
	blockCommentToken
	stringToken
	quotedIdentifierToken
	identifierToken
	numberToken
	punctuatorToken
)

var whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
var lineCommentMatcher = parsly.NewToken(lineCommentToken, "LineComment", &lineCommentMatch{})
var blockCommentMatcher = parsly.NewToken(blockCommentToken, "BlockComment", matcher.NewSeqBlock("/*", "*/"))
var stringMatcher = parsly.NewToken(stringToken, "String", &stringMatch{})
var quotedIdentifierMatcher = parsly.NewToken(quotedIdentifierToken, "QuotedIdentifier", &stringMatch{prefix: '#'})
var identifierMatcher = parsly.NewToken(identifierToken, "Identifier", &identifierMatch{})
var numberMatcher = parsly.NewToken(numberToken, "Number", &numberMatch{})
var punctuatorMatcher = parsly.NewToken(punctuatorToken, "Punctuator", &punctuatorMatch{})

// multi-character punctuators, longest first
var punctuators = []string{"...", "..", "=>", "<>", "<=", ">=", "??"}

const singlePunctuators = "=,;(){}[]&+-*/<>@!?"

// M keywords. Dotted or #-prefixed names are never keywords.
var keywords = map[string]bool{
	"and": true, "as": true, "each": true, "else": true, "error": true,
	"false": true, "if": true, "in": true, "is": true, "let": true,
	"meta": true, "not": true, "null": true, "or": true, "otherwise": true,
	"section": true, "shared": true, "then": true, "true": true, "try": true,
	"type": true,
}

// token is a lexed unit; punctuators use kind Operator.
type token struct {
	kind  tree.TokenKind
	value string
	pos   tree.Position
}

func (t token) is(kind tree.TokenKind, value string) bool {
	return t.kind == kind && t.value == value
}

func (t token) String() string {
	if t.kind == eofKind {
		return "end of input"
	}
	return fmt.Sprintf("%q", t.value)
}

// eofKind marks the synthetic end-of-input token.
const eofKind tree.TokenKind = -1

type lineCommentMatch struct{}

func (m *lineCommentMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos+1 >= cursor.InputSize || cursor.Input[pos] != '/' || cursor.Input[pos+1] != '/' {
		return 0
	}
	end := pos + 2
	for end < cursor.InputSize && cursor.Input[end] != '\n' {
		end++
	}
	return end - pos
}

// stringMatch matches an M text literal, where a doubled quote escapes a
// quote. With a prefix byte it matches #"quoted identifiers".
type stringMatch struct {
	prefix byte
}

func (m *stringMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if m.prefix != 0 {
		if pos >= cursor.InputSize || cursor.Input[pos] != m.prefix {
			return 0
		}
		pos++
	}
	if pos >= cursor.InputSize || cursor.Input[pos] != '"' {
		return 0
	}
	pos++
	for pos < cursor.InputSize {
		if cursor.Input[pos] == '"' {
			if pos+1 < cursor.InputSize && cursor.Input[pos+1] == '"' {
				pos += 2
				continue
			}
			return pos + 1 - cursor.Pos
		}
		pos++
	}
	return 0
}

// identifierMatch matches plain and dotted identifiers (Sql.Database) as
// well as #-prefixed intrinsic names (#table, #date).
type identifierMatch struct{}

func (m *identifierMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize {
		return 0
	}
	if cursor.Input[pos] == '#' {
		if pos+1 >= cursor.InputSize || !isIdentifierStart(cursor.Input[pos+1]) {
			return 0
		}
		pos++
	}
	if !isIdentifierStart(cursor.Input[pos]) {
		return 0
	}
	pos++
	for pos < cursor.InputSize {
		b := cursor.Input[pos]
		if isIdentifierPart(b) {
			pos++
			continue
		}
		if b == '.' && pos+1 < cursor.InputSize && isIdentifierStart(cursor.Input[pos+1]) {
			pos++
			continue
		}
		break
	}
	return pos - cursor.Pos
}

func isIdentifierStart(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_' || b >= 0x80
}

func isIdentifierPart(b byte) bool {
	return isIdentifierStart(b) || isDigit(b)
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

func isHexDigit(b byte) bool {
	return isDigit(b) || (b >= 'a' && b <= 'f') || (b >= 'A' && b <= 'F')
}

// numberMatch matches decimal, exponent and hexadecimal literals. Signs are
// left to the parser as unary operators.
type numberMatch struct{}

func (m *numberMatch) Match(cursor *parsly.Cursor) int {
	in, pos, size := cursor.Input, cursor.Pos, cursor.InputSize
	if pos >= size {
		return 0
	}
	if in[pos] == '0' && pos+2 < size && (in[pos+1] == 'x' || in[pos+1] == 'X') && isHexDigit(in[pos+2]) {
		end := pos + 2
		for end < size && isHexDigit(in[end]) {
			end++
		}
		return end - pos
	}
	end := pos
	for end < size && isDigit(in[end]) {
		end++
	}
	if end < size-1 && in[end] == '.' && isDigit(in[end+1]) {
		end++
		for end < size && isDigit(in[end]) {
			end++
		}
	}
	if end == pos {
		return 0
	}
	if end < size && (in[end] == 'e' || in[end] == 'E') {
		exp := end + 1
		if exp < size && (in[exp] == '+' || in[exp] == '-') {
			exp++
		}
		if exp < size && isDigit(in[exp]) {
			for exp < size && isDigit(in[exp]) {
				exp++
			}
			end = exp
		}
	}
	return end - pos
}

type punctuatorMatch struct{}

func (m *punctuatorMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	if pos >= cursor.InputSize {
		return 0
	}
	for _, p := range punctuators {
		if pos+len(p) <= cursor.InputSize && string(cursor.Input[pos:pos+len(p)]) == p {
			return len(p)
		}
	}
	for i := 0; i < len(singlePunctuators); i++ {
		if cursor.Input[pos] == singlePunctuators[i] {
			return 1
		}
	}
	return 0
}

// tokenize splits an M formula into tokens, dropping whitespace and comments.
func tokenize(text string) ([]token, error) {
	input := []byte(text)
	lines := newLineIndex(input)
	cursor := parsly.NewCursor("", input, 0)

	var tokens []token
	for cursor.Pos < cursor.InputSize {
		matched := cursor.MatchAfterOptional(whitespaceMatcher,
			lineCommentMatcher,
			blockCommentMatcher,
			stringMatcher,
			quotedIdentifierMatcher,
			identifierMatcher,
			numberMatcher,
			punctuatorMatcher,
		)
		switch matched.Code {
		case parsly.EOF:
			return append(tokens, token{kind: eofKind, pos: lines.position(len(input))}), nil
		case parsly.Invalid:
			if err := invalidInput(input, cursor.Pos, lines); err != nil {
				return nil, err
			}
			return append(tokens, token{kind: eofKind, pos: lines.position(len(input))}), nil
		case lineCommentToken, blockCommentToken:
			continue
		}

		text := matched.Text(cursor)
		tok := token{value: text, pos: lines.position(matched.Offset)}
		switch matched.Code {
		case stringToken:
			tok.kind = tree.String
		case quotedIdentifierToken:
			tok.kind = tree.QuotedIdentifier
		case numberToken:
			tok.kind = tree.Number
		case punctuatorToken:
			tok.kind = tree.Operator
		case identifierToken:
			tok.kind = tree.Identifier
			if keywords[text] {
				tok.kind = tree.Keyword
			}
		}
		tokens = append(tokens, tok)
	}
	return append(tokens, token{kind: eofKind, pos: lines.position(len(input))}), nil
}

// lineIndex maps byte offsets to line/column positions.
type lineIndex []int

func newLineIndex(input []byte) lineIndex {
	starts := lineIndex{0}
	for i, b := range input {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return starts
}

func (l lineIndex) position(offset int) tree.Position {
	line := 0
	for line+1 < len(l) && l[line+1] <= offset {
		line++
	}
	return tree.Position{Line: line + 1, Column: offset - l[line] + 1, Offset: offset}
}

// invalidInput describes the first byte no matcher accepts. Trailing
// whitespace is not an error and yields nil.
func invalidInput(input []byte, pos int, lines lineIndex) *LexError {
	for pos < len(input) && (input[pos] == ' ' || input[pos] == '\t' || input[pos] == '\r' || input[pos] == '\n') {
		pos++
	}
	if pos >= len(input) {
		return nil
	}
	msg := fmt.Sprintf(ErrUnexpectedCharacter, string(input[pos]))
	if input[pos] == '"' || (input[pos] == '#' && pos+1 < len(input) && input[pos+1] == '"') {
		msg = ErrUnterminatedString
	}
	return &LexError{Pos: lines.position(pos), Message: msg}
}
