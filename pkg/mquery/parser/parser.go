// Package parser parses Power Query M formulas into a tree.Branch.
//
// # Usage
//
//	root, err := parser.Parse(`let Source = Sql.Database("host", "db") in Source`)
//	if err != nil {
//	    // handle error
//	}
//
// # Grammar Overview
//
// The parser is a recursive descent parser for the expression subset of M
// used by data-source formulas. Section documents are not supported.
//
//	document      → expression
//	expression    → let_expression | each_expression | if_expression
//	              | try_expression | function_expression | logical
//	let_expression→ LET variable {"," variable} IN expression
//	variable      → name "=" expression
//	logical       → unary {binop unary}
//	unary         → ("-" | "+" | NOT) unary | TYPE type | postfix
//	postfix       → primary {"(" args ")" | "{" expression "}" | "[" field "]"}
//	primary       → literal | identifier | list | record | "(" expression ")"
package parser

import (
	"fmt"
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// maxDepth bounds expression nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

// Parser parses a token stream into a tree.
type Parser struct {
	tokens []token
	pos    int
	depth  int
	err    error
}

// Parse parses an M formula and returns the document branch.
func Parse(text string) (*tree.Branch, error) {
	tokens, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &Parser{tokens: tokens}
	if p.atEOF() {
		return nil, &ParseError{Pos: p.cur().pos, Message: ErrEmptyExpression}
	}

	expr := p.parseExpression()
	if p.err == nil && !p.atEOF() {
		p.unexpected("end of input")
	}
	if p.err != nil {
		return nil, p.err
	}
	return tree.NewBranch(tree.RuleDocument, expr), nil
}

// MustParse is like Parse but panics on error. Intended for tests and
// static formulas.
func MustParse(text string) *tree.Branch {
	root, err := Parse(text)
	if err != nil {
		panic(fmt.Sprintf("parser.MustParse: %v", err))
	}
	return root
}

// ---------- Token Helpers ----------

func (p *Parser) cur() token {
	return p.peekAt(0)
}

func (p *Parser) peekAt(n int) token {
	if p.pos+n < len(p.tokens) {
		return p.tokens[p.pos+n]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) advance() token {
	tok := p.cur()
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return tok
}

func (p *Parser) atEOF() bool {
	return p.cur().kind == eofKind
}

func (p *Parser) checkOp(value string) bool {
	return p.cur().is(tree.Operator, value)
}

func (p *Parser) checkKeyword(value string) bool {
	return p.cur().is(tree.Keyword, value)
}

// expectOp consumes the given punctuator or records an error.
func (p *Parser) expectOp(value string) bool {
	if p.checkOp(value) {
		p.advance()
		return true
	}
	p.unexpected(fmt.Sprintf("%q", value))
	return false
}

func (p *Parser) expectKeyword(value string) bool {
	if p.checkKeyword(value) {
		p.advance()
		return true
	}
	p.unexpected(fmt.Sprintf("%q", value))
	return false
}

// unexpected records the first error only; later calls are no-ops.
func (p *Parser) unexpected(expected string) {
	tok := p.cur()
	if tok.kind == eofKind {
		p.fail(tok.pos, ErrUnexpectedEOF+", expected "+expected)
		return
	}
	p.fail(tok.pos, fmt.Sprintf(ErrUnexpectedToken, tok, expected))
}

func (p *Parser) fail(pos tree.Position, msg string) {
	if p.err == nil {
		p.err = &ParseError{Pos: pos, Message: msg}
	}
}

func leafOf(tok token) *tree.Leaf {
	return &tree.Leaf{Kind: tok.kind, Value: tok.value, Pos: tok.pos}
}

// ---------- Expressions ----------

// parseExpression parses an expression wrapped in an expression branch.
func (p *Parser) parseExpression() *tree.Branch {
	if p.err != nil {
		return nil
	}
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxDepth {
		p.fail(p.cur().pos, fmt.Sprintf(ErrTooDeep, maxDepth))
		return nil
	}

	inner := p.parseExpressionBody()
	if p.err != nil {
		return nil
	}
	return tree.NewBranch(tree.RuleExpression, inner)
}

func (p *Parser) parseExpressionBody() tree.Node {
	switch {
	case p.checkKeyword("let"):
		return p.parseLet()
	case p.checkKeyword("each"):
		p.advance()
		return tree.NewBranch(tree.RuleEachExpression, p.parseExpression())
	case p.checkKeyword("if"):
		return p.parseIf()
	case p.checkKeyword("try"):
		return p.parseTry()
	case p.checkKeyword("error"):
		tok := p.advance()
		return tree.NewBranch(tree.RuleUnaryExpression, leafOf(tok), p.parseExpression())
	case p.checkOp("(") && p.looksLikeFunction():
		return p.parseFunction()
	}
	return p.parseBinary(1)
}

// let_expression → LET variable {"," variable} IN expression
func (p *Parser) parseLet() tree.Node {
	p.advance() // let

	vars := tree.NewBranch(tree.RuleVariableList)
	for p.err == nil {
		v := p.parseVariable()
		if v == nil {
			return nil
		}
		vars.Children = append(vars.Children, v)
		if !p.checkOp(",") {
			break
		}
		p.advance()
	}
	if !p.expectKeyword("in") {
		return nil
	}
	body := p.parseExpression()
	return tree.NewBranch(tree.RuleLetExpression, vars, body)
}

// variable → name "=" expression
func (p *Parser) parseVariable() *tree.Branch {
	tok := p.cur()
	if tok.kind != tree.Identifier && tok.kind != tree.QuotedIdentifier {
		p.unexpected("variable name")
		return nil
	}
	p.advance()
	if !p.expectOp("=") {
		return nil
	}
	value := p.parseExpression()
	if value == nil {
		return nil
	}
	name := tree.NewBranch(tree.RuleVariableName, tree.NewBranch(tree.RuleIdentifier, leafOf(tok)))
	return tree.NewBranch(tree.RuleVariable, name, value)
}

// if_expression → IF expression THEN expression ELSE expression
func (p *Parser) parseIf() tree.Node {
	p.advance() // if
	cond := p.parseExpression()
	if !p.expectKeyword("then") {
		return nil
	}
	then := p.parseExpression()
	if !p.expectKeyword("else") {
		return nil
	}
	otherwise := p.parseExpression()
	return tree.NewBranch(tree.RuleIfExpression, cond, then, otherwise)
}

// try_expression → TRY expression [OTHERWISE expression]
func (p *Parser) parseTry() tree.Node {
	p.advance() // try
	body := p.parseExpression()
	if !p.checkKeyword("otherwise") {
		return tree.NewBranch(tree.RuleTryExpression, body)
	}
	p.advance()
	return tree.NewBranch(tree.RuleTryExpression, body, p.parseExpression())
}

// looksLikeFunction reports whether the parenthesis at the cursor opens a
// function parameter list, i.e. the matching ")" is followed by "=>" or by
// an "as" return type and then "=>".
func (p *Parser) looksLikeFunction() bool {
	depth := 0
	i := 0
	for {
		tok := p.peekAt(i)
		if tok.kind == eofKind {
			return false
		}
		if tok.is(tree.Operator, "(") {
			depth++
		} else if tok.is(tree.Operator, ")") {
			depth--
			if depth == 0 {
				break
			}
		}
		i++
	}
	next := p.peekAt(i + 1)
	if next.is(tree.Operator, "=>") {
		return true
	}
	if !next.is(tree.Keyword, "as") {
		return false
	}
	j := i + 2
	if p.peekAt(j).is(tree.Identifier, "nullable") {
		j++
	}
	return p.peekAt(j).kind == tree.Identifier && p.peekAt(j+1).is(tree.Operator, "=>")
}

// function_expression → "(" [param {"," param}] ")" ["as" type] "=>" expression
func (p *Parser) parseFunction() tree.Node {
	p.advance() // (
	params := tree.NewBranch(tree.RuleParameterList)
	for p.err == nil && !p.checkOp(")") {
		if p.cur().is(tree.Identifier, "optional") && p.peekAt(1).kind != tree.Operator {
			p.advance()
		}
		tok := p.cur()
		if tok.kind != tree.Identifier && tok.kind != tree.QuotedIdentifier {
			p.unexpected("parameter name")
			return nil
		}
		p.advance()
		params.Children = append(params.Children, tree.NewBranch(tree.RuleIdentifier, leafOf(tok)))
		if p.checkKeyword("as") {
			p.advance()
			p.parseTypeName()
		}
		if !p.checkOp(",") {
			break
		}
		p.advance()
	}
	if !p.expectOp(")") {
		return nil
	}
	if p.checkKeyword("as") {
		p.advance()
		p.parseTypeName()
	}
	if !p.expectOp("=>") {
		return nil
	}
	return tree.NewBranch(tree.RuleFunctionExpression, params, p.parseExpression())
}

// binaryPrecedence returns the binding power of a binary operator token.
func binaryPrecedence(tok token) (int, bool) {
	switch tok.kind {
	case tree.Keyword:
		switch tok.value {
		case "or":
			return 2, true
		case "and":
			return 3, true
		case "as", "is":
			return 4, true
		case "meta":
			return 7, true
		}
	case tree.Operator:
		switch tok.value {
		case "??":
			return 1, true
		case "=", "<>", "<", ">", "<=", ">=":
			return 4, true
		case "&", "+", "-":
			return 5, true
		case "*", "/":
			return 6, true
		}
	}
	return 0, false
}

func (p *Parser) parseBinary(minPrec int) tree.Node {
	left := p.parseUnary()
	for p.err == nil {
		tok := p.cur()
		prec, ok := binaryPrecedence(tok)
		if !ok || prec < minPrec {
			break
		}
		p.advance()

		var right tree.Node
		if tok.is(tree.Keyword, "as") || tok.is(tree.Keyword, "is") {
			right = p.parseTypeName()
		} else {
			right = p.parseBinary(prec + 1)
		}
		op := &tree.Leaf{Kind: tree.Operator, Value: tok.value, Pos: tok.pos}
		left = tree.NewBranch(tree.RuleBinaryExpression, left, op, right)
	}
	return left
}

func (p *Parser) parseUnary() tree.Node {
	if p.err != nil {
		return nil
	}
	tok := p.cur()
	switch {
	case tok.is(tree.Operator, "-"), tok.is(tree.Operator, "+"), tok.is(tree.Keyword, "not"):
		p.advance()
		op := &tree.Leaf{Kind: tree.Operator, Value: tok.value, Pos: tok.pos}
		return tree.NewBranch(tree.RuleUnaryExpression, op, p.parseUnary())
	case tok.is(tree.Keyword, "type"):
		p.advance()
		return p.parseTypeName()
	}
	return p.parsePostfix()
}

// ---------- Postfix & Primary ----------

func (p *Parser) parsePostfix() tree.Node {
	node := p.parsePrimary()
	for p.err == nil {
		switch {
		case p.checkOp("("):
			node = tree.NewBranch(tree.RuleInvokeExpression, node, p.parseArgumentList())
		case p.checkOp("{"):
			node = tree.NewBranch(tree.RuleItemAccessExpression, node, p.parseItemSelector())
		case p.checkOp("["):
			node = tree.NewBranch(tree.RuleFieldAccessExpression, node, p.parseFieldSelector())
		default:
			return node
		}
	}
	return node
}

func (p *Parser) parsePrimary() tree.Node {
	if p.err != nil {
		return nil
	}
	tok := p.cur()
	switch {
	case tok.kind == tree.String, tok.kind == tree.Number:
		p.advance()
		return tree.NewBranch(tree.RuleLiteralExpression, leafOf(tok))
	case tok.is(tree.Keyword, "null"), tok.is(tree.Keyword, "true"), tok.is(tree.Keyword, "false"):
		p.advance()
		return tree.NewBranch(tree.RuleLiteralExpression, leafOf(tok))
	case tok.kind == tree.Identifier, tok.kind == tree.QuotedIdentifier:
		p.advance()
		return tree.NewBranch(tree.RuleIdentifier, leafOf(tok))
	case tok.is(tree.Operator, "@"):
		p.advance()
		name := p.cur()
		if name.kind != tree.Identifier && name.kind != tree.QuotedIdentifier {
			p.unexpected("identifier")
			return nil
		}
		p.advance()
		return tree.NewBranch(tree.RuleIdentifier, leafOf(name))
	case tok.is(tree.Operator, "{"):
		return p.parseList()
	case tok.is(tree.Operator, "["):
		return p.parseRecordOrImplicitAccess()
	case tok.is(tree.Operator, "("):
		p.advance()
		inner := p.parseExpression()
		if !p.expectOp(")") {
			return nil
		}
		return tree.NewBranch(tree.RuleParenthesizedExpression, inner)
	case tok.is(tree.Operator, "..."):
		p.advance()
		return tree.NewBranch(tree.RuleLiteralExpression, leafOf(tok))
	case tok.kind == tree.Keyword:
		switch tok.value {
		case "let", "each", "if", "try", "error":
			return p.parseExpressionBody()
		}
	}
	p.unexpected("expression")
	return nil
}

// argument_list → "(" [expression {"," expression}] ")"
func (p *Parser) parseArgumentList() *tree.Branch {
	p.advance() // (
	args := tree.NewBranch(tree.RuleArgumentList)
	for p.err == nil && !p.checkOp(")") {
		args.Children = append(args.Children, p.parseExpression())
		if !p.checkOp(",") {
			break
		}
		p.advance()
	}
	if !p.expectOp(")") {
		return nil
	}
	return args
}

// item_selector → "{" expression "}" ["?"]
func (p *Parser) parseItemSelector() *tree.Branch {
	p.advance() // {
	selector := tree.NewBranch(tree.RuleItemSelector, p.parseExpression())
	if !p.expectOp("}") {
		return nil
	}
	if p.checkOp("?") {
		selector.Children = append(selector.Children, leafOf(p.advance()))
	}
	return selector
}

// field_selector → "[" name "]" ["?"] | "[" "[" name "]" {"," "[" name "]"} "]" ["?"]
func (p *Parser) parseFieldSelector() *tree.Branch {
	p.advance() // [
	selector := tree.NewBranch(tree.RuleFieldSelector)
	if p.checkOp("[") {
		for p.err == nil {
			if !p.expectOp("[") {
				return nil
			}
			selector.Children = append(selector.Children, p.parseFieldName())
			if !p.expectOp("]") {
				return nil
			}
			if !p.checkOp(",") {
				break
			}
			p.advance()
		}
	} else {
		selector.Children = append(selector.Children, p.parseFieldName())
	}
	if !p.expectOp("]") {
		return nil
	}
	if p.checkOp("?") {
		selector.Children = append(selector.Children, leafOf(p.advance()))
	}
	return selector
}

// parseFieldName parses a generalized identifier, which may span several
// words ([Column Name]) or be a quoted identifier.
func (p *Parser) parseFieldName() *tree.Branch {
	tok := p.cur()
	if tok.kind == tree.QuotedIdentifier || tok.kind == tree.String {
		p.advance()
		return tree.NewBranch(tree.RuleFieldName, leafOf(tok))
	}

	var words []string
	for {
		t := p.cur()
		if t.kind != tree.Identifier && t.kind != tree.Keyword && t.kind != tree.Number {
			break
		}
		words = append(words, t.value)
		p.advance()
	}
	if len(words) == 0 {
		p.unexpected("field name")
		return nil
	}
	return tree.NewBranch(tree.RuleFieldName, &tree.Leaf{Kind: tree.Identifier, Value: strings.Join(words, " "), Pos: tok.pos})
}

// list_expression → "{" [item {"," item}] "}" where item → expression [".." expression]
func (p *Parser) parseList() tree.Node {
	p.advance() // {
	list := tree.NewBranch(tree.RuleListExpression)
	for p.err == nil && !p.checkOp("}") {
		item := p.parseExpression()
		if p.checkOp("..") {
			p.advance()
			item = tree.NewBranch(tree.RuleExpression, tree.NewBranch(tree.RuleRangeExpression, item, p.parseExpression()))
		}
		list.Children = append(list.Children, item)
		if !p.checkOp(",") {
			break
		}
		p.advance()
	}
	if !p.expectOp("}") {
		return nil
	}
	return list
}

// parseRecordOrImplicitAccess disambiguates "[" at primary position: a
// record literal has "name =", while "[name]" is field access on the
// implicit each parameter.
func (p *Parser) parseRecordOrImplicitAccess() tree.Node {
	if p.peekAt(1).is(tree.Operator, "[") {
		return tree.NewBranch(tree.RuleFieldAccessExpression, p.parseFieldSelector())
	}
	if p.peekAt(1).is(tree.Operator, "]") {
		p.advance()
		p.advance()
		return tree.NewBranch(tree.RuleRecordExpression)
	}

	saved := p.pos
	p.advance()
	p.parseFieldName()
	isRecord := p.err == nil && p.checkOp("=")
	p.pos, p.err = saved, nil
	if !isRecord {
		return tree.NewBranch(tree.RuleFieldAccessExpression, p.parseFieldSelector())
	}
	return p.parseRecord(p.parseExpression)
}

// record_expression → "[" field {"," field} "]" where field → name "=" value
func (p *Parser) parseRecord(value func() *tree.Branch) tree.Node {
	p.advance() // [
	record := tree.NewBranch(tree.RuleRecordExpression)
	for p.err == nil && !p.checkOp("]") {
		name := p.parseFieldName()
		if !p.expectOp("=") {
			return nil
		}
		record.Children = append(record.Children, tree.NewBranch(tree.RuleField, name, value()))
		if !p.checkOp(",") {
			break
		}
		p.advance()
	}
	if !p.expectOp("]") {
		return nil
	}
	return record
}

// ---------- Types ----------

// parseTypeName parses the operand of "type", "as" and "is":
//
//	type → ["nullable"] (name [record | list] | record | list | "(" type ")")
func (p *Parser) parseTypeName() *tree.Branch {
	if p.err != nil {
		return nil
	}
	t := tree.NewBranch(tree.RuleTypeExpression)
	if p.cur().is(tree.Identifier, "nullable") {
		t.Children = append(t.Children, leafOf(p.advance()))
	}

	switch tok := p.cur(); {
	case tok.kind == tree.Identifier || tok.is(tree.Keyword, "null"):
		p.advance()
		t.Children = append(t.Children, tree.NewBranch(tree.RuleIdentifier, leafOf(tok)))
		switch {
		case p.checkOp("["):
			t.Children = append(t.Children, p.parseTypeRecord())
		case p.checkOp("{"):
			t.Children = append(t.Children, p.parseTypeList())
		}
	case tok.is(tree.Operator, "["):
		t.Children = append(t.Children, p.parseTypeRecord())
	case tok.is(tree.Operator, "{"):
		t.Children = append(t.Children, p.parseTypeList())
	case tok.is(tree.Operator, "("):
		p.advance()
		t.Children = append(t.Children, p.parseTypeName())
		p.expectOp(")")
	default:
		p.unexpected("type")
		return nil
	}
	if p.err != nil {
		return nil
	}
	return t
}

func (p *Parser) parseTypeRecord() tree.Node {
	if p.peekAt(1).is(tree.Operator, "]") {
		p.advance()
		p.advance()
		return tree.NewBranch(tree.RuleRecordExpression)
	}
	return p.parseRecord(func() *tree.Branch {
		return tree.NewBranch(tree.RuleExpression, p.parseTypeName())
	})
}

func (p *Parser) parseTypeList() tree.Node {
	p.advance() // {
	list := tree.NewBranch(tree.RuleListExpression, tree.NewBranch(tree.RuleExpression, p.parseTypeName()))
	if !p.expectOp("}") {
		return nil
	}
	return list
}
