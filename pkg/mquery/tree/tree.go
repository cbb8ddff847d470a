// Package tree defines the parse tree produced for Power Query M formulas.
//
// The tree is made of two node kinds: a Branch named after the grammar rule
// that produced it, and a Leaf holding a single token. Punctuation is not
// kept in the tree; only identifiers, literals, keywords and operators are.
//
//	let_expression
//	  variable_list
//	    variable
//	      variable_name
//	        identifier	Source
//	      expression
//	        invoke_expression
//	          ...
//
// Trees are immutable once built and safe for concurrent reads.
package tree

import (
	"strings"
)

// Grammar rule names used for branch nodes.
const (
	RuleDocument                = "document"
	RuleLetExpression           = "let_expression"
	RuleVariableList            = "variable_list"
	RuleVariable                = "variable"
	RuleVariableName            = "variable_name"
	RuleExpression              = "expression"
	RuleInvokeExpression        = "invoke_expression"
	RuleArgumentList            = "argument_list"
	RuleItemAccessExpression    = "item_access_expression"
	RuleItemSelector            = "item_selector"
	RuleFieldAccessExpression   = "field_access_expression"
	RuleFieldSelector           = "field_selector"
	RuleListExpression          = "list_expression"
	RuleRecordExpression        = "record_expression"
	RuleField                   = "field"
	RuleFieldName               = "field_name"
	RuleIdentifier              = "identifier"
	RuleLiteralExpression       = "literal_expression"
	RuleTypeExpression          = "type_expression"
	RuleBinaryExpression        = "binary_expression"
	RuleUnaryExpression         = "unary_expression"
	RuleEachExpression          = "each_expression"
	RuleIfExpression            = "if_expression"
	RuleTryExpression           = "try_expression"
	RuleFunctionExpression      = "function_expression"
	RuleParameterList           = "parameter_list"
	RuleParenthesizedExpression = "parenthesized_expression"
	RuleRangeExpression         = "range_expression"
)

// TokenKind classifies a leaf token.
type TokenKind int

// Token kinds.
const (
	Identifier       TokenKind = iota // Source, Sql.Database, #table
	QuotedIdentifier                  // #"Changed Type"
	String                            // "text" (quotes kept)
	Number                            // 42, 1.5e3, 0xff
	Keyword                           // let, in, each, null, true ...
	Operator                          // =, <>, &, and, or ...
)

var kindNames = [...]string{
	Identifier:       "IDENTIFIER",
	QuotedIdentifier: "QUOTED_IDENTIFIER",
	String:           "STRING",
	Number:           "NUMBER",
	Keyword:          "KEYWORD",
	Operator:         "OPERATOR",
}

func (k TokenKind) String() string {
	if k >= 0 && int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "UNKNOWN"
}

// Position is a location in the M source.
type Position struct {
	Line   int // 1-based
	Column int // 1-based
	Offset int // 0-based byte offset
}

// Node is either a *Branch or a *Leaf.
type Node interface {
	node()
}

// Branch is an interior node named after a grammar rule.
type Branch struct {
	Rule     string
	Children []Node
}

// Leaf is a single token. Value is the raw source text, so string
// literals keep their surrounding quotes.
type Leaf struct {
	Kind  TokenKind
	Value string
	Pos   Position
}

func (*Branch) node() {}
func (*Leaf) node()   {}

// NewBranch creates a branch, dropping nil children.
func NewBranch(rule string, children ...Node) *Branch {
	b := &Branch{Rule: rule, Children: make([]Node, 0, len(children))}
	for _, c := range children {
		if c == nil {
			continue
		}
		if br, ok := c.(*Branch); ok && br == nil {
			continue
		}
		b.Children = append(b.Children, c)
	}
	return b
}

// Is reports whether n is a branch produced by the given rule.
func Is(n Node, rule string) bool {
	b, ok := n.(*Branch)
	return ok && b != nil && b.Rule == rule
}

// Branches returns the direct children of b that are branches.
func (b *Branch) Branches() []*Branch {
	var out []*Branch
	for _, c := range b.Children {
		if br, ok := c.(*Branch); ok {
			out = append(out, br)
		}
	}
	return out
}

// Child returns the first direct child branch with the given rule.
func (b *Branch) Child(rule string) *Branch {
	for _, c := range b.Children {
		if br, ok := c.(*Branch); ok && br.Rule == rule {
			return br
		}
	}
	return nil
}

// Walk visits n and its descendants in pre-order. Returning false from fn
// skips the children of the visited node.
func Walk(n Node, fn func(Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	if b, ok := n.(*Branch); ok {
		for _, c := range b.Children {
			Walk(c, fn)
		}
	}
}

// Find returns the first branch in pre-order, n included, that matches pred.
func Find(n Node, pred func(*Branch) bool) *Branch {
	var found *Branch
	Walk(n, func(c Node) bool {
		if found != nil {
			return false
		}
		if b, ok := c.(*Branch); ok && pred(b) {
			found = b
			return false
		}
		return true
	})
	return found
}

// FindRule returns the first branch in pre-order with the given rule.
func FindRule(n Node, rule string) *Branch {
	return Find(n, func(b *Branch) bool { return b.Rule == rule })
}

// Leaves returns every leaf under n in source order.
func Leaves(n Node) []*Leaf {
	var leaves []*Leaf
	Walk(n, func(c Node) bool {
		if l, ok := c.(*Leaf); ok {
			leaves = append(leaves, l)
		}
		return true
	})
	return leaves
}

// Text joins the raw values of every leaf under n with single spaces.
func Text(n Node) string {
	leaves := Leaves(n)
	parts := make([]string, len(leaves))
	for i, l := range leaves {
		parts[i] = l.Value
	}
	return strings.Join(parts, " ")
}

// Pretty renders n as an indented dump, one node per line. A branch whose
// only child is a leaf is printed on a single line.
func Pretty(n Node) string {
	var sb strings.Builder
	pretty(&sb, n, 0)
	return sb.String()
}

func pretty(sb *strings.Builder, n Node, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := n.(type) {
	case *Leaf:
		sb.WriteString(indent)
		sb.WriteString(v.Value)
		sb.WriteByte('\n')
	case *Branch:
		sb.WriteString(indent)
		sb.WriteString(v.Rule)
		if len(v.Children) == 1 {
			if l, ok := v.Children[0].(*Leaf); ok {
				sb.WriteByte('\t')
				sb.WriteString(l.Value)
				sb.WriteByte('\n')
				return
			}
		}
		sb.WriteByte('\n')
		for _, c := range v.Children {
			pretty(sb, c, depth+1)
		}
	}
}
