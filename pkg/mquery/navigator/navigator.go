// Package navigator answers structural questions about an M parse tree:
// where a variable is defined, which function an invocation calls, what
// literal values an argument list carries.
//
// All functions are pure and never mutate the tree. "First" always means
// first in pre-order, the node itself included.
package navigator

import (
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// VariableStatement returns the variable branch that defines name, or nil.
// Quoted identifiers match on their unquoted text, so #"My Table" is found
// by "My Table".
func VariableStatement(root tree.Node, name string) *tree.Branch {
	return tree.Find(root, func(b *tree.Branch) bool {
		if b.Rule != tree.RuleVariable {
			return false
		}
		return VariableName(b) == name
	})
}

// VariableName returns the declared name of a variable branch.
func VariableName(variable *tree.Branch) string {
	if variable == nil {
		return ""
	}
	name := variable.Child(tree.RuleVariableName)
	if name == nil {
		return ""
	}
	return IdentifierName(name)
}

// Expression returns the first expression branch strictly below n.
func Expression(n tree.Node) *tree.Branch {
	return firstBelow(n, tree.RuleExpression)
}

// FirstInvokeExpression returns the first function invocation under n.
func FirstInvokeExpression(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleInvokeExpression)
}

// FirstItemSelector returns the first item access (Source{...}) under n.
func FirstItemSelector(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleItemAccessExpression)
}

// FirstIdentifier returns the first identifier under n.
func FirstIdentifier(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleIdentifier)
}

// FirstArgumentList returns the first argument list under n.
func FirstArgumentList(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleArgumentList)
}

// FirstListExpression returns the first list literal under n.
func FirstListExpression(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleListExpression)
}

// FirstTypeExpression returns the first type expression under n.
func FirstTypeExpression(n tree.Node) *tree.Branch {
	return tree.FindRule(n, tree.RuleTypeExpression)
}

// ArgumentList returns the argument list belonging to invoke itself, which
// unlike FirstArgumentList never descends into the callee.
func ArgumentList(invoke *tree.Branch) *tree.Branch {
	if invoke == nil || len(invoke.Children) < 2 {
		return nil
	}
	if args, ok := invoke.Children[1].(*tree.Branch); ok && args.Rule == tree.RuleArgumentList {
		return args
	}
	return nil
}

// Callee returns the invoked expression of an invocation.
func Callee(invoke *tree.Branch) tree.Node {
	if invoke == nil || len(invoke.Children) == 0 {
		return nil
	}
	return invoke.Children[0]
}

// FlatArgumentList returns the top-level argument expressions of an
// argument list, in order.
func FlatArgumentList(argList *tree.Branch) []*tree.Branch {
	if argList == nil {
		return nil
	}
	var args []*tree.Branch
	for _, c := range argList.Children {
		if b, ok := c.(*tree.Branch); ok && b.Rule == tree.RuleExpression {
			args = append(args, b)
		}
	}
	return args
}

// Unwrap strips expression and parenthesized_expression wrappers and
// returns the node that determines the expression's shape.
func Unwrap(n tree.Node) tree.Node {
	for {
		b, ok := n.(*tree.Branch)
		if !ok || b == nil || len(b.Children) != 1 {
			return n
		}
		if b.Rule != tree.RuleExpression && b.Rule != tree.RuleParenthesizedExpression {
			return n
		}
		n = b.Children[0]
	}
}

// UnwrapBranch is Unwrap for callers that only care about branches.
func UnwrapBranch(n tree.Node) *tree.Branch {
	b, _ := Unwrap(n).(*tree.Branch)
	return b
}

// MakeFunctionName returns the dotted name of an invoked function, e.g.
// "Sql.Database". A callee that is not a plain identifier yields "".
func MakeFunctionName(callee tree.Node) string {
	b := UnwrapBranch(callee)
	if b == nil || b.Rule != tree.RuleIdentifier {
		return ""
	}
	return IdentifierName(b)
}

// IdentifierName returns the unquoted name held by an identifier-like
// branch (identifier, variable_name, field_name).
func IdentifierName(n tree.Node) string {
	leaves := tree.Leaves(n)
	if len(leaves) == 0 {
		return ""
	}
	return leafName(leaves[0])
}

func leafName(l *tree.Leaf) string {
	if l.Kind == tree.QuotedIdentifier {
		return UnquoteString(strings.TrimPrefix(l.Value, "#"))
	}
	return l.Value
}

// OutputVariable returns the name the top-level let expression evaluates
// to. ok is false when the document has no let or its in-expression is not
// a bare identifier.
func OutputVariable(root tree.Node) (name string, ok bool) {
	body := LetBody(root)
	if body == nil {
		return "", false
	}
	id := UnwrapBranch(body)
	if id == nil || id.Rule != tree.RuleIdentifier {
		return "", false
	}
	return IdentifierName(id), true
}

// LetBody returns the in-expression of the document's top-level let, or nil.
func LetBody(root tree.Node) *tree.Branch {
	let := UnwrapBranch(documentExpression(root))
	if let == nil || let.Rule != tree.RuleLetExpression || len(let.Children) < 2 {
		return nil
	}
	body, _ := let.Children[1].(*tree.Branch)
	return body
}

func documentExpression(root tree.Node) tree.Node {
	if b, ok := root.(*tree.Branch); ok && b != nil && b.Rule == tree.RuleDocument && len(b.Children) == 1 {
		return b.Children[0]
	}
	return root
}

// RecordFields returns the key/value pairs of a record literal, values
// normalized and parameter-substituted. Non-literal values are rendered as
// their joined token text.
func RecordFields(record *tree.Branch, parameters map[string]string) map[string]string {
	fields := make(map[string]string)
	if record == nil || record.Rule != tree.RuleRecordExpression {
		return fields
	}
	for _, f := range record.Branches() {
		if f.Rule != tree.RuleField {
			continue
		}
		name := f.Child(tree.RuleFieldName)
		if name == nil {
			continue
		}
		values := RemoveWhitespaces(StripChars(TokenValues(f.Child(tree.RuleExpression), parameters)))
		fields[IdentifierName(name)] = strings.Join(values, " ")
	}
	return fields
}

func firstBelow(n tree.Node, rule string) *tree.Branch {
	b, ok := n.(*tree.Branch)
	if !ok || b == nil {
		return nil
	}
	for _, c := range b.Children {
		if found := tree.FindRule(c, rule); found != nil {
			return found
		}
	}
	return nil
}
