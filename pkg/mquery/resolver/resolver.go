// Package resolver walks an M parse tree backwards from a table's output
// variable to the data-access calls that read it, and turns each call into
// the upstream platform tables it references.
//
// # Usage
//
//	root, _ := parser.Parse(expression)
//	reporter := resolver.NewCollectingReporter()
//	r := resolver.NewMQueryResolver("sales.orders", root, reporter,
//	    resolver.WithParameters(params))
//	tables := r.ResolveToDataPlatformTables()
//
// Resolution never fails: anything the resolver cannot follow is reported
// through the Reporter and the affected branch contributes no tables.
package resolver

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/ssogunle-tc/datahub/pkg/mquery/navigator"
	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
	"github.com/ssogunle-tc/datahub/pkg/nativesql"
)

// Warning categories; the reported key is "<table>-<category>".
const (
	WarnVariableStatement     = "variable-statement"
	WarnOutputVariable        = "output-variable"
	WarnDataAccessFunction    = "data-access-function"
	WarnArgList               = "arg-list"
	WarnCyclicReference       = "cyclic-reference"
	WarnUnsupportedExpression = "unsupported-expression"
	WarnNativeQuery           = "native-query"
)

// Session carries the per-table context shared by the resolver and the
// table creators.
type Session struct {
	Table      string
	Parameters map[string]string
	Reporter   Reporter
	Extractor  nativesql.Extractor
	Logger     *slog.Logger
}

// Warn reports a warning keyed by the session's table.
func (s *Session) Warn(category, format string, args ...any) {
	s.Reporter.ReportWarning(s.Table+"-"+category, fmt.Sprintf(format, args...))
}

// Arguments returns the normalized literal values of an argument list.
func (s *Session) Arguments(argList tree.Node) []string {
	return navigator.Arguments(argList, s.Parameters)
}

// Option configures an MQueryResolver.
type Option func(*MQueryResolver)

// WithParameters sets the query parameters substituted into arguments.
func WithParameters(parameters map[string]string) Option {
	return func(r *MQueryResolver) {
		r.session.Parameters = parameters
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *MQueryResolver) {
		if logger != nil {
			r.session.Logger = logger
		}
	}
}

// WithExtractor sets the native SQL extractor.
func WithExtractor(extractor nativesql.Extractor) Option {
	return func(r *MQueryResolver) {
		if extractor != nil {
			r.session.Extractor = extractor
		}
	}
}

// WithNativeQueryParsing toggles Value.NativeQuery support. When disabled
// native queries are skipped with a warning.
func WithNativeQueryParsing(enabled bool) Option {
	return func(r *MQueryResolver) {
		r.nativeQueryParsing = enabled
	}
}

// WithDataAccessFunctions adds function names that end traversal like a
// recognized data-access function. Having no table creator, they surface as
// data-access-function warnings instead of being walked through.
func WithDataAccessFunctions(names ...string) Option {
	return func(r *MQueryResolver) {
		for _, name := range names {
			r.extraFunctions[name] = true
		}
	}
}

// MQueryResolver resolves the upstream tables of one table expression.
// It holds no mutable state between calls, so repeated calls return equal
// results.
type MQueryResolver struct {
	session            Session
	parseTree          *tree.Branch
	nativeQueryParsing bool
	extraFunctions     map[string]bool
}

// NewMQueryResolver creates a resolver for the named table.
func NewMQueryResolver(table string, parseTree *tree.Branch, reporter Reporter, opts ...Option) *MQueryResolver {
	if reporter == nil {
		reporter = discardReporter{}
	}
	r := &MQueryResolver{
		session: Session{
			Table:     table,
			Reporter:  reporter,
			Extractor: nativesql.New(),
			Logger:    slog.New(slog.DiscardHandler),
		},
		parseTree:          parseTree,
		nativeQueryParsing: true,
		extraFunctions:     make(map[string]bool),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveToDataPlatformTables returns the upstream tables of the output
// variable in discovery order. Duplicates are preserved.
func (r *MQueryResolver) ResolveToDataPlatformTables() []DataPlatformTable {
	details := r.outputDetails()

	var tables []DataPlatformTable
	for _, detail := range details {
		supported, ok := GetResolver(detail.DataAccessFunctionName)
		if !ok {
			r.session.Warn(WarnDataAccessFunction,
				"Resolver not found for data-access-function = %s", detail.DataAccessFunctionName)
			continue
		}
		r.session.Logger.Debug("creating platform tables",
			"table", r.session.Table,
			"function", detail.DataAccessFunctionName,
			"resolver", supported.Name)
		tables = append(tables, supported.Creator.CreateTables(&r.session, detail)...)
	}
	return tables
}

// CreateDataAccessFunctionDetails resolves identifier backwards and returns
// one detail per data-access invocation reached.
func (r *MQueryResolver) CreateDataAccessFunctionDetails(identifier string) []DataAccessFunctionDetail {
	return r.resolveIdentifier(identifier, nil, nil)
}

func (r *MQueryResolver) outputDetails() []DataAccessFunctionDetail {
	if r.parseTree == nil {
		r.session.Warn(WarnOutputVariable, "output variable not found in table expression")
		return nil
	}
	if name, ok := navigator.OutputVariable(r.parseTree); ok {
		return r.resolveIdentifier(name, nil, nil)
	}

	// A let whose body is not a bare identifier, or a document without let,
	// is resolved in place.
	var output tree.Node
	if body := navigator.LetBody(r.parseTree); body != nil {
		output = body
	} else if r.parseTree.Rule == tree.RuleDocument && len(r.parseTree.Children) == 1 {
		output = r.parseTree.Children[0]
	}
	if output == nil {
		r.session.Warn(WarnOutputVariable, "output variable not found in table expression")
		return nil
	}
	return r.resolveExpression(output, nil, nil)
}

// resolveIdentifier follows the statement that defines name. path holds the
// variables already on the current branch and guards against cycles.
func (r *MQueryResolver) resolveIdentifier(name string, chain *IdentifierAccessor, path []string) []DataAccessFunctionDetail {
	if slices.Contains(path, name) {
		r.session.Warn(WarnCyclicReference, "cyclic reference to variable %s", name)
		return nil
	}
	path = append(path[:len(path):len(path)], name)

	statement := navigator.VariableStatement(r.parseTree, name)
	if statement == nil {
		r.session.Warn(WarnVariableStatement, "output variable (%s) statement not found in table expression", name)
		return nil
	}
	rhs := navigator.Expression(statement)
	if rhs == nil {
		r.session.Logger.Debug("variable has no expression", "variable", name)
		return nil
	}
	return r.resolveExpression(rhs, chain, path)
}

func (r *MQueryResolver) resolveExpression(expression tree.Node, chain *IdentifierAccessor, path []string) []DataAccessFunctionDetail {
	node := navigator.UnwrapBranch(expression)
	if node == nil {
		return nil
	}

	switch node.Rule {
	case tree.RuleInvokeExpression:
		return r.resolveInvoke(node, chain, path)
	case tree.RuleItemAccessExpression:
		return r.resolveItemAccess(node, chain, path)
	case tree.RuleIdentifier:
		return r.resolveIdentifier(navigator.IdentifierName(node), chain, path)
	case tree.RuleListExpression:
		return r.resolveList(node, chain, path)
	case tree.RuleFieldAccessExpression:
		// Source{...}[Data]: the field projection reads the same table.
		if len(node.Children) == 2 {
			return r.resolveExpression(node.Children[0], chain, path)
		}
	}

	if invoke := navigator.FirstInvokeExpression(node); invoke != nil {
		return r.resolveInvoke(invoke, chain, path)
	}
	r.session.Warn(WarnUnsupportedExpression, "expression %s is not supported", node.Rule)
	return nil
}

func (r *MQueryResolver) resolveInvoke(invoke *tree.Branch, chain *IdentifierAccessor, path []string) []DataAccessFunctionDetail {
	name := navigator.MakeFunctionName(navigator.Callee(invoke))
	argList := navigator.ArgumentList(invoke)

	if r.isDataAccessFunction(name) {
		if name == string(NativeQuery) && !r.nativeQueryParsing {
			r.session.Warn(WarnNativeQuery, "native query parsing is disabled, skipping %s", name)
			return nil
		}
		if argList == nil {
			r.session.Warn(WarnArgList, "Argument list not found for data-access-function %s", name)
			return nil
		}
		return []DataAccessFunctionDetail{{
			DataAccessFunctionName: name,
			ArgList:                argList,
			IdentifierAccessor:     chain.Clone(),
		}}
	}

	args := navigator.FlatArgumentList(argList)
	if len(args) == 0 {
		r.session.Logger.Debug("function invocation without arguments", "function", name)
		return nil
	}

	first := navigator.UnwrapBranch(args[0])
	if first != nil && isTableReference(first.Rule) {
		return r.resolveExpression(first, chain, path)
	}
	r.session.Warn(WarnUnsupportedExpression, "first argument of function %s is not a table reference", displayName(name))
	return nil
}

// resolveList fans out over the items of a list, each with the same chain.
func (r *MQueryResolver) resolveList(list *tree.Branch, chain *IdentifierAccessor, path []string) []DataAccessFunctionDetail {
	var details []DataAccessFunctionDetail
	for _, item := range list.Branches() {
		node := navigator.UnwrapBranch(item)
		if node == nil || !isTableReference(node.Rule) {
			r.session.Logger.Debug("skipping list item", "rule", ruleOf(node))
			continue
		}
		details = append(details, r.resolveExpression(node, chain, path)...)
	}
	return details
}

// resolveItemAccess handles Target{[K=v,...]}: a frame for the selector is
// prepended and resolution continues with the target.
func (r *MQueryResolver) resolveItemAccess(access *tree.Branch, chain *IdentifierAccessor, path []string) []DataAccessFunctionDetail {
	if len(access.Children) < 2 {
		r.session.Warn(WarnUnsupportedExpression, "item selector without target")
		return nil
	}
	target := navigator.UnwrapBranch(access.Children[0])
	selector, _ := access.Children[1].(*tree.Branch)
	items := r.selectorItems(selector)

	if target != nil && target.Rule == tree.RuleIdentifier {
		name := navigator.IdentifierName(target)
		return r.resolveIdentifier(name, prepend(chain, name, items), path)
	}

	var identifier string
	if target != nil && target.Rule == tree.RuleInvokeExpression {
		identifier = navigator.MakeFunctionName(navigator.Callee(target))
	}
	return r.resolveExpression(target, prepend(chain, identifier, items), path)
}

// selectorItems returns the key/value pairs of a record item selector.
// Positional selectors such as Source{0} yield no items.
func (r *MQueryResolver) selectorItems(selector *tree.Branch) map[string]string {
	if selector == nil || len(selector.Children) == 0 {
		return map[string]string{}
	}
	record := navigator.UnwrapBranch(selector.Children[0])
	if record == nil || record.Rule != tree.RuleRecordExpression {
		r.session.Logger.Debug("item selector is not a record", "rule", ruleOf(record))
		return map[string]string{}
	}
	return navigator.RecordFields(record, r.session.Parameters)
}

func (r *MQueryResolver) isDataAccessFunction(name string) bool {
	if name == "" {
		return false
	}
	if _, ok := GetResolver(name); ok {
		return true
	}
	return r.extraFunctions[name]
}

func isTableReference(rule string) bool {
	switch rule {
	case tree.RuleIdentifier, tree.RuleInvokeExpression, tree.RuleItemAccessExpression,
		tree.RuleFieldAccessExpression, tree.RuleListExpression:
		return true
	}
	return false
}

func ruleOf(b *tree.Branch) string {
	if b == nil {
		return ""
	}
	return b.Rule
}

func displayName(name string) string {
	if name == "" {
		return "<anonymous>"
	}
	return name
}
