// Package nativesql extracts the names of the tables an embedded SQL
// statement reads from.
//
// Power BI data sources may embed raw SQL (Value.NativeQuery, or the Query
// option of Sql.Database). The extractor parses that text with
// github.com/viant/sqlparser and reports every table referenced in FROM and
// JOIN clauses, descending into derived tables, common table expressions,
// UNION branches and subqueries. CTE names are not reported. When the
// statement cannot be parsed, a lexical FROM/JOIN scan is used instead.
package nativesql

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"strings"

	"github.com/viant/sqlparser"
	"github.com/viant/sqlparser/expr"
	"github.com/viant/sqlparser/node"
	"github.com/viant/sqlparser/query"
)

// Extractor returns the tables referenced by a SQL statement as dotted
// names (db.schema.table, schema.table or table) in discovery order.
type Extractor interface {
	Tables(sql string) ([]string, error)
}

// ErrEmptyStatement is returned for blank SQL text.
var ErrEmptyStatement = errors.New("empty SQL statement")

// maxNesting bounds derived-table recursion.
const maxNesting = 32

var (
	bracketIdentifier = regexp.MustCompile(`\[([^\[\]]+)\]`)
	lineComment       = regexp.MustCompile(`--[^\n]*`)
	blockComment      = regexp.MustCompile(`(?s)/\*.*?\*/`)
	cteAlias          = regexp.MustCompile(`(?i)(?:\bwith(?:\s+recursive)?|,)\s*([A-Za-z_][\w$]*)\s+as\s*\(`)
	fromJoinClause    = regexp.MustCompile(`(?i)\b(?:from|join)\s+([A-Za-z_"` + "`" + `][\w$"` + "`" + `]*(?:\s*\.\s*[A-Za-z_"` + "`" + `][\w$"` + "`" + `]*)*)`)
)

// Parser is the sqlparser-backed Extractor.
type Parser struct {
	logger   *slog.Logger
	fallback bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithLogger sets the logger used for parse diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Parser) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithFallback enables or disables the lexical scan used when the
// statement does not parse. Enabled by default.
func WithFallback(enabled bool) Option {
	return func(p *Parser) {
		p.fallback = enabled
	}
}

// New creates a Parser.
func New(opts ...Option) *Parser {
	p := &Parser{
		logger:   slog.New(slog.DiscardHandler),
		fallback: true,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tables implements Extractor.
func (p *Parser) Tables(sql string) ([]string, error) {
	sql = Normalize(sql)
	if sql == "" {
		return nil, ErrEmptyStatement
	}

	c := &collector{seen: make(map[string]bool)}
	err := c.collect(sql, 0)
	if err == nil {
		return c.tables, nil
	}
	if !p.fallback {
		return nil, err
	}

	p.logger.Debug("native query did not parse, scanning FROM/JOIN clauses",
		"error", err)
	tables := scanTables(sql)
	if len(tables) == 0 {
		return nil, err
	}
	return tables, nil
}

// Normalize prepares SQL text for parsing: comments are removed, T-SQL
// bracket identifiers unwrapped and trailing semicolons dropped.
func Normalize(sql string) string {
	sql = blockComment.ReplaceAllString(sql, " ")
	sql = lineComment.ReplaceAllString(sql, " ")
	sql = bracketIdentifier.ReplaceAllString(sql, "$1")
	sql = strings.TrimSpace(sql)
	return strings.TrimSpace(strings.TrimRight(sql, "; \t\r\n"))
}

type collector struct {
	tables []string
	seen   map[string]bool
}

func (c *collector) collect(sql string, depth int) error {
	if depth > maxNesting {
		return fmt.Errorf("derived tables nested deeper than %d levels", maxNesting)
	}
	sel, err := sqlparser.ParseQuery(sql)
	if err != nil {
		return fmt.Errorf("failed to parse native query: %w", err)
	}
	if sel == nil || sel.From.X == nil {
		return fmt.Errorf("failed to parse native query: no FROM clause")
	}
	return c.collectSelect(sel, nil, depth)
}

// collectSelect gathers the tables of sel. ctes holds the lower-cased
// aliases of the common table expressions in scope; names matching one are
// not physical tables.
func (c *collector) collectSelect(sel *query.Select, ctes map[string]bool, depth int) error {
	if sel == nil {
		return nil
	}
	if depth > maxNesting {
		return fmt.Errorf("derived tables nested deeper than %d levels", maxNesting)
	}

	if len(sel.WithSelects) > 0 {
		scope := maps.Clone(ctes)
		if scope == nil {
			scope = make(map[string]bool, len(sel.WithSelects))
		}
		for _, with := range sel.WithSelects {
			if with == nil {
				continue
			}
			if with.X != nil {
				if err := c.collectSelect(with.X, scope, depth+1); err != nil {
					return err
				}
			} else if inner := trimParentheses(with.Raw); inner != "" {
				if err := c.collect(inner, depth+1); err != nil {
					return err
				}
			}
			scope[strings.ToLower(with.Alias)] = true
		}
		ctes = scope
	}

	if sel.From.X != nil {
		if err := c.visit(sel.From.X, ctes, depth); err != nil {
			return err
		}
	}
	for _, join := range sel.Joins {
		if join == nil || join.With == nil {
			continue
		}
		if err := c.visit(join.With, ctes, depth); err != nil {
			return err
		}
	}

	for _, n := range []node.Node{sel.List, qualifyNode(sel.Qualify), qualifyNode(sel.Having)} {
		if err := c.subqueries(n, ctes, depth); err != nil {
			return err
		}
	}

	if sel.Union != nil {
		return c.collectSelect(sel.Union.X, ctes, depth)
	}
	return nil
}

func (c *collector) visit(n node.Node, ctes map[string]bool, depth int) error {
	switch actual := n.(type) {
	case *expr.Raw:
		if nested, ok := actual.X.(*query.Select); ok && nested != nil {
			return c.collectSelect(nested, ctes, depth+1)
		}
		inner := trimParentheses(actual.Raw)
		if inner == "" {
			return nil
		}
		return c.collect(inner, depth+1)
	case *expr.Selector, *expr.Ident:
		name := sqlparser.Stringify(actual)
		if ctes[strings.ToLower(cleanName(name))] {
			return nil
		}
		c.add(name)
	}
	return nil
}

// subqueries collects the tables of parenthesized SELECTs found in an
// expression such as a WHERE clause or a scalar select-list item.
func (c *collector) subqueries(n node.Node, ctes map[string]bool, depth int) error {
	if n == nil {
		return nil
	}
	var err error
	sqlparser.Traverse(n, func(n node.Node) bool {
		if err != nil {
			return false
		}
		var raw string
		switch actual := n.(type) {
		case *expr.Parenthesis:
			raw = actual.Raw
		case *expr.Raw:
			raw = actual.Raw
		default:
			return true
		}
		inner := trimParentheses(raw)
		if !isSubquery(inner) {
			return true
		}
		sel, parseErr := sqlparser.ParseQuery(inner)
		if parseErr != nil {
			err = fmt.Errorf("failed to parse subquery: %w", parseErr)
			return false
		}
		err = c.collectSelect(sel, ctes, depth+1)
		return false
	})
	return err
}

func qualifyNode(q *expr.Qualify) node.Node {
	if q == nil || q.X == nil {
		return nil
	}
	return q.X
}

func isSubquery(sql string) bool {
	fields := strings.Fields(strings.TrimLeft(sql, "("))
	if len(fields) == 0 {
		return false
	}
	keyword := strings.ToLower(fields[0])
	return keyword == "select" || keyword == "with"
}

func (c *collector) add(name string) {
	name = cleanName(name)
	if name == "" || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.tables = append(c.tables, name)
}

// cleanName strips identifier quoting from every part of a dotted name.
func cleanName(name string) string {
	parts := strings.Split(strings.TrimSpace(name), ".")
	for i, part := range parts {
		parts[i] = strings.Trim(strings.TrimSpace(part), "`\"")
	}
	for _, part := range parts {
		if part == "" {
			return ""
		}
	}
	return strings.Join(parts, ".")
}

func trimParentheses(sql string) string {
	sql = strings.TrimSpace(sql)
	for len(sql) >= 2 && sql[0] == '(' && sql[len(sql)-1] == ')' {
		sql = strings.TrimSpace(sql[1 : len(sql)-1])
	}
	return sql
}

func scanTables(sql string) []string {
	ctes := make(map[string]bool)
	for _, m := range cteAlias.FindAllStringSubmatch(sql, -1) {
		ctes[strings.ToLower(m[1])] = true
	}

	c := &collector{seen: make(map[string]bool)}
	for _, m := range fromJoinClause.FindAllStringSubmatch(sql, -1) {
		name := strings.Join(strings.Fields(m[1]), "")
		if ctes[strings.ToLower(cleanName(name))] {
			continue
		}
		c.add(name)
	}
	return c.tables
}
