package navigator

import (
	"strings"

	"github.com/ssogunle-tc/datahub/pkg/mquery/tree"
)

// M text escapes; #(cr,lf) must precede #(cr).
var escapeReplacer = strings.NewReplacer(
	`""`, `"`,
	"#(cr,lf)", "\r\n",
	"#(lf)", "\n",
	"#(cr)", "\r",
	"#(tab)", "\t",
	"#(#)", "#",
)

// TokenValues returns the raw values of every token under n in source
// order. Identifier tokens naming a declared query parameter are replaced
// by the parameter's value.
func TokenValues(n tree.Node, parameters map[string]string) []string {
	if n == nil {
		return nil
	}
	leaves := tree.Leaves(n)
	values := make([]string, 0, len(leaves))
	for _, l := range leaves {
		if l.Kind == tree.Identifier || l.Kind == tree.QuotedIdentifier {
			if v, ok := parameters[leafName(l)]; ok {
				values = append(values, v)
				continue
			}
		}
		values = append(values, l.Value)
	}
	return values
}

// StripChars removes the quoting from each value. Well-formed M text
// literals are unescaped; anything else only loses stray surrounding quotes.
func StripChars(values []string) []string {
	out := make([]string, len(values))
	for i, v := range values {
		out[i] = NormalizeLiteral(v)
	}
	return out
}

// RemoveWhitespaces trims every value and drops the ones left empty.
func RemoveWhitespaces(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out = append(out, v)
	}
	return out
}

// NormalizeLiteral turns a raw token value into its plain text.
func NormalizeLiteral(value string) string {
	value = strings.TrimSpace(value)
	if isQuoted(value) {
		return UnquoteString(value)
	}
	return strings.Trim(value, `"`)
}

// UnquoteString decodes an M text literal including its quotes.
func UnquoteString(value string) string {
	if !isQuoted(value) {
		return value
	}
	return escapeReplacer.Replace(value[1 : len(value)-1])
}

func isQuoted(value string) bool {
	return len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"'
}

// Arguments returns the normalized, parameter-substituted token values of
// an argument list: the form data-access strategies read server, database
// and query text from.
func Arguments(argList tree.Node, parameters map[string]string) []string {
	return RemoveWhitespaces(StripChars(TokenValues(argList, parameters)))
}
