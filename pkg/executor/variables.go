package executor

import (
	"regexp"
	"strings"
)

var (
	placeholderPattern = regexp.MustCompile(`\$[A-Za-z_][A-Za-z0-9_]*`)
	bareNumberPattern  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ReplaceVariables substitutes $name placeholders in text with SQL-safe
// renderings of the variable values. A placeholder with no entry in vars is
// left unchanged: the query then fails validation or execution, which beats
// silently running the wrong query.
func ReplaceVariables(text string, vars map[string]string) string {
	if len(vars) == 0 {
		return text
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		value, ok := vars[token]
		if !ok {
			return token
		}
		return renderValue(value)
	})
}

// renderValue makes a raw extracted value safe for SQL concatenation:
// bare numbers pass through, multi-value lists become comma-separated
// rendered pieces (usable inside IN (...)), everything else is
// single-quoted with internal quotes doubled.
func renderValue(value string) string {
	if bareNumberPattern.MatchString(value) {
		return value
	}
	if strings.Contains(value, ", ") {
		pieces := strings.Split(value, ", ")
		for i, piece := range pieces {
			pieces[i] = renderValue(piece)
		}
		return strings.Join(pieces, ", ")
	}
	return "'" + strings.ReplaceAll(value, "'", "''") + "'"
}
