package datasource

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xwb1989/sqlparser"
)

// ValidationResult is the outcome of the SQL safety check.
type ValidationResult struct {
	Valid  bool
	Reason string
}

// Invalid builds a failed ValidationResult.
func Invalid(reason string) ValidationResult {
	return ValidationResult{Valid: false, Reason: reason}
}

var validResult = ValidationResult{Valid: true}

// forbiddenKeywords are rejected as whole words anywhere in the statement,
// case-insensitive. The list deliberately includes keywords that could also
// appear as identifiers; a false rejection is preferable to a mutation.
var forbiddenKeywords = []string{
	"INSERT", "UPDATE", "DELETE", "DROP", "ALTER", "CREATE", "TRUNCATE",
	"GRANT", "REVOKE", "EXEC", "EXECUTE", "CALL", "MERGE", "REPLACE",
}

var forbiddenPattern = regexp.MustCompile(
	`(?i)\b(` + strings.Join(forbiddenKeywords, "|") + `)\b`)

// ValidateSQL enforces read-only semantics on a generated SQL statement.
// It is invoked twice per request: once at plan-parse time and again
// immediately before execution, before any connection is opened.
func ValidateSQL(sql string) ValidationResult {
	trimmed := strings.TrimSpace(sql)
	if trimmed == "" {
		return Invalid("empty SQL statement")
	}
	trimmed = strings.TrimSuffix(trimmed, ";")

	if m := forbiddenPattern.FindString(trimmed); m != "" {
		return Invalid(fmt.Sprintf(
			"forbidden keyword %q: only SELECT statements are allowed", strings.ToUpper(m)))
	}

	stmt, err := sqlparser.Parse(trimmed)
	if err != nil {
		// The parser does not cover every dialect (WITH, vendor extensions).
		// Fall back to the leading keyword after whitespace.
		return validateByPrefix(trimmed)
	}

	switch stmt.(type) {
	case *sqlparser.Select, *sqlparser.Union, *sqlparser.ParenSelect:
		return validResult
	default:
		return Invalid("only SELECT statements are allowed")
	}
}

func validateByPrefix(sql string) ValidationResult {
	fields := strings.Fields(sql)
	if len(fields) == 0 {
		return Invalid("empty SQL statement")
	}
	switch strings.ToUpper(fields[0]) {
	case "SELECT", "WITH":
		return validResult
	}
	return Invalid("only SELECT statements are allowed")
}
