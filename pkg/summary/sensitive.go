// Package summary shapes what the LLM sees: it builds the compact structural
// summary of query results, redacts sensitive columns, and emits the
// embeddable dataset JSON consumed by the server-side dashboard renderer.
package summary

import (
	"regexp"
	"strings"
)

// Redacted is the literal placed in every cell of a sensitive column.
const Redacted = "[REDACTED]"

// sensitiveTokens are matched whole-word against the normalized column name,
// allowing prefix_, _suffix, and _infix_ surrounds. Values of matching
// columns never reach the LLM.
var sensitiveTokens = []string{
	"password", "passwd", "pwd", "secret", "token", "apikey", "api_key",
	"access_key", "private_key", "salt", "hash", "ssn", "social_security",
	"national_id", "credit_card", "card_number", "cvv", "card_no",
	"bank_account", "account_number", "routing_number", "email", "phone",
	"mobile", "contact", "address", "street", "zipcode", "zip_code",
	"passport", "license", "driving_license", "dob", "date_of_birth",
	"birth_date",
}

var (
	nonAlnum         = regexp.MustCompile(`[^a-z0-9]+`)
	sensitivePattern = regexp.MustCompile(
		`(^|_)(` + strings.Join(sensitiveTokens, "|") + `)(_|$)`)
)

// normalizeColumn lowercases a column name and collapses every run of
// non-alphanumeric characters to a single underscore.
func normalizeColumn(name string) string {
	return strings.Trim(nonAlnum.ReplaceAllString(strings.ToLower(name), "_"), "_")
}

// IsSensitiveColumn reports whether a column name matches the sensitive set.
func IsSensitiveColumn(name string) bool {
	return sensitivePattern.MatchString(normalizeColumn(name))
}

// RedactRow replaces the values of sensitive columns in a row copy.
// The input row is not mutated.
func RedactRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		if IsSensitiveColumn(k) {
			out[k] = Redacted
		} else {
			out[k] = v
		}
	}
	return out
}
