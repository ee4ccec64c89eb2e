package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSQL_AcceptsSelect(t *testing.T) {
	result := ValidateSQL("SELECT id, name FROM users LIMIT 100")
	assert.True(t, result.Valid)
	assert.Empty(t, result.Reason)
}

func TestValidateSQL_AcceptsTrailingSemicolon(t *testing.T) {
	result := ValidateSQL("SELECT 1;")
	assert.True(t, result.Valid)
}

func TestValidateSQL_AcceptsUnion(t *testing.T) {
	result := ValidateSQL("SELECT id FROM a UNION SELECT id FROM b")
	assert.True(t, result.Valid)
}

func TestValidateSQL_AcceptsWithClause(t *testing.T) {
	// The parser does not understand CTEs; the prefix fallback must.
	result := ValidateSQL("WITH recent AS (SELECT * FROM orders WHERE ts > now()) SELECT count(*) FROM recent")
	assert.True(t, result.Valid)
}

func TestValidateSQL_RejectsForbiddenKeywords(t *testing.T) {
	tests := []struct {
		name string
		sql  string
	}{
		{"drop", "DROP TABLE users"},
		{"insert", "INSERT INTO users VALUES (1)"},
		{"update", "UPDATE users SET name = 'x'"},
		{"delete", "DELETE FROM users"},
		{"truncate", "TRUNCATE users"},
		{"lowercase", "drop table users"},
		{"embedded", "SELECT 1; DELETE FROM users"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := ValidateSQL(tc.sql)
			assert.False(t, result.Valid)
			assert.Contains(t, result.Reason, "only SELECT statements are allowed")
		})
	}
}

func TestValidateSQL_KeywordMatchesWholeWordsOnly(t *testing.T) {
	// "created_at" contains CREATE but is an identifier, not a keyword.
	result := ValidateSQL("SELECT created_at, updated_at FROM events")
	assert.True(t, result.Valid)
}

func TestValidateSQL_RejectsEmpty(t *testing.T) {
	assert.False(t, ValidateSQL("").Valid)
	assert.False(t, ValidateSQL("   ").Valid)
}

func TestValidateSQL_RejectsNonSelectPrefixOnParseFailure(t *testing.T) {
	result := ValidateSQL("EXPLAIN ANALYZE SELECT 1")
	assert.False(t, result.Valid)
	assert.Contains(t, result.Reason, "only SELECT statements are allowed")
}
