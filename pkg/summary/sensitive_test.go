package summary

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsSensitiveColumn(t *testing.T) {
	tests := []struct {
		name      string
		sensitive bool
	}{
		{"password", true},
		{"password_hash", true},
		{"user_email", true},
		{"email", true},
		{"Email-Address", true},
		{"api_key", true},
		{"apiKey", true}, // normalizes to "apikey", which is in the token set
		{"ssn", true},
		{"credit_card", true},
		{"date_of_birth", true},
		{"id", false},
		{"amount", false},
		{"username", false},
		{"emailed_count", false},
		{"hashtag", false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.sensitive, IsSensitiveColumn(tc.name))
		})
	}
}

func TestRedactRow(t *testing.T) {
	row := map[string]any{
		"id":            int64(7),
		"email":         "user@example.com",
		"password_hash": "bcrypt$...",
		"amount":        42.5,
	}

	redacted := RedactRow(row)

	assert.Equal(t, int64(7), redacted["id"])
	assert.Equal(t, 42.5, redacted["amount"])
	assert.Equal(t, Redacted, redacted["email"])
	assert.Equal(t, Redacted, redacted["password_hash"])

	// Input row stays untouched.
	assert.Equal(t, "user@example.com", row["email"])
}
