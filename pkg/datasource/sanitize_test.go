package datasource

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeError_RedactsPassword(t *testing.T) {
	msg := SanitizeError("dial failed: password=hunter2 user=app")
	assert.Equal(t, "dial failed: password=*** user=app", msg)
}

func TestSanitizeError_RedactsConnectionURLs(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"postgres", "connect postgres://app:pw@db.internal:5432/prod failed"},
		{"postgresql", "connect postgresql://app:pw@db.internal/prod failed"},
		{"mysql", "connect mysql://root@10.0.0.1:3306/shop failed"},
		{"mongodb", "connect mongodb://app:pw@mongo:27017 failed"},
		{"mongodb+srv", "connect mongodb+srv://app:pw@cluster0.example.net failed"},
		{"redis", "connect redis://cache:6379 failed"},
		{"jdbc", "connect jdbc:postgresql://db:5432/prod failed"},
		{"http", "POST https://es.internal:9200/_search returned 401"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			out := SanitizeError(tc.in)
			assert.Contains(t, out, "[connection-url]")
			assert.NotContains(t, out, "pw@")
			assert.NotContains(t, out, "internal")
		})
	}
}

func TestSanitizeError_LeavesCleanMessagesAlone(t *testing.T) {
	msg := "relation \"users\" does not exist"
	assert.Equal(t, msg, SanitizeError(msg))
}
