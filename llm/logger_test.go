package llm_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkyoung/llmclient/llm"
)

func TestRedactAPIKey(t *testing.T) {
	logger := llm.NewDefaultLogger(llm.LogLevelInfo, llm.LogFormatHuman, true)

	tests := []struct {
		name string
		key  string
		want string
	}{
		{"long key shows last four", "sk-abcdef1234567890wxyz", "[REDACTED-wxyz]"},
		{"short key fully redacted", "abcd", "[REDACTED]"},
		{"empty key fully redacted", "", "[REDACTED]"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, logger.RedactAPIKey(tt.key))
		})
	}
}

func TestRedactAPIKeyDisabled(t *testing.T) {
	logger := llm.NewDefaultLogger(llm.LogLevelInfo, llm.LogFormatHuman, false)
	assert.Equal(t, "sk-secret", logger.RedactAPIKey("sk-secret"))
}
