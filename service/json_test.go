package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bkyoung/llmclient/service"
)

func TestExtractJSONFromMarkdown(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "json code block",
			input: "```json\n{\"answer\": 4}\n```",
			want:  `{"answer": 4}`,
		},
		{
			name:  "bare code block",
			input: "```\n{\"answer\": 4}\n```",
			want:  `{"answer": 4}`,
		},
		{
			name:  "surrounding prose",
			input: "Here you go:\n```json\n{\"answer\": 4}\n```\nLet me know if you need more.",
			want:  `{"answer": 4}`,
		},
		{
			name:  "raw json passes through",
			input: `{"answer": 4}`,
			want:  `{"answer": 4}`,
		},
		{
			name:  "raw json with whitespace trimmed",
			input: "  {\"answer\": 4}\n",
			want:  `{"answer": 4}`,
		},
		{
			name:  "nested backticks inside string survive greedy match",
			input: "```json\n{\"snippet\": \"```go\\nfmt.Println(42)\\n```\"}\n```",
			want:  "{\"snippet\": \"```go\\nfmt.Println(42)\\n```\"}",
		},
		{
			name:  "plain prose untouched",
			input: "The answer is four.",
			want:  "The answer is four.",
		},
		{
			name:  "empty string",
			input: "",
			want:  "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, service.ExtractJSONFromMarkdown(tt.input))
		})
	}
}
