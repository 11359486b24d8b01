package llm

import (
	"fmt"
	"regexp"
)

const (
	// MaxLoggedResponseLength is the maximum length of response text to
	// include in logs. Responses longer than this are truncated to avoid
	// shipping user content to log aggregators.
	MaxLoggedResponseLength = 200
)

// TruncateForLogging safely truncates a response string for logging purposes.
// Returns the first MaxLoggedResponseLength characters plus a truncation
// indicator if truncated.
func TruncateForLogging(response string) string {
	if len(response) <= MaxLoggedResponseLength {
		return response
	}
	return response[:MaxLoggedResponseLength] + fmt.Sprintf("... [truncated, total length=%d bytes]", len(response))
}

// RedactURLSecrets redacts API keys and other secrets from URLs in error
// messages. This prevents keys from being exposed when URLs with query
// parameters (like Gemini's ?key= parameter) appear in error messages or logs.
//
// Common patterns redacted:
//   - key=XXX (Gemini API key)
//   - apiKey=XXX
//   - api_key=XXX
//   - token=XXX
//   - access_token=XXX
func RedactURLSecrets(text string) string {
	if text == "" {
		return text
	}

	patterns := []string{
		`key=([^&"\s]+)`,
		`apiKey=([^&"\s]+)`,
		`api_key=([^&"\s]+)`,
		`token=([^&"\s]+)`,
		`access_token=([^&"\s]+)`,
	}

	result := text
	for _, pattern := range patterns {
		re := regexp.MustCompile(pattern)
		paramName := pattern[:len(pattern)-len(`=([^&"\s]+)`)]
		result = re.ReplaceAllString(result, paramName+"=[REDACTED]")
	}

	return result
}
