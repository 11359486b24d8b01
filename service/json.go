package service

import (
	"regexp"
	"strings"
)

var (
	// Compile regex once and reuse (thread-safe). Matches from ```json (or
	// ```) at the start to the LAST ``` in the text (greedy), not the first.
	jsonBlockRegex = regexp.MustCompile("(?s)```(?:json)?\\s*([\\s\\S]*)```")
)

// ExtractJSONFromMarkdown extracts JSON from markdown code blocks.
//
// Supports both ```json and ``` code blocks. Uses greedy matching to extract
// content from the first opening backticks to the LAST closing backticks,
// which keeps nested code fences inside string values intact.
//
// Assumption: models running in JSON mode are instructed to return a single
// JSON code block. If multiple separate code blocks are present the greedy
// match will include everything between the first and last backticks, which
// may result in invalid JSON; the subsequent parse surfaces that.
//
// Returns extracted JSON or the original text if no code block is found.
func ExtractJSONFromMarkdown(text string) string {
	matches := jsonBlockRegex.FindStringSubmatch(text)
	if len(matches) > 1 {
		return strings.TrimSpace(matches[1])
	}
	// No code block found, the text might be raw JSON already.
	return strings.TrimSpace(text)
}
