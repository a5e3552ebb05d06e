package classifier

import (
	"strings"

	"github.com/harunnryd/vira/pkg/errorsx"
)

// extractJSON strips markdown fences and returns the text between the first
// "{" and the last "}". Braces are not matched; nested objects inside string
// values are not special-cased.
func extractJSON(text string) (string, error) {
	text = stripFences(strings.TrimSpace(text))
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < 0 || end < start {
		return "", errorsx.New(errorsx.ReasonClassifyExtract, "no JSON object in classifier reply")
	}
	return text[start : end+1], nil
}

func stripFences(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	// Drop the info string ("json", "JSON", ...) on the opening fence line.
	if nl := strings.IndexByte(text, '\n'); nl >= 0 && !strings.Contains(text[:nl], "{") {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(strings.TrimPrefix(text, "json"), "JSON")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}
