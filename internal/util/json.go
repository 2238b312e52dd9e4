package util

import "strings"

// StripThinkTags removes a leading <think>...</think> block some models
// emit before their actual answer.
func StripThinkTags(s string) string {
	s = strings.TrimSpace(s)
	if start := strings.Index(s, "<think>"); start != -1 {
		if end := strings.Index(s, "</think>"); end != -1 && end > start {
			s = s[:start] + s[end+len("</think>"):]
			s = strings.TrimSpace(s)
		}
	}
	return s
}

// ExtractJSONArray returns the first top-level JSON array in s,
// tolerating markdown fences and prose around it. Returns "" when no
// array delimiters are found.
func ExtractJSONArray(s string) string {
	s = StripThinkTags(s)
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// ExtractJSONObject returns the first top-level JSON object in s, with
// the same tolerance as ExtractJSONArray.
func ExtractJSONObject(s string) string {
	s = StripThinkTags(s)
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start == -1 || end == -1 || end < start {
		return ""
	}
	return s[start : end+1]
}

// TruncateString shortens s to max runes for logs and prompt re-injection.
func TruncateString(s string, max int) string {
	if max <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
