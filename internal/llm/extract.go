package llm

import "strings"

// ExtractCode pulls the first fenced code block out of a model response,
// tolerating a language tag after the opening fence. Responses without
// fences are returned trimmed as-is.
func ExtractCode(response string) string {
	response = strings.TrimSpace(response)

	start := strings.Index(response, "```")
	if start == -1 {
		return response
	}
	rest := response[start+3:]
	// Drop the language tag line if present.
	if nl := strings.IndexByte(rest, '\n'); nl != -1 {
		first := strings.TrimSpace(rest[:nl])
		if first != "" && !strings.ContainsAny(first, " \t") && len(first) < 20 {
			rest = rest[nl+1:]
		}
	}
	if end := strings.Index(rest, "```"); end != -1 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest)
}

// StripFences removes a leading ```json/``` fence and trailing fence from
// a response expected to contain a bare JSON object.
func StripFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}
