package llm

import "strings"

// ExtractJSONBlock recovers a JSON object from a model response that may be
// wrapped in code fences or surrounded by prose. It strips ``` fences, then
// falls back to the first balanced {...} block.
func ExtractJSONBlock(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```")
		// drop a language tag like "json"
		if idx := strings.IndexByte(raw, '\n'); idx >= 0 {
			first := strings.TrimSpace(raw[:idx])
			if first != "" && !strings.ContainsAny(first, "{}") {
				raw = raw[idx+1:]
			}
		}
		raw = strings.ReplaceAll(raw, "```", "")
		raw = strings.TrimSpace(raw)
	}

	if strings.HasPrefix(raw, "{") {
		return raw
	}

	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return raw
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		ch := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case ch == '\\':
				escaped = true
			case ch == '"':
				inString = false
			}
			continue
		}
		switch ch {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1]
			}
		}
	}
	return raw[start:]
}
