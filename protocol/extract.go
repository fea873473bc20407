package protocol

import "strings"

// FirstJSONObject locates the first balanced {...} substring via greedy
// bracket matching. String literals and escapes are respected so braces
// inside strings do not confuse the depth count. Returns ok=false when no
// balanced object exists.
func FirstJSONObject(text string) (string, bool) {
	return firstBalanced(text, '{', '}')
}

// FirstJSONValue locates the first balanced JSON object or array substring,
// whichever starts earlier.
func FirstJSONValue(text string) (string, bool) {
	objIdx := strings.IndexByte(text, '{')
	arrIdx := strings.IndexByte(text, '[')

	if objIdx == -1 && arrIdx == -1 {
		return "", false
	}
	if arrIdx == -1 || (objIdx != -1 && objIdx < arrIdx) {
		return firstBalanced(text, '{', '}')
	}
	return firstBalanced(text, '[', ']')
}

func firstBalanced(text string, open, close byte) (string, bool) {
	start := strings.IndexByte(text, open)
	if start == -1 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}

// StripFences removes markdown code fences around the content, tolerating a
// language tag after the opening fence ("```json"). Content without fences
// is returned trimmed.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```")
	if idx := strings.IndexByte(trimmed, '\n'); idx != -1 {
		// Drop the language tag line.
		first := strings.TrimSpace(trimmed[:idx])
		if first == "" || isLanguageTag(first) {
			trimmed = trimmed[idx+1:]
		}
	}
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}

func isLanguageTag(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && (r < 'A' || r > 'Z') && (r < '0' || r > '9') {
			return false
		}
	}
	return true
}

// CloseUnbalanced appends the closing braces and brackets a truncated JSON
// prefix is missing, so a mid-stream snapshot can be speculatively parsed. A
// dangling string literal is closed first. The repair is heuristic; callers
// must treat parse failures of the result as expected.
func CloseUnbalanced(text string) string {
	var stack []byte
	inString := false
	escaped := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	var sb strings.Builder
	sb.WriteString(text)
	if inString {
		sb.WriteByte('"')
	}
	for i := len(stack) - 1; i >= 0; i-- {
		sb.WriteByte(stack[i])
	}
	return sb.String()
}
