package utils

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when no JSON value could be located in the input.
var ErrNoJSON = errors.New("no JSON object found in response")

// ExtractJSON pulls the first complete JSON object or array out of free-form
// LLM output. It tolerates Markdown code fences and surrounding prose, then
// validates the candidate with a strict decode. Failure is a defined error,
// never a panic.
func ExtractJSON(s string) (string, error) {
	s = stripCodeFences(s)

	start := -1
	var open, close byte
	for i := 0; i < len(s); i++ {
		if s[i] == '{' || s[i] == '[' {
			start = i
			open = s[i]
			if open == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return "", ErrNoJSON
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
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
				candidate := s[start : i+1]
				if !json.Valid([]byte(candidate)) {
					return "", ErrNoJSON
				}
				return candidate, nil
			}
		}
	}
	return "", ErrNoJSON
}

// ExtractJSONMap extracts and decodes a JSON object into a generic map.
func ExtractJSONMap(s string) (map[string]interface{}, error) {
	raw, err := ExtractJSON(s)
	if err != nil {
		return nil, err
	}
	var m map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, ErrNoJSON
	}
	return m, nil
}

func stripCodeFences(s string) string {
	if !strings.Contains(s, "```") {
		return s
	}
	var b strings.Builder
	inFence := false
	for _, line := range strings.Split(s, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	// If fences were unbalanced we still return the joined body; the
	// balanced-brace scan above handles the rest.
	return b.String()
}
