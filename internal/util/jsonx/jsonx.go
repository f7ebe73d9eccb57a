package jsonx

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

var ErrNoObject = errors.New("jsonx: no JSON object found")

// StripFences removes a wrapping markdown code fence (``` or ```json / ```tsx
// etc.) and any leading language label that models like to add around their
// output. Input without a fence is returned trimmed.
func StripFences(s string) string {
	out := strings.TrimSpace(s)
	if strings.HasPrefix(out, "```") {
		out = strings.TrimPrefix(out, "```")
		if i := strings.IndexByte(out, '\n'); i >= 0 {
			// drop the language label on the fence line
			first := strings.TrimSpace(out[:i])
			if len(first) <= 12 && !strings.ContainsAny(first, "{}();=") {
				out = out[i+1:]
			}
		}
		out = strings.TrimSuffix(strings.TrimSpace(out), "```")
	}
	return strings.TrimSpace(out)
}

// FirstObject scans s for the first balanced top-level {...} block, skipping
// over string literals and escape sequences. Models frequently embed a
// single JSON object in surrounding prose; this recovers it. Byte iteration
// is safe because the delimiters are ASCII and UTF-8 never reuses ASCII
// bytes in multi-byte sequences.
func FirstObject(s string) (string, bool) {
	depth := 0
	start := -1
	inString := false
	escape := false
	for i := 0; i < len(s); i++ {
		b := s[i]
		if escape {
			escape = false
			continue
		}
		if inString {
			if b == '\\' {
				escape = true
			} else if b == '"' {
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return s[start : i+1], true
				}
			}
		}
	}
	return "", false
}

// Sanitize prepares raw model output for JSON decoding: strip fences first,
// then fall back to the first balanced object when the remainder is still
// not a bare object.
func Sanitize(s string) (json.RawMessage, error) {
	out := StripFences(s)
	if json.Valid([]byte(out)) {
		return json.RawMessage(out), nil
	}
	if obj, ok := FirstObject(out); ok && json.Valid([]byte(obj)) {
		return json.RawMessage(obj), nil
	}
	return nil, ErrNoObject
}

// Unmarshal decodes raw into v with best effort: direct unmarshal first,
// then Sanitize and retry. Helps when the payload carries fences or prose.
func Unmarshal(raw []byte, v any) error {
	if err := json.Unmarshal(raw, v); err == nil {
		return nil
	}
	clean, err := Sanitize(string(raw))
	if err != nil {
		return err
	}
	return json.Unmarshal(clean, v)
}

// MarshalNoEscape encodes v without escaping <, >, & into unicode escapes.
// Generated card code round-trips through JSON and must not be mangled.
func MarshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
