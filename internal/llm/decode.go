package llm

import (
	"encoding/json"
	"fmt"
	"strings"
)

// MalformedOutputError means the reasoning service's reply could not be
// parsed as JSON even after span extraction and repair. Raw carries the
// full reply so callers can surface it for diagnostics.
type MalformedOutputError struct {
	Raw   string
	Cause error
}

func (e *MalformedOutputError) Error() string {
	return fmt.Sprintf("malformed model output: %v", e.Cause)
}

func (e *MalformedOutputError) Unwrap() error {
	return e.Cause
}

// DecodeObject recovers a JSON object from a model reply into v.
// Recovery is a three-tier chain: parse the cleaned reply as-is, then the
// largest balanced {...} span, then a structurally repaired variant.
// Failing all three returns a MalformedOutputError carrying the raw reply.
func DecodeObject(raw string, v any) error {
	return decode(raw, v, '{', '}')
}

// DecodeArray is DecodeObject for array-shaped tasks ([...] spans).
func DecodeArray(raw string, v any) error {
	return decode(raw, v, '[', ']')
}

func decode(raw string, v any, open, closing byte) error {
	text := CleanJSONBlock(raw)

	var firstErr error
	if err := json.Unmarshal([]byte(text), v); err == nil {
		return nil
	} else {
		firstErr = err
	}

	if span, ok := balancedSpan(text, open, closing); ok {
		if err := json.Unmarshal([]byte(span), v); err == nil {
			return nil
		}
	}

	if repaired, ok := repairJSON(text, open, closing); ok {
		if err := json.Unmarshal([]byte(repaired), v); err == nil {
			return nil
		}
	}

	return &MalformedOutputError{Raw: raw, Cause: firstErr}
}

// CleanJSONBlock removes markdown code-block wrappers from a reply.
// Models often wrap JSON in ```json ... ``` even when instructed not to.
func CleanJSONBlock(text string) string {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		// Skip a potential language identifier on the first line.
		if idx := strings.Index(text, "\n"); idx >= 0 {
			firstLine := text[:idx]
			if len(firstLine) < 20 && !strings.Contains(firstLine, " ") && !strings.ContainsAny(firstLine, "{[") {
				text = text[idx+1:]
			}
		}
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
		return strings.TrimSpace(text)
	}

	return text
}

// balancedSpan returns the largest balanced bracket span starting at the
// first opening bracket. Bracket depth is tracked outside string literals
// so braces inside extracted text don't confuse the scan.
func balancedSpan(s string, open, closing byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	end := -1
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
		case closing:
			depth--
			if depth == 0 {
				end = i // keep scanning: a later close at depth 0 means a larger span
			}
		}
	}
	if end < 0 {
		return "", false
	}
	return s[start : end+1], true
}

// repairJSON makes a best-effort structural fix: slice from the first
// opening bracket, drop trailing commas, terminate an open string and
// close any unbalanced brackets.
func repairJSON(s string, open, closing byte) (string, bool) {
	start := strings.IndexByte(s, open)
	if start < 0 {
		return "", false
	}
	s = s[start:]

	var stack []byte
	inString := false
	escaped := false
	var b strings.Builder
	for i := 0; i < len(s); i++ {
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
			b.WriteByte(c)
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			stack = append(stack, c)
		case '}', ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
		b.WriteByte(c)
	}

	out := b.String()
	if inString {
		out += `"`
	}
	out = trimTrailingComma(out)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out, true
}

// trimTrailingComma removes a dangling comma before the end of the input,
// the most common truncation artifact in model output.
func trimTrailingComma(s string) string {
	trimmed := strings.TrimRight(s, " \t\n\r")
	if strings.HasSuffix(trimmed, ",") {
		return strings.TrimSuffix(trimmed, ",")
	}
	return s
}
