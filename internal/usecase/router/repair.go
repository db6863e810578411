package router

import (
	"encoding/json"
	"regexp"
	"strings"

	"coursecraft/internal/domain"
)

// The repair pipeline turns model output into parseable JSON. It is a pure
// text-to-text transformation: no model calls, no retries. Each stage is
// attempted only when the previous stage still fails to parse, and the input
// is never mutated in place.

var (
	codeFenceRe     = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")
	missingCommaRe  = regexp.MustCompile(`(["}\]])(\s*\n\s*)(")`)
	trailingCommaRe = regexp.MustCompile(`,(\s*[}\]])`)
)

// RepairJSON normalizes and, if necessary, repairs raw model output into a
// valid JSON document. Returns domain.ErrParseFailed when no stage yields
// parseable JSON.
func RepairJSON(raw string) (string, error) {
	s := stripCodeFences(raw)
	s = extractObject(s)
	s = normalizeQuotes(s)
	s = strings.TrimSpace(s)

	if s == "" {
		return "", domain.NewDomainError("router.RepairJSON", domain.ErrParseFailed, "empty output")
	}
	if json.Valid([]byte(s)) {
		return s, nil
	}

	// Targeted fixes, cheapest first.
	fixed := missingCommaRe.ReplaceAllString(s, `$1,$2$3`)
	if json.Valid([]byte(fixed)) {
		return fixed, nil
	}

	fixed = trailingCommaRe.ReplaceAllString(fixed, `$1`)
	if json.Valid([]byte(fixed)) {
		return fixed, nil
	}

	fixed = closeUnterminatedString(fixed)
	if json.Valid([]byte(fixed)) {
		return fixed, nil
	}

	// Last resort: cut back to the last complete value and close open scopes.
	fixed = truncateAndBalance(s)
	if fixed != "" && json.Valid([]byte(fixed)) {
		return fixed, nil
	}

	return "", domain.NewDomainError("router.RepairJSON", domain.ErrParseFailed, "unrecoverable JSON")
}

// stripCodeFences unwraps a markdown code fence if the output is wrapped in one.
func stripCodeFences(s string) string {
	if m := codeFenceRe.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

// extractObject cuts the text down to the outermost JSON object or array.
func extractObject(s string) string {
	start := strings.IndexAny(s, "{[")
	if start < 0 {
		return s
	}
	var end int
	if s[start] == '{' {
		end = strings.LastIndex(s, "}")
	} else {
		end = strings.LastIndex(s, "]")
	}
	if end <= start {
		return s[start:]
	}
	return s[start : end+1]
}

var quoteReplacer = strings.NewReplacer(
	"“", `"`, // left double quote
	"”", `"`, // right double quote
	"‘", "'", // left single quote
	"’", "'", // right single quote
)

// normalizeQuotes replaces typographic quotes with ASCII ones.
func normalizeQuotes(s string) string {
	return quoteReplacer.Replace(s)
}

// closeUnterminatedString handles output that was cut off mid-string: the
// dangling string is terminated and open scopes are closed.
func closeUnterminatedString(s string) string {
	inStr := false
	esc := false
	var stack []byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if esc {
			esc = false
			continue
		}
		switch c {
		case '\\':
			if inStr {
				esc = true
			}
		case '"':
			inStr = !inStr
		case '{', '[':
			if !inStr {
				stack = append(stack, c)
			}
		case '}', ']':
			if !inStr && len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	if !inStr && len(stack) == 0 {
		return s
	}
	out := s
	if inStr {
		out += `"`
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			out += "}"
		} else {
			out += "]"
		}
	}
	return out
}

// truncateAndBalance cuts the document back to the last position where a
// value was complete, then closes whatever scopes remain open. This loses
// trailing content but salvages everything before the corruption point.
func truncateAndBalance(s string) string {
	inStr := false
	esc := false
	var stack []byte

	lastGood := -1
	var lastStack []byte

	mark := func(i int) {
		lastGood = i
		lastStack = append(lastStack[:0], stack...)
	}

	for i := 0; i < len(s); i++ {
		c := s[i]
		if esc {
			esc = false
			continue
		}
		switch {
		case c == '\\' && inStr:
			esc = true
		case c == '"':
			inStr = !inStr
			if !inStr {
				mark(i + 1) // closing quote completes a string value
			}
		case inStr:
		case c == '{' || c == '[':
			stack = append(stack, c)
		case c == '}' || c == ']':
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
			mark(i + 1)
		case c >= '0' && c <= '9' || c == 'e' || c == 'l': // number, true/false/null tails
			mark(i + 1)
		}
	}

	if lastGood < 0 {
		return ""
	}

	prefix := strings.TrimRight(s[:lastGood], " \t\n\r")
	prefix = strings.TrimSuffix(prefix, ",")

	out := closeScopes(prefix, lastStack)
	if json.Valid([]byte(out)) {
		return out
	}

	// The prefix may end on a dangling object key ("k" or "k":). Strings do
	// not open scopes, so dropping one keeps lastStack accurate.
	trimmed := danglingKeyRe.ReplaceAllString(prefix, "")
	trimmed = strings.TrimRight(trimmed, " \t\n\r")
	trimmed = strings.TrimSuffix(trimmed, ",")
	return closeScopes(trimmed, lastStack)
}

var danglingKeyRe = regexp.MustCompile(`,?\s*"(?:[^"\\]|\\.)*"\s*:?\s*$`)

func closeScopes(prefix string, stack []byte) string {
	var b strings.Builder
	b.WriteString(prefix)
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] == '{' {
			b.WriteByte('}')
		} else {
			b.WriteByte(']')
		}
	}
	return b.String()
}
