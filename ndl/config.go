package ndl

import (
	"fmt"
	"strings"
)

// DefaultDelimiter separates statements unless a script overrides it.
// Newlines always separate statements at brace depth zero.
const DefaultDelimiter = ';'

func openBrace(ch byte) bool  { return ch == '(' || ch == '[' || ch == '{' }
func closeBrace(ch byte) bool { return ch == ')' || ch == ']' || ch == '}' }

func matching(open byte) byte {
	switch open {
	case '(':
		return ')'
	case '[':
		return ']'
	}
	return '}'
}

// stripComments removes '#' comments outside quoted strings, keeping the
// line structure so newline statement separation still works.
func stripComments(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	inQuote := false
	inComment := false
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case inComment:
			if ch == '\n' {
				inComment = false
				b.WriteByte(ch)
			}
		case ch == '"':
			inQuote = !inQuote
			b.WriteByte(ch)
		case ch == '#' && !inQuote:
			inComment = true
		default:
			b.WriteByte(ch)
		}
	}
	return b.String()
}

// SplitStatements splits script text into statements on the delimiter or on
// newlines. Separators inside parentheses, brackets, braces, or quoted
// strings do not split. Unbalanced braces are a syntax error.
func SplitStatements(text string, delim byte) ([]string, error) {
	text = stripComments(text)
	var stmts []string
	var stack []byte
	inQuote := false
	start := 0
	flush := func(end int) {
		stmt := strings.TrimSpace(text[start:end])
		if stmt != "" {
			stmts = append(stmts, stmt)
		}
	}
	for i := 0; i < len(text); i++ {
		ch := text[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case openBrace(ch):
			stack = append(stack, ch)
		case closeBrace(ch):
			if len(stack) == 0 || matching(stack[len(stack)-1]) != ch {
				return nil, fmt.Errorf("%w: unbalanced %q at offset %d", ErrSyntax, string(ch), i)
			}
			stack = stack[:len(stack)-1]
		case (ch == delim || ch == '\n') && len(stack) == 0:
			flush(i)
			start = i + 1
		}
	}
	if inQuote {
		return nil, fmt.Errorf("%w: unterminated string", ErrSyntax)
	}
	if len(stack) > 0 {
		return nil, fmt.Errorf("%w: unbalanced %q", ErrSyntax, string(stack[len(stack)-1]))
	}
	flush(len(text))
	return stmts, nil
}

// indexTopLevel returns the index of the first unprotected occurrence of
// target, or -1.
func indexTopLevel(s string, target byte) int {
	depth := 0
	inQuote := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case openBrace(ch):
			depth++
		case closeBrace(ch):
			depth--
		case ch == target && depth == 0:
			return i
		}
	}
	return -1
}

// splitTopLevel splits s on any of the separator bytes at brace depth zero.
func splitTopLevel(s string, seps string) []string {
	var items []string
	depth := 0
	inQuote := false
	start := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case openBrace(ch):
			depth++
		case closeBrace(ch):
			depth--
		case depth == 0 && strings.IndexByte(seps, ch) >= 0:
			if item := strings.TrimSpace(s[start:i]); item != "" {
				items = append(items, item)
			}
			start = i + 1
		}
	}
	if item := strings.TrimSpace(s[start:]); item != "" {
		items = append(items, item)
	}
	return items
}

// stripBraces removes one balanced outer layer of (), [], or {}.
func stripBraces(s string) (string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || !openBrace(s[0]) || s[len(s)-1] != matching(s[0]) {
		return s, false
	}
	// the closing brace must match the opening one, not a later group
	depth := 0
	for i := 0; i < len(s)-1; i++ {
		if openBrace(s[i]) {
			depth++
		} else if closeBrace(s[i]) {
			depth--
			if depth == 0 {
				return s, false
			}
		}
	}
	return strings.TrimSpace(s[1 : len(s)-1]), true
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1], true
	}
	return s, false
}

// FileSections parses file text of the form `name=[ ... ]` (or
// `name=value` on one line) into a case-insensitive section map. Files
// that are plain statement streams produce no sections.
func FileSections(text string) (map[string]string, error) {
	sections := map[string]string{}
	stmts, err := SplitStatements(text, DefaultDelimiter)
	if err != nil {
		return nil, err
	}
	for _, stmt := range stmts {
		eq := indexTopLevel(stmt, '=')
		if eq < 0 {
			continue
		}
		key := strings.TrimSpace(stmt[:eq])
		if key == "" || strings.ContainsAny(key, "([{ \t") {
			continue
		}
		value := strings.TrimSpace(stmt[eq+1:])
		if inner, ok := stripBraces(value); ok {
			value = inner
		}
		sections[strings.ToLower(key)] = value
	}
	return sections, nil
}

// splitList splits a colon- or comma-separated list value.
func splitList(s string) []string {
	return splitTopLevel(s, ":,")
}

// ParseCallString splits a call statement into the called name and its raw
// parameter strings. Quotes around parameters are removed.
func ParseCallString(token string) (string, []string, error) {
	open := strings.IndexAny(token, "([{")
	if open <= 0 {
		return "", nil, fmt.Errorf("%w: not a call: %q", ErrSyntax, token)
	}
	name := strings.TrimSpace(token[:open])
	inner, ok := stripBraces(token[open:])
	if !ok {
		return "", nil, fmt.Errorf("%w: malformed parameter list in %q", ErrSyntax, token)
	}
	var params []string
	for _, item := range splitTopLevel(inner, ",") {
		item, _ = unquote(item)
		params = append(params, item)
	}
	return name, params, nil
}

func isNumeric(s string) bool {
	hasDigit := false
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch >= '0' && ch <= '9' {
			hasDigit = true
			continue
		}
		if strings.IndexByte("+-.eE", ch) < 0 {
			return false
		}
	}
	return hasDigit
}
