package expr

import (
	"fmt"
	"strings"
)

func isQuote(s string, i int) bool {
	c := s[i]
	return (c == '"' || c == '\'') && (i == 0 || s[i-1] != '\\')
}

// split cuts s at every occurrence of op that is outside quoted strings and
// at bracket depth zero. It returns a single-element slice holding s when op
// does not occur at the top level.
func split(s, op string) []string {
	var (
		parts []string
		depth int
		start int
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isQuote(s, i) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
		}
		if quote == 0 {
			switch c {
			case '(', '[':
				depth++
			case ')', ']':
				depth--
			}
		}
		if depth == 0 && quote == 0 && strings.HasPrefix(s[i:], op) {
			parts = append(parts, s[start:i])
			i += len(op) - 1
			start = i + 1
		}
	}
	if parts == nil {
		return []string{s}
	}
	return append(parts, s[start:])
}

// checkBalanced reports unterminated strings and mismatched brackets.
func checkBalanced(s string) error {
	var (
		stack []byte
		quote byte
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if quote != 0 {
			if c == quote && isQuote(s, i) {
				quote = 0
			}
			continue
		}
		switch c {
		case '"', '\'':
			if isQuote(s, i) {
				quote = c
			}
		case '(', '[':
			stack = append(stack, c)
		case ')', ']':
			open := byte('(')
			if c == ']' {
				open = '['
			}
			if len(stack) == 0 || stack[len(stack)-1] != open {
				return fmt.Errorf("unexpected %q at offset %d", c, i)
			}
			stack = stack[:len(stack)-1]
		}
	}
	if quote != 0 {
		return fmt.Errorf("unterminated string")
	}
	if len(stack) > 0 {
		return fmt.Errorf("unclosed %q", stack[len(stack)-1])
	}
	return nil
}

// enclosed reports whether s is wrapped in a single pair of parentheses,
// that is, the opening parenthesis at the start closes at the very end.
func enclosed(s string) bool {
	if len(s) < 2 || s[0] != '(' || s[len(s)-1] != ')' {
		return false
	}
	depth := 0
	var quote byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isQuote(s, i) {
			switch quote {
			case 0:
				quote = c
			case c:
				quote = 0
			}
			continue
		}
		if quote != 0 {
			continue
		}
		switch c {
		case '(', '[':
			depth++
		case ')', ']':
			depth--
			if depth == 0 && i != len(s)-1 {
				return false
			}
		}
	}
	return depth == 0
}

// Unwrap strips an optional ${...} wrapper.
func Unwrap(expression string) string {
	s := strings.TrimSpace(expression)
	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return strings.TrimSpace(s[2 : len(s)-1])
	}
	return s
}

// stripStatement removes the leading "return " and trailing ";" that
// calculation, visibility and validation expressions may carry.
func stripStatement(expression string) string {
	s := strings.TrimSpace(expression)
	if strings.HasPrefix(s, "return ") {
		s = strings.TrimSpace(s[len("return "):])
	}
	if strings.HasSuffix(s, ";") {
		s = strings.TrimSpace(s[:len(s)-1])
	}
	return s
}

func unquote(s string) (string, bool) {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1], true
	}
	return s, false
}
