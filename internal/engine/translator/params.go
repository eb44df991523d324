package translator

import "strings"

// matchParens returns the index just past the ')' that closes the '(' at
// src[open], or -1. Literals are skipped so that quoted parentheses in
// default arguments do not count.
func matchParens(src string, open int) int {
	if open >= len(src) || src[open] != '(' {
		return -1
	}
	depth := 0
	for i := open; i < len(src); i++ {
		switch c := src[i]; c {
		case '"', '\'':
			i = skipLiteral(src, i)
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return -1
}

// skipLiteral returns the index of the quote closing the literal opened at
// src[start], or the last index of src when it is never closed.
func skipLiteral(src string, start int) int {
	quote := src[start]
	for i := start + 1; i < len(src); i++ {
		switch src[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(src) - 1
}

// StripDefaultArguments removes " = expr" from every parameter of a
// parenthesised parameter list. The expression ends at the next ',' or ')'
// that is not nested in (), [], {} or a template argument list and not
// inside a literal. Inside (), [] and {} a '<' or '>' is always a comparison;
// at parameter level a '<' only opens a template argument list when it
// directly follows a name and a matching '>' exists.
func StripDefaultArguments(params string) string {
	out := make([]byte, 0, len(params))
	var stack []byte
	skipping := false

	for i := 0; i < len(params); i++ {
		c := params[i]

		if c == '"' || c == '\'' {
			end := skipLiteral(params, i)
			if !skipping {
				out = append(out, params[i:end+1]...)
			}
			i = end
			continue
		}

		closesList := false
		switch c {
		case '(', '[', '{':
			stack = append(stack, c)
		case ')', ']', '}':
			stack = popBracket(stack, openerOf(c))
			closesList = c == ')' && len(stack) == 0
		case '<':
			if opensTemplateArgs(params, i, stack) {
				stack = append(stack, c)
			}
		case '>':
			if len(stack) > 0 && stack[len(stack)-1] == '<' && params[i-1] != '-' {
				stack = stack[:len(stack)-1]
			}
		}

		if len(stack) == 1 && c == '=' && !skipping && isAssignment(params, i) {
			skipping = true
			out = trimTrailingSpace(out)
			continue
		}

		if skipping {
			atSeparator := len(stack) == 1 && c == ','
			if !atSeparator && !closesList {
				continue
			}
			skipping = false
		}
		out = append(out, c)
	}
	return string(out)
}

func openerOf(c byte) byte {
	switch c {
	case ')':
		return '('
	case ']':
		return '['
	}
	return '{'
}

// popBracket pops through any unclosed '<' down to and including the
// matching opener. A stray closer leaves the stack unchanged.
func popBracket(stack []byte, opener byte) []byte {
	for j := len(stack) - 1; j >= 0; j-- {
		if stack[j] == opener {
			return stack[:j]
		}
		if stack[j] != '<' {
			return stack
		}
	}
	return stack
}

func opensTemplateArgs(s string, i int, stack []byte) bool {
	if len(stack) == 0 {
		return false
	}
	if top := stack[len(stack)-1]; top != '<' && len(stack) > 1 {
		return false
	}
	if i == 0 || !isNameByte(s[i-1]) {
		return false
	}
	return angleCloses(s, i)
}

// angleCloses reports whether the '<' at s[i] has a matching '>' before any
// bracket that closes outside of it.
func angleCloses(s string, i int) bool {
	angles, nested := 1, 0
	for j := i + 1; j < len(s); j++ {
		switch c := s[j]; c {
		case '"', '\'':
			j = skipLiteral(s, j)
		case '(', '[', '{':
			nested++
		case ')', ']', '}':
			if nested == 0 {
				return false
			}
			nested--
		case ';':
			return false
		case '<':
			if nested == 0 {
				angles++
			}
		case '>':
			if nested == 0 && s[j-1] != '-' {
				angles--
				if angles == 0 {
					return true
				}
			}
		}
	}
	return false
}

func isNameByte(c byte) bool {
	return c == '_' || c == ':' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

// isAssignment rejects the '=' of comparison operators.
func isAssignment(s string, i int) bool {
	if i+1 < len(s) && s[i+1] == '=' {
		return false
	}
	if i > 0 && strings.IndexByte("=!<>", s[i-1]) >= 0 {
		return false
	}
	return true
}

func trimTrailingSpace(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == ' ' || b[len(b)-1] == '\t' || b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
