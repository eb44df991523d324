package translator

import "cppmsplit/internal/core/errors"

// ExtractScope finds the brace that closes the one at buf[open] and returns
// the text between them together with the scope span, counted from the
// opening brace through the closing brace inclusive.
//
// The scan counts every '{' and '}' it meets, including those inside string
// and character literals.
func ExtractScope(buf string, open int) (string, int, error) {
	if open < 0 || open >= len(buf) || buf[open] != '{' {
		return "", 0, errors.AddContext(
			errors.New(errors.CodeUnbalancedBraces, "scope does not start with an opening brace"),
			errors.CtxOffset, open,
		)
	}

	depth := 0
	for i := open; i < len(buf); i++ {
		switch buf[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return buf[open+1 : i], i - open + 1, nil
			}
		}
	}
	return "", 0, errors.AddContext(
		errors.New(errors.CodeUnbalancedBraces, "no closing brace found"),
		errors.CtxOffset, open,
	)
}
