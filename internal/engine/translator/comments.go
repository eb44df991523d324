package translator

import "strings"

const urlScheme = "https:"

// StripComments removes block and line comments. A "//" directly preceded by
// "https:" is kept so URLs in includes and strings survive. Line breaks that
// end line comments are preserved.
func StripComments(src string) string {
	out := make([]byte, 0, len(src))
	for i := 0; i < len(src); {
		if src[i] == '/' && i+1 < len(src) {
			switch src[i+1] {
			case '*':
				if end := strings.Index(src[i+2:], "*/"); end >= 0 {
					next := i + 2 + end + 2
					// Removing the comment must not glue "/" and "/" or "*"
					// into a new comment opener.
					if len(out) > 0 && out[len(out)-1] == '/' && next < len(src) && (src[next] == '/' || src[next] == '*') {
						out = append(out, ' ')
					}
					i = next
					continue
				}
			case '/':
				if !strings.HasSuffix(src[:i], urlScheme) {
					end := strings.IndexByte(src[i:], '\n')
					if end < 0 {
						i = len(src)
					} else {
						i += end
					}
					continue
				}
			}
		}
		out = append(out, src[i])
		i++
	}
	return string(out)
}
