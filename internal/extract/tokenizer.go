package extract

import "strings"

// ScanQuotedStrings returns the contents of every quoted string literal in s, in order of
// appearance. It is deliberately looser than a JSON parser so that almost-JSON arrays from the
// model still produce suggestions.
//
// Rules:
//   - a literal opens with ' or " and closes with the same quote character;
//   - a backslash escapes the following rune: \n, \t and \r become control characters,
//     anything else (including either quote and the backslash itself) stands for itself;
//   - a literal with no closing quote is not a match, and scanning resumes right after its
//     opening quote, so a stray apostrophe doesn't swallow the rest of the payload;
//   - empty literals are skipped.
func ScanQuotedStrings(s string) []string {
	var out []string
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		q := runes[i]
		if q != '"' && q != '\'' {
			continue
		}
		value, end, ok := readLiteral(runes, i+1, q)
		if !ok {
			continue
		}
		if value != "" {
			out = append(out, value)
		}
		i = end
	}
	return out
}

// readLiteral reads from start until the closing quote q. It returns the unescaped value and
// the index of the closing quote.
func readLiteral(runes []rune, start int, q rune) (string, int, bool) {
	var b strings.Builder
	for j := start; j < len(runes); j++ {
		r := runes[j]
		switch {
		case r == '\\':
			if j+1 >= len(runes) {
				return "", 0, false
			}
			j++
			b.WriteRune(unescape(runes[j]))
		case r == q:
			return b.String(), j, true
		default:
			b.WriteRune(r)
		}
	}
	return "", 0, false
}

func unescape(r rune) rune {
	switch r {
	case 'n':
		return '\n'
	case 't':
		return '\t'
	case 'r':
		return '\r'
	default:
		return r
	}
}
