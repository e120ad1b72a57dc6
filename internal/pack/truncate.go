package pack

import "unicode"

// prefixByTokens returns the byte-exact prefix of text spanning exactly n
// whitespace-delimited tokens (spec.md 4.8: "prefix-only and
// byte-deterministic given identical tokenization"). If text has fewer
// than n tokens, the whole text is returned unchanged.
func prefixByTokens(text string, n int) string {
	if n <= 0 {
		return ""
	}

	count := 0
	inToken := false
	lastTokenEnd := 0

	for i, r := range text {
		if unicode.IsSpace(r) {
			if inToken {
				inToken = false
				lastTokenEnd = i
				if count == n {
					return text[:lastTokenEnd]
				}
			}
			continue
		}
		if !inToken {
			inToken = true
			count++
		}
	}

	if count <= n {
		return text
	}
	return text[:lastTokenEnd]
}
