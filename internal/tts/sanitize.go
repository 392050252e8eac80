package tts

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// allowed is the character set the Italian voice can pronounce. Accented
// vowels outside it (ë, ñ, ç ...) are dropped, not transliterated.
const allowed = "abcdefghijklmnopqrstuvwxyz" +
	"ABCDEFGHIJKLMNOPQRSTUVWXYZ" +
	"0123456789" +
	"àèéìíîòóùú" +
	"ÀÈÉÌÍÎÒÓÙÚ" +
	".,!?-' "

// Sanitize prepares text for synthesis: NFKC normalization, then every rune
// outside the allow-list is removed, then whitespace runs collapse to one
// space and the ends are trimmed.
func Sanitize(text string) string {
	text = norm.NFKC.String(text)

	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(allowed, r) {
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
