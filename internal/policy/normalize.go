// Package policy gates auto-recall and auto-capture to keep the
// ledger deterministic and safe: trivial-prompt detection, untrusted
// recall-output escaping, and keyword-driven capture classification
// with dedupe.
package policy

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
	"golang.org/x/text/width"
)

// Normalize applies NFKC normalization and full-width-to-half-width
// folding, then collapses whitespace. Both the trivial-prompt detector
// and the triage task-pattern matcher share this pass so a CJK
// full-width "ＴＯＤＯ" matches the same rules as "todo".
func Normalize(s string) string {
	folded := width.Fold.String(s)
	normalized := norm.NFKC.String(folded)
	fields := strings.Fields(normalized)
	return strings.Join(fields, " ")
}

// stripDecoration removes punctuation and emoji/symbol runes, leaving
// letters, digits, and marks, used to test for "empty after decoration
// stripping" and "emoji-only".
func stripDecoration(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// isEmojiOnly reports whether s, after whitespace trimming, consists
// entirely of symbol/emoji runes and whitespace — i.e. nothing else
// survives stripDecoration but the string itself isn't empty.
func isEmojiOnly(s string) bool {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return false
	}
	hasSymbol := false
	for _, r := range trimmed {
		if unicode.IsSpace(r) {
			continue
		}
		if unicode.IsSymbol(r) || isEmojiRange(r) {
			hasSymbol = true
			continue
		}
		return false
	}
	return hasSymbol
}

// isEmojiRange reports whether r falls in a common emoji block. This
// is an approximation: Go's unicode tables don't carry an "emoji"
// category, so pictograph/emoticon/transport/symbol ranges are
// enumerated directly.
func isEmojiRange(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1FAFF: // misc symbols/pictographs through symbols & pictographs extended-A
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols, dingbats
		return true
	case r >= 0x2190 && r <= 0x21FF: // arrows
		return true
	case r == 0x200D || r == 0xFE0F: // ZWJ, variation selector
		return true
	}
	return false
}
