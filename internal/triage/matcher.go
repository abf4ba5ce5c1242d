package triage

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/openclaw/openclaw-mem/internal/policy"
)

// leadingWrapperPatterns are the recognized prefix tokens a task line
// may carry before its keyword, applied repeatedly (in any
// combination/order) until none match. Each pattern consumes its own
// trailing whitespace.
var leadingWrapperPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^>+(?:\s*>+)*\s*`),                 // blockquote: >, >>, "> > "
	regexp.MustCompile(`^[-*+•‣∙·]\s*`),                    // list bullets
	regexp.MustCompile(`^\[(?: |x|X|✓|✔)\]\s*`),            // checklist markers
	regexp.MustCompile(`^\(?[0-9]+\)?[.)]\s*`),             // "1.", "1)", "(1)"
	regexp.MustCompile(`^\([a-zA-Z]+\)\s*`),                // "(a)", "(iv)"
	regexp.MustCompile(`^[a-zA-Z]+[.)]\s*`),                // "a.", "a)", "iv.", "iv)"
}

var taskKeywordPattern = regexp.MustCompile(`(?i)^(?:[\[\(【〔「『]\s*)?(TODO|TASK|REMINDER)\s*(?:[\]\)】〕」』])?`)

var taskSeparatorPattern = regexp.MustCompile(`^(?:[:：]|[-－–—−]|\s)`)

// MatchesTaskPattern implements the triage tasks-mode matcher: a
// summary matches when, after NFKC normalization and full-width
// folding, any combination of leading wrappers (blockquote, bullets,
// checklist, ordered-list prefixes) is optionally followed by a plain
// TODO/TASK/REMINDER keyword and a separator (or end of string), or by
// the keyword enclosed in brackets, which needs no separator.
func MatchesTaskPattern(kind, summary string) bool {
	if kind == "task" {
		return true
	}

	s := policy.Normalize(summary)
	for {
		stripped := s
		for _, re := range leadingWrapperPatterns {
			stripped = re.ReplaceAllString(stripped, "")
		}
		if stripped == s {
			break
		}
		s = stripped
	}

	loc := taskKeywordPattern.FindStringIndex(s)
	if loc == nil {
		return false
	}
	first, _ := utf8.DecodeRuneInString(s)
	last, _ := utf8.DecodeLastRuneInString(s[:loc[1]])
	if strings.ContainsRune("[(【〔「『", first) && strings.ContainsRune("])】〕」』", last) {
		return true
	}
	rest := s[loc[1]:]
	if rest == "" {
		return true
	}
	return taskSeparatorPattern.MatchString(rest)
}

// taskFingerprint derives a stable per-summary key for the alerted-hash
// set, so re-observing the same task line across scans does not
// re-alert it.
func taskFingerprint(summary string) string {
	return strings.TrimSpace(policy.Normalize(summary))
}
