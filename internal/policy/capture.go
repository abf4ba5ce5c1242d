package policy

import (
	"regexp"
	"strings"

	"github.com/openclaw/openclaw-mem/internal/capture"
)

// Capture category labels.
const (
	CategoryTodo       = "todo"
	CategoryDecision   = "decision"
	CategoryPreference = "preference"
)

// categoryKeyword pairs a substring with the category it signals.
// Language-agnostic: English and CJK equivalents share one table per
// §9's extensibility directive.
type categoryKeyword struct {
	substr   string
	category string
}

var captureKeywords = []categoryKeyword{
	{"todo", CategoryTodo},
	{"to-do", CategoryTodo},
	{"remind me", CategoryTodo},
	{"待辦", CategoryTodo},
	{"要記得", CategoryTodo},
	{"提醒我", CategoryTodo},

	{"we decided", CategoryDecision},
	{"from now on", CategoryDecision},
	{"let's use", CategoryDecision},
	{"決定", CategoryDecision},
	{"改成", CategoryDecision},
	{"採用", CategoryDecision},

	{"i prefer", CategoryPreference},
	{"i like", CategoryPreference},
	{"i don't want", CategoryPreference},
	{"偏好", CategoryPreference},
	{"我喜歡", CategoryPreference},
	{"我不要", CategoryPreference},
}

var (
	fencedCodeBlockPattern = regexp.MustCompile("(?s)```.*?```")
	toolResultJSONPattern  = regexp.MustCompile(`(?i)"(stdout|stderr|exitcode)"\s*:`)
	toolResultPhrasePattern = regexp.MustCompile(`(?i)\b(tool result|tool output|exit code \d+)\b`)
)

// CaptureCandidate is one split-out piece of user-role text under
// classification.
type CaptureCandidate struct {
	Text     string
	Category string // "" if no category keyword matched
	Rejected bool
	Reason   string // set when Rejected
}

// Options controls ClassifyCandidates / one AutoCapture pass.
type Options struct {
	AllowedCategories       []string // empty = allow all
	MaxItemsPerTurn         int
	DedupeSimilarityThreshold float64
	DuplicateSearchMinScore   float64
}

func defaultOptions(o Options) Options {
	if o.MaxItemsPerTurn <= 0 {
		o.MaxItemsPerTurn = 2
	}
	if o.DedupeSimilarityThreshold <= 0 {
		o.DedupeSimilarityThreshold = 0.92
	}
	if o.DuplicateSearchMinScore <= 0 {
		o.DuplicateSearchMinScore = 0.94
	}
	return o
}

// SplitCandidates splits user-role text by newlines, falling back to
// sentence boundaries for any line that has none.
func SplitCandidates(text string) []string {
	var out []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, splitSentences(line)...)
	}
	return out
}

var sentenceBoundary = regexp.MustCompile(`(?:[.!?]|。|！|？)\s+`)

func splitSentences(line string) []string {
	parts := sentenceBoundary.Split(line, -1)
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// looksLikeToolOutput rejects fenced code blocks, JSON with
// stdout/stderr/exitCode keys, tool-result phrasing, or text carrying
// the recall marker (so a recalled block can never be re-captured).
func looksLikeToolOutput(s string) bool {
	if strings.Contains(s, RecallMarker) || strings.Contains(s, "<relevant-memories>") {
		return true
	}
	if fencedCodeBlockPattern.MatchString(s) {
		return true
	}
	if toolResultJSONPattern.MatchString(s) {
		return true
	}
	if toolResultPhrasePattern.MatchString(s) {
		return true
	}
	return false
}

// classify determines a candidate's category from the keyword table,
// returning "" if none match.
func classify(s string) string {
	lower := strings.ToLower(Normalize(s))
	for _, kw := range captureKeywords {
		if strings.Contains(lower, strings.ToLower(kw.substr)) {
			return kw.category
		}
	}
	return ""
}

func categoryAllowed(category string, allowed []string) bool {
	if len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		if a == category {
			return true
		}
	}
	return false
}

// ClassifyCandidates runs the full per-candidate rejection/
// classification pipeline (secret check, tool-output check, keyword
// classification, allowed-category filter) without applying the
// turn cap or dedupe, which need cross-candidate and store context
// (see DedupeAgainstText, DedupeAgainstVectorIndex and ApplyTurnCap).
func ClassifyCandidates(candidates []string, opts Options) []CaptureCandidate {
	opts = defaultOptions(opts)
	out := make([]CaptureCandidate, 0, len(candidates))
	for _, c := range candidates {
		cand := CaptureCandidate{Text: c}
		switch {
		case capture.ContainsSecret(c):
			cand.Rejected = true
			cand.Reason = "secrets_like"
		case looksLikeToolOutput(c):
			cand.Rejected = true
			cand.Reason = "tool_output_like"
		default:
			category := classify(c)
			if category == "" {
				cand.Rejected = true
				cand.Reason = "no_category_match"
			} else if !categoryAllowed(category, opts.AllowedCategories) {
				cand.Rejected = true
				cand.Reason = "category_not_allowed"
				cand.Category = category
			} else {
				cand.Category = category
			}
		}
		out = append(out, cand)
	}
	return out
}
