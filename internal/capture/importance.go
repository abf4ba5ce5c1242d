package capture

import (
	"strings"

	"github.com/openclaw/openclaw-mem/internal/store"
)

// keywordBoost pairs a substring with the score delta applied when it
// appears in an event's summary. Data, not code, per the extensibility
// guidance for language-agnostic policy matching.
type keywordBoost struct {
	substr string
	delta  float64
}

var importanceKeywordBoosts = []keywordBoost{
	{"remember", 0.15},
	{"decided", 0.15},
	{"decision", 0.15},
	{"todo", 0.10},
	{"important", 0.15},
	{"failed", 0.10},
	{"error", 0.10},
	{"critical", 0.20},
}

// baseScoreByKind is the heuristic-v1 starting point before keyword
// boosts, reflecting that errors and tasks are more often worth
// remembering than routine tool chatter.
var baseScoreByKind = map[string]float64{
	store.KindError:   0.70,
	store.KindTask:     0.55,
	store.KindNote:    0.45,
	store.KindTool:    0.30,
	store.KindDerived: 0.25,
}

// GradeHeuristicV1 is the heuristic-v1 autograde: a pure function of
// (kind, tool_name, summary) producing a governance Importance. It only
// ever fills a missing importance object — callers must not invoke this
// when an observation already carries one (the non-destructive rule
// lives in the ingest pipeline, not here).
func GradeHeuristicV1(kind, toolName, summary string) store.Importance {
	score := baseScoreByKind[kind]
	if score == 0 {
		score = 0.35
	}

	lower := strings.ToLower(summary)
	var matched []string
	for _, kb := range importanceKeywordBoosts {
		if strings.Contains(lower, kb.substr) {
			score += kb.delta
			matched = append(matched, kb.substr)
		}
	}
	if score > 1 {
		score = 1
	}

	rationale := "kind=" + kind
	if len(matched) > 0 {
		rationale += "; keywords=" + strings.Join(matched, ",")
	}

	return store.Importance{
		Score:     score,
		Label:     store.ScoreToLabel(score),
		Rationale: rationale,
		Method:    "heuristic-v1",
		Version:   "1",
	}
}
