package ingest

import (
	"encoding/json"
	"time"

	"github.com/openclaw/openclaw-mem/internal/capture"
	"github.com/openclaw/openclaw-mem/internal/store"
)

// StoreOptions configures one explicit, caller-authored write (the CLI
// `store` command), as opposed to a batch ingested from a capture
// stream.
type StoreOptions struct {
	TextEN     string
	Lang       string
	Category   string
	Importance float64 // 0 means "not supplied"; grade via heuristic-v1 instead
	Scope      string
	SessionKey string
	AgentID    string
}

type explicitDetail struct {
	TextEN   string `json:"text_en,omitempty"`
	Category string `json:"category,omitempty"`
}

// StoreExplicit redacts and inserts a single caller-supplied text as a
// note observation, grading it by the supplied importance score when
// given, or by the heuristic autograder otherwise.
func StoreExplicit(s *store.Store, text string, opts StoreOptions) (int64, string, error) {
	summary := capture.Redact(text)
	ts := time.Now().UTC()
	hash := capture.ContentHash(store.KindNote, "cli.store", summary, ts)

	var gov store.Governance
	if opts.Importance > 0 {
		imp := store.Importance{
			Score:  opts.Importance,
			Label:  store.ScoreToLabel(opts.Importance),
			Method: "explicit",
		}
		gov.Importance = &imp
	} else {
		imp := capture.GradeHeuristicV1(store.KindNote, "cli.store", summary)
		gov.Importance = &imp
	}
	gov.Scope = opts.Scope
	gov.Lang = opts.Lang

	raw, err := json.Marshal(explicitDetail{TextEN: capture.Redact(opts.TextEN), Category: opts.Category})
	if err != nil {
		return 0, "", err
	}
	detail, err := buildDetail(raw, gov)
	if err != nil {
		return 0, "", err
	}

	id, err := s.InsertObservation(store.NewObservation{
		TS:          ts,
		Kind:        store.KindNote,
		ToolName:    "cli.store",
		Summary:     summary,
		Detail:      detail,
		ContentHash: hash,
		SessionKey:  opts.SessionKey,
		AgentID:     opts.AgentID,
	})
	if err != nil {
		return 0, "", err
	}
	return id, gov.Importance.Label, nil
}
