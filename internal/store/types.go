package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Kind enumerates the fixed set of observation kinds.
const (
	KindTool    = "tool"
	KindNote    = "note"
	KindTask    = "task"
	KindError   = "error"
	KindDerived = "derived"
)

// Importance label thresholds, per spec: score -> label is a
// deterministic step function.
const (
	LabelMustRemember = "must_remember"
	LabelNiceToHave   = "nice_to_have"
	LabelIgnore       = "ignore"
	LabelUnknown      = "unknown"
)

// TrustTier enumerates provenance-driven trust classifications.
const (
	TrustTrusted     = "trusted"
	TrustUntrusted   = "untrusted"
	TrustQuarantined = "quarantined"
	TrustUnknown     = "unknown"
)

// SourceKind enumerates where an observation's content originated.
const (
	SourceOperator = "operator"
	SourceTool     = "tool"
	SourceWeb      = "web"
	SourceImport   = "import"
	SourceSystem   = "system"
)

// Importance is the governance sub-object recording an observation's
// graded significance.
type Importance struct {
	Score     float64 `json:"score"`
	Label     string  `json:"label"`
	Rationale string  `json:"rationale,omitempty"`
	Method    string  `json:"method,omitempty"`
	Version   string  `json:"version,omitempty"`
	GradedAt  string  `json:"graded_at,omitempty"`
}

// ScoreToLabel maps a graded score to its deterministic importance
// label. Callers with no score at all should use LabelUnknown instead
// of calling this function.
func ScoreToLabel(score float64) string {
	switch {
	case score >= 0.80:
		return LabelMustRemember
	case score >= 0.50:
		return LabelNiceToHave
	default:
		return LabelIgnore
	}
}

// Governance is the nested sub-object carried inside Observation.Detail
// under the "governance" key.
type Governance struct {
	Importance *Importance `json:"importance,omitempty"`
	Scope      string      `json:"scope,omitempty"`
	TrustTier  string      `json:"trust_tier,omitempty"`
	SourceKind string      `json:"source_kind,omitempty"`
	SourceRef  string      `json:"source_ref,omitempty"`
	Lang       string      `json:"lang,omitempty"`
}

// Observation is the canonical ledger row.
type Observation struct {
	ID          int64
	TS          time.Time
	Kind        string
	ToolName    string
	Summary     string
	Detail      json.RawMessage
	ContentHash string
	SessionKey  string
	AgentID     string
	CreatedAt   time.Time
	Archived    bool
	LastUsedAt  sql.NullTime
}

// Governance decodes the observation's nested governance sub-object. A
// row with no governance key returns a zero-value Governance and no
// error.
func (o *Observation) Governance() (Governance, error) {
	if len(o.Detail) == 0 {
		return Governance{}, nil
	}
	var env struct {
		Governance Governance `json:"governance"`
	}
	if err := json.Unmarshal(o.Detail, &env); err != nil {
		return Governance{}, fmt.Errorf("store: decode governance: %w", err)
	}
	return env.Governance, nil
}

// ImportanceLabel returns the observation's importance label, defaulting
// to LabelUnknown when no importance has been graded.
func (o *Observation) ImportanceLabel() string {
	g, err := o.Governance()
	if err != nil || g.Importance == nil || g.Importance.Label == "" {
		return LabelUnknown
	}
	return g.Importance.Label
}

// TrustTier returns the observation's trust tier, defaulting to
// TrustUnknown.
func (o *Observation) TrustTier() string {
	g, err := o.Governance()
	if err != nil || g.TrustTier == "" {
		return TrustUnknown
	}
	return g.TrustTier
}

// Scope returns the observation's scope string, or "" if unset.
func (o *Observation) Scope() string {
	g, err := o.Governance()
	if err != nil {
		return ""
	}
	return g.Scope
}

// MergeGovernance returns a new detail blob with patch applied
// additively: fields already present in the existing governance object
// are left untouched unless overwrite is true. The caller is
// responsible for logging the change when overwrite is used.
func MergeGovernance(existing json.RawMessage, patch Governance, overwrite bool) (json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if len(existing) > 0 {
		if err := json.Unmarshal(existing, &raw); err != nil {
			return nil, fmt.Errorf("store: decode detail: %w", err)
		}
	}
	if raw == nil {
		raw = map[string]json.RawMessage{}
	}

	var current Governance
	if gov, ok := raw["governance"]; ok {
		if err := json.Unmarshal(gov, &current); err != nil {
			return nil, fmt.Errorf("store: decode existing governance: %w", err)
		}
	}

	merged := current
	if patch.Importance != nil && (overwrite || merged.Importance == nil) {
		merged.Importance = patch.Importance
	}
	if patch.Scope != "" && (overwrite || merged.Scope == "") {
		merged.Scope = patch.Scope
	}
	if patch.TrustTier != "" && (overwrite || merged.TrustTier == "") {
		merged.TrustTier = patch.TrustTier
	}
	if patch.SourceKind != "" && (overwrite || merged.SourceKind == "") {
		merged.SourceKind = patch.SourceKind
	}
	if patch.SourceRef != "" && (overwrite || merged.SourceRef == "") {
		merged.SourceRef = patch.SourceRef
	}
	if patch.Lang != "" && (overwrite || merged.Lang == "") {
		merged.Lang = patch.Lang
	}

	encoded, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("store: encode governance: %w", err)
	}
	raw["governance"] = encoded

	out, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("store: encode detail: %w", err)
	}
	return out, nil
}

// Filter narrows search_fts, search_vector, and list_scalars by
// governance fields. A zero-value Filter matches everything non-archived.
type Filter struct {
	Scope            string
	ImportanceLabels []string
	TrustTiers       []string
	IncludeArchived  bool
}

// ScoredID pairs an observation id with a ranking score. For FTS results
// the score is a BM25-derived relevance value (higher is more
// relevant); for vector results it is cosine similarity.
type ScoredID struct {
	ID    int64
	Score float64
}
