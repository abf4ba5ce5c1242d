package store

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/openclaw/openclaw-mem/internal/errs"
)

// NewObservation is the caller-supplied shape for InsertObservation; ID,
// CreatedAt, and Archived are assigned by the store.
type NewObservation struct {
	TS          time.Time
	Kind        string
	ToolName    string
	Summary     string
	Detail      []byte // JSON, may be nil (stored as "{}")
	ContentHash string
	SessionKey  string
	AgentID     string
}

// InsertObservation atomically inserts a row and its FTS entry (via
// trigger) within one transaction. It fails with errs.ErrDuplicate if
// content_hash was already inserted within the store's idempotency
// window, and errs.ErrSchemaViolation if a required field is absent.
func (s *Store) InsertObservation(o NewObservation) (int64, error) {
	if o.Kind == "" || o.Summary == "" || o.ContentHash == "" || o.TS.IsZero() {
		return 0, fmt.Errorf("store: insert observation: %w", errs.ErrSchemaViolation)
	}
	switch o.Kind {
	case KindTool, KindNote, KindTask, KindError, KindDerived:
	default:
		return 0, fmt.Errorf("store: insert observation: unknown kind %q: %w", o.Kind, errs.ErrSchemaViolation)
	}

	detail := o.Detail
	if len(detail) == 0 {
		detail = []byte("{}")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if s.dupWindow > 0 {
		cutoff := time.Now().Add(-s.dupWindow).UTC().Format("2006-01-02 15:04:05")
		var existing int
		err := s.db.QueryRow(
			`SELECT COUNT(*) FROM observations WHERE content_hash = ? AND created_at >= ?`,
			o.ContentHash, cutoff,
		).Scan(&existing)
		if err != nil {
			return 0, fmt.Errorf("store: check duplicate: %w", errs.ErrStorageUnavailable)
		}
		if existing > 0 {
			return 0, fmt.Errorf("store: content_hash %s: %w", o.ContentHash, errs.ErrDuplicate)
		}
	}

	res, err := s.db.Exec(`
		INSERT INTO observations (ts, kind, tool_name, summary, detail, content_hash, session_key, agent_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.TS.UTC().Format(time.RFC3339), o.Kind, o.ToolName, o.Summary, string(detail), o.ContentHash, o.SessionKey, o.AgentID)
	if err != nil {
		return 0, fmt.Errorf("store: insert observation: %w", errs.ErrStorageUnavailable)
	}
	return res.LastInsertId()
}

// GetByIDs returns rows in input order; missing ids yield nil slots, not
// errors.
func (s *Store) GetByIDs(ids []int64) ([]*Observation, error) {
	out := make([]*Observation, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	rows, err := s.db.Query(fmt.Sprintf(`
		SELECT id, ts, kind, tool_name, summary, detail, content_hash, session_key, agent_id, created_at, archived, last_used_at
		FROM observations WHERE id IN (%s)
	`, strings.Join(placeholders, ",")), args...)
	if err != nil {
		return nil, fmt.Errorf("store: get_by_ids: %w", errs.ErrStorageUnavailable)
	}
	defer rows.Close()

	byID := make(map[int64]*Observation, len(ids))
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		byID[obs.ID] = obs
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: get_by_ids rows: %w", errs.ErrStorageUnavailable)
	}

	for i, id := range ids {
		out[i] = byID[id]
	}
	return out, nil
}

// Timeline returns, for each input id, the observations within a
// ±window range of that id's timestamp, ordered by (ts, id).
func (s *Store) Timeline(ids []int64, window time.Duration) (map[int64][]*Observation, error) {
	out := make(map[int64][]*Observation, len(ids))
	anchors, err := s.GetByIDs(ids)
	if err != nil {
		return nil, err
	}

	for i, id := range ids {
		anchor := anchors[i]
		if anchor == nil {
			out[id] = nil
			continue
		}
		lo := anchor.TS.Add(-window).UTC().Format(time.RFC3339)
		hi := anchor.TS.Add(window).UTC().Format(time.RFC3339)

		rows, err := s.db.Query(`
			SELECT id, ts, kind, tool_name, summary, detail, content_hash, session_key, agent_id, created_at, archived, last_used_at
			FROM observations
			WHERE ts >= ? AND ts <= ? AND archived = 0
			ORDER BY ts ASC, id ASC
		`, lo, hi)
		if err != nil {
			return nil, fmt.Errorf("store: timeline: %w", errs.ErrStorageUnavailable)
		}
		var within []*Observation
		for rows.Next() {
			obs, err := scanObservation(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			within = append(within, obs)
		}
		rerr := rows.Err()
		rows.Close()
		if rerr != nil {
			return nil, fmt.Errorf("store: timeline rows: %w", errs.ErrStorageUnavailable)
		}
		out[id] = within
	}
	return out, nil
}

// ListScalars returns rows matching filter without vector payloads, for
// admin listing.
func (s *Store) ListScalars(filter Filter, limit int) ([]*Observation, error) {
	if limit <= 0 {
		limit = 50
	}
	where, args := filter.whereClause()
	query := fmt.Sprintf(`
		SELECT o.id, o.ts, o.kind, o.tool_name, o.summary, o.detail, o.content_hash, o.session_key, o.agent_id, o.created_at, o.archived, o.last_used_at
		FROM observations o
		WHERE %s
		ORDER BY o.id DESC
		LIMIT ?
	`, where)
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("store: list_scalars: %w", errs.ErrStorageUnavailable)
	}
	defer rows.Close()

	var out []*Observation
	for rows.Next() {
		obs, err := scanObservation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	return out, rows.Err()
}

// Archive soft-deletes an observation; archived rows are excluded from
// retrieval unless explicitly included via Filter.IncludeArchived.
func (s *Store) Archive(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	res, err := s.db.Exec(`UPDATE observations SET archived = 1 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: archive %d: %w", id, errs.ErrStorageUnavailable)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: archive %d: %w", id, errs.ErrStorageUnavailable)
	}
	if n == 0 {
		return fmt.Errorf("store: archive %d: %w", id, errs.ErrInvalidID)
	}
	return nil
}

// IsArchived reports whether the given observation id is archived.
func (s *Store) IsArchived(id int64) (bool, error) {
	var archived int
	err := s.db.QueryRow(`SELECT archived FROM observations WHERE id = ?`, id).Scan(&archived)
	if err == sql.ErrNoRows {
		return false, fmt.Errorf("store: is_archived %d: %w", id, errs.ErrInvalidID)
	}
	if err != nil {
		return false, fmt.Errorf("store: is_archived %d: %w", id, errs.ErrStorageUnavailable)
	}
	return archived != 0, nil
}

// TouchLastUsed records that an observation was surfaced to a caller
// by setting its last_used_at to the current time.
func (s *Store) TouchLastUsed(id int64) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.db.Exec(`UPDATE observations SET last_used_at = datetime('now') WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: touch_last_used %d: %w", id, errs.ErrStorageUnavailable)
	}
	return nil
}

// UpdateGovernance applies an additive-only governance patch to an
// existing row (the non-destructive rule): fields already set are left
// untouched unless overwrite is true.
func (s *Store) UpdateGovernance(id int64, patch Governance, overwrite bool) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var detail string
	err := s.db.QueryRow(`SELECT detail FROM observations WHERE id = ?`, id).Scan(&detail)
	if err == sql.ErrNoRows {
		return fmt.Errorf("store: update_governance %d: %w", id, errs.ErrInvalidID)
	}
	if err != nil {
		return fmt.Errorf("store: update_governance %d: %w", id, errs.ErrStorageUnavailable)
	}

	merged, err := MergeGovernance([]byte(detail), patch, overwrite)
	if err != nil {
		return err
	}

	if _, err := s.db.Exec(`UPDATE observations SET detail = ? WHERE id = ?`, string(merged), id); err != nil {
		return fmt.Errorf("store: update_governance %d: %w", id, errs.ErrStorageUnavailable)
	}
	return nil
}

func scanObservation(rows *sql.Rows) (*Observation, error) {
	var o Observation
	var ts, createdAt string
	var archived int
	var lastUsed sql.NullTime
	var detail string

	if err := rows.Scan(&o.ID, &ts, &o.Kind, &o.ToolName, &o.Summary, &detail,
		&o.ContentHash, &o.SessionKey, &o.AgentID, &createdAt, &archived, &lastUsed); err != nil {
		return nil, fmt.Errorf("store: scan observation: %w", errs.ErrStorageUnavailable)
	}

	o.Detail = []byte(detail)
	o.Archived = archived != 0
	o.LastUsedAt = lastUsed

	if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
		o.TS = parsed
	}
	if parsed, err := time.Parse("2006-01-02 15:04:05", createdAt); err == nil {
		o.CreatedAt = parsed
	}
	return &o, nil
}

// whereClause renders the filter as a SQL WHERE fragment (without the
// "WHERE" keyword) plus its positional args, for use by list/search
// queries against the observations table aliased as o.
func (f Filter) whereClause() (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	if !f.IncludeArchived {
		clauses = append(clauses, "o.archived = 0")
	}
	if f.Scope != "" {
		clauses = append(clauses, "json_extract(o.detail, '$.governance.scope') = ?")
		args = append(args, f.Scope)
	}
	if len(f.ImportanceLabels) > 0 {
		placeholders := make([]string, len(f.ImportanceLabels))
		for i, l := range f.ImportanceLabels {
			placeholders[i] = "?"
			args = append(args, l)
		}
		if containsLabel(f.ImportanceLabels, LabelUnknown) {
			clauses = append(clauses, fmt.Sprintf(
				"(COALESCE(json_extract(o.detail, '$.governance.importance.label'), '%s') IN (%s))",
				LabelUnknown, strings.Join(placeholders, ","),
			))
		} else {
			clauses = append(clauses, fmt.Sprintf("json_extract(o.detail, '$.governance.importance.label') IN (%s)", strings.Join(placeholders, ",")))
		}
	}
	if len(f.TrustTiers) > 0 {
		placeholders := make([]string, len(f.TrustTiers))
		for i, t := range f.TrustTiers {
			placeholders[i] = "?"
			args = append(args, t)
		}
		if containsLabel(f.TrustTiers, TrustUnknown) {
			clauses = append(clauses, fmt.Sprintf(
				"(COALESCE(json_extract(o.detail, '$.governance.trust_tier'), '%s') IN (%s))",
				TrustUnknown, strings.Join(placeholders, ","),
			))
		} else {
			clauses = append(clauses, fmt.Sprintf("json_extract(o.detail, '$.governance.trust_tier') IN (%s)", strings.Join(placeholders, ",")))
		}
	}

	return strings.Join(clauses, " AND "), args
}

func containsLabel(labels []string, target string) bool {
	for _, l := range labels {
		if l == target {
			return true
		}
	}
	return false
}
