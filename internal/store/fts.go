package store

import (
	"fmt"

	"github.com/openclaw/openclaw-mem/internal/errs"
)

// SearchFTS performs FTS5 full-text search across observations, ordered
// by BM25 relevance with a stable tie-break on ascending id. Results
// are deterministic for a fixed query + corpus + filter.
func (s *Store) SearchFTS(query string, k int, filter Filter) ([]ScoredID, error) {
	if query == "" {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	where, args := filter.whereClause()
	sqlQuery := fmt.Sprintf(`
		SELECT o.id, bm25(observations_fts) AS rank
		FROM observations o
		JOIN observations_fts f ON o.id = f.rowid
		WHERE observations_fts MATCH ? AND %s
		ORDER BY rank ASC, o.id ASC
		LIMIT ?
	`, where)

	queryArgs := make([]any, 0, len(args)+2)
	queryArgs = append(queryArgs, query)
	queryArgs = append(queryArgs, args...)
	queryArgs = append(queryArgs, k)

	rows, err := s.db.Query(sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: search_fts: %w", errs.ErrStorageUnavailable)
	}
	defer rows.Close()

	var out []ScoredID
	for rows.Next() {
		var id int64
		var rank float64
		if err := rows.Scan(&id, &rank); err != nil {
			return nil, fmt.Errorf("store: search_fts scan: %w", errs.ErrStorageUnavailable)
		}
		// bm25() returns a negative-is-better score; invert so higher
		// is more relevant, matching the vector channel's convention.
		out = append(out, ScoredID{ID: id, Score: -rank})
	}
	return out, rows.Err()
}
