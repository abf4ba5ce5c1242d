package store

import (
	"database/sql"
	"encoding/binary"
	"fmt"
	"math"
	"sort"

	"github.com/openclaw/openclaw-mem/internal/errs"
)

// EncodeVector serializes a float32 vector as a little-endian BLOB.
func EncodeVector(v []float32) []byte {
	out := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(out[i*4:], math.Float32bits(f))
	}
	return out
}

// DecodeVector deserializes a little-endian BLOB into a float32 vector.
func DecodeVector(b []byte) []float32 {
	n := len(b) / 4
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return out
}

// UpsertEmbedding stores an L2-normalized vector for (obs_id, model).
// expectedDim is the model's declared dimension; a mismatch against
// len(vector) fails with errs.ErrDimensionMismatch without writing.
func (s *Store) UpsertEmbedding(obsID int64, model string, vector []float32, expectedDim int, lang, checksum string) error {
	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("store: upsert_embedding obs=%d model=%s: got dim %d want %d: %w",
			obsID, model, len(vector), expectedDim, errs.ErrDimensionMismatch)
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	var exists int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM observations WHERE id = ?`, obsID).Scan(&exists); err != nil {
		return fmt.Errorf("store: upsert_embedding check obs %d: %w", obsID, errs.ErrStorageUnavailable)
	}
	if exists == 0 {
		return fmt.Errorf("store: upsert_embedding obs %d: %w", obsID, errs.ErrUnknownObservation)
	}

	normalized := normalizeL2(vector)
	blob := EncodeVector(normalized)

	_, err := s.db.Exec(`
		INSERT INTO embeddings (obs_id, model, dim, vector, lang, checksum)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(obs_id, model) DO UPDATE SET dim = excluded.dim, vector = excluded.vector, lang = excluded.lang, checksum = excluded.checksum
	`, obsID, model, len(normalized), blob, lang, checksum)
	if err != nil {
		return fmt.Errorf("store: upsert_embedding obs %d: %w", obsID, errs.ErrStorageUnavailable)
	}
	return nil
}

// SearchVector performs an in-process cosine similarity scan over
// embeddings for the given model, ordered by descending similarity with
// a stable tie-break on ascending id. Deterministic for a fixed query
// vector + corpus + filter.
func (s *Store) SearchVector(queryVec []float32, k int, model string, filter Filter) ([]ScoredID, error) {
	if len(queryVec) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}
	query := normalizeL2(queryVec)

	where, args := filter.whereClause()
	sqlQuery := fmt.Sprintf(`
		SELECT o.id, e.vector
		FROM embeddings e
		JOIN observations o ON o.id = e.obs_id
		WHERE e.model = ? AND %s
	`, where)

	queryArgs := make([]any, 0, len(args)+1)
	queryArgs = append(queryArgs, model)
	queryArgs = append(queryArgs, args...)

	rows, err := s.db.Query(sqlQuery, queryArgs...)
	if err != nil {
		return nil, fmt.Errorf("store: search_vector: %w", errs.ErrStorageUnavailable)
	}
	defer rows.Close()

	var scored []ScoredID
	for rows.Next() {
		var id int64
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return nil, fmt.Errorf("store: search_vector scan: %w", errs.ErrStorageUnavailable)
		}
		vec := DecodeVector(blob)
		scored = append(scored, ScoredID{ID: id, Score: cosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: search_vector rows: %w", errs.ErrStorageUnavailable)
	}

	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return scored[i].ID < scored[j].ID
	})
	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// EmbeddingDim returns the stored dimension for (obs_id, model), or
// sql.ErrNoRows wrapped as errs.ErrUnknownObservation if absent.
func (s *Store) EmbeddingDim(obsID int64, model string) (int, error) {
	var dim int
	err := s.db.QueryRow(`SELECT dim FROM embeddings WHERE obs_id = ? AND model = ?`, obsID, model).Scan(&dim)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("store: embedding_dim obs=%d model=%s: %w", obsID, model, errs.ErrUnknownObservation)
	}
	if err != nil {
		return 0, fmt.Errorf("store: embedding_dim obs=%d model=%s: %w", obsID, model, errs.ErrStorageUnavailable)
	}
	return dim, nil
}

func normalizeL2(v []float32) []float32 {
	var sumSq float64
	for _, f := range v {
		sumSq += float64(f) * float64(f)
	}
	if sumSq == 0 {
		return v
	}
	norm := math.Sqrt(sumSq)
	out := make([]float32, len(v))
	for i, f := range v {
		out[i] = float32(float64(f) / norm)
	}
	return out
}

func cosineSimilarity(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	// Both vectors are stored/queried L2-normalized, so the dot product
	// alone is the cosine similarity.
	return dot
}
