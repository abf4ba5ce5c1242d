package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.sqlite")
	s, err := Open(path, 5*time.Second, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestInsertObservationAndGetByIDs(t *testing.T) {
	s := openTestStore(t)

	id, err := s.InsertObservation(NewObservation{
		TS:          time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC),
		Kind:        KindNote,
		Summary:     "searched for OpenClaw",
		ContentHash: "hash-1",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	rows, err := s.GetByIDs([]int64{id, id + 999})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	require.NotNil(t, rows[0])
	require.Equal(t, "searched for OpenClaw", rows[0].Summary)
	require.Nil(t, rows[1], "missing id must yield nil slot, not error")
}

func TestInsertObservationRejectsMissingFields(t *testing.T) {
	s := openTestStore(t)
	_, err := s.InsertObservation(NewObservation{Kind: KindNote, ContentHash: "x"})
	require.ErrorIs(t, err, errs.ErrSchemaViolation)
}

func TestInsertObservationDuplicateWithinWindow(t *testing.T) {
	s := openTestStore(t)
	obs := NewObservation{TS: time.Now(), Kind: KindNote, Summary: "dup", ContentHash: "same-hash"}

	_, err := s.InsertObservation(obs)
	require.NoError(t, err)

	_, err = s.InsertObservation(obs)
	require.ErrorIs(t, err, errs.ErrDuplicate)
}

func TestSearchFTSDeterministicRanking(t *testing.T) {
	s := openTestStore(t)

	base := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)
	_, err := s.InsertObservation(NewObservation{TS: base, Kind: KindNote, Summary: "searched for OpenClaw", ContentHash: "a"})
	require.NoError(t, err)
	_, err = s.InsertObservation(NewObservation{TS: base.Add(time.Minute), Kind: KindNote, Summary: "fetched openclaw.ai", ContentHash: "b"})
	require.NoError(t, err)
	_, err = s.InsertObservation(NewObservation{TS: base.Add(2 * time.Minute), Kind: KindNote, Summary: "ran git status", ContentHash: "c"})
	require.NoError(t, err)

	first, err := s.SearchFTS("OpenClaw", 10, Filter{})
	require.NoError(t, err)
	second, err := s.SearchFTS("OpenClaw", 10, Filter{})
	require.NoError(t, err)
	require.Equal(t, first, second, "repeated search of same corpus must be deterministic")
	require.Len(t, first, 2)
}

func TestSearchFTSEmptyQuery(t *testing.T) {
	s := openTestStore(t)
	hits, err := s.SearchFTS("", 10, Filter{})
	require.NoError(t, err)
	require.Nil(t, hits)
}

func TestUpsertEmbeddingDimensionMismatch(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: "x", ContentHash: "h1"})
	require.NoError(t, err)

	err = s.UpsertEmbedding(id, "test-model", []float32{1, 2, 3}, 8, "", "")
	require.ErrorIs(t, err, errs.ErrDimensionMismatch)
}

func TestUpsertEmbeddingUnknownObservation(t *testing.T) {
	s := openTestStore(t)
	err := s.UpsertEmbedding(99999, "test-model", []float32{1, 2}, 2, "", "")
	require.ErrorIs(t, err, errs.ErrUnknownObservation)
}

func TestSearchVectorOrdersByCosineThenID(t *testing.T) {
	s := openTestStore(t)

	mkObs := func(hash string) int64 {
		id, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: hash, ContentHash: hash})
		require.NoError(t, err)
		return id
	}

	idA := mkObs("vec-a")
	idB := mkObs("vec-b")
	idC := mkObs("vec-c")

	require.NoError(t, s.UpsertEmbedding(idA, "m", []float32{1, 0}, 2, "", ""))
	require.NoError(t, s.UpsertEmbedding(idB, "m", []float32{1, 0}, 2, "", "")) // identical score to A, tie-break by id
	require.NoError(t, s.UpsertEmbedding(idC, "m", []float32{0, 1}, 2, "", ""))

	hits, err := s.SearchVector([]float32{1, 0}, 10, "m", Filter{})
	require.NoError(t, err)
	require.Len(t, hits, 3)
	require.Equal(t, idA, hits[0].ID)
	require.Equal(t, idB, hits[1].ID)
	require.Equal(t, idC, hits[2].ID)
	require.InDelta(t, 1.0, hits[0].Score, 1e-9)
	require.InDelta(t, 0.0, hits[2].Score, 1e-9)
}

func TestTimelineOrdersByTimestampThenID(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 2, 5, 10, 0, 0, 0, time.UTC)

	id1, err := s.InsertObservation(NewObservation{TS: base, Kind: KindNote, Summary: "one", ContentHash: "t1"})
	require.NoError(t, err)
	_, err = s.InsertObservation(NewObservation{TS: base.Add(time.Minute), Kind: KindNote, Summary: "two", ContentHash: "t2"})
	require.NoError(t, err)
	_, err = s.InsertObservation(NewObservation{TS: base.Add(2 * time.Minute), Kind: KindNote, Summary: "three", ContentHash: "t3"})
	require.NoError(t, err)

	tl, err := s.Timeline([]int64{id1}, 2*time.Minute)
	require.NoError(t, err)
	require.Len(t, tl[id1], 3)
	require.Equal(t, "one", tl[id1][0].Summary)
	require.Equal(t, "three", tl[id1][2].Summary)
}

func TestArchiveExcludesFromDefaultFilter(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: "archive me", ContentHash: "arch-1"})
	require.NoError(t, err)

	require.NoError(t, s.Archive(id))
	archived, err := s.IsArchived(id)
	require.NoError(t, err)
	require.True(t, archived)

	hits, err := s.SearchFTS("archive", 10, Filter{})
	require.NoError(t, err)
	require.Empty(t, hits)

	hits, err = s.SearchFTS("archive", 10, Filter{IncludeArchived: true})
	require.NoError(t, err)
	require.Len(t, hits, 1)
}

func TestArchiveUnknownIDIsInvalid(t *testing.T) {
	s := openTestStore(t)
	err := s.Archive(424242)
	require.ErrorIs(t, err, errs.ErrInvalidID)
}

func TestUpdateGovernanceIsAdditiveOnly(t *testing.T) {
	s := openTestStore(t)
	id, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: "gov", ContentHash: "gov-1"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateGovernance(id, Governance{TrustTier: TrustTrusted}, false))
	rows, err := s.GetByIDs([]int64{id})
	require.NoError(t, err)
	require.Equal(t, TrustTrusted, rows[0].TrustTier())

	// Non-destructive: attempting to overwrite without the flag is a no-op.
	require.NoError(t, s.UpdateGovernance(id, Governance{TrustTier: TrustUntrusted}, false))
	rows, err = s.GetByIDs([]int64{id})
	require.NoError(t, err)
	require.Equal(t, TrustTrusted, rows[0].TrustTier(), "governance fields must not be silently overwritten")

	// Explicit overwrite flag is honored.
	require.NoError(t, s.UpdateGovernance(id, Governance{TrustTier: TrustUntrusted}, true))
	rows, err = s.GetByIDs([]int64{id})
	require.NoError(t, err)
	require.Equal(t, TrustUntrusted, rows[0].TrustTier())
}

func TestFilterByImportanceLabel(t *testing.T) {
	s := openTestStore(t)

	mustID, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: "must searchme", ContentHash: "f1"})
	require.NoError(t, err)
	niceID, err := s.InsertObservation(NewObservation{TS: time.Now(), Kind: KindNote, Summary: "nice searchme", ContentHash: "f2"})
	require.NoError(t, err)

	require.NoError(t, s.UpdateGovernance(mustID, Governance{Importance: &Importance{Score: 0.9, Label: LabelMustRemember}}, false))
	require.NoError(t, s.UpdateGovernance(niceID, Governance{Importance: &Importance{Score: 0.6, Label: LabelNiceToHave}}, false))

	hits, err := s.SearchFTS("searchme", 10, Filter{ImportanceLabels: []string{LabelMustRemember}})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, mustID, hits[0].ID)
}

func TestScoreToLabelMapping(t *testing.T) {
	require.Equal(t, LabelMustRemember, ScoreToLabel(0.80))
	require.Equal(t, LabelMustRemember, ScoreToLabel(0.95))
	require.Equal(t, LabelNiceToHave, ScoreToLabel(0.50))
	require.Equal(t, LabelNiceToHave, ScoreToLabel(0.79))
	require.Equal(t, LabelIgnore, ScoreToLabel(0.49))
	require.Equal(t, LabelIgnore, ScoreToLabel(0))
}

func TestEncodeDecodeVectorRoundTrip(t *testing.T) {
	v := []float32{0.1, -0.2, 3.5, 0}
	got := DecodeVector(EncodeVector(v))
	require.Equal(t, v, got)
}
