package retrieval

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/store"
	"github.com/stretchr/testify/require"
)

func TestResolveScopeExplicitWins(t *testing.T) {
	scope, mode := ResolveScope("[SCOPE: other] find it", "explicit-scope")
	require.Equal(t, "explicit-scope", scope)
	require.Equal(t, ModeExplicit, mode)
}

func TestResolveScopeInfersISOTag(t *testing.T) {
	scope, mode := ResolveScope("what happened [ISO: 2026-02-05]", "")
	require.Equal(t, "2026-02-05", scope)
	require.Equal(t, ModeInferred, mode)
}

func TestResolveScopeInfersScopeTagWhenNoISO(t *testing.T) {
	scope, mode := ResolveScope("context [SCOPE: project-x]", "")
	require.Equal(t, "project-x", scope)
	require.Equal(t, ModeInferred, mode)
}

func TestResolveScopeDefaultsToGlobal(t *testing.T) {
	scope, mode := ResolveScope("plain query", "")
	require.Equal(t, "global", scope)
	require.Equal(t, ModeGlobal, mode)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "ledger.db"), 5*time.Second, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func insertGraded(t *testing.T, s *store.Store, summary, label string) int64 {
	t.Helper()
	id, err := s.InsertObservation(store.NewObservation{
		TS:          time.Now(),
		Kind:        store.KindNote,
		Summary:     summary,
		ContentHash: summary + "-" + label,
	})
	require.NoError(t, err)
	require.NoError(t, s.UpdateGovernance(id, store.Governance{
		Importance: &store.Importance{Score: 0.9, Label: label},
	}, false))
	return id
}

func TestRunPrefersMustOverNiceTier(t *testing.T) {
	s := openTestStore(t)
	mustID := insertGraded(t, s, "critical outage details", store.LabelMustRemember)
	niceID := insertGraded(t, s, "critical minor note", store.LabelNiceToHave)

	result, err := Run(context.Background(), s, nil, "critical", Options{Limit: 1})
	require.NoError(t, err)
	require.Len(t, result.IDs, 1)
	require.Equal(t, mustID, result.IDs[0])
	require.NotEqual(t, niceID, result.IDs[0])
}

func TestRunFailsOpenWithoutEmbedClient(t *testing.T) {
	s := openTestStore(t)
	insertGraded(t, s, "some searchable text", store.LabelMustRemember)

	result, err := Run(context.Background(), s, nil, "searchable", Options{Limit: 5})
	require.NoError(t, err)
	require.True(t, result.Receipt.EmbedFailed)
	require.Equal(t, "no_embedding_client", result.Receipt.EmbedReason)
}

func TestRunUsesVectorChannelWhenEmbedSucceeds(t *testing.T) {
	s := openTestStore(t)
	// The summary shares no token with the query below, so this row can
	// only surface through the vector channel: if Options.Model fails to
	// reach SearchVector (e.g. an empty model string against a store
	// that filters embeddings by model), this assertion catches it where
	// an overlapping-text query would not.
	id := insertGraded(t, s, "quarterly credential rotation runbook", store.LabelMustRemember)
	require.NoError(t, s.UpsertEmbedding(id, "test-model", []float32{0.1, 0.2, 0.3}, 3, "", ""))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := embed.New(embed.Config{BaseURL: server.URL, Model: "test-model", Timeout: 2 * time.Second, MaxChars: 1000})

	result, err := Run(context.Background(), s, client, "unrelated vector probe query", Options{Limit: 5, Model: "test-model"})
	require.NoError(t, err)
	require.False(t, result.Receipt.EmbedFailed)
	require.Contains(t, result.IDs, id)
}

func TestRunStopsAtBudgetCapAndRecordsRejection(t *testing.T) {
	s := openTestStore(t)
	insertGraded(t, s, "alpha beta gamma", store.LabelMustRemember)
	insertGraded(t, s, "alpha beta delta", store.LabelMustRemember)
	insertGraded(t, s, "alpha nice epsilon", store.LabelNiceToHave)

	result, err := Run(context.Background(), s, nil, "alpha", Options{Limit: 2})
	require.NoError(t, err)
	require.Len(t, result.IDs, 2)

	var niceTier, ignoreTier *TierReceipt
	for i := range result.Receipt.Tiers {
		if result.Receipt.Tiers[i].Tier == "nice" {
			niceTier = &result.Receipt.Tiers[i]
		}
		if result.Receipt.Tiers[i].Tier == "ignore" {
			ignoreTier = &result.Receipt.Tiers[i]
		}
	}
	require.NotNil(t, niceTier)
	require.Contains(t, niceTier.Rejections, "budget_cap")
	require.NotNil(t, ignoreTier)
	require.Contains(t, ignoreTier.Rejections, "budget_cap")
}

func TestFuseOrdersByScoreThenID(t *testing.T) {
	fts := []store.ScoredID{{ID: 5, Score: 1}, {ID: 3, Score: 0.9}}
	vec := []store.ScoredID{{ID: 3, Score: 0.8}, {ID: 5, Score: 0.1}}

	fused := fuse(fts, vec)
	require.Equal(t, []int64{3, 5}, fused)
}
