package ingest

import (
	"testing"

	"github.com/openclaw/openclaw-mem/internal/store"
	"github.com/stretchr/testify/require"
)

func TestStoreExplicitUsesSuppliedImportance(t *testing.T) {
	s := openTestStore(t)
	id, label, err := StoreExplicit(s, "remember to renew the domain", StoreOptions{Importance: 0.9})
	require.NoError(t, err)
	require.NotZero(t, id)
	require.Equal(t, store.LabelMustRemember, label)
}

func TestStoreExplicitGradesByHeuristicWhenImportanceOmitted(t *testing.T) {
	s := openTestStore(t)
	_, label, err := StoreExplicit(s, "just some plain observation", StoreOptions{})
	require.NoError(t, err)
	require.NotEmpty(t, label)
}

func TestStoreExplicitRedactsSecrets(t *testing.T) {
	s := openTestStore(t)
	id, _, err := StoreExplicit(s, "my key is sk-proj-abcdefghijklmnopqrstuvwxyz", StoreOptions{})
	require.NoError(t, err)

	rows, err := s.GetByIDs([]int64{id})
	require.NoError(t, err)
	require.NotContains(t, rows[0].Summary, "sk-proj-abcdefghijklmnopqrstuvwxyz")
}

func TestStoreExplicitCarriesScopeAndLangAndCategory(t *testing.T) {
	s := openTestStore(t)
	id, _, err := StoreExplicit(s, "prefer dark mode", StoreOptions{Scope: "project-x", Lang: "en", Category: "preference"})
	require.NoError(t, err)

	rows, err := s.GetByIDs([]int64{id})
	require.NoError(t, err)
	gov, err := rows[0].Governance()
	require.NoError(t, err)
	require.Equal(t, "project-x", gov.Scope)
	require.Equal(t, "en", gov.Lang)
	require.Contains(t, string(rows[0].Detail), `"category":"preference"`)
}
