package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/openclaw-mem/internal/embed"
	"github.com/openclaw/openclaw-mem/internal/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	dir := t.TempDir()
	s, err := store.Open(filepath.Join(dir, "ledger.db"), 5*time.Second, 24*time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestIngestInsertsAndPreservesOrder(t *testing.T) {
	s := openTestStore(t)
	input := strings.Join([]string{
		`{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"first note"}`,
		`{"ts":"2026-02-05T10:01:00Z","kind":"error","summary":"build failed critical"}`,
		`{"ts":"2026-02-05T10:02:00Z","kind":"tool","tool_name":"ls","summary":"listed files"}`,
	}, "\n")

	receipt, err := Ingest(s, strings.NewReader(input), Options{})
	require.NoError(t, err)
	require.Equal(t, 3, receipt.TotalSeen)
	require.Equal(t, 3, receipt.Inserted)
	require.Len(t, receipt.IDs, 3)

	rows, err := s.GetByIDs(receipt.IDs)
	require.NoError(t, err)
	require.Equal(t, "first note", rows[0].Summary)
	require.Equal(t, "listed files", rows[2].Summary)
}

func TestIngestSkipsDuplicatesWithinWindow(t *testing.T) {
	s := openTestStore(t)
	line := `{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"same thing"}`

	first, err := Ingest(s, strings.NewReader(line), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, first.Inserted)

	second, err := Ingest(s, strings.NewReader(line), Options{})
	require.NoError(t, err)
	require.Equal(t, 0, second.Inserted)
	require.Equal(t, 1, second.SkippedExisting)
}

func TestIngestRecordsParseErrorsWithoutAborting(t *testing.T) {
	s := openTestStore(t)
	input := strings.Join([]string{
		`{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"ok"}`,
		`not json`,
	}, "\n")

	receipt, err := Ingest(s, strings.NewReader(input), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.Inserted)
	require.Equal(t, 1, receipt.ParseErrors)
}

func TestIngestGradesImportanceByDefault(t *testing.T) {
	s := openTestStore(t)
	line := `{"ts":"2026-02-05T10:00:00Z","kind":"error","summary":"critical failure"}`

	receipt, err := Ingest(s, strings.NewReader(line), Options{})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.LabelCounts[store.LabelMustRemember])

	rows, err := s.GetByIDs(receipt.IDs)
	require.NoError(t, err)
	require.Equal(t, store.LabelMustRemember, rows[0].ImportanceLabel())
}

func TestIngestWithScorerOffLeavesImportanceUnknown(t *testing.T) {
	s := openTestStore(t)
	line := `{"ts":"2026-02-05T10:00:00Z","kind":"error","summary":"critical failure"}`

	receipt, err := Ingest(s, strings.NewReader(line), Options{ImportanceScorer: "off"})
	require.NoError(t, err)

	rows, err := s.GetByIDs(receipt.IDs)
	require.NoError(t, err)
	require.Equal(t, store.LabelUnknown, rows[0].ImportanceLabel())
	require.Equal(t, 0, receipt.LabelCounts[store.LabelMustRemember])
}

func TestIngestRedactsSecretsBeforeStorage(t *testing.T) {
	s := openTestStore(t)
	line := `{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"key is sk-proj-abcdefghijklmnopqrstuvwxyz"}`

	receipt, err := Ingest(s, strings.NewReader(line), Options{})
	require.NoError(t, err)

	rows, err := s.GetByIDs(receipt.IDs)
	require.NoError(t, err)
	require.NotContains(t, rows[0].Summary, "sk-proj-abcdefghijklmnopqrstuvwxyz")
}

func TestHarvestEmbedsInsertedRows(t *testing.T) {
	s := openTestStore(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	}))
	defer server.Close()

	client := embed.New(embed.Config{
		BaseURL:   server.URL,
		Model:     "test-model",
		Dimension: 3,
		Timeout:   2 * time.Second,
		MaxChars:  1000,
	})

	input := strings.Join([]string{
		`{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"alpha"}`,
		`{"ts":"2026-02-05T10:01:00Z","kind":"note","summary":"beta"}`,
	}, "\n")

	receipt, err := Harvest(context.Background(), s, client, "test-model", strings.NewReader(input), Options{Embed: true, EmbedBatchSize: 1})
	require.NoError(t, err)
	require.Equal(t, 2, receipt.Inserted)
	require.Equal(t, 2, receipt.Embedded)
	require.Equal(t, 0, receipt.EmbeddingErrors)

	dim, err := s.EmbeddingDim(receipt.IDs[0], "test-model")
	require.NoError(t, err)
	require.Equal(t, 3, dim)
}

func TestHarvestRecordsEmbeddingFailuresWithoutAbortingRun(t *testing.T) {
	s := openTestStore(t)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := embed.New(embed.Config{
		BaseURL:  server.URL,
		Model:    "test-model",
		Timeout:  2 * time.Second,
		MaxChars: 1000,
	})

	line := `{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"alpha"}`
	receipt, err := Harvest(context.Background(), s, client, "test-model", strings.NewReader(line), Options{Embed: true})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.Inserted)
	require.Equal(t, 0, receipt.Embedded)
	require.Equal(t, 1, receipt.EmbeddingErrors)
}

func TestIngestWithoutEmbedDoesNotCallProvider(t *testing.T) {
	s := openTestStore(t)
	called := false
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		w.Write([]byte(`{"data":[{"embedding":[0.1]}]}`))
	}))
	defer server.Close()

	client := embed.New(embed.Config{BaseURL: server.URL, Model: "m", Timeout: time.Second, MaxChars: 1000})
	line := `{"ts":"2026-02-05T10:00:00Z","kind":"note","summary":"alpha"}`

	receipt, err := Harvest(context.Background(), s, client, "m", strings.NewReader(line), Options{Embed: false})
	require.NoError(t, err)
	require.Equal(t, 1, receipt.Inserted)
	require.False(t, called)
}
