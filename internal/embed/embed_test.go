package embed

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/openclaw/openclaw-mem/internal/errs"
	"github.com/stretchr/testify/require"
)

func TestClampPassthroughWithinBudget(t *testing.T) {
	result := Clamp("short text", 100, 20, 0)
	require.False(t, result.Clipped)
	require.Equal(t, "short text", result.Text)
}

func TestClampHeadTailMarker(t *testing.T) {
	head := strings.Repeat("A", 100)
	tail := strings.Repeat("TAIL", 30)
	result := Clamp(head+tail, 40, 8, 0)

	require.Len(t, []rune(result.Text), 40)
	require.True(t, strings.HasPrefix(result.Text, "AAAAAAAA"))
	require.Contains(t, result.Text, "\n...\n")
	full := head + tail
	require.True(t, strings.HasSuffix(result.Text, string([]rune(full)[len([]rune(full))-27:])))
	require.True(t, result.Clipped)
}

func TestClampByteBudgetUTF8Safe(t *testing.T) {
	text := strings.Repeat("é", 50)
	result := Clamp(text, 1000, 0, 30)
	require.LessOrEqual(t, result.ClampedBytes, 30)
	require.True(t, result.Clipped)
	for _, r := range result.Text {
		require.NotEqual(t, rune(0xFFFD), r)
	}
}

func TestClampIsIdempotent(t *testing.T) {
	text := strings.Repeat("x", 500)
	once := Clamp(text, 40, 8, 0)
	twice := Clamp(once.Text, 40, 8, 0)
	require.Equal(t, once.Text, twice.Text)
	require.False(t, twice.Clipped)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	server := httptest.NewServer(handler)
	client := New(Config{
		BaseURL:   server.URL,
		Model:     "test-model",
		Dimension: 3,
		Timeout:   5 * time.Second,
		MaxChars:  1000,
		HeadChars: 0,
	})
	return client, server.Close
}

func TestEmbedSuccess(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":[{"embedding":[0.1,0.2,0.3]}]}`))
	})
	defer closeFn()

	vec, clamp, err := client.Embed(context.Background(), "hello world")
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	require.False(t, clamp.Clipped)
}

func TestEmbedClassifiesTooLong(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":{"message":"This model's maximum context length is 8192 tokens"}}`))
	})
	defer closeFn()

	_, _, err := client.Embed(context.Background(), "too long text")
	require.True(t, errors.Is(err, errs.ErrEmbeddingInputTooLong))
}

func TestEmbedClassifiesProviderUnavailableOnOtherErrors(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`internal error`))
	})
	defer closeFn()

	_, _, err := client.Embed(context.Background(), "some text")
	require.True(t, errors.Is(err, errs.ErrProviderUnavailable))
}

func TestEmbedClassifiesBadRequestWithoutTooLongPhraseAsUnavailable(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error":"malformed request"}`))
	})
	defer closeFn()

	_, _, err := client.Embed(context.Background(), "some text")
	require.True(t, errors.Is(err, errs.ErrProviderUnavailable))
	require.False(t, errors.Is(err, errs.ErrEmbeddingInputTooLong))
}

func TestEmbedContextCancellationIsProviderUnavailable(t *testing.T) {
	client, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"data":[{"embedding":[0.1]}]}`))
	})
	defer closeFn()

	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Millisecond)
	defer cancel()

	_, _, err := client.Embed(ctx, "hello")
	require.True(t, errors.Is(err, errs.ErrProviderUnavailable))
}
