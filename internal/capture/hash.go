package capture

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
)

// ContentHash derives a deterministic idempotency key from
// (kind, tool_name, normalized-summary, rounded-timestamp), rounded to
// the minute. This is a non-adversarial, local-only dedupe key, not a
// content-integrity hash, so a fast non-cryptographic hash is
// sufficient.
func ContentHash(kind, toolName, summary string, ts time.Time) string {
	rounded := ts.UTC().Truncate(time.Minute).Format(time.RFC3339)
	norm := normalizeSummary(summary)
	key := strings.Join([]string{kind, toolName, norm, rounded}, "\x1f")
	return fmt.Sprintf("%016x", xxhash.Sum64String(key))
}

// normalizeSummary collapses whitespace and lowercases, so
// near-identical capture events (differing only in spacing/case) share
// a content-hash.
func normalizeSummary(s string) string {
	fields := strings.Fields(s)
	return strings.ToLower(strings.Join(fields, " "))
}
