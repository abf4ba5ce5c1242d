// Package errs defines the sentinel error taxonomy shared across the
// ledger, ingest, embedding, and policy layers. Components wrap one of
// these with fmt.Errorf("...: %w", ...) so callers can classify a
// failure with errors.Is without parsing message text.
package errs

import "errors"

var (
	// ErrSchemaViolation means an input record is missing a required
	// field or has a value of the wrong shape. Fail-open per record.
	ErrSchemaViolation = errors.New("schema violation")

	// ErrDuplicate means a record's content-hash is already present
	// within the idempotency window.
	ErrDuplicate = errors.New("duplicate content hash")

	// ErrStorageUnavailable means a transient IO error against the
	// ledger. Retryable with bounded backoff.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrContended means the writer lock's busy-timeout budget was
	// exhausted. Retryable.
	ErrContended = errors.New("writer contended")

	// ErrEmbeddingInputTooLong means the embedding provider rejected
	// the request on input length grounds.
	ErrEmbeddingInputTooLong = errors.New("embedding input too long")

	// ErrProviderUnavailable means any other embedding provider
	// failure (network, non-2xx, timeout).
	ErrProviderUnavailable = errors.New("embedding provider unavailable")

	// ErrPolicyRejected means the policy engine blocked an operation
	// (trivial prompt, secret-like capture, duplicate candidate). Not
	// surfaced to callers as a hard error; recorded as a rejection
	// reason in a receipt.
	ErrPolicyRejected = errors.New("policy rejected")

	// ErrInvalidID means an id fails the expected shape or references
	// an unknown row.
	ErrInvalidID = errors.New("invalid id")

	// ErrUnknownObservation means upsert_embedding referenced an
	// observation id that does not exist.
	ErrUnknownObservation = errors.New("unknown observation")

	// ErrDimensionMismatch means a vector's length does not match the
	// declared dimension for its model.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrConsentRequired means a durable export was attempted without
	// the required confirmation token.
	ErrConsentRequired = errors.New("consent required")
)
