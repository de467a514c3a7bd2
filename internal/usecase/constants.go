package usecase

import "time"

const (
	// DefaultTransactionTimeout is the maximum duration for a database transaction
	DefaultTransactionTimeout = 10 * time.Second

	// DefaultSessionCacheTTL bounds how stale a cached backend snapshot may be
	DefaultSessionCacheTTL = 30 * time.Second

	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// IdempotencyProcessing marks a key whose request has not finished yet
	IdempotencyProcessing = "processing"
)
