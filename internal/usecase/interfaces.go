package usecase

import (
	"context"
	"time"

	"github.com/iho/pdv/internal/domain"
)

// SessionSource loads authoritative session totals from the backend.
type SessionSource interface {
	GetSession(ctx context.Context, id string) (*domain.SessionSnapshot, error)
}

// ClosingSubmitter delivers a closing to the backend.
type ClosingSubmitter interface {
	SubmitClosing(ctx context.Context, closing *domain.SessionClosing) error
}

// SessionCache holds short-lived copies of backend snapshots.
type SessionCache interface {
	// Get returns (nil, nil) on a cache miss.
	Get(ctx context.Context, id string) (*domain.SessionSnapshot, error)
	// Set stores the snapshot under the ID it was requested by.
	Set(ctx context.Context, id string, snapshot *domain.SessionSnapshot, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

// OutboxRepository defines data access for queued closings.
type OutboxRepository interface {
	Create(ctx context.Context, tx Transaction, event *domain.OutboxEvent) error
	// GetUnpublished returns undelivered closings that are due, skipping failed ones.
	GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error)
	MarkPublished(ctx context.Context, id string, publishedAt time.Time) error
	// ScheduleRetry records a rejected attempt and defers the next one.
	ScheduleRetry(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error
	// MarkFailed stops delivery of a closing for good.
	MarkFailed(ctx context.Context, id string, attempts int, lastError string, failedAt time.Time) error
	GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error)
	DeletePublished(ctx context.Context, before time.Time) error
}

// Transaction represents a database transaction.
type Transaction interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// TransactionManager handles transaction lifecycle.
type TransactionManager interface {
	Begin(ctx context.Context) (Transaction, error)
}

// Retrier re-runs an operation on transient failures.
type Retrier interface {
	Retry(ctx context.Context, operation func() error) error
}

// IDGenerator generates unique IDs.
type IDGenerator interface {
	Generate() string
}

// IdempotencyStore handles idempotency key storage.
type IdempotencyStore interface {
	// CheckAndSet atomically checks if key exists, sets if not.
	// Returns (exists, existingValue, error).
	CheckAndSet(ctx context.Context, key string, response []byte, ttl time.Duration) (bool, []byte, error)
	// Update updates an existing key with the final response.
	Update(ctx context.Context, key string, response []byte, ttl time.Duration) error
	// Delete releases a key so the request can be retried.
	Delete(ctx context.Context, key string) error
}

// MetricsRecorder receives calculator and closing events for instrumentation.
type MetricsRecorder interface {
	PricingRecomputed(field domain.PricingField)
	Reconciled(result domain.ReconciliationResult)
	ClosingQueued(severity domain.Severity)
	SessionCacheLookup(hit bool)
}

// NopMetrics discards every measurement.
type NopMetrics struct{}

func (NopMetrics) PricingRecomputed(domain.PricingField)  {}
func (NopMetrics) Reconciled(domain.ReconciliationResult) {}
func (NopMetrics) ClosingQueued(domain.Severity)          {}
func (NopMetrics) SessionCacheLookup(bool)                {}
