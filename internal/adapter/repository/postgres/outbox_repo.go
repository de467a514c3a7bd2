package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

const pgErrUniqueViolation = "23505"

const outboxInsertColumns = `id, aggregate_id, aggregate_type, event_type, payload, created_at, published, published_at`

const outboxColumns = outboxInsertColumns + `, attempts, last_error, next_attempt_at, failed, failed_at`

const (
	insertOutboxEventSQL = `INSERT INTO closing_outbox (` + outboxInsertColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	selectUnpublishedSQL = `SELECT ` + outboxColumns + ` FROM closing_outbox
WHERE published = FALSE AND failed = FALSE AND next_attempt_at <= NOW()
ORDER BY next_attempt_at, created_at
LIMIT $1`

	markPublishedSQL = `UPDATE closing_outbox SET published = TRUE, published_at = $2 WHERE id = $1`

	scheduleRetrySQL = `UPDATE closing_outbox SET attempts = $2, last_error = $3, next_attempt_at = $4
WHERE id = $1 AND published = FALSE`

	markFailedSQL = `UPDATE closing_outbox SET failed = TRUE, attempts = $2, last_error = $3, failed_at = $4
WHERE id = $1 AND published = FALSE`

	selectByAggregateSQL = `SELECT ` + outboxColumns + ` FROM closing_outbox
WHERE aggregate_type = $1 AND aggregate_id = $2
ORDER BY created_at DESC
LIMIT $3 OFFSET $4`

	deletePublishedSQL = `DELETE FROM closing_outbox WHERE published = TRUE AND published_at < $1`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// OutboxRepository implements usecase.OutboxRepository on the closing_outbox table.
type OutboxRepository struct {
	db querier
}

// NewOutboxRepository creates a new OutboxRepository.
func NewOutboxRepository(pool *pgxpool.Pool) *OutboxRepository {
	return newOutboxRepository(pool)
}

func newOutboxRepository(db querier) *OutboxRepository {
	return &OutboxRepository{db: db}
}

// Create creates a new outbox event within a transaction. A second closing event
// for the same session violates the unique index and maps to
// domain.ErrSessionAlreadyClosed.
func (r *OutboxRepository) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	pgxTx, ok := tx.(*Tx)
	if !ok {
		return fmt.Errorf("unsupported transaction type %T", tx)
	}

	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	_, err = pgxTx.PgxTx().Exec(ctx, insertOutboxEventSQL,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		payload,
		event.CreatedAt,
		event.Published,
		event.PublishedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgErrUniqueViolation {
			return domain.ErrSessionAlreadyClosed
		}
		return err
	}

	return nil
}

// GetUnpublished retrieves undelivered events whose next attempt is due,
// earliest due first. Failed events are never returned.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, selectUnpublishedSQL, limit)
	if err != nil {
		return nil, err
	}

	return collectOutboxEvents(rows)
}

// MarkPublished marks an event as published.
func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	return r.execOne(ctx, markPublishedSQL, id, publishedAt)
}

// ScheduleRetry records a rejected delivery and defers the event until nextAttemptAt.
func (r *OutboxRepository) ScheduleRetry(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	return r.execOne(ctx, scheduleRetrySQL, id, attempts, lastError, nextAttemptAt)
}

// MarkFailed dead-letters an event; it is kept for inspection but no longer delivered.
func (r *OutboxRepository) MarkFailed(ctx context.Context, id string, attempts int, lastError string, failedAt time.Time) error {
	return r.execOne(ctx, markFailedSQL, id, attempts, lastError, failedAt)
}

func (r *OutboxRepository) execOne(ctx context.Context, sql string, args ...any) error {
	tag, err := r.db.Exec(ctx, sql, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrClosingNotFound
	}
	return nil
}

// GetByAggregate retrieves events for a specific aggregate, newest first.
func (r *OutboxRepository) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	rows, err := r.db.Query(ctx, selectByAggregateSQL, aggregateType, aggregateID, limit, offset)
	if err != nil {
		return nil, err
	}

	return collectOutboxEvents(rows)
}

// DeletePublished deletes published events older than the given time.
func (r *OutboxRepository) DeletePublished(ctx context.Context, before time.Time) error {
	_, err := r.db.Exec(ctx, deletePublishedSQL, before)
	return err
}

func collectOutboxEvents(rows pgx.Rows) ([]*domain.OutboxEvent, error) {
	defer rows.Close()

	var events []*domain.OutboxEvent
	for rows.Next() {
		var (
			event     domain.OutboxEvent
			payload   []byte
			lastError *string
		)

		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&payload,
			&event.CreatedAt,
			&event.Published,
			&event.PublishedAt,
			&event.Attempts,
			&lastError,
			&event.NextAttemptAt,
			&event.Failed,
			&event.FailedAt,
		); err != nil {
			return nil, err
		}

		if lastError != nil {
			event.LastError = *lastError
		}

		// An undecodable payload leaves Payload nil so the one row can be
		// dead-lettered without blocking the rest of the batch.
		if len(payload) > 0 {
			if err := json.Unmarshal(payload, &event.Payload); err != nil {
				event.Payload = nil
			}
		}

		events = append(events, &event)
	}

	return events, rows.Err()
}
