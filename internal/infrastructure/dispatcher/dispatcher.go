package dispatcher

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

// Metrics observes closing delivery.
type Metrics interface {
	ClosingDelivered()
	ClosingDeliveryFailed()
	ClosingDeadLettered()
	PendingClosings(n int)
}

type nopMetrics struct{}

func (nopMetrics) ClosingDelivered()      {}
func (nopMetrics) ClosingDeliveryFailed() {}
func (nopMetrics) ClosingDeadLettered()   {}
func (nopMetrics) PendingClosings(int)    {}

// Dispatcher delivers queued closings from the outbox to the backend.
type Dispatcher struct {
	outboxRepo  usecase.OutboxRepository
	submitter   usecase.ClosingSubmitter
	metrics     Metrics
	logger      zerolog.Logger
	batchSize   int
	interval    time.Duration
	retention   time.Duration
	maxAttempts int
	retryDelay  time.Duration
	maxDelay    time.Duration
	now         func() time.Time
}

// Config for Dispatcher.
type Config struct {
	OutboxRepo usecase.OutboxRepository
	Submitter  usecase.ClosingSubmitter
	Metrics    Metrics
	Logger     zerolog.Logger
	BatchSize  int           // Number of closings to fetch per batch
	Interval   time.Duration // Polling interval
	Retention  time.Duration // How long delivered closings are kept; 0 keeps them forever

	MaxAttempts   int           // Rejections before a closing is marked failed
	RetryDelay    time.Duration // Delay after the first rejection, doubled per attempt
	MaxRetryDelay time.Duration
}

// New creates a new Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 50
	}
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.RetryDelay == 0 {
		cfg.RetryDelay = 30 * time.Second
	}
	if cfg.MaxRetryDelay == 0 {
		cfg.MaxRetryDelay = time.Hour
	}

	return &Dispatcher{
		outboxRepo:  cfg.OutboxRepo,
		submitter:   cfg.Submitter,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.With().Str("component", "dispatcher").Logger(),
		batchSize:   cfg.BatchSize,
		interval:    cfg.Interval,
		retention:   cfg.Retention,
		maxAttempts: cfg.MaxAttempts,
		retryDelay:  cfg.RetryDelay,
		maxDelay:    cfg.MaxRetryDelay,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the delivery worker.
// It runs continuously until the context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) error {
	d.logger.Info().
		Int("batch_size", d.batchSize).
		Dur("interval", d.interval).
		Msg("closing dispatcher started")

	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	// Process immediately on start
	if _, err := d.Dispatch(ctx); err != nil {
		d.logger.Error().Err(err).Msg("error dispatching closings on start")
	}

	for {
		select {
		case <-ctx.Done():
			d.logger.Info().Msg("closing dispatcher shutting down")
			return ctx.Err()
		case <-ticker.C:
			if _, err := d.Dispatch(ctx); err != nil {
				d.logger.Error().Err(err).Msg("error dispatching closings")
			}
			d.purge(ctx)
		}
	}
}

// Dispatch delivers one batch of due closings and returns how many were
// delivered. A backend outage stops the batch; the rest wait for the next tick.
// A closing the backend rejects is retried with a growing delay and marked
// failed after maxAttempts rejections, so it never holds back newer closings.
func (d *Dispatcher) Dispatch(ctx context.Context) (int, error) {
	events, err := d.outboxRepo.GetUnpublished(ctx, d.batchSize)
	if err != nil {
		return 0, err
	}

	d.metrics.PendingClosings(len(events))
	if len(events) == 0 {
		return 0, nil
	}

	d.logger.Debug().Int("count", len(events)).Msg("dispatching closings")

	delivered := 0
	for _, event := range events {
		err := d.deliver(ctx, event)
		if err != nil && (errors.Is(err, domain.ErrBackendUnavailable) || ctx.Err() != nil) {
			d.metrics.ClosingDeliveryFailed()
			d.logger.Warn().
				Err(err).
				Str("event_id", event.ID).
				Msg("backend unavailable, postponing remaining closings")
			break
		}
		if err != nil {
			d.metrics.ClosingDeliveryFailed()
			d.reject(ctx, event, err)
			continue
		}

		if err := d.outboxRepo.MarkPublished(ctx, event.ID, d.now()); err != nil {
			d.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark closing as delivered")
			continue
		}

		d.metrics.ClosingDelivered()
		delivered++
	}

	return delivered, nil
}

func (d *Dispatcher) deliver(ctx context.Context, event *domain.OutboxEvent) error {
	closing, err := event.SessionClosing()
	if err != nil {
		return err
	}

	err = d.submitter.SubmitClosing(ctx, closing)
	if errors.Is(err, domain.ErrSessionAlreadyClosed) {
		// An earlier attempt reached the backend but its response was lost.
		d.logger.Warn().
			Str("closing_id", closing.ID).
			Str("session_id", closing.SessionID).
			Msg("backend reports session already closed, treating closing as delivered")
		return nil
	}
	if err != nil {
		return err
	}

	d.logger.Info().
		Str("closing_id", closing.ID).
		Str("session_id", closing.SessionID).
		Str("severity", string(closing.Severity)).
		Msg("closing delivered")

	return nil
}

// reject records a delivery the backend refused. Undecodable closings and
// closings out of attempts are marked failed; the rest are rescheduled.
func (d *Dispatcher) reject(ctx context.Context, event *domain.OutboxEvent, cause error) {
	attempts := event.Attempts + 1
	now := d.now()

	if errors.Is(cause, domain.ErrInvalidClosing) || attempts >= d.maxAttempts {
		if err := d.outboxRepo.MarkFailed(ctx, event.ID, attempts, cause.Error(), now); err != nil {
			d.logger.Error().
				Err(err).
				Str("event_id", event.ID).
				Msg("failed to mark closing as failed")
			return
		}

		d.metrics.ClosingDeadLettered()
		d.logger.Error().
			Err(cause).
			Str("event_id", event.ID).
			Str("session_id", event.AggregateID).
			Int("attempts", attempts).
			Msg("closing marked as failed, no further delivery attempts")
		return
	}

	next := now.Add(d.retryDelayFor(attempts))
	if err := d.outboxRepo.ScheduleRetry(ctx, event.ID, attempts, cause.Error(), next); err != nil {
		d.logger.Error().
			Err(err).
			Str("event_id", event.ID).
			Msg("failed to reschedule closing")
		return
	}

	d.logger.Warn().
		Err(cause).
		Str("event_id", event.ID).
		Str("session_id", event.AggregateID).
		Int("attempts", attempts).
		Time("next_attempt_at", next).
		Msg("backend rejected closing, retry scheduled")
}

func (d *Dispatcher) retryDelayFor(attempts int) time.Duration {
	delay := d.retryDelay
	for i := 1; i < attempts; i++ {
		delay *= 2
		if delay >= d.maxDelay {
			return d.maxDelay
		}
	}
	return min(delay, d.maxDelay)
}

func (d *Dispatcher) purge(ctx context.Context) {
	if d.retention <= 0 {
		return
	}

	if err := d.outboxRepo.DeletePublished(ctx, d.now().Add(-d.retention)); err != nil {
		d.logger.Error().Err(err).Msg("failed to purge delivered closings")
	}
}
