package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
)

// CashSessionUseCase handles register session reconciliation and closing.
type CashSessionUseCase struct {
	sessions   SessionSource
	cache      SessionCache
	txManager  TransactionManager
	outboxRepo OutboxRepository
	retrier    Retrier
	idGen      IDGenerator
	metrics    MetricsRecorder
	logger     zerolog.Logger
	cacheTTL   time.Duration
}

// NewCashSessionUseCase creates a new CashSessionUseCase. cache may be nil.
func NewCashSessionUseCase(
	sessions SessionSource,
	cache SessionCache,
	txManager TransactionManager,
	outboxRepo OutboxRepository,
	retrier Retrier,
	idGen IDGenerator,
	metrics MetricsRecorder,
	logger zerolog.Logger,
	cacheTTL time.Duration,
) *CashSessionUseCase {
	if metrics == nil {
		metrics = NopMetrics{}
	}
	if cacheTTL <= 0 {
		cacheTTL = DefaultSessionCacheTTL
	}

	return &CashSessionUseCase{
		sessions:   sessions,
		cache:      cache,
		txManager:  txManager,
		outboxRepo: outboxRepo,
		retrier:    retrier,
		idGen:      idGen,
		metrics:    metrics,
		logger:     logger.With().Str("component", "cash_session").Logger(),
		cacheTTL:   cacheTTL,
	}
}

// ReconcileInput carries raw localized totals as typed by the operator.
type ReconcileInput struct {
	OpeningFloat   string
	CashSales      string
	Supplements    string
	Withdrawals    string
	CountedClosing string
}

// CloseSessionInput represents input for closing a register session.
type CloseSessionInput struct {
	SessionID      string
	CountedClosing string
	Notes          string
}

// SessionPreview is a reconciliation computed against the backend's totals.
type SessionPreview struct {
	Session *domain.SessionSnapshot
	Result  domain.ReconciliationResult
}

// Reconcile runs the calculator over totals that did not come from the backend.
func (uc *CashSessionUseCase) Reconcile(ctx context.Context, input ReconcileInput) (domain.ReconciliationResult, error) {
	counted, err := domain.ValidateCountedClosing(input.CountedClosing)
	if err != nil {
		return domain.ReconciliationResult{}, err
	}

	result := domain.Reconcile(domain.CashSession{
		OpeningFloat:   domain.ParseLocalizedAmount(input.OpeningFloat),
		CashSales:      domain.ParseLocalizedAmount(input.CashSales),
		Supplements:    domain.ParseLocalizedAmount(input.Supplements),
		Withdrawals:    domain.ParseLocalizedAmount(input.Withdrawals),
		CountedClosing: decimal.NewNullDecimal(counted),
	})
	uc.metrics.Reconciled(result)

	return result, nil
}

// GetSession returns the backend snapshot, served from cache when fresh.
func (uc *CashSessionUseCase) GetSession(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	if err := domain.ValidateSessionID(id); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		cached, err := uc.cache.Get(ctx, id)
		if err != nil {
			uc.logger.Warn().Err(err).Str("session_id", id).Msg("session cache read failed")
		}
		uc.metrics.SessionCacheLookup(cached != nil)
		if cached != nil {
			return cached, nil
		}
	}

	snapshot, err := uc.sessions.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Set(ctx, id, snapshot, uc.cacheTTL); err != nil {
			uc.logger.Warn().Err(err).Str("session_id", id).Msg("session cache write failed")
		}
	}

	return snapshot, nil
}

// PreviewClose reconciles the counted amount against an open session without
// queuing anything.
func (uc *CashSessionUseCase) PreviewClose(ctx context.Context, id, countedRaw string) (*SessionPreview, error) {
	counted, err := domain.ValidateCountedClosing(countedRaw)
	if err != nil {
		return nil, err
	}

	snapshot, err := uc.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}

	if err := snapshot.ValidateOpen(); err != nil {
		return nil, err
	}

	result := domain.Reconcile(snapshot.CashSession(counted))
	uc.metrics.Reconciled(result)

	return &SessionPreview{Session: snapshot, Result: result}, nil
}

// CloseSession reconciles an open session against fresh backend totals and queues
// the closing for delivery. A session can be closed once.
func (uc *CashSessionUseCase) CloseSession(ctx context.Context, input CloseSessionInput) (*domain.SessionClosing, error) {
	// 0. Validate inputs before touching the backend
	if err := domain.ValidateSessionID(input.SessionID); err != nil {
		return nil, err
	}

	counted, err := domain.ValidateCountedClosing(input.CountedClosing)
	if err != nil {
		return nil, err
	}

	if err := domain.ValidateNotes(input.Notes); err != nil {
		return nil, err
	}

	// 1. Fresh totals, bypassing the cache
	snapshot, err := uc.sessions.GetSession(ctx, input.SessionID)
	if err != nil {
		return nil, err
	}

	if err := snapshot.ValidateOpen(); err != nil {
		return nil, err
	}

	// 2. Reject a second close still waiting in the outbox
	existing, err := uc.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeCashSession, input.SessionID, 1, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing closing: %w", err)
	}
	if len(existing) > 0 {
		return nil, domain.ErrSessionAlreadyClosed
	}

	// 3. Reconcile
	result := domain.Reconcile(snapshot.CashSession(counted))
	uc.metrics.Reconciled(result)

	now := time.Now().UTC()
	closing := domain.NewSessionClosing(uc.idGen.Generate(), input.SessionID, result, input.Notes, now)
	event := domain.NewCashSessionClosedEvent(uc.idGen.Generate(), closing)

	// 4. Queue
	if err := uc.retry(ctx, func() error { return uc.enqueue(ctx, event) }); err != nil {
		return nil, err
	}

	if uc.cache != nil {
		if err := uc.cache.Delete(ctx, input.SessionID); err != nil {
			uc.logger.Warn().Err(err).Str("session_id", input.SessionID).Msg("session cache invalidation failed")
		}
	}

	uc.metrics.ClosingQueued(result.Severity)

	logEvent := uc.logger.Info()
	if result.Severity.IsCritical() {
		logEvent = uc.logger.Warn()
	}
	logEvent.
		Str("session_id", input.SessionID).
		Str("closing_id", closing.ID).
		Str("expected", result.ExpectedClosing.StringFixed(2)).
		Str("counted", result.CountedClosing.StringFixed(2)).
		Str("variance", result.Variance.StringFixed(2)).
		Str("severity", string(result.Severity)).
		Msg("cash session closing queued")

	return closing, nil
}

// GetClosing returns the queued closing for a session with its delivery state.
func (uc *CashSessionUseCase) GetClosing(ctx context.Context, sessionID string) (*domain.SessionClosing, error) {
	if err := domain.ValidateSessionID(sessionID); err != nil {
		return nil, err
	}

	events, err := uc.outboxRepo.GetByAggregate(ctx, domain.AggregateTypeCashSession, sessionID, 1, 0)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, domain.ErrClosingNotFound
	}

	return events[0].SessionClosing()
}

func (uc *CashSessionUseCase) enqueue(ctx context.Context, event *domain.OutboxEvent) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultTransactionTimeout)
	defer cancel()

	tx, err := uc.txManager.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := uc.outboxRepo.Create(ctx, tx, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (uc *CashSessionUseCase) retry(ctx context.Context, operation func() error) error {
	if uc.retrier == nil {
		return operation()
	}
	return uc.retrier.Retry(ctx, operation)
}
