package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
	"github.com/iho/pdv/internal/usecase"
)

func closedEvent(eventID, sessionID string) *domain.OutboxEvent {
	closing := domain.NewSessionClosing("cl-"+sessionID, sessionID, domain.ReconciliationResult{
		ExpectedClosing: decimal.NewFromInt(600),
		CountedClosing:  decimal.NewFromInt(610),
		Variance:        decimal.NewFromInt(10),
		Severity:        domain.SeveritySurplus,
	}, "", time.Date(2026, 3, 14, 18, 0, 0, 0, time.UTC))

	return domain.NewCashSessionClosedEvent(eventID, closing)
}

func TestDispatchDeliversAndMarks(t *testing.T) {
	repo := &stubOutboxRepo{events: []*domain.OutboxEvent{closedEvent("evt-1", "s-1")}}
	sub := &stubSubmitter{}
	metrics := &countingMetrics{}
	d := newTestDispatcher(repo, sub, metrics)

	delivered, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}
	if len(sub.submitted) != 1 || sub.submitted[0].SessionID != "s-1" {
		t.Fatalf("expected closing for s-1 to be submitted, got %#v", sub.submitted)
	}
	if !sub.submitted[0].Variance.Equal(decimal.NewFromInt(10)) {
		t.Fatalf("expected variance to survive the outbox, got %s", sub.submitted[0].Variance)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-1" {
		t.Fatalf("expected event to be marked delivered, got %#v", repo.marked)
	}
	if metrics.delivered != 1 || metrics.pending != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}
}

func TestDispatchContinuesOnRejectedClosing(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			closedEvent("evt-1", "s-1"),
			closedEvent("evt-2", "s-2"),
		},
	}
	sub := &stubSubmitter{
		errorsBySession: map[string]error{"s-1": errors.New("backend rejected request: status 422")},
	}
	metrics := &countingMetrics{}
	d := newTestDispatcher(repo, sub, metrics)

	delivered, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if delivered != 1 {
		t.Fatalf("expected 1 delivered, got %d", delivered)
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 to be marked, got %#v", repo.marked)
	}
	if metrics.failed != 1 {
		t.Fatalf("expected 1 failure, got %d", metrics.failed)
	}

	retry, ok := repo.retries["evt-1"]
	if !ok {
		t.Fatalf("expected evt-1 to be rescheduled, got %#v", repo.retries)
	}
	if retry.attempts != 1 || retry.lastError != "backend rejected request: status 422" {
		t.Fatalf("unexpected retry %+v", retry)
	}
	if !retry.next.Equal(testNow.Add(time.Minute)) {
		t.Fatalf("expected next attempt at %s, got %s", testNow.Add(time.Minute), retry.next)
	}
	if len(repo.failed) != 0 {
		t.Fatalf("expected nothing failed on first rejection, got %#v", repo.failed)
	}
}

func TestDispatchMarksClosingFailedAfterMaxAttempts(t *testing.T) {
	event := closedEvent("evt-1", "s-1")
	event.Attempts = 2
	repo := &stubOutboxRepo{events: []*domain.OutboxEvent{event}}
	sub := &stubSubmitter{
		errorsBySession: map[string]error{"s-1": errors.New("backend rejected request: status 422")},
	}
	metrics := &countingMetrics{}
	d := newTestDispatcher(repo, sub, metrics)

	if _, err := d.Dispatch(context.Background()); err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	failure, ok := repo.failed["evt-1"]
	if !ok || failure.attempts != 3 {
		t.Fatalf("expected evt-1 failed after 3 attempts, got %#v", repo.failed)
	}
	if len(repo.retries) != 0 {
		t.Fatalf("expected no retry once attempts are exhausted, got %#v", repo.retries)
	}
	if metrics.deadLettered != 1 {
		t.Fatalf("expected 1 dead-lettered closing, got %d", metrics.deadLettered)
	}

	// a failed closing is no longer picked up
	if delivered, err := d.Dispatch(context.Background()); err != nil || delivered != 0 || len(sub.submitted) != 0 {
		t.Fatalf("expected nothing dispatched, delivered=%d err=%v", delivered, err)
	}
}

func TestDispatchRejectedClosingsDoNotBlockNewerOnes(t *testing.T) {
	reject := errors.New("backend rejected request: status 422")

	repo := &stubOutboxRepo{}
	sub := &stubSubmitter{errorsBySession: map[string]error{}}
	for i := range 10 {
		sessionID := fmt.Sprintf("bad-%d", i)
		repo.events = append(repo.events, closedEvent("evt-"+sessionID, sessionID))
		sub.errorsBySession[sessionID] = reject
	}
	repo.events = append(repo.events, closedEvent("evt-good", "good"))

	d := newTestDispatcher(repo, sub, nil)
	clock := testNow
	d.now = func() time.Time { return clock }
	repo.now = func() time.Time { return clock }

	for range 100 {
		if _, err := d.Dispatch(context.Background()); err != nil {
			t.Fatalf("Dispatch returned error: %v", err)
		}
		clock = clock.Add(time.Minute)
	}

	if len(sub.submitted) != 1 || sub.submitted[0].SessionID != "good" {
		t.Fatalf("expected the good closing to be delivered, got %d submitted", len(sub.submitted))
	}
	if len(repo.marked) != 1 || repo.marked[0] != "evt-good" {
		t.Fatalf("expected evt-good marked delivered, got %#v", repo.marked)
	}
	if len(repo.failed) != 10 {
		t.Fatalf("expected all 10 rejected closings to end up failed, got %d", len(repo.failed))
	}
}

func TestRetryDelayGrowsUpToCap(t *testing.T) {
	d := newTestDispatcher(&stubOutboxRepo{}, &stubSubmitter{}, nil)
	d.maxDelay = 5 * time.Minute

	want := []time.Duration{time.Minute, 2 * time.Minute, 4 * time.Minute, 5 * time.Minute, 5 * time.Minute}
	for i, w := range want {
		if got := d.retryDelayFor(i + 1); got != w {
			t.Fatalf("attempt %d: expected %s, got %s", i+1, w, got)
		}
	}
}

func TestDispatchStopsBatchWhenBackendUnavailable(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			closedEvent("evt-1", "s-1"),
			closedEvent("evt-2", "s-2"),
		},
	}
	sub := &stubSubmitter{
		errorsBySession: map[string]error{"s-1": domain.ErrBackendUnavailable},
	}
	d := newTestDispatcher(repo, sub, nil)

	delivered, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if delivered != 0 || len(sub.submitted) != 0 {
		t.Fatalf("expected batch to stop, delivered=%d submitted=%d", delivered, len(sub.submitted))
	}
	if len(repo.marked) != 0 {
		t.Fatalf("expected nothing marked, got %#v", repo.marked)
	}
}

func TestDispatchTreatsAlreadyClosedAsDelivered(t *testing.T) {
	repo := &stubOutboxRepo{events: []*domain.OutboxEvent{closedEvent("evt-1", "s-1")}}
	sub := &stubSubmitter{
		errorsBySession: map[string]error{"s-1": domain.ErrSessionAlreadyClosed},
	}
	d := newTestDispatcher(repo, sub, nil)

	delivered, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if delivered != 1 || len(repo.marked) != 1 {
		t.Fatalf("expected closing marked delivered, delivered=%d marked=%#v", delivered, repo.marked)
	}
}

func TestDispatchSkipsUndecodableEvent(t *testing.T) {
	repo := &stubOutboxRepo{
		events: []*domain.OutboxEvent{
			{ID: "evt-bad", EventType: "unknown"},
			closedEvent("evt-2", "s-2"),
		},
	}
	sub := &stubSubmitter{}
	d := newTestDispatcher(repo, sub, nil)

	delivered, err := d.Dispatch(context.Background())
	if err != nil {
		t.Fatalf("Dispatch returned error: %v", err)
	}

	if delivered != 1 || len(repo.marked) != 1 || repo.marked[0] != "evt-2" {
		t.Fatalf("expected only evt-2 delivered, got %#v", repo.marked)
	}
	if failure, ok := repo.failed["evt-bad"]; !ok || failure.attempts != 1 {
		t.Fatalf("expected undecodable event failed on first attempt, got %#v", repo.failed)
	}
	if len(sub.submitted) != 1 {
		t.Fatalf("expected undecodable event never submitted, got %d", len(sub.submitted))
	}
}

func TestDispatchReturnsRepositoryError(t *testing.T) {
	repo := &stubOutboxRepo{getErr: errors.New("db down")}
	d := newTestDispatcher(repo, &stubSubmitter{}, nil)

	if _, err := d.Dispatch(context.Background()); err == nil {
		t.Fatal("expected repository error")
	}
}

func TestPurgeDeletesOldDeliveredClosings(t *testing.T) {
	repo := &stubOutboxRepo{}
	d := newTestDispatcher(repo, &stubSubmitter{}, nil)
	now := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	d.now = func() time.Time { return now }
	d.retention = 24 * time.Hour

	d.purge(context.Background())

	if len(repo.purgedBefore) != 1 || !repo.purgedBefore[0].Equal(now.Add(-24*time.Hour)) {
		t.Fatalf("expected purge before %s, got %v", now.Add(-24*time.Hour), repo.purgedBefore)
	}

	d.retention = 0
	d.purge(context.Background())
	if len(repo.purgedBefore) != 1 {
		t.Fatal("expected no purge with zero retention")
	}
}

func TestStartStopsOnContextCancellation(t *testing.T) {
	repo := &stubOutboxRepo{}
	d := newTestDispatcher(repo, &stubSubmitter{}, nil)
	d.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- d.Start(ctx)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after cancel")
	}
}

var testNow = time.Date(2026, 3, 14, 19, 0, 0, 0, time.UTC)

func newTestDispatcher(repo *stubOutboxRepo, sub *stubSubmitter, metrics Metrics) *Dispatcher {
	d := New(Config{
		OutboxRepo:    repo,
		Submitter:     sub,
		Metrics:       metrics,
		Logger:        zerolog.Nop(),
		BatchSize:     10,
		Interval:      5 * time.Millisecond,
		MaxAttempts:   3,
		RetryDelay:    time.Minute,
		MaxRetryDelay: 10 * time.Minute,
	})
	d.now = func() time.Time { return testNow }
	return d
}

type deliveryFailure struct {
	attempts  int
	lastError string
	next      time.Time
}

// stubOutboxRepo keeps events in memory and selects them the way the
// closing_outbox query does.
type stubOutboxRepo struct {
	mu           sync.Mutex
	events       []*domain.OutboxEvent
	now          func() time.Time
	getErr       error
	marked       []string
	retries      map[string]deliveryFailure
	failed       map[string]deliveryFailure
	purgedBefore []time.Time
}

func (s *stubOutboxRepo) Create(ctx context.Context, tx usecase.Transaction, event *domain.OutboxEvent) error {
	return nil
}

func (s *stubOutboxRepo) GetUnpublished(ctx context.Context, limit int) ([]*domain.OutboxEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.getErr != nil {
		return nil, s.getErr
	}

	var now time.Time
	if s.now != nil {
		now = s.now()
	}

	var due []*domain.OutboxEvent
	for _, e := range s.events {
		if !e.Published && !e.Failed && !e.NextAttemptAt.After(now) {
			due = append(due, e)
		}
	}
	sort.SliceStable(due, func(i, j int) bool {
		return due[i].NextAttemptAt.Before(due[j].NextAttemptAt)
	})

	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (s *stubOutboxRepo) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.marked = append(s.marked, id)
	if e := s.find(id); e != nil {
		e.Published = true
		e.PublishedAt = &publishedAt
	}
	return nil
}

func (s *stubOutboxRepo) ScheduleRetry(ctx context.Context, id string, attempts int, lastError string, nextAttemptAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.retries == nil {
		s.retries = map[string]deliveryFailure{}
	}
	s.retries[id] = deliveryFailure{attempts: attempts, lastError: lastError, next: nextAttemptAt}
	if e := s.find(id); e != nil {
		e.Attempts = attempts
		e.LastError = lastError
		e.NextAttemptAt = nextAttemptAt
	}
	return nil
}

func (s *stubOutboxRepo) MarkFailed(ctx context.Context, id string, attempts int, lastError string, failedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failed == nil {
		s.failed = map[string]deliveryFailure{}
	}
	s.failed[id] = deliveryFailure{attempts: attempts, lastError: lastError}
	if e := s.find(id); e != nil {
		e.Attempts = attempts
		e.LastError = lastError
		e.Failed = true
		e.FailedAt = &failedAt
	}
	return nil
}

func (s *stubOutboxRepo) find(id string) *domain.OutboxEvent {
	for _, e := range s.events {
		if e.ID == id {
			return e
		}
	}
	return nil
}

func (s *stubOutboxRepo) GetByAggregate(ctx context.Context, aggregateType, aggregateID string, limit, offset int) ([]*domain.OutboxEvent, error) {
	return nil, nil
}

func (s *stubOutboxRepo) DeletePublished(ctx context.Context, before time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.purgedBefore = append(s.purgedBefore, before)
	return nil
}

type stubSubmitter struct {
	submitted       []*domain.SessionClosing
	errorsBySession map[string]error
}

func (s *stubSubmitter) SubmitClosing(ctx context.Context, closing *domain.SessionClosing) error {
	if err := s.errorsBySession[closing.SessionID]; err != nil {
		return err
	}
	s.submitted = append(s.submitted, closing)
	return nil
}

type countingMetrics struct {
	delivered    int
	failed       int
	deadLettered int
	pending      int
}

func (m *countingMetrics) ClosingDelivered()      { m.delivered++ }
func (m *countingMetrics) ClosingDeliveryFailed() { m.failed++ }
func (m *countingMetrics) ClosingDeadLettered()   { m.deadLettered++ }
func (m *countingMetrics) PendingClosings(n int)  { m.pending = n }
