package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/iho/pdv/internal/domain"
)

const (
	operationGetSession    = "get_session"
	operationSubmitClosing = "submit_closing"

	maxErrorBodyBytes = 4 << 10
)

// Metrics observes calls to the backend.
type Metrics interface {
	ObserveBackendRequest(operation, outcome string, duration time.Duration)
}

// Config holds backend client settings.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	MaxRetries uint64
}

// Client talks to the upstream PDV backend REST API.
// It implements usecase.SessionSource and usecase.ClosingSubmitter.
type Client struct {
	baseURL    string
	token      string
	maxRetries uint64
	httpClient *http.Client
	metrics    Metrics
	logger     zerolog.Logger

	initialInterval time.Duration
}

// NewClient creates a new backend Client. metrics may be nil.
func NewClient(cfg Config, metrics Metrics, logger zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Client{
		baseURL:         strings.TrimRight(cfg.BaseURL, "/"),
		token:           cfg.Token,
		maxRetries:      cfg.MaxRetries,
		httpClient:      &http.Client{Timeout: timeout},
		metrics:         metrics,
		logger:          logger.With().Str("component", "backend_client").Logger(),
		initialInterval: 100 * time.Millisecond,
	}
}

// GetSession fetches the current totals of a register session.
func (c *Client) GetSession(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	endpoint := fmt.Sprintf("%s/caixa/sessoes/%s", c.baseURL, url.PathEscape(id))

	var payload sessionPayload
	if err := c.do(ctx, operationGetSession, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}

	snapshot := payload.toDomain()
	if snapshot.ID == "" {
		snapshot.ID = id
	}

	return snapshot, nil
}

// SubmitClosing posts a closing to the backend. Resubmitting the same closing is
// safe: the backend deduplicates on the closing ID.
func (c *Client) SubmitClosing(ctx context.Context, closing *domain.SessionClosing) error {
	endpoint := fmt.Sprintf("%s/caixa/sessoes/%s/fechamento", c.baseURL, url.PathEscape(closing.SessionID))

	body, err := json.Marshal(closingPayloadFromDomain(closing))
	if err != nil {
		return fmt.Errorf("failed to encode closing: %w", err)
	}

	return c.do(ctx, operationSubmitClosing, http.MethodPost, endpoint, body, nil)
}

func (c *Client) do(ctx context.Context, operation, method, endpoint string, body []byte, out any) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.initialInterval
	b.MaxInterval = 2 * time.Second
	b.MaxElapsedTime = 0

	var policy backoff.BackOff = backoff.WithMaxRetries(b, c.maxRetries)
	policy = backoff.WithContext(policy, ctx)

	attempt := 0

	return backoff.Retry(func() error {
		attempt++

		err := c.roundTrip(ctx, operation, method, endpoint, body, out)
		if err == nil {
			return nil
		}

		if !errors.Is(err, domain.ErrBackendUnavailable) {
			return backoff.Permanent(err)
		}

		c.logger.Warn().
			Err(err).
			Str("operation", operation).
			Int("attempt", attempt).
			Msg("backend unavailable, retrying")

		return err
	}, policy)
}

func (c *Client) roundTrip(ctx context.Context, operation, method, endpoint string, body []byte, out any) (err error) {
	start := time.Now()
	defer func() {
		c.observe(operation, outcomeOf(err), time.Since(start))
	}()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to build backend request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set(chimiddleware.RequestIDHeader, requestID(ctx))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: %v", domain.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode backend response: %w", err)
		}
		return nil
	}

	return statusError(resp)
}

func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))

	detail := strings.TrimSpace(string(raw))
	var payload errorPayload
	if json.Unmarshal(raw, &payload) == nil && payload.text() != "" {
		detail = payload.text()
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", domain.ErrBackendUnauthorized, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrSessionNotFound
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%w: %s", domain.ErrSessionAlreadyClosed, detail)
	case resp.StatusCode == http.StatusTooManyRequests, resp.StatusCode >= 500:
		return fmt.Errorf("%w: status %d", domain.ErrBackendUnavailable, resp.StatusCode)
	default:
		return fmt.Errorf("backend rejected request: status %d: %s", resp.StatusCode, detail)
	}
}

func requestID(ctx context.Context) string {
	if id := chimiddleware.GetReqID(ctx); id != "" {
		return id
	}
	return uuid.NewString()
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, domain.ErrBackendUnavailable):
		return "unavailable"
	case errors.Is(err, domain.ErrBackendUnauthorized):
		return "unauthorized"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrSessionAlreadyClosed):
		return "conflict"
	default:
		return "error"
	}
}

func (c *Client) observe(operation, outcome string, d time.Duration) {
	if c.metrics != nil {
		c.metrics.ObserveBackendRequest(operation, outcome, d)
	}
}
