package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"github.com/iho/pdv/internal/domain"
)

// SessionCache implements usecase.SessionCache using Redis.
type SessionCache struct {
	client *redis.Client
	prefix string
}

// NewSessionCache creates a new SessionCache.
func NewSessionCache(client *redis.Client) *SessionCache {
	return &SessionCache{
		client: client,
		prefix: "pdv:session:",
	}
}

type cachedSession struct {
	ID           string          `json:"id"`
	RegisterID   string          `json:"register_id,omitempty"`
	Operator     string          `json:"operator,omitempty"`
	Status       string          `json:"status"`
	OpenedAt     time.Time       `json:"opened_at"`
	OpeningFloat decimal.Decimal `json:"opening_float"`
	CashSales    decimal.Decimal `json:"cash_sales"`
	Supplements  decimal.Decimal `json:"supplements"`
	Withdrawals  decimal.Decimal `json:"withdrawals"`
}

// Get returns (nil, nil) when the session is not cached.
func (c *SessionCache) Get(ctx context.Context, id string) (*domain.SessionSnapshot, error) {
	data, err := c.client.Get(ctx, c.prefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var cached cachedSession
	if err := json.Unmarshal(data, &cached); err != nil {
		return nil, fmt.Errorf("corrupt cached session %s: %w", id, err)
	}

	return &domain.SessionSnapshot{
		ID:           cached.ID,
		RegisterID:   cached.RegisterID,
		Operator:     cached.Operator,
		Status:       domain.SessionStatus(cached.Status),
		OpenedAt:     cached.OpenedAt,
		OpeningFloat: cached.OpeningFloat,
		CashSales:    cached.CashSales,
		Supplements:  cached.Supplements,
		Withdrawals:  cached.Withdrawals,
	}, nil
}

// Set stores a snapshot with TTL under the requested id, which may differ from
// the ID the backend normalized into the snapshot.
func (c *SessionCache) Set(ctx context.Context, id string, snapshot *domain.SessionSnapshot, ttl time.Duration) error {
	data, err := json.Marshal(cachedSession{
		ID:           snapshot.ID,
		RegisterID:   snapshot.RegisterID,
		Operator:     snapshot.Operator,
		Status:       string(snapshot.Status),
		OpenedAt:     snapshot.OpenedAt,
		OpeningFloat: snapshot.OpeningFloat,
		CashSales:    snapshot.CashSales,
		Supplements:  snapshot.Supplements,
		Withdrawals:  snapshot.Withdrawals,
	})
	if err != nil {
		return err
	}

	return c.client.Set(ctx, c.prefix+id, data, ttl).Err()
}

// Delete removes a cached snapshot.
func (c *SessionCache) Delete(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.prefix+id).Err()
}
