package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/iho/agencyledger/internal/domain"
	"github.com/iho/agencyledger/internal/usecase"
)

// CurrencyCache serves currency lookups from Redis and falls back to the wrapped repository.
// Currencies are reference data, so entries only expire by TTL.
type CurrencyCache struct {
	client *redis.Client
	next   usecase.CurrencyRepository
	ttl    time.Duration
	prefix string
	logger zerolog.Logger
}

var _ usecase.CurrencyRepository = (*CurrencyCache)(nil)

// NewCurrencyCache wraps next with a Redis read-through cache.
func NewCurrencyCache(client *redis.Client, next usecase.CurrencyRepository, ttl time.Duration, logger zerolog.Logger) *CurrencyCache {
	return &CurrencyCache{
		client: client,
		next:   next,
		ttl:    ttl,
		prefix: "agency:currency:",
		logger: logger,
	}
}

type cachedCurrency struct {
	ID   string `json:"id"`
	Code string `json:"code"`
	Name string `json:"name"`
}

// GetByID returns the currency, reading through to the repository on a miss.
// Redis failures degrade to the repository.
func (c *CurrencyCache) GetByID(ctx context.Context, id string) (*domain.Currency, error) {
	key := c.prefix + id

	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var cc cachedCurrency
		if err := json.Unmarshal(raw, &cc); err == nil {
			return &domain.Currency{ID: cc.ID, Code: cc.Code, Name: cc.Name}, nil
		}
	case !errors.Is(err, redis.Nil):
		c.logger.Warn().Err(err).Str("currency_id", id).Msg("currency cache read failed")
	}

	cur, err := c.next.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err = json.Marshal(cachedCurrency{ID: cur.ID, Code: cur.Code, Name: cur.Name})
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn().Err(err).Str("currency_id", id).Msg("currency cache write failed")
	}

	return cur, nil
}

// Invalidate drops a cached currency.
func (c *CurrencyCache) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, c.prefix+id).Err()
}
