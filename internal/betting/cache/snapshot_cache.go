package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
)

// SnapshotCache guarda o snapshot do pool de um mercado no Redis por um TTL
// curto. O banco continua sendo a fonte de verdade: toda mutação do pool
// derruba a chave, o TTL só limita a vida de leituras mornas.
type SnapshotCache struct {
	R   *redis.Client
	TTL time.Duration
}

func New(r *redis.Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{R: r, TTL: ttl}
}

func key(marketID string) string { return "betpool:market:" + marketID }

func (c *SnapshotCache) Get(ctx context.Context, marketID string, dst any) (bool, error) {
	b, err := c.R.Get(ctx, key(marketID)).Bytes()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal(b, dst)
}

func (c *SnapshotCache) Set(ctx context.Context, marketID string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.R.Set(ctx, key(marketID), b, c.TTL).Err()
}

// Drop invalida o snapshot após aposta, liquidação ou cancelamento
func (c *SnapshotCache) Drop(ctx context.Context, marketID string) error {
	return c.R.Del(ctx, key(marketID)).Err()
}
