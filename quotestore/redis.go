package quotestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/rustyeddy/riskgate/market"
)

// DefaultRedisKey is the hash holding one field per asset id.
const DefaultRedisKey = "riskgate:market_data"

// Redis stores quotes as JSON values in a single hash. HSET replaces a
// field atomically, so concurrent writers to one asset resolve as last
// writer wins.
type Redis struct {
	client redis.UniversalClient
	key    string
	now    func() time.Time
}

var _ Store = (*Redis)(nil)

func NewRedis(client redis.UniversalClient, key string, opts ...Option) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	o := buildOptions(opts)
	return &Redis{client: client, key: key, now: o.now}
}

func (r *Redis) Get(ctx context.Context, assetID string, maxAge time.Duration) (market.Quote, bool, error) {
	data, err := r.client.HGet(ctx, r.key, assetID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return market.Quote{}, false, nil
		}
		return market.Quote{}, false, market.Store(assetID, err)
	}

	q, err := decodeQuote(data)
	if err != nil {
		return market.Quote{}, false, market.Store(assetID, err)
	}
	if !fresh(q, r.now(), maxAge) {
		log.WithFields(log.Fields{"asset_id": assetID, "age": q.Age(r.now())}).Debug("cached quote expired")
		return market.Quote{}, false, nil
	}
	return q, true, nil
}

func (r *Redis) Put(ctx context.Context, q market.Quote) (market.Quote, error) {
	if err := q.Validate(); err != nil {
		return market.Quote{}, err
	}
	q.LastUpdated = r.now().UTC()

	data, err := json.Marshal(q)
	if err != nil {
		return market.Quote{}, market.Store(q.AssetID, fmt.Errorf("marshal quote: %w", err))
	}
	if err := r.client.HSet(ctx, r.key, q.AssetID, data).Err(); err != nil {
		return market.Quote{}, market.Store(q.AssetID, err)
	}
	return q, nil
}

func (r *Redis) GetAll(ctx context.Context) (map[string]market.Quote, error) {
	fields, err := r.client.HGetAll(ctx, r.key).Result()
	if err != nil {
		return nil, market.Store("", err)
	}
	out := make(map[string]market.Quote, len(fields))
	for id, raw := range fields {
		q, err := decodeQuote([]byte(raw))
		if err != nil {
			return nil, market.Store(id, err)
		}
		out[id] = q
	}
	return out, nil
}

func (r *Redis) Delete(ctx context.Context, assetID string) (bool, error) {
	n, err := r.client.HDel(ctx, r.key, assetID).Result()
	if err != nil {
		return false, market.Store(assetID, err)
	}
	return n > 0, nil
}

func (r *Redis) Clear(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return market.Store("", err)
	}
	log.Info("cleared all cached market data")
	return nil
}

func (r *Redis) Count(ctx context.Context) (int, error) {
	n, err := r.client.HLen(ctx, r.key).Result()
	if err != nil {
		return 0, market.Store("", err)
	}
	return int(n), nil
}

func (r *Redis) Ping(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return market.Store("", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func decodeQuote(data []byte) (market.Quote, error) {
	var q market.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return market.Quote{}, fmt.Errorf("unmarshal quote: %w", err)
	}
	q.LastUpdated = q.LastUpdated.UTC()
	return q, nil
}
