package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stockflow/internal/core/domain"
	"github.com/rl1809/stockflow/internal/port"
)

const (
	stockKeyPrefix    = "stock:"
	cartKeyPrefix     = "cart:"
	sessionKeyPrefix  = "session:"
	idempotencyKeyTTL = 24 * time.Hour
	cartTTL           = 7 * 24 * time.Hour
)

// reserveStockScript checks every key first and only then decrements, so a
// short line leaves all stock untouched.
var reserveStockScript = redis.NewScript(`
for i, key in ipairs(KEYS) do
	local current = redis.call('GET', key)
	if not current then
		return 0
	end
	if tonumber(current) < tonumber(ARGV[i]) then
		return 0
	end
end

for i, key in ipairs(KEYS) do
	redis.call('DECRBY', key, ARGV[i])
end

return 1
`)

// adjustStockScript only moves stock that is already cached, so a missing key
// is never recreated from zero.
var adjustStockScript = redis.NewScript(`
if redis.call('EXISTS', KEYS[1]) == 0 then
	return 0
end
redis.call('INCRBY', KEYS[1], ARGV[1])
return 1
`)

type RedisAdapter struct {
	client *redis.Client
}

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client}
}

func (r *RedisAdapter) ReserveStock(ctx context.Context, lines []port.StockLine) (bool, error) {
	if len(lines) == 0 {
		return true, nil
	}

	keys := make([]string, len(lines))
	args := make([]any, len(lines))
	for i, line := range lines {
		keys[i] = stockKeyPrefix + line.ProductID
		args[i] = line.Quantity
	}

	result, err := reserveStockScript.Run(ctx, r.client, keys, args...).Int()
	if err != nil {
		return false, err
	}

	return result == 1, nil
}

func (r *RedisAdapter) ReleaseStock(ctx context.Context, lines []port.StockLine) error {
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, line := range lines {
			pipe.IncrBy(ctx, stockKeyPrefix+line.ProductID, int64(line.Quantity))
		}
		return nil
	})
	return err
}

func (r *RedisAdapter) SetStock(ctx context.Context, productID string, quantity int) error {
	return r.client.Set(ctx, stockKeyPrefix+productID, quantity, 0).Err()
}

func (r *RedisAdapter) AdjustStock(ctx context.Context, productID string, delta int) (bool, error) {
	result, err := adjustStockScript.Run(ctx, r.client, []string{stockKeyPrefix + productID}, delta).Int()
	if err != nil {
		return false, fmt.Errorf("adjust stock: %w", err)
	}
	return result == 1, nil
}

func (r *RedisAdapter) GetStock(ctx context.Context, productID string) (int, bool, error) {
	stock, err := r.client.Get(ctx, stockKeyPrefix+productID).Int()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return stock, true, nil
}

func (r *RedisAdapter) DeleteStock(ctx context.Context, productID string) error {
	return r.client.Del(ctx, stockKeyPrefix+productID).Err()
}

func (r *RedisAdapter) SetIdempotency(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) CartItems(ctx context.Context, cartKey string) (map[string]int, error) {
	raw, err := r.client.HGetAll(ctx, cartKeyPrefix+cartKey).Result()
	if err != nil {
		return nil, err
	}

	items := make(map[string]int, len(raw))
	for productID, v := range raw {
		qty, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("cart %s: bad quantity for %s: %w", cartKey, productID, err)
		}
		items[productID] = qty
	}
	return items, nil
}

func (r *RedisAdapter) SetCartQuantity(ctx context.Context, cartKey, productID string, quantity int) error {
	key := cartKeyPrefix + cartKey
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, productID, quantity)
		pipe.Expire(ctx, key, cartTTL)
		return nil
	})
	return err
}

func (r *RedisAdapter) RemoveCartItem(ctx context.Context, cartKey, productID string) error {
	return r.client.HDel(ctx, cartKeyPrefix+cartKey, productID).Err()
}

func (r *RedisAdapter) ClearCart(ctx context.Context, cartKey string) error {
	return r.client.Del(ctx, cartKeyPrefix+cartKey).Err()
}

func (r *RedisAdapter) SaveSession(ctx context.Context, session domain.Session, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, sessionKeyPrefix+session.Token, data, ttl).Err()
}

func (r *RedisAdapter) GetSession(ctx context.Context, token string) (*domain.Session, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+token).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var session domain.Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &session, nil
}

func (r *RedisAdapter) DeleteSession(ctx context.Context, token string) error {
	return r.client.Del(ctx, sessionKeyPrefix+token).Err()
}

func (r *RedisAdapter) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
