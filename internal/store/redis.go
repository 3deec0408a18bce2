package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sethvargo/go-retry"

	"github.com/Starzy87/stake-mines-backend/internal/session"
)

const (
	keyPlayer = "mines:player:%s"

	maxTxRetries = 8
	txBackoff    = 10 * time.Millisecond
)

// RedisConfig selects the Redis server.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// Redis stores player records as JSON strings. Updates use an optimistic
// WATCH/MULTI transaction and retry when another writer got there first.
type Redis struct {
	client *redis.Client
}

// NewRedis connects and pings the server.
func NewRedis(ctx context.Context, cfg RedisConfig) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &Redis{client: client}, nil
}

// NewRedisWithClient wraps an existing client.
func NewRedisWithClient(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (r *Redis) Close() error { return r.client.Close() }

// Ping checks the connection.
func (r *Redis) Ping(ctx context.Context) error { return r.client.Ping(ctx).Err() }

func (r *Redis) Get(ctx context.Context, playerID string) (*session.Player, error) {
	raw, err := r.client.Get(ctx, fmt.Sprintf(keyPlayer, playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, session.ErrPlayerNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodePlayer(raw)
}

func (r *Redis) Update(ctx context.Context, playerID string, fn func(*session.Player) error) (*session.Player, error) {
	key := fmt.Sprintf(keyPlayer, playerID)
	backoff := retry.WithMaxRetries(maxTxRetries, retry.WithJitterPercent(50, retry.NewExponential(txBackoff)))

	var out *session.Player
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := r.client.Watch(ctx, func(tx *redis.Tx) error {
			p := &session.Player{ID: playerID}
			raw, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return err
			default:
				if p, err = decodePlayer(raw); err != nil {
					return err
				}
			}

			if err := fn(p); err != nil {
				return err
			}
			enc, err := json.Marshal(p)
			if err != nil {
				return err
			}

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Set(ctx, key, enc, 0)
				return nil
			})
			if err == nil {
				out = p
			}
			return err
		}, key)
		if errors.Is(err, redis.TxFailedErr) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
