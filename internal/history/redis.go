package history

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// keyPrefix namespaces session lists in Redis.
const keyPrefix = "cellbook:history:"

// Redis is a Store keeping one list per session.
type Redis struct {
	client *redis.Client
	max    int
	ttl    time.Duration
}

var _ Store = (*Redis)(nil)

// NewRedis connects to the server at url and verifies the connection.
// Each session keeps its last limit messages and expires ttl after its last
// append; zero disables either bound.
func NewRedis(ctx context.Context, url string, limit int, ttl time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Redis{client: client, max: limit, ttl: ttl}, nil
}

func sessionKey(session string) string {
	return keyPrefix + sessionOrDefault(session)
}

// Append pushes message and trims and refreshes the list in one round trip.
func (r *Redis) Append(ctx context.Context, session, message string) error {
	key := sessionKey(session)

	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, message)
		if r.max > 0 {
			pipe.LTrim(ctx, key, int64(-r.max), -1)
		}
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("append message: %w", err)
	}
	return nil
}

func (r *Redis) Messages(ctx context.Context, session string) ([]string, error) {
	msgs, err := r.client.LRange(ctx, sessionKey(session), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read messages: %w", err)
	}
	if msgs == nil {
		msgs = []string{}
	}
	return msgs, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}
