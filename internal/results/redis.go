package results

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis is a Store backed by a Redis server. Expiry is left to Redis.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis creates a store using client. Keys are prefix followed by the
// request ID.
func NewRedis(client *redis.Client, ttl time.Duration, prefix string) *Redis {
	return &Redis{client: client, ttl: ttl, prefix: prefix}
}

func (s *Redis) key(id string) string {
	return s.prefix + id
}

// Put implements Store.
func (s *Redis) Put(ctx context.Context, id string, o Outcome) error {
	if o.Finished.IsZero() {
		o.Finished = time.Now()
	}
	b, err := json.Marshal(o)
	if err != nil {
		return fmt.Errorf("encoding result %s: %w", id, err)
	}
	if err := s.client.Set(ctx, s.key(id), b, s.ttl).Err(); err != nil {
		return fmt.Errorf("storing result %s: %w", id, err)
	}
	return nil
}

// Take implements Store. The read and delete are a single GETDEL, so two
// concurrent pollers cannot both receive the outcome.
func (s *Redis) Take(ctx context.Context, id string) (Outcome, error) {
	b, err := s.client.GetDel(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Outcome{}, ErrNotFound
	}
	if err != nil {
		return Outcome{}, fmt.Errorf("fetching result %s: %w", id, err)
	}
	var o Outcome
	if err := json.Unmarshal(b, &o); err != nil {
		return Outcome{}, fmt.Errorf("decoding result %s: %w", id, err)
	}
	return o, nil
}

// Close closes the underlying client.
func (s *Redis) Close() error {
	return s.client.Close()
}
