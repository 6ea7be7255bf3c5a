// Package results keeps the outcomes of asynchronous evaluations until their
// submitters collect them.
package results

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zephyrtronium/calculator"
	"github.com/zephyrtronium/calculator/internal/config"
)

// ErrNotFound is returned by Take when there is no outcome for an ID, either
// because it is still pending or because it expired or was already taken.
var ErrNotFound = errors.New("results: not found")

// Outcome is a finished evaluation.
type Outcome struct {
	Result   calculator.Result `json:"result"`
	Finished time.Time         `json:"finished"`
}

// Store holds outcomes by request ID. Each outcome can be taken once.
type Store interface {
	// Put records the outcome for id, replacing any previous one.
	Put(ctx context.Context, id string, o Outcome) error
	// Take removes and returns the outcome for id.
	Take(ctx context.Context, id string) (Outcome, error)
}

const (
	connectionTimeout = 5 * time.Second
	defaultPoolSize   = 10
)

// Open creates the store described by cfg. If cfg names Redis but the server
// does not answer, Open logs a warning and falls back to memory.
func Open(ctx context.Context, cfg config.ResultsConfig) Store {
	logger := slog.Default().With("component", "results")
	if cfg.Backend == config.BackendRedis {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			PoolSize: defaultPoolSize,
		})
		pctx, cancel := context.WithTimeout(ctx, connectionTimeout)
		defer cancel()
		if err := client.Ping(pctx).Err(); err != nil {
			logger.Warn("redis connection failed, keeping results in memory", "addr", cfg.RedisAddr, "error", err)
			client.Close()
		} else {
			logger.Info("keeping results in redis", "addr", cfg.RedisAddr)
			return NewRedis(client, cfg.TTL.Std(), cfg.KeyPrefix)
		}
	}
	return NewMemory(cfg.TTL.Std())
}
