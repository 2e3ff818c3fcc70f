// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package journal

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"sqlworker/internal/config"
)

const redisKeyPrefix = "sqlworker:journal:"

// Redis keeps each entry in a hash that expires after the configured TTL.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

// OpenRedis connects and pings the server.
func OpenRedis(ctx context.Context, cfg config.Journal) (*Redis, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis %s: %w", cfg.Addr, err)
	}
	return &Redis{client: client, ttl: cfg.TTL}, nil
}

func (r *Redis) Record(ctx context.Context, e Entry) error {
	key := redisKeyPrefix + e.CorrelationID
	_, err := r.client.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.HSet(ctx, key, toHash(e))
		if r.ttl > 0 {
			p.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	return err
}

func (r *Redis) Get(ctx context.Context, correlationID string) (Entry, error) {
	h, err := r.client.HGetAll(ctx, redisKeyPrefix+correlationID).Result()
	if err != nil {
		return Entry{}, err
	}
	if len(h) == 0 {
		return Entry{}, ErrNotFound
	}
	return fromHash(correlationID, h), nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func toHash(e Entry) map[string]any {
	return map[string]any{
		"subcommand":  e.Subcommand,
		"database":    e.Database,
		"status":      e.Status,
		"data":        e.Data,
		"error":       e.Error,
		"started_at":  e.StartedAt.UTC().Format(time.RFC3339Nano),
		"finished_at": e.FinishedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromHash(id string, h map[string]string) Entry {
	e := Entry{
		CorrelationID: id,
		Subcommand:    h["subcommand"],
		Database:      h["database"],
		Status:        h["status"],
		Data:          h["data"],
		Error:         h["error"],
	}
	e.StartedAt, _ = time.Parse(time.RFC3339Nano, h["started_at"])
	e.FinishedAt, _ = time.Parse(time.RFC3339Nano, h["finished_at"])
	return e
}
