// Package repo persists work rows. Rows are stored whole; every Save is a
// last-write-wins overwrite at row granularity, which the pipeline tolerates
// because stages and user edits touch disjoint field-sets in the common case.
package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tracklight/api/internal/model"
)

var ErrWorkNotFound = errors.New("work not found")

// WorkRepository is the record-store boundary.
type WorkRepository interface {
	Create(ctx context.Context, w *model.Work) error
	Get(ctx context.Context, id string) (*model.Work, error)
	ListByUser(ctx context.Context, userID string) ([]*model.Work, error)
	Save(ctx context.Context, w *model.Work) error
	Delete(ctx context.Context, w *model.Work) error
}

// RedisWorkRepository stores each work as a JSON row under work:<id> with a
// per-user index set for listing.
type RedisWorkRepository struct {
	redis *redis.Client
}

func NewRedisWorkRepository(redisClient *redis.Client) *RedisWorkRepository {
	return &RedisWorkRepository{redis: redisClient}
}

func workKey(id string) string {
	return fmt.Sprintf("work:%s", id)
}

func userWorksKey(userID string) string {
	return fmt.Sprintf("user:%s:works", userID)
}

func (r *RedisWorkRepository) Create(ctx context.Context, w *model.Work) error {
	if err := r.write(ctx, w); err != nil {
		return err
	}
	return r.redis.SAdd(ctx, userWorksKey(w.UserID), w.ID).Err()
}

func (r *RedisWorkRepository) Get(ctx context.Context, id string) (*model.Work, error) {
	data, err := r.redis.Get(ctx, workKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrWorkNotFound
		}
		return nil, fmt.Errorf("failed to read work: %w", err)
	}

	var w model.Work
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to decode work: %w", err)
	}
	// Malformed persisted notes are replaced wholesale on load.
	w.Notes = model.NormalizeNotes(w.Notes)
	return &w, nil
}

func (r *RedisWorkRepository) ListByUser(ctx context.Context, userID string) ([]*model.Work, error) {
	ids, err := r.redis.SMembers(ctx, userWorksKey(userID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list works: %w", err)
	}

	works := make([]*model.Work, 0, len(ids))
	for _, id := range ids {
		w, err := r.Get(ctx, id)
		if err != nil {
			if errors.Is(err, ErrWorkNotFound) {
				continue // index entry outlived the row
			}
			return nil, err
		}
		works = append(works, w)
	}
	return works, nil
}

func (r *RedisWorkRepository) Save(ctx context.Context, w *model.Work) error {
	return r.write(ctx, w)
}

func (r *RedisWorkRepository) Delete(ctx context.Context, w *model.Work) error {
	if err := r.redis.Del(ctx, workKey(w.ID)).Err(); err != nil {
		return fmt.Errorf("failed to delete work: %w", err)
	}
	return r.redis.SRem(ctx, userWorksKey(w.UserID), w.ID).Err()
}

func (r *RedisWorkRepository) write(ctx context.Context, w *model.Work) error {
	w.UpdatedAt = time.Now()
	data, err := json.Marshal(w)
	if err != nil {
		return fmt.Errorf("failed to encode work: %w", err)
	}
	return r.redis.Set(ctx, workKey(w.ID), data, 0).Err()
}
