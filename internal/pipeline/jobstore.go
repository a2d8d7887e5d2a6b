package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tracklight/api/internal/model"
)

// JobStore persists the dispatch ledger.
type JobStore interface {
	SaveJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, id string) (*model.Job, error)
}

// RedisJobStore keeps job rows under job:<id> for 24 hours, matching the
// task retention window.
type RedisJobStore struct {
	redis *redis.Client
}

func NewRedisJobStore(redisClient *redis.Client) *RedisJobStore {
	return &RedisJobStore{redis: redisClient}
}

type persistedJob struct {
	model.Job
	RawPayload []byte `json:"rawPayload,omitempty"`
}

func (s *RedisJobStore) SaveJob(ctx context.Context, job *model.Job) error {
	data, err := json.Marshal(persistedJob{Job: *job, RawPayload: job.Payload})
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}
	return s.redis.Set(ctx, fmt.Sprintf("job:%s", job.ID), data, 24*time.Hour).Err()
}

func (s *RedisJobStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	data, err := s.redis.Get(ctx, fmt.Sprintf("job:%s", id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to read job: %w", err)
	}

	var p persistedJob
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to decode job: %w", err)
	}
	job := p.Job
	job.Payload = p.RawPayload
	return &job, nil
}

// MemoryJobStore is the in-process ledger used by tests.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]model.Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]model.Job)}
}

func (s *MemoryJobStore) SaveJob(ctx context.Context, job *model.Job) error {
	s.mu.Lock()
	s.jobs[job.ID] = *job
	s.mu.Unlock()
	return nil
}

func (s *MemoryJobStore) GetJob(ctx context.Context, id string) (*model.Job, error) {
	s.mu.RLock()
	job, ok := s.jobs[id]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := job
	return &cp, nil
}
