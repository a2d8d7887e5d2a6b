package repo

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/tracklight/api/internal/model"
)

// MemoryWorkRepository is an in-process WorkRepository used by tests and by
// local development without Redis. Rows are deep-copied through JSON so
// callers never share memory with the store, matching the Redis semantics.
type MemoryWorkRepository struct {
	mu    sync.RWMutex
	works map[string][]byte
}

func NewMemoryWorkRepository() *MemoryWorkRepository {
	return &MemoryWorkRepository{works: make(map[string][]byte)}
}

func (r *MemoryWorkRepository) Create(ctx context.Context, w *model.Work) error {
	return r.Save(ctx, w)
}

func (r *MemoryWorkRepository) Get(ctx context.Context, id string) (*model.Work, error) {
	r.mu.RLock()
	data, ok := r.works[id]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrWorkNotFound
	}

	var w model.Work
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	w.Notes = model.NormalizeNotes(w.Notes)
	return &w, nil
}

func (r *MemoryWorkRepository) ListByUser(ctx context.Context, userID string) ([]*model.Work, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var works []*model.Work
	for _, data := range r.works {
		var w model.Work
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, err
		}
		if w.UserID == userID {
			w.Notes = model.NormalizeNotes(w.Notes)
			works = append(works, &w)
		}
	}
	return works, nil
}

func (r *MemoryWorkRepository) Save(ctx context.Context, w *model.Work) error {
	w.UpdatedAt = time.Now()
	data, err := json.Marshal(w)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.works[w.ID] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryWorkRepository) Delete(ctx context.Context, w *model.Work) error {
	r.mu.Lock()
	delete(r.works, w.ID)
	r.mu.Unlock()
	return nil
}
