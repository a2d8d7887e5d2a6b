package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/repo"
)

func seedWork(t *testing.T, works *repo.MemoryWorkRepository, w *model.Work) {
	t.Helper()
	if w.Notes == nil {
		w.Notes = model.DefaultNotes()
	}
	if err := works.Create(context.Background(), w); err != nil {
		t.Fatalf("seed: %v", err)
	}
}

func TestPoller_SettledWorkReturnsImmediately(t *testing.T) {
	works := repo.NewMemoryWorkRepository()
	seedWork(t, works, &model.Work{ID: "w1", UserID: "u1", Status: model.StatusCompleted})

	p := NewPoller(works, 0)
	var seen []model.WorkStatus
	err := p.Watch(context.Background(), "w1", func(w *model.Work) {
		seen = append(seen, w.Status)
	})
	if err != nil {
		t.Fatalf("watch: %v", err)
	}
	if len(seen) != 1 || seen[0] != model.StatusCompleted {
		t.Errorf("seen %v, want one completed snapshot", seen)
	}
}

func TestPoller_ObservesSettlement(t *testing.T) {
	works := repo.NewMemoryWorkRepository()
	seedWork(t, works, &model.Work{ID: "w1", UserID: "u1", Status: model.StatusAnalyzing})

	p := NewPoller(works, 0)
	p.interval = 10 * time.Millisecond // shorten for the test

	var mu sync.Mutex
	var seen []model.WorkStatus
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(context.Background(), "w1", func(w *model.Work) {
			mu.Lock()
			seen = append(seen, w.Status)
			mu.Unlock()
		})
	}()

	time.Sleep(25 * time.Millisecond)
	w, err := works.Get(context.Background(), "w1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	w.Status = model.StatusCompleted
	if err := works.Save(context.Background(), w); err != nil {
		t.Fatalf("save: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("watch: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop after settlement")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != model.StatusAnalyzing || seen[1] != model.StatusCompleted {
		t.Errorf("seen %v, want [analyzing completed]", seen)
	}
}

func TestPoller_CancelStopsWatch(t *testing.T) {
	works := repo.NewMemoryWorkRepository()
	seedWork(t, works, &model.Work{ID: "w1", UserID: "u1", Status: model.StatusAnalyzing})

	p := NewPoller(works, 0)
	p.interval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- p.Watch(ctx, "w1", nil)
	}()

	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("got %v, want context.Canceled", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}

func TestPoller_MissingWork(t *testing.T) {
	p := NewPoller(repo.NewMemoryWorkRepository(), 0)
	if err := p.Watch(context.Background(), "nope", nil); !errors.Is(err, repo.ErrWorkNotFound) {
		t.Errorf("got %v, want ErrWorkNotFound", err)
	}
}

func TestNewPoller_ClampsInterval(t *testing.T) {
	works := repo.NewMemoryWorkRepository()
	if p := NewPoller(works, time.Second); p.interval != minInterval {
		t.Errorf("short interval not clamped up: %v", p.interval)
	}
	if p := NewPoller(works, time.Minute); p.interval != maxInterval {
		t.Errorf("long interval not clamped down: %v", p.interval)
	}
	if p := NewPoller(works, 0); p.interval != defaultInterval {
		t.Errorf("zero interval not defaulted: %v", p.interval)
	}
	if p := NewPoller(works, 8*time.Second); p.interval != 8*time.Second {
		t.Errorf("in-range interval altered: %v", p.interval)
	}
}
