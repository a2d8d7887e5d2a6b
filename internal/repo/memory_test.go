package repo

import (
	"context"
	"errors"
	"testing"

	"github.com/tracklight/api/internal/model"
)

func TestMemoryRepo_RoundTrip(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryWorkRepository()

	w := &model.Work{ID: "w1", UserID: "u1", Status: model.StatusUploaded, Notes: model.DefaultNotes()}
	if err := r.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != "u1" || got.Status != model.StatusUploaded {
		t.Errorf("round trip lost fields: %+v", got)
	}
	if got.UpdatedAt.IsZero() {
		t.Error("save must stamp UpdatedAt")
	}

	// Rows are deep-copied: mutating the returned value must not leak back.
	got.PrimaryGenre = "Ambient"
	again, _ := r.Get(ctx, "w1")
	if again.PrimaryGenre != "" {
		t.Error("returned row shares memory with the store")
	}
}

func TestMemoryRepo_NormalizesNotesOnLoad(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryWorkRepository()

	w := &model.Work{ID: "w1", UserID: "u1", Status: model.StatusUploaded,
		Notes: []model.Note{{ID: "bogus", Title: "Bogus"}}}
	if err := r.Create(ctx, w); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := r.Get(ctx, "w1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.Notes) != 4 || got.Notes[0].ID != model.NoteZoneStructure {
		t.Errorf("malformed notes not normalized: %+v", got.Notes)
	}
}

func TestMemoryRepo_ListByUser(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryWorkRepository()
	_ = r.Create(ctx, &model.Work{ID: "w1", UserID: "u1", Notes: model.DefaultNotes()})
	_ = r.Create(ctx, &model.Work{ID: "w2", UserID: "u1", Notes: model.DefaultNotes()})
	_ = r.Create(ctx, &model.Work{ID: "w3", UserID: "u2", Notes: model.DefaultNotes()})

	works, err := r.ListByUser(ctx, "u1")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(works) != 2 {
		t.Errorf("got %d works, want 2", len(works))
	}
}

func TestMemoryRepo_Delete(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryWorkRepository()
	w := &model.Work{ID: "w1", UserID: "u1", Notes: model.DefaultNotes()}
	_ = r.Create(ctx, w)

	if err := r.Delete(ctx, w); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := r.Get(ctx, "w1"); !errors.Is(err, ErrWorkNotFound) {
		t.Errorf("got %v, want ErrWorkNotFound", err)
	}
}
