package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"

	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/pipeline"
	"github.com/tracklight/api/internal/repo"
)

// stubCompleter scripts text-service responses call by call.
type stubCompleter struct {
	configured bool
	outputs    []string
	errs       []error
	calls      int
}

func (s *stubCompleter) ChatCompletion(ctx context.Context, system, user string) (string, error) {
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return "", s.errs[i]
	}
	if i < len(s.outputs) {
		return s.outputs[i], nil
	}
	return "", errors.New("unscripted completion call")
}

func (s *stubCompleter) IsConfigured() bool { return s.configured }

// fakeAnalyzer returns fixed features.
type fakeAnalyzer struct {
	feats *Features
	err   error
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, in AnalysisInput) (*Features, error) {
	if f.err != nil {
		return nil, f.err
	}
	cp := *f.feats
	return &cp, nil
}

func pianoFeatures() *Features {
	return &Features{
		IsPiano:        true,
		Key:            "C Major",
		Tempo:          76,
		Mood:           model.MoodSerene,
		PrimaryGenre:   "Ambient",
		SecondaryGenre: "New Age",
	}
}

// fakeEnqueuer captures tasks without a broker.
type fakeEnqueuer struct {
	tasks []*asynq.Task
	err   error
}

func (f *fakeEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{ID: "t1"}, nil
}

func newDispatcher(enq pipeline.Enqueuer) *pipeline.Dispatcher {
	return pipeline.NewDispatcher(pipeline.NewMemoryJobStore(), enq)
}

func seedWork(t *testing.T, works repo.WorkRepository, w *model.Work) *model.Work {
	t.Helper()
	if w.Notes == nil {
		w.Notes = model.DefaultNotes()
	}
	if w.CreatedAt.IsZero() {
		w.CreatedAt = time.Now()
	}
	if err := works.Create(context.Background(), w); err != nil {
		t.Fatalf("failed to seed work: %v", err)
	}
	return w
}

func boolPtr(b bool) *bool { return &b }

func strPtr(s string) *string { return &s }
