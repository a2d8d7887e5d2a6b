package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/tracklight/api/internal/model"
	"github.com/tracklight/api/internal/repo"
)

const (
	minInterval     = 5 * time.Second
	maxInterval     = 15 * time.Second
	defaultInterval = 10 * time.Second
)

// Poller re-reads a work row on a fixed interval while a background stage is
// still in flight. It exists to reconcile observers with the persisted row:
// if a worker's push notification was dropped, the settled status still shows
// up here within one interval.
type Poller struct {
	works    repo.WorkRepository
	interval time.Duration

	// active decides whether polling should continue. Defaults to
	// "status is analyzing".
	active func(*model.Work) bool
}

func NewPoller(works repo.WorkRepository, interval time.Duration) *Poller {
	if interval <= 0 {
		interval = defaultInterval
	}
	if interval < minInterval {
		interval = minInterval
	}
	if interval > maxInterval {
		interval = maxInterval
	}
	return &Poller{
		works:    works,
		interval: interval,
		active: func(w *model.Work) bool {
			return w.Status == model.StatusAnalyzing
		},
	}
}

// SetActive overrides the continuation predicate.
func (p *Poller) SetActive(active func(*model.Work) bool) {
	if active != nil {
		p.active = active
	}
}

// Watch polls the work until it settles or ctx is cancelled. onChange fires
// once immediately and then once per observed status change, including the
// final settled snapshot. Transient read errors are skipped; a deleted work
// ends the watch.
func (p *Poller) Watch(ctx context.Context, workID string, onChange func(*model.Work)) error {
	work, err := p.works.Get(ctx, workID)
	if err != nil {
		return err
	}
	lastStatus := work.Status
	if onChange != nil {
		onChange(work)
	}
	if !p.active(work) {
		return nil
	}

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			work, err := p.works.Get(ctx, workID)
			if err != nil {
				if errors.Is(err, repo.ErrWorkNotFound) {
					return err
				}
				continue
			}
			if work.Status != lastStatus {
				lastStatus = work.Status
				if onChange != nil {
					onChange(work)
				}
			}
			if !p.active(work) {
				return nil
			}
		}
	}
}
