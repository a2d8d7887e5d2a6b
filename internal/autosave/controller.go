package autosave

import (
	"context"
	"reflect"
	"sync"
	"time"

	"github.com/bep/debounce"

	"github.com/tracklight/api/internal/model"
)

// State is the save lifecycle of an edited work.
type State string

const (
	StateIdle   State = "idle"
	StateDirty  State = "dirty"
	StateSaving State = "saving"
	StateSaved  State = "saved"
	StateError  State = "error"
)

// SaveFunc persists a snapshot of a work.
type SaveFunc func(ctx context.Context, work *model.Work) error

// Controller debounces rapid edits to a single work into periodic saves.
// Edits arrive via Queue; a save fires after the flush delay passes with no
// further edits. Identical snapshots are dropped before they mark the
// controller dirty, so cursor-only churn never produces writes.
type Controller struct {
	mu        sync.Mutex
	save      SaveFunc
	debounced func(func())
	equal     func(a, b *model.Work) bool
	onState   func(State)

	state     State
	pending   *model.Work
	lastSaved *model.Work
	lastErr   error
}

// Option configures a Controller.
type Option func(*Controller)

// WithEqual replaces the snapshot comparison used to suppress no-op saves.
func WithEqual(equal func(a, b *model.Work) bool) Option {
	return func(c *Controller) { c.equal = equal }
}

// WithStateListener registers a callback fired on every state transition.
func WithStateListener(onState func(State)) Option {
	return func(c *Controller) { c.onState = onState }
}

func NewController(save SaveFunc, flushDelay time.Duration, opts ...Option) *Controller {
	if flushDelay <= 0 {
		flushDelay = 2 * time.Second
	}
	c := &Controller{
		save:      save,
		debounced: debounce.New(flushDelay),
		equal:     func(a, b *model.Work) bool { return reflect.DeepEqual(a, b) },
		state:     StateIdle,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Queue records an edited snapshot and schedules a flush. Snapshots equal to
// the last saved one are ignored.
func (c *Controller) Queue(work *model.Work) {
	c.mu.Lock()
	if c.lastSaved != nil && c.equal(c.lastSaved, work) {
		c.mu.Unlock()
		return
	}
	c.pending = work
	c.setStateLocked(StateDirty)
	c.mu.Unlock()

	c.debounced(func() {
		c.Flush(context.Background())
	})
}

// Flush persists the pending snapshot immediately, bypassing the delay.
// It is a no-op when nothing is pending.
func (c *Controller) Flush(ctx context.Context) {
	c.mu.Lock()
	work := c.pending
	if work == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.setStateLocked(StateSaving)
	c.mu.Unlock()

	err := c.save(ctx, work)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.lastErr = err
		// Keep the snapshot so the next Queue or Flush retries it,
		// unless a newer edit already replaced it.
		if c.pending == nil {
			c.pending = work
		}
		c.setStateLocked(StateError)
		return
	}
	c.lastErr = nil
	c.lastSaved = work
	if c.pending == nil {
		c.setStateLocked(StateSaved)
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error from the most recent failed save, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) setStateLocked(s State) {
	if c.state == s {
		return
	}
	c.state = s
	if c.onState != nil {
		c.onState(s)
	}
}
