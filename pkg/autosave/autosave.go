// Package autosave keeps project storage in step with an editing session.
//
// A Coordinator watches an editor.Store and saves after a quiet period with
// no graph or title edits. At most one save is in flight at a time; edits
// that come due while a save is outstanding are folded into a single
// follow-up save of the latest state.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/chive/backend/pkg/editor"
	"github.com/chive/backend/pkg/logger"
	"github.com/chive/backend/pkg/project"
)

const (
	DefaultQuietPeriod = 2000 * time.Millisecond
	DefaultSaveTimeout = 30 * time.Second
)

var ErrNotLoaded = errors.New("session has not finished loading")

// Storage persists a project document and returns what storage assigned.
type Storage interface {
	SaveProject(ctx context.Context, p project.Project) (project.Info, error)
}

type Coordinator struct {
	store       *editor.Store
	storage     Storage
	clock       clockwork.Clock
	quiet       time.Duration
	saveTimeout time.Duration

	mu       sync.Mutex
	timer    clockwork.Timer
	gen      uint64
	inflight bool
	pending  bool
	// waiters are flushes waiting for the next save to finish.
	waiters []chan error

	onSubscribe func()
	onArm       func(gen uint64)
}

type Option func(*Coordinator)

func WithClock(clock clockwork.Clock) Option {
	return func(c *Coordinator) { c.clock = clock }
}

func WithQuietPeriod(d time.Duration) Option {
	return func(c *Coordinator) { c.quiet = d }
}

// WithSaveTimeout bounds each storage call.
func WithSaveTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.saveTimeout = d }
}

func New(store *editor.Store, storage Storage, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		storage:     storage,
		clock:       clockwork.NewRealClock(),
		quiet:       DefaultQuietPeriod,
		saveTimeout: DefaultSaveTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run watches the store until ctx is done or the store closes its
// subscriptions. A save already in flight when Run returns still completes.
func (c *Coordinator) Run(ctx context.Context) error {
	updates, unsubscribe := c.store.Subscribe()
	defer unsubscribe()
	defer c.disarm()
	if c.onSubscribe != nil {
		c.onSubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if editedAfterLoad(snap) {
				c.arm()
			}
		}
	}
}

// editedAfterLoad reports whether snap carries a graph or title edit made
// after the session finished loading. Edits merged into the load
// notification itself predate the load and are ignored.
func editedAfterLoad(snap editor.Snapshot) bool {
	return snap.Loaded &&
		snap.Version > snap.LoadVersion &&
		snap.Changed&(editor.ChangeGraph|editor.ChangeTitle) != 0
}

// Flush saves the current state now, without waiting for the quiet period,
// and returns the outcome of that save. If a save is in flight, Flush waits
// for the follow-up save that includes the current state.
func (c *Coordinator) Flush(ctx context.Context) error {
	if !c.store.Snapshot().Loaded {
		return ErrNotLoaded
	}

	done := make(chan error, 1)
	c.mu.Lock()
	c.stopTimerLocked()
	c.waiters = append(c.waiters, done)
	c.startSaveLocked()
	c.mu.Unlock()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// arm (re)starts the quiet-period timer. A timer that fires after it was
// superseded sees a stale generation and does nothing.
func (c *Coordinator) arm() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.stopTimerLocked()
	gen := c.gen
	c.timer = c.clock.AfterFunc(c.quiet, func() { c.fire(gen) })
	if c.onArm != nil {
		c.onArm(gen)
	}
}

func (c *Coordinator) disarm() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopTimerLocked()
}

func (c *Coordinator) stopTimerLocked() {
	c.gen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

func (c *Coordinator) fire(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if gen != c.gen {
		return
	}
	c.timer = nil
	c.startSaveLocked()
}

func (c *Coordinator) startSaveLocked() {
	if c.inflight {
		c.pending = true
		return
	}
	c.inflight = true
	waiters := c.waiters
	c.waiters = nil
	go c.save(waiters)
}

func (c *Coordinator) save(waiters []chan error) {
	snap := c.store.Snapshot()
	p := project.ToProject(snap.Graph, snap.Title, snap.Project, c.clock.Now())

	ctx, cancel := context.WithTimeout(context.Background(), c.saveTimeout)
	saved, err := c.storage.SaveProject(ctx, p)
	cancel()

	if err != nil {
		logger.Error("Failed to save project", "project", p.ID, "title", p.Title, "err", err)
	} else {
		c.store.MarkSaved(saved)
		logger.Debug("Saved project", "project", saved.ID, "updated_at", saved.UpdatedAt)
	}
	for _, w := range waiters {
		w <- err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight = false
	if c.pending {
		c.pending = false
		c.startSaveLocked()
	}
}
