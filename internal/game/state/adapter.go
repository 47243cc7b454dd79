package state

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/models"
)

// Adapter ties one game to the shared store. In host mode it is the
// single writer: it publishes authoritative snapshots on demand and on
// a fixed cadence. In guest mode it submits intents and applies
// incoming snapshots. When the store goes away, the adapter flips to
// local mode instead of stalling the game; reconnection is a full
// snapshot reload, never a replay.
type Adapter struct {
	store    Store
	actions  ActionQueue
	sched    engine.Scheduler
	logger   *zap.SugaredLogger
	code     string
	host     bool
	interval time.Duration

	// snapshot pulls the current authoritative state; the owner is
	// expected to hold its own lock inside.
	snapshot func() *models.Game

	mu      sync.Mutex
	offline bool
	cancel  engine.CancelFunc
}

// AdapterConfig wires an Adapter.
type AdapterConfig struct {
	Store            Store
	Actions          ActionQueue
	Scheduler        engine.Scheduler
	Logger           *zap.SugaredLogger
	Code             string
	Host             bool
	SnapshotInterval time.Duration
	Snapshot         func() *models.Game
}

// NewAdapter builds an adapter for one game.
func NewAdapter(cfg AdapterConfig) *Adapter {
	return &Adapter{
		store:    cfg.Store,
		actions:  cfg.Actions,
		sched:    cfg.Scheduler,
		logger:   cfg.Logger,
		code:     cfg.Code,
		host:     cfg.Host,
		interval: cfg.SnapshotInterval,
		snapshot: cfg.Snapshot,
	}
}

// Offline reports whether the adapter has degraded to local mode.
func (a *Adapter) Offline() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.offline
}

// PublishSnapshot pushes the current authoritative state. Host only;
// guests never write snapshots. A store failure degrades to local mode
// and is not an error for the caller: play continues.
func (a *Adapter) PublishSnapshot(ctx context.Context) {
	if !a.host {
		return
	}
	game := a.snapshot()
	if game == nil {
		return
	}
	if err := a.store.SaveSnapshot(ctx, a.code, game); err != nil {
		a.degrade(err)
		return
	}
	a.recover()
}

// StartAutoSync publishes a snapshot every interval until StopAutoSync
// or ctx cancellation. Pacing runs on the Scheduler, so tests drive it
// with logical time.
func (a *Adapter) StartAutoSync(ctx context.Context) {
	if !a.host || a.interval <= 0 {
		return
	}
	a.mu.Lock()
	if a.cancel != nil {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	var tick func()
	tick = func() {
		if ctx.Err() != nil {
			return
		}
		a.PublishSnapshot(ctx)
		a.mu.Lock()
		a.cancel = a.sched.After(a.interval, tick)
		a.mu.Unlock()
	}

	a.mu.Lock()
	a.cancel = a.sched.After(a.interval, tick)
	a.mu.Unlock()
}

// StopAutoSync cancels the periodic snapshot.
func (a *Adapter) StopAutoSync() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
}

// SubmitAction routes an intent toward the host. In local mode there
// is no host to reach and the caller applies the action directly.
func (a *Adapter) SubmitAction(action models.GameAction) error {
	if a.Offline() {
		return models.ErrStoreUnavailable
	}
	if err := a.actions.EnqueueAction(action); err != nil {
		a.degrade(err)
		return models.ErrStoreUnavailable
	}
	return nil
}

// Resync does the full-reload reconnection path: one snapshot fetch,
// no incremental catch-up.
func (a *Adapter) Resync(ctx context.Context) (*models.Game, error) {
	game, err := a.store.LoadSnapshot(ctx, a.code)
	if err != nil {
		if errors.Is(err, models.ErrInvalidGameCode) {
			return nil, err
		}
		a.degrade(err)
		return nil, models.ErrStoreUnavailable
	}
	a.recover()
	return game, nil
}

// WatchSnapshots streams host snapshots for guest-side application.
func (a *Adapter) WatchSnapshots(ctx context.Context) (<-chan *models.Game, error) {
	ch, err := a.store.Watch(ctx, a.code)
	if err != nil {
		a.degrade(err)
		return nil, models.ErrStoreUnavailable
	}
	return ch, nil
}

// Teardown removes the shared document when the game ends.
func (a *Adapter) Teardown(ctx context.Context) {
	if !a.host {
		return
	}
	a.StopAutoSync()
	if err := a.store.Remove(ctx, a.code); err != nil {
		a.logger.Warnw("Failed to remove game document", "gameCode", a.code, "error", err)
	}
}

func (a *Adapter) degrade(err error) {
	a.mu.Lock()
	wasOffline := a.offline
	a.offline = true
	a.mu.Unlock()
	if !wasOffline {
		a.logger.Warnw("State store unavailable, continuing in local mode",
			"gameCode", a.code, "error", err)
	}
}

func (a *Adapter) recover() {
	a.mu.Lock()
	wasOffline := a.offline
	a.offline = false
	a.mu.Unlock()
	if wasOffline {
		a.logger.Infow("State store reachable again, resuming sync", "gameCode", a.code)
	}
}
