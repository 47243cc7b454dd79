package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/models"
)

type stubQueue struct {
	actions []models.GameAction
	err     error
}

func (q *stubQueue) EnqueueAction(a models.GameAction) error {
	if q.err != nil {
		return q.err
	}
	q.actions = append(q.actions, a)
	return nil
}

// failingStore errors on everything, simulating a dead backend.
type failingStore struct{}

func (failingStore) SaveSnapshot(context.Context, string, *models.Game) error {
	return errors.New("connection refused")
}
func (failingStore) LoadSnapshot(context.Context, string) (*models.Game, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Watch(context.Context, string) (<-chan *models.Game, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Remove(context.Context, string) error {
	return errors.New("connection refused")
}

func sampleGame(code string) *models.Game {
	return &models.Game{
		Code:    code,
		Status:  models.GameStatusActive,
		Players: []models.Player{{ID: "p1", Name: "Ana", Balance: 1500, Active: true, IsHost: true}},
		HostID:  "p1",
		Properties: map[int]*models.PropertyState{
			6: {OwnerID: "p1"},
		},
	}
}

func hostAdapter(store Store, sched engine.Scheduler, game *models.Game) *Adapter {
	return NewAdapter(AdapterConfig{
		Store:            store,
		Actions:          &stubQueue{},
		Scheduler:        sched,
		Logger:           zap.NewNop().Sugar(),
		Code:             game.Code,
		Host:             true,
		SnapshotInterval: 5 * time.Second,
		Snapshot:         func() *models.Game { return game },
	})
}

func TestPublishAndResyncRoundTrip(t *testing.T) {
	store := NewMemoryStore()
	game := sampleGame("321")
	a := hostAdapter(store, engine.NewManualScheduler(), game)

	a.PublishSnapshot(context.Background())
	got, err := a.Resync(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "321", got.Code)
	require.Len(t, got.Players, 1)
	assert.Equal(t, "Ana", got.Players[0].Name)
	require.NotNil(t, got.Properties[6])
	assert.Equal(t, "p1", got.Properties[6].OwnerID)
}

func TestResyncUnknownCode(t *testing.T) {
	a := hostAdapter(NewMemoryStore(), engine.NewManualScheduler(), sampleGame("555"))
	_, err := a.Resync(context.Background())
	assert.ErrorIs(t, err, models.ErrInvalidGameCode)
}

func TestAutoSyncPublishesOnSchedule(t *testing.T) {
	store := NewMemoryStore()
	game := sampleGame("777")
	sched := engine.NewManualScheduler()
	a := hostAdapter(store, sched, game)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	a.StartAutoSync(ctx)

	_, err := store.LoadSnapshot(ctx, "777")
	assert.ErrorIs(t, err, models.ErrInvalidGameCode, "nothing published before the first tick")

	sched.Advance(5 * time.Second)
	got, err := store.LoadSnapshot(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, "777", got.Code)

	// Mutate and advance again: the next tick carries the new state.
	game.TurnNumber = 9
	sched.Advance(5 * time.Second)
	got, err = store.LoadSnapshot(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, 9, got.TurnNumber)

	a.StopAutoSync()
	assert.Equal(t, 0, sched.Pending())
}

func TestWatchReceivesSnapshots(t *testing.T) {
	store := NewMemoryStore()
	game := sampleGame("live")
	a := hostAdapter(store, engine.NewManualScheduler(), game)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := a.WatchSnapshots(ctx)
	require.NoError(t, err)

	a.PublishSnapshot(ctx)
	select {
	case snap := <-ch:
		assert.Equal(t, "live", snap.Code)
	case <-time.After(time.Second):
		t.Fatal("no snapshot delivered")
	}
}

func TestStoreFailureDegradesToLocalMode(t *testing.T) {
	game := sampleGame("900")
	a := hostAdapter(failingStore{}, engine.NewManualScheduler(), game)

	assert.False(t, a.Offline())
	a.PublishSnapshot(context.Background())
	assert.True(t, a.Offline(), "failed publish flips to local mode")

	// Local mode rejects remote intents so the caller applies locally.
	err := a.SubmitAction(models.GameAction{Type: models.ActionTypeEndTurn, GameID: "900", PlayerID: "p1"})
	assert.ErrorIs(t, err, models.ErrStoreUnavailable)
}

func TestPublishRecoversFromLocalMode(t *testing.T) {
	game := sampleGame("901")
	sched := engine.NewManualScheduler()
	broken := hostAdapter(failingStore{}, sched, game)
	broken.PublishSnapshot(context.Background())
	require.True(t, broken.Offline())

	healthy := hostAdapter(NewMemoryStore(), sched, game)
	healthy.degrade(errors.New("previous outage"))
	require.True(t, healthy.Offline())
	healthy.PublishSnapshot(context.Background())
	assert.False(t, healthy.Offline(), "a successful publish ends local mode")
}

func TestSubmitActionQueuesInOrder(t *testing.T) {
	q := &stubQueue{}
	a := NewAdapter(AdapterConfig{
		Store:     NewMemoryStore(),
		Actions:   q,
		Scheduler: engine.NewManualScheduler(),
		Logger:    zap.NewNop().Sugar(),
		Code:      "222",
		Host:      false,
	})

	require.NoError(t, a.SubmitAction(models.GameAction{Type: models.ActionTypeRollDice, PlayerID: "p2", GameID: "222"}))
	require.NoError(t, a.SubmitAction(models.GameAction{Type: models.ActionTypeEndTurn, PlayerID: "p2", GameID: "222"}))
	require.Len(t, q.actions, 2)
	assert.Equal(t, models.ActionTypeRollDice, q.actions[0].Type)
	assert.Equal(t, models.ActionTypeEndTurn, q.actions[1].Type)
}
