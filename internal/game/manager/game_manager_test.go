package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/models"
	"github.com/boulevardgame/backend/internal/game/state"
	"github.com/boulevardgame/backend/internal/game/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Rules: config.RulesConfig{
			InitialBalance:      1500,
			PassStartBonus:      200,
			LandStartBonus:      250,
			HouseCost:           50,
			JailFee:             50,
			ShortJailSentence:   2,
			LongJailSentence:    3,
			SmallGameMaxPlayers: 3,
		},
		Lobby: config.LobbyConfig{
			MaxPlayers:            8,
			MaxBots:               3,
			MinimumPlayersToStart: 2,
			DisconnectionTimeout:  180,
			IdleGameExpiry:        24,
		},
		Sync: config.SyncConfig{
			SnapshotInterval: 5 * time.Second,
			BotThinkDelay:    100 * time.Millisecond,
		},
	}
}

// memoryHub collects broadcast frames for assertions.
type memoryHub struct {
	mu       sync.Mutex
	messages map[string][][]byte
}

func newMemoryHub() *memoryHub {
	return &memoryHub{messages: make(map[string][][]byte)}
}

func (h *memoryHub) BroadcastToGame(code string, message []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages[code] = append(h.messages[code], message)
}

func (h *memoryHub) count(code string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.messages[code])
}

// recordingQueue counts enqueued intents without applying them.
type recordingQueue struct {
	mu      sync.Mutex
	actions []models.GameAction
}

func (q *recordingQueue) EnqueueAction(action models.GameAction) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.actions = append(q.actions, action)
	return nil
}

func newTestManager(t *testing.T) (*GameManager, *engine.ManualScheduler, *memoryHub) {
	t.Helper()
	sched := engine.NewManualScheduler()
	hub := newMemoryHub()
	gm := NewGameManager(context.Background(), testConfig(), nil, nil, nil, hub, sched, zap.NewNop().Sugar())
	return gm, sched, hub
}

func TestCreateGameSeatsHost(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	assert.True(t, utils.IsValidGameCode(game.Code))
	assert.Equal(t, models.GameStatusLobby, game.Status)
	assert.Equal(t, host.ID, game.HostID)
	assert.True(t, host.IsHost)
	assert.Equal(t, 1500, host.Balance)
	assert.NotEmpty(t, host.SessionID)
}

func TestJoinGameUnknownCode(t *testing.T) {
	gm, _, _ := newTestManager(t)

	_, _, err := gm.JoinGame("000", "Bob")
	assert.ErrorIs(t, err, models.ErrInvalidGameCode)
}

func TestJoinGameAfterStart(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, _, err = gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	_, _, err = gm.JoinGame(game.Code, "Carol")
	assert.ErrorIs(t, err, models.ErrGameAlreadyStarted)
}

func TestJoinGameFullTable(t *testing.T) {
	cfg := testConfig()
	cfg.Lobby.MaxPlayers = 2
	sched := engine.NewManualScheduler()
	gm := NewGameManager(context.Background(), cfg, nil, nil, nil, nil, sched, zap.NewNop().Sugar())

	game, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, _, err = gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)

	_, _, err = gm.JoinGame(game.Code, "Carol")
	assert.ErrorIs(t, err, models.ErrGameFull)
}

func TestPlayersGetDistinctTokens(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	for _, name := range []string{"Bob", "Carol", "Dave"} {
		_, _, err = gm.JoinGame(game.Code, name)
		require.NoError(t, err)
	}

	seen := make(map[string]bool)
	for _, p := range game.Players {
		assert.False(t, seen[p.Token], "token %s assigned twice", p.Token)
		seen[p.Token] = true
	}
}

func TestAddBotLimits(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		bot, err := gm.AddBot(game.Code, host.ID, models.BotLevelEasy)
		require.NoError(t, err)
		assert.True(t, bot.IsBot)
		assert.NotEmpty(t, bot.Name)
	}
	_, err = gm.AddBot(game.Code, host.ID, models.BotLevelEasy)
	assert.Error(t, err)
}

func TestAddBotHostOnly(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)

	_, err = gm.AddBot(game.Code, bob.ID, models.BotLevelEasy)
	assert.Error(t, err)
}

func TestRemoveBot(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	bot, err := gm.AddBot(game.Code, host.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.BotLevelMedium, bot.BotLevel)

	require.NoError(t, gm.RemoveBot(game.Code, host.ID, bot.ID))
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Len(t, fetched.Players, 1)
}

func TestBotRosterFrozenOnceStarted(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	bot, err := gm.AddBot(game.Code, host.ID, "")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	_, err = gm.AddBot(game.Code, host.ID, "")
	assert.ErrorIs(t, err, models.ErrNotInLobby)
	assert.ErrorIs(t, gm.RemoveBot(game.Code, host.ID, bot.ID), models.ErrNotInLobby)
}

func TestStartGameChecks(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	// Alone at the table.
	assert.Error(t, gm.StartGame(game.Code, host.ID))

	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)

	// Not the host.
	assert.Error(t, gm.StartGame(game.Code, bob.ID))

	require.NoError(t, gm.StartGame(game.Code, host.ID))
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, fetched.Status)
	assert.Equal(t, 1, fetched.TurnNumber)

	// Starting twice.
	assert.ErrorIs(t, gm.StartGame(game.Code, host.ID), models.ErrGameAlreadyStarted)
}

func TestActionTaxonomy(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	// Host is on turn, Bob is not.
	err = gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: bob.ID, GameID: game.Code,
	})
	assert.ErrorIs(t, err, models.ErrNotYourTurn)

	err = gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: "ghost", GameID: game.Code,
	})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, models.ErrNotYourTurn)

	err = gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: host.ID, GameID: "999",
	})
	assert.ErrorIs(t, err, models.ErrInvalidGameCode)
}

func TestHumanTurnThenBotsPlay(t *testing.T) {
	gm, sched, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, err = gm.AddBot(game.Code, host.ID, models.BotLevelEasy)
	require.NoError(t, err)
	_, err = gm.AddBot(game.Code, host.ID, models.BotLevelHard)
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	// Host plays the opening turn by hand.
	require.NoError(t, gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: host.ID, GameID: game.Code,
	}))
	require.NoError(t, gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeEndTurn, PlayerID: host.ID, GameID: game.Code,
	}))

	// Both bot turns ride the scheduler; give it room for jail
	// decisions and chained thinking delays.
	for i := 0; i < 6; i++ {
		sched.Advance(150 * time.Millisecond)
	}

	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Equal(t, 2, fetched.TurnNumber)
	assert.Equal(t, host.ID, fetched.CurrentPlayer().ID)
}

func TestLeaveLobbyPromotesHost(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)

	require.NoError(t, gm.LeaveGame(game.Code, host.ID))
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, fetched.HostID)
	assert.Len(t, fetched.Players, 1)
}

func TestLastHumanLeavingClosesLobby(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, err = gm.AddBot(game.Code, host.ID, models.BotLevelEasy)
	require.NoError(t, err)

	require.NoError(t, gm.LeaveGame(game.Code, host.ID))
	_, err = gm.GetGame(game.Code)
	assert.ErrorIs(t, err, models.ErrInvalidGameCode)
}

func TestLeaveActiveGameSkipsTurn(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	require.NoError(t, gm.LeaveGame(game.Code, host.ID))
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Equal(t, bob.ID, fetched.HostID)
	assert.Equal(t, bob.ID, fetched.CurrentPlayer().ID)
	assert.False(t, fetched.PlayerByID(host.ID).Active)
}

func TestDisconnectGracePeriod(t *testing.T) {
	gm, sched, _ := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, bob, err := gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	gm.PlayerDisconnected(game.Code, bob.ID)

	// Reconnect inside the grace period keeps the seat.
	sched.Advance(60 * time.Second)
	gm.PlayerReconnected(game.Code, bob.ID)
	sched.Advance(300 * time.Second)
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.True(t, fetched.PlayerByID(bob.ID).Active)

	// A fresh disconnect left alone goes inactive.
	gm.PlayerDisconnected(game.Code, bob.ID)
	sched.Advance(300 * time.Second)
	fetched, err = gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.False(t, fetched.PlayerByID(bob.ID).Active)
}

func TestSubmitActionPrefersQueue(t *testing.T) {
	cfg := testConfig()
	sched := engine.NewManualScheduler()
	queue := &recordingQueue{}
	store := state.NewMemoryStore()
	gm := NewGameManager(context.Background(), cfg, nil, store, queue, nil, sched, zap.NewNop().Sugar())

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, _, err = gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	require.NoError(t, gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: host.ID, GameID: game.Code,
	}))

	queue.mu.Lock()
	defer queue.mu.Unlock()
	require.Len(t, queue.actions, 1)
	assert.Equal(t, models.ActionTypeRollDice, queue.actions[0].Type)

	// Not applied yet: the worker owns application.
	fetched, err := gm.GetGame(game.Code)
	require.NoError(t, err)
	assert.Equal(t, 0, fetched.CurrentPlayer().Position)
}

func TestStartGamePublishesSnapshot(t *testing.T) {
	cfg := testConfig()
	sched := engine.NewManualScheduler()
	store := state.NewMemoryStore()
	gm := NewGameManager(context.Background(), cfg, nil, store, nil, nil, sched, zap.NewNop().Sugar())

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, _, err = gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	require.NoError(t, gm.StartGame(game.Code, host.ID))

	snap, err := store.LoadSnapshot(context.Background(), game.Code)
	require.NoError(t, err)
	assert.Equal(t, models.GameStatusActive, snap.Status)
	assert.Len(t, snap.Players, 2)
}

func TestBroadcastsReachHub(t *testing.T) {
	gm, _, hub := newTestManager(t)

	game, host, err := gm.CreateGame("Alice")
	require.NoError(t, err)
	_, _, err = gm.JoinGame(game.Code, "Bob")
	require.NoError(t, err)
	joined := hub.count(game.Code)
	assert.Greater(t, joined, 0)

	require.NoError(t, gm.StartGame(game.Code, host.ID))
	require.NoError(t, gm.SubmitAction(models.GameAction{
		Type: models.ActionTypeRollDice, PlayerID: host.ID, GameID: game.Code,
	}))
	assert.Greater(t, hub.count(game.Code), joined)
}

func TestCleanupStaleGames(t *testing.T) {
	gm, _, _ := newTestManager(t)

	game, _, err := gm.CreateGame("Alice")
	require.NoError(t, err)

	sess := gm.session(game.Code)
	sess.mu.Lock()
	sess.game.LastActivity = time.Now().Add(-48 * time.Hour)
	sess.mu.Unlock()

	removed := gm.CleanupStaleGames()
	assert.Equal(t, []string{game.Code}, removed)
	_, err = gm.GetGame(game.Code)
	assert.ErrorIs(t, err, models.ErrInvalidGameCode)
}
