package manager

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/db/mongodb"
	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/models"
	"github.com/boulevardgame/backend/internal/game/state"
	"github.com/boulevardgame/backend/internal/game/utils"
)

// Broadcaster pushes a message to every client watching a game.
type Broadcaster interface {
	BroadcastToGame(code string, message []byte)
}

// playerTokens are handed out in join order; a leaving player frees
// theirs for the next joiner.
var playerTokens = []string{"🎩", "🚗", "🐈", "🐕", "⛵", "👞", "🧵", "🛵"}

// GameManager owns every live game: the lobby roster before start and
// the engine plus sync adapter once a game is in play. All gameplay
// mutations go through ApplyAction under the per-game lock, so the
// engine itself stays single-threaded.
type GameManager struct {
	ctx        context.Context
	cfg        *config.Config
	store      *mongodb.GameStore
	stateStore state.Store
	actions    state.ActionQueue
	hub        Broadcaster
	sched      engine.Scheduler
	logger     *zap.SugaredLogger

	rules engine.Rules

	mu       sync.RWMutex
	sessions map[string]*session // keyed by game code
}

// session is one live game. The mutex guards the game document and the
// engine together; the adapter has its own locking.
type session struct {
	mu      sync.Mutex
	game    *models.Game
	eng     *engine.Engine
	adapter *state.Adapter
	policy  *engine.BotPolicy
	rng     *rand.Rand
}

// NewGameManager creates a manager. store, stateStore, actions and hub
// may each be nil: the manager then runs purely in memory, which is how
// the simulator and the tests use it.
func NewGameManager(ctx context.Context, cfg *config.Config, store *mongodb.GameStore, stateStore state.Store, actions state.ActionQueue, hub Broadcaster, sched engine.Scheduler, logger *zap.SugaredLogger) *GameManager {
	gm := &GameManager{
		ctx:        ctx,
		cfg:        cfg,
		store:      store,
		stateStore: stateStore,
		actions:    actions,
		hub:        hub,
		sched:      sched,
		logger:     logger,
		rules:      rulesFromConfig(cfg),
		sessions:   make(map[string]*session),
	}

	go gm.runCleanupTask()

	return gm
}

// SetHub sets the broadcast hub after construction. The hub needs the
// manager for presence callbacks, so one of them has to be wired late.
func (gm *GameManager) SetHub(hub Broadcaster) {
	gm.hub = hub
}

func rulesFromConfig(cfg *config.Config) engine.Rules {
	r := engine.DefaultRules()
	if cfg == nil {
		return r
	}
	rc := cfg.Rules
	if rc.InitialBalance > 0 {
		r.InitialBalance = rc.InitialBalance
	}
	if rc.PassStartBonus > 0 {
		r.PassStartBonus = rc.PassStartBonus
	}
	if rc.LandStartBonus > 0 {
		r.LandStartBonus = rc.LandStartBonus
	}
	if rc.HouseCost > 0 {
		r.HouseCost = rc.HouseCost
	}
	if rc.JailFee > 0 {
		r.JailFee = rc.JailFee
	}
	if rc.ShortJailSentence > 0 {
		r.ShortJailSentence = rc.ShortJailSentence
	}
	if rc.LongJailSentence > 0 {
		r.LongJailSentence = rc.LongJailSentence
	}
	if rc.SmallGameMaxPlayers > 0 {
		r.SmallGameMaxPlayers = rc.SmallGameMaxPlayers
	}
	return r
}

func (gm *GameManager) session(code string) *session {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	return gm.sessions[code]
}

// CreateGame opens a new lobby with the creator as host and returns
// the game together with the host's seat.
func (gm *GameManager) CreateGame(hostName string) (*models.Game, *models.Player, error) {
	code, err := gm.uniqueCode()
	if err != nil {
		return nil, nil, err
	}

	if hostName == "" {
		hostName = "Joueur 1"
	}

	now := time.Now()
	host := models.Player{
		ID:        uuid.NewString(),
		Name:      hostName,
		Token:     playerTokens[0],
		Balance:   gm.rules.InitialBalance,
		Active:    true,
		IsHost:    true,
		SessionID: uuid.NewString(),
	}

	game := &models.Game{
		Code:         code,
		Status:       models.GameStatusLobby,
		CreatedAt:    now,
		UpdatedAt:    now,
		LastActivity: now,
		Players:      []models.Player{host},
		HostID:       host.ID,
		MaxPlayers:   gm.cfg.Lobby.MaxPlayers,
		Properties:   make(map[int]*models.PropertyState),
	}

	if gm.store != nil {
		if err := gm.store.CreateGame(gm.ctx, game); err != nil {
			return nil, nil, fmt.Errorf("failed to store game: %w", err)
		}
	} else {
		game.ID = primitive.NewObjectID()
	}

	sess := &session{game: game}
	gm.mu.Lock()
	gm.sessions[code] = sess
	gm.mu.Unlock()

	gm.logger.Infow("created game", "code", code, "host", host.ID)
	return game, &game.Players[0], nil
}

// uniqueCode draws 3-digit codes until one is free. Codes are meant to
// be short and shareable, not secret, so collisions with finished games
// are fine; only live or stored open games block a code.
func (gm *GameManager) uniqueCode() (string, error) {
	for attempt := 0; attempt < 100; attempt++ {
		code, err := utils.GenerateGameCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate game code: %w", err)
		}
		if gm.session(code) != nil {
			continue
		}
		if gm.store != nil {
			if _, err := gm.store.GetGameByCode(gm.ctx, code); err == nil {
				continue
			}
		}
		return code, nil
	}
	return "", fmt.Errorf("no free game code after 100 attempts")
}

// JoinGame seats a new player in a lobby.
func (gm *GameManager) JoinGame(code, name string) (*models.Game, *models.Player, error) {
	sess := gm.session(code)
	if sess == nil {
		return nil, nil, models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	game := sess.game
	if game.Status != models.GameStatusLobby {
		return nil, nil, models.ErrGameAlreadyStarted
	}
	if len(game.Players) >= game.MaxPlayers {
		return nil, nil, models.ErrGameFull
	}

	if name == "" {
		name = fmt.Sprintf("Joueur %d", len(game.Players)+1)
	}

	player := models.Player{
		ID:        uuid.NewString(),
		Name:      name,
		Token:     gm.nextFreeToken(game),
		Balance:   gm.rules.InitialBalance,
		Active:    true,
		JoinOrder: len(game.Players),
		SessionID: uuid.NewString(),
	}
	game.Players = append(game.Players, player)
	gm.saveLocked(sess)
	gm.broadcastLobbyState(code, game)

	gm.logger.Infow("player joined", "code", code, "player", player.ID, "name", name)
	return game, &game.Players[len(game.Players)-1], nil
}

// AddBot seats a bot. Host only, lobby only, and the bot count is
// capped independently of the table size.
func (gm *GameManager) AddBot(code, requesterID string, level models.BotLevel) (*models.Player, error) {
	sess := gm.session(code)
	if sess == nil {
		return nil, models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	game := sess.game
	if game.Status != models.GameStatusLobby {
		return nil, models.ErrNotInLobby
	}
	if requesterID != game.HostID {
		return nil, fmt.Errorf("only the host can add bots")
	}
	if len(game.Players) >= game.MaxPlayers {
		return nil, models.ErrGameFull
	}
	bots := 0
	for i := range game.Players {
		if game.Players[i].IsBot {
			bots++
		}
	}
	if bots >= gm.cfg.Lobby.MaxBots {
		return nil, fmt.Errorf("bot limit reached (%d)", gm.cfg.Lobby.MaxBots)
	}

	if level == "" {
		level = models.BotLevelMedium
	}

	bot := models.Player{
		ID:        uuid.NewString(),
		Name:      botNames[bots%len(botNames)],
		Token:     gm.nextFreeToken(game),
		Balance:   gm.rules.InitialBalance,
		Active:    true,
		IsBot:     true,
		BotLevel:  level,
		JoinOrder: len(game.Players),
	}
	game.Players = append(game.Players, bot)
	gm.saveLocked(sess)
	gm.broadcastLobbyState(code, game)

	gm.logger.Infow("bot added", "code", code, "bot", bot.ID, "level", level)
	return &game.Players[len(game.Players)-1], nil
}

// RemoveBot removes a bot from a lobby. Host only.
func (gm *GameManager) RemoveBot(code, requesterID, botID string) error {
	sess := gm.session(code)
	if sess == nil {
		return models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	game := sess.game
	if game.Status != models.GameStatusLobby {
		return models.ErrNotInLobby
	}
	if requesterID != game.HostID {
		return fmt.Errorf("only the host can remove bots")
	}

	for i := range game.Players {
		if game.Players[i].ID == botID && game.Players[i].IsBot {
			game.Players = append(game.Players[:i], game.Players[i+1:]...)
			for j := range game.Players {
				game.Players[j].JoinOrder = j
			}
			gm.saveLocked(sess)
			gm.broadcastLobbyState(code, game)
			gm.logger.Infow("bot removed", "code", code, "bot", botID)
			return nil
		}
	}
	return fmt.Errorf("no bot %s in game %s", botID, code)
}

// LeaveGame removes a player from a lobby, or marks the seat inactive
// when the game is already in play. The host role passes to the oldest
// remaining human seat.
func (gm *GameManager) LeaveGame(code, playerID string) error {
	sess := gm.session(code)
	if sess == nil {
		return models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	game := sess.game
	p := game.PlayerByID(playerID)
	if p == nil {
		return fmt.Errorf("player %s is not in game %s", playerID, code)
	}

	if game.Status == models.GameStatusLobby {
		for i := range game.Players {
			if game.Players[i].ID == playerID {
				game.Players = append(game.Players[:i], game.Players[i+1:]...)
				break
			}
		}
		for j := range game.Players {
			game.Players[j].JoinOrder = j
		}
		if humanCount(game) == 0 {
			gm.closeLocked(code, sess, models.GameStatusAbandoned)
			return nil
		}
		if game.HostID == playerID {
			gm.promoteHostLocked(game)
		}
		gm.saveLocked(sess)
		gm.broadcastLobbyState(code, game)
		gm.logger.Infow("player left lobby", "code", code, "player", playerID)
		return nil
	}

	gm.deactivateSeatLocked(code, sess, p)
	return nil
}

// deactivateSeatLocked takes a seat out of play mid-game: turn is
// skipped if it was theirs, the host role moves if it was theirs, and
// the game closes once no human seat remains.
func (gm *GameManager) deactivateSeatLocked(code string, sess *session, p *models.Player) {
	game := sess.game
	p.Active = false
	now := time.Now()
	p.DisconnectedAt = &now

	if game.Status == models.GameStatusActive && sess.eng != nil {
		if cp := game.CurrentPlayer(); cp != nil && cp.ID == p.ID {
			if err := sess.eng.SkipTurn(p.ID); err != nil {
				gm.logger.Warnw("failed to skip turn of leaving player", "code", code, "player", p.ID, "error", err)
			}
		}
	}
	if game.HostID == p.ID {
		gm.promoteHostLocked(game)
	}
	if humanCount(game) == 0 {
		gm.closeLocked(code, sess, models.GameStatusCompleted)
		return
	}
	gm.persistLocked(sess)
	gm.logger.Infow("seat deactivated", "code", code, "player", p.ID)
}

// promoteHostLocked hands the host role to the oldest active human
// seat. Bots never host: the host's process drives the bots.
func (gm *GameManager) promoteHostLocked(game *models.Game) {
	game.HostID = ""
	for i := range game.Players {
		game.Players[i].IsHost = false
	}
	for i := range game.Players {
		p := &game.Players[i]
		if p.Active && !p.IsBot {
			p.IsHost = true
			game.HostID = p.ID
			return
		}
	}
}

func humanCount(game *models.Game) int {
	n := 0
	for i := range game.Players {
		if game.Players[i].Active && !game.Players[i].IsBot {
			n++
		}
	}
	return n
}

// StartGame moves a lobby into play: builds the engine, wires the
// event sink to the hub and the bot driver, and begins snapshot sync.
func (gm *GameManager) StartGame(code, requesterID string) error {
	sess := gm.session(code)
	if sess == nil {
		return models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	game := sess.game
	if game.Status != models.GameStatusLobby {
		sess.mu.Unlock()
		return models.ErrGameAlreadyStarted
	}
	if requesterID != game.HostID {
		sess.mu.Unlock()
		return fmt.Errorf("only the host can start the game")
	}
	if len(game.Players) < gm.cfg.Lobby.MinimumPlayersToStart {
		sess.mu.Unlock()
		return fmt.Errorf("need at least %d players to start", gm.cfg.Lobby.MinimumPlayersToStart)
	}

	sess.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	sess.policy = engine.NewBotPolicy(sess.rng)

	sink := engine.SinkFunc(func(ev engine.Event) {
		gm.broadcastEvent(code, ev)
		gm.botChatterLocked(code, sess, ev)
		if ev.Type == engine.EventTurnChanged {
			gm.scheduleBotTurnLocked(code, sess)
		}
	})
	sess.eng = engine.New(game, gm.rules, sess.rng, sink)

	game.Status = models.GameStatusActive
	game.CurrentPlayerIndex = 0
	game.TurnNumber = 1
	gm.saveLocked(sess)
	gm.broadcastGameState(code, game)

	if gm.stateStore != nil {
		sess.adapter = state.NewAdapter(state.AdapterConfig{
			Store:            gm.stateStore,
			Actions:          gm.actions,
			Scheduler:        gm.sched,
			Logger:           gm.logger,
			Code:             code,
			Host:             true,
			SnapshotInterval: gm.cfg.Sync.SnapshotInterval,
			Snapshot:         func() *models.Game { return gm.cloneGame(sess) },
		})
	}

	gm.scheduleBotTurnLocked(code, sess)
	adapter := sess.adapter
	sess.mu.Unlock()

	if adapter != nil {
		adapter.PublishSnapshot(gm.ctx)
		adapter.StartAutoSync(gm.ctx)
	}

	gm.logger.Infow("game started", "code", code, "players", len(game.Players))
	return nil
}

// GetGame returns a snapshot copy of a game.
func (gm *GameManager) GetGame(code string) (*models.Game, error) {
	sess := gm.session(code)
	if sess == nil {
		return nil, models.ErrInvalidGameCode
	}
	return gm.cloneGame(sess), nil
}

// SubmitAction routes a player intent. When the action queue is up the
// intent is enqueued and applied in order by the queue worker; when it
// is down or absent the action is applied inline so a Redis outage
// never stops the table.
func (gm *GameManager) SubmitAction(action models.GameAction) error {
	sess := gm.session(action.GameID)
	if sess == nil {
		return models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	adapter := sess.adapter
	known := sess.game.PlayerByID(action.PlayerID) != nil
	sess.mu.Unlock()

	if !known {
		return fmt.Errorf("player %s is not in game %s", action.PlayerID, action.GameID)
	}
	if action.Timestamp.IsZero() {
		action.Timestamp = time.Now()
	}

	if adapter != nil && !adapter.Offline() {
		if err := adapter.SubmitAction(action); err == nil {
			return nil
		}
	}
	return gm.ApplyAction(action)
}

// ApplyAction applies one intent against the engine. This is the queue
// worker's entry point; rule violations come back as the sentinel
// errors and are not retried.
func (gm *GameManager) ApplyAction(action models.GameAction) error {
	sess := gm.session(action.GameID)
	if sess == nil {
		return models.ErrInvalidGameCode
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.game.Status != models.GameStatusActive {
		return fmt.Errorf("game %s is not in play", action.GameID)
	}

	var err error
	switch action.Type {
	case models.ActionTypeRollDice:
		_, err = sess.eng.Roll(action.PlayerID)
	case models.ActionTypeBuyProperty:
		err = sess.eng.BuyProperty(action.PlayerID)
	case models.ActionTypePassProperty:
		err = sess.eng.PassProperty(action.PlayerID)
	case models.ActionTypeBuildHouse:
		var pos int
		if pos, err = payloadInt(action.Payload, "position"); err == nil {
			err = sess.eng.BuildHouse(action.PlayerID, pos)
		}
	case models.ActionTypeSellProperty:
		var pos int
		if pos, err = payloadInt(action.Payload, "position"); err == nil {
			err = sess.eng.SellProperty(action.PlayerID, pos)
		}
	case models.ActionTypeJailCard:
		err = sess.eng.UseJailCard(action.PlayerID)
	case models.ActionTypeJailPay:
		err = sess.eng.PayJailFee(action.PlayerID)
	case models.ActionTypeJailWait:
		err = sess.eng.WaitInJail(action.PlayerID)
	case models.ActionTypeEndTurn:
		err = sess.eng.EndTurn(action.PlayerID)
	default:
		return fmt.Errorf("unknown action type %q", action.Type)
	}
	if err != nil {
		return err
	}

	gm.persistLocked(sess)
	return nil
}

func payloadInt(payload map[string]interface{}, key string) (int, error) {
	v, ok := payload[key]
	if !ok {
		return 0, fmt.Errorf("action payload is missing %q", key)
	}
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case int:
		return n, nil
	case json.Number:
		i, err := n.Int64()
		return int(i), err
	}
	return 0, fmt.Errorf("action payload field %q has type %T", key, v)
}

// saveLocked persists the game document. Call with sess.mu held.
func (gm *GameManager) saveLocked(sess *session) {
	now := time.Now()
	sess.game.UpdatedAt = now
	sess.game.LastActivity = now
	if gm.store != nil {
		if err := gm.store.SaveGame(gm.ctx, sess.game); err != nil {
			gm.logger.Errorw("failed to save game", "code", sess.game.Code, "error", err)
		}
	}
}

// persistLocked saves and broadcasts after a gameplay mutation. Redis
// snapshots ride the auto-sync tick rather than every action.
func (gm *GameManager) persistLocked(sess *session) {
	gm.saveLocked(sess)
	gm.broadcastGameState(sess.game.Code, sess.game)
}

// closeLocked finishes a game and tears the session down.
func (gm *GameManager) closeLocked(code string, sess *session, status models.GameStatus) {
	sess.game.Status = status
	gm.saveLocked(sess)
	if sess.adapter != nil {
		adapter := sess.adapter
		sess.adapter = nil
		go adapter.Teardown(gm.ctx)
	}
	gm.mu.Lock()
	delete(gm.sessions, code)
	gm.mu.Unlock()
	gm.logger.Infow("game closed", "code", code, "status", status)
}

// cloneGame deep-copies the game document so callers outside the
// session lock never alias live state.
func (gm *GameManager) cloneGame(sess *session) *models.Game {
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return cloneGameLocked(sess.game)
}

func cloneGameLocked(game *models.Game) *models.Game {
	raw, err := json.Marshal(game)
	if err != nil {
		return nil
	}
	var out models.Game
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	out.ID = game.ID
	return &out
}

func (gm *GameManager) nextFreeToken(game *models.Game) string {
	for _, tok := range playerTokens {
		taken := false
		for i := range game.Players {
			if game.Players[i].Token == tok {
				taken = true
				break
			}
		}
		if !taken {
			return tok
		}
	}
	return playerTokens[len(game.Players)%len(playerTokens)]
}

func (gm *GameManager) broadcast(code string, payload map[string]interface{}) {
	if gm.hub == nil {
		return
	}
	msg, err := json.Marshal(payload)
	if err != nil {
		gm.logger.Errorw("failed to marshal broadcast", "code", code, "error", err)
		return
	}
	gm.hub.BroadcastToGame(code, msg)
}

func (gm *GameManager) broadcastEvent(code string, ev engine.Event) {
	gm.broadcast(code, map[string]interface{}{
		"type":      "game_event",
		"gameCode":  code,
		"event":     ev,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (gm *GameManager) broadcastGameState(code string, game *models.Game) {
	gm.broadcast(code, map[string]interface{}{
		"type":      "game_state",
		"gameCode":  code,
		"game":      game,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func (gm *GameManager) broadcastLobbyState(code string, game *models.Game) {
	gm.broadcast(code, map[string]interface{}{
		"type":      "lobby_state",
		"gameCode":  code,
		"players":   game.Players,
		"hostId":    game.HostID,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
