package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MoneyAlertThresholds are the balance floors that trigger a low-balance
// warning, highest first. A player is warned once per threshold crossed.
var MoneyAlertThresholds = []int{1200, 1000, 700, 500, 200}

// Game represents a game session
type Game struct {
	ID                 primitive.ObjectID     `bson:"_id,omitempty" json:"gameId"`
	Code               string                 `bson:"code" json:"code"` // 3-digit numeric game code
	Status             GameStatus             `bson:"status" json:"status"`
	CreatedAt          time.Time              `bson:"createdAt" json:"createdAt"`
	UpdatedAt          time.Time              `bson:"updatedAt" json:"updatedAt"`
	Players            []Player               `bson:"players" json:"players"`
	HostID             string                 `bson:"hostId" json:"hostId"` // Explicit host designation
	MaxPlayers         int                    `bson:"maxPlayers" json:"maxPlayers"`
	CurrentPlayerIndex int                    `bson:"currentPlayerIndex" json:"currentPlayerIndex"`
	TurnNumber         int                    `bson:"turnNumber" json:"turnNumber"`
	Properties         map[int]*PropertyState `bson:"properties" json:"properties"`
	LastActivity       time.Time              `bson:"lastActivity" json:"lastActivity"`
}

// CurrentPlayer returns the player whose turn it is, or nil for an
// empty roster.
func (g *Game) CurrentPlayer() *Player {
	if len(g.Players) == 0 {
		return nil
	}
	return &g.Players[g.CurrentPlayerIndex%len(g.Players)]
}

// PlayerByID returns the player with the given ID, or nil.
func (g *Game) PlayerByID(id string) *Player {
	for i := range g.Players {
		if g.Players[i].ID == id {
			return &g.Players[i]
		}
	}
	return nil
}

// ActiveCount returns the number of players still marked active.
func (g *Game) ActiveCount() int {
	n := 0
	for i := range g.Players {
		if g.Players[i].Active {
			n++
		}
	}
	return n
}

// Player represents a player in the game. Bots share the struct: only
// IsBot and BotLevel distinguish them, everything else follows the same
// rules as a human seat.
type Player struct {
	ID             string     `bson:"playerId" json:"playerId"`
	Name           string     `bson:"name" json:"name"`
	Token          string     `bson:"token" json:"token"` // Emoji shown on the board
	Position       int        `bson:"position" json:"position"`
	Balance        int        `bson:"balance" json:"balance"`
	Active         bool       `bson:"active" json:"active"`
	IsHost         bool       `bson:"isHost" json:"isHost"`
	IsBot          bool       `bson:"isBot" json:"isBot"`
	BotLevel       BotLevel   `bson:"botLevel,omitempty" json:"botLevel,omitempty"`
	InJail         bool       `bson:"inJail" json:"inJail"`
	JailTurns      int        `bson:"jailTurns" json:"jailTurns"`
	JailFreeCards  int        `bson:"jailFreeCards" json:"jailFreeCards"`
	LastMoneyAlert int        `bson:"lastMoneyAlert" json:"lastMoneyAlert"`
	JoinOrder      int        `bson:"joinOrder" json:"joinOrder"`
	DisconnectedAt *time.Time `bson:"disconnectedAt,omitempty" json:"disconnectedAt,omitempty"`
	// WebSocket session ID is not stored in the database
	SessionID string `bson:"-" json:"sessionId,omitempty"`
}

// PropertyState is the dynamic part of a board cell: who owns it and
// whether a house stands on it. The static part (name, price, kind)
// lives in the board package and never changes.
type PropertyState struct {
	OwnerID  string `bson:"ownerId" json:"ownerId"`
	HasHouse bool   `bson:"hasHouse" json:"hasHouse"`
}

// GameAction represents an intent submitted by a client. Only the host
// applies actions; everyone else enqueues them.
type GameAction struct {
	Type      ActionType             `json:"type"`
	PlayerID  string                 `json:"playerId"`
	GameID    string                 `json:"gameId"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

// GameStatus represents the status of a game
type GameStatus string

const (
	GameStatusLobby     GameStatus = "LOBBY"
	GameStatusActive    GameStatus = "ACTIVE"
	GameStatusCompleted GameStatus = "COMPLETED"
	GameStatusAbandoned GameStatus = "ABANDONED"
)

// BotLevel represents the difficulty of a bot player
type BotLevel string

const (
	BotLevelEasy   BotLevel = "EASY"
	BotLevelMedium BotLevel = "MEDIUM"
	BotLevelHard   BotLevel = "HARD"
)

// ActionType represents the type of a game action
type ActionType string

const (
	ActionTypeRollDice     ActionType = "ROLL_DICE"
	ActionTypeBuyProperty  ActionType = "BUY_PROPERTY"
	ActionTypePassProperty ActionType = "PASS_PROPERTY"
	ActionTypeBuildHouse   ActionType = "BUILD_HOUSE"
	ActionTypeSellProperty ActionType = "SELL_PROPERTY"
	ActionTypeJailCard     ActionType = "JAIL_CARD"
	ActionTypeJailPay      ActionType = "JAIL_PAY"
	ActionTypeJailWait     ActionType = "JAIL_WAIT"
	ActionTypeEndTurn      ActionType = "END_TURN"
)
