package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/api/middleware/auth"
	"github.com/boulevardgame/backend/internal/config"
	"github.com/boulevardgame/backend/internal/game/manager"
	"github.com/boulevardgame/backend/internal/game/models"
	"github.com/boulevardgame/backend/internal/game/utils"
)

// GameHandler handles lobby and gameplay requests
type GameHandler struct {
	gameManager *manager.GameManager
	cfg         *config.Config
	logger      *zap.SugaredLogger
}

// NewGameHandler creates a new GameHandler
func NewGameHandler(gameManager *manager.GameManager, cfg *config.Config, logger *zap.SugaredLogger) *GameHandler {
	return &GameHandler{
		gameManager: gameManager,
		cfg:         cfg,
		logger:      logger,
	}
}

// CreateGameRequest represents a create game request
type CreateGameRequest struct {
	PlayerName string `json:"playerName" validate:"required,max=32"`
}

// JoinGameRequest represents a join game request
type JoinGameRequest struct {
	PlayerName string `json:"playerName" validate:"required,max=32"`
}

// AddBotRequest represents an add bot request
type AddBotRequest struct {
	Level models.BotLevel `json:"level,omitempty" validate:"omitempty,oneof=EASY MEDIUM HARD"`
}

// ActionRequest carries the optional payload of a gameplay action; the
// acting player comes from the session token, never the body.
type ActionRequest struct {
	Payload map[string]interface{} `json:"payload,omitempty"`
}

// SessionResponse is returned when a seat is created: the session
// token authenticates every later call for that seat.
type SessionResponse struct {
	Token    string         `json:"token"`
	PlayerID string         `json:"playerId"`
	GameCode string         `json:"gameCode"`
	Game     *models.Game   `json:"game"`
	Player   *models.Player `json:"player"`
}

// mapGameError translates the gameplay error taxonomy to HTTP status
// codes. Unknown errors surface as 400s so rule violations never look
// like server faults.
func mapGameError(err error) *echo.HTTPError {
	switch {
	case errors.Is(err, models.ErrInvalidGameCode):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, models.ErrGameAlreadyStarted):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrGameFull):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNotInLobby):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, models.ErrNotYourTurn):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, models.ErrInsufficientFunds):
		return echo.NewHTTPError(http.StatusPaymentRequired, err.Error())
	case errors.Is(err, models.ErrStoreUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
}

// CreateGame opens a lobby and mints the host's session token.
func (h *GameHandler) CreateGame(c echo.Context) error {
	var req CreateGameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	game, host, err := h.gameManager.CreateGame(req.PlayerName)
	if err != nil {
		h.logger.Errorw("failed to create game", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create game")
	}

	token, err := auth.GenerateSessionToken(host.ID, game.Code, h.cfg.Session.Secret, h.cfg.Session.Expiration)
	if err != nil {
		h.logger.Errorw("failed to mint session token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	return c.JSON(http.StatusCreated, SessionResponse{
		Token:    token,
		PlayerID: host.ID,
		GameCode: game.Code,
		Game:     game,
		Player:   host,
	})
}

// JoinGame seats a player in a lobby and mints their session token.
func (h *GameHandler) JoinGame(c echo.Context) error {
	code := c.Param("code")
	if !utils.IsValidGameCode(code) {
		return mapGameError(models.ErrInvalidGameCode)
	}

	var req JoinGameRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	game, player, err := h.gameManager.JoinGame(code, req.PlayerName)
	if err != nil {
		return mapGameError(err)
	}

	token, err := auth.GenerateSessionToken(player.ID, code, h.cfg.Session.Secret, h.cfg.Session.Expiration)
	if err != nil {
		h.logger.Errorw("failed to mint session token", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to create session")
	}

	return c.JSON(http.StatusOK, SessionResponse{
		Token:    token,
		PlayerID: player.ID,
		GameCode: code,
		Game:     game,
		Player:   player,
	})
}

// seat pulls the authenticated seat from the context and checks it
// matches the game in the path.
func (h *GameHandler) seat(c echo.Context) (playerID, code string, err error) {
	playerID, _ = c.Get("playerID").(string)
	tokenCode, _ := c.Get("gameCode").(string)
	code = c.Param("code")
	if playerID == "" || tokenCode == "" {
		return "", "", echo.NewHTTPError(http.StatusUnauthorized, "missing session")
	}
	if code != tokenCode {
		return "", "", echo.NewHTTPError(http.StatusForbidden, "session is for another game")
	}
	return playerID, code, nil
}

// GetGame returns the current state of the caller's game.
func (h *GameHandler) GetGame(c echo.Context) error {
	_, code, err := h.seat(c)
	if err != nil {
		return err
	}
	game, gerr := h.gameManager.GetGame(code)
	if gerr != nil {
		return mapGameError(gerr)
	}
	return c.JSON(http.StatusOK, game)
}

// LeaveGame removes the caller's seat.
func (h *GameHandler) LeaveGame(c echo.Context) error {
	playerID, code, err := h.seat(c)
	if err != nil {
		return err
	}
	if gerr := h.gameManager.LeaveGame(code, playerID); gerr != nil {
		return mapGameError(gerr)
	}
	return c.NoContent(http.StatusNoContent)
}

// AddBot seats a bot in the caller's lobby.
func (h *GameHandler) AddBot(c echo.Context) error {
	playerID, code, err := h.seat(c)
	if err != nil {
		return err
	}

	var req AddBotRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	bot, gerr := h.gameManager.AddBot(code, playerID, req.Level)
	if gerr != nil {
		return mapGameError(gerr)
	}
	return c.JSON(http.StatusCreated, bot)
}

// RemoveBot removes a bot from the caller's lobby.
func (h *GameHandler) RemoveBot(c echo.Context) error {
	playerID, code, err := h.seat(c)
	if err != nil {
		return err
	}
	if gerr := h.gameManager.RemoveBot(code, playerID, c.Param("botId")); gerr != nil {
		return mapGameError(gerr)
	}
	return c.NoContent(http.StatusNoContent)
}

// StartGame starts the caller's game.
func (h *GameHandler) StartGame(c echo.Context) error {
	playerID, code, err := h.seat(c)
	if err != nil {
		return err
	}
	if gerr := h.gameManager.StartGame(code, playerID); gerr != nil {
		return mapGameError(gerr)
	}
	return c.NoContent(http.StatusNoContent)
}

// submit builds and routes a gameplay action for the caller's seat.
// Accepted actions are applied in order by the host; the new state
// arrives over the WebSocket.
func (h *GameHandler) submit(c echo.Context, actionType models.ActionType) error {
	playerID, code, err := h.seat(c)
	if err != nil {
		return err
	}

	var req ActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request body")
	}

	gerr := h.gameManager.SubmitAction(models.GameAction{
		Type:      actionType,
		PlayerID:  playerID,
		GameID:    code,
		Payload:   req.Payload,
		Timestamp: time.Now(),
	})
	if gerr != nil {
		return mapGameError(gerr)
	}
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

// RollDice rolls for the caller.
func (h *GameHandler) RollDice(c echo.Context) error {
	return h.submit(c, models.ActionTypeRollDice)
}

// BuyProperty accepts the open buy offer.
func (h *GameHandler) BuyProperty(c echo.Context) error {
	return h.submit(c, models.ActionTypeBuyProperty)
}

// PassProperty declines the open buy offer.
func (h *GameHandler) PassProperty(c echo.Context) error {
	return h.submit(c, models.ActionTypePassProperty)
}

// BuildHouse builds a house on a street in the payload.
func (h *GameHandler) BuildHouse(c echo.Context) error {
	return h.submit(c, models.ActionTypeBuildHouse)
}

// SellProperty sells a property in the payload back to the bank.
func (h *GameHandler) SellProperty(c echo.Context) error {
	return h.submit(c, models.ActionTypeSellProperty)
}

// UseJailCard spends a held get-out-of-jail card.
func (h *GameHandler) UseJailCard(c echo.Context) error {
	return h.submit(c, models.ActionTypeJailCard)
}

// PayJailFee buys the caller out of jail.
func (h *GameHandler) PayJailFee(c echo.Context) error {
	return h.submit(c, models.ActionTypeJailPay)
}

// WaitInJail sits the sentence out for a turn.
func (h *GameHandler) WaitInJail(c echo.Context) error {
	return h.submit(c, models.ActionTypeJailWait)
}

// EndTurn closes the caller's turn.
func (h *GameHandler) EndTurn(c echo.Context) error {
	return h.submit(c, models.ActionTypeEndTurn)
}
