package handlers

import (
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/api/middleware/auth"
	"github.com/boulevardgame/backend/internal/config"
	gameWs "github.com/boulevardgame/backend/internal/game/websocket"
)

// WebSocketHandler upgrades authenticated connections and hands them
// to the hub.
type WebSocketHandler struct {
	hub    *gameWs.Hub
	cfg    *config.Config
	logger *zap.SugaredLogger
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *gameWs.Hub, cfg *config.Config, logger *zap.SugaredLogger) *WebSocketHandler {
	return &WebSocketHandler{
		hub:    hub,
		cfg:    cfg,
		logger: logger,
	}
}

// upgrader is used to upgrade HTTP connections to WebSocket connections.
// Game codes are shareable and tokens gate the seats, so any origin may
// connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// validateToken validates the session token from the query string.
// Browsers cannot set headers on WebSocket upgrades, so the token
// always rides the query parameter here.
func (h *WebSocketHandler) validateToken(tokenString string) (*auth.Claims, error) {
	if tokenString == "" {
		return nil, fmt.Errorf("token string is empty")
	}
	if h.cfg == nil || h.cfg.Session.Secret == "" {
		return nil, fmt.Errorf("session secret not configured")
	}

	token, err := jwt.ParseWithClaims(tokenString, &auth.Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(h.cfg.Session.Secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token parsing failed: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(*auth.Claims)
	if !ok {
		return nil, fmt.Errorf("failed to extract claims")
	}
	return claims, nil
}

// HandleConnection upgrades a client connection for one game.
func (h *WebSocketHandler) HandleConnection(c echo.Context) error {
	code := c.Param("code")
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Missing game code")
	}

	claims, err := h.validateToken(c.QueryParam("token"))
	if err != nil {
		h.logger.Warnw("websocket rejected", "game", code, "error", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized: invalid token")
	}
	if claims.GameCode != code {
		h.logger.Warnw("websocket rejected: token for another game",
			"game", code, "tokenGame", claims.GameCode, "player", claims.PlayerID)
		return echo.NewHTTPError(http.StatusForbidden, "session is for another game")
	}

	sessionID := c.QueryParam("sessionId")

	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.logger.Errorw("failed to upgrade connection", "game", code, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to establish WebSocket connection")
	}

	h.hub.ServeClient(conn, code, claims.PlayerID, sessionID)
	return nil
}
