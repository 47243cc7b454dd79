package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/manager"
	"github.com/boulevardgame/backend/internal/game/models"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// Outbound buffer per client.
	sendBufferSize = 64
)

// Hub maintains the live WebSocket connections, keyed by game code and
// player. Outbound traffic comes from the game manager through
// BroadcastToGame; inbound frames are either chat, relayed as-is, or
// game intents, handed to the manager.
type Hub struct {
	ctx         context.Context
	gameManager *manager.GameManager
	logger      *zap.SugaredLogger

	mu      sync.RWMutex
	clients map[string]map[string]*Client // game code -> player ID -> client

	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage
}

type broadcastMessage struct {
	code    string
	data    []byte
	exclude string // player ID to skip, empty for none
}

// Client is one WebSocket connection bound to a seat in a game.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	gameCode  string
	playerID  string
	sessionID string
}

// NewHub creates a hub. Run must be started for registration and
// broadcast to work.
func NewHub(ctx context.Context, gameManager *manager.GameManager, logger *zap.SugaredLogger) *Hub {
	return &Hub{
		ctx:         ctx,
		gameManager: gameManager,
		logger:      logger,
		clients:     make(map[string]map[string]*Client),
		register:    make(chan *Client, 64),
		unregister:  make(chan *Client, 64),
		broadcast:   make(chan *broadcastMessage, 512),
	}
}

// Run processes registration and broadcast until the context ends.
func (h *Hub) Run() {
	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		case msg := <-h.broadcast:
			h.deliver(msg)
		}
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	game, ok := h.clients[c.gameCode]
	if !ok {
		game = make(map[string]*Client)
		h.clients[c.gameCode] = game
	}
	prev := game[c.playerID]
	game[c.playerID] = c
	h.mu.Unlock()

	if prev != nil {
		// The stale connection is closed quietly; the seat stays. Its
		// pumps tear down on their own goroutines, and prev.send stays
		// open so a frame the old readPump is still dispatching cannot
		// reply into a closed channel.
		if prev.conn != nil {
			prev.conn.Close()
		}
		h.logger.Infow("replaced connection", "game", c.gameCode, "player", c.playerID)
	} else {
		h.logger.Infow("client connected", "game", c.gameCode, "player", c.playerID)
	}
	if h.gameManager != nil {
		h.gameManager.PlayerReconnected(c.gameCode, c.playerID)
	}
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	game, ok := h.clients[c.gameCode]
	if ok && game[c.playerID] == c {
		delete(game, c.playerID)
		if len(game) == 0 {
			delete(h.clients, c.gameCode)
		}
	} else {
		// Already replaced by a newer connection.
		ok = false
	}
	h.mu.Unlock()

	if !ok {
		return
	}
	close(c.send)
	h.logger.Infow("client disconnected", "game", c.gameCode, "player", c.playerID)
	if h.gameManager != nil {
		h.gameManager.PlayerDisconnected(c.gameCode, c.playerID)
	}
}

func (h *Hub) deliver(msg *broadcastMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for playerID, client := range h.clients[msg.code] {
		if playerID == msg.exclude {
			continue
		}
		select {
		case client.send <- msg.data:
		default:
			// Slow consumer; drop the frame rather than stall the hub.
			h.logger.Warnw("dropping frame for slow client", "game", msg.code, "player", playerID)
		}
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, game := range h.clients {
		for _, client := range game {
			// Close the connection, not the channel: readPumps may
			// still be dispatching frames that reply on send.
			if client.conn != nil {
				client.conn.Close()
			}
		}
	}
	h.clients = make(map[string]map[string]*Client)
}

// BroadcastToGame queues a message for every client watching the game.
// Implements the manager's Broadcaster.
func (h *Hub) BroadcastToGame(code string, message []byte) {
	select {
	case h.broadcast <- &broadcastMessage{code: code, data: message}:
	default:
		h.logger.Warnw("broadcast buffer full, dropping message", "game", code)
	}
}

// SendToPlayer queues a message for a single client.
func (h *Hub) SendToPlayer(code, playerID string, message []byte) {
	// The send happens under the read lock so removeClient cannot
	// close the channel between the lookup and the send.
	h.mu.RLock()
	defer h.mu.RUnlock()
	client := h.clients[code][playerID]
	if client == nil {
		return
	}
	select {
	case client.send <- message:
	default:
		h.logger.Warnw("dropping frame for slow client", "game", code, "player", playerID)
	}
}

// ConnectedPlayers returns the player IDs currently connected to a game.
func (h *Hub) ConnectedPlayers(code string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients[code]))
	for id := range h.clients[code] {
		ids = append(ids, id)
	}
	return ids
}

// ServeClient registers a connection and starts its pumps. It returns
// immediately; the pumps own the connection from here.
func (h *Hub) ServeClient(conn *websocket.Conn, gameCode, playerID, sessionID string) {
	client := &Client{
		hub:       h,
		conn:      conn,
		send:      make(chan []byte, sendBufferSize),
		gameCode:  gameCode,
		playerID:  playerID,
		sessionID: sessionID,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump pumps inbound frames to the hub until the connection drops.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warnw("unexpected close", "game", c.gameCode, "player", c.playerID, "error", err)
			}
			return
		}
		c.handleMessage(raw)
	}
}

// writePump pumps queued frames to the connection and keeps it alive
// with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// inboundMessage is the envelope clients send.
type inboundMessage struct {
	Type    string                 `json:"type"`
	Action  models.ActionType      `json:"action,omitempty"`
	Payload map[string]interface{} `json:"payload,omitempty"`
	Message string                 `json:"message,omitempty"`
}

func (c *Client) handleMessage(raw []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.hub.logger.Warnw("bad client frame", "game", c.gameCode, "player", c.playerID, "error", err)
		return
	}

	switch msg.Type {
	case "game_action":
		c.handleGameAction(msg)
	case "chat_message":
		c.handleChat(msg)
	case "request_state":
		c.handleStateRequest()
	default:
		c.hub.logger.Debugw("ignoring frame", "type", msg.Type, "game", c.gameCode, "player", c.playerID)
	}
}

// handleGameAction forwards an intent to the manager. The player and
// game identity come from the authenticated connection, never from the
// frame, so a client cannot act for another seat.
func (c *Client) handleGameAction(msg inboundMessage) {
	if c.hub.gameManager == nil {
		return
	}
	err := c.hub.gameManager.SubmitAction(models.GameAction{
		Type:      msg.Action,
		PlayerID:  c.playerID,
		GameID:    c.gameCode,
		Payload:   msg.Payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		c.sendError(err)
	}
}

// handleChat relays table talk to the other seats.
func (c *Client) handleChat(msg inboundMessage) {
	if msg.Message == "" {
		return
	}
	out, err := json.Marshal(map[string]interface{}{
		"type":      "chat_message",
		"gameCode":  c.gameCode,
		"playerId":  c.playerID,
		"message":   msg.Message,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case c.hub.broadcast <- &broadcastMessage{code: c.gameCode, data: out, exclude: c.playerID}:
	default:
		c.hub.logger.Warnw("broadcast buffer full, dropping chat", "game", c.gameCode)
	}
}

// handleStateRequest sends the requesting client a fresh snapshot.
// Used after reconnects to resynchronize without waiting for the next
// broadcast.
func (c *Client) handleStateRequest() {
	if c.hub.gameManager == nil {
		return
	}
	game, err := c.hub.gameManager.GetGame(c.gameCode)
	if err != nil {
		c.sendError(err)
		return
	}
	out, err := json.Marshal(map[string]interface{}{
		"type":      "game_state",
		"gameCode":  c.gameCode,
		"game":      game,
		"timestamp": time.Now().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- out:
	default:
	}
}

func (c *Client) sendError(cause error) {
	out, err := json.Marshal(map[string]interface{}{
		"type":     "error",
		"gameCode": c.gameCode,
		"message":  cause.Error(),
	})
	if err != nil {
		return
	}
	select {
	case c.send <- out:
	default:
	}
}
