// Package gateway is the websocket transport for the broadcast hub: every
// connection follows one game and receives its events as JSON text frames.
package gateway

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"holdem-live/apps/server/internal/broadcast"
	"holdem-live/apps/server/internal/lobby"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Connection is one websocket client following a game.
type Connection struct {
	ID     string
	GameID string
	Conn   *websocket.Conn

	gateway *Gateway
	sub     *broadcast.Subscriber
	once    sync.Once
}

// Gateway manages websocket connections.
type Gateway struct {
	games lobby.Repository
	log   *zap.Logger

	mu          sync.Mutex
	connections map[string]*Connection
	nextConnID  uint64
}

func New(games lobby.Repository, logger *zap.Logger) *Gateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gateway{
		games:       games,
		log:         logger,
		connections: make(map[string]*Connection),
	}
}

// HandleWebSocket serves GET /ws/games/{gameId}. Unknown games are rejected
// with 404 before the upgrade.
func (g *Gateway) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	gameID := r.PathValue("gameId")
	t, err := g.games.Get(gameID)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	sub, err := t.Subscribe()
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		sub.Close()
		g.log.Warn("[Gateway] upgrade failed", zap.String("game", gameID), zap.Error(err))
		return
	}

	g.mu.Lock()
	g.nextConnID++
	c := &Connection{
		ID:      fmt.Sprintf("conn_%d", g.nextConnID),
		GameID:  gameID,
		Conn:    conn,
		gateway: g,
		sub:     sub,
	}
	g.connections[c.ID] = c
	total := len(g.connections)
	g.mu.Unlock()

	g.log.Info("[Gateway] client connected",
		zap.String("conn", c.ID), zap.String("game", gameID), zap.Int("total", total))

	go c.readPump()
	go c.writePump()
}

// readPump only watches for the peer going away; clients send nothing the
// server acts on.
func (c *Connection) readPump() {
	defer c.close()

	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.gateway.log.Info("[Gateway] read error", zap.String("conn", c.ID), zap.Error(err))
			}
			return
		}
	}
}

func (c *Connection) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	events := c.sub.C()
	for {
		select {
		case ev, ok := <-events:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// dropped by the hub or the game was evicted
				_ = c.Conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "subscription ended"))
				return
			}
			if err := c.Conn.WriteJSON(ev); err != nil {
				return
			}

		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Connection) close() {
	c.once.Do(func() {
		c.sub.Close()
		_ = c.Conn.Close()
		c.gateway.removeConnection(c)
	})
}

func (g *Gateway) removeConnection(c *Connection) {
	g.mu.Lock()
	delete(g.connections, c.ID)
	total := len(g.connections)
	g.mu.Unlock()
	g.log.Info("[Gateway] client disconnected",
		zap.String("conn", c.ID), zap.String("game", c.GameID), zap.Int("total", total))
}

// Connections reports how many clients are connected.
func (g *Gateway) Connections() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.connections)
}

// Shutdown sends a going-away close frame to every client and drops it.
func (g *Gateway) Shutdown() {
	g.mu.Lock()
	conns := make([]*Connection, 0, len(g.connections))
	for _, c := range g.connections {
		conns = append(conns, c)
	}
	g.mu.Unlock()

	deadline := time.Now().Add(time.Second)
	for _, c := range conns {
		err := c.Conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"), deadline)
		if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
			c.gateway.log.Debug("[Gateway] close frame failed", zap.String("conn", c.ID), zap.Error(err))
		}
		c.close()
	}
}
