package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"

	"studyai-backend/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 512
)

type tokenParser interface {
	ParseToken(tokenStr string) (userID, email string, err error)
}

// Hub relays each user's Redis pub/sub channel to their open websockets.
type Hub struct {
	mu          sync.RWMutex
	connections map[string][]*websocket.Conn
	redisClient *redis.Client
	auth        tokenParser
	upgrader    websocket.Upgrader
	cancelFuncs map[string]context.CancelFunc
	log         *logger.Logger
}

func NewHub(redisClient *redis.Client, auth tokenParser, allowedOrigin string, log *logger.Logger) *Hub {
	return &Hub{
		connections: make(map[string][]*websocket.Conn),
		redisClient: redisClient,
		auth:        auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || allowedOrigin == "*" || origin == allowedOrigin
			},
		},
		cancelFuncs: make(map[string]context.CancelFunc),
		log:         log,
	}
}

func userChannel(userID string) string {
	return "user_updates:" + userID
}

func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Browsers cannot set headers on the upgrade request, so the token rides in the query.
	tokenStr := r.URL.Query().Get("token")
	if tokenStr == "" {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	userID, _, err := h.auth.ParseToken(tokenStr)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}

	h.registerConnection(userID, conn)

	done := make(chan struct{})
	go h.readLoop(userID, conn, done)
	go pingLoop(conn, done)
}

// readLoop discards client frames; it exists to process pongs and notice
// disconnects.
func (h *Hub) readLoop(userID string, conn *websocket.Conn, done chan struct{}) {
	defer func() {
		close(done)
		h.unregisterConnection(userID, conn)
	}()

	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// pingLoop uses WriteControl, which gorilla allows alongside other writers.
func pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func (h *Hub) registerConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.connections[userID] = append(h.connections[userID], conn)

	// First connection for this user starts the subscription
	if len(h.connections[userID]) == 1 {
		ctx, cancel := context.WithCancel(context.Background())
		h.cancelFuncs[userID] = cancel
		go h.subscribeToPubSub(ctx, userID)
	}

	h.log.Debug("websocket connected", "user_id", userID, "connections", len(h.connections[userID]))
}

func (h *Hub) unregisterConnection(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conn.Close()

	conns := h.connections[userID]
	for i, c := range conns {
		if c == conn {
			h.connections[userID] = append(conns[:i], conns[i+1:]...)
			break
		}
	}

	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
		if cancel, ok := h.cancelFuncs[userID]; ok {
			cancel()
			delete(h.cancelFuncs, userID)
		}
	}

	h.log.Debug("websocket disconnected", "user_id", userID)
}

func (h *Hub) subscribeToPubSub(ctx context.Context, userID string) {
	pubsub := h.redisClient.Subscribe(ctx, userChannel(userID))
	defer pubsub.Close()

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(userID, []byte(msg.Payload))
		}
	}
}

// broadcast takes the write lock: gorilla connections allow one concurrent writer.
func (h *Hub) broadcast(userID string, data []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conn := range h.connections[userID] {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			h.log.Debug("websocket write failed", "user_id", userID, "error", err)
		}
	}
}

// Close ends every subscription and connection.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for userID, cancel := range h.cancelFuncs {
		cancel()
		for _, conn := range h.connections[userID] {
			conn.Close()
		}
	}
	h.connections = make(map[string][]*websocket.Conn)
	h.cancelFuncs = make(map[string]context.CancelFunc)
}
