package websocket

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
)

type HubInterface interface {
	BroadcastToPlayers(playerIDs []string, msg OutgoingMessage)
	SendToPlayer(playerID string, msg OutgoingMessage)
	Connected(playerID string) bool
}

// Hub 维护 playerID -> 连接，所有写入都经过 Run 所在的协程。
type Hub struct {
	clients    map[string]*Client
	register   chan *Client
	unregister chan *Client
	broadcast  chan broadcastReq
	sendOne    chan sendReq
	incoming   chan IncomingMessage
	quit       chan struct{}
	OnIncoming func(IncomingMessage)
	log        *log.Logger
	mu         sync.RWMutex
}

type broadcastReq struct {
	PlayerIDs []string
	Message   OutgoingMessage
}

type sendReq struct {
	PlayerID string
	Message  OutgoingMessage
}

func NewHub(logger *log.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan broadcastReq, 64),
		sendOne:    make(chan sendReq, 64),
		incoming:   make(chan IncomingMessage, 64),
		quit:       make(chan struct{}),
		log:        logger,
	}
}

// Run serves the hub until ctx ends, then closes every client.
func (h *Hub) Run(ctx context.Context) error {
	h.log.Info("hub started")

	for {
		select {
		case c := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[c.PlayerID]; ok && old != c {
				// 同一玩家重连，旧连接让位
				close(old.Send)
			}
			h.clients[c.PlayerID] = c
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("hub register", "player", c.PlayerID, "clients", n)

		case c := <-h.unregister:
			h.mu.Lock()
			if cur, ok := h.clients[c.PlayerID]; ok && cur == c {
				delete(h.clients, c.PlayerID)
				close(c.Send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.log.Debug("hub unregister", "player", c.PlayerID, "clients", n)

		case req := <-h.broadcast:
			for _, id := range req.PlayerIDs {
				h.deliver(id, req.Message)
			}

		case req := <-h.sendOne:
			h.deliver(req.PlayerID, req.Message)

		case req := <-h.incoming:
			// 交给游戏层；单独协程，避免游戏层回推消息时卡住 hub
			if h.OnIncoming != nil {
				go h.OnIncoming(req)
			}

		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.Send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			close(h.quit)
			h.log.Info("hub stopped")
			return nil
		}
	}
}

// deliver never blocks the hub; a client whose buffer is full misses the
// message and catches up on the next table snapshot.
func (h *Hub) deliver(playerID string, msg OutgoingMessage) {
	h.mu.RLock()
	c, ok := h.clients[playerID]
	h.mu.RUnlock()
	if !ok {
		return
	}
	select {
	case c.Send <- msg:
	default:
		h.log.Warn("client send buffer full, dropping message", "player", playerID, "event", msg.Event)
	}
}

// BroadcastToPlayers and SendToPlayer return without sending once the hub
// has stopped, so callers inside a commit never wait on a dead hub.
func (h *Hub) BroadcastToPlayers(playerIDs []string, msg OutgoingMessage) {
	select {
	case h.broadcast <- broadcastReq{PlayerIDs: playerIDs, Message: msg}:
	case <-h.quit:
	}
}

func (h *Hub) SendToPlayer(playerID string, msg OutgoingMessage) {
	select {
	case h.sendOne <- sendReq{PlayerID: playerID, Message: msg}:
	case <-h.quit:
	}
}

func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}
