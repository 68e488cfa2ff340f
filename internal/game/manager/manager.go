package manager

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/game/table"
	"HoldemTable/internal/storage"
	"HoldemTable/internal/websocket"
)

const maxChatLength = 500

var (
	ErrEmptyChat   = errors.New("chat message is empty")
	ErrChatTooLong = errors.New("chat message is too long")
)

// GameManager 管理所有桌子的推送：订阅存储变更，广播公开状态，私发底牌
type GameManager struct {
	eng   *engine.Engine
	store storage.Store
	hub   websocket.HubInterface
	clock quartz.Clock
	log   *log.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	tables map[string]*feed // tableID → 订阅
}

type feed struct {
	unsubscribe func()
	handID      string // 最近一次已私发底牌的手牌
}

type actionPayload struct {
	TableID string `json:"tableId"`
	Action  string `json:"action"`
	Amount  int64  `json:"amount"`
}

type chatPayload struct {
	TableID string `json:"tableId"`
	Text    string `json:"text"`
}

// HoleCardsMessage is the private payload sent to one player per hand.
type HoleCardsMessage struct {
	TableID string       `json:"tableId"`
	HandID  string       `json:"handId"`
	Cards   []table.Card `json:"cards"`
}

type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func NewGameManager(eng *engine.Engine, store storage.Store, hub websocket.HubInterface, clock quartz.Clock, logger *log.Logger) *GameManager {
	ctx, cancel := context.WithCancel(context.Background())
	return &GameManager{
		eng:    eng,
		store:  store,
		hub:    hub,
		clock:  clock,
		log:    logger,
		ctx:    ctx,
		cancel: cancel,
		tables: make(map[string]*feed),
	}
}

// OpenTable starts pushing a table's changes to its players. Opening an
// already open table is a no-op.
func (m *GameManager) OpenTable(ctx context.Context, tableID string) error {
	m.mu.Lock()
	if _, ok := m.tables[tableID]; ok {
		m.mu.Unlock()
		return nil
	}
	f := &feed{}
	m.tables[tableID] = f
	m.mu.Unlock()

	unsubscribe, err := m.store.Subscribe(m.ctx, tableID, func(t *table.Table) {
		m.onChange(t)
	})
	if err != nil {
		m.mu.Lock()
		delete(m.tables, tableID)
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	f.unsubscribe = unsubscribe
	m.mu.Unlock()

	// 先推一次当前状态，已在桌的玩家不用等下一次变更
	cur, err := m.store.GetTable(ctx, tableID)
	if err != nil {
		unsubscribe()
		m.mu.Lock()
		delete(m.tables, tableID)
		m.mu.Unlock()
		return err
	}
	m.onChange(cur)
	m.log.Debug("table opened", "table", tableID)
	return nil
}

// TableIDs lists the open tables.
func (m *GameManager) TableIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	return ids
}

// onChange receives the raw committed table, hole cards included.
func (m *GameManager) onChange(t *table.Table) {
	recipients := make([]string, 0, len(t.Players))
	for _, p := range t.Players {
		if p.IsActive {
			recipients = append(recipients, p.ID)
		}
	}
	m.hub.BroadcastToPlayers(recipients, websocket.OutgoingMessage{
		Event: websocket.EventTableState,
		Data:  t.Public(),
	})

	if !t.IsHandInProgress || t.HandID == "" {
		return
	}

	m.mu.Lock()
	f, ok := m.tables[t.ID]
	fresh := ok && f.handID != t.HandID
	if fresh {
		f.handID = t.HandID
	}
	m.mu.Unlock()
	if !fresh {
		return
	}

	for playerID, cards := range t.HoleCards {
		m.hub.SendToPlayer(playerID, websocket.OutgoingMessage{
			Event: websocket.EventHoleCards,
			Data:  HoleCardsMessage{TableID: t.ID, HandID: t.HandID, Cards: cards},
		})
	}
}

// HandlePlayerMessage 统一入口（来自 Hub.OnIncoming）
func (m *GameManager) HandlePlayerMessage(msg websocket.IncomingMessage) {
	ctx, cancel := context.WithTimeout(m.ctx, 10*time.Second)
	defer cancel()

	switch msg.Event {

	case websocket.EventPlayerAction:
		var p actionPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.sendError(msg.From, "bad_request", "malformed player_action payload")
			return
		}
		action, err := table.ParseAction(strings.ToLower(p.Action))
		if err != nil {
			m.reportError(msg.From, err)
			return
		}
		if err := m.OpenTable(ctx, p.TableID); err != nil {
			m.reportError(msg.From, err)
			return
		}
		if _, err := m.eng.HandlePlayerAction(ctx, p.TableID, msg.From, action, p.Amount); err != nil {
			m.reportError(msg.From, err)
		}

	case websocket.EventChat:
		var p chatPayload
		if err := json.Unmarshal(msg.Data, &p); err != nil {
			m.sendError(msg.From, "bad_request", "malformed chat payload")
			return
		}
		if err := m.OpenTable(ctx, p.TableID); err != nil {
			m.reportError(msg.From, err)
			return
		}
		if _, err := m.Chat(ctx, p.TableID, msg.From, p.Text); err != nil {
			m.reportError(msg.From, err)
		}

	default:
		m.sendError(msg.From, "bad_request", "unknown event "+msg.Event)
	}
}

// Chat appends a message from a seated player. Chat bypasses the betting
// transaction; it never touches turn or chip state.
func (m *GameManager) Chat(ctx context.Context, tableID, playerID, text string) (table.ChatMessage, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return table.ChatMessage{}, ErrEmptyChat
	}
	if len([]rune(text)) > maxChatLength {
		return table.ChatMessage{}, ErrChatTooLong
	}

	t, err := m.store.GetTable(ctx, tableID)
	if err != nil {
		return table.ChatMessage{}, err
	}
	if !engine.Seated(t, playerID) {
		return table.ChatMessage{}, table.ErrPlayerNotFound
	}

	msg := table.ChatMessage{
		ID:       uuid.NewString(),
		PlayerID: playerID,
		Text:     text,
		At:       m.clock.Now(),
	}
	if err := m.store.UpdateTable(ctx, tableID, storage.Update{Chat: []table.ChatMessage{msg}}); err != nil {
		return table.ChatMessage{}, err
	}
	return msg, nil
}

func (m *GameManager) reportError(playerID string, err error) {
	switch {
	case errors.Is(err, ErrEmptyChat), errors.Is(err, ErrChatTooLong):
		m.sendError(playerID, "bad_request", err.Error())
		return
	}
	kind := table.KindOf(err)
	if kind == table.KindUnknown {
		m.log.Error("player message failed", "player", playerID, "err", err)
		m.sendError(playerID, kind.String(), "internal error")
		return
	}
	m.log.Debug("player message rejected", "player", playerID, "code", kind, "err", err)
	m.sendError(playerID, kind.String(), err.Error())
}

func (m *GameManager) sendError(playerID, code, message string) {
	m.hub.SendToPlayer(playerID, websocket.OutgoingMessage{
		Event: websocket.EventError,
		Data:  ErrorMessage{Code: code, Message: message},
	})
}

// Close unsubscribes from every table.
func (m *GameManager) Close() {
	m.cancel()
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, f := range m.tables {
		if f.unsubscribe != nil {
			f.unsubscribe()
		}
		delete(m.tables, id)
	}
}
