package websocket

import "encoding/json"

// 服务端 -> 客户端事件
const (
	EventTableState = "table_state"
	EventHoleCards  = "hole_cards"
	EventError      = "error"
	EventMatched    = "matched"
)

// 客户端 -> 服务端事件
const (
	EventPlayerAction = "player_action"
	EventChat         = "chat"
)

type OutgoingMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// IncomingMessage keeps Data raw so the game layer can decode it per event.
type IncomingMessage struct {
	From  string          `json:"from"`
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}
