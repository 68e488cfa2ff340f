// Package storage persists table state. Every betting mutation goes through
// Store.Transaction, which re-runs the update function against the latest
// committed table until its write wins.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"HoldemTable/internal/game/table"
)

// TxFunc computes the next table from the latest committed one. It may run
// several times, so it must not have side effects. Returning a nil table
// with a nil error commits nothing.
type TxFunc func(cur *table.Table) (*table.Table, error)

// Update is the additive, non-transactional change set accepted by
// UpdateTable. It must never carry betting or turn state.
type Update struct {
	Chat []table.ChatMessage
}

type Store interface {
	CreateTable(ctx context.Context, t *table.Table) error
	GetTable(ctx context.Context, id string) (*table.Table, error)
	UpdateTable(ctx context.Context, id string, u Update) error
	Transaction(ctx context.Context, id string, fn TxFunc) (*table.Table, error)
	// Subscribe calls onChange with every committed table until the
	// returned function is called or ctx ends.
	Subscribe(ctx context.Context, id string, onChange func(*table.Table)) (func(), error)
	ListTables(ctx context.Context) ([]string, error)
	Close() error
}

// CardStore keeps each player's hole cards outside the public table state.
type CardStore interface {
	Set(ctx context.Context, tableID, playerID string, cards []table.Card, handID string) error
	// Get returns nil when nothing is stored or the stored cards belong to
	// a hand other than handID.
	Get(ctx context.Context, tableID, playerID, handID string) ([]table.Card, error)
	Clear(ctx context.Context, tableID, playerID string) error
}

var ErrTableExists = errors.New("table already exists")

// chatLimit caps how many recent messages are attached to a loaded table.
const chatLimit = 50

func encode(t *table.Table) ([]byte, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("encode table %s: %w", t.ID, err)
	}
	return data, nil
}

func decode(data []byte) (*table.Table, error) {
	var t table.Table
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("decode table: %w", err)
	}
	t.Normalize()
	return &t, nil
}

// withoutChat drops the chat log before the table blob is written; stores
// that keep chat elsewhere attach it again on read.
func withoutChat(t *table.Table) *table.Table {
	c := t.Clone()
	c.Chat = []table.ChatMessage{}
	return c
}

type privateCards struct {
	HandID string       `json:"handId"`
	Cards  []table.Card `json:"cards"`
}
