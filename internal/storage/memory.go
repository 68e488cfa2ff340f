package storage

import (
	"context"
	"slices"
	"sort"
	"sync"

	"github.com/charmbracelet/log"

	"HoldemTable/internal/game/table"
)

type memEntry struct {
	t       *table.Table
	version int64
}

// memSub delivers snapshots to one subscriber in version order. Whoever
// notifies while nobody is draining becomes the drainer and hands over the
// newest pending snapshot until none is left; snapshots older than the last
// one delivered are dropped.
type memSub struct {
	fn func(*table.Table)

	mu       sync.Mutex
	pending  *table.Table
	pendingV int64
	sent     int64
	draining bool
}

func (s *memSub) offer(t *table.Table, version int64) {
	s.mu.Lock()
	if version > s.pendingV {
		s.pending, s.pendingV = t, version
	}
	if s.draining {
		// 正在投递的协程会接着发最新的
		s.mu.Unlock()
		return
	}
	s.draining = true
	for s.pendingV > s.sent {
		snap := s.pending
		s.sent = s.pendingV
		s.pending = nil
		s.mu.Unlock()
		s.fn(snap.Clone())
		s.mu.Lock()
	}
	s.draining = false
	s.mu.Unlock()
}

// MemoryStore keeps tables in process. Transactions are optimistic: the
// update function runs without the lock and the write is retried when the
// version moved underneath it.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*memEntry
	subs   map[string]map[int]*memSub
	nextID int
	log    *log.Logger
}

func NewMemoryStore(logger *log.Logger) *MemoryStore {
	return &MemoryStore{
		tables: make(map[string]*memEntry),
		subs:   make(map[string]map[int]*memSub),
		log:    logger,
	}
}

func (m *MemoryStore) CreateTable(ctx context.Context, t *table.Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tables[t.ID]; ok {
		return ErrTableExists
	}
	m.tables[t.ID] = &memEntry{t: t.Clone(), version: 1}
	return nil
}

func (m *MemoryStore) GetTable(ctx context.Context, id string) (*table.Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tables[id]
	if !ok {
		return nil, table.ErrTableNotFound
	}
	return e.t.Clone(), nil
}

func (m *MemoryStore) UpdateTable(ctx context.Context, id string, u Update) error {
	m.mu.Lock()
	e, ok := m.tables[id]
	if !ok {
		m.mu.Unlock()
		return table.ErrTableNotFound
	}
	next := e.t.Clone()
	next.Chat = append(next.Chat, u.Chat...)
	if over := len(next.Chat) - chatLimit; over > 0 {
		next.Chat = slices.Clone(next.Chat[over:])
	}
	e.t = next
	e.version++
	version := e.version
	m.mu.Unlock()

	m.notify(id, next, version)
	return nil
}

func (m *MemoryStore) Transaction(ctx context.Context, id string, fn TxFunc) (*table.Table, error) {
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		m.mu.Lock()
		e, ok := m.tables[id]
		if !ok {
			m.mu.Unlock()
			return nil, table.ErrTableNotFound
		}
		cur, version := e.t.Clone(), e.version
		m.mu.Unlock()

		next, err := fn(cur)
		if err != nil {
			return nil, err
		}
		if next == nil {
			return cur, nil
		}

		m.mu.Lock()
		if e.version != version {
			m.mu.Unlock()
			m.log.Debug("transaction conflict, retrying", "table", id, "attempt", attempt)
			continue
		}
		e.t = next.Clone()
		e.version++
		committed := e.version
		m.mu.Unlock()

		m.notify(id, next, committed)
		return next.Clone(), nil
	}
}

func (m *MemoryStore) Subscribe(ctx context.Context, id string, onChange func(*table.Table)) (func(), error) {
	m.mu.Lock()
	if _, ok := m.tables[id]; !ok {
		m.mu.Unlock()
		return nil, table.ErrTableNotFound
	}
	if m.subs[id] == nil {
		m.subs[id] = make(map[int]*memSub)
	}
	m.nextID++
	key := m.nextID
	// 订阅前的版本不再推送
	m.subs[id][key] = &memSub{fn: onChange, sent: m.tables[id].version, pendingV: m.tables[id].version}
	m.mu.Unlock()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs[id], key)
			m.mu.Unlock()
		})
	}
	go func() {
		<-ctx.Done()
		unsubscribe()
	}()
	return unsubscribe, nil
}

func (m *MemoryStore) ListTables(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.tables))
	for id := range m.tables {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *MemoryStore) Close() error { return nil }

// notify runs outside the store lock so callbacks may call back into the
// store. version is the entry version t was committed as.
func (m *MemoryStore) notify(id string, t *table.Table, version int64) {
	m.mu.Lock()
	subs := make([]*memSub, 0, len(m.subs[id]))
	for _, s := range m.subs[id] {
		subs = append(subs, s)
	}
	m.mu.Unlock()
	snap := t.Clone()
	for _, s := range subs {
		s.offer(snap, version)
	}
}

// MemoryCardStore is the in-process CardStore.
type MemoryCardStore struct {
	mu    sync.Mutex
	cards map[string]privateCards
}

func NewMemoryCardStore() *MemoryCardStore {
	return &MemoryCardStore{cards: make(map[string]privateCards)}
}

func cardKey(tableID, playerID string) string {
	return "holdem:cards:" + tableID + ":" + playerID
}

func (m *MemoryCardStore) Set(ctx context.Context, tableID, playerID string, cards []table.Card, handID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cards[cardKey(tableID, playerID)] = privateCards{HandID: handID, Cards: slices.Clone(cards)}
	return nil
}

func (m *MemoryCardStore) Get(ctx context.Context, tableID, playerID, handID string) ([]table.Card, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pc, ok := m.cards[cardKey(tableID, playerID)]
	if !ok || pc.HandID != handID {
		return nil, nil
	}
	return slices.Clone(pc.Cards), nil
}

func (m *MemoryCardStore) Clear(ctx context.Context, tableID, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cards, cardKey(tableID, playerID))
	return nil
}
