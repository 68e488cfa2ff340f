package matchmaker

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

type memRepo struct {
	mu      sync.Mutex
	pools   map[string]map[string]struct{} // key -> set(playerID)
	players map[string]string              // playerID -> key
	tables  map[string]string              // playerID -> tableID
}

func NewMemoryRepo() Repo {
	return &memRepo{
		pools:   make(map[string]map[string]struct{}),
		players: make(map[string]string),
		tables:  make(map[string]string),
	}
}

func memKey(pool string, tableSize int) string {
	return fmt.Sprintf("mm:pool:%s:%d", pool, tableSize)
}

func (m *memRepo) Enqueue(ctx context.Context, pool string, tableSize int, playerID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := memKey(pool, tableSize)
	if _, ok := m.pools[key]; !ok {
		m.pools[key] = make(map[string]struct{})
	}
	m.pools[key][playerID] = struct{}{}
	m.players[playerID] = key
	// 内存版忽略 TTL
	return nil
}

func (m *memRepo) PopNRandom(ctx context.Context, pool string, tableSize int, n int) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := memKey(pool, tableSize)
	s, ok := m.pools[key]
	if !ok || len(s) < n {
		return []string{}, nil
	}

	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	rand.Shuffle(len(ids), func(i, j int) { ids[i], ids[j] = ids[j], ids[i] })
	chosen := ids[:n]

	// 只移除选中的人，其余继续排队（与 SPOP 行为对齐）
	for _, id := range chosen {
		delete(s, id)
		delete(m.players, id)
	}
	if len(s) == 0 {
		delete(m.pools, key)
	}
	return chosen, nil
}

func (m *memRepo) Remove(ctx context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.players[playerID]
	if !ok {
		return nil
	}
	if s, ok := m.pools[key]; ok {
		delete(s, playerID)
		if len(s) == 0 {
			delete(m.pools, key)
		}
	}
	delete(m.players, playerID)
	return nil
}

func (m *memRepo) Count(ctx context.Context, pool string, tableSize int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.pools[memKey(pool, tableSize)])), nil
}

func (m *memRepo) SaveMatch(ctx context.Context, match *Match, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range match.Players {
		m.tables[id] = match.TableID
	}
	return nil
}

func (m *memRepo) PlayerTable(ctx context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tables[playerID], nil
}
