package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"HoldemTable/internal/game/table"
)

// key 约定：
//
//	string: holdem:table:{id}          -> JSON table blob (chat 不在这里)
//	list  : holdem:table:{id}:chat     -> JSON chat messages, newest last
//	set   : holdem:tables              -> table ids
//	pubsub: holdem:table:{id}:events   -> table id after every commit
func tableKey(id string) string  { return fmt.Sprintf("holdem:table:%s", id) }
func chatKey(id string) string   { return fmt.Sprintf("holdem:table:%s:chat", id) }
func eventsKey(id string) string { return fmt.Sprintf("holdem:table:%s:events", id) }
func tablesKey() string          { return "holdem:tables" }

// NewRedisClient connects and pings.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

// RedisStore keeps each table as one JSON value and commits with
// WATCH/MULTI/EXEC, retrying when the watched key changed.
type RedisStore struct {
	rdb *redis.Client
	log *log.Logger
}

func NewRedisStore(rdb *redis.Client, logger *log.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, log: logger}
}

func (r *RedisStore) CreateTable(ctx context.Context, t *table.Table) error {
	data, err := encode(withoutChat(t))
	if err != nil {
		return err
	}
	ok, err := r.rdb.SetNX(ctx, tableKey(t.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("create table %s: %w", t.ID, err)
	}
	if !ok {
		return ErrTableExists
	}
	return r.rdb.SAdd(ctx, tablesKey(), t.ID).Err()
}

func (r *RedisStore) GetTable(ctx context.Context, id string) (*table.Table, error) {
	data, err := r.rdb.Get(ctx, tableKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, table.ErrTableNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get table %s: %w", id, err)
	}
	t, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := r.attachChat(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

func (r *RedisStore) attachChat(ctx context.Context, t *table.Table) error {
	raw, err := r.rdb.LRange(ctx, chatKey(t.ID), -chatLimit, -1).Result()
	if err != nil {
		return fmt.Errorf("load chat %s: %w", t.ID, err)
	}
	t.Chat = make([]table.ChatMessage, 0, len(raw))
	for _, s := range raw {
		var msg table.ChatMessage
		if err := json.Unmarshal([]byte(s), &msg); err != nil {
			r.log.Warn("skipping malformed chat message", "table", t.ID, "err", err)
			continue
		}
		t.Chat = append(t.Chat, msg)
	}
	return nil
}

// UpdateTable appends chat to its own list, so it never races the
// transactional table blob.
func (r *RedisStore) UpdateTable(ctx context.Context, id string, u Update) error {
	exists, err := r.rdb.Exists(ctx, tableKey(id)).Result()
	if err != nil {
		return fmt.Errorf("update table %s: %w", id, err)
	}
	if exists == 0 {
		return table.ErrTableNotFound
	}
	if len(u.Chat) == 0 {
		return nil
	}

	p := r.rdb.Pipeline()
	for _, msg := range u.Chat {
		data, err := json.Marshal(msg)
		if err != nil {
			return fmt.Errorf("encode chat: %w", err)
		}
		p.RPush(ctx, chatKey(id), data)
	}
	p.LTrim(ctx, chatKey(id), -chatLimit, -1)
	p.Publish(ctx, eventsKey(id), id)
	if _, err := p.Exec(ctx); err != nil {
		return fmt.Errorf("append chat %s: %w", id, err)
	}
	return nil
}

func (r *RedisStore) Transaction(ctx context.Context, id string, fn TxFunc) (*table.Table, error) {
	key := tableKey(id)
	var committed *table.Table
	var changed bool
	var fnErr error

	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			fnErr = table.ErrTableNotFound
			return fnErr
		}
		if err != nil {
			return err
		}
		cur, err := decode(data)
		if err != nil {
			return err
		}
		next, err := fn(cur)
		if err != nil {
			fnErr = err
			return err
		}
		if next == nil {
			committed, changed = cur, false
			return nil
		}
		payload, err := encode(withoutChat(next))
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Set(ctx, key, payload, 0)
			return nil
		})
		if err != nil {
			return err
		}
		committed, changed = next, true
		return nil
	}

	for attempt := 1; ; attempt++ {
		fnErr = nil
		err := r.rdb.Watch(ctx, txf, key)
		if fnErr != nil {
			return nil, fnErr
		}
		if err == nil {
			break
		}
		if errors.Is(err, redis.TxFailedErr) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			r.log.Debug("transaction conflict, retrying", "table", id, "attempt", attempt)
			continue
		}
		return nil, fmt.Errorf("transaction on table %s: %w", id, err)
	}

	if changed {
		if err := r.rdb.Publish(ctx, eventsKey(id), id).Err(); err != nil {
			r.log.Warn("publish failed", "table", id, "err", err)
		}
	}
	if err := r.attachChat(ctx, committed); err != nil {
		return nil, err
	}
	return committed, nil
}

func (r *RedisStore) Subscribe(ctx context.Context, id string, onChange func(*table.Table)) (func(), error) {
	ps := r.rdb.Subscribe(ctx, eventsKey(id))
	// 等待订阅确认，之后的 Publish 不会丢
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", id, err)
	}

	subCtx, cancel := context.WithCancel(ctx)
	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			_ = ps.Close()
		})
	}

	go func() {
		defer unsubscribe()
		ch := ps.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				t, err := r.GetTable(subCtx, id)
				if err != nil {
					if subCtx.Err() == nil {
						r.log.Warn("reload after publish failed", "table", id, "err", err)
					}
					continue
				}
				onChange(t)
			}
		}
	}()
	return unsubscribe, nil
}

func (r *RedisStore) ListTables(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, tablesKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisStore) Close() error { return r.rdb.Close() }

// RedisCardStore keeps hole cards under their own key with a TTL so a
// crashed table does not leave cards behind forever.
type RedisCardStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCardStore(rdb *redis.Client, ttl time.Duration) *RedisCardStore {
	return &RedisCardStore{rdb: rdb, ttl: ttl}
}

func (r *RedisCardStore) Set(ctx context.Context, tableID, playerID string, cards []table.Card, handID string) error {
	data, err := json.Marshal(privateCards{HandID: handID, Cards: cards})
	if err != nil {
		return fmt.Errorf("encode cards: %w", err)
	}
	return r.rdb.Set(ctx, cardKey(tableID, playerID), data, r.ttl).Err()
}

func (r *RedisCardStore) Get(ctx context.Context, tableID, playerID, handID string) ([]table.Card, error) {
	data, err := r.rdb.Get(ctx, cardKey(tableID, playerID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get cards: %w", err)
	}
	var pc privateCards
	if err := json.Unmarshal(data, &pc); err != nil {
		return nil, fmt.Errorf("decode cards: %w", err)
	}
	if pc.HandID != handID {
		return nil, nil
	}
	return pc.Cards, nil
}

func (r *RedisCardStore) Clear(ctx context.Context, tableID, playerID string) error {
	return r.rdb.Del(ctx, cardKey(tableID, playerID)).Err()
}
