package matchmaker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRepo struct {
	rdb *redis.Client
}

func NewRedisRepo(rdb *redis.Client) Repo {
	return &redisRepo{rdb: rdb}
}

// key 约定：
//
//	set: holdem:mm:pool:{pool}:{tableSize}  -> Set(playerID,...)
//	kv : holdem:mm:player:{playerID}        -> 所在池的 key (便于取消时定位池)
//	kv : holdem:mm:match:{tableID}          -> Match JSON
//	kv : holdem:mm:playerTable:{playerID}   -> tableID
func poolKey(pool string, tableSize int) string {
	return fmt.Sprintf("holdem:mm:pool:%s:%d", pool, tableSize)
}
func playerKey(id string) string      { return "holdem:mm:player:" + id }
func matchKey(tableID string) string  { return "holdem:mm:match:" + tableID }
func playerTableKey(id string) string { return "holdem:mm:playerTable:" + id }

// KEYS[1] = playerKey, KEYS[2] = poolKey, ARGV[1] = playerID
var removeScript = redis.NewScript(`
redis.call("DEL", KEYS[1])
redis.call("SREM", KEYS[2], ARGV[1])
if redis.call("SCARD", KEYS[2]) == 0 then
    redis.call("DEL", KEYS[2])
end
return 1
`)

func (r *redisRepo) Enqueue(ctx context.Context, pool string, tableSize int, playerID string, ttl time.Duration) error {
	key := poolKey(pool, tableSize)
	p := r.rdb.TxPipeline()
	p.SAdd(ctx, key, playerID)
	p.Set(ctx, playerKey(playerID), key, ttl)
	_, err := p.Exec(ctx)
	return err
}

func (r *redisRepo) PopNRandom(ctx context.Context, pool string, tableSize int, n int) ([]string, error) {
	// SPOP COUNT 原子地随机弹出 n 个
	res, err := r.rdb.SPopN(ctx, poolKey(pool, tableSize), int64(n)).Result()
	if err != nil {
		return nil, err
	}
	if len(res) > 0 && len(res) < n {
		// 并发下被别人先弹走了一部分，放回去继续排队
		members := make([]interface{}, len(res))
		for i, id := range res {
			members[i] = id
		}
		if err := r.rdb.SAdd(ctx, poolKey(pool, tableSize), members...).Err(); err != nil {
			return nil, err
		}
		return []string{}, nil
	}
	if len(res) > 0 {
		p := r.rdb.Pipeline()
		for _, id := range res {
			p.Del(ctx, playerKey(id))
		}
		if _, err := p.Exec(ctx); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func (r *redisRepo) Remove(ctx context.Context, playerID string) error {
	key, err := r.rdb.Get(ctx, playerKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return removeScript.Run(ctx, r.rdb, []string{playerKey(playerID), key}, playerID).Err()
}

func (r *redisRepo) Count(ctx context.Context, pool string, tableSize int) (int64, error) {
	return r.rdb.SCard(ctx, poolKey(pool, tableSize)).Result()
}

func (r *redisRepo) SaveMatch(ctx context.Context, m *Match, ttl time.Duration) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}
	p := r.rdb.Pipeline()
	p.Set(ctx, matchKey(m.TableID), data, ttl)
	for _, id := range m.Players {
		p.Set(ctx, playerTableKey(id), m.TableID, ttl)
	}
	_, err = p.Exec(ctx)
	return err
}

func (r *redisRepo) PlayerTable(ctx context.Context, playerID string) (string, error) {
	val, err := r.rdb.Get(ctx, playerTableKey(playerID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return val, nil
}
