package matchmaker

import (
	"context"
	"time"
)

// Repo 定义对匹配池的抽象操作
type Repo interface {
	// Enqueue 将玩家加入指定池（pool+tableSize）
	Enqueue(ctx context.Context, pool string, tableSize int, playerID string, ttl time.Duration) error
	// PopNRandom 当池内达到 N 人时，随机弹出 N 人（原子）
	PopNRandom(ctx context.Context, pool string, tableSize int, n int) ([]string, error)
	// Remove 将玩家从当前池移除（用于取消）
	Remove(ctx context.Context, playerID string) error
	// Count 返回池内人数
	Count(ctx context.Context, pool string, tableSize int) (int64, error)
	// SaveMatch 记录成桌结果以及每个玩家 → 桌子的映射
	SaveMatch(ctx context.Context, m *Match, ttl time.Duration) error
	// PlayerTable 返回玩家最近一次匹配到的桌子，没有时为空串
	PlayerTable(ctx context.Context, playerID string) (string, error)
}
