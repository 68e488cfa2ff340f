package matchmaker

import "time"

// JoinRequest 前端提交的匹配请求，玩家身份来自 JWT
type JoinRequest struct {
	Pool      string `json:"pool" binding:"required"`      // 例如 "cash-10-20"
	TableSize int    `json:"tableSize" binding:"required"` // 2/6/9 等
}

// JoinResponse 返回是否已成桌；若已成桌则给出桌子信息
type JoinResponse struct {
	Queued    bool     `json:"queued"`
	TableID   string   `json:"tableId,omitempty"`
	Players   []string `json:"players,omitempty"`
	Pool      string   `json:"pool"`
	TableSize int      `json:"tableSize"`
}

// Match 组桌结果
type Match struct {
	TableID   string    `json:"tableId"`
	Pool      string    `json:"pool"`
	TableSize int       `json:"tableSize"`
	Players   []string  `json:"players"`
	CreatedAt time.Time `json:"createdAt"`
}
