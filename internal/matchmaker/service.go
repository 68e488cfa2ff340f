// Package matchmaker queues players by pool and table size and, once a pool
// fills, opens a table for them and deals the first hand.
package matchmaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"

	"HoldemTable/internal/game/engine"
	"HoldemTable/internal/websocket"
)

var (
	ErrInvalidTableSize = errors.New("invalid tableSize")
	ErrAlreadySeated    = errors.New("player is already seated at a matched table")
)

type HubBroadcaster interface {
	BroadcastToPlayers(playerIDs []string, msg websocket.OutgoingMessage)
}

// TableOpener starts pushing a table's state to its players.
type TableOpener interface {
	OpenTable(ctx context.Context, tableID string) error
}

type Service struct {
	repo     Repo
	eng      *engine.Engine
	tables   TableOpener
	hub      HubBroadcaster
	clock    quartz.Clock
	queueTTL time.Duration // 防止遗留队列
	log      *log.Logger
}

func NewService(repo Repo, eng *engine.Engine, tables TableOpener, hub HubBroadcaster, clock quartz.Clock, queueTTL time.Duration, logger *log.Logger) *Service {
	return &Service{
		repo:     repo,
		eng:      eng,
		tables:   tables,
		hub:      hub,
		clock:    clock,
		queueTTL: queueTTL,
		log:      logger,
	}
}

// Join 入队并尝试立即成桌（随机）。若可成桌，返回结果；否则返回排队中。
func (s *Service) Join(ctx context.Context, playerID string, req JoinRequest) (*Match, bool, error) {
	if req.TableSize < 2 || req.TableSize > s.eng.Options().MaxSeats {
		return nil, false, ErrInvalidTableSize
	}

	// 防止重复匹配：玩家仍坐在上一次匹配的桌子上
	seated, err := s.stillSeated(ctx, playerID)
	if err != nil {
		return nil, false, err
	}
	if seated {
		return nil, false, ErrAlreadySeated
	}

	if err := s.repo.Enqueue(ctx, req.Pool, req.TableSize, playerID, s.queueTTL); err != nil {
		return nil, false, err
	}
	cnt, err := s.repo.Count(ctx, req.Pool, req.TableSize)
	if err != nil {
		return nil, false, err
	}
	if int(cnt) < req.TableSize {
		return nil, true, nil // queued
	}
	ids, err := s.repo.PopNRandom(ctx, req.Pool, req.TableSize, req.TableSize)
	if err != nil {
		return nil, false, err
	}
	if len(ids) < req.TableSize {
		// 并发竞争导致人数不足：回退为排队状态
		return nil, true, nil
	}

	m, err := s.seat(ctx, req, ids)
	if err != nil {
		return nil, false, err
	}
	return m, false, nil
}

func (s *Service) Cancel(ctx context.Context, playerID string) error {
	return s.repo.Remove(ctx, playerID)
}

func (s *Service) stillSeated(ctx context.Context, playerID string) (bool, error) {
	tableID, err := s.repo.PlayerTable(ctx, playerID)
	if err != nil || tableID == "" {
		return false, err
	}
	t, err := s.eng.GetTable(ctx, tableID)
	if err != nil {
		// 桌子已不存在，视为空闲
		return false, nil
	}
	return engine.Seated(t, playerID), nil
}

// seat creates the table, joins the players in queue order and deals.
func (s *Service) seat(ctx context.Context, req JoinRequest, ids []string) (*Match, error) {
	t, err := s.eng.CreateTable(ctx, req.Pool)
	if err != nil {
		return nil, fmt.Errorf("create matched table: %w", err)
	}
	for _, id := range ids {
		if _, err := s.eng.JoinTable(ctx, t.ID, id, ""); err != nil {
			return nil, fmt.Errorf("seat %s: %w", id, err)
		}
	}
	if err := s.tables.OpenTable(ctx, t.ID); err != nil {
		return nil, err
	}

	m := &Match{
		TableID:   t.ID,
		Pool:      req.Pool,
		TableSize: req.TableSize,
		Players:   ids,
		CreatedAt: s.clock.Now(),
	}
	if err := s.repo.SaveMatch(ctx, m, 0); err != nil {
		s.log.Warn("save match", "table", t.ID, "err", err)
	}

	//通知所有桌内玩家（通过 WebSocket Hub）
	s.hub.BroadcastToPlayers(ids, websocket.OutgoingMessage{
		Event: websocket.EventMatched,
		Data:  m,
	})
	s.log.Info("table matched", "table", t.ID, "pool", req.Pool, "players", ids)

	if _, err := s.eng.StartGame(ctx, t.ID); err != nil {
		s.log.Warn("deal matched table", "table", t.ID, "err", err)
	}
	return m, nil
}
