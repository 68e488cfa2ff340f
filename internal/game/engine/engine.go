// Package engine orchestrates a table: it validates an action against the
// latest committed state, computes the delta, applies it and moves the
// turn, phase and hand forward, all inside one store transaction.
package engine

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/google/uuid"

	"HoldemTable/internal/game/betting"
	"HoldemTable/internal/game/table"
	"HoldemTable/internal/storage"
)

type Options struct {
	SmallBlind    int64
	BigBlind      int64
	StartingChips int64
	MaxSeats      int
	TurnTimeLimit time.Duration
	// NextHandDelay is the pause between showdown and the next deal. Zero
	// disables automatic dealing.
	NextHandDelay time.Duration
	// Seed fixes the shuffle for tests; zero seeds from the clock.
	Seed int64
}

func DefaultOptions() Options {
	return Options{
		SmallBlind:    10,
		BigBlind:      20,
		StartingChips: 1000,
		MaxSeats:      9,
		TurnTimeLimit: 30 * time.Second,
		NextHandDelay: 5 * time.Second,
	}
}

type Engine struct {
	store storage.Store
	cards storage.CardStore
	clock quartz.Clock
	log   *log.Logger
	opts  Options

	mu     sync.Mutex
	rnd    *rand.Rand
	timers map[string]*pendingHand
}

type pendingHand struct {
	afterHand string
	timer     *quartz.Timer
}

func New(store storage.Store, cards storage.CardStore, clock quartz.Clock, logger *log.Logger, opts Options) *Engine {
	seed := opts.Seed
	if seed == 0 {
		seed = clock.Now().UnixNano()
	}
	return &Engine{
		store:  store,
		cards:  cards,
		clock:  clock,
		log:    logger,
		opts:   opts,
		rnd:    rand.New(rand.NewSource(seed)),
		timers: make(map[string]*pendingHand),
	}
}

func (e *Engine) Options() Options { return e.opts }

func (e *Engine) seed() int64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rnd.Int63()
}

// CreateTable opens a new table in the waiting phase.
func (e *Engine) CreateTable(ctx context.Context, name string) (*table.Table, error) {
	t := table.New(uuid.NewString(), e.opts.SmallBlind, e.opts.BigBlind)
	t.Name = name
	t.MaxSeats = e.opts.MaxSeats
	t.TurnTimeLimit = e.opts.TurnTimeLimit
	if err := e.store.CreateTable(ctx, t); err != nil {
		return nil, err
	}
	e.log.Info("table created", "table", t.ID, "name", name)
	return t.Public(), nil
}

func (e *Engine) GetTable(ctx context.Context, tableID string) (*table.Table, error) {
	t, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	return t.Public(), nil
}

// ListTables returns every stored table, public view.
func (e *Engine) ListTables(ctx context.Context) ([]*table.Table, error) {
	ids, err := e.store.ListTables(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*table.Table, 0, len(ids))
	for _, id := range ids {
		t, err := e.store.GetTable(ctx, id)
		if errors.Is(err, table.ErrTableNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, t.Public())
	}
	return out, nil
}

// JoinTable seats a player with the starting stack. Someone joining while
// a hand is running sits out until the next deal.
func (e *Engine) JoinTable(ctx context.Context, tableID, playerID, name string) (*table.Table, error) {
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		next := cur.Clone()
		seated := 0
		for _, p := range next.Players {
			if p.IsActive {
				seated++
			}
		}

		if p, err := next.Player(playerID); err == nil {
			if p.IsActive {
				return nil, table.ErrAlreadySeated
			}
			if next.MaxSeats > 0 && seated >= next.MaxSeats {
				return nil, table.ErrTableFull
			}
			p.IsActive = true
			p.HasFolded = next.IsHandInProgress
			if name != "" {
				p.Name = name
			}
			return next, nil
		}

		if next.MaxSeats > 0 && seated >= next.MaxSeats {
			return nil, table.ErrTableFull
		}
		next.Players = append(next.Players, table.Player{
			ID:        playerID,
			Name:      name,
			Chips:     e.opts.StartingChips,
			Position:  len(next.Players),
			IsActive:  true,
			HasFolded: next.IsHandInProgress,
		})
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("player joined", "table", tableID, "player", playerID)
	return committed.Public(), nil
}

// LeaveTable marks the seat inactive. A player leaving mid-hand folds; if
// it was their turn the action moves on as for any other fold.
func (e *Engine) LeaveTable(ctx context.Context, tableID, playerID string) (*table.Table, error) {
	now := e.clock.Now()
	seed := e.seed()
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		p, err := cur.Player(playerID)
		if err != nil {
			return nil, err
		}
		if !p.IsActive {
			return nil, nil
		}

		if !cur.IsHandInProgress || !cur.Phase.Betting() || p.HasFolded {
			next := cur.Clone()
			leaver, _ := next.Player(playerID)
			leaver.IsActive = false
			return next, nil
		}

		if turn, ok := cur.CurrentPlayer(); ok && turn.ID == playerID {
			d, err := betting.Fold(cur, playerID)
			if err != nil {
				return nil, err
			}
			d.At = now
			next, err := cur.Apply(d)
			if err != nil {
				return nil, err
			}
			leaver, _ := next.Player(playerID)
			leaver.IsActive = false
			return advance(next, seed)
		}

		next := cur.Clone()
		leaver, _ := next.Player(playerID)
		leaver.HasFolded = true
		leaver.IsActive = false
		if len(next.Contenders()) <= 1 {
			return settle(next)
		}
		return next, nil
	})
	if err != nil {
		return nil, err
	}
	e.log.Info("player left", "table", tableID, "player", playerID)
	e.afterCommit(ctx, committed, "")
	return committed.Public(), nil
}

// StartGame deals the first hand of a waiting table.
func (e *Engine) StartGame(ctx context.Context, tableID string) (*table.Table, error) {
	now := e.clock.Now()
	seed := e.seed()
	handID := uuid.NewString()
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		if cur.Phase != table.PhaseWaiting || cur.IsHandInProgress {
			return nil, table.ErrWrongPhase
		}
		if eligible(cur) < 2 {
			return nil, table.ErrNotEnoughPlayers
		}
		return startHand(cur, handID, seed, now)
	})
	if err != nil {
		return nil, err
	}
	e.afterCommit(ctx, committed, handID)
	return committed.Public(), nil
}

// StartNewHand deals the next hand once the previous one is settled. With
// fewer than two players holding chips the table goes back to waiting.
func (e *Engine) StartNewHand(ctx context.Context, tableID string) (*table.Table, error) {
	now := e.clock.Now()
	seed := e.seed()
	handID := uuid.NewString()
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		if cur.IsHandInProgress {
			return nil, table.ErrWrongPhase
		}
		if eligible(cur) < 2 {
			if cur.Phase == table.PhaseWaiting {
				return nil, nil
			}
			next := cur.Clone()
			next.Phase = table.PhaseWaiting
			return next, nil
		}
		return startHand(cur, handID, seed, now)
	})
	if err != nil {
		return nil, err
	}
	e.afterCommit(ctx, committed, handID)
	return committed.Public(), nil
}

// HandlePlayerAction validates and applies one betting action from the
// player whose turn it is.
func (e *Engine) HandlePlayerAction(ctx context.Context, tableID, playerID string, action table.Action, amount int64) (*table.Table, error) {
	now := e.clock.Now()
	seed := e.seed()
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		if !cur.Phase.Betting() {
			return nil, table.ErrWrongPhase
		}
		if _, err := cur.Player(playerID); err != nil {
			return nil, err
		}
		if turn, ok := cur.CurrentPlayer(); !ok || turn.ID != playerID {
			return nil, table.ErrNotYourTurn
		}
		d, err := betting.Handle(cur, playerID, action, amount)
		if err != nil {
			return nil, err
		}
		d.At = now
		next, err := cur.Apply(d)
		if err != nil {
			return nil, err
		}
		return advance(next, seed)
	})
	if err != nil {
		e.log.Debug("action rejected", "table", tableID, "player", playerID, "action", action, "amount", amount, "err", err)
		return nil, err
	}
	e.log.Info("action", "table", tableID, "player", playerID, "action", action, "amount", amount,
		"phase", committed.Phase, "pot", committed.Pot)
	e.afterCommit(ctx, committed, "")
	return committed.Public(), nil
}

// TimeoutPlayer folds the current player if their turn has run past the
// table's limit. The check is repeated inside the transaction, so a player
// who acted in the meantime is left alone.
func (e *Engine) TimeoutPlayer(ctx context.Context, tableID string) (bool, error) {
	now := e.clock.Now()
	seed := e.seed()
	var folded string
	committed, err := e.store.Transaction(ctx, tableID, func(cur *table.Table) (*table.Table, error) {
		folded = ""
		if !Stale(cur, now) {
			return nil, nil
		}
		turn, _ := cur.CurrentPlayer()
		d, err := betting.Fold(cur, turn.ID)
		if err != nil {
			return nil, err
		}
		d.At = now
		next, err := cur.Apply(d)
		if err != nil {
			return nil, err
		}
		folded = turn.ID
		return advance(next, seed)
	})
	if err != nil {
		return false, err
	}
	if folded == "" {
		return false, nil
	}
	e.log.Warn("turn timed out, folding", "table", tableID, "player", folded)
	e.afterCommit(ctx, committed, "")
	return true, nil
}

// Stale reports a betting turn that has run past the table's time limit.
func Stale(t *table.Table, now time.Time) bool {
	if !t.Phase.Betting() || !t.IsHandInProgress || t.TurnTimeLimit <= 0 {
		return false
	}
	if _, ok := t.CurrentPlayer(); !ok {
		return false
	}
	return now.Sub(t.LastActionTimestamp) > t.TurnTimeLimit
}

// HoleCards returns the player's cards for the hand currently on the table.
func (e *Engine) HoleCards(ctx context.Context, tableID, playerID string) ([]table.Card, error) {
	t, err := e.store.GetTable(ctx, tableID)
	if err != nil {
		return nil, err
	}
	if _, err := t.Player(playerID); err != nil {
		return nil, err
	}
	return e.cards.Get(ctx, tableID, playerID, t.HandID)
}

// Close stops pending next-hand timers.
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, p := range e.timers {
		p.timer.Stop()
		delete(e.timers, id)
	}
}

// afterCommit runs the side effects of a committed transaction: private
// cards for a freshly dealt hand, showdown logging and the next-hand timer.
// startedHand is the hand id this call dealt, if any.
func (e *Engine) afterCommit(ctx context.Context, t *table.Table, startedHand string) {
	logger := e.log.With("table", t.ID)

	if startedHand != "" && t.HandID == startedHand {
		logger.Info("hand started", "hand", t.HandID, "dealer", t.DealerPosition, "players", len(t.Contenders()))
		e.publishCards(ctx, t)
	}

	if t.Phase != table.PhaseShowdown || t.IsHandInProgress {
		return
	}
	for _, w := range t.Winners {
		logger.Info("pot awarded", "hand", t.HandID, "player", w.PlayerID, "amount", w.Amount, "hand_rank", w.HandRank)
	}
	if unevenContributions(t) {
		// TODO: split side pots once all-in amounts differ instead of sharing the whole pot
		logger.Warn("contenders committed different amounts; pot split without side pots", "hand", t.HandID, "contributions", t.Contributions)
	}
	e.scheduleNextHand(t.ID, t.HandID)
}

func (e *Engine) publishCards(ctx context.Context, t *table.Table) {
	for _, p := range t.Players {
		if err := e.cards.Clear(ctx, t.ID, p.ID); err != nil {
			e.log.Error("clear private cards", "table", t.ID, "player", p.ID, "err", err)
		}
		hole, ok := t.HoleCards[p.ID]
		if !ok {
			continue
		}
		if err := e.cards.Set(ctx, t.ID, p.ID, hole, t.HandID); err != nil {
			e.log.Error("store private cards", "table", t.ID, "player", p.ID, "err", err)
		}
	}
}

func (e *Engine) scheduleNextHand(tableID, afterHand string) {
	if e.opts.NextHandDelay <= 0 {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, ok := e.timers[tableID]; ok {
		if p.afterHand == afterHand {
			return
		}
		p.timer.Stop()
	}
	pending := &pendingHand{afterHand: afterHand}
	pending.timer = e.clock.AfterFunc(e.opts.NextHandDelay, func() {
		e.mu.Lock()
		if e.timers[tableID] == pending {
			delete(e.timers, tableID)
		}
		e.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := e.StartNewHand(ctx, tableID); err != nil {
			e.log.Warn("next hand not dealt", "table", tableID, "err", err)
		}
	}, "engine", "nextHand")
	e.timers[tableID] = pending
}

func eligible(t *table.Table) int {
	n := 0
	for _, p := range t.Players {
		if p.IsActive && p.Chips > 0 {
			n++
		}
	}
	return n
}

func unevenContributions(t *table.Table) bool {
	var first int64 = -1
	for _, i := range t.Contenders() {
		c := t.Contributions[t.Players[i].ID]
		if first < 0 {
			first = c
			continue
		}
		if c != first {
			return true
		}
	}
	return false
}

// Seated reports whether the player has an active seat.
func Seated(t *table.Table, playerID string) bool {
	p, err := t.Player(playerID)
	return err == nil && p.IsActive
}
