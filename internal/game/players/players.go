// Package players holds the stateless seat bookkeeping used by the betting
// and phase logic: who can still act, whose turn is next, where the dealer
// button moves.
package players

import (
	"HoldemTable/internal/game/table"
)

// CanAct reports whether the seat can still take a betting action this hand.
func CanAct(p table.Player) bool {
	return p.IsActive && !p.HasFolded && p.Chips > 0
}

// ActivePlayers returns the seat indexes that can still act, in seat order.
func ActivePlayers(t *table.Table) []int {
	out := make([]int, 0, len(t.Players))
	for i, p := range t.Players {
		if CanAct(p) {
			out = append(out, i)
		}
	}
	return out
}

// NextDealer moves the button to the next seat that is active and has chips.
// With nobody else eligible the button stays put.
func NextDealer(t *table.Table) int {
	n := len(t.Players)
	for step := 1; step <= n; step++ {
		i := (t.DealerPosition + step) % n
		if i == t.DealerPosition {
			break
		}
		p := t.Players[i]
		if p.IsActive && p.Chips > 0 {
			return i
		}
	}
	return t.DealerPosition
}

// NextActiveIndex returns the next seat after from that can act. It returns
// from unchanged when no other seat qualifies within one full loop.
func NextActiveIndex(t *table.Table, from int) int {
	n := len(t.Players)
	if n == 0 {
		return from
	}
	for step := 1; step < n; step++ {
		i := ((from+step)%n + n) % n
		if CanAct(t.Players[i]) {
			return i
		}
	}
	return from
}

// PreviousActiveIndex walks counter-clockwise; same fallback as NextActiveIndex.
func PreviousActiveIndex(t *table.Table, from int) int {
	n := len(t.Players)
	if n == 0 {
		return from
	}
	for step := 1; step < n; step++ {
		i := ((from-step)%n + n) % n
		if CanAct(t.Players[i]) {
			return i
		}
	}
	return from
}

// PlaceBet moves up to amount chips from the player into the pot on the
// working table t. It fails with ErrInsufficientChips when amount exceeds
// the stack unless allowAllIn is set, in which case the bet is clamped to
// the stack. It returns the chips actually moved.
func PlaceBet(t *table.Table, playerID string, amount int64, allowAllIn bool) (int64, error) {
	p, err := t.Player(playerID)
	if err != nil {
		return 0, err
	}
	if amount > p.Chips {
		if !allowAllIn {
			return 0, table.ErrInsufficientChips
		}
		amount = p.Chips
	}
	if err := t.Stake(playerID, amount); err != nil {
		return 0, err
	}
	return amount, nil
}

// IsAllIn reports a player who has nothing behind but chips in this round.
func IsAllIn(p table.Player, roundBets map[string]int64) bool {
	return p.Chips == 0 && roundBets[p.ID] > 0
}

// InHand reports a contender who is either able to act or all-in.
func InHand(p table.Player) bool {
	return p.IsActive && !p.HasFolded
}
