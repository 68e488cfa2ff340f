// Package phase is the hand state machine:
// waiting → preflop → flop → turn → river → showdown → waiting.
package phase

import (
	"HoldemTable/internal/game/betting"
	"HoldemTable/internal/game/players"
	"HoldemTable/internal/game/table"
)

// NextPhase is total; anything unrecognised falls back to waiting.
func NextPhase(p table.Phase) table.Phase {
	switch p {
	case table.PhaseWaiting:
		return table.PhasePreflop
	case table.PhasePreflop:
		return table.PhaseFlop
	case table.PhaseFlop:
		return table.PhaseTurn
	case table.PhaseTurn:
		return table.PhaseRiver
	case table.PhaseRiver:
		return table.PhaseShowdown
	}
	return table.PhaseWaiting
}

// CommunityCardsFor is how many board cards are dealt on entering p.
func CommunityCardsFor(p table.Phase) int {
	switch p {
	case table.PhaseFlop:
		return 3
	case table.PhaseTurn, table.PhaseRiver:
		return 1
	}
	return 0
}

// PrepareNextPhase returns a copy of t moved to the next phase with the
// per-round betting state cleared and the first actor chosen.
func PrepareNextPhase(t *table.Table) *table.Table {
	next := t.Clone()
	next.Phase = NextPhase(t.Phase)
	next.RoundBets = map[string]int64{}
	next.Acted = map[string]bool{}
	next.CurrentBet = 0
	next.MinRaise = 2 * t.BigBlind
	next.LastBettor = ""
	next.FullBet = 0
	if next.Phase != table.PhaseShowdown {
		next.CurrentPlayerIndex = FirstToAct(next)
	}
	return next
}

// ShouldAdvancePhase is true once at most one contender is left or the
// betting round is settled.
func ShouldAdvancePhase(t *table.Table) bool {
	return len(t.Contenders()) <= 1 || betting.IsRoundComplete(t)
}

// FirstToAct picks who opens the action in t.Phase. Heads-up the dealer
// acts first preflop and last afterwards; with more players the first
// active seat after the dealer opens every street, preflop included.
func FirstToAct(t *table.Table) int {
	if t.Phase == table.PhasePreflop && len(t.Contenders()) == 2 &&
		players.CanAct(t.Players[t.DealerPosition]) {
		return t.DealerPosition
	}
	return players.NextActiveIndex(t, t.DealerPosition)
}

// BlindSeats returns the small and big blind seats among the players dealt
// into the hand. Heads-up the dealer posts the small blind.
func BlindSeats(t *table.Table) (sb, bb int) {
	if len(t.Contenders()) == 2 {
		sb = t.DealerPosition
		return sb, nextInHand(t, sb)
	}
	sb = nextInHand(t, t.DealerPosition)
	return sb, nextInHand(t, sb)
}

func nextInHand(t *table.Table, from int) int {
	n := len(t.Players)
	for step := 1; step < n; step++ {
		i := (from + step) % n
		if players.InHand(t.Players[i]) {
			return i
		}
	}
	return from
}
