// Package betting validates single betting actions and turns them into a
// table.Delta. Nothing here mutates the table it is given.
package betting

import (
	"HoldemTable/internal/game/players"
	"HoldemTable/internal/game/table"
)

// Handle dispatches one action. For bet the amount is the bet size; for
// raise it is the new total the player wants to have in front of them.
func Handle(t *table.Table, playerID string, action table.Action, amount int64) (table.Delta, error) {
	switch action {
	case table.ActionFold:
		return Fold(t, playerID)
	case table.ActionCheck:
		return Check(t, playerID)
	case table.ActionCall:
		return Call(t, playerID)
	case table.ActionBet:
		return Bet(t, playerID, amount)
	case table.ActionRaise:
		return Raise(t, playerID, amount)
	}
	return table.Delta{}, table.ErrUnknownAction
}

func actor(t *table.Table, playerID string) (*table.Player, error) {
	if !t.Phase.Betting() {
		return nil, table.ErrWrongPhase
	}
	p, err := t.Player(playerID)
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, table.ErrPlayerNotFound
	}
	if p.HasFolded {
		return nil, table.ErrPlayerFolded
	}
	return p, nil
}

func Fold(t *table.Table, playerID string) (table.Delta, error) {
	if _, err := actor(t, playerID); err != nil {
		return table.Delta{}, err
	}
	return table.Delta{PlayerID: playerID, Action: table.ActionFold, Fold: true}, nil
}

func Check(t *table.Table, playerID string) (table.Delta, error) {
	if _, err := actor(t, playerID); err != nil {
		return table.Delta{}, err
	}
	if t.RoundBets[playerID] < t.CurrentBet {
		return table.Delta{}, table.ErrCannotCheck
	}
	return table.Delta{PlayerID: playerID, Action: table.ActionCheck}, nil
}

// Call matches the current bet, or puts the player all-in for less.
func Call(t *table.Table, playerID string) (table.Delta, error) {
	p, err := actor(t, playerID)
	if err != nil {
		return table.Delta{}, err
	}
	owed := t.CurrentBet - t.RoundBets[playerID]
	if owed < 0 {
		owed = 0
	}
	return table.Delta{
		PlayerID: playerID,
		Action:   table.ActionCall,
		Amount:   min(owed, p.Chips),
	}, nil
}

// Bet opens the betting in a round. A bet below the big blind is only
// accepted when it is the player's whole stack.
func Bet(t *table.Table, playerID string, amount int64) (table.Delta, error) {
	p, err := actor(t, playerID)
	if err != nil {
		return table.Delta{}, err
	}
	if t.CurrentBet != 0 {
		return table.Delta{}, table.ErrAlreadyBet
	}
	if amount <= 0 {
		return table.Delta{}, table.ErrInvalidAmount
	}
	if amount > p.Chips {
		return table.Delta{}, table.ErrAmountTooLarge
	}
	if amount < t.BigBlind && amount < p.Chips {
		return table.Delta{}, table.ErrBetTooSmall
	}

	total := t.RoundBets[playerID] + amount
	d := table.Delta{
		PlayerID:   playerID,
		Action:     table.ActionBet,
		Amount:     amount,
		CurrentBet: table.Ptr(total),
		LastBettor: table.Ptr(playerID),
	}
	if amount >= t.BigBlind {
		d.MinRaise = table.Ptr(amount)
		d.FullBet = table.Ptr(total)
	}
	return d, nil
}

// Raise lifts the current bet to total. The increment must be at least
// MinRaise unless the raise puts the player all-in; a short all-in raise
// leaves MinRaise untouched and does not reopen the betting for players
// who already acted.
func Raise(t *table.Table, playerID string, total int64) (table.Delta, error) {
	p, err := actor(t, playerID)
	if err != nil {
		return table.Delta{}, err
	}
	if t.CurrentBet == 0 {
		return table.Delta{}, table.ErrNoBetToRaise
	}
	if t.Acted[playerID] && t.RoundBets[playerID] >= t.FullBet {
		return table.Delta{}, table.ErrRaiseNotReopened
	}
	if total <= t.CurrentBet {
		return table.Delta{}, table.ErrRaiseTooSmall
	}

	need := total - t.RoundBets[playerID]
	if need > p.Chips {
		return table.Delta{}, table.ErrAmountTooLarge
	}
	allIn := need == p.Chips
	increment := total - t.CurrentBet
	if increment < t.MinRaise && !allIn {
		return table.Delta{}, table.ErrRaiseTooSmall
	}

	d := table.Delta{
		PlayerID:   playerID,
		Action:     table.ActionRaise,
		Amount:     need,
		CurrentBet: table.Ptr(total),
		LastBettor: table.Ptr(playerID),
	}
	if increment >= t.MinRaise {
		d.MinRaise = table.Ptr(increment)
		d.FullBet = table.Ptr(total)
	}
	return d, nil
}

// IsRoundComplete reports whether nobody owes the current betting round
// anything. It is evaluated right after the player at CurrentPlayerIndex acted.
func IsRoundComplete(t *table.Table) bool {
	actors := players.ActivePlayers(t)
	if len(actors) == 0 {
		return true
	}
	if len(actors) == 1 {
		// everyone else is all-in or out; the last actor only has to match
		id := t.Players[actors[0]].ID
		return t.RoundBets[id] >= t.CurrentBet
	}

	for _, i := range actors {
		if t.RoundBets[t.Players[i].ID] != t.CurrentBet {
			return false
		}
	}

	if t.LastBettor == "" {
		for _, i := range actors {
			if !t.Acted[t.Players[i].ID] {
				return false
			}
		}
		return true
	}
	return cycledToBettor(t)
}

// cycledToBettor is true when the next player to act would be the last
// bettor (or someone past them, if the bettor can no longer act).
func cycledToBettor(t *table.Table) bool {
	bettor := t.PlayerIndex(t.LastBettor)
	if bettor < 0 {
		return true
	}
	cur := t.CurrentPlayerIndex
	next := players.NextActiveIndex(t, cur)
	if next == cur {
		return true
	}
	n := len(t.Players)
	for i := (cur + 1) % n; ; i = (i + 1) % n {
		if i == bettor {
			return true
		}
		if i == next {
			return false
		}
	}
}
