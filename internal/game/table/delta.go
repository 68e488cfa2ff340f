package table

import "time"

// Delta is the complete set of field changes one betting action makes.
// Handlers compute it from a snapshot; Apply is the only place it is committed.
type Delta struct {
	PlayerID string
	Action   Action
	// Amount is the number of chips moved from the player into the pot.
	Amount int64
	Fold   bool

	CurrentBet *int64
	MinRaise   *int64
	LastBettor *string
	FullBet    *int64

	At time.Time
}

// Ptr is a helper for the optional Delta fields.
func Ptr[T any](v T) *T { return &v }

// Apply returns a new table with the delta committed. The receiver is not modified.
func (t *Table) Apply(d Delta) (*Table, error) {
	next := t.Clone()
	p, err := next.Player(d.PlayerID)
	if err != nil {
		return nil, err
	}

	if d.Fold {
		p.HasFolded = true
	}
	if d.Amount > 0 {
		if err := next.Stake(d.PlayerID, d.Amount); err != nil {
			return nil, err
		}
	}
	if d.CurrentBet != nil {
		next.CurrentBet = *d.CurrentBet
	}
	if d.MinRaise != nil {
		next.MinRaise = *d.MinRaise
	}
	if d.LastBettor != nil {
		next.LastBettor = *d.LastBettor
	}
	if d.FullBet != nil {
		next.FullBet = *d.FullBet
	}

	next.Acted[d.PlayerID] = true
	next.LastAction = &LastAction{
		PlayerID: d.PlayerID,
		Action:   d.Action,
		Amount:   d.Amount,
		At:       d.At,
	}
	next.LastActivePlayer = d.PlayerID
	if !d.At.IsZero() {
		next.LastActionTimestamp = d.At
	}
	return next, nil
}

// Stake moves chips from a player's stack into the pot and books them as
// this round's bet and this hand's contribution.
func (t *Table) Stake(playerID string, amount int64) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	p, err := t.Player(playerID)
	if err != nil {
		return err
	}
	if amount > p.Chips {
		return ErrInsufficientChips
	}
	p.Chips -= amount
	t.Pot += amount
	t.RoundBets[playerID] += amount
	t.Contributions[playerID] += amount
	return nil
}
