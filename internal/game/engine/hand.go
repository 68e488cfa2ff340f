package engine

import (
	"fmt"
	"time"

	"HoldemTable/internal/game/dealer"
	"HoldemTable/internal/game/evaluator"
	"HoldemTable/internal/game/phase"
	"HoldemTable/internal/game/players"
	"HoldemTable/internal/game/table"
)

// startHand resets the per-hand state, moves the button, shuffles, deals
// hole cards and posts the blinds. Everything here is computed on a copy
// of cur, so it can be re-run when the transaction retries.
func startHand(cur *table.Table, handID string, seed int64, now time.Time) (*table.Table, error) {
	next := cur.Clone()

	for i := range next.Players {
		p := &next.Players[i]
		p.HasFolded = !(p.IsActive && p.Chips > 0)
		p.Cards = nil
	}
	next.CommunityCards = []table.Card{}
	next.RoundBets = map[string]int64{}
	next.Contributions = map[string]int64{}
	next.Acted = map[string]bool{}
	next.HoleCards = map[string][]table.Card{}
	next.Winners = []table.Winner{}
	next.WinningAmount = 0
	next.LastAction = nil
	next.LastActivePlayer = ""
	next.LastBettor = ""

	// 第一手牌庄家留在原位（如果他能玩），之后每手顺移
	if next.HandID != "" || !players.CanAct(next.Players[next.DealerPosition]) {
		next.DealerPosition = players.NextDealer(next)
	}

	next.HandID = handID
	next.Phase = table.PhasePreflop
	next.IsHandInProgress = true
	next.LastActionTimestamp = now

	deck := dealer.NewDeck(seed)
	n := len(next.Players)
	for step := 1; step <= n; step++ {
		p := next.Players[(next.DealerPosition+step)%n]
		if !players.InHand(p) {
			continue
		}
		hole, err := deck.DealHoleCards()
		if err != nil {
			return nil, fmt.Errorf("deal hole cards: %w", err)
		}
		next.HoleCards[p.ID] = hole
	}
	next.Deck = deck.Cards()

	sb, bb := phase.BlindSeats(next)
	if _, err := players.PlaceBet(next, next.Players[sb].ID, next.SmallBlind, true); err != nil {
		return nil, fmt.Errorf("small blind: %w", err)
	}
	if _, err := players.PlaceBet(next, next.Players[bb].ID, next.BigBlind, true); err != nil {
		return nil, fmt.Errorf("big blind: %w", err)
	}
	next.CurrentBet = next.BigBlind
	next.MinRaise = next.BigBlind
	next.FullBet = next.BigBlind
	next.CurrentPlayerIndex = phase.FirstToAct(next)

	// blinds alone can leave nobody able to bet
	if actors := players.ActivePlayers(next); len(actors) < 2 && phase.ShouldAdvancePhase(next) {
		return advance(next, seed)
	}
	return next, nil
}

// advance runs after an action has been applied by the player at
// CurrentPlayerIndex. It hands the turn on, or closes the betting round
// and deals the next street. When fewer than two players can still bet
// the remaining streets are dealt straight through to showdown.
func advance(t *table.Table, seed int64) (*table.Table, error) {
	if len(t.Contenders()) <= 1 {
		return settle(t)
	}
	if !phase.ShouldAdvancePhase(t) {
		t.CurrentPlayerIndex = players.NextActiveIndex(t, t.CurrentPlayerIndex)
		return t, nil
	}

	deck := dealer.Restore(t.Deck, seed)
	for {
		t = phase.PrepareNextPhase(t)
		if t.Phase == table.PhaseShowdown {
			t.Deck = deck.Cards()
			return settle(t)
		}
		cards, err := deck.DealCommunity(phase.CommunityCardsFor(t.Phase))
		if err != nil {
			return nil, fmt.Errorf("deal %s: %w", t.Phase, err)
		}
		t.CommunityCards = append(t.CommunityCards, cards...)
		if len(players.ActivePlayers(t)) >= 2 {
			t.Deck = deck.Cards()
			return t, nil
		}
	}
}

// settle awards the pot and ends the hand in the showdown phase. A lone
// contender takes the pot without a showdown; otherwise the best hands
// share it and the odd chips go one at a time to the winners closest to
// the dealer's left.
func settle(t *table.Table) (*table.Table, error) {
	next := t.Clone()
	contenders := next.Contenders()
	pot := next.Pot

	var winners []table.Winner
	switch len(contenders) {
	case 0:
		// everyone left; nothing to award
	case 1:
		p := next.Players[contenders[0]]
		winners = []table.Winner{{PlayerID: p.ID, Amount: pot, Description: "Uncontested"}}
	default:
		cs := make([]evaluator.Contender, 0, len(contenders))
		for _, i := range contenders {
			p := &next.Players[i]
			p.Cards = append([]table.Card(nil), next.HoleCards[p.ID]...)
			cs = append(cs, evaluator.Contender{PlayerID: p.ID, HoleCards: next.HoleCards[p.ID]})
		}
		best, err := evaluator.GetWinners(cs, next.CommunityCards)
		if err != nil {
			return nil, fmt.Errorf("showdown: %w", err)
		}
		winners = split(next, best, pot)
	}

	for _, w := range winners {
		p, err := next.Player(w.PlayerID)
		if err != nil {
			return nil, err
		}
		p.Chips += w.Amount
	}
	if len(winners) > 0 {
		next.Pot = 0
	}

	next.Winners = winners
	if next.Winners == nil {
		next.Winners = []table.Winner{}
	}
	next.WinningAmount = pot
	next.Phase = table.PhaseShowdown
	next.IsHandInProgress = false
	next.CurrentBet = 0
	next.RoundBets = map[string]int64{}
	next.Acted = map[string]bool{}
	next.LastBettor = ""
	next.FullBet = 0
	next.Deck = []table.Card{}
	return next, nil
}

func split(t *table.Table, best []evaluator.Result, pot int64) []table.Winner {
	share := pot / int64(len(best))
	rem := pot % int64(len(best))

	amounts := make(map[string]int64, len(best))
	for _, r := range best {
		amounts[r.PlayerID] = share
	}
	n := len(t.Players)
	for step := 1; step <= n && rem > 0; step++ {
		id := t.Players[(t.DealerPosition+step)%n].ID
		if _, ok := amounts[id]; ok {
			amounts[id]++
			rem--
		}
	}

	out := make([]table.Winner, 0, len(best))
	for _, r := range best {
		out = append(out, table.Winner{
			PlayerID:    r.PlayerID,
			Amount:      amounts[r.PlayerID],
			HandRank:    r.Hand.Category.String(),
			Description: r.Hand.Description,
		})
	}
	return out
}
