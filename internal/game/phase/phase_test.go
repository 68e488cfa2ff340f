package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"HoldemTable/internal/game/table"
)

func newTable(p table.Phase, dealer int, chips ...int64) *table.Table {
	t := table.New("t", 10, 20)
	t.Phase = p
	t.DealerPosition = dealer
	for i, c := range chips {
		t.Players = append(t.Players, table.Player{
			ID:       string(rune('a' + i)),
			Chips:    c,
			Position: i,
			IsActive: true,
		})
	}
	return t
}

func TestNextPhaseCycle(t *testing.T) {
	want := []table.Phase{
		table.PhasePreflop, table.PhaseFlop, table.PhaseTurn,
		table.PhaseRiver, table.PhaseShowdown, table.PhaseWaiting,
	}
	p := table.PhaseWaiting
	for round := 0; round < 3; round++ {
		for _, w := range want {
			p = NextPhase(p)
			assert.Equal(t, w, p)
		}
	}
	assert.Equal(t, table.PhaseWaiting, NextPhase("bogus"))
}

func TestPrepareNextPhaseResetsRound(t *testing.T) {
	tbl := newTable(table.PhasePreflop, 0, 500, 500, 500)
	tbl.CurrentBet = 60
	tbl.MinRaise = 40
	tbl.LastBettor = "b"
	tbl.RoundBets = map[string]int64{"a": 60, "b": 60, "c": 60}
	tbl.Acted = map[string]bool{"a": true, "b": true, "c": true}
	tbl.Pot = 180

	next := PrepareNextPhase(tbl)
	assert.Equal(t, table.PhaseFlop, next.Phase)
	assert.Empty(t, next.RoundBets)
	assert.NotNil(t, next.RoundBets)
	assert.Empty(t, next.Acted)
	assert.Equal(t, int64(0), next.CurrentBet)
	assert.Equal(t, int64(40), next.MinRaise, "2x big blind")
	assert.Equal(t, "", next.LastBettor)
	assert.Equal(t, int64(180), next.Pot)
	assert.Equal(t, 1, next.CurrentPlayerIndex, "left of the dealer")

	assert.Equal(t, table.PhasePreflop, tbl.Phase, "input untouched")
}

func TestPrepareShowdownKeepsCurrentPlayer(t *testing.T) {
	tbl := newTable(table.PhaseRiver, 0, 500, 500, 500)
	tbl.CurrentPlayerIndex = 2
	next := PrepareNextPhase(tbl)
	assert.Equal(t, table.PhaseShowdown, next.Phase)
	assert.Equal(t, 2, next.CurrentPlayerIndex)
}

func TestFirstToActHeadsUp(t *testing.T) {
	tbl := newTable(table.PhasePreflop, 1, 500, 500)
	assert.Equal(t, 1, FirstToAct(tbl), "dealer acts first preflop")

	for _, p := range []table.Phase{table.PhaseFlop, table.PhaseTurn, table.PhaseRiver} {
		tbl.Phase = p
		assert.Equal(t, 0, FirstToAct(tbl), "non-dealer acts first on the %s", p)
	}
}

func TestFirstToActThreeHanded(t *testing.T) {
	tbl := newTable(table.PhasePreflop, 0, 500, 500, 500, 500)
	assert.Equal(t, 1, FirstToAct(tbl), "first seat after the dealer opens preflop")

	for _, p := range []table.Phase{table.PhaseFlop, table.PhaseTurn, table.PhaseRiver} {
		tbl.Phase = p
		assert.Equal(t, 1, FirstToAct(tbl), "first seat after the dealer on the %s", p)
	}

	tbl.Players[1].HasFolded = true
	assert.Equal(t, 2, FirstToAct(tbl))

	tbl.Phase = table.PhasePreflop
	tbl.Players[1].HasFolded = false
	tbl.Players[1].Chips = 0
	assert.Equal(t, 2, FirstToAct(tbl), "an all-in small blind is skipped")
}

func TestBlindSeats(t *testing.T) {
	sb, bb := BlindSeats(newTable(table.PhasePreflop, 1, 500, 500))
	assert.Equal(t, 1, sb)
	assert.Equal(t, 0, bb)

	three := newTable(table.PhasePreflop, 2, 500, 500, 500)
	sb, bb = BlindSeats(three)
	assert.Equal(t, 0, sb)
	assert.Equal(t, 1, bb)

	// a sitting-out seat is skipped
	four := newTable(table.PhasePreflop, 0, 500, 500, 500, 500)
	four.Players[1].HasFolded = true
	sb, bb = BlindSeats(four)
	assert.Equal(t, 2, sb)
	assert.Equal(t, 3, bb)
}

func TestShouldAdvancePhase(t *testing.T) {
	tbl := newTable(table.PhaseFlop, 0, 500, 500, 500)
	assert.False(t, ShouldAdvancePhase(tbl))

	tbl.Players[1].HasFolded = true
	tbl.Players[2].HasFolded = true
	assert.True(t, ShouldAdvancePhase(tbl), "one contender left")

	tbl = newTable(table.PhaseFlop, 0, 500, 500)
	tbl.Acted = map[string]bool{"a": true, "b": true}
	assert.True(t, ShouldAdvancePhase(tbl), "checked around")
}

func TestCommunityCardsFor(t *testing.T) {
	assert.Equal(t, 3, CommunityCardsFor(table.PhaseFlop))
	assert.Equal(t, 1, CommunityCardsFor(table.PhaseTurn))
	assert.Equal(t, 1, CommunityCardsFor(table.PhaseRiver))
	assert.Equal(t, 0, CommunityCardsFor(table.PhaseShowdown))
}
