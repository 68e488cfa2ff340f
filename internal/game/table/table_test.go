package table

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seated() *Table {
	t := New("t1", 10, 20)
	t.Players = []Player{
		{ID: "a", Chips: 1000, Position: 0, IsActive: true},
		{ID: "b", Chips: 1000, Position: 1, IsActive: true},
	}
	return t
}

func TestParseCard(t *testing.T) {
	cases := map[string]Card{
		"As":  {Suit: Spades, Rank: Ace},
		"10h": {Suit: Hearts, Rank: 10},
		"Td":  {Suit: Diamonds, Rank: 10},
		"2c":  {Suit: Clubs, Rank: 2},
		"K♦":  {Suit: Diamonds, Rank: King},
	}
	for in, want := range cases {
		got, err := ParseCard(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "1s", "Ax", "Zz", "11h"} {
		_, err := ParseCard(bad)
		assert.Error(t, err, bad)
	}
}

func TestCardString(t *testing.T) {
	assert.Equal(t, "A♠", Card{Suit: Spades, Rank: Ace}.String())
	assert.Equal(t, "10♥", Card{Suit: Hearts, Rank: 10}.String())
}

func TestApplyDoesNotMutateReceiver(t *testing.T) {
	tbl := seated()
	now := time.Now()

	next, err := tbl.Apply(Delta{
		PlayerID:   "a",
		Action:     ActionBet,
		Amount:     100,
		CurrentBet: Ptr(int64(100)),
		LastBettor: Ptr("a"),
		At:         now,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(0), tbl.Pot)
	assert.Equal(t, int64(1000), tbl.Players[0].Chips)
	assert.Empty(t, tbl.RoundBets)

	assert.Equal(t, int64(100), next.Pot)
	assert.Equal(t, int64(900), next.Players[0].Chips)
	assert.Equal(t, int64(100), next.RoundBets["a"])
	assert.Equal(t, int64(100), next.Contributions["a"])
	assert.Equal(t, int64(100), next.CurrentBet)
	assert.Equal(t, "a", next.LastBettor)
	assert.True(t, next.Acted["a"])
	assert.Equal(t, "a", next.LastActivePlayer)
	assert.Equal(t, now, next.LastActionTimestamp)
	assert.Equal(t, tbl.TotalChips(), next.TotalChips())
}

func TestApplyFold(t *testing.T) {
	next, err := seated().Apply(Delta{PlayerID: "b", Action: ActionFold, Fold: true})
	require.NoError(t, err)
	assert.True(t, next.Players[1].HasFolded)
	assert.Equal(t, ActionFold, next.LastAction.Action)
}

func TestApplyUnknownPlayer(t *testing.T) {
	_, err := seated().Apply(Delta{PlayerID: "zz", Action: ActionCheck})
	assert.ErrorIs(t, err, ErrPlayerNotFound)
	assert.Equal(t, KindPlayerNotFound, KindOf(err))
}

func TestStakeInsufficientChips(t *testing.T) {
	tbl := seated()
	err := tbl.Stake("a", 1001)
	assert.ErrorIs(t, err, ErrInsufficientChips)
	assert.Equal(t, int64(1000), tbl.Players[0].Chips)
}

func TestPublicStripsPrivateState(t *testing.T) {
	tbl := seated()
	tbl.Deck = MustParseCards("As Kd")
	tbl.HoleCards["a"] = MustParseCards("2c 3c")

	pub := tbl.Public()
	assert.Empty(t, pub.Deck)
	assert.Empty(t, pub.HoleCards)
	assert.Len(t, tbl.Deck, 2, "original keeps its deck")

	b, err := json.Marshal(pub)
	require.NoError(t, err)
	assert.NotContains(t, string(b), "holeCards")
	assert.NotContains(t, string(b), `"deck"`)
}

func TestNormalizeAfterDecode(t *testing.T) {
	var tbl Table
	require.NoError(t, json.Unmarshal([]byte(`{"id":"x"}`), &tbl))
	tbl.Normalize()
	assert.NotNil(t, tbl.RoundBets)
	assert.NotNil(t, tbl.Acted)
	assert.Equal(t, PhaseWaiting, tbl.Phase)
}

func TestKindOfWrapped(t *testing.T) {
	err := fmt.Errorf("raise by a: %w", ErrRaiseTooSmall)
	assert.Equal(t, KindAmount, KindOf(err))
	assert.ErrorIs(t, err, ErrRaiseTooSmall)
	assert.Equal(t, KindUnknown, KindOf(assert.AnError))
}
