package evaluator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"HoldemTable/internal/game/table"
)

func eval(t *testing.T, cards string) Hand {
	t.Helper()
	h, err := Evaluate(table.MustParseCards(cards))
	require.NoError(t, err, cards)
	return h
}

func TestEvaluateCategories(t *testing.T) {
	cases := []struct {
		cards string
		want  Category
		desc  string
	}{
		{"Ah Kh Qh Jh 10h", RoyalFlush, "Royal Flush"},
		{"9s 8s 7s 6s 5s", StraightFlush, "Straight Flush, Nine high"},
		{"5d 4d 3d 2d Ad", StraightFlush, "Straight Flush, Five high"},
		{"7c 7d 7h 7s Kd", FourOfAKind, "Four of a Kind, Sevens"},
		{"Kc Kd Ks 5h 5d", FullHouse, "Full House, Kings full of Fives"},
		{"Ac 9c 7c 4c 2c", Flush, "Flush, Ace high"},
		{"10c 9d 8h 7s 6d", Straight, "Straight, Ten high"},
		{"Ac 2d 3h 4s 5d", Straight, "Straight, Five high"},
		{"6c 6d 6h Ks 2d", ThreeOfAKind, "Three of a Kind, Sixes"},
		{"Ac Ad Kh Ks 2d", TwoPair, "Two Pair, Aces and Kings"},
		{"Ac Ad Kh Qs Jd", OnePair, "Pair of Aces"},
		{"Kc 10d 8h 5s 3d", HighCard, "High Card, King"},
	}
	for _, tc := range cases {
		h := eval(t, tc.cards)
		assert.Equal(t, tc.want, h.Category, tc.cards)
		assert.Equal(t, tc.desc, h.Description, tc.cards)
		assert.Len(t, h.Cards, 5)
	}
}

// Each hand in the list is strictly stronger than the next one.
func TestEvaluateTotalOrder(t *testing.T) {
	ordered := []string{
		"Ah Kh Qh Jh 10h",
		"Kh Qh Jh 10h 9h",
		"6s 5s 4s 3s 2s",
		"5d 4d 3d 2d Ad",
		"Ac Ad Ah As 2c",
		"Kc Kd Kh Ks Ac",
		"Kc Kd Kh Ks Qc",
		"Ac Ad Ah 2s 2c",
		"Kc Kd Kh As Ac",
		"Ac Kc Qc Jc 9c",
		"Ac Kc Qc Jc 8c",
		"Ac 2c 3c 4c 6c",
		"Ac Kd Qh Js 10d",
		"6c 5d 4h 3s 2d",
		"Ac 2d 3h 4s 5d",
		"Ac Ad Ah Ks Qd",
		"Ac Ad Ah Ks Jd",
		"2c 2d 2h As Kd",
		"Ac Ad Kh Ks Qd",
		"Ac Ad Kh Ks Jd",
		"Ac Ad Qh Qs Kd",
		"As Ah Kd Qc Js",
		"As Ah Kd Qc 10s",
		"As Ah Kd Jc 10s",
		"Ks Kh Ad Qc Js",
		"Ac Kd Qh Js 9d",
		"Ac Kd Qh Js 8d",
		"Ac 6d 4h 3s 2d",
		"Kc Qd Jh 10s 8d",
		"7c 5d 4h 3s 2d",
	}
	for i := 0; i+1 < len(ordered); i++ {
		hi := eval(t, ordered[i])
		lo := eval(t, ordered[i+1])
		assert.Greater(t, hi.Value, lo.Value, "%s (%s) should beat %s (%s)",
			ordered[i], hi.Description, ordered[i+1], lo.Description)
	}
}

func TestKickerOrdering(t *testing.T) {
	kqj := eval(t, "As Ah Kd Qc Js")
	kq10 := eval(t, "As Ah Kd Qc 10s")
	assert.Equal(t, OnePair, kqj.Category)
	assert.Equal(t, OnePair, kq10.Category)
	assert.Greater(t, kqj.Value, kq10.Value)
}

func TestAceLowStraightIsLowest(t *testing.T) {
	wheel := eval(t, "Ac 2d 3h 4s 5d")
	six := eval(t, "6c 5d 4h 3s 2d")
	assert.Equal(t, Straight, wheel.Category)
	assert.Less(t, wheel.Value, six.Value)
	assert.Equal(t, table.Ace, wheel.Cards[4].Rank, "ace plays low")
}

func TestEqualHandsTie(t *testing.T) {
	a := eval(t, "Ac Kd Qh Js 9d")
	b := eval(t, "Ad Kc Qs Jh 9c")
	assert.Equal(t, a.Value, b.Value)
}

func TestEvaluateNeedsFiveCards(t *testing.T) {
	_, err := Evaluate(table.MustParseCards("Ac Kd Qh Js"))
	assert.ErrorIs(t, err, table.ErrNotEnoughCards)

	_, err = Evaluate(table.MustParseCards("Ac Kd Qh Js 9d 8d"))
	assert.Error(t, err)
}

func TestFindBestHandRoyalFromSeven(t *testing.T) {
	h, err := FindBestHand(
		table.MustParseCards("Ah Kh"),
		table.MustParseCards("Qh Jh 10h 9s 8c"),
	)
	require.NoError(t, err)
	assert.Equal(t, RoyalFlush, h.Category)
}

func TestFindBestHandUsesBoard(t *testing.T) {
	// The board plays: both hole cards are worse than the board's straight.
	h, err := FindBestHand(
		table.MustParseCards("2c 3d"),
		table.MustParseCards("10h 9s 8c 7d 6h"),
	)
	require.NoError(t, err)
	assert.Equal(t, Straight, h.Category)
	assert.Equal(t, "Straight, Ten high", h.Description)
}

func TestFindBestHandSixCards(t *testing.T) {
	h, err := FindBestHand(
		table.MustParseCards("Kc Kd"),
		table.MustParseCards("Ks 4h 4d 2c"),
	)
	require.NoError(t, err)
	assert.Equal(t, FullHouse, h.Category)
}

func TestFindBestHandNotEnoughCards(t *testing.T) {
	_, err := FindBestHand(table.MustParseCards("Ac Kd"), table.MustParseCards("Qh Js"))
	assert.ErrorIs(t, err, table.ErrNotEnoughCards)
	assert.Equal(t, table.KindNotEnoughCards, table.KindOf(err))
}

func TestCombinationsCount(t *testing.T) {
	n := 0
	combinations(7, 5, func([]int) { n++ })
	assert.Equal(t, 21, n)

	n = 0
	combinations(5, 5, func([]int) { n++ })
	assert.Equal(t, 1, n)
}

func TestGetWinners(t *testing.T) {
	board := table.MustParseCards("2h 7d 9c Js Qd")

	winners, err := GetWinners([]Contender{
		{PlayerID: "a", HoleCards: table.MustParseCards("Ac Kc")},
		{PlayerID: "b", HoleCards: table.MustParseCards("Qs 3c")},
		{PlayerID: "c", HoleCards: table.MustParseCards("4s 5s")},
	}, board)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, "b", winners[0].PlayerID)
	assert.Equal(t, OnePair, winners[0].Hand.Category)
}

func TestGetWinnersSplit(t *testing.T) {
	board := table.MustParseCards("Ah Kd Qc Js 10h")

	winners, err := GetWinners([]Contender{
		{PlayerID: "a", HoleCards: table.MustParseCards("2c 3c")},
		{PlayerID: "b", HoleCards: table.MustParseCards("4d 5d")},
	}, board)
	require.NoError(t, err)
	require.Len(t, winners, 2)
	assert.Equal(t, "a", winners[0].PlayerID)
	assert.Equal(t, "b", winners[1].PlayerID)
}
