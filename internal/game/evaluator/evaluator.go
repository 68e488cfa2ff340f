// Package evaluator ranks five card poker hands and picks the best five of
// up to seven cards.
package evaluator

import (
	"fmt"
	"sort"

	"HoldemTable/internal/game/table"
)

type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

var categoryNames = [...]string{
	"High Card", "One Pair", "Two Pair", "Three of a Kind", "Straight",
	"Flush", "Full House", "Four of a Kind", "Straight Flush", "Royal Flush",
}

func (c Category) String() string {
	if c < HighCard || c > RoyalFlush {
		return "Unknown"
	}
	return categoryNames[c]
}

// Hand is an evaluated five card hand. Value totally orders hands: the
// category occupies the high bits and every tiebreaker rank gets its own
// 4 bit slot below it, most significant first, so a lower kicker can never
// outweigh a higher one.
type Hand struct {
	Cards       []table.Card `json:"cards"`
	Category    Category     `json:"category"`
	Value       int64        `json:"value"`
	Description string       `json:"description"`
}

const kickerSlots = 5

func value(cat Category, tiebreak []int) int64 {
	v := int64(cat)
	for i := 0; i < kickerSlots; i++ {
		v <<= 4
		if i < len(tiebreak) {
			v |= int64(tiebreak[i])
		}
	}
	return v
}

type group struct {
	rank  int
	count int
}

// Evaluate ranks exactly five cards.
func Evaluate(cards []table.Card) (Hand, error) {
	if len(cards) < 5 {
		return Hand{}, table.ErrNotEnoughCards
	}
	if len(cards) > 5 {
		return Hand{}, fmt.Errorf("evaluate takes 5 cards, got %d", len(cards))
	}

	sorted := append([]table.Card(nil), cards...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	flush := true
	for _, c := range sorted[1:] {
		if c.Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	counts := make(map[int]int, 5)
	for _, c := range sorted {
		counts[c.Rank]++
	}
	groups := make([]group, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, group{rank: r, count: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].count != groups[j].count {
			return groups[i].count > groups[j].count
		}
		return groups[i].rank > groups[j].rank
	})

	straightHigh := 0
	if len(groups) == 5 {
		switch {
		case sorted[0].Rank-sorted[4].Rank == 4:
			straightHigh = sorted[0].Rank
		case sorted[0].Rank == table.Ace && sorted[1].Rank == 5:
			// A-2-3-4-5, the ace plays low
			straightHigh = 5
			sorted = append(sorted[1:], sorted[0])
		}
	}

	ranks := make([]int, len(groups))
	for i, g := range groups {
		ranks[i] = g.rank
	}

	var cat Category
	tiebreak := ranks
	switch {
	case flush && straightHigh == table.Ace:
		cat, tiebreak = RoyalFlush, []int{straightHigh}
	case flush && straightHigh > 0:
		cat, tiebreak = StraightFlush, []int{straightHigh}
	case groups[0].count == 4:
		cat = FourOfAKind
	case groups[0].count == 3 && groups[1].count == 2:
		cat = FullHouse
	case flush:
		cat = Flush
	case straightHigh > 0:
		cat, tiebreak = Straight, []int{straightHigh}
	case groups[0].count == 3:
		cat = ThreeOfAKind
	case groups[0].count == 2 && groups[1].count == 2:
		cat = TwoPair
	case groups[0].count == 2:
		cat = OnePair
	default:
		cat = HighCard
	}

	if straightHigh == 0 {
		sorted = orderByGroups(sorted, groups)
	}

	return Hand{
		Cards:       sorted,
		Category:    cat,
		Value:       value(cat, tiebreak),
		Description: describe(cat, ranks, straightHigh),
	}, nil
}

// orderByGroups lists quads/trips/pairs before kickers for display.
func orderByGroups(cards []table.Card, groups []group) []table.Card {
	out := make([]table.Card, 0, len(cards))
	for _, g := range groups {
		for _, c := range cards {
			if c.Rank == g.rank {
				out = append(out, c)
			}
		}
	}
	return out
}

// FindBestHand evaluates every five card subset of hole+community cards.
func FindBestHand(hole, community []table.Card) (Hand, error) {
	all := make([]table.Card, 0, len(hole)+len(community))
	all = append(all, hole...)
	all = append(all, community...)
	if len(all) < 5 {
		return Hand{}, fmt.Errorf("%d cards available: %w", len(all), table.ErrNotEnoughCards)
	}

	var best Hand
	found := false
	var firstErr error
	combinations(len(all), 5, func(idx []int) {
		five := make([]table.Card, 5)
		for i, j := range idx {
			five[i] = all[j]
		}
		h, err := Evaluate(five)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return
		}
		if !found || h.Value > best.Value {
			best, found = h, true
		}
	})
	if !found {
		return Hand{}, firstErr
	}
	return best, nil
}

// combinations calls fn with every ascending k-subset of [0, n).
func combinations(n, k int, fn func([]int)) {
	idx := make([]int, k)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := k - 1
		for i >= 0 && idx[i] == n-k+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < k; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

type Contender struct {
	PlayerID  string
	HoleCards []table.Card
}

type Result struct {
	PlayerID string
	Hand     Hand
}

// GetWinners returns every contender holding the best hand, in input order.
func GetWinners(contenders []Contender, community []table.Card) ([]Result, error) {
	if len(contenders) == 0 {
		return nil, nil
	}
	results := make([]Result, 0, len(contenders))
	var top int64 = -1
	for _, c := range contenders {
		h, err := FindBestHand(c.HoleCards, community)
		if err != nil {
			return nil, fmt.Errorf("player %s: %w", c.PlayerID, err)
		}
		results = append(results, Result{PlayerID: c.PlayerID, Hand: h})
		if h.Value > top {
			top = h.Value
		}
	}

	winners := results[:0:0]
	for _, r := range results {
		if r.Hand.Value == top {
			winners = append(winners, r)
		}
	}
	return winners, nil
}
