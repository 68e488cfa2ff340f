package dealer

import (
	"fmt"
	"math/rand"

	"HoldemTable/internal/game/table"
)

// Deck 只负责洗牌与发牌（无规则判断）。
// Not safe for concurrent use; the engine only touches a deck inside a table transaction.
type Deck struct {
	cards []table.Card
	rnd   *rand.Rand
}

// NewDeck returns a freshly shuffled 52 card deck.
func NewDeck(seed int64) *Deck {
	d := &Deck{rnd: rand.New(rand.NewSource(seed))}
	d.Reset()
	return d
}

// Restore continues dealing from a persisted remainder. An empty remainder
// is reshuffled on the first deal.
func Restore(cards []table.Card, seed int64) *Deck {
	return &Deck{
		cards: append([]table.Card(nil), cards...),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Reset 初始化一副牌并洗牌
func (d *Deck) Reset() {
	d.cards = makeDeck()
	d.shuffle()
}

func makeDeck() []table.Card {
	deck := make([]table.Card, 0, 52)
	for s := table.Clubs; s <= table.Spades; s++ {
		for r := 2; r <= table.Ace; r++ {
			deck = append(deck, table.Card{Suit: s, Rank: r})
		}
	}
	return deck
}

// Fisher-Yates, walking down from the last card.
func (d *Deck) shuffle() {
	for j := len(d.cards) - 1; j > 0; j-- {
		i := d.rnd.Intn(j + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// DealCard removes the top card. An exhausted deck is reset and reshuffled
// once; false means no card could be produced at all.
func (d *Deck) DealCard() (table.Card, bool) {
	if len(d.cards) == 0 {
		d.Reset()
		if len(d.cards) == 0 {
			return table.Card{}, false
		}
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, true
}

// DealHoleCards 发 2 张底牌
func (d *Deck) DealHoleCards() ([]table.Card, error) {
	return d.DealCommunity(2)
}

// DealFlop 发 3 张翻牌
func (d *Deck) DealFlop() ([]table.Card, error) {
	return d.DealCommunity(3)
}

// DealCommunity deals n cards (burn cards are not modelled).
func (d *Deck) DealCommunity(n int) ([]table.Card, error) {
	out := make([]table.Card, 0, n)
	for i := 0; i < n; i++ {
		c, ok := d.DealCard()
		if !ok {
			return nil, fmt.Errorf("dealt %d of %d cards: %w", i, n, table.ErrNotEnoughCards)
		}
		out = append(out, c)
	}
	return out, nil
}

func (d *Deck) RemainingCount() int {
	return len(d.cards)
}

// Cards returns a copy of the undealt cards for persistence.
func (d *Deck) Cards() []table.Card {
	return append([]table.Card{}, d.cards...)
}
