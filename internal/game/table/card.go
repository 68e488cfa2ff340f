package table

import (
	"fmt"
	"strconv"
	"strings"
)

// Suit 0-3
type Suit int

const (
	Clubs Suit = iota
	Diamonds
	Hearts
	Spades
)

var suitSymbols = []string{"♣", "♦", "♥", "♠"}

func (s Suit) String() string {
	if s < Clubs || s > Spades {
		return "?"
	}
	return suitSymbols[s]
}

const (
	Jack  = 11
	Queen = 12
	King  = 13
	Ace   = 14
)

// Card 定义 (suit 0-3, rank 2-14)
type Card struct {
	Suit Suit `json:"suit"`
	Rank int  `json:"rank"`
}

func (c Card) String() string {
	return RankName(c.Rank) + c.Suit.String()
}

// RankName renders 2-10 as digits and the court cards as letters.
func RankName(rank int) string {
	switch rank {
	case Jack:
		return "J"
	case Queen:
		return "Q"
	case King:
		return "K"
	case Ace, 1:
		return "A"
	}
	return strconv.Itoa(rank)
}

// ParseCard accepts "As", "10h", "Td" or the symbol form "A♠".
func ParseCard(s string) (Card, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return Card{}, fmt.Errorf("invalid card %q", s)
	}

	var suitPart, rankPart string
	for i, sym := range suitSymbols {
		if strings.HasSuffix(s, sym) {
			suitPart = "cdhs"[i : i+1]
			rankPart = strings.TrimSuffix(s, sym)
			break
		}
	}
	if suitPart == "" {
		suitPart = strings.ToLower(s[len(s)-1:])
		rankPart = s[:len(s)-1]
	}

	suit := strings.Index("cdhs", suitPart)
	if suit < 0 {
		return Card{}, fmt.Errorf("invalid suit in card %q", s)
	}

	var rank int
	switch strings.ToUpper(rankPart) {
	case "A":
		rank = Ace
	case "K":
		rank = King
	case "Q":
		rank = Queen
	case "J":
		rank = Jack
	case "T", "10":
		rank = 10
	default:
		n, err := strconv.Atoi(rankPart)
		if err != nil || n < 2 || n > 9 {
			return Card{}, fmt.Errorf("invalid rank in card %q", s)
		}
		rank = n
	}
	return Card{Suit: Suit(suit), Rank: rank}, nil
}

// MustParseCards parses a space separated card list and panics on bad input.
// Intended for tests and fixtures.
func MustParseCards(s string) []Card {
	fields := strings.Fields(s)
	cards := make([]Card, 0, len(fields))
	for _, f := range fields {
		c, err := ParseCard(f)
		if err != nil {
			panic(err)
		}
		cards = append(cards, c)
	}
	return cards
}
