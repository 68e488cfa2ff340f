package evaluator

import "fmt"

var rankWords = map[int]string{
	2: "Two", 3: "Three", 4: "Four", 5: "Five", 6: "Six", 7: "Seven", 8: "Eight",
	9: "Nine", 10: "Ten", 11: "Jack", 12: "Queen", 13: "King", 14: "Ace",
}

func plural(rank int) string {
	if rank == 6 {
		return "Sixes"
	}
	return rankWords[rank] + "s"
}

// describe renders e.g. "Full House, Kings full of Fives".
func describe(cat Category, ranks []int, straightHigh int) string {
	switch cat {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s high", rankWords[straightHigh])
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", plural(ranks[0]))
	case FullHouse:
		return fmt.Sprintf("Full House, %s full of %s", plural(ranks[0]), plural(ranks[1]))
	case Flush:
		return fmt.Sprintf("Flush, %s high", rankWords[ranks[0]])
	case Straight:
		return fmt.Sprintf("Straight, %s high", rankWords[straightHigh])
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", plural(ranks[0]))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", plural(ranks[0]), plural(ranks[1]))
	case OnePair:
		return fmt.Sprintf("Pair of %s", plural(ranks[0]))
	}
	return fmt.Sprintf("High Card, %s", rankWords[ranks[0]])
}
