package rules

import (
	"strconv"
	"strings"

	"topthat/internal/game/deck"
)

// Normalize maps raw card values to canonical tokens: "two", "five", "ten",
// "j", "q", "k", "a", or the lowercase numeral for plain ranks. Accepts the
// spelled-out forms so older clients keep working.
func Normalize(value string) string {
	lower := strings.ToLower(strings.TrimSpace(value))
	switch lower {
	case "2", "two":
		return "two"
	case "5", "five":
		return "five"
	case "10", "ten":
		return "ten"
	case "j", "jack":
		return "j"
	case "q", "queen":
		return "q"
	case "k", "king":
		return "k"
	case "a", "ace":
		return "a"
	default:
		return lower
	}
}

// RankOf returns the numeric rank (2..14) used for ordering comparisons and
// hand sorting. Unknown values rank 0 so they never beat a real card.
func RankOf(c deck.Card) int {
	switch Normalize(c.Value) {
	case "two":
		return 2
	case "five":
		return 5
	case "ten":
		return 10
	case "j":
		return 11
	case "q":
		return 12
	case "k":
		return 13
	case "a":
		return 14
	default:
		n, err := strconv.Atoi(Normalize(c.Value))
		if err != nil {
			return 0
		}
		return n
	}
}

func IsTwo(value string) bool { return Normalize(value) == "two" }

func IsFive(value string) bool { return Normalize(value) == "five" }

func IsTen(value string) bool { return Normalize(value) == "ten" }

// IsSpecial reports whether the value bypasses the ordering rule.
func IsSpecial(value string) bool {
	n := Normalize(value)
	return n == "two" || n == "five" || n == "ten"
}

// EffectiveTop resolves the rank that the next play must beat. A five on top
// copies the most recent real card, so ordering is checked against
// lastRealCard instead of the literal top. lastRealCard is never itself a
// five, which is what makes copy-of-copy resolve in one step.
func EffectiveTop(pile []deck.Card, lastRealCard *deck.Card) (deck.Card, bool) {
	if len(pile) == 0 {
		return deck.Card{}, false
	}
	top := pile[len(pile)-1]
	if IsFive(top.Value) && lastRealCard != nil {
		return *lastRealCard, true
	}
	return top, true
}

// IsValidPlay decides whether a candidate set of cards may go on the pile.
// The set must be non-empty and share a single normalized rank. An empty
// pile accepts anything; otherwise the rank must meet or beat the effective
// top, be special (2/5/10), or a full four of a kind, which burns any pile.
func IsValidPlay(cards []deck.Card, pile []deck.Card, lastRealCard *deck.Card) bool {
	if len(cards) == 0 {
		return false
	}
	first := Normalize(cards[0].Value)
	for _, c := range cards[1:] {
		if Normalize(c.Value) != first {
			return false
		}
	}
	if len(cards) >= 4 {
		return true
	}
	top, ok := EffectiveTop(pile, lastRealCard)
	if !ok {
		return true
	}
	if IsSpecial(cards[0].Value) {
		return true
	}
	return RankOf(cards[0]) >= RankOf(top)
}

// IsFourOfAKindOnPile checks the top four pile entries by position for an
// identical raw value. The comparison is deliberately strict: "10" and
// "ten" do not match even though they normalize to the same rank. That
// mirrors the long-standing house behavior and changing it would silently
// change game outcomes, so it stays.
func IsFourOfAKindOnPile(pile []deck.Card) bool {
	if len(pile) < 4 {
		return false
	}
	topFour := pile[len(pile)-4:]
	first := topFour[0].Value
	for _, c := range topFour[1:] {
		if c.Value != first {
			return false
		}
	}
	return true
}

// IsFourOfAKindSet checks a played set (all dropped in one action) using
// normalized values, unlike the pile variant above.
func IsFourOfAKindSet(cards []deck.Card) bool {
	if len(cards) < 4 {
		return false
	}
	first := Normalize(cards[0].Value)
	for _, c := range cards[1:4] {
		if Normalize(c.Value) != first {
			return false
		}
	}
	return true
}
