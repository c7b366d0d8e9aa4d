package deck

import (
	"errors"
	"math/rand"
)

// Card values are kept as display strings ("2".."10", "J", "Q", "K", "A").
// Copied marks a card that landed on the pile via the five's copy effect;
// it only matters for rendering and must survive pile transfers.
type Card struct {
	Value  string `json:"value"`
	Suit   string `json:"suit"`
	Copied bool   `json:"copied,omitempty"`
}

var Suits = []string{"hearts", "diamonds", "clubs", "spades"}

var Values = []string{"2", "3", "4", "5", "6", "7", "8", "9", "10", "J", "Q", "K", "A"}

var ErrInsufficientCards = errors.New("not enough cards in deck to deal")

// Deck owns the undealt cards and its own RNG so tests can seed it.
type Deck struct {
	cards []Card
	rnd   *rand.Rand
}

func New(seed int64) *Deck {
	return &Deck{
		cards: make([]Card, 0, 52),
		rnd:   rand.New(rand.NewSource(seed)),
	}
}

// Build fills the deck with all 52 cards in base order, then shuffles.
func (d *Deck) Build() {
	d.cards = d.cards[:0]
	for _, suit := range Suits {
		for _, value := range Values {
			d.cards = append(d.cards, Card{Value: value, Suit: suit})
		}
	}
	d.shuffle()
}

// Fisher-Yates
func (d *Deck) shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.rnd.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Deal hands out handSize cards per player to the hand, then up, then down
// zones, consuming from the front of the shuffled deck. Whatever is left
// stays in the deck.
func (d *Deck) Deal(numPlayers, handSize int) (hands, upCards, downCards [][]Card, err error) {
	need := numPlayers * handSize * 3
	if need > len(d.cards) {
		return nil, nil, nil, ErrInsufficientCards
	}
	for p := 0; p < numPlayers; p++ {
		hands = append(hands, d.take(handSize))
		upCards = append(upCards, d.take(handSize))
		downCards = append(downCards, d.take(handSize))
	}
	return hands, upCards, downCards, nil
}

func (d *Deck) take(n int) []Card {
	out := make([]Card, n)
	copy(out, d.cards[:n])
	d.cards = d.cards[n:]
	return out
}

// Draw pops the top card. ok is false once the deck is exhausted; the deck
// is never rebuilt mid-game.
func (d *Deck) Draw() (Card, bool) {
	if len(d.cards) == 0 {
		return Card{}, false
	}
	c := d.cards[0]
	d.cards = d.cards[1:]
	return c, true
}

func (d *Deck) Remaining() int {
	return len(d.cards)
}
