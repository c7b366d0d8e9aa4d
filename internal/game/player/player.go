package player

import (
	"errors"
	"sort"

	"topthat/internal/game/deck"
	"topthat/internal/game/rules"
)

var (
	ErrEmptyZone     = errors.New("no card at that position in the zone")
	ErrZoneNotActive = errors.New("a higher-priority zone still has cards")
)

// Player owns the three card zones. Hand is played first, then the face-up
// cards, then the face-down cards blind. Mutation only happens through the
// methods below; the session never touches the slices directly.
type Player struct {
	ID           string
	Name         string
	IsComputer   bool
	Disconnected bool

	hand      []deck.Card
	upCards   []deck.Card
	downCards []deck.Card
}

func New(id string) *Player {
	return &Player{ID: id}
}

func (p *Player) SetHand(cards []deck.Card) {
	p.hand = append(p.hand[:0:0], cards...)
	p.sortHand()
}

func (p *Player) SetUpCards(cards []deck.Card) {
	p.upCards = append(p.upCards[:0:0], cards...)
}

func (p *Player) SetDownCards(cards []deck.Card) {
	p.downCards = append(p.downCards[:0:0], cards...)
}

func (p *Player) PlayFromHand(index int) (deck.Card, error) {
	if index < 0 || index >= len(p.hand) {
		return deck.Card{}, ErrEmptyZone
	}
	c := p.hand[index]
	p.hand = append(p.hand[:index], p.hand[index+1:]...)
	return c, nil
}

func (p *Player) PlayUpCard(index int) (deck.Card, error) {
	if !p.HasEmptyHand() {
		return deck.Card{}, ErrZoneNotActive
	}
	if index < 0 || index >= len(p.upCards) {
		return deck.Card{}, ErrEmptyZone
	}
	c := p.upCards[index]
	p.upCards = append(p.upCards[:index], p.upCards[index+1:]...)
	return c, nil
}

// PlayDownCard always takes the front card. Down cards are unknown to the
// player, so position carries no information.
func (p *Player) PlayDownCard() (deck.Card, error) {
	if !p.HasEmptyHand() || !p.HasEmptyUp() {
		return deck.Card{}, ErrZoneNotActive
	}
	if len(p.downCards) == 0 {
		return deck.Card{}, ErrEmptyZone
	}
	c := p.downCards[0]
	p.downCards = p.downCards[1:]
	return c, nil
}

func (p *Player) PickUpPile(cards []deck.Card) {
	p.hand = append(p.hand, cards...)
	p.sortHand()
}

func (p *Player) sortHand() {
	sort.SliceStable(p.hand, func(i, j int) bool {
		return rules.RankOf(p.hand[i]) < rules.RankOf(p.hand[j])
	})
}

func (p *Player) HasEmptyHand() bool { return len(p.hand) == 0 }

func (p *Player) HasEmptyUp() bool { return len(p.upCards) == 0 }

func (p *Player) HasEmptyDown() bool { return len(p.downCards) == 0 }

// Finished means the player has shed every card and is out of the game.
func (p *Player) Finished() bool {
	return p.HasEmptyHand() && p.HasEmptyUp() && p.HasEmptyDown()
}

// Hand returns a copy; callers cannot mutate player zones through it.
func (p *Player) Hand() []deck.Card { return append([]deck.Card(nil), p.hand...) }

func (p *Player) UpCards() []deck.Card { return append([]deck.Card(nil), p.upCards...) }

func (p *Player) DownCards() []deck.Card { return append([]deck.Card(nil), p.downCards...) }

func (p *Player) HandCount() int { return len(p.hand) }

func (p *Player) UpCount() int { return len(p.upCards) }

func (p *Player) DownCount() int { return len(p.downCards) }
