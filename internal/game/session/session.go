package session

import (
	"errors"
	"fmt"

	"topthat/internal/game/deck"
	"topthat/internal/game/player"
	"topthat/internal/game/rules"
	"topthat/internal/utils"
)

type Phase string

const (
	WaitingToStart Phase = "WAITING_TO_START"
	InProgress     Phase = "IN_PROGRESS"
	Finished       Phase = "FINISHED"
)

type Zone string

const (
	ZoneHand Zone = "hand"
	ZoneUp   Zone = "up"
	ZoneDown Zone = "down"
)

var (
	ErrNotStarted     = errors.New("game has not started")
	ErrAlreadyStarted = errors.New("game has already started")
	ErrTooFewPlayers  = errors.New("at least 2 players are required")
	ErrPlayerNotFound = errors.New("player not found in session")
	ErrNotYourTurn    = errors.New("not your turn")
	ErrInvalidPlay    = errors.New("play is not legal against the current pile")
	ErrInvalidZone    = errors.New("unknown zone")
	ErrGameOver       = errors.New("game is over")
)

// Effect is a special-card notification for clients (animation cue).
type Effect struct {
	Type  string `json:"type"` // two | five | ten | four
	Value string `json:"value"`
}

// PlayResult describes everything that happened during one completed play
// so the controller can broadcast it as a single consistent step.
type PlayResult struct {
	PlayedCards []deck.Card
	Effects     []Effect
	Burned      bool       // pile cleared by a ten or four of a kind
	PickedUp    bool       // forced pickup after a failed blind down card
	FailedDown  *deck.Card // the revealed down card that did not play
	TurnHeld    bool       // same player goes again (burn)
	PlayerOut   bool       // acting player shed their last card
	GameOver    bool
	WinnerID    string
}

// Session is the authoritative per-room game state machine. It is not safe
// for concurrent use; the room's manager goroutine serializes access.
type Session struct {
	RoomCode string

	players       []*player.Player
	currentIndex  int
	pile          []deck.Card
	discard       []deck.Card
	deck          *deck.Deck
	lastRealCard  *deck.Card
	phase         Phase
	maxPlayers    int
	handSize      int
	finishedOrder []string
}

func New(roomCode string, seed int64, maxPlayers, handSize int) *Session {
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	if handSize <= 0 {
		handSize = 3
	}
	return &Session{
		RoomCode:     roomCode,
		currentIndex: -1,
		deck:         deck.New(seed),
		phase:        WaitingToStart,
		maxPlayers:   maxPlayers,
		handSize:     handSize,
	}
}

func (s *Session) Phase() Phase { return s.phase }

func (s *Session) Players() []*player.Player { return s.players }

func (s *Session) MaxPlayers() int { return s.maxPlayers }

// AddPlayer seats a player before the game starts. The max-player limit is
// a soft one: the extra join is logged and ignored, not an error.
func (s *Session) AddPlayer(p *player.Player) {
	if s.phase != WaitingToStart {
		utils.Info.Printf("session %s: ignoring join from %s after start", s.RoomCode, p.ID)
		return
	}
	if s.findPlayer(p.ID) != nil {
		return
	}
	if len(s.players) >= s.maxPlayers {
		utils.Info.Printf("session %s: table full (%d), ignoring join from %s", s.RoomCode, s.maxPlayers, p.ID)
		return
	}
	s.players = append(s.players, p)
	if s.currentIndex == -1 {
		s.currentIndex = 0
	}
}

// RemovePlayer deletes a seat before start. Mid-game the player is only
// marked disconnected: their cards stay on the table for rejoin and for
// rule history.
func (s *Session) RemovePlayer(id string) {
	p := s.findPlayer(id)
	if p == nil {
		return
	}
	if s.phase != WaitingToStart {
		p.Disconnected = true
		if s.currentPlayer() == p {
			s.AdvancePlayer()
		}
		return
	}
	idx := s.indexOf(id)
	s.players = append(s.players[:idx], s.players[idx+1:]...)
	switch {
	case len(s.players) == 0:
		s.currentIndex = -1
	case s.currentIndex >= idx:
		s.currentIndex = (s.currentIndex - 1 + len(s.players)) % len(s.players)
	}
}

// Reconnect clears the disconnected flag after a successful rejoin.
func (s *Session) Reconnect(id string) error {
	p := s.findPlayer(id)
	if p == nil {
		return ErrPlayerNotFound
	}
	p.Disconnected = false
	return nil
}

// Start deals the table and moves the session into play.
func (s *Session) Start() error {
	if s.phase != WaitingToStart {
		return ErrAlreadyStarted
	}
	if len(s.players) < 2 {
		return ErrTooFewPlayers
	}
	s.deck.Build()
	hands, ups, downs, err := s.deck.Deal(len(s.players), s.handSize)
	if err != nil {
		return fmt.Errorf("deal: %w", err)
	}
	for i, p := range s.players {
		p.SetHand(hands[i])
		p.SetUpCards(ups[i])
		p.SetDownCards(downs[i])
	}
	s.currentIndex = 0
	s.phase = InProgress
	return nil
}

// AddToPile appends a card. Copies keep the rendered flag and never touch
// lastRealCard; fives never become the "real" card either, since the copy
// rule resolves through them.
func (s *Session) AddToPile(c deck.Card, isCopy bool) {
	if isCopy {
		c.Copied = true
		s.pile = append(s.pile, c)
		return
	}
	s.pile = append(s.pile, c)
	if !rules.IsFive(c.Value) {
		card := c
		s.lastRealCard = &card
	}
}

// ClearPile burns the pile into the discard. This is not a pickup; the
// cards leave play entirely.
func (s *Session) ClearPile() {
	s.discard = append(s.discard, s.pile...)
	s.pile = s.pile[:0]
	s.lastRealCard = nil
}

// AdvancePlayer moves the turn to the next seat, skipping players who have
// finished or dropped.
func (s *Session) AdvancePlayer() {
	if len(s.players) == 0 {
		s.currentIndex = -1
		return
	}
	for i := 1; i <= len(s.players); i++ {
		idx := (s.currentIndex + i) % len(s.players)
		p := s.players[idx]
		if p.Finished() || p.Disconnected {
			continue
		}
		s.currentIndex = idx
		return
	}
	// nobody eligible; keep the index where it is
}

// PlayCards runs one complete play: validate, move the cards to the pile,
// apply special effects, and advance or hold the turn. On a rule violation
// nothing is mutated and the error is returned for the acting client only.
func (s *Session) PlayCards(playerID string, indices []int, zone Zone) (*PlayResult, error) {
	if s.phase == Finished {
		return nil, ErrGameOver
	}
	if s.phase != InProgress {
		return nil, ErrNotStarted
	}
	p := s.findPlayer(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if s.currentPlayer() != p {
		return nil, ErrNotYourTurn
	}

	switch zone {
	case ZoneHand, ZoneUp:
		return s.playFromVisible(p, indices, zone)
	case ZoneDown:
		return s.playBlind(p)
	default:
		return nil, ErrInvalidZone
	}
}

func (s *Session) playFromVisible(p *player.Player, indices []int, zone Zone) (*PlayResult, error) {
	if len(indices) == 0 {
		return nil, ErrInvalidPlay
	}
	source := p.Hand()
	if zone == ZoneUp {
		if !p.HasEmptyHand() {
			return nil, player.ErrZoneNotActive
		}
		source = p.UpCards()
	}

	// Validate before touching any state.
	seen := make(map[int]bool, len(indices))
	cards := make([]deck.Card, 0, len(indices))
	for _, i := range indices {
		if i < 0 || i >= len(source) || seen[i] {
			return nil, player.ErrEmptyZone
		}
		seen[i] = true
		cards = append(cards, source[i])
	}
	if !rules.IsValidPlay(cards, s.pile, s.lastRealCard) {
		return nil, ErrInvalidPlay
	}

	// Remove from the zone highest index first so positions stay valid.
	ordered := append([]int(nil), indices...)
	for i := 0; i < len(ordered); i++ {
		for j := i + 1; j < len(ordered); j++ {
			if ordered[j] > ordered[i] {
				ordered[i], ordered[j] = ordered[j], ordered[i]
			}
		}
	}
	for _, idx := range ordered {
		var err error
		if zone == ZoneHand {
			_, err = p.PlayFromHand(idx)
		} else {
			_, err = p.PlayUpCard(idx)
		}
		if err != nil {
			return nil, err
		}
	}

	return s.settle(p, cards), nil
}

// playBlind flips the front down card. If it does not beat the pile the
// player is forced into the pickup flow: pile plus the failed card go into
// their hand and the turn passes.
func (s *Session) playBlind(p *player.Player) (*PlayResult, error) {
	card, err := p.PlayDownCard()
	if err != nil {
		return nil, err
	}
	if !rules.IsValidPlay([]deck.Card{card}, s.pile, s.lastRealCard) {
		res := &PlayResult{PickedUp: true, FailedDown: &card}
		picked := append(append([]deck.Card(nil), s.pile...), card)
		p.PickUpPile(picked)
		s.pile = s.pile[:0]
		s.lastRealCard = nil
		s.AdvancePlayer()
		return res, nil
	}
	return s.settle(p, []deck.Card{card}), nil
}

// settle applies special effects for an accepted play and resolves the turn.
func (s *Session) settle(p *player.Player, cards []deck.Card) *PlayResult {
	res := &PlayResult{PlayedCards: cards}
	for _, c := range cards {
		s.AddToPile(c, false)
	}

	value := rules.Normalize(cards[len(cards)-1].Value)
	switch {
	// Four of a kind outranks the single-card effects: four twos or four
	// fives burn instead of resetting or copying.
	case rules.IsFourOfAKindOnPile(s.pile):
		res.Effects = append(res.Effects, Effect{Type: "four", Value: value})
		s.burn(res)

	case rules.IsTwo(value):
		// Resets the required rank: the two is now the effective top.
		res.Effects = append(res.Effects, Effect{Type: "two", Value: value})

	case rules.IsTen(value):
		res.Effects = append(res.Effects, Effect{Type: "ten", Value: value})
		s.burn(res)

	case rules.IsFive(value):
		res.Effects = append(res.Effects, Effect{Type: "five", Value: value})
		if s.lastRealCard != nil {
			s.AddToPile(*s.lastRealCard, true)
		}
	}

	if p.Finished() {
		res.PlayerOut = true
		s.finishedOrder = append(s.finishedOrder, p.ID)
	}
	s.checkGameOver(res)
	if res.GameOver {
		return res
	}

	if res.Burned && !p.Finished() {
		res.TurnHeld = true
	} else {
		s.AdvancePlayer()
	}
	return res
}

// burn clears the pile and, when the deck still has cards, turns the next
// one face-up to seed the new pile. A special flipped card leaves
// lastRealCard unset.
func (s *Session) burn(res *PlayResult) {
	s.ClearPile()
	res.Burned = true
	if c, ok := s.deck.Draw(); ok {
		s.pile = append(s.pile, c)
		if !rules.IsSpecial(c.Value) {
			card := c
			s.lastRealCard = &card
		}
	}
}

// PickUpPile handles a voluntary (or no-legal-play) pickup on the acting
// player's turn. The turn always passes afterwards.
func (s *Session) PickUpPile(playerID string) (*PlayResult, error) {
	if s.phase == Finished {
		return nil, ErrGameOver
	}
	if s.phase != InProgress {
		return nil, ErrNotStarted
	}
	p := s.findPlayer(playerID)
	if p == nil {
		return nil, ErrPlayerNotFound
	}
	if s.currentPlayer() != p {
		return nil, ErrNotYourTurn
	}
	picked := append([]deck.Card(nil), s.pile...)
	p.PickUpPile(picked)
	s.pile = s.pile[:0]
	s.lastRealCard = nil
	s.AdvancePlayer()
	return &PlayResult{PickedUp: true}, nil
}

func (s *Session) checkGameOver(res *PlayResult) {
	remaining := 0
	for _, p := range s.players {
		if !p.Finished() {
			remaining++
		}
	}
	if remaining <= 1 && len(s.players) >= 2 {
		s.phase = Finished
		res.GameOver = true
		if len(s.finishedOrder) > 0 {
			res.WinnerID = s.finishedOrder[0]
		}
	}
}

func (s *Session) Winner() string {
	if len(s.finishedOrder) == 0 {
		return ""
	}
	return s.finishedOrder[0]
}

func (s *Session) CurrentPlayerID() string {
	if p := s.currentPlayer(); p != nil {
		return p.ID
	}
	return ""
}

func (s *Session) Pile() []deck.Card { return append([]deck.Card(nil), s.pile...) }

func (s *Session) Discard() []deck.Card { return append([]deck.Card(nil), s.discard...) }

func (s *Session) LastRealCard() *deck.Card {
	if s.lastRealCard == nil {
		return nil
	}
	c := *s.lastRealCard
	return &c
}

func (s *Session) DeckCount() int { return s.deck.Remaining() }

func (s *Session) currentPlayer() *player.Player {
	if s.currentIndex < 0 || s.currentIndex >= len(s.players) {
		return nil
	}
	return s.players[s.currentIndex]
}

func (s *Session) CurrentIndex() int { return s.currentIndex }

func (s *Session) findPlayer(id string) *player.Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (s *Session) indexOf(id string) int {
	for i, p := range s.players {
		if p.ID == id {
			return i
		}
	}
	return -1
}
