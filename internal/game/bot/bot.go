package bot

import (
	"topthat/internal/game/deck"
	"topthat/internal/game/player"
	"topthat/internal/game/rules"
	"topthat/internal/game/session"
)

type Action string

const (
	ActionPlay   Action = "PLAY"
	ActionPickup Action = "PICKUP"
)

// Move is the decision a computer seat submits back through the same play
// path a human uses, so it can never bypass validation.
type Move struct {
	Action  Action
	Zone    session.Zone
	Indices []int
}

// ChooseMove picks a legal move for the computer player holding botID.
// Strategy: play the lowest-ranked legal non-special card (all copies of it
// from the hand at once), keep specials for when nothing else fits, in the
// order two, ten, five. No legal card means pickup. Down cards are a blind
// flip of the front card.
func ChooseMove(s *session.Session, botID string) Move {
	var bot *player.Player
	for _, p := range s.Players() {
		if p.ID == botID {
			bot = p
			break
		}
	}
	if bot == nil {
		return Move{Action: ActionPickup}
	}

	switch {
	case !bot.HasEmptyHand():
		if m, ok := bestPlay(s, bot.Hand(), session.ZoneHand, true); ok {
			return m
		}
	case !bot.HasEmptyUp():
		if m, ok := bestPlay(s, bot.UpCards(), session.ZoneUp, false); ok {
			return m
		}
	case !bot.HasEmptyDown():
		return Move{Action: ActionPlay, Zone: session.ZoneDown}
	}
	return Move{Action: ActionPickup}
}

// bestPlay scans one zone for legal single-card plays and ranks the
// candidates. groupSets widens a hand play to every copy of the chosen
// rank; up cards go one at a time.
func bestPlay(s *session.Session, cards []deck.Card, zone session.Zone, groupSets bool) (Move, bool) {
	pile := s.Pile()
	lastReal := s.LastRealCard()

	bestIdx := -1
	bestRank := 0
	bestSpecial := false
	for i, c := range cards {
		if !rules.IsValidPlay([]deck.Card{c}, pile, lastReal) {
			continue
		}
		special := rules.IsSpecial(c.Value)
		switch {
		case bestIdx == -1:
		case !special && bestSpecial:
			// any non-special beats holding only specials
		case special == bestSpecial && specialOrder(c) < specialOrder(cards[bestIdx]):
		case !special && !bestSpecial && rules.RankOf(c) < bestRank:
		default:
			continue
		}
		bestIdx, bestRank, bestSpecial = i, rules.RankOf(c), special
	}
	if bestIdx == -1 {
		return Move{}, false
	}

	indices := []int{bestIdx}
	if groupSets && !bestSpecial {
		chosen := rules.Normalize(cards[bestIdx].Value)
		for i, c := range cards {
			if i != bestIdx && rules.Normalize(c.Value) == chosen {
				indices = append(indices, i)
			}
		}
	}
	return Move{Action: ActionPlay, Zone: zone, Indices: indices}, true
}

// specialOrder: lower is preferred. Twos reset, tens burn, fives copy.
func specialOrder(c deck.Card) int {
	switch {
	case rules.IsTwo(c.Value):
		return 0
	case rules.IsTen(c.Value):
		return 1
	default:
		return 2
	}
}
