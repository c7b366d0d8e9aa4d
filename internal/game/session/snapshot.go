package session

import "topthat/internal/game/deck"

// PlayerView is one seat as seen by a particular viewer. The viewer gets
// their own hand and up cards; everyone else is counts only. Down cards are
// never revealed, not even to their owner.
type PlayerView struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	IsComputer   bool        `json:"isComputer,omitempty"`
	Disconnected bool        `json:"disconnected,omitempty"`
	Hand         []deck.Card `json:"hand,omitempty"`
	UpCards      []deck.Card `json:"upCards,omitempty"`
	HandCount    int         `json:"handCount"`
	UpCount      int         `json:"upCount"`
	DownCount    int         `json:"downCount"`
}

// Snapshot is the full authoritative state pushed after every mutation.
type Snapshot struct {
	RoomCode        string       `json:"roomId"`
	Players         []PlayerView `json:"players"`
	Pile            []deck.Card  `json:"pile"`
	DiscardCount    int          `json:"discardCount"`
	DeckCount       int          `json:"deckCount"`
	CurrentPlayerID string       `json:"currentPlayerId"`
	Started         bool         `json:"started"`
	Phase           Phase        `json:"phase"`
	WinnerID        string       `json:"winnerId,omitempty"`
}

// SnapshotFor builds the state view for one viewer. Snapshots are taken
// only between completed operations, so every client sees a consistent
// point in the game.
func (s *Session) SnapshotFor(viewerID string) Snapshot {
	snap := Snapshot{
		RoomCode:        s.RoomCode,
		Pile:            s.Pile(),
		DiscardCount:    len(s.discard),
		DeckCount:       s.deck.Remaining(),
		CurrentPlayerID: s.CurrentPlayerID(),
		Started:         s.phase != WaitingToStart,
		Phase:           s.phase,
		WinnerID:        s.Winner(),
	}
	if s.phase != Finished {
		snap.WinnerID = ""
	}
	for _, p := range s.players {
		view := PlayerView{
			ID:           p.ID,
			Name:         p.Name,
			IsComputer:   p.IsComputer,
			Disconnected: p.Disconnected,
			HandCount:    p.HandCount(),
			UpCount:      p.UpCount(),
			DownCount:    p.DownCount(),
		}
		if p.ID == viewerID {
			view.Hand = p.Hand()
			view.UpCards = p.UpCards()
		}
		snap.Players = append(snap.Players, view)
	}
	return snap
}
