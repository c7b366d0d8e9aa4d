package manager

import (
	"context"
	"fmt"
	"sync"
	"time"

	"topthat/internal/game/player"
	"topthat/internal/game/session"
	"topthat/internal/lobby"
	"topthat/internal/storage"
	"topthat/internal/utils"
)

// GameManager owns every in-progress room. Rooms are fully independent:
// each gets its own Runner goroutine and no state is shared between them.
type GameManager struct {
	mu           sync.RWMutex
	runners      map[string]*Runner // room code -> runner
	playerToRoom map[string]string  // player id -> room code

	handSize        int
	maxPlayers      int
	cpuDelay        time.Duration
	cpuSpecialDelay time.Duration
	results         *storage.ResultStore
	hooks           Hooks
}

type Options struct {
	HandSize        int
	MaxPlayers      int
	CPUDelay        time.Duration
	CPUSpecialDelay time.Duration
	Results         *storage.ResultStore
}

func NewGameManager(opts Options) *GameManager {
	if opts.HandSize <= 0 {
		opts.HandSize = 3
	}
	if opts.MaxPlayers <= 0 {
		opts.MaxPlayers = 4
	}
	if opts.CPUDelay <= 0 {
		opts.CPUDelay = 2 * time.Second
	}
	if opts.CPUSpecialDelay <= 0 {
		opts.CPUSpecialDelay = 3 * time.Second
	}
	return &GameManager{
		runners:         make(map[string]*Runner),
		playerToRoom:    make(map[string]string),
		handSize:        opts.HandSize,
		maxPlayers:      opts.MaxPlayers,
		cpuDelay:        opts.CPUDelay,
		cpuSpecialDelay: opts.CPUSpecialDelay,
		results:         opts.Results,
	}
}

// SetHooks must be called before the first StartRoom.
func (m *GameManager) SetHooks(h Hooks) {
	m.hooks = h
}

// StartRoom builds a session from the lobby room, deals, and starts the
// room loop. This is the single lobby-to-game handoff.
func (m *GameManager) StartRoom(room *lobby.Room) error {
	m.mu.Lock()
	if _, ok := m.runners[room.Code]; ok {
		m.mu.Unlock()
		return fmt.Errorf("session for room %s already exists", room.Code)
	}

	sess := session.New(room.Code, time.Now().UnixNano(), m.maxPlayers, m.handSize)
	for _, lp := range room.Players {
		p := player.New(lp.ID)
		p.Name = lp.Name
		p.IsComputer = lp.IsCPU
		sess.AddPlayer(p)
		m.playerToRoom[lp.ID] = room.Code
	}
	if err := sess.Start(); err != nil {
		for _, lp := range room.Players {
			delete(m.playerToRoom, lp.ID)
		}
		m.mu.Unlock()
		return err
	}

	hooks := m.hooks
	hooks.OnGameOver = m.wrapGameOver(m.hooks.OnGameOver)
	r := newRunner(sess, m.cpuDelay, m.cpuSpecialDelay, hooks)
	m.runners[room.Code] = r
	m.mu.Unlock()

	go r.run()

	// Initial deal broadcast, then let the loop take over (the first seat
	// may be a computer).
	r.Do(func() {
		if hooks.OnChange != nil {
			hooks.OnChange(sess, nil, "")
		}
	})
	utils.Print.Info("game started", "room", room.Code, "players", len(room.Players))
	return nil
}

func (m *GameManager) wrapGameOver(next func(*session.Session)) func(*session.Session) {
	return func(sess *session.Session) {
		m.archive(sess)
		if next != nil {
			next(sess)
		}
	}
}

func (m *GameManager) archive(sess *session.Session) {
	if m.results == nil {
		return
	}
	winnerID := sess.Winner()
	winnerName := winnerID
	for _, p := range sess.Players() {
		if p.ID == winnerID {
			winnerName = p.Name
		}
	}
	startedAt := time.Now()
	if r, ok := m.Runner(sess.RoomCode); ok {
		startedAt = r.startedAt
	}
	err := m.results.Save(context.Background(), storage.GameResult{
		RoomCode:    sess.RoomCode,
		WinnerID:    winnerID,
		WinnerName:  winnerName,
		PlayerCount: len(sess.Players()),
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
	})
	if err != nil {
		utils.Error.Printf("archive result for room %s: %v", sess.RoomCode, err)
	}
}

// Runner returns the loop for a room so callers can enqueue actions.
func (m *GameManager) Runner(roomCode string) (*Runner, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runners[roomCode]
	return r, ok
}

// RoomOf maps a stable player id to its in-progress room.
func (m *GameManager) RoomOf(playerID string) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	code, ok := m.playerToRoom[playerID]
	return code, ok
}

// EndRoom tears the room loop down and releases the player index.
func (m *GameManager) EndRoom(roomCode string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.runners[roomCode]
	if !ok {
		return
	}
	r.stop()
	delete(m.runners, roomCode)
	for pid, code := range m.playerToRoom {
		if code == roomCode {
			delete(m.playerToRoom, pid)
		}
	}
	utils.Print.Info("game ended", "room", roomCode)
}
