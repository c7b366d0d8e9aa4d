package lobby

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"topthat/internal/utils"
)

var (
	ErrRoomNotFound       = errors.New("room not found")
	ErrRoomFull           = errors.New("room is full")
	ErrAlreadyStarted     = errors.New("game has already started")
	ErrDuplicateJoin      = errors.New("player already in this room")
	ErrNotHost            = errors.New("only the host can start the game")
	ErrInvalidName        = errors.New("invalid player name")
	ErrInvalidRoomCode    = errors.New("invalid room code format")
	ErrInvalidPlayerCount = errors.New("invalid player count for start")
	ErrPlayerNotFound     = errors.New("player not in any room")
)

// Service is the lobby registry. It is constructed once in main and passed
// by reference; there is deliberately no package-level instance. It owns
// every pre-game room until Start hands the room off to the game layer,
// exactly once per room.
type Service struct {
	mu         sync.Mutex
	rooms      map[string]*Room
	byConn     map[string]string // connection id -> room code
	repo       Repo
	maxPlayers int
	ttlSeconds int
	rnd        *rand.Rand

	// OnRoomStart fires when the host starts a valid room. The lobby keeps
	// the room marked started so late joins bounce.
	OnRoomStart func(*Room) error
}

func NewService(repo Repo, maxPlayers, ttlSeconds int) *Service {
	if maxPlayers <= 0 {
		maxPlayers = 4
	}
	return &Service{
		rooms:      make(map[string]*Room),
		byConn:     make(map[string]string),
		repo:       repo,
		maxPlayers: maxPlayers,
		ttlSeconds: ttlSeconds,
		rnd:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) MaxPlayers() int { return s.maxPlayers }

// Join creates a room (no code) or joins an existing one. The first joiner
// becomes host with Ready implicitly true; later joiners start not ready.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*Room, *LobbyPlayer, error) {
	if !IsValidPlayerName(req.Name) {
		return nil, nil, ErrInvalidName
	}
	name := strings.TrimSpace(req.Name)

	s.mu.Lock()
	defer s.mu.Unlock()

	target := strings.ToUpper(strings.TrimSpace(req.RoomCode))
	if seated, ok := s.byConn[req.ConnectionID]; ok && seated != target {
		// one seat per connection; leave before creating or joining another
		return nil, nil, ErrDuplicateJoin
	}

	if req.RoomCode == "" {
		return s.createRoomLocked(ctx, req.ConnectionID, name, req.NumCPUs)
	}

	code := target
	if !IsValidRoomCode(code) {
		return nil, nil, ErrInvalidRoomCode
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	if room.Started {
		return nil, nil, ErrAlreadyStarted
	}
	if existing := room.PlayerByConnection(req.ConnectionID); existing != nil {
		// replaying an already-applied join must not duplicate the seat
		return room, existing, nil
	}
	if len(room.Players) >= s.maxPlayers {
		return nil, nil, ErrRoomFull
	}

	p := &LobbyPlayer{
		ID:           uuid.NewString(),
		ConnectionID: req.ConnectionID,
		Name:         name,
		Status:       StatusJoined,
		JoinedAt:     time.Now(),
	}
	room.Players = append(room.Players, p)
	s.byConn[req.ConnectionID] = code
	s.persist(ctx, room)
	return room, p, nil
}

func (s *Service) createRoomLocked(ctx context.Context, connID, name string, numCPUs int) (*Room, *LobbyPlayer, error) {
	code := s.newCodeLocked()
	host := &LobbyPlayer{
		ID:           uuid.NewString(),
		ConnectionID: connID,
		Name:         name,
		Ready:        true,
		Status:       StatusHost,
		JoinedAt:     time.Now(),
	}
	room := &Room{
		Code:          code,
		Players:       []*LobbyPlayer{host},
		HostID:        host.ID,
		RequestedCPUs: numCPUs,
		CreatedAt:     time.Now(),
	}
	s.rooms[code] = room
	s.byConn[connID] = code
	s.persist(ctx, room)
	utils.Print.Info("room created", "room", code, "host", host.Name)
	return room, host, nil
}

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func (s *Service) newCodeLocked() string {
	for {
		b := make([]byte, 6)
		for i := range b {
			b[i] = codeAlphabet[s.rnd.Intn(len(codeAlphabet))]
		}
		code := string(b)
		if _, taken := s.rooms[code]; !taken {
			return code
		}
	}
}

// Leave removes the connection's player from their room. If the host
// leaves, the earliest-joined remaining player is promoted. The last player
// out destroys the room.
func (s *Service) Leave(ctx context.Context, connID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	code, ok := s.byConn[connID]
	if !ok {
		return nil, false
	}
	delete(s.byConn, connID)
	room, ok := s.rooms[code]
	if !ok {
		return nil, false
	}

	idx := -1
	for i, p := range room.Players {
		if p.ConnectionID == connID {
			idx = i
			break
		}
	}
	if idx == -1 {
		return room, false
	}
	left := room.Players[idx]
	room.Players = append(room.Players[:idx], room.Players[idx+1:]...)
	_ = s.repo.ClearPlayerRoom(ctx, left.ID)

	if len(room.Players) == 0 {
		delete(s.rooms, code)
		_ = s.repo.DeleteRoom(ctx, code)
		utils.Print.Info("room destroyed", "room", code)
		return nil, true
	}

	if left.ID == room.HostID {
		next := room.Players[0]
		for _, p := range room.Players[1:] {
			if p.JoinedAt.Before(next.JoinedAt) {
				next = p
			}
		}
		room.HostID = next.ID
		next.Status = StatusHost
		next.Ready = true
		utils.Print.Info("host re-elected", "room", code, "host", next.Name)
	}
	s.persist(ctx, room)
	return room, true
}

// SetReady toggles a non-host player's ready flag. The host is always
// ready; flipping them is a no-op.
func (s *Service) SetReady(ctx context.Context, connID string, ready bool) (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, p, err := s.playerByConnLocked(connID)
	if err != nil {
		return nil, err
	}
	if p.ID == room.HostID {
		return room, nil
	}
	p.Ready = ready
	if ready {
		p.Status = StatusReady
	} else {
		p.Status = StatusJoined
	}
	return room, nil
}

// Start validates the player-count invariant (at least 2 seats, at least
// one human, at most max) and hands the room to the game layer. Host only.
func (s *Service) Start(ctx context.Context, connID string, cpuCount int) (*Room, error) {
	s.mu.Lock()

	room, p, err := s.playerByConnLocked(connID)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if p.ID != room.HostID {
		s.mu.Unlock()
		return nil, ErrNotHost
	}
	if room.Started {
		s.mu.Unlock()
		return nil, ErrAlreadyStarted
	}

	total := len(room.Players) + cpuCount
	if cpuCount < 0 || total < 2 || total > s.maxPlayers || room.HumanCount() < 1 {
		s.mu.Unlock()
		return nil, fmt.Errorf("%w: %d seats requested, max %d", ErrInvalidPlayerCount, total, s.maxPlayers)
	}

	for i := 0; i < cpuCount; i++ {
		room.Players = append(room.Players, &LobbyPlayer{
			ID:       fmt.Sprintf("COMPUTER_%d", i+1),
			Name:     fmt.Sprintf("COMPUTER_%d", i+1),
			Ready:    true,
			Status:   StatusReady,
			IsCPU:    true,
			JoinedAt: time.Now(),
		})
	}
	room.Started = true
	s.persist(ctx, room)
	s.mu.Unlock()

	if s.OnRoomStart != nil {
		if err := s.OnRoomStart(room); err != nil {
			s.mu.Lock()
			room.Started = false
			room.Players = room.Players[:len(room.Players)-cpuCount]
			s.mu.Unlock()
			return nil, err
		}
	}
	return room, nil
}

// Rebind points an existing seat at a new connection. A seat created over
// the REST fallback, or a pre-start socket that dropped, binds its live
// socket here; the game layer never sees the old connection id.
func (s *Service) Rebind(ctx context.Context, playerID, roomCode, connID string) (*Room, *LobbyPlayer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	room, ok := s.rooms[strings.ToUpper(strings.TrimSpace(roomCode))]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	p := room.Player(playerID)
	if p == nil || p.IsCPU {
		return nil, nil, ErrPlayerNotFound
	}
	if p.ConnectionID != "" {
		delete(s.byConn, p.ConnectionID)
	}
	p.ConnectionID = connID
	s.byConn[connID] = room.Code
	return room, p, nil
}

func (s *Service) playerByConnLocked(connID string) (*Room, *LobbyPlayer, error) {
	code, ok := s.byConn[connID]
	if !ok {
		return nil, nil, ErrPlayerNotFound
	}
	room, ok := s.rooms[code]
	if !ok {
		return nil, nil, ErrRoomNotFound
	}
	p := room.PlayerByConnection(connID)
	if p == nil {
		return nil, nil, ErrPlayerNotFound
	}
	return room, p, nil
}

func (s *Service) Room(code string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.rooms[code]
	return r, ok
}

func (s *Service) RoomByConnection(connID string) (*Room, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	code, ok := s.byConn[connID]
	if !ok {
		return nil, false
	}
	r, ok := s.rooms[code]
	return r, ok
}

// Forget drops a finished room from the registry and index.
func (s *Service) Forget(ctx context.Context, code string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if room, ok := s.rooms[code]; ok {
		for _, p := range room.Players {
			delete(s.byConn, p.ConnectionID)
		}
		delete(s.rooms, code)
	}
	_ = s.repo.DeleteRoom(ctx, code)
}

func (s *Service) State(room *Room) State {
	return State{
		RoomCode:   room.Code,
		Players:    room.Players,
		HostID:     room.HostID,
		MaxPlayers: s.maxPlayers,
	}
}

func (s *Service) persist(ctx context.Context, room *Room) {
	rec := &RoomRecord{
		Code:      room.Code,
		Started:   room.Started,
		CreatedAt: room.CreatedAt,
	}
	for _, p := range room.Players {
		rec.PlayerIDs = append(rec.PlayerIDs, p.ID)
		_ = s.repo.SetPlayerRoom(ctx, p.ID, room.Code, s.ttlSeconds)
	}
	if err := s.repo.SaveRoom(ctx, rec, s.ttlSeconds); err != nil {
		utils.Error.Printf("persist room %s: %v", room.Code, err)
	}
}
