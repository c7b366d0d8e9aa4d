package lobby

import (
	"context"
	"sync"
)

type memRepo struct {
	mu         sync.Mutex
	rooms      map[string]*RoomRecord
	playerRoom map[string]string
}

// NewMemoryRepo is the in-process fallback used when no redis is
// configured, and by tests. TTLs are ignored here.
func NewMemoryRepo() Repo {
	return &memRepo{
		rooms:      make(map[string]*RoomRecord),
		playerRoom: make(map[string]string),
	}
}

func (m *memRepo) SaveRoom(ctx context.Context, rec *RoomRecord, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *rec
	cp.PlayerIDs = append([]string(nil), rec.PlayerIDs...)
	m.rooms[rec.Code] = &cp
	return nil
}

func (m *memRepo) GetRoom(ctx context.Context, code string) (*RoomRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.rooms[code]
	if !ok {
		return nil, nil
	}
	cp := *rec
	cp.PlayerIDs = append([]string(nil), rec.PlayerIDs...)
	return &cp, nil
}

func (m *memRepo) DeleteRoom(ctx context.Context, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rooms, code)
	for pid, c := range m.playerRoom {
		if c == code {
			delete(m.playerRoom, pid)
		}
	}
	return nil
}

func (m *memRepo) SetPlayerRoom(ctx context.Context, playerID, code string, ttlSeconds int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playerRoom[playerID] = code
	return nil
}

func (m *memRepo) GetPlayerRoom(ctx context.Context, playerID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playerRoom[playerID], nil
}

func (m *memRepo) ClearPlayerRoom(ctx context.Context, playerID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.playerRoom, playerID)
	return nil
}
