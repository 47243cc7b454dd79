package state

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/boulevardgame/backend/internal/game/models"
)

// MemoryStore is an in-process Store. It backs offline/local games
// when the real store is unreachable, and tests.
type MemoryStore struct {
	mu       sync.Mutex
	games    map[string][]byte
	watchers map[string][]chan *models.Game
}

// NewMemoryStore returns an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:    make(map[string][]byte),
		watchers: make(map[string][]chan *models.Game),
	}
}

// SaveSnapshot stores a deep copy (via JSON) so later mutations of the
// live game don't leak into watchers.
func (s *MemoryStore) SaveSnapshot(_ context.Context, code string, game *models.Game) error {
	payload, err := json.Marshal(game)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.games[code] = payload
	watchers := append([]chan *models.Game(nil), s.watchers[code]...)
	s.mu.Unlock()

	for _, ch := range watchers {
		snap := new(models.Game)
		if err := json.Unmarshal(payload, snap); err != nil {
			continue
		}
		select {
		case ch <- snap:
		default:
			// A stalled watcher drops snapshots; the next one carries
			// the full state anyway.
		}
	}
	return nil
}

func (s *MemoryStore) LoadSnapshot(_ context.Context, code string) (*models.Game, error) {
	s.mu.Lock()
	payload, ok := s.games[code]
	s.mu.Unlock()
	if !ok {
		return nil, models.ErrInvalidGameCode
	}

	game := new(models.Game)
	if err := json.Unmarshal(payload, game); err != nil {
		return nil, err
	}
	return game, nil
}

func (s *MemoryStore) Watch(ctx context.Context, code string) (<-chan *models.Game, error) {
	ch := make(chan *models.Game, 8)

	s.mu.Lock()
	s.watchers[code] = append(s.watchers[code], ch)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		ws := s.watchers[code]
		for i, w := range ws {
			if w == ch {
				s.watchers[code] = append(ws[:i], ws[i+1:]...)
				break
			}
		}
		s.mu.Unlock()
		close(ch)
	}()

	return ch, nil
}

func (s *MemoryStore) Remove(_ context.Context, code string) error {
	s.mu.Lock()
	delete(s.games, code)
	s.mu.Unlock()
	return nil
}
