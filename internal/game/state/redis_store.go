package state

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"

	"github.com/boulevardgame/backend/internal/db/redis"
	"github.com/boulevardgame/backend/internal/game/models"
)

// snapshotTTL keeps abandoned game documents from lingering forever.
const snapshotTTL = 48 * time.Hour

// RedisStore implements Store on Redis: the document is a JSON value,
// watchers ride a pub/sub channel. All writes go through the circuit
// breaker, so a dead Redis surfaces as ErrStoreUnavailable instead of
// hanging the game loop.
type RedisStore struct {
	client *redis.GuardedClient
}

// NewRedisStore wraps a guarded Redis client.
func NewRedisStore(client *redis.GuardedClient) *RedisStore {
	return &RedisStore{client: client}
}

func stateKey(code string) string { return fmt.Sprintf("game:%s:state", code) }

func stateChannel(code string) string { return fmt.Sprintf("game:%s:snapshots", code) }

func (s *RedisStore) SaveSnapshot(ctx context.Context, code string, game *models.Game) error {
	payload, err := json.Marshal(game)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	return s.client.Do(func() error {
		if err := s.client.Client().Set(ctx, stateKey(code), payload, snapshotTTL).Err(); err != nil {
			return err
		}
		return s.client.Client().Publish(ctx, stateChannel(code), payload).Err()
	})
}

func (s *RedisStore) LoadSnapshot(ctx context.Context, code string) (*models.Game, error) {
	var payload string
	err := s.client.Do(func() error {
		var err error
		payload, err = s.client.Client().Get(ctx, stateKey(code)).Result()
		return err
	})
	if err != nil {
		if err == goredis.Nil {
			return nil, models.ErrInvalidGameCode
		}
		return nil, err
	}

	game := new(models.Game)
	if err := json.Unmarshal([]byte(payload), game); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return game, nil
}

func (s *RedisStore) Watch(ctx context.Context, code string) (<-chan *models.Game, error) {
	sub := s.client.Client().Subscribe(ctx, stateChannel(code))
	// Force the subscription to establish before we report success.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe to snapshots: %w", err)
	}

	out := make(chan *models.Game, 8)
	go func() {
		defer close(out)
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-sub.Channel():
				if !ok {
					return
				}
				game := new(models.Game)
				if err := json.Unmarshal([]byte(msg.Payload), game); err != nil {
					continue
				}
				select {
				case out <- game:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (s *RedisStore) Remove(ctx context.Context, code string) error {
	return s.client.Do(func() error {
		return s.client.Client().Del(ctx, stateKey(code)).Err()
	})
}
