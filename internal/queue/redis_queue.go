// Package queue carries player intents from non-host clients to the
// authoritative host. Intents are applied in receipt order and removed
// once applied; delivery is at-least-once, removal is the dedupe.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/models"
)

// ErrQueueEmpty is returned when there is no intent to pop.
var ErrQueueEmpty = fmt.Errorf("queue is empty")

// Intent wraps a game action with queue bookkeeping.
type Intent struct {
	Action    models.GameAction `json:"action"`
	Timestamp time.Time         `json:"timestamp"`
	Attempts  int               `json:"attempts"`
}

// RedisQueue implements the per-game intent queue on Redis lists.
// RPush/LPop keeps receipt order; failed intents retry a few times and
// then land in a dead-letter list for inspection.
type RedisQueue struct {
	client *redis.Client
	logger *zap.Logger
	ctx    context.Context
}

// NewRedisQueue wraps an existing Redis client.
func NewRedisQueue(client *redis.Client, logger *zap.Logger) *RedisQueue {
	return &RedisQueue{
		client: client,
		logger: logger,
		ctx:    context.Background(),
	}
}

func queueKey(gameCode string) string {
	return fmt.Sprintf("game:%s:actions", gameCode)
}

func deadLetterKey(gameCode string) string {
	return fmt.Sprintf("game:%s:actions:dead", gameCode)
}

// EnqueueAction appends a player intent to the game's queue.
func (q *RedisQueue) EnqueueAction(action models.GameAction) error {
	intent := Intent{
		Action:    action,
		Timestamp: time.Now(),
	}

	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	if err := q.client.RPush(q.ctx, queueKey(action.GameID), payload).Err(); err != nil {
		return fmt.Errorf("failed to push intent to queue: %w", err)
	}

	q.logger.Info("Intent enqueued",
		zap.String("gameCode", action.GameID),
		zap.String("type", string(action.Type)),
		zap.String("playerId", action.PlayerID))

	return nil
}

// DequeueAction removes and returns the oldest intent for a game.
// LPop keeps this non-blocking; the worker polls instead of parking
// on BLPOP.
func (q *RedisQueue) DequeueAction(gameCode string) (*Intent, error) {
	result, err := q.client.LPop(q.ctx, queueKey(gameCode)).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, ErrQueueEmpty
		}
		return nil, fmt.Errorf("failed to pop intent from queue: %w", err)
	}

	var intent Intent
	if err := json.Unmarshal([]byte(result), &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}

	return &intent, nil
}

// PeekAction returns the oldest intent without removing it, or nil on
// an empty queue.
func (q *RedisQueue) PeekAction(gameCode string) (*Intent, error) {
	result, err := q.client.LRange(q.ctx, queueKey(gameCode), 0, 0).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to peek intent: %w", err)
	}
	if len(result) == 0 {
		return nil, nil
	}

	var intent Intent
	if err := json.Unmarshal([]byte(result[0]), &intent); err != nil {
		return nil, fmt.Errorf("failed to unmarshal intent: %w", err)
	}

	return &intent, nil
}

// RetryAction puts an intent back at the tail of the queue with its
// attempt counter bumped.
func (q *RedisQueue) RetryAction(gameCode string, intent *Intent) error {
	intent.Attempts++

	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	if err := q.client.RPush(q.ctx, queueKey(gameCode), payload).Err(); err != nil {
		return fmt.Errorf("failed to requeue intent: %w", err)
	}

	q.logger.Info("Intent requeued for retry",
		zap.String("gameCode", gameCode),
		zap.String("type", string(intent.Action.Type)),
		zap.Int("attempts", intent.Attempts))

	return nil
}

// MoveToDeadLetter parks a repeatedly failing intent.
func (q *RedisQueue) MoveToDeadLetter(gameCode string, intent *Intent) error {
	intent.Attempts++

	payload, err := json.Marshal(intent)
	if err != nil {
		return fmt.Errorf("failed to marshal intent: %w", err)
	}

	if err := q.client.RPush(q.ctx, deadLetterKey(gameCode), payload).Err(); err != nil {
		return fmt.Errorf("failed to push intent to dead letter queue: %w", err)
	}

	q.logger.Warn("Intent moved to dead letter queue",
		zap.String("gameCode", gameCode),
		zap.String("type", string(intent.Action.Type)),
		zap.String("playerId", intent.Action.PlayerID),
		zap.Int("attempts", intent.Attempts))

	return nil
}

// QueueLength returns the number of pending intents for a game.
func (q *RedisQueue) QueueLength(gameCode string) (int64, error) {
	return q.client.LLen(q.ctx, queueKey(gameCode)).Result()
}

// ClearQueue drops all pending intents for one game.
func (q *RedisQueue) ClearQueue(gameCode string) error {
	return q.client.Del(q.ctx, queueKey(gameCode)).Err()
}

// ClearAllQueues drops every game's intent queue, dead letters
// included. Used by stale-game cleanup.
func (q *RedisQueue) ClearAllQueues() (int64, error) {
	keys, err := q.client.Keys(q.ctx, "game:*:actions*").Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list queue keys: %w", err)
	}
	if len(keys) == 0 {
		return 0, nil
	}

	count, err := q.client.Del(q.ctx, keys...).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to delete queues: %w", err)
	}

	q.logger.Info("Cleared all intent queues", zap.Int64("count", count))
	return count, nil
}
