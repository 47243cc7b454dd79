package queue

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/boulevardgame/backend/internal/game/models"
)

// IntentApplier is what the worker needs from the game manager: apply
// one validated intent, and tell it which games are live.
type IntentApplier interface {
	ApplyAction(action models.GameAction) error
	ActiveGameCodes() []string
	GameExists(code string) bool
}

// Worker drains intent queues for the games hosted on this node and
// applies each intent in receipt order. Failing intents retry up to
// maxAttempts, then land in the dead-letter list. Rule violations
// (not your turn, can't afford it) are not failures: the intent was
// delivered and judged, so it is simply dropped.
type Worker struct {
	queue        *RedisQueue
	applier      IntentApplier
	logger       *zap.Logger
	maxAttempts  int
	pollInterval time.Duration
	shutdownChan chan struct{}
	ctx          context.Context
	cancel       context.CancelFunc
}

// NewWorker creates a new intent worker.
func NewWorker(queue *RedisQueue, applier IntentApplier, logger *zap.Logger) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	return &Worker{
		queue:        queue,
		applier:      applier,
		logger:       logger,
		maxAttempts:  3,
		pollInterval: 100 * time.Millisecond,
		shutdownChan: make(chan struct{}),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetMaxAttempts sets the maximum number of retry attempts.
func (w *Worker) SetMaxAttempts(maxAttempts int) {
	w.maxAttempts = maxAttempts
}

// Start begins draining queues in the background.
func (w *Worker) Start() {
	go w.processIntents()
	go w.runPeriodicCleanup()
}

// Stop stops the worker.
func (w *Worker) Stop() {
	w.cancel()
	close(w.shutdownChan)
}

func (w *Worker) processIntents() {
	for {
		select {
		case <-w.shutdownChan:
			w.logger.Info("Intent worker shutting down")
			return
		default:
		}

		for _, code := range w.applier.ActiveGameCodes() {
			w.drainGame(code)
		}

		// Breathe between polling passes to avoid hammering Redis.
		time.Sleep(w.pollInterval)
	}
}

// drainGame applies every queued intent for one game, oldest first.
func (w *Worker) drainGame(code string) {
	for {
		select {
		case <-w.shutdownChan:
			return
		default:
		}

		intent, err := w.queue.DequeueAction(code)
		if err != nil {
			if !errors.Is(err, ErrQueueEmpty) {
				w.logger.Error("Failed to dequeue intent",
					zap.String("gameCode", code),
					zap.Error(err))
			}
			return
		}

		if err := w.applier.ApplyAction(intent.Action); err != nil {
			w.handleFailure(code, intent, err)
		}
	}
}

func (w *Worker) handleFailure(code string, intent *Intent, err error) {
	// Rule violations mean the intent was heard and rejected; retrying
	// would just repeat the rejection.
	if isRuleViolation(err) {
		w.logger.Info("Intent rejected by game rules",
			zap.String("gameCode", code),
			zap.String("type", string(intent.Action.Type)),
			zap.String("playerId", intent.Action.PlayerID),
			zap.Error(err))
		return
	}

	if intent.Attempts < w.maxAttempts {
		w.logger.Info("Retrying intent",
			zap.String("gameCode", code),
			zap.String("type", string(intent.Action.Type)),
			zap.Int("attempt", intent.Attempts+1),
			zap.Int("maxAttempts", w.maxAttempts))
		if rerr := w.queue.RetryAction(code, intent); rerr != nil {
			w.logger.Error("Failed to requeue intent", zap.String("gameCode", code), zap.Error(rerr))
		}
		return
	}

	w.logger.Warn("Intent exceeded max attempts",
		zap.String("gameCode", code),
		zap.String("type", string(intent.Action.Type)),
		zap.Int("attempts", intent.Attempts))
	if derr := w.queue.MoveToDeadLetter(code, intent); derr != nil {
		w.logger.Error("Failed to move intent to dead letter queue", zap.String("gameCode", code), zap.Error(derr))
	}
}

func isRuleViolation(err error) bool {
	return errors.Is(err, models.ErrNotYourTurn) ||
		errors.Is(err, models.ErrWrongPhase) ||
		errors.Is(err, models.ErrInsufficientFunds) ||
		errors.Is(err, models.ErrNotOwner) ||
		errors.Is(err, models.ErrHouseAlreadyBuilt)
}

// runPeriodicCleanup drops queues whose game no longer exists.
func (w *Worker) runPeriodicCleanup() {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-w.shutdownChan:
			w.logger.Info("Queue cleanup task shutting down")
			return
		case <-ticker.C:
			w.CleanupStaleQueues()
		}
	}
}

// CleanupStaleQueues moves intents of vanished games to dead letters
// and deletes the empty queues.
func (w *Worker) CleanupStaleQueues() {
	keys, err := w.queue.client.Keys(w.ctx, "game:*:actions").Result()
	if err != nil {
		w.logger.Error("Failed to list queue keys for cleanup", zap.Error(err))
		return
	}

	stale := 0
	for _, key := range keys {
		code := gameCodeFromKey(key)
		if code == "" || w.applier.GameExists(code) {
			continue
		}
		stale++

		for {
			intent, err := w.queue.DequeueAction(code)
			if err != nil {
				break
			}
			if derr := w.queue.MoveToDeadLetter(code, intent); derr != nil {
				w.logger.Error("Failed to park stale intent", zap.String("gameCode", code), zap.Error(derr))
			}
		}
		if err := w.queue.ClearQueue(code); err != nil {
			w.logger.Error("Failed to clear stale queue", zap.String("gameCode", code), zap.Error(err))
		}
	}

	if stale > 0 {
		w.logger.Info("Stale queue cleanup complete",
			zap.Int("totalQueues", len(keys)),
			zap.Int("staleQueues", stale))
	}
}

// gameCodeFromKey extracts the code from "game:<code>:actions".
func gameCodeFromKey(key string) string {
	const prefix, suffix = "game:", ":actions"
	if len(key) <= len(prefix)+len(suffix) {
		return ""
	}
	return key[len(prefix) : len(key)-len(suffix)]
}
