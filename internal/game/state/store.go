// Package state synchronizes game snapshots between the authoritative
// host and everyone else. The host is the only writer; other clients
// read snapshots and submit intents. Conflict handling is last-write-
// wins under host authority, nothing fancier.
package state

import (
	"context"

	"github.com/boulevardgame/backend/internal/game/models"
)

// Store is a shared snapshot store. Implementations must deliver
// watched snapshots in publish order per game; cross-game ordering is
// unspecified.
type Store interface {
	// SaveSnapshot overwrites the game document and notifies watchers.
	SaveSnapshot(ctx context.Context, code string, game *models.Game) error
	// LoadSnapshot returns the last saved document. A reconnecting
	// client always does a full reload; there is no incremental replay.
	LoadSnapshot(ctx context.Context, code string) (*models.Game, error)
	// Watch streams snapshots until ctx is done. The channel closes
	// when the subscription ends.
	Watch(ctx context.Context, code string) (<-chan *models.Game, error)
	// Remove deletes the game document.
	Remove(ctx context.Context, code string) error
}

// ActionQueue is the intent path for non-host clients.
type ActionQueue interface {
	EnqueueAction(action models.GameAction) error
}
