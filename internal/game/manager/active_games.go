package manager

import (
	"github.com/boulevardgame/backend/internal/game/models"
)

// ActiveGameCodes returns the codes of games currently in play. The
// queue worker polls this to know which intent queues to drain.
//
// Sessions are locked only after the registry lock is released;
// closing a game takes the locks in the opposite order.
func (gm *GameManager) ActiveGameCodes() []string {
	gm.mu.RLock()
	live := make(map[string]*session, len(gm.sessions))
	for code, sess := range gm.sessions {
		live[code] = sess
	}
	gm.mu.RUnlock()

	codes := make([]string, 0, len(live))
	for code, sess := range live {
		sess.mu.Lock()
		if sess.game.Status == models.GameStatusActive {
			codes = append(codes, code)
		}
		sess.mu.Unlock()
	}
	return codes
}

// GameExists reports whether a live session is serving the code.
func (gm *GameManager) GameExists(code string) bool {
	gm.mu.RLock()
	defer gm.mu.RUnlock()
	_, ok := gm.sessions[code]
	return ok
}
