package manager

import (
	"time"

	"github.com/boulevardgame/backend/internal/game/models"
)

// PlayerDisconnected records a dropped connection. The seat is not
// freed immediately: the player gets a grace period to reconnect, and
// only when it lapses does the seat go inactive.
func (gm *GameManager) PlayerDisconnected(code, playerID string) {
	sess := gm.session(code)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	p := sess.game.PlayerByID(playerID)
	if p == nil || p.IsBot {
		return
	}
	now := time.Now()
	p.DisconnectedAt = &now
	gm.logger.Infow("player disconnected", "code", code, "player", playerID)

	grace := time.Duration(gm.cfg.Lobby.DisconnectionTimeout) * time.Second
	gm.sched.After(grace, func() {
		gm.expireDisconnect(code, playerID, now)
	})
}

// PlayerReconnected clears a pending disconnect.
func (gm *GameManager) PlayerReconnected(code, playerID string) {
	sess := gm.session(code)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	p := sess.game.PlayerByID(playerID)
	if p == nil {
		return
	}
	p.DisconnectedAt = nil
	if !p.Active {
		// The seat went inactive while they were away; reseat them.
		p.Active = true
		if sess.game.HostID == "" {
			gm.promoteHostLocked(sess.game)
		}
		gm.persistLocked(sess)
	}
	gm.logger.Infow("player reconnected", "code", code, "player", playerID)
}

// expireDisconnect fires when the grace period lapses. The marker time
// is compared so a reconnect followed by a second disconnect does not
// get cut short by the first timer.
func (gm *GameManager) expireDisconnect(code, playerID string, marker time.Time) {
	sess := gm.session(code)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	p := sess.game.PlayerByID(playerID)
	if p == nil || p.DisconnectedAt == nil || !p.DisconnectedAt.Equal(marker) {
		return
	}
	gm.logger.Infow("disconnect grace period lapsed", "code", code, "player", playerID)
	if sess.game.Status == models.GameStatusLobby {
		// Lobby seats are simply vacated.
		for i := range sess.game.Players {
			if sess.game.Players[i].ID == playerID {
				sess.game.Players = append(sess.game.Players[:i], sess.game.Players[i+1:]...)
				break
			}
		}
		for j := range sess.game.Players {
			sess.game.Players[j].JoinOrder = j
		}
		if humanCount(sess.game) == 0 {
			gm.closeLocked(code, sess, models.GameStatusAbandoned)
			return
		}
		if sess.game.HostID == playerID {
			gm.promoteHostLocked(sess.game)
		}
		gm.saveLocked(sess)
		gm.broadcastLobbyState(code, sess.game)
		return
	}
	gm.deactivateSeatLocked(code, sess, p)
}

// runCleanupTask periodically sweeps idle games.
func (gm *GameManager) runCleanupTask() {
	ticker := time.NewTicker(10 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-gm.ctx.Done():
			return
		case <-ticker.C:
			if removed := gm.CleanupStaleGames(); len(removed) > 0 {
				gm.logger.Infow("cleaned up stale games", "count", len(removed))
			}
		}
	}
}

// CleanupStaleGames closes games with no activity past the idle expiry
// and sweeps stored games no session is serving, so a crashed host
// does not leave open documents behind. Returns the closed codes.
func (gm *GameManager) CleanupStaleGames() []string {
	cutoff := time.Now().Add(-time.Duration(gm.cfg.Lobby.IdleGameExpiry) * time.Hour)

	gm.mu.RLock()
	stale := make(map[string]*session)
	for code, sess := range gm.sessions {
		stale[code] = sess
	}
	gm.mu.RUnlock()

	var removed []string
	for code, sess := range stale {
		sess.mu.Lock()
		if sess.game.LastActivity.Before(cutoff) {
			status := models.GameStatusCompleted
			if sess.game.Status == models.GameStatusLobby {
				status = models.GameStatusAbandoned
			}
			gm.closeLocked(code, sess, status)
			removed = append(removed, code)
		}
		sess.mu.Unlock()
	}

	if gm.store != nil {
		games, err := gm.store.FindStaleGames(gm.ctx, cutoff)
		if err != nil {
			gm.logger.Errorw("failed to query stale games", "error", err)
			return removed
		}
		for i := range games {
			if gm.session(games[i].Code) != nil {
				continue
			}
			if err := gm.store.UpdateStatus(gm.ctx, &games[i], models.GameStatusAbandoned); err != nil {
				gm.logger.Errorw("failed to close stale game", "code", games[i].Code, "error", err)
			}
		}
	}

	return removed
}
