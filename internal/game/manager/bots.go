package manager

import (
	"time"

	"github.com/boulevardgame/backend/internal/game/board"
	"github.com/boulevardgame/backend/internal/game/engine"
	"github.com/boulevardgame/backend/internal/game/models"
)

// botNames are assigned in order as bots join a lobby.
var botNames = []string{"Colette", "Hugo", "Margot", "Anatole", "Suzanne"}

// botLines is the canned table talk, keyed by the event that triggers
// it. Only the bot the event concerns ever speaks, and only sometimes.
var botLines = map[engine.EventType][]string{
	engine.EventWentToJail: {
		"Oh non, en prison...",
		"On se retrouve dans quelques tours.",
	},
	engine.EventFreeParkingBonus: {
		"Le parc gratuit, ça paie !",
		"Merci pour la cagnotte.",
	},
	engine.EventPropertyBought: {
		"Excellente affaire.",
		"Celle-là est pour moi.",
	},
	engine.EventMoneyAlert: {
		"Les caisses se vident...",
		"Il va falloir vendre quelque chose.",
	},
	engine.EventHouseBuilt: {
		"Une petite maison, et le loyer double.",
	},
}

// scheduleBotTurnLocked arms the bot driver when the seat on turn is a
// bot. Call with sess.mu held; the scheduled callback takes the lock
// itself after the think delay.
func (gm *GameManager) scheduleBotTurnLocked(code string, sess *session) {
	game := sess.game
	if game.Status != models.GameStatusActive {
		return
	}
	cp := game.CurrentPlayer()
	if cp == nil || !cp.IsBot || !cp.Active {
		return
	}
	botID := cp.ID
	delay := gm.cfg.Sync.BotThinkDelay
	if delay <= 0 {
		delay = time.Second
	}
	gm.sched.After(delay, func() {
		gm.runBotTurn(code, botID)
	})
}

// runBotTurn plays one full bot turn through the same engine
// operations a human would use: jail decision, roll, buy decision,
// optional build, end turn. A jail wait passes the turn immediately.
func (gm *GameManager) runBotTurn(code, botID string) {
	sess := gm.session(code)
	if sess == nil {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	game := sess.game
	if game.Status != models.GameStatusActive || sess.eng == nil {
		return
	}
	cp := game.CurrentPlayer()
	if cp == nil || cp.ID != botID || !cp.IsBot || !cp.Active {
		return
	}
	eng := sess.eng

	if eng.Phase() == engine.PhaseAwaitingJail {
		switch sess.policy.PickJailChoice(cp, gm.rules.JailFee) {
		case engine.JailChoiceCard:
			if err := eng.UseJailCard(botID); err != nil {
				gm.logger.Warnw("bot jail card failed", "code", code, "bot", botID, "error", err)
				return
			}
		case engine.JailChoicePay:
			if err := eng.PayJailFee(botID); err != nil {
				gm.logger.Warnw("bot jail fee failed", "code", code, "bot", botID, "error", err)
				return
			}
		default:
			if err := eng.WaitInJail(botID); err != nil {
				gm.logger.Warnw("bot jail wait failed", "code", code, "bot", botID, "error", err)
			}
			gm.persistLocked(sess)
			return
		}
	}

	if eng.Phase() == engine.PhaseAwaitingRoll {
		if _, err := eng.Roll(botID); err != nil {
			gm.logger.Warnw("bot roll failed", "code", code, "bot", botID, "error", err)
			return
		}
	}

	if eng.Phase() == engine.PhaseAwaitingBuy {
		pos := eng.PendingBuyPosition()
		price := board.CellAt(pos).Price
		var err error
		if cp.Balance >= price && sess.policy.ShouldBuy(cp.Balance) {
			err = eng.BuyProperty(botID)
		} else {
			err = eng.PassProperty(botID)
		}
		if err != nil {
			gm.logger.Warnw("bot buy decision failed", "code", code, "bot", botID, "error", err)
			return
		}
	}

	if eng.Phase() == engine.PhaseAwaitingEnd {
		if st, ok := game.Properties[cp.Position]; ok &&
			st.OwnerID == botID && !st.HasHouse &&
			cp.Balance >= gm.rules.HouseCost &&
			sess.policy.ShouldBuild(cp.BotLevel) {
			if err := eng.BuildHouse(botID, cp.Position); err != nil {
				gm.logger.Warnw("bot build failed", "code", code, "bot", botID, "error", err)
			}
		}
		if err := eng.EndTurn(botID); err != nil {
			gm.logger.Warnw("bot end turn failed", "code", code, "bot", botID, "error", err)
			return
		}
	}

	gm.persistLocked(sess)
}

// botChatterLocked relays a canned chat line for events that concern a
// bot seat. Called from the engine sink, so sess.mu is already held by
// the caller applying the action.
func (gm *GameManager) botChatterLocked(code string, sess *session, ev engine.Event) {
	lines, ok := botLines[ev.Type]
	if !ok || ev.PlayerID == "" || sess.rng == nil {
		return
	}
	p := sess.game.PlayerByID(ev.PlayerID)
	if p == nil || !p.IsBot {
		return
	}
	// Bots stay mostly quiet.
	if sess.rng.Float64() >= 0.4 {
		return
	}
	gm.broadcast(code, map[string]interface{}{
		"type":     "chat_message",
		"gameCode": code,
		"playerId": p.ID,
		"name":     p.Name,
		"message":  lines[sess.rng.Intn(len(lines))],
	})
}
