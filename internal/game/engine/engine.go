// Package engine implements the authoritative game rules: dice,
// movement, landing resolution, cards, jail and the turn state
// machine. The engine owns no goroutines and takes no locks; whoever
// embeds it (the game manager, a simulation) serializes calls.
package engine

import (
	"fmt"
	"math/rand"

	"github.com/boulevardgame/backend/internal/game/board"
	"github.com/boulevardgame/backend/internal/game/models"
)

// Rules are the tunable table rules. Zero values are not usable; start
// from DefaultRules.
type Rules struct {
	InitialBalance      int
	PassStartBonus      int
	LandStartBonus      int
	HouseCost           int
	JailFee             int
	ShortJailSentence   int
	LongJailSentence    int
	SmallGameMaxPlayers int
}

// DefaultRules reproduces the classic table.
func DefaultRules() Rules {
	return Rules{
		InitialBalance:      1500,
		PassStartBonus:      200,
		LandStartBonus:      250,
		HouseCost:           50,
		JailFee:             50,
		ShortJailSentence:   2,
		LongJailSentence:    3,
		SmallGameMaxPlayers: 3,
	}
}

// TurnPhase is where the current turn stands.
type TurnPhase string

const (
	// PhaseAwaitingRoll: the current player must roll.
	PhaseAwaitingRoll TurnPhase = "AWAITING_ROLL"
	// PhaseAwaitingJail: the current player is jailed and must pick an
	// exit option before anything else happens.
	PhaseAwaitingJail TurnPhase = "AWAITING_JAIL"
	// PhaseAwaitingBuy: landing resolution stopped on an unowned
	// property and the player must buy or pass.
	PhaseAwaitingBuy TurnPhase = "AWAITING_BUY"
	// PhaseAwaitingEnd: the roll is fully resolved; property management
	// stays open until the turn is ended.
	PhaseAwaitingEnd TurnPhase = "AWAITING_END"
)

// Engine drives one game. All methods mutate the game in place and
// report rule violations as errors from the models package.
type Engine struct {
	game   *models.Game
	rules  Rules
	rng    *rand.Rand
	roller *Roller
	sink   EventSink

	phase      TurnPhase
	pendingBuy int // position awaiting a buy decision, -1 when none

	// hops is the landing work queue. Cards that move the token push
	// the new position here instead of recursing; resolve drains it
	// one hop at a time so every relocation resolves fully before the
	// next starts.
	hops []int
}

// New wraps a started game. The current player's jail state decides
// the opening phase.
func New(game *models.Game, rules Rules, rng *rand.Rand, sink EventSink) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	e := &Engine{
		game:       game,
		rules:      rules,
		rng:        rng,
		roller:     NewRoller(rng),
		sink:       sink,
		pendingBuy: -1,
	}
	e.phase = e.phaseFor(game.CurrentPlayer())
	return e
}

// Game exposes the underlying state for snapshots.
func (e *Engine) Game() *models.Game { return e.game }

// Phase returns the current turn phase.
func (e *Engine) Phase() TurnPhase { return e.phase }

// PendingBuyPosition returns the position awaiting a buy decision, or
// -1 when no offer is open.
func (e *Engine) PendingBuyPosition() int { return e.pendingBuy }

// Roller exposes the engine's dice roller so callers fabricating bot
// rolls share the game RNG.
func (e *Engine) Roller() *Roller { return e.roller }

func (e *Engine) phaseFor(p *models.Player) TurnPhase {
	if p != nil && p.InJail {
		return PhaseAwaitingJail
	}
	return PhaseAwaitingRoll
}

// currentOrErr validates that playerID is the active seat.
func (e *Engine) currentOrErr(playerID string) (*models.Player, error) {
	p := e.game.CurrentPlayer()
	if p == nil || p.ID != playerID {
		return nil, models.ErrNotYourTurn
	}
	return p, nil
}

// Roll rolls for the current player with the distribution matching the
// seat (two d6 for humans, flat total for bots) and applies the result.
func (e *Engine) Roll(playerID string) (Dice, error) {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return Dice{}, err
	}
	var d Dice
	if p.IsBot {
		d = e.roller.RollBot()
	} else {
		d = e.roller.RollHuman()
	}
	return d, e.RollDice(playerID, d)
}

// RollDice applies an already-rolled pair of faces, the form intents
// from remote clients arrive in. The sender must be the current
// player; the faces must be real die faces.
func (e *Engine) RollDice(playerID string, d Dice) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingRoll {
		return fmt.Errorf("cannot roll in phase %s: %w", e.phase, models.ErrWrongPhase)
	}
	if !d.Valid() {
		return fmt.Errorf("invalid dice faces %d/%d", d.D1, d.D2)
	}

	e.publish(EventDiceRolled, p.ID, map[string]interface{}{
		"dice1": d.D1, "dice2": d.D2, "total": d.Total(),
	})
	e.advancePlayer(p, d.Total())
	return nil
}

// advancePlayer moves p forward, pays the pass-Start bonus when the
// move wraps without finishing on Start, then resolves the landing.
func (e *Engine) advancePlayer(p *models.Player, steps int) {
	if steps <= 0 {
		return
	}
	from := p.Position
	raw := from + steps
	passedStart := false
	if raw >= board.Size {
		raw %= board.Size
		// Landing exactly on Start pays the landing bonus instead of
		// the pass bonus, never both.
		passedStart = raw != board.PositionStart
	}
	p.Position = raw
	e.publish(EventPlayerMoved, p.ID, map[string]interface{}{
		"from": from, "to": raw, "steps": steps,
	})
	if passedStart {
		e.credit(p, e.rules.PassStartBonus)
		e.publish(EventPassedStart, p.ID, map[string]interface{}{
			"bonus": e.rules.PassStartBonus,
		})
	}
	e.resolve(raw)
}

// resolve runs the landing work queue starting at pos. Effects that
// relocate the token push onto the queue rather than recursing.
func (e *Engine) resolve(pos int) {
	e.hops = append(e.hops, pos)
	e.drain()
}

// drain pops hops until the queue is empty or a stop (jail) wipes it.
func (e *Engine) drain() {
	for len(e.hops) > 0 {
		next := e.hops[0]
		e.hops = e.hops[1:]
		if stop := e.resolveCell(next); stop {
			e.hops = e.hops[:0]
			return
		}
	}
	if e.phase == PhaseAwaitingRoll || e.phase == PhaseAwaitingJail {
		e.phase = PhaseAwaitingEnd
	}
}

// resolveCell handles one landing. Returning true aborts the rest of
// the queue (jail ends the move outright).
func (e *Engine) resolveCell(pos int) bool {
	p := e.game.CurrentPlayer()
	cell := board.CellAt(pos)

	switch cell.Kind {
	case board.KindStart:
		e.credit(p, e.rules.LandStartBonus)
		e.publish(EventLandedStart, p.ID, map[string]interface{}{
			"bonus": e.rules.LandStartBonus,
		})
	case board.KindJailVisit:
		// Just visiting.
	case board.KindFreeParking:
		bonus := e.rng.Intn(101) + 50
		e.credit(p, bonus)
		e.publish(EventFreeParkingBonus, p.ID, map[string]interface{}{
			"bonus": bonus,
		})
	case board.KindGoToJail:
		e.sendToJail(p)
		return true
	case board.KindTax:
		e.debit(p, cell.Tax)
		e.publish(EventTaxPaid, p.ID, map[string]interface{}{
			"amount": cell.Tax, "position": pos,
		})
	case board.KindCommunityChest:
		return e.drawAndApply(p, CommunityDeck, "community")
	case board.KindChance:
		return e.drawAndApply(p, ChanceDeck, "chance")
	default:
		e.resolveProperty(p, pos)
	}
	return false
}

// drawAndApply draws from deck and applies the card: amount first,
// unconditionally, then the special effect. Moving effects enqueue the
// destination for the trampoline; they never resolve inline.
func (e *Engine) drawAndApply(p *models.Player, deck Deck, deckName string) (stop bool) {
	card := deck.Draw(e.rng)
	e.publish(EventCardDrawn, p.ID, map[string]interface{}{
		"deck": deckName, "text": card.Text, "amount": card.Amount,
	})
	if card.Amount > 0 {
		e.credit(p, card.Amount)
	} else if card.Amount < 0 {
		e.debit(p, -card.Amount)
	}

	switch card.Effect {
	case EffectJailFreeCard:
		p.JailFreeCards++
	case EffectGoToJail:
		e.sendToJail(p)
		return true
	case EffectGoToStart:
		// Flat pass bonus only; the card's arrival on Start never
		// pays the landing bonus.
		p.Position = board.PositionStart
		e.credit(p, e.rules.PassStartBonus)
		e.publish(EventPassedStart, p.ID, map[string]interface{}{
			"bonus": e.rules.PassStartBonus,
		})
	case EffectStepBack3:
		dest := p.Position - 3
		if dest < 0 {
			dest = 0
		}
		p.Position = dest
		e.hops = append(e.hops, dest)
	case EffectAdvanceTo39:
		p.Position = board.PositionLastCell
		e.hops = append(e.hops, board.PositionLastCell)
	case EffectNextStation:
		dest, wraps := board.NextStation(p.Position)
		if wraps {
			e.credit(p, e.rules.PassStartBonus)
			e.publish(EventPassedStart, p.ID, map[string]interface{}{
				"bonus": e.rules.PassStartBonus,
			})
		}
		p.Position = dest
		e.hops = append(e.hops, dest)
	}
	return false
}

// resolveProperty handles arrival on a purchasable cell: rent when
// owned by somebody else, a buy offer when unowned, nothing when the
// player stands on their own ground.
func (e *Engine) resolveProperty(p *models.Player, pos int) {
	cell := board.CellAt(pos)
	state := e.game.Properties[pos]

	switch {
	case state == nil || state.OwnerID == "":
		e.pendingBuy = pos
		e.phase = PhaseAwaitingBuy
		e.publish(EventBuyOffer, p.ID, map[string]interface{}{
			"position": pos, "name": cell.Name, "price": cell.Price,
			"canAfford": p.Balance >= cell.Price,
		})
	case state.OwnerID == p.ID:
		// Own ground: management stays open until the turn ends.
	default:
		rent := RentFor(pos, state.HasHouse)
		owner := e.game.PlayerByID(state.OwnerID)
		e.debit(p, rent)
		if owner != nil {
			e.credit(owner, rent)
		}
		e.publish(EventRentPaid, p.ID, map[string]interface{}{
			"position": pos, "name": cell.Name, "amount": rent,
			"ownerId": state.OwnerID, "hasHouse": state.HasHouse,
		})
	}
}

// sendToJail relocates p to the jail cell with the sentence matching
// the table size: small tables serve the short sentence, bigger ones
// the long one.
func (e *Engine) sendToJail(p *models.Player) {
	sentence := e.rules.LongJailSentence
	if len(e.game.Players) <= e.rules.SmallGameMaxPlayers {
		sentence = e.rules.ShortJailSentence
	}
	p.InJail = true
	p.JailTurns = sentence
	p.Position = board.PositionJail
	e.pendingBuy = -1
	e.phase = PhaseAwaitingEnd
	e.publish(EventWentToJail, p.ID, map[string]interface{}{
		"sentence": sentence,
	})
}

// UseJailCard spends a get-out-of-jail card. The player is freed and
// rolls immediately in the same turn.
func (e *Engine) UseJailCard(playerID string) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingJail {
		return fmt.Errorf("no jail decision pending: %w", models.ErrWrongPhase)
	}
	if p.JailFreeCards <= 0 {
		return fmt.Errorf("no get-out-of-jail card held")
	}
	p.JailFreeCards--
	e.freeFromJail(p, "card")
	e.phase = PhaseAwaitingRoll
	return nil
}

// PayJailFee buys out of jail. The player is freed and rolls
// immediately in the same turn.
func (e *Engine) PayJailFee(playerID string) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingJail {
		return fmt.Errorf("no jail decision pending: %w", models.ErrWrongPhase)
	}
	if p.Balance < e.rules.JailFee {
		return models.ErrInsufficientFunds
	}
	e.debit(p, e.rules.JailFee)
	e.freeFromJail(p, "fee")
	e.phase = PhaseAwaitingRoll
	return nil
}

// WaitInJail sits the sentence out one turn. The remaining sentence
// drops by one (zero frees the player for next time) and the turn
// passes without a roll.
func (e *Engine) WaitInJail(playerID string) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingJail {
		return fmt.Errorf("no jail decision pending: %w", models.ErrWrongPhase)
	}
	p.JailTurns--
	if p.JailTurns <= 0 {
		e.freeFromJail(p, "served")
	} else {
		e.publish(EventJailWaited, p.ID, map[string]interface{}{
			"remaining": p.JailTurns,
		})
	}
	e.advanceTurn()
	return nil
}

func (e *Engine) freeFromJail(p *models.Player, how string) {
	p.InJail = false
	p.JailTurns = 0
	e.publish(EventJailFreed, p.ID, map[string]interface{}{"how": how})
}

// BuyProperty accepts the open buy offer.
func (e *Engine) BuyProperty(playerID string) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingBuy || e.pendingBuy < 0 {
		return fmt.Errorf("no purchase pending: %w", models.ErrWrongPhase)
	}
	pos := e.pendingBuy
	cell := board.CellAt(pos)
	if p.Balance < cell.Price {
		return models.ErrInsufficientFunds
	}
	e.debit(p, cell.Price)
	e.game.Properties[pos] = &models.PropertyState{OwnerID: p.ID}
	e.pendingBuy = -1
	e.phase = PhaseAwaitingEnd
	e.publish(EventPropertyBought, p.ID, map[string]interface{}{
		"position": pos, "name": cell.Name, "price": cell.Price,
	})
	return nil
}

// PassProperty declines the open buy offer. The cell stays unowned.
func (e *Engine) PassProperty(playerID string) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase != PhaseAwaitingBuy || e.pendingBuy < 0 {
		return fmt.Errorf("no purchase pending: %w", models.ErrWrongPhase)
	}
	pos := e.pendingBuy
	e.pendingBuy = -1
	e.phase = PhaseAwaitingEnd
	e.publish(EventPropertyPassed, p.ID, map[string]interface{}{
		"position": pos,
	})
	return nil
}

// BuildHouse puts the single house on a property the current player
// owns and stands on.
func (e *Engine) BuildHouse(playerID string, pos int) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	state := e.game.Properties[pos]
	if state == nil || state.OwnerID != p.ID {
		return models.ErrNotOwner
	}
	if state.HasHouse {
		return models.ErrHouseAlreadyBuilt
	}
	if p.Balance < e.rules.HouseCost {
		return models.ErrInsufficientFunds
	}
	e.debit(p, e.rules.HouseCost)
	state.HasHouse = true
	e.publish(EventHouseBuilt, p.ID, map[string]interface{}{
		"position": pos, "cost": e.rules.HouseCost,
	})
	return nil
}

// SellProperty liquidates a property the current player owns for 75%
// of its price. Ownership and any house are cleared.
func (e *Engine) SellProperty(playerID string, pos int) error {
	p, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	state := e.game.Properties[pos]
	if state == nil || state.OwnerID != p.ID {
		return models.ErrNotOwner
	}
	proceeds := SalePrice(pos)
	e.credit(p, proceeds)
	delete(e.game.Properties, pos)
	e.publish(EventPropertySold, p.ID, map[string]interface{}{
		"position": pos, "proceeds": proceeds,
	})
	return nil
}

// EndTurn closes the current turn. An unanswered buy offer counts as
// a pass.
func (e *Engine) EndTurn(playerID string) error {
	_, err := e.currentOrErr(playerID)
	if err != nil {
		return err
	}
	if e.phase == PhaseAwaitingBuy {
		if err := e.PassProperty(playerID); err != nil {
			return err
		}
	}
	if e.phase != PhaseAwaitingEnd {
		return fmt.Errorf("cannot end turn in phase %s: %w", e.phase, models.ErrWrongPhase)
	}
	e.advanceTurn()
	return nil
}

// SkipTurn closes the current player's turn regardless of phase. Used
// when the seat goes inactive mid-turn; an open buy offer lapses.
func (e *Engine) SkipTurn(playerID string) error {
	if _, err := e.currentOrErr(playerID); err != nil {
		return err
	}
	e.hops = e.hops[:0]
	e.advanceTurn()
	return nil
}

// advanceTurn hands the seat to the next active player, counting a
// full lap as a new turn number.
func (e *Engine) advanceTurn() {
	n := len(e.game.Players)
	if n == 0 {
		return
	}
	prev := e.game.CurrentPlayerIndex
	for i := 1; i <= n; i++ {
		idx := (prev + i) % n
		if e.game.Players[idx].Active {
			e.game.CurrentPlayerIndex = idx
			break
		}
	}
	if e.game.CurrentPlayerIndex <= prev {
		e.game.TurnNumber++
	}
	next := e.game.CurrentPlayer()
	e.pendingBuy = -1
	e.phase = e.phaseFor(next)
	e.publish(EventTurnChanged, next.ID, map[string]interface{}{
		"currentPlayerIndex": e.game.CurrentPlayerIndex,
		"turnNumber":         e.game.TurnNumber,
		"inJail":             next.InJail,
		"isBot":              next.IsBot,
	})
}

// credit adds amount to the balance.
func (e *Engine) credit(p *models.Player, amount int) {
	p.Balance += amount
}

// debit removes amount. Balances may go negative; rent and taxes are
// always collected in full and nobody goes bankrupt.
func (e *Engine) debit(p *models.Player, amount int) {
	p.Balance -= amount
	e.checkMoneyAlert(p)
}

// checkMoneyAlert warns once per threshold the balance fell under.
func (e *Engine) checkMoneyAlert(p *models.Player) {
	for _, threshold := range models.MoneyAlertThresholds {
		if p.Balance < threshold && (p.LastMoneyAlert == 0 || p.LastMoneyAlert > threshold) {
			p.LastMoneyAlert = threshold
			e.publish(EventMoneyAlert, p.ID, map[string]interface{}{
				"threshold": threshold, "balance": p.Balance,
			})
			return
		}
	}
}

func (e *Engine) publish(t EventType, playerID string, data map[string]interface{}) {
	e.sink.Publish(Event{Type: t, PlayerID: playerID, Data: data})
}
