package engine

import (
	"math/rand"

	"github.com/boulevardgame/backend/internal/game/models"
)

// JailChoice is a bot's way out of jail this turn.
type JailChoice string

const (
	JailChoiceCard JailChoice = "CARD"
	JailChoicePay  JailChoice = "PAY"
	JailChoiceWait JailChoice = "WAIT"
)

// BotPolicy makes gameplay decisions for bot seats. It is pure
// decision logic; applying the decision goes through the same engine
// operations a human would use.
type BotPolicy struct {
	rng *rand.Rand
}

// NewBotPolicy returns a policy backed by rng.
func NewBotPolicy(rng *rand.Rand) *BotPolicy {
	return &BotPolicy{rng: rng}
}

// ShouldBuy decides a purchase by current balance: cautious when poor,
// aggressive when rich. Rates: <800 → 30%, <1200 → 60%, else 85%.
func (b *BotPolicy) ShouldBuy(balance int) bool {
	var rate float64
	switch {
	case balance < 800:
		rate = 0.30
	case balance < 1200:
		rate = 0.60
	default:
		rate = 0.85
	}
	return b.rng.Float64() < rate
}

// PickJailChoice: a held get-out-of-jail card is always played; else
// pay the fee 70% of the time when affordable; else sit it out.
func (b *BotPolicy) PickJailChoice(p *models.Player, jailFee int) JailChoice {
	if p.JailFreeCards > 0 {
		return JailChoiceCard
	}
	if p.Balance >= jailFee && b.rng.Float64() < 0.70 {
		return JailChoicePay
	}
	return JailChoiceWait
}

// ShouldBuild decides whether to put a house on the cell the bot
// stands on. Hard bots build more.
func (b *BotPolicy) ShouldBuild(level models.BotLevel) bool {
	rate := 0.40
	if level == models.BotLevelHard {
		rate = 0.60
	}
	return b.rng.Float64() < rate
}
