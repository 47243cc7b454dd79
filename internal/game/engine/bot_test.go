package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/boulevardgame/backend/internal/game/models"
)

func buyRate(seed int64, balance, n int) float64 {
	b := NewBotPolicy(rand.New(rand.NewSource(seed)))
	bought := 0
	for i := 0; i < n; i++ {
		if b.ShouldBuy(balance) {
			bought++
		}
	}
	return float64(bought) / float64(n)
}

func TestBotBuyRatesByBalance(t *testing.T) {
	const n = 10000
	cases := []struct {
		balance int
		want    float64
	}{
		{500, 0.30},
		{799, 0.30},
		{800, 0.60},
		{1199, 0.60},
		{1200, 0.85},
		{2500, 0.85},
	}
	for _, tc := range cases {
		got := buyRate(11, tc.balance, n)
		assert.InDelta(t, tc.want, got, 0.03, "balance %d", tc.balance)
	}
}

func TestBotAlwaysPlaysJailCardWhenHeld(t *testing.T) {
	b := NewBotPolicy(rand.New(rand.NewSource(3)))
	p := &models.Player{Balance: 1500, JailFreeCards: 1}
	for i := 0; i < 100; i++ {
		assert.Equal(t, JailChoiceCard, b.PickJailChoice(p, 50))
	}
}

func TestBotNeverPaysJailFeeWhenBroke(t *testing.T) {
	b := NewBotPolicy(rand.New(rand.NewSource(3)))
	p := &models.Player{Balance: 40}
	for i := 0; i < 100; i++ {
		assert.Equal(t, JailChoiceWait, b.PickJailChoice(p, 50))
	}
}

func TestBotPaysJailFeeAboutSeventyPercent(t *testing.T) {
	b := NewBotPolicy(rand.New(rand.NewSource(17)))
	p := &models.Player{Balance: 1500}
	const n = 10000
	paid := 0
	for i := 0; i < n; i++ {
		if b.PickJailChoice(p, 50) == JailChoicePay {
			paid++
		}
	}
	assert.InDelta(t, 0.70, float64(paid)/float64(n), 0.03)
}

func TestBotBuildRateByLevel(t *testing.T) {
	const n = 10000
	b := NewBotPolicy(rand.New(rand.NewSource(23)))
	built := 0
	for i := 0; i < n; i++ {
		if b.ShouldBuild(models.BotLevelEasy) {
			built++
		}
	}
	assert.InDelta(t, 0.40, float64(built)/float64(n), 0.03)

	built = 0
	for i := 0; i < n; i++ {
		if b.ShouldBuild(models.BotLevelHard) {
			built++
		}
	}
	assert.InDelta(t, 0.60, float64(built)/float64(n), 0.03)
}
