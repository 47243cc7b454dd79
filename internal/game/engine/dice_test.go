package engine

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHumanRollFacesInRange(t *testing.T) {
	r := NewRoller(rand.New(rand.NewSource(1)))
	for i := 0; i < 1000; i++ {
		d := r.RollHuman()
		assert.True(t, d.Valid(), "roll %d: %+v", i, d)
	}
}

func TestHumanRollTotalsPeakAtSeven(t *testing.T) {
	r := NewRoller(rand.New(rand.NewSource(42)))
	counts := map[int]int{}
	const n = 20000
	for i := 0; i < n; i++ {
		counts[r.RollHuman().Total()]++
	}
	// Two fair dice: P(7) = 6/36, P(2) = P(12) = 1/36.
	assert.Greater(t, counts[7], 2*counts[2])
	assert.Greater(t, counts[7], 2*counts[12])
}

func TestBotRollFacesAlwaysValid(t *testing.T) {
	r := NewRoller(rand.New(rand.NewSource(7)))
	for i := 0; i < 5000; i++ {
		d := r.RollBot()
		assert.True(t, d.Valid(), "roll %d: %+v", i, d)
		assert.GreaterOrEqual(t, d.Total(), 2)
		assert.LessOrEqual(t, d.Total(), 12)
	}
}

func TestBotRollTotalsAreFlat(t *testing.T) {
	r := NewRoller(rand.New(rand.NewSource(99)))
	counts := map[int]int{}
	const n = 22000 // expect ~2000 per total
	for i := 0; i < n; i++ {
		counts[r.RollBot().Total()]++
	}
	for total := 2; total <= 12; total++ {
		assert.Greater(t, counts[total], 1700, "total %d drawn too rarely", total)
		assert.Less(t, counts[total], 2300, "total %d drawn too often", total)
	}
}
