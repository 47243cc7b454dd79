package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestManualSchedulerRunsDueTasksInOrder(t *testing.T) {
	s := NewManualScheduler()
	var order []string
	s.After(2*time.Second, func() { order = append(order, "b") })
	s.After(1*time.Second, func() { order = append(order, "a") })
	s.After(5*time.Second, func() { order = append(order, "c") })

	s.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, order)
	assert.Equal(t, 1, s.Pending())

	s.Advance(3 * time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, s.Pending())
}

func TestManualSchedulerCancel(t *testing.T) {
	s := NewManualScheduler()
	ran := false
	cancel := s.After(time.Second, func() { ran = true })
	cancel()
	s.Advance(2 * time.Second)
	assert.False(t, ran)
}

func TestManualSchedulerChainedTasks(t *testing.T) {
	// A task scheduling a follow-up inside the advanced window runs in
	// the same Advance. This is how bot turns cascade in tests.
	s := NewManualScheduler()
	var hits int
	var tick func()
	tick = func() {
		hits++
		if hits < 3 {
			s.After(time.Second, tick)
		}
	}
	s.After(time.Second, tick)
	s.Advance(10 * time.Second)
	assert.Equal(t, 3, hits)
}
