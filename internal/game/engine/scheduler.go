package engine

import (
	"sort"
	"sync"
	"time"
)

// CancelFunc cancels a scheduled task. Safe to call more than once.
type CancelFunc func()

// Scheduler is the single source of delayed execution for gameplay:
// bot pacing, turn auto-advance and periodic snapshots all go through
// it. Production wires TimerScheduler; tests wire ManualScheduler and
// advance logical time themselves, so nothing in the game sleeps on
// the wall clock.
type Scheduler interface {
	After(d time.Duration, fn func()) CancelFunc
}

// TimerScheduler runs tasks on real timers.
type TimerScheduler struct{}

func (TimerScheduler) After(d time.Duration, fn func()) CancelFunc {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// ManualScheduler queues tasks against a logical clock. Nothing runs
// until Advance moves the clock past a task's due time.
type ManualScheduler struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	due      time.Duration
	seq      int
	fn       func()
	canceled bool
}

// NewManualScheduler returns a scheduler at logical time zero.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (s *ManualScheduler) After(d time.Duration, fn func()) CancelFunc {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := &manualTask{due: s.now + d, seq: s.seq, fn: fn}
	s.seq++
	s.tasks = append(s.tasks, t)
	return func() {
		s.mu.Lock()
		t.canceled = true
		s.mu.Unlock()
	}
}

// Advance moves logical time forward and runs every due task in due
// order (FIFO among equal due times). Tasks scheduled while running
// are honored within the same Advance if they fall inside the window.
func (s *ManualScheduler) Advance(d time.Duration) {
	s.mu.Lock()
	target := s.now + d
	for {
		var next *manualTask
		for _, t := range s.tasks {
			if t.canceled || t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			break
		}
		s.now = next.due
		next.canceled = true
		fn := next.fn
		s.mu.Unlock()
		fn()
		s.mu.Lock()
	}
	s.now = target
	s.compact()
	s.mu.Unlock()
}

// Pending returns the number of live scheduled tasks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, t := range s.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}

func (s *ManualScheduler) compact() {
	live := s.tasks[:0]
	for _, t := range s.tasks {
		if !t.canceled {
			live = append(live, t)
		}
	}
	sort.SliceStable(live, func(i, j int) bool { return live[i].due < live[j].due })
	s.tasks = live
}
