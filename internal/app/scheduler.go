package app

import (
	"sync"
	"time"
)

// Timer is a scheduled callback that can be cancelled.
type Timer interface {
	Stop()
}

// Scheduler runs callbacks after a delay or periodically. Sessions own one
// and stop every timer they started when they close.
type Scheduler interface {
	AfterFunc(d time.Duration, fn func()) Timer
	Every(d time.Duration, fn func()) Timer
}

// RealScheduler is backed by the time package.
type RealScheduler struct{}

func (RealScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return afterTimer{time.AfterFunc(d, fn)}
}

type afterTimer struct {
	t *time.Timer
}

func (a afterTimer) Stop() { a.t.Stop() }

func (RealScheduler) Every(d time.Duration, fn func()) Timer {
	t := &ticker{stop: make(chan struct{})}
	tk := time.NewTicker(d)
	go func() {
		defer tk.Stop()
		for {
			select {
			case <-tk.C:
				fn()
			case <-t.stop:
				return
			}
		}
	}()
	return t
}

type ticker struct {
	once sync.Once
	stop chan struct{}
}

func (t *ticker) Stop() {
	t.once.Do(func() { close(t.stop) })
}

// ManualScheduler is a deterministic scheduler driven by Advance. Callbacks
// run on the goroutine calling Advance, in due order.
type ManualScheduler struct {
	mu     sync.Mutex
	now    time.Duration
	seq    int
	timers []*manualTimer
}

type manualTimer struct {
	s       *ManualScheduler
	due     time.Duration
	period  time.Duration
	seq     int
	fn      func()
	stopped bool
}

func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{}
}

func (m *ManualScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return m.add(d, 0, fn)
}

func (m *ManualScheduler) Every(d time.Duration, fn func()) Timer {
	return m.add(d, d, fn)
}

func (m *ManualScheduler) add(d, period time.Duration, fn func()) *manualTimer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTimer{s: m, due: m.now + d, period: period, seq: m.seq, fn: fn}
	m.timers = append(m.timers, t)
	return t
}

func (t *manualTimer) Stop() {
	t.s.mu.Lock()
	t.stopped = true
	t.s.mu.Unlock()
}

// Advance moves the fake clock forward, firing every timer that falls due.
func (m *ManualScheduler) Advance(d time.Duration) {
	m.mu.Lock()
	target := m.now + d
	m.mu.Unlock()

	for {
		m.mu.Lock()
		m.prune()
		var next *manualTimer
		for _, t := range m.timers {
			if t.due > target {
				continue
			}
			if next == nil || t.due < next.due || (t.due == next.due && t.seq < next.seq) {
				next = t
			}
		}
		if next == nil {
			m.now = target
			m.mu.Unlock()
			return
		}
		m.now = next.due
		if next.period > 0 {
			next.due += next.period
		} else {
			next.stopped = true
		}
		fn := next.fn
		m.mu.Unlock()

		fn()
	}
}

// Pending reports how many timers are still armed.
func (m *ManualScheduler) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prune()
	return len(m.timers)
}

func (m *ManualScheduler) prune() {
	live := m.timers[:0]
	for _, t := range m.timers {
		if !t.stopped {
			live = append(live, t)
		}
	}
	m.timers = live
}
