// Package schedule provides cancelable delayed tasks. The engine depends on
// the Scheduler interface so tests can drive time by hand.
package schedule

import (
	"sort"
	"sync"
	"time"
)

// Handle cancels a scheduled task. Cancel reports whether the task was
// stopped before it ran; calling it more than once is safe.
type Handle interface {
	Cancel() bool
}

// Scheduler runs task once after d.
type Scheduler interface {
	After(d time.Duration, task func()) Handle
}

// Real schedules on the runtime timer.
type Real struct{}

func (Real) After(d time.Duration, task func()) Handle {
	return realHandle{t: time.AfterFunc(d, task)}
}

type realHandle struct{ t *time.Timer }

func (h realHandle) Cancel() bool { return h.t.Stop() }

// Manual is a Scheduler whose clock only moves when Advance is called.
// Due tasks run synchronously on the caller's goroutine, in due order.
type Manual struct {
	mu    sync.Mutex
	now   time.Duration
	seq   int
	tasks []*manualTask
}

type manualTask struct {
	m        *Manual
	due      time.Duration
	seq      int
	fn       func()
	canceled bool
	done     bool
}

func NewManual() *Manual { return &Manual{} }

func (m *Manual) After(d time.Duration, task func()) Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	t := &manualTask{m: m, due: m.now + d, seq: m.seq, fn: task}
	m.tasks = append(m.tasks, t)
	return t
}

func (t *manualTask) Cancel() bool {
	t.m.mu.Lock()
	defer t.m.mu.Unlock()
	if t.done || t.canceled {
		return false
	}
	t.canceled = true
	return true
}

// Advance moves the clock forward and runs every task that became due.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTask
	var rest []*manualTask
	for _, t := range m.tasks {
		switch {
		case t.canceled:
		case t.due <= m.now:
			t.done = true
			due = append(due, t)
		default:
			rest = append(rest, t)
		}
	}
	m.tasks = rest
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool {
		if due[i].due != due[j].due {
			return due[i].due < due[j].due
		}
		return due[i].seq < due[j].seq
	})
	for _, t := range due {
		t.fn()
	}
}

// Pending counts scheduled tasks that have neither run nor been canceled.
func (m *Manual) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.tasks {
		if !t.canceled {
			n++
		}
	}
	return n
}
