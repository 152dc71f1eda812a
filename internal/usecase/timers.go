package usecase

import (
	"sync"
	"time"
)

// timerArena owns every named deferred callback the controller arms.
// Scheduling a name cancels whatever was armed under it first, so a
// callback can never fire for a state the machine has already left.
type timerArena struct {
	mu     sync.Mutex
	timers map[string]*time.Timer
}

func newTimerArena() *timerArena {
	return &timerArena{timers: map[string]*time.Timer{}}
}

func (a *timerArena) Schedule(name string, after time.Duration, fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.timers[name]; ok {
		existing.Stop()
	}
	a.timers[name] = time.AfterFunc(after, func() {
		a.mu.Lock()
		delete(a.timers, name)
		a.mu.Unlock()
		fn()
	})
}

func (a *timerArena) Cancel(name string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.timers[name]; ok {
		existing.Stop()
		delete(a.timers, name)
	}
}

func (a *timerArena) CancelAll() {
	a.mu.Lock()
	defer a.mu.Unlock()

	for name, timer := range a.timers {
		timer.Stop()
		delete(a.timers, name)
	}
}
