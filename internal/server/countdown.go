package server

import (
	"errors"
	"sync"
	"time"
)

var ErrCountdownActive = errors.New("COUNTDOWN_ACTIVE: Room already has a countdown running")

// CountdownScheduler runs at most one cancellable countdown per room. Each
// countdown ticks once per interval, invoking onTick with the remaining
// seconds (seconds-1 down to 0), then onComplete exactly once. The caller
// announces the initial full value itself before starting.
//
// Cancel stops the timer goroutine, but a tick that already fired may still
// be executing its callback; callbacks therefore re-check room state through
// the RoomManager, which is the serialization point, and no-op when the
// room has left the countdown state.
type CountdownScheduler struct {
	timers   map[string]*countdownTimer
	interval time.Duration
	mu       sync.Mutex
}

type countdownTimer struct {
	stop     chan struct{}
	stopOnce sync.Once
}

func NewCountdownScheduler() *CountdownScheduler {
	return &CountdownScheduler{
		timers:   make(map[string]*countdownTimer),
		interval: time.Second,
	}
}

// Start begins a countdown for the room. Starting a second countdown while
// one is running is a programming error and is rejected, not recovered.
func (cs *CountdownScheduler) Start(roomID string, seconds int, onTick func(remaining int), onComplete func()) error {
	cs.mu.Lock()
	if _, exists := cs.timers[roomID]; exists {
		cs.mu.Unlock()
		return ErrCountdownActive
	}

	timer := &countdownTimer{stop: make(chan struct{})}
	cs.timers[roomID] = timer
	cs.mu.Unlock()

	go cs.run(roomID, seconds, timer, onTick, onComplete)
	return nil
}

func (cs *CountdownScheduler) run(roomID string, seconds int, timer *countdownTimer, onTick func(int), onComplete func()) {
	ticker := time.NewTicker(cs.interval)
	defer ticker.Stop()
	defer cs.remove(roomID, timer)

	for remaining := seconds - 1; remaining >= 0; remaining-- {
		select {
		case <-ticker.C:
			onTick(remaining)
		case <-timer.stop:
			return
		}
	}

	// A cancel that raced the final tick wins over completion.
	select {
	case <-timer.stop:
		return
	default:
	}

	onComplete()
}

// Cancel stops the room's countdown immediately. Safe to call for rooms
// without one; must be called whenever a counting-down room is torn down.
func (cs *CountdownScheduler) Cancel(roomID string) {
	cs.mu.Lock()
	timer, exists := cs.timers[roomID]
	if exists {
		delete(cs.timers, roomID)
	}
	cs.mu.Unlock()

	if exists {
		timer.stopOnce.Do(func() { close(timer.stop) })
	}
}

// CancelAll stops every running countdown, for shutdown.
func (cs *CountdownScheduler) CancelAll() {
	cs.mu.Lock()
	timers := cs.timers
	cs.timers = make(map[string]*countdownTimer)
	cs.mu.Unlock()

	for _, timer := range timers {
		timer.stopOnce.Do(func() { close(timer.stop) })
	}
}

// Active reports whether the room currently has a countdown running.
func (cs *CountdownScheduler) Active(roomID string) bool {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	_, exists := cs.timers[roomID]
	return exists
}

// remove clears the handle after a run ends, unless Cancel already swapped
// it out (or a newer countdown took the slot).
func (cs *CountdownScheduler) remove(roomID string, timer *countdownTimer) {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	if cs.timers[roomID] == timer {
		delete(cs.timers, roomID)
	}
}
