package server

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// tickRecorder collects callback invocations from a countdown run.
type tickRecorder struct {
	mu        sync.Mutex
	ticks     []int
	completes int
}

func (r *tickRecorder) onTick(remaining int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ticks = append(r.ticks, remaining)
}

func (r *tickRecorder) onComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completes++
}

func (r *tickRecorder) snapshot() ([]int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int(nil), r.ticks...), r.completes
}

func newTestScheduler() *CountdownScheduler {
	cs := NewCountdownScheduler()
	cs.interval = 5 * time.Millisecond
	return cs
}

// Test 1: A full run ticks seconds-1 down to 0, then completes exactly once
func TestCountdown_FullRun(t *testing.T) {
	assert := assert.New(t)
	cs := newTestScheduler()
	rec := &tickRecorder{}

	err := cs.Start("ROOM01", 5, rec.onTick, rec.onComplete)
	assert.NoError(err)

	assert.Eventually(func() bool {
		_, completes := rec.snapshot()
		return completes == 1
	}, time.Second, time.Millisecond)

	ticks, completes := rec.snapshot()
	assert.Equal([]int{4, 3, 2, 1, 0}, ticks)
	assert.Equal(1, completes)

	// Handle is released once the run ends
	assert.Eventually(func() bool { return !cs.Active("ROOM01") }, time.Second, time.Millisecond)
}

// Test 2: Cancel stops the timer; no complete and no further ticks
func TestCountdown_Cancel(t *testing.T) {
	assert := assert.New(t)
	cs := newTestScheduler()
	rec := &tickRecorder{}

	err := cs.Start("ROOM01", 1000, rec.onTick, rec.onComplete)
	assert.NoError(err)

	// Let a few ticks land, then cancel
	assert.Eventually(func() bool {
		ticks, _ := rec.snapshot()
		return len(ticks) >= 2
	}, time.Second, time.Millisecond)

	cs.Cancel("ROOM01")
	assert.False(cs.Active("ROOM01"))

	ticksAtCancel, _ := rec.snapshot()
	time.Sleep(20 * cs.interval)

	ticksAfter, completes := rec.snapshot()
	assert.Equal(0, completes)
	// At most one tick was already in flight when cancel landed
	assert.LessOrEqual(len(ticksAfter), len(ticksAtCancel)+1)
}

// Test 3: Only one countdown per room at a time
func TestCountdown_DuplicateStartRejected(t *testing.T) {
	assert := assert.New(t)
	cs := newTestScheduler()
	rec := &tickRecorder{}

	assert.NoError(cs.Start("ROOM01", 1000, rec.onTick, rec.onComplete))
	assert.ErrorIs(cs.Start("ROOM01", 1000, rec.onTick, rec.onComplete), ErrCountdownActive)

	// A different room is unaffected
	assert.NoError(cs.Start("ROOM02", 1000, rec.onTick, rec.onComplete))

	cs.CancelAll()
}

// Test 4: Cancelling a room without a countdown is a no-op
func TestCountdown_CancelIdle(t *testing.T) {
	cs := newTestScheduler()
	cs.Cancel("NOROOM")
}

// Test 5: The room becomes startable again after its countdown finishes
func TestCountdown_RestartAfterRun(t *testing.T) {
	assert := assert.New(t)
	cs := newTestScheduler()
	rec := &tickRecorder{}

	assert.NoError(cs.Start("ROOM01", 1, rec.onTick, rec.onComplete))
	assert.Eventually(func() bool {
		_, completes := rec.snapshot()
		return completes == 1
	}, time.Second, time.Millisecond)

	assert.Eventually(func() bool {
		return cs.Start("ROOM01", 1, rec.onTick, rec.onComplete) == nil
	}, time.Second, time.Millisecond)

	cs.CancelAll()
}

// Test 6: CancelAll silences every running countdown
func TestCountdown_CancelAll(t *testing.T) {
	assert := assert.New(t)
	cs := newTestScheduler()
	rec := &tickRecorder{}

	assert.NoError(cs.Start("ROOM01", 1000, rec.onTick, rec.onComplete))
	assert.NoError(cs.Start("ROOM02", 1000, rec.onTick, rec.onComplete))

	cs.CancelAll()

	assert.False(cs.Active("ROOM01"))
	assert.False(cs.Active("ROOM02"))

	time.Sleep(20 * cs.interval)
	_, completes := rec.snapshot()
	assert.Equal(0, completes)
}
