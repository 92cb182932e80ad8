package session

import "time"

// autoStopTimer is the single re-armable silence deadline. Arming replaces
// any outstanding deadline; only the callback of the latest arm may act.
// All methods are called with the controller lock held.
type autoStopTimer struct {
	clock Clock
	after time.Duration
	fire  func(armID uint64)

	armID    uint64
	timer    Timer
	deadline time.Time
}

func newAutoStopTimer(clock Clock, after time.Duration, fire func(armID uint64)) *autoStopTimer {
	return &autoStopTimer{clock: clock, after: after, fire: fire}
}

// Arm (re)starts the deadline and returns its arm id
func (t *autoStopTimer) Arm() uint64 {
	t.stop()
	t.armID++
	id := t.armID
	t.deadline = t.clock.Now().Add(t.after)
	t.timer = t.clock.AfterFunc(t.after, func() { t.fire(id) })
	return id
}

// Cancel drops the outstanding deadline
func (t *autoStopTimer) Cancel() {
	t.stop()
	t.armID++
}

// Current reports whether armID belongs to the live deadline
func (t *autoStopTimer) Current(armID uint64) bool {
	return t.timer != nil && armID == t.armID
}

// Armed reports whether a deadline is outstanding
func (t *autoStopTimer) Armed() bool {
	return t.timer != nil
}

// Deadline returns the outstanding deadline, zero if none
func (t *autoStopTimer) Deadline() time.Time {
	if t.timer == nil {
		return time.Time{}
	}
	return t.deadline
}

// Consume marks the live deadline as fired
func (t *autoStopTimer) Consume() {
	t.timer = nil
	t.deadline = time.Time{}
}

func (t *autoStopTimer) stop() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
		t.deadline = time.Time{}
	}
}
