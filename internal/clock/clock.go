// Package clock tracks elapsed game time within a single quarter.
//
// A Clock is a plain state machine advanced by Tick; a Driver feeds it
// wall-clock deltas on a fixed interval while the quarter is running.
package clock

import (
	"fmt"
	"sync"
	"time"
)

type State uint8

const (
	Stopped State = iota
	Running
	Paused
	Finished
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Running:
		return "Running"
	case Paused:
		return "Paused"
	case Finished:
		return "Finished"
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for st := Stopped; st <= Finished; st++ {
		if st.String() == string(b) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown clock state %q", b)
}

type Snapshot struct {
	State    State         `json:"state"`
	Elapsed  time.Duration `json:"-"`
	Duration time.Duration `json:"-"`
}

func (s Snapshot) ElapsedMillis() int64 {
	return s.Elapsed.Milliseconds()
}

func (s Snapshot) Remaining() time.Duration {
	return s.Duration - s.Elapsed
}

// Observer receives the state before the change and the snapshot after it.
// Ticks that do not change state are delivered with prev == snap.State.
type Observer func(prev State, snap Snapshot)

type Clock struct {
	mu        sync.Mutex
	duration  time.Duration
	elapsed   time.Duration
	state     State
	observers []Observer
}

func New(duration time.Duration) *Clock {
	return &Clock{duration: duration}
}

func (c *Clock) Observe(fn Observer) {
	c.mu.Lock()
	c.observers = append(c.observers, fn)
	c.mu.Unlock()
}

// Start resumes from the current elapsed time. It is a no-op while running
// and once the quarter has finished.
func (c *Clock) Start() bool {
	return c.transition(func() bool {
		if c.state == Running || c.state == Finished {
			return false
		}
		c.state = Running
		return true
	})
}

// Pause freezes elapsed time. Only a running clock can be paused.
func (c *Clock) Pause() bool {
	return c.transition(func() bool {
		if c.state != Running {
			return false
		}
		c.state = Paused
		return true
	})
}

// Stop discards progress: elapsed goes back to zero from any state.
func (c *Clock) Stop() bool {
	return c.transition(func() bool {
		c.elapsed = 0
		c.state = Stopped
		return true
	})
}

// Tick advances a running clock by delta and returns the new elapsed time.
// Reaching the duration clamps elapsed and finishes the quarter.
func (c *Clock) Tick(delta time.Duration) time.Duration {
	c.mu.Lock()
	if c.state != Running || delta <= 0 {
		elapsed := c.elapsed
		c.mu.Unlock()
		return elapsed
	}

	prev := c.state
	c.elapsed += delta
	if c.elapsed >= c.duration {
		c.elapsed = c.duration
		c.state = Finished
	}
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()

	notify(observers, prev, snap)
	return snap.Elapsed
}

func (c *Clock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.elapsed
}

func (c *Clock) IsRunning() bool {
	return c.State() == Running
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Clock) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Clock) snapshotLocked() Snapshot {
	return Snapshot{State: c.state, Elapsed: c.elapsed, Duration: c.duration}
}

func (c *Clock) transition(apply func() bool) bool {
	c.mu.Lock()
	prev := c.state
	if !apply() {
		c.mu.Unlock()
		return false
	}
	snap := c.snapshotLocked()
	observers := c.observers
	c.mu.Unlock()

	notify(observers, prev, snap)
	return true
}

func notify(observers []Observer, prev State, snap Snapshot) {
	for _, fn := range observers {
		fn(prev, snap)
	}
}

// Format renders elapsed game time as mm:ss.
func Format(elapsed time.Duration) string {
	secs := int64(elapsed / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
