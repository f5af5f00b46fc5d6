package clock

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestDriverAdvancesRunningClock(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(3 * time.Second)
	d := NewDriver(c, fake, time.Second, zerolog.Nop())

	c.Start()
	d.Start()
	defer d.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fake.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}

	for i := 1; i <= 3; i++ {
		fake.Advance(time.Second)
		want := time.Duration(i) * time.Second
		waitFor(t, "tick", func() bool { return c.Elapsed() == want })
	}

	if c.State() != Finished {
		t.Fatalf("State() = %v, want Finished", c.State())
	}
	waitFor(t, "driver exit", func() bool { return !d.Active() })
}

func TestDriverStopHaltsTicks(t *testing.T) {
	fake := clockwork.NewFakeClock()
	c := New(time.Minute)
	d := NewDriver(c, fake, time.Second, zerolog.Nop())

	c.Start()
	d.Start()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := fake.BlockUntilContext(ctx, 1); err != nil {
		t.Fatalf("ticker never registered: %v", err)
	}

	fake.Advance(time.Second)
	waitFor(t, "first tick", func() bool { return c.Elapsed() == time.Second })

	d.Stop()
	if d.Active() {
		t.Fatalf("driver still active after Stop")
	}
	fake.Advance(5 * time.Second)
	time.Sleep(10 * time.Millisecond)
	if got := c.Elapsed(); got != time.Second {
		t.Fatalf("Elapsed() after Stop = %v, want 1s", got)
	}

	// Stop is idempotent.
	d.Stop()
}
