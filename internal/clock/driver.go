package clock

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
)

// Driver ticks a Clock on a fixed interval while it is running.
type Driver struct {
	clock    *Clock
	clk      clockwork.Clock
	interval time.Duration
	logger   zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewDriver(c *Clock, clk clockwork.Clock, interval time.Duration, logger zerolog.Logger) *Driver {
	return &Driver{clock: c, clk: clk, interval: interval, logger: logger}
}

// Start launches the tick loop unless one is already active.
func (d *Driver) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cancel != nil {
		select {
		case <-d.done:
			d.cancel()
		default:
			return
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel
	d.done = make(chan struct{})

	ticker := d.clk.NewTicker(d.interval)
	go d.run(ctx, ticker, d.clk.Now(), d.done)
}

// Stop cancels the tick loop and waits for it to exit.
func (d *Driver) Stop() {
	d.mu.Lock()
	cancel, done := d.cancel, d.done
	d.cancel, d.done = nil, nil
	d.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (d *Driver) Active() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.done == nil {
		return false
	}
	select {
	case <-d.done:
		return false
	default:
		return true
	}
}

func (d *Driver) run(ctx context.Context, ticker clockwork.Ticker, last time.Time, done chan struct{}) {
	defer close(done)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.Chan():
			elapsed := d.clock.Tick(now.Sub(last))
			last = now
			if d.clock.State() != Running {
				d.logger.Debug().
					Str("state", d.clock.State().String()).
					Str("elapsed", Format(elapsed)).
					Msg("clock driver exiting")
				return
			}
		}
	}
}
