// timer/timer.go
package timer

import (
	"context"
	"time"

	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/logger"
)

// DefaultTurnSeconds is how long a player has to act.
const DefaultTurnSeconds = 15

// Publisher receives tick and forfeit events. The inbound queue satisfies it.
type Publisher interface {
	Push(ev event.Event) bool
}

type op uint8

const (
	opArm op = iota + 1
	opActed
	opDisarm
)

type control struct {
	op   op
	turn uint64
}

// countdown is the supervisor's private view of the running turn.
type countdown struct {
	limit     int
	armed     bool
	turn      uint64
	remaining int
}

func (c *countdown) apply(ctl control) (restart bool) {
	switch ctl.op {
	case opArm:
		c.armed = true
		c.turn = ctl.turn
		c.remaining = c.limit
		return true
	case opActed:
		if c.armed && ctl.turn == c.turn {
			c.remaining = c.limit
			return true
		}
	case opDisarm:
		c.armed = false
		c.remaining = c.limit
	}
	return false
}

// Supervisor counts a turn down on its own goroutine. It talks to the rest of
// the client only through the publisher (outbound) and its control channel
// (inbound), so it never touches session state.
type Supervisor struct {
	limit    int
	interval time.Duration
	out      Publisher
	ctrl     chan control
	done     chan struct{}
}

func NewSupervisor(limit int, interval time.Duration, out Publisher) *Supervisor {
	if limit <= 0 {
		limit = DefaultTurnSeconds
	}
	if interval <= 0 {
		interval = time.Second
	}
	return &Supervisor{
		limit:    limit,
		interval: interval,
		out:      out,
		ctrl:     make(chan control, 16),
		done:     make(chan struct{}),
	}
}

// Limit returns the configured number of ticks per turn.
func (s *Supervisor) Limit() int {
	return s.limit
}

// Arm starts a fresh countdown for the given turn generation.
func (s *Supervisor) Arm(turn uint64) {
	s.send(control{op: opArm, turn: turn})
}

// Acted restarts the countdown if turn is still the one being timed. A signal
// that arrives after the forfeiture fired is ignored.
func (s *Supervisor) Acted(turn uint64) {
	s.send(control{op: opActed, turn: turn})
}

// Disarm stops counting until the next Arm.
func (s *Supervisor) Disarm() {
	s.send(control{op: opDisarm})
}

func (s *Supervisor) send(c control) {
	select {
	case s.ctrl <- c:
	case <-s.done:
	}
}

// Run ticks until ctx is cancelled.
func (s *Supervisor) Run(ctx context.Context) error {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	cd := countdown{limit: s.limit, remaining: s.limit}
	for {
		select {
		case <-ctx.Done():
			return nil
		case ctl := <-s.ctrl:
			if cd.apply(ctl) {
				ticker.Reset(s.interval)
			}
		case <-ticker.C:
			if !cd.armed {
				continue
			}
			cd.remaining--
			s.out.Push(event.Tick(cd.turn, cd.remaining))
			if cd.remaining > 0 {
				continue
			}
			if s.cancelled(&cd, ticker) {
				logger.Log.Warnw("timeout race: action observed before forfeiture dispatch", "turn", cd.turn)
				continue
			}
			s.out.Push(event.Forfeit(cd.turn))
			cd.apply(control{op: opDisarm})
		}
	}
}

// cancelled applies any control messages that are already waiting and
// reports whether the turn that just hit zero is no longer due a forfeiture.
func (s *Supervisor) cancelled(cd *countdown, ticker *time.Ticker) bool {
	due := cd.turn
	for {
		select {
		case ctl := <-s.ctrl:
			if cd.apply(ctl) {
				ticker.Reset(s.interval)
			}
		default:
			return !(cd.armed && cd.turn == due && cd.remaining == 0)
		}
	}
}
