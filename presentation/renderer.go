// presentation/renderer.go
package presentation

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/wfunc/ludoclient/logger"
)

// DefaultInterval redraws at 10 FPS.
const DefaultInterval = 100 * time.Millisecond

// View is the drawing and sound surface the client drives.
type View interface {
	Redraw(s Snapshot)
	PlayCue(c Cue)
}

// Renderer hands snapshots to a View at a fixed rate, so the turn consumer
// never waits on drawing.
type Renderer struct {
	view     View
	interval time.Duration
	latest   atomic.Pointer[Snapshot]
	dirty    atomic.Bool
	cues     chan Cue
}

func NewRenderer(view View, interval time.Duration) *Renderer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Renderer{
		view:     view,
		interval: interval,
		cues:     make(chan Cue, 32),
	}
}

// Publish replaces the snapshot drawn on the next frame.
func (r *Renderer) Publish(s Snapshot) {
	r.latest.Store(&s)
	r.dirty.Store(true)
}

// PlayCue queues a cue for the next frame. Cues are dropped when the view
// falls far behind.
func (r *Renderer) PlayCue(c Cue) {
	select {
	case r.cues <- c:
	default:
		logger.Log.Debugw("cue dropped", "cue", c.String())
	}
}

// Latest returns the most recently published snapshot.
func (r *Renderer) Latest() (Snapshot, bool) {
	s := r.latest.Load()
	if s == nil {
		return Snapshot{}, false
	}
	return *s, true
}

// Run draws frames until ctx is cancelled.
func (r *Renderer) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			r.frame()
			return nil
		case <-ticker.C:
			r.frame()
		}
	}
}

func (r *Renderer) frame() {
drain:
	for {
		select {
		case c := <-r.cues:
			r.view.PlayCue(c)
		default:
			break drain
		}
	}
	if r.dirty.Swap(false) {
		if s := r.latest.Load(); s != nil {
			r.view.Redraw(*s)
		}
	}
}
