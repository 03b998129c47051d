// client/client.go
package client

import (
	"context"
	"errors"
	"io"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/wfunc/ludoclient/config"
	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/logger"
	"github.com/wfunc/ludoclient/monitor"
	"github.com/wfunc/ludoclient/network"
	"github.com/wfunc/ludoclient/presentation"
	"github.com/wfunc/ludoclient/queue"
	"github.com/wfunc/ludoclient/session"
	"github.com/wfunc/ludoclient/timer"
	"github.com/wfunc/ludoclient/turn"
)

// Client wires the connection, countdown, renderer and turn consumer around
// one inbound queue.
type Client struct {
	cfg      *config.Config
	view     presentation.View
	input    io.Reader
	monitor  *monitor.Monitor
	clientID string

	events     *queue.Queue[event.Event]
	channel    *network.Channel
	supervisor *timer.Supervisor
	renderer   *presentation.Renderer
	layout     presentation.Layout
	controller *turn.Controller
}

// New prepares a client. input may be nil when clicks come only from
// ReportClick; mon may be nil.
func New(cfg *config.Config, view presentation.View, input io.Reader, mon *monitor.Monitor) *Client {
	return &Client{
		cfg:      cfg,
		view:     view,
		input:    input,
		monitor:  mon,
		clientID: uuid.NewString(),
		events:   queue.New[event.Event](),
		renderer: presentation.NewRenderer(view, cfg.Render.Interval),
		layout:   presentation.NewLayout(cfg.Render.CellSize),
	}
}

// Setup connects, performs the handshake and builds the session for the
// assigned seat. A failure here is a *network.ConnectionError.
func (c *Client) Setup(ctx context.Context) error {
	c.channel = network.NewChannel(network.Options{
		Path:              c.cfg.Server.Path,
		HandshakeTimeout:  c.cfg.Network.HandshakeTimeout,
		ReadTimeout:       c.cfg.Network.ReadTimeout,
		WriteTimeout:      c.cfg.Network.WriteTimeout,
		HeartbeatInterval: c.cfg.Network.HeartbeatInterval,
		Monitor:           c.monitor,
	})
	assignment, err := c.channel.Connect(ctx, c.cfg.Server.Address, c.cfg.Player.Name, c.clientID)
	if err != nil {
		return err
	}

	limit := c.cfg.Game.TurnSeconds
	if assignment.TurnSeconds > 0 {
		limit = assignment.TurnSeconds
	}
	name := assignment.Name
	if name == "" {
		name = c.cfg.Player.Name
	}
	sess := session.NewSession(assignment.Color, name, limit)
	c.supervisor = timer.NewSupervisor(limit, c.cfg.Game.TickInterval, c.events)
	c.controller = turn.NewController(sess, turn.Options{
		Sender:    c.channel,
		Clock:     c.supervisor,
		Presenter: c.renderer,
		Locator:   c.layout,
		Monitor:   c.monitor,
	})
	logger.Log.Infow("Joined game", "session", sess.ID, "color", assignment.Color.String(), "name", name, "turn_seconds", limit)
	return nil
}

// Run blocks until the player quits, ctx is cancelled or the connection is
// lost. Only the last case returns an error.
func (c *Client) Run(ctx context.Context) error {
	if c.controller == nil {
		return errors.New("client: Run called before Setup")
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.channel.ReadLoop(gctx, c.events)
	})
	g.Go(func() error {
		return c.channel.HeartbeatLoop(gctx)
	})
	g.Go(func() error {
		return c.supervisor.Run(gctx)
	})
	g.Go(func() error {
		return c.renderer.Run(gctx)
	})
	if c.input != nil {
		g.Go(func() error {
			return presentation.ReadCommands(gctx, c.input, c.layout, c.renderer.Latest, c.events.Push)
		})
	}
	g.Go(func() error {
		defer cancel()
		return c.controller.Run(gctx, c.events)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Unblocks the reader; the queue refuses late producers.
		c.channel.Close()
		c.events.Close()
		return nil
	})
	return g.Wait()
}

// ReportClick feeds a pointer click from an external view.
func (c *Client) ReportClick(x, y int) bool {
	return c.events.Push(event.Click(x, y))
}

// RequestRoll feeds a roll button press from an external view.
func (c *Client) RequestRoll() bool {
	return c.events.Push(event.RollRequested())
}

// Latest returns the most recent snapshot handed to the view.
func (c *Client) Latest() (presentation.Snapshot, bool) {
	return c.renderer.Latest()
}

// Layout returns the board geometry used to resolve clicks.
func (c *Client) Layout() presentation.Layout {
	return c.layout
}

// Terminate releases the connection and session. Call it after Run returns.
func (c *Client) Terminate() {
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			logger.Log.Debugw("close after run", "error", err)
		}
	}
	c.events.Close()
	if c.controller != nil {
		c.controller.Session().Close()
	}
	logger.Log.Info("Client terminated")
}
