// turn/controller.go
package turn

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/logger"
	"github.com/wfunc/ludoclient/monitor"
	"github.com/wfunc/ludoclient/presentation"
	"github.com/wfunc/ludoclient/queue"
	"github.com/wfunc/ludoclient/session"
	"github.com/wfunc/ludoclient/state"
)

var (
	// ErrProtocolViolation marks a server message that contradicts local state.
	// It is logged and the message is dropped.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrIgnoredInput marks a click or roll request that is not allowed now.
	ErrIgnoredInput = errors.New("input ignored")
	// ErrTimeoutRace marks a forfeit signal for a turn that already ended.
	ErrTimeoutRace = errors.New("timeout race")
	// ErrQuit is returned by Handle when the local player asks to leave.
	ErrQuit = errors.New("quit requested")
)

// countdownCue is when the view starts warning about the clock.
const countdownCue = 5

// Sender carries the local player's actions to the server.
type Sender interface {
	SendRoll() error
	SendMove(piece board.PieceID, roll int) error
	SendEndTurn() error
	SendForfeit() error
}

// Clock is the turn countdown. timer.Supervisor implements it.
type Clock interface {
	Arm(turn uint64)
	Acted(turn uint64)
	Disarm()
}

// Presenter receives snapshots and cues. presentation.Renderer implements it.
type Presenter interface {
	Publish(s presentation.Snapshot)
	PlayCue(c presentation.Cue)
}

// Locator resolves a click to one of the local player's pieces.
type Locator interface {
	PieceAt(pieces []board.Piece, c board.Color, x, y int) (board.PieceID, bool)
}

// Source is the inbound event queue.
type Source interface {
	Pop(ctx context.Context) (event.Event, error)
	Len() int
}

type Options struct {
	Sender    Sender
	Clock     Clock
	Presenter Presenter
	Locator   Locator
	Monitor   *monitor.Monitor
}

// Controller is the single consumer of the inbound queue. It owns the
// session and applies every event in arrival order.
type Controller struct {
	session   *session.Session
	sm        *state.BaseStateMachine
	sender    Sender
	clock     Clock
	presenter Presenter
	locator   Locator
	monitor   *monitor.Monitor

	rollPending bool
	moveRoll    int
	forfeited   uint64
}

func NewController(s *session.Session, opts Options) *Controller {
	c := &Controller{
		session:   s,
		sm:        state.NewBaseStateMachine(state.PhaseIdle),
		sender:    opts.Sender,
		clock:     opts.Clock,
		presenter: opts.Presenter,
		locator:   opts.Locator,
		monitor:   opts.Monitor,
	}
	c.registerTransitions()
	return c
}

func (c *Controller) registerTransitions() {
	add := func(from, to state.Phase, cond func() bool) {
		if err := c.sm.AddTransition(from, to, cond); err != nil {
			panic(err)
		}
	}
	add(state.PhaseIdle, state.PhaseWaitingForRoll, nil)
	add(state.PhaseTurnEnding, state.PhaseWaitingForRoll, nil)
	add(state.PhaseWaitingForRoll, state.PhaseRollCompleted, nil)
	add(state.PhaseRollCompleted, state.PhaseAwaitingMove, c.session.IsMyTurn)
	// A six earns another roll, whether the move was ours or an opponent's.
	add(state.PhaseRollCompleted, state.PhaseWaitingForRoll, c.bonusRoll)
	add(state.PhaseAwaitingMove, state.PhaseWaitingForRoll, c.bonusRoll)
	for _, from := range []state.Phase{
		state.PhaseWaitingForRoll,
		state.PhaseRollCompleted,
		state.PhaseAwaitingMove,
	} {
		add(from, state.PhaseTurnEnding, nil)
	}
	add(state.PhaseTurnEnding, state.PhaseIdle, nil)

	c.sm.OnEnter(state.PhaseTurnEnding, func(from state.Phase) {
		c.rollPending = false
		c.clock.Disarm()
		c.session.Timer.Reset()
	})
}

func (c *Controller) bonusRoll() bool {
	return c.moveRoll == board.MaxRoll
}

// Session returns the state the controller owns. Only safe to read from the
// goroutine running the controller, or after Run returns.
func (c *Controller) Session() *session.Session {
	return c.session
}

func (c *Controller) Phase() state.Phase {
	return c.sm.GetCurrentState()
}

// Run drains events until ctx ends, the player quits or the connection is
// lost. Only a lost connection or a failed send is returned as an error.
func (c *Controller) Run(ctx context.Context, events Source) error {
	c.publish()
	for {
		ev, err := events.Pop(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, queue.ErrClosed) {
				return nil
			}
			return err
		}
		c.monitor.SetQueueDepth(events.Len())

		err = c.Handle(ev)
		c.monitor.ObserveEvent(ev.Source.String(), ev.Kind.String(), time.Since(ev.At))
		c.publish()

		switch {
		case err == nil:
		case errors.Is(err, ErrQuit):
			logger.Log.Info("Leaving game at player request")
			return nil
		case errors.Is(err, ErrProtocolViolation):
			logger.Log.Warnw("protocol violation", "event", ev.String(), "phase", c.Phase(), "error", err)
			c.monitor.IncProtocolViolation(ev.Kind.String())
		case errors.Is(err, ErrIgnoredInput):
			logger.Log.Debugw("input ignored", "event", ev.String(), "phase", c.Phase(), "error", err)
			c.monitor.IncIgnoredInput()
		case errors.Is(err, ErrTimeoutRace):
			logger.Log.Warnw("timeout race", "turn", ev.Turn, "current", c.session.Turn(), "phase", c.Phase())
			c.monitor.IncTimeoutRaces()
		default:
			return err
		}
	}
}

// Handle applies one event. Returned errors wrap one of the package
// sentinels, except for fatal connection failures.
func (c *Controller) Handle(ev event.Event) error {
	switch ev.Kind {
	case event.KindTurnAssigned:
		return c.onTurnAssigned(ev.Color)
	case event.KindRollRequested:
		return c.onRollRequested()
	case event.KindRollResult:
		return c.onRollResult(ev.Value)
	case event.KindClick:
		return c.onClick(ev.X, ev.Y)
	case event.KindMoveConfirmed:
		return c.onMove(ev.Piece, ev.Value, true)
	case event.KindOpponentMoved:
		return c.onMove(ev.Piece, ev.Value, false)
	case event.KindAlreadyActed:
		c.onAlreadyActed()
		return nil
	case event.KindTurnAck:
		return c.onTurnAck()
	case event.KindTick:
		c.onTick(ev.Turn, ev.Remaining)
		return nil
	case event.KindForfeit:
		return c.onForfeit(ev.Turn)
	case event.KindPlayerNamesUpdated:
		if err := c.session.SetNames(ev.Names); err != nil {
			return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
		}
		return nil
	case event.KindConnectionLost:
		if ev.Err == nil {
			return errors.New("connection lost")
		}
		return ev.Err
	case event.KindQuit:
		return ErrQuit
	}
	return fmt.Errorf("%w: unexpected event %s", ErrProtocolViolation, ev)
}

func (c *Controller) onTurnAssigned(color board.Color) error {
	if !color.Valid() {
		return fmt.Errorf("%w: turn for unknown color %d", ErrProtocolViolation, color)
	}
	if phase := c.Phase(); phase.Active() {
		logger.Log.Warnw("turn assigned before the previous turn ended", "phase", phase, "next", color.String())
		c.sm.Reset(state.PhaseTurnEnding)
	}
	gen := c.session.BeginTurn(color)
	c.rollPending = false
	c.moveRoll = 0
	if err := c.sm.ChangeState(state.PhaseWaitingForRoll); err != nil {
		return err
	}
	c.clock.Arm(gen)
	if c.session.IsMyTurn() {
		c.cue(presentation.CueTurnStart)
	}
	logger.Log.Debugw("turn assigned", "turn", gen, "color", color.String(), "mine", c.session.IsMyTurn())
	return nil
}

func (c *Controller) onRollRequested() error {
	switch {
	case !c.session.IsMyTurn():
		return fmt.Errorf("%w: roll requested out of turn", ErrIgnoredInput)
	case c.Phase() != state.PhaseWaitingForRoll:
		return fmt.Errorf("%w: roll requested in %s", ErrIgnoredInput, c.Phase())
	case c.rollPending:
		return fmt.Errorf("%w: roll already requested", ErrIgnoredInput)
	}
	if err := c.sender.SendRoll(); err != nil {
		return err
	}
	c.rollPending = true
	c.acted()
	return nil
}

func (c *Controller) onRollResult(value int) error {
	if phase := c.Phase(); phase != state.PhaseWaitingForRoll {
		return fmt.Errorf("%w: roll result in %s", ErrProtocolViolation, phase)
	}
	if err := c.session.RecordRoll(value); err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	c.rollPending = false
	if err := c.sm.ChangeState(state.PhaseRollCompleted); err != nil {
		return err
	}
	c.acted()
	c.cue(presentation.CueDice)

	cur, _ := c.session.Current()
	if len(c.session.Board.ComputeMovableSet(cur.Color, value)) == 0 {
		logger.Log.Debugw("no legal move", "color", cur.Color.String(), "roll", value)
		return c.endTurn()
	}
	return nil
}

func (c *Controller) onClick(x, y int) error {
	if !c.session.IsMyTurn() {
		return fmt.Errorf("%w: click out of turn", ErrIgnoredInput)
	}
	if phase := c.Phase(); phase != state.PhaseRollCompleted {
		return fmt.Errorf("%w: click in %s", ErrIgnoredInput, phase)
	}
	id, ok := c.locator.PieceAt(c.session.Board.Pieces(), c.session.Mine, x, y)
	if !ok {
		return fmt.Errorf("%w: no piece at (%d, %d)", ErrIgnoredInput, x, y)
	}
	if !c.session.Board.IsMovable(id) {
		return fmt.Errorf("%w: piece %d cannot move", ErrIgnoredInput, id)
	}

	roll := c.session.Board.Roll()
	if err := c.sm.ChangeState(state.PhaseAwaitingMove); err != nil {
		return err
	}
	if err := c.sender.SendMove(id, roll); err != nil {
		return err
	}
	c.acted()
	return nil
}

func (c *Controller) onMove(id board.PieceID, roll int, own bool) error {
	cur, ok := c.session.Current()
	if !ok {
		return fmt.Errorf("%w: move with no turn in progress", ErrProtocolViolation)
	}
	if !id.Valid() || id.Color() != cur.Color {
		return fmt.Errorf("%w: piece %d moved during %s's turn", ErrProtocolViolation, id, cur.Color)
	}
	phase := c.Phase()
	switch {
	case own && phase != state.PhaseAwaitingMove:
		return fmt.Errorf("%w: own move confirmed in %s", ErrProtocolViolation, phase)
	case !own && phase != state.PhaseRollCompleted && phase != state.PhaseAwaitingMove:
		return fmt.Errorf("%w: move in %s", ErrProtocolViolation, phase)
	}

	res, err := c.session.Board.MovePiece(id, roll)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProtocolViolation, err)
	}
	c.cue(presentation.CueMove)
	if len(res.Captured) > 0 {
		c.cue(presentation.CueCapture)
	}
	if res.Won {
		c.cue(presentation.CueVictory)
		logger.Log.Infow("player finished all pieces", "color", cur.Color.String())
	}

	c.moveRoll = roll
	if !res.Won && c.sm.CanChange(state.PhaseWaitingForRoll) {
		if err := c.sm.ChangeState(state.PhaseWaitingForRoll); err != nil {
			return err
		}
		c.session.ClearRoll()
		c.acted()
		if cur.Mine {
			c.cue(presentation.CueTurnStart)
		}
		return nil
	}
	return c.endTurn()
}

func (c *Controller) onAlreadyActed() {
	if !c.Phase().Active() {
		logger.Log.Debugw("already acted outside a turn", "phase", c.Phase())
		return
	}
	c.acted()
}

func (c *Controller) onTurnAck() error {
	if phase := c.Phase(); phase != state.PhaseTurnEnding {
		return fmt.Errorf("%w: turn ack in %s", ErrProtocolViolation, phase)
	}
	c.session.EndTurn()
	c.moveRoll = 0
	return c.sm.ChangeState(state.PhaseIdle)
}

func (c *Controller) onTick(gen uint64, remaining int) {
	if gen != c.session.Turn() || !c.Phase().Active() {
		return
	}
	c.session.Timer.Set(remaining)
	if remaining > 0 && remaining <= countdownCue {
		c.cue(presentation.CueCountdown)
	}
}

func (c *Controller) onForfeit(gen uint64) error {
	if gen != c.session.Turn() || gen == c.forfeited || !c.Phase().Active() {
		return fmt.Errorf("%w: forfeit for turn %d", ErrTimeoutRace, gen)
	}
	c.forfeited = gen
	if err := c.sm.ChangeState(state.PhaseTurnEnding); err != nil {
		return err
	}
	c.cue(presentation.CueForfeit)
	if !c.session.IsMyTurn() {
		return nil
	}
	logger.Log.Infow("turn timed out, forfeiting", "turn", gen)
	c.monitor.IncForfeitsSent()
	return c.sender.SendForfeit()
}

// endTurn moves to TurnEnding and, on our own turn, tells the server.
func (c *Controller) endTurn() error {
	if err := c.sm.ChangeState(state.PhaseTurnEnding); err != nil {
		return err
	}
	if c.session.IsMyTurn() {
		return c.sender.SendEndTurn()
	}
	return nil
}

// acted restarts the countdown for the current turn.
func (c *Controller) acted() {
	c.clock.Acted(c.session.Turn())
	c.session.Timer.Reset()
}

func (c *Controller) cue(cue presentation.Cue) {
	if c.presenter != nil {
		c.presenter.PlayCue(cue)
	}
}

func (c *Controller) publish() {
	if c.presenter != nil {
		c.presenter.Publish(c.session.Snapshot(c.Phase()))
	}
}
