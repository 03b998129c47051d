package turn

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/network"
	"github.com/wfunc/ludoclient/presentation"
	"github.com/wfunc/ludoclient/queue"
	"github.com/wfunc/ludoclient/session"
	"github.com/wfunc/ludoclient/state"
	"github.com/wfunc/ludoclient/timer"
)

// MockSender records outbound traffic.
type MockSender struct {
	mu    sync.Mutex
	sent  []string
	moves []network.MovePayload
	err   error
}

func (m *MockSender) record(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, name)
	return m.err
}

func (m *MockSender) SendRoll() error    { return m.record("roll") }
func (m *MockSender) SendEndTurn() error { return m.record("end_turn") }
func (m *MockSender) SendForfeit() error { return m.record("forfeit") }

func (m *MockSender) SendMove(piece board.PieceID, roll int) error {
	m.mu.Lock()
	m.moves = append(m.moves, network.MovePayload{Piece: piece, Roll: roll})
	m.mu.Unlock()
	return m.record("move")
}

func (m *MockSender) Sent() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.sent...)
}

func (m *MockSender) count(name string) int {
	n := 0
	for _, s := range m.Sent() {
		if s == name {
			n++
		}
	}
	return n
}

// MockClock records supervisor control calls.
type MockClock struct {
	calls []string
	armed uint64
}

func (m *MockClock) Arm(turn uint64) {
	m.calls = append(m.calls, "arm")
	m.armed = turn
}
func (m *MockClock) Acted(turn uint64) { m.calls = append(m.calls, "acted") }
func (m *MockClock) Disarm()           { m.calls = append(m.calls, "disarm") }

// MockPresenter keeps the last snapshot and every cue.
type MockPresenter struct {
	mu   sync.Mutex
	last presentation.Snapshot
	cues []presentation.Cue
}

func (m *MockPresenter) Publish(s presentation.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.last = s
}

func (m *MockPresenter) PlayCue(c presentation.Cue) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cues = append(m.cues, c)
}

func (m *MockPresenter) Last() presentation.Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

type fixture struct {
	ctl       *Controller
	sender    *MockSender
	clock     *MockClock
	presenter *MockPresenter
	layout    presentation.Layout
}

func newFixture(mine board.Color) *fixture {
	f := &fixture{
		sender:    &MockSender{},
		clock:     &MockClock{},
		presenter: &MockPresenter{},
		layout:    presentation.NewLayout(0),
	}
	f.ctl = NewController(session.NewSession(mine, "me", timer.DefaultTurnSeconds), Options{
		Sender:    f.sender,
		Clock:     f.clock,
		Presenter: f.presenter,
		Locator:   f.layout,
	})
	return f
}

func (f *fixture) handle(t *testing.T, evs ...event.Event) {
	t.Helper()
	for _, ev := range evs {
		require.NoError(t, f.ctl.Handle(ev), "handling %s", ev)
	}
}

func (f *fixture) place(t *testing.T, id board.PieceID, steps int) {
	t.Helper()
	require.NoError(t, f.ctl.Session().Board.Place(id, steps))
}

func (f *fixture) clickOn(t *testing.T, id board.PieceID) event.Event {
	t.Helper()
	p, err := f.ctl.Session().Board.Piece(id)
	require.NoError(t, err)
	x, y := f.layout.Center(p)
	return event.Click(x, y)
}

func TestRedSixFromHomeEarnsBonusRoll(t *testing.T) {
	f := newFixture(board.Red)

	f.handle(t, event.TurnAssigned(board.Red), event.RollRequested(), event.RollResult(6))
	assert.Equal(t, state.PhaseRollCompleted, f.ctl.Phase())
	assert.Len(t, f.ctl.Session().Board.ComputeMovableSet(board.Red, 6), 4)

	f.handle(t, f.clickOn(t, 0))
	assert.Equal(t, state.PhaseAwaitingMove, f.ctl.Phase())
	p, _ := f.ctl.Session().Board.Piece(0)
	assert.True(t, p.AtHome(), "the board only changes on confirmation")
	assert.Equal(t, []network.MovePayload{{Piece: 0, Roll: 6}}, f.sender.moves)

	f.handle(t, event.MoveConfirmed(0, 6))
	assert.Equal(t, state.PhaseWaitingForRoll, f.ctl.Phase())
	p, _ = f.ctl.Session().Board.Piece(0)
	assert.Equal(t, 0, p.Steps)
	cell, _ := p.Cell()
	assert.Equal(t, board.Red.EntryOffset(), cell)
	assert.Equal(t, []string{"roll", "move"}, f.sender.Sent())

	// The bonus roll is requested like any other.
	f.handle(t, event.RollRequested())
	assert.Equal(t, 2, f.sender.count("roll"))
}

func TestGreenWithNoLegalMoveEndsTurn(t *testing.T) {
	f := newFixture(board.Green)
	low, _ := board.Green.PieceRange()
	f.place(t, low, 52)
	f.place(t, low+1, 55)

	f.handle(t, event.TurnAssigned(board.Green), event.RollRequested(), event.RollResult(3))
	assert.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())
	assert.Equal(t, []string{"roll", "end_turn"}, f.sender.Sent())
	assert.Contains(t, f.clock.calls, "disarm")
}

func TestOpponentNoLegalMoveSendsNothing(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Blue), event.RollResult(2))
	assert.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())
	assert.Empty(t, f.sender.Sent())
}

func TestTimeoutForfeitsExactlyOnce(t *testing.T) {
	q := queue.New[event.Event]()
	sender := &MockSender{}
	presenter := &MockPresenter{}
	sup := timer.NewSupervisor(timer.DefaultTurnSeconds, 2*time.Millisecond, q)
	ctl := NewController(session.NewSession(board.Red, "ann", sup.Limit()), Options{
		Sender:    sender,
		Clock:     sup,
		Presenter: presenter,
		Locator:   presentation.NewLayout(0),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sup.Run(ctx)
	done := make(chan error, 1)
	go func() { done <- ctl.Run(ctx, q) }()

	q.Push(event.TurnAssigned(board.Red))

	require.Eventually(t, func() bool { return sender.count("forfeit") == 1 }, 2*time.Second, time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, 1, sender.count("forfeit"), "a turn is forfeited at most once")

	require.Eventually(t, func() bool {
		s := presenter.Last()
		return s.Phase == state.PhaseTurnEnding && s.Remaining == timer.DefaultTurnSeconds
	}, time.Second, time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}

func TestForfeitNotMine(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Yellow), event.Forfeit(1))
	assert.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())
	assert.Empty(t, f.sender.Sent())
}

func TestStaleForfeitIsTimeoutRace(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Red), event.TurnAssigned(board.Green))

	err := f.ctl.Handle(event.Forfeit(1))
	assert.ErrorIs(t, err, ErrTimeoutRace)
	assert.Equal(t, state.PhaseWaitingForRoll, f.ctl.Phase())

	f.handle(t, event.Forfeit(2))
	err = f.ctl.Handle(event.Forfeit(2))
	assert.ErrorIs(t, err, ErrTimeoutRace, "second forfeit for the same turn")
	assert.Empty(t, f.sender.Sent())
}

func TestForfeitAfterTurnEndedIsTimeoutRace(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Red), event.RollRequested(), event.RollResult(6))
	f.handle(t, f.clickOn(t, 1), event.MoveConfirmed(1, 6), event.RollRequested(), event.RollResult(2))
	f.handle(t, f.clickOn(t, 1), event.MoveConfirmed(1, 2))
	require.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())

	err := f.ctl.Handle(event.Forfeit(1))
	assert.ErrorIs(t, err, ErrTimeoutRace)
	assert.Equal(t, 0, f.sender.count("forfeit"))
	assert.Equal(t, 1, f.sender.count("end_turn"))
}

func TestFinishedPieceMoveRejected(t *testing.T) {
	f := newFixture(board.Red)
	low, _ := board.Blue.PieceRange()
	f.place(t, low, board.FinishStep)
	f.place(t, low+1, 10)
	f.handle(t, event.TurnAssigned(board.Blue), event.RollResult(2))
	before := f.ctl.Session().Board.Pieces()

	err := f.ctl.Handle(event.OpponentMoved(low, 2))
	assert.ErrorIs(t, err, ErrProtocolViolation)
	assert.ErrorIs(t, err, board.ErrIllegalMove)
	assert.Equal(t, before, f.ctl.Session().Board.Pieces())
	assert.Equal(t, state.PhaseRollCompleted, f.ctl.Phase())
}

func TestOpponentMoveCaptures(t *testing.T) {
	f := newFixture(board.Red)
	f.place(t, 0, 5)  // red on cell 5
	f.place(t, 4, 40) // green step 40 is cell 1
	f.handle(t, event.TurnAssigned(board.Green), event.RollResult(4), event.OpponentMoved(4, 4))

	p, _ := f.ctl.Session().Board.Piece(0)
	assert.True(t, p.AtHome())
	assert.Contains(t, f.presenter.cues, presentation.CueCapture)
	assert.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())
}

func TestInvalidClickSendsNothing(t *testing.T) {
	f := newFixture(board.Red)
	f.place(t, 0, 10)

	// Out of turn.
	f.handle(t, event.TurnAssigned(board.Green))
	assert.ErrorIs(t, f.ctl.Handle(f.clickOn(t, 0)), ErrIgnoredInput)

	f.handle(t, event.TurnAssigned(board.Red))
	// Before rolling.
	assert.ErrorIs(t, f.ctl.Handle(f.clickOn(t, 0)), ErrIgnoredInput)

	f.handle(t, event.RollRequested(), event.RollResult(3))
	sentBefore := f.sender.Sent()
	// Empty square, then a home piece that needs a six.
	assert.ErrorIs(t, f.ctl.Handle(event.Click(0, 0)), ErrIgnoredInput)
	assert.ErrorIs(t, f.ctl.Handle(f.clickOn(t, 1)), ErrIgnoredInput)
	assert.Equal(t, sentBefore, f.sender.Sent())
	assert.Equal(t, state.PhaseRollCompleted, f.ctl.Phase())
}

func TestRollRequestedOnlyOnce(t *testing.T) {
	f := newFixture(board.Red)
	assert.ErrorIs(t, f.ctl.Handle(event.RollRequested()), ErrIgnoredInput)

	f.handle(t, event.TurnAssigned(board.Red), event.RollRequested())
	assert.ErrorIs(t, f.ctl.Handle(event.RollRequested()), ErrIgnoredInput)
	assert.Equal(t, 1, f.sender.count("roll"))
}

func TestTurnAckRelinquishes(t *testing.T) {
	f := newFixture(board.Red)
	assert.ErrorIs(t, f.ctl.Handle(event.TurnAck()), ErrProtocolViolation)

	f.handle(t, event.TurnAssigned(board.Red), event.Forfeit(1))
	require.Equal(t, state.PhaseTurnEnding, f.ctl.Phase())
	f.handle(t, event.TurnAck())

	assert.Equal(t, state.PhaseIdle, f.ctl.Phase())
	_, ok := f.ctl.Session().Current()
	assert.False(t, ok)
	assert.False(t, f.ctl.Session().Players[board.Red].Turn)
	assert.Equal(t, timer.DefaultTurnSeconds, f.ctl.Session().Timer.Remaining)
	assert.Equal(t, 1, f.sender.count("forfeit"))
}

func TestRollResultViolations(t *testing.T) {
	f := newFixture(board.Red)
	assert.ErrorIs(t, f.ctl.Handle(event.RollResult(3)), ErrProtocolViolation)

	f.handle(t, event.TurnAssigned(board.Red))
	assert.ErrorIs(t, f.ctl.Handle(event.RollResult(7)), ErrProtocolViolation)
	assert.Equal(t, state.PhaseWaitingForRoll, f.ctl.Phase())
}

func TestMoveRollMismatchRejected(t *testing.T) {
	f := newFixture(board.Red)
	f.place(t, 8, 3)
	f.handle(t, event.TurnAssigned(board.Yellow), event.RollResult(4))
	assert.ErrorIs(t, f.ctl.Handle(event.OpponentMoved(8, 5)), ErrProtocolViolation)
	assert.ErrorIs(t, f.ctl.Handle(event.OpponentMoved(0, 4)), ErrProtocolViolation, "wrong color")
	p, _ := f.ctl.Session().Board.Piece(8)
	assert.Equal(t, 3, p.Steps)
}

func TestTickUpdatesTimer(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Red))
	f.handle(t, event.Tick(1, 4))
	assert.Equal(t, 4, f.ctl.Session().Timer.Remaining)
	assert.Contains(t, f.presenter.cues, presentation.CueCountdown)

	f.handle(t, event.Tick(1, -2))
	assert.Equal(t, 0, f.ctl.Session().Timer.Remaining)

	// Stale ticks are dropped.
	f.handle(t, event.Tick(9, 11))
	assert.Equal(t, 0, f.ctl.Session().Timer.Remaining)

	f.handle(t, event.AlreadyActed())
	assert.Equal(t, timer.DefaultTurnSeconds, f.ctl.Session().Timer.Remaining)
	assert.Equal(t, "acted", f.clock.calls[len(f.clock.calls)-1])
}

func TestTurnAssignedMidTurnClosesPrevious(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.TurnAssigned(board.Red), event.RollRequested(), event.RollResult(6))
	f.handle(t, event.TurnAssigned(board.Green))

	assert.Equal(t, state.PhaseWaitingForRoll, f.ctl.Phase())
	assert.Equal(t, uint64(2), f.clock.armed)
	red := f.ctl.Session().Players[board.Red]
	assert.False(t, red.Turn)
	assert.Equal(t, 0, red.Roll)
}

func TestPlayerNames(t *testing.T) {
	f := newFixture(board.Red)
	f.handle(t, event.PlayerNamesUpdated([]string{"ann", "bob", "cy", "dee"}))
	assert.Equal(t, "cy", f.ctl.Session().Players[board.Yellow].Name)
	assert.ErrorIs(t, f.ctl.Handle(event.PlayerNamesUpdated(make([]string, 5))), ErrProtocolViolation)
}

func TestRun_ReturnsConnectionError(t *testing.T) {
	f := newFixture(board.Red)
	q := queue.New[event.Event]()
	cerr := &network.ConnectionError{Op: "read", Err: errors.New("eof")}
	q.Push(event.TurnAssigned(board.Red))
	q.Push(event.RollResult(9)) // logged and dropped
	q.Push(event.ConnectionLost(cerr))

	err := f.ctl.Run(context.Background(), q)
	var got *network.ConnectionError
	require.True(t, errors.As(err, &got))
	assert.Equal(t, "read", got.Op)
}

func TestRun_Quit(t *testing.T) {
	f := newFixture(board.Red)
	q := queue.New[event.Event]()
	q.Push(event.Click(1, 1))
	q.Push(event.Quit())
	assert.NoError(t, f.ctl.Run(context.Background(), q))
}

func TestRun_SendFailureIsFatal(t *testing.T) {
	f := newFixture(board.Red)
	f.sender.err = &network.ConnectionError{Op: "send roll", Err: errors.New("broken pipe")}
	q := queue.New[event.Event]()
	q.Push(event.TurnAssigned(board.Red))
	q.Push(event.RollRequested())

	err := f.ctl.Run(context.Background(), q)
	assert.Error(t, err)
}
