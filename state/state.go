package state

import (
	"errors"
	"fmt"
)

// Phase is a step of a single player's turn.
type Phase string

const (
	// PhaseIdle means no turn is in progress as far as this client knows.
	PhaseIdle           Phase = "idle"
	PhaseWaitingForRoll Phase = "waiting_for_roll"
	PhaseRollCompleted  Phase = "roll_completed"
	PhaseAwaitingMove   Phase = "awaiting_move"
	PhaseTurnEnding     Phase = "turn_ending"
)

// Active reports whether a turn is underway and may still time out.
func (p Phase) Active() bool {
	switch p {
	case PhaseWaitingForRoll, PhaseRollCompleted, PhaseAwaitingMove:
		return true
	}
	return false
}

// StateMachine drives phase changes along registered transitions.
type StateMachine interface {
	ChangeState(to Phase) error
	GetCurrentState() Phase
	AddTransition(from, to Phase, condition func() bool) error
}

// ErrTransitionNotAllowed is returned when a state transition is not allowed.
var ErrTransitionNotAllowed = errors.New("state transition not allowed")

// BaseStateMachine only moves along transitions added with AddTransition.
// It is owned by a single goroutine and does no locking.
type BaseStateMachine struct {
	currentState Phase
	transitions  map[Phase]map[Phase]func() bool // from -> to -> condition
	enter        map[Phase]func(from Phase)
}

var _ StateMachine = (*BaseStateMachine)(nil)

func NewBaseStateMachine(initial Phase) *BaseStateMachine {
	return &BaseStateMachine{
		currentState: initial,
		transitions:  make(map[Phase]map[Phase]func() bool),
		enter:        make(map[Phase]func(from Phase)),
	}
}

func (sm *BaseStateMachine) ChangeState(to Phase) error {
	from := sm.currentState
	conditions, ok := sm.transitions[from]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	condition, ok := conditions[to]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionNotAllowed, from, to)
	}
	if condition != nil && !condition() {
		return fmt.Errorf("%w: %s -> %s (condition not met)", ErrTransitionNotAllowed, from, to)
	}
	sm.set(from, to)
	return nil
}

// Reset jumps to a phase without consulting the transition table. Used when
// the server moves the game on without the usual sequence.
func (sm *BaseStateMachine) Reset(to Phase) {
	sm.set(sm.currentState, to)
}

func (sm *BaseStateMachine) set(from, to Phase) {
	sm.currentState = to
	if fn := sm.enter[to]; fn != nil {
		fn(from)
	}
}

func (sm *BaseStateMachine) GetCurrentState() Phase {
	return sm.currentState
}

// CanChange reports whether ChangeState(to) would currently succeed.
func (sm *BaseStateMachine) CanChange(to Phase) bool {
	condition, ok := sm.transitions[sm.currentState][to]
	return ok && (condition == nil || condition())
}

func (sm *BaseStateMachine) AddTransition(from, to Phase, condition func() bool) error {
	if from == to {
		return fmt.Errorf("self transition on %s", from)
	}
	if _, exists := sm.transitions[from]; !exists {
		sm.transitions[from] = make(map[Phase]func() bool)
	}
	sm.transitions[from][to] = condition
	return nil
}

// OnEnter registers a hook run every time the machine enters phase.
func (sm *BaseStateMachine) OnEnter(phase Phase, fn func(from Phase)) {
	sm.enter[phase] = fn
}
