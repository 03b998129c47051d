// session/session.go
package session

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/presentation"
	"github.com/wfunc/ludoclient/state"
)

// Player is one of the four seats as this client sees it.
type Player struct {
	Color      board.Color
	Name       string
	Turn       bool
	Roll       int // 0 until rolled this turn
	DiceRolled bool
	Low, High  board.PieceID
	Mine       bool
}

// TimerState mirrors the countdown for display.
type TimerState struct {
	Limit     int
	Remaining int
}

// Set records the remaining seconds; it never goes below zero.
func (t *TimerState) Set(remaining int) {
	if remaining < 0 {
		remaining = 0
	}
	if remaining > t.Limit {
		remaining = t.Limit
	}
	t.Remaining = remaining
}

func (t *TimerState) Reset() {
	t.Remaining = t.Limit
}

// Session is the client's game state between connect and disconnect. Only
// the turn consumer touches it.
type Session struct {
	ID        string
	Board     *board.Board
	Players   [board.NumColors]*Player
	Mine      board.Color
	Timer     TimerState
	CreatedAt time.Time

	turn       uint64
	current    board.Color
	hasCurrent bool
}

// NewSession creates all four players from the seat the server assigned.
func NewSession(mine board.Color, name string, limit int) *Session {
	s := &Session{
		ID:        uuid.NewString(),
		Board:     board.New(),
		Mine:      mine,
		Timer:     TimerState{Limit: limit, Remaining: limit},
		CreatedAt: time.Now(),
	}
	for _, c := range board.Colors {
		low, high := c.PieceRange()
		s.Players[c] = &Player{Color: c, Low: low, High: high, Mine: c == mine}
	}
	s.Players[mine].Name = name
	return s
}

// SetNames applies display names in order of play.
func (s *Session) SetNames(names []string) error {
	if len(names) > board.NumColors {
		return fmt.Errorf("%d names for %d seats", len(names), board.NumColors)
	}
	for i, name := range names {
		if p := s.Players[i]; p != nil {
			p.Name = name
		}
	}
	return nil
}

// Names returns the display names in order of play.
func (s *Session) Names() [board.NumColors]string {
	var names [board.NumColors]string
	for i, p := range s.Players {
		if p != nil {
			names[i] = p.Name
		}
	}
	return names
}

// BeginTurn hands the turn to c and returns the new turn generation.
func (s *Session) BeginTurn(c board.Color) uint64 {
	s.clearTurn()
	s.turn++
	s.current, s.hasCurrent = c, true
	if p := s.Players[c]; p != nil {
		p.Turn = true
	}
	s.Board.BeginTurn(c)
	s.Timer.Reset()
	return s.turn
}

// EndTurn relinquishes the current turn.
func (s *Session) EndTurn() {
	s.clearTurn()
	s.hasCurrent = false
	s.Board.EndTurn()
	s.Timer.Reset()
}

func (s *Session) clearTurn() {
	if !s.hasCurrent {
		return
	}
	if p := s.Players[s.current]; p != nil {
		p.Turn = false
		p.Roll = 0
		p.DiceRolled = false
	}
}

// RecordRoll stores a roll for the player on turn.
func (s *Session) RecordRoll(value int) error {
	if err := s.Board.SetRoll(value); err != nil {
		return err
	}
	if p, ok := s.Current(); ok {
		p.Roll = value
		p.DiceRolled = true
	}
	return nil
}

// ClearRoll is used when a six grants another roll.
func (s *Session) ClearRoll() {
	if p, ok := s.Current(); ok {
		p.Roll = 0
		p.DiceRolled = false
	}
}

// Current returns the player on turn.
func (s *Session) Current() (*Player, bool) {
	if !s.hasCurrent || s.Players[s.current] == nil {
		return nil, false
	}
	return s.Players[s.current], true
}

// Turn returns the generation of the latest turn; it grows by one per turnAssigned.
func (s *Session) Turn() uint64 {
	return s.turn
}

func (s *Session) IsMyTurn() bool {
	return s.hasCurrent && s.current == s.Mine
}

// Close drops the players; the session cannot be used afterwards.
func (s *Session) Close() {
	for i := range s.Players {
		s.Players[i] = nil
	}
	s.hasCurrent = false
}

// Snapshot copies everything the view needs.
func (s *Session) Snapshot(phase state.Phase) presentation.Snapshot {
	pieces := s.Board.Pieces()
	scores := board.Score(pieces)
	snap := presentation.Snapshot{
		Turn:       s.turn,
		Phase:      phase,
		Current:    s.current,
		HasCurrent: s.hasCurrent,
		Mine:       s.Mine,
		Roll:       s.Board.Roll(),
		Remaining:  s.Timer.Remaining,
		Limit:      s.Timer.Limit,
		Pieces:     pieces,
		Standings:  board.Standings(scores, s.Names()),
	}
	for i, p := range s.Players {
		if p == nil {
			continue
		}
		snap.Players[i] = presentation.PlayerView{
			Color: p.Color,
			Name:  p.Name,
			Turn:  p.Turn,
			Roll:  p.Roll,
			Mine:  p.Mine,
			Score: scores[i],
		}
	}
	return snap
}
