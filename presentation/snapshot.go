// presentation/snapshot.go
package presentation

import (
	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/state"
)

// Cue is a one-shot notification for the view, usually a sound.
type Cue uint8

const (
	CueTurnStart Cue = iota + 1
	CueDice
	CueMove
	CueCapture
	CueCountdown
	CueForfeit
	CueVictory
)

var cueNames = map[Cue]string{
	CueTurnStart: "turn_start",
	CueDice:      "dice",
	CueMove:      "move",
	CueCapture:   "capture",
	CueCountdown: "countdown",
	CueForfeit:   "forfeit",
	CueVictory:   "victory",
}

func (c Cue) String() string {
	if name, ok := cueNames[c]; ok {
		return name
	}
	return "cue"
}

// PlayerView is the read-only projection of one seat.
type PlayerView struct {
	Color board.Color `json:"color"`
	Name  string      `json:"name"`
	Turn  bool        `json:"turn"`
	Roll  int         `json:"roll"`
	Mine  bool        `json:"mine"`
	Score int         `json:"score"`
}

// Snapshot is an immutable copy of everything a view draws. Views must not
// modify the slices they receive.
type Snapshot struct {
	Turn       uint64                      `json:"turn"`
	Phase      state.Phase                 `json:"phase"`
	Current    board.Color                 `json:"current"`
	HasCurrent bool                        `json:"has_current"`
	Mine       board.Color                 `json:"mine"`
	Roll       int                         `json:"roll"`
	Remaining  int                         `json:"remaining"`
	Limit      int                         `json:"limit"`
	Pieces     []board.Piece               `json:"pieces"`
	Players    [board.NumColors]PlayerView `json:"players"`
	Standings  []board.Standing            `json:"standings"`
}

// MyTurn reports whether the local player holds the turn.
func (s Snapshot) MyTurn() bool {
	return s.HasCurrent && s.Current == s.Mine
}

// MyPieces returns the local player's pieces in index order.
func (s Snapshot) MyPieces() []board.Piece {
	out := make([]board.Piece, 0, board.PiecesPerColor)
	for _, p := range s.Pieces {
		if p.Color == s.Mine {
			out = append(out, p)
		}
	}
	return out
}
