// board/board.go
package board

import (
	"cmp"
	"errors"
	"fmt"
	"slices"
)

const (
	PiecesPerColor = 4
	NumPieces      = NumColors * PiecesPerColor

	// TrackCells is the length of the shared circular track.
	TrackCells = 52
	// LastTrackStep is the last step a piece spends on the shared track
	// before turning into its private home column.
	LastTrackStep = 50
	// FinishStep is the step count of a finished piece.
	FinishStep = 56
	// Home marks a piece still waiting in its yard.
	Home = -1

	RollToLeaveHome = 6
	MinRoll         = 1
	MaxRoll         = 6
)

// ErrIllegalMove is returned for any move the rules do not allow.
var ErrIllegalMove = errors.New("illegal move")

// safeCells are absolute track cells where nobody can be captured.
var safeCells = map[int]bool{
	0: true, 8: true, 13: true, 21: true, 26: true, 34: true, 39: true, 47: true,
}

// IsSafeCell reports whether the absolute track cell protects its occupants.
func IsSafeCell(cell int) bool {
	return safeCells[cell]
}

// PieceID indexes the 16-piece table; red owns 0-3, green 4-7 and so on.
type PieceID int

func (id PieceID) Valid() bool {
	return id >= 0 && id < NumPieces
}

func (id PieceID) Color() Color {
	return Color(int(id) / PiecesPerColor)
}

// Index is the 1-based number of the piece within its color.
func (id PieceID) Index() int {
	return int(id)%PiecesPerColor + 1
}

// Piece is one token on the board.
type Piece struct {
	ID      PieceID `json:"id"`
	Color   Color   `json:"color"`
	Index   int     `json:"index"`
	Steps   int     `json:"steps"`
	Movable bool    `json:"movable"`
}

func (p Piece) AtHome() bool   { return p.Steps == Home }
func (p Piece) Finished() bool { return p.Steps == FinishStep }

// OnTrack reports whether the piece is on the shared, capturable track.
func (p Piece) OnTrack() bool {
	return p.Steps >= 0 && p.Steps <= LastTrackStep
}

// Cell returns the absolute shared-track cell of the piece, if it is on the track.
func (p Piece) Cell() (int, bool) {
	if !p.OnTrack() {
		return 0, false
	}
	return trackCell(p.Color, p.Steps), true
}

func trackCell(c Color, steps int) int {
	return (c.EntryOffset() + steps) % TrackCells
}

// StepsFromStart is the piece's contribution to its color's score.
func (p Piece) StepsFromStart() int {
	if p.AtHome() {
		return 0
	}
	return p.Steps
}

// MoveResult describes what a successful move changed.
type MoveResult struct {
	Piece    Piece
	From     int
	Captured []PieceID
	// Won is set when the move finished the mover's last piece.
	Won bool
}

// Board holds the authoritative position of all sixteen pieces together with
// the turn and roll a move is validated against. It is not safe for
// concurrent use; the turn consumer owns it.
type Board struct {
	pieces  [NumPieces]Piece
	turn    Color
	hasTurn bool
	roll    int
}

// New returns a board with every piece at home.
func New() *Board {
	b := &Board{}
	for i := range b.pieces {
		id := PieceID(i)
		b.pieces[i] = Piece{ID: id, Color: id.Color(), Index: id.Index(), Steps: Home}
	}
	return b
}

// BeginTurn records whose turn it is and clears the previous roll.
func (b *Board) BeginTurn(c Color) {
	b.turn = c
	b.hasTurn = true
	b.roll = 0
	b.refreshMovable(c)
}

// EndTurn clears the turn and roll.
func (b *Board) EndTurn() {
	if b.hasTurn {
		b.roll = 0
		b.refreshMovable(b.turn)
	}
	b.hasTurn = false
}

// Turn returns the color to move and whether a turn is active.
func (b *Board) Turn() (Color, bool) {
	return b.turn, b.hasTurn
}

// SetRoll stores the most recent roll of the current turn.
func (b *Board) SetRoll(value int) error {
	if !b.hasTurn {
		return fmt.Errorf("%w: no active turn", ErrIllegalMove)
	}
	if value < MinRoll || value > MaxRoll {
		return fmt.Errorf("%w: roll %d out of range", ErrIllegalMove, value)
	}
	b.roll = value
	b.refreshMovable(b.turn)
	return nil
}

// Roll returns the most recent, unconsumed roll (0 if none).
func (b *Board) Roll() int {
	return b.roll
}

// Piece returns a copy of a single piece.
func (b *Board) Piece(id PieceID) (Piece, error) {
	if !id.Valid() {
		return Piece{}, fmt.Errorf("piece %d does not exist", id)
	}
	return b.pieces[id], nil
}

// Pieces returns a copy of all sixteen pieces.
func (b *Board) Pieces() []Piece {
	out := make([]Piece, NumPieces)
	copy(out, b.pieces[:])
	return out
}

// Place puts a piece at the given step count without rule checks. It is
// used to resynchronise with the server.
func (b *Board) Place(id PieceID, steps int) error {
	if !id.Valid() {
		return fmt.Errorf("piece %d does not exist", id)
	}
	if steps < Home || steps > FinishStep {
		return fmt.Errorf("steps %d out of range", steps)
	}
	b.pieces[id].Steps = steps
	b.refreshMovable(id.Color())
	return nil
}

// MovePiece moves a piece of the color whose turn it is by the most recent roll.
func (b *Board) MovePiece(id PieceID, steps int) (MoveResult, error) {
	if !id.Valid() {
		return MoveResult{}, fmt.Errorf("%w: piece %d does not exist", ErrIllegalMove, id)
	}
	p := b.pieces[id]
	switch {
	case !b.hasTurn || p.Color != b.turn:
		return MoveResult{}, fmt.Errorf("%w: piece %d does not belong to the player on turn", ErrIllegalMove, id)
	case b.roll == 0 || steps != b.roll:
		return MoveResult{}, fmt.Errorf("%w: steps %d do not match roll %d", ErrIllegalMove, steps, b.roll)
	case p.Finished():
		return MoveResult{}, fmt.Errorf("%w: piece %d already finished", ErrIllegalMove, id)
	}
	dest, ok := destination(p, steps)
	if !ok {
		return MoveResult{}, fmt.Errorf("%w: piece %d cannot move %d", ErrIllegalMove, id, steps)
	}
	if b.blockedByOwn(p, dest) {
		return MoveResult{}, fmt.Errorf("%w: piece %d blocked by own piece", ErrIllegalMove, id)
	}

	res := MoveResult{From: p.Steps}
	b.pieces[id].Steps = dest
	res.Captured = b.capture(p.Color, dest)
	res.Piece = b.pieces[id]
	res.Won = b.allFinished(p.Color)

	b.roll = 0
	b.refreshMovable(p.Color)
	return res, nil
}

// ComputeMovableSet returns the pieces of c that may move with roll. It does
// not modify the board.
func (b *Board) ComputeMovableSet(c Color, roll int) []PieceID {
	if !c.Valid() {
		return nil
	}
	var movable []PieceID
	low, high := c.PieceRange()
	for id := low; id <= high; id++ {
		if b.canMove(b.pieces[id], roll) {
			movable = append(movable, id)
		}
	}
	return movable
}

// IsMovable reports whether id is in the movable set for the current turn and roll.
func (b *Board) IsMovable(id PieceID) bool {
	if !id.Valid() || !b.hasTurn || id.Color() != b.turn {
		return false
	}
	return b.canMove(b.pieces[id], b.roll)
}

func (b *Board) canMove(p Piece, roll int) bool {
	dest, ok := destination(p, roll)
	return ok && !b.blockedByOwn(p, dest)
}

// destination is the step count p would reach with roll.
func destination(p Piece, roll int) (int, bool) {
	if p.Finished() || roll < MinRoll || roll > MaxRoll {
		return 0, false
	}
	if p.AtHome() {
		if roll != RollToLeaveHome {
			return 0, false
		}
		return 0, true
	}
	next := p.Steps + roll
	if next > FinishStep {
		return 0, false
	}
	return next, true
}

// blockedByOwn reports whether another piece of p's color sits on dest.
// Same color and same step count means the same cell.
func (b *Board) blockedByOwn(p Piece, dest int) bool {
	if dest == FinishStep {
		return false
	}
	low, high := p.Color.PieceRange()
	for id := low; id <= high; id++ {
		if id != p.ID && b.pieces[id].Steps == dest {
			return true
		}
	}
	return false
}

// capture sends every opposing piece on the mover's destination cell home.
func (b *Board) capture(mover Color, dest int) []PieceID {
	if dest < 0 || dest > LastTrackStep {
		return nil
	}
	cell := trackCell(mover, dest)
	if IsSafeCell(cell) {
		return nil
	}
	var captured []PieceID
	for i := range b.pieces {
		other := &b.pieces[i]
		if other.Color == mover {
			continue
		}
		if c, ok := other.Cell(); ok && c == cell {
			other.Steps = Home
			captured = append(captured, other.ID)
		}
	}
	return captured
}

func (b *Board) allFinished(c Color) bool {
	low, high := c.PieceRange()
	for id := low; id <= high; id++ {
		if !b.pieces[id].Finished() {
			return false
		}
	}
	return true
}

func (b *Board) refreshMovable(c Color) {
	roll := 0
	if b.hasTurn && b.turn == c {
		roll = b.roll
	}
	low, high := c.PieceRange()
	for id := low; id <= high; id++ {
		b.pieces[id].Movable = b.canMove(b.pieces[id], roll)
	}
}

// Score sums steps from start per color.
func Score(pieces []Piece) [NumColors]int {
	var scores [NumColors]int
	for _, p := range pieces {
		if p.Color.Valid() {
			scores[p.Color] += p.StepsFromStart()
		}
	}
	return scores
}

// Standing is one row of the scoreboard.
type Standing struct {
	Color Color  `json:"color"`
	Name  string `json:"name"`
	Score int    `json:"score"`
}

// Standings orders the colors by score, highest first. While nobody has
// scored, the table keeps the order of play.
func Standings(scores [NumColors]int, names [NumColors]string) []Standing {
	rows := make([]Standing, 0, NumColors)
	anyScore := false
	for _, c := range Colors {
		rows = append(rows, Standing{Color: c, Name: names[c], Score: scores[c]})
		if scores[c] != 0 {
			anyScore = true
		}
	}
	if anyScore {
		slices.SortStableFunc(rows, func(a, b Standing) int {
			return cmp.Compare(b.Score, a.Score)
		})
	}
	return rows
}
