// presentation/layout.go
package presentation

import (
	"github.com/wfunc/ludoclient/board"
)

// GridSize is the width and height of the board in squares.
const GridSize = 15

// DefaultCellSize is the pixel size of one square.
const DefaultCellSize = 40

// Square is a grid position, column then row.
type Square struct {
	X, Y int
}

// trackPath maps absolute track cells to squares; cell 0 is red's entry.
var trackPath = [board.TrackCells]Square{
	{6, 13}, {6, 12}, {6, 11}, {6, 10}, {6, 9}, {6, 8},
	{5, 8}, {4, 8}, {3, 8}, {2, 8}, {1, 8}, {0, 8},
	{0, 7}, {0, 6},
	{1, 6}, {2, 6}, {3, 6}, {4, 6}, {5, 6}, {6, 6},
	{6, 5}, {6, 4}, {6, 3}, {6, 2}, {6, 1}, {6, 0},
	{7, 0}, {8, 0},
	{8, 1}, {8, 2}, {8, 3}, {8, 4}, {8, 5}, {8, 6},
	{9, 6}, {10, 6}, {11, 6}, {12, 6}, {13, 6}, {14, 6},
	{14, 7}, {14, 8},
	{13, 8}, {12, 8}, {11, 8}, {10, 8}, {9, 8}, {8, 8},
	{8, 9}, {8, 10}, {8, 11}, {8, 12},
}

// homeColumns are the private squares for steps 51 to 55.
var homeColumns = [board.NumColors][board.FinishStep - board.LastTrackStep - 1]Square{
	board.Red:    {{7, 13}, {7, 12}, {7, 11}, {7, 10}, {7, 9}},
	board.Green:  {{1, 7}, {2, 7}, {3, 7}, {4, 7}, {5, 7}},
	board.Yellow: {{7, 1}, {7, 2}, {7, 3}, {7, 4}, {7, 5}},
	board.Blue:   {{13, 7}, {12, 7}, {11, 7}, {10, 7}, {9, 7}},
}

var yards = [board.NumColors][board.PiecesPerColor]Square{
	board.Red:    {{1, 10}, {4, 10}, {1, 13}, {4, 13}},
	board.Green:  {{1, 1}, {4, 1}, {1, 4}, {4, 4}},
	board.Yellow: {{10, 1}, {13, 1}, {10, 4}, {13, 4}},
	board.Blue:   {{10, 10}, {13, 10}, {10, 13}, {13, 13}},
}

// centre is where finished pieces are drawn.
var centre = Square{7, 7}

// Layout converts between pieces and screen pixels.
type Layout struct {
	CellSize int
}

func NewLayout(cellSize int) Layout {
	if cellSize <= 0 {
		cellSize = DefaultCellSize
	}
	return Layout{CellSize: cellSize}
}

// SquareOf returns the grid square a piece is drawn on.
func (l Layout) SquareOf(p board.Piece) Square {
	switch {
	case !p.Color.Valid():
		return centre
	case p.AtHome():
		return yards[p.Color][(p.Index-1)%board.PiecesPerColor]
	case p.Finished():
		return centre
	case p.OnTrack():
		cell, _ := p.Cell()
		return trackPath[cell]
	default:
		return homeColumns[p.Color][p.Steps-board.LastTrackStep-1]
	}
}

// Center returns the pixel at the middle of the piece's square.
func (l Layout) Center(p board.Piece) (x, y int) {
	sq := l.SquareOf(p)
	return sq.X*l.CellSize + l.CellSize/2, sq.Y*l.CellSize + l.CellSize/2
}

// SquareAt returns the square under a pixel.
func (l Layout) SquareAt(x, y int) (Square, bool) {
	if x < 0 || y < 0 {
		return Square{}, false
	}
	sq := Square{x / l.CellSize, y / l.CellSize}
	if sq.X >= GridSize || sq.Y >= GridSize {
		return Square{}, false
	}
	return sq, true
}

// PieceAt finds the piece of color c under the pixel. Finished pieces share
// the centre square and are never picked.
func (l Layout) PieceAt(pieces []board.Piece, c board.Color, x, y int) (board.PieceID, bool) {
	sq, ok := l.SquareAt(x, y)
	if !ok {
		return 0, false
	}
	for _, p := range pieces {
		if p.Color != c || p.Finished() {
			continue
		}
		if l.SquareOf(p) == sq {
			return p.ID, true
		}
	}
	return 0, false
}
