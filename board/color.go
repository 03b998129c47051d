// board/color.go
package board

import "fmt"

// Color identifies one of the four seats, in order of play.
type Color uint8

const (
	Red Color = iota
	Green
	Yellow
	Blue
)

// NumColors is the number of seats at the table.
const NumColors = 4

// Colors lists every color in order of play.
var Colors = [NumColors]Color{Red, Green, Yellow, Blue}

var colorNames = [NumColors]string{
	Red:    "red",
	Green:  "green",
	Yellow: "yellow",
	Blue:   "blue",
}

// entryOffsets is the absolute track cell where each color enters the board.
var entryOffsets = [NumColors]int{
	Red:    0,
	Green:  13,
	Yellow: 26,
	Blue:   39,
}

// Valid reports whether c is one of the four seats.
func (c Color) Valid() bool {
	return c < NumColors
}

func (c Color) String() string {
	if !c.Valid() {
		return fmt.Sprintf("color(%d)", uint8(c))
	}
	return colorNames[c]
}

// EntryOffset returns the absolute track cell a piece of this color enters on.
func (c Color) EntryOffset() int {
	return entryOffsets[c]
}

// PieceRange returns the low and high piece IDs owned by c, inclusive.
func (c Color) PieceRange() (low, high PieceID) {
	low = PieceID(int(c) * PiecesPerColor)
	return low, low + PiecesPerColor - 1
}

// ParseColor maps a color name to its Color.
func ParseColor(s string) (Color, error) {
	for c, name := range colorNames {
		if name == s {
			return Color(c), nil
		}
	}
	return 0, fmt.Errorf("unknown color %q", s)
}

// MarshalText encodes the color by name so it travels as a JSON string.
func (c Color) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid color %d", uint8(c))
	}
	return []byte(colorNames[c]), nil
}

func (c *Color) UnmarshalText(text []byte) error {
	parsed, err := ParseColor(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}
