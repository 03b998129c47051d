// presentation/console.go
package presentation

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/logger"
)

// Console is a plain-text View.
type Console struct {
	w io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Redraw(s Snapshot) {
	var b strings.Builder

	turn := "-"
	if s.HasCurrent {
		turn = s.Players[s.Current].label()
		if s.MyTurn() {
			turn += " (you)"
		}
	}
	fmt.Fprintf(&b, "turn %d: %s | %s | roll %d | %ds left\n", s.Turn, turn, s.Phase, s.Roll, s.Remaining)

	for _, color := range board.Colors {
		fmt.Fprintf(&b, "  %-6s", color)
		for _, p := range s.Pieces {
			if p.Color != color {
				continue
			}
			fmt.Fprintf(&b, " %d:%s", p.Index, pieceState(p))
		}
		b.WriteByte('\n')
	}

	b.WriteString("  score")
	for _, row := range s.Standings {
		fmt.Fprintf(&b, " %s=%d", s.Players[row.Color].label(), row.Score)
	}
	b.WriteByte('\n')

	io.WriteString(c.w, b.String())
}

func (c *Console) PlayCue(cue Cue) {
	fmt.Fprintf(c.w, "* %s\n", cue)
}

func (p PlayerView) label() string {
	if p.Name == "" {
		return p.Color.String()
	}
	return p.Name
}

func pieceState(p board.Piece) string {
	var s string
	switch {
	case p.AtHome():
		s = "home"
	case p.Finished():
		s = "done"
	default:
		s = strconv.Itoa(p.Steps)
	}
	if p.Movable {
		s += "*"
	}
	return s
}

// ReadCommands turns text commands into input events until ctx ends or r is
// exhausted. Commands: roll, click X Y, pick N (the local player's Nth
// piece), quit.
func ReadCommands(ctx context.Context, r io.Reader, layout Layout, latest func() (Snapshot, bool), push func(event.Event) bool) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			ev, err := ParseCommand(line, layout, latest)
			if err != nil {
				logger.Log.Debugw("command ignored", "line", line, "error", err)
				continue
			}
			push(ev)
			if ev.Kind == event.KindQuit {
				return nil
			}
		}
	}
}

// ParseCommand converts one command line into an input event.
func ParseCommand(line string, layout Layout, latest func() (Snapshot, bool)) (event.Event, error) {
	fields := strings.Fields(strings.ToLower(line))
	if len(fields) == 0 {
		return event.Event{}, fmt.Errorf("empty command")
	}
	switch fields[0] {
	case "roll", "r":
		return event.RollRequested(), nil
	case "quit", "q":
		return event.Quit(), nil
	case "click":
		if len(fields) != 3 {
			return event.Event{}, fmt.Errorf("usage: click X Y")
		}
		x, errX := strconv.Atoi(fields[1])
		y, errY := strconv.Atoi(fields[2])
		if errX != nil || errY != nil {
			return event.Event{}, fmt.Errorf("click coordinates must be integers")
		}
		return event.Click(x, y), nil
	case "pick", "p":
		if len(fields) != 2 {
			return event.Event{}, fmt.Errorf("usage: pick N")
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 1 || n > board.PiecesPerColor {
			return event.Event{}, fmt.Errorf("piece number must be 1-%d", board.PiecesPerColor)
		}
		s, ok := latest()
		if !ok {
			return event.Event{}, fmt.Errorf("no board yet")
		}
		mine := s.MyPieces()
		if n > len(mine) {
			return event.Event{}, fmt.Errorf("no piece %d", n)
		}
		x, y := layout.Center(mine[n-1])
		return event.Click(x, y), nil
	}
	return event.Event{}, fmt.Errorf("unknown command %q", fields[0])
}
