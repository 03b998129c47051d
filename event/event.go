// Package event defines the messages carried by the inbound queue. Server
// messages, clock signals and local input share one type so the turn
// consumer sees a single ordered stream, while Source keeps them apart.
package event

import (
	"fmt"
	"time"

	"github.com/wfunc/ludoclient/board"
)

// Source tags who produced an event.
type Source uint8

const (
	SourceServer Source = iota + 1
	SourceClock
	SourceInput
)

func (s Source) String() string {
	switch s {
	case SourceServer:
		return "server"
	case SourceClock:
		return "clock"
	case SourceInput:
		return "input"
	}
	return fmt.Sprintf("source(%d)", uint8(s))
}

type Kind uint8

const (
	// server
	KindTurnAssigned Kind = iota + 1
	KindRollResult
	KindOpponentMoved
	KindMoveConfirmed
	KindAlreadyActed
	KindPlayerNamesUpdated
	KindTurnAck
	KindConnectionLost

	// clock
	KindTick
	KindForfeit

	// input
	KindClick
	KindRollRequested
	KindQuit
)

var kindNames = map[Kind]string{
	KindTurnAssigned:       "turn_assigned",
	KindRollResult:         "roll_result",
	KindOpponentMoved:      "opponent_moved",
	KindMoveConfirmed:      "move_confirmed",
	KindAlreadyActed:       "already_acted",
	KindPlayerNamesUpdated: "player_names_updated",
	KindTurnAck:            "turn_ack",
	KindConnectionLost:     "connection_lost",
	KindTick:               "tick",
	KindForfeit:            "forfeit",
	KindClick:              "click",
	KindRollRequested:      "roll_requested",
	KindQuit:               "quit",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Event is a discriminated message; only the fields relevant to Kind are set.
type Event struct {
	Source Source
	Kind   Kind
	At     time.Time

	Color     board.Color   // turn_assigned
	Value     int           // roll_result, opponent_moved, move_confirmed
	Piece     board.PieceID // opponent_moved, move_confirmed
	Names     []string      // player_names_updated
	Turn      uint64        // tick, forfeit: the turn generation the clock was armed for
	Remaining int           // tick
	X, Y      int           // click
	Err       error         // connection_lost
}

func (e Event) String() string {
	return fmt.Sprintf("%s/%s", e.Source, e.Kind)
}

func server(kind Kind) Event {
	return Event{Source: SourceServer, Kind: kind, At: time.Now()}
}

func TurnAssigned(c board.Color) Event {
	ev := server(KindTurnAssigned)
	ev.Color = c
	return ev
}

func RollResult(value int) Event {
	ev := server(KindRollResult)
	ev.Value = value
	return ev
}

func OpponentMoved(piece board.PieceID, roll int) Event {
	ev := server(KindOpponentMoved)
	ev.Piece, ev.Value = piece, roll
	return ev
}

// MoveConfirmed is the server echoing this client's own move.
func MoveConfirmed(piece board.PieceID, roll int) Event {
	ev := server(KindMoveConfirmed)
	ev.Piece, ev.Value = piece, roll
	return ev
}

func AlreadyActed() Event {
	return server(KindAlreadyActed)
}

func PlayerNamesUpdated(names []string) Event {
	ev := server(KindPlayerNamesUpdated)
	ev.Names = names
	return ev
}

func TurnAck() Event {
	return server(KindTurnAck)
}

func ConnectionLost(err error) Event {
	ev := server(KindConnectionLost)
	ev.Err = err
	return ev
}

func Tick(turn uint64, remaining int) Event {
	return Event{Source: SourceClock, Kind: KindTick, At: time.Now(), Turn: turn, Remaining: remaining}
}

func Forfeit(turn uint64) Event {
	return Event{Source: SourceClock, Kind: KindForfeit, At: time.Now(), Turn: turn}
}

func Click(x, y int) Event {
	return Event{Source: SourceInput, Kind: KindClick, At: time.Now(), X: x, Y: y}
}

func RollRequested() Event {
	return Event{Source: SourceInput, Kind: KindRollRequested, At: time.Now()}
}

func Quit() Event {
	return Event{Source: SourceInput, Kind: KindQuit, At: time.Now()}
}
