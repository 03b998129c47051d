package network

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/event"
)

// ErrUnknownMessage is returned for message IDs this client does not speak.
var ErrUnknownMessage = errors.New("unknown message type")

// Decode turns a server packet into an inbound event. The boolean is false for
// packets that carry nothing for the turn consumer, such as heartbeats.
// mine decides whether a broadcast move is this client's own confirmation.
func Decode(packet *Packet, mine board.Color) (event.Event, bool, error) {
	switch packet.MsgID {
	case MsgTypeHeartbeat:
		return event.Event{}, false, nil

	case MsgTypeTurnAssigned:
		var p TurnAssignedPayload
		if err := unmarshal(packet, &p); err != nil {
			return event.Event{}, false, err
		}
		return event.TurnAssigned(p.Color), true, nil

	case MsgTypeRollResult:
		var p RollResultPayload
		if err := unmarshal(packet, &p); err != nil {
			return event.Event{}, false, err
		}
		return event.RollResult(p.Value), true, nil

	case MsgTypePieceMoved:
		var p MovePayload
		if err := unmarshal(packet, &p); err != nil {
			return event.Event{}, false, err
		}
		if p.Piece.Valid() && p.Piece.Color() == mine {
			return event.MoveConfirmed(p.Piece, p.Roll), true, nil
		}
		return event.OpponentMoved(p.Piece, p.Roll), true, nil

	case MsgTypeAlreadyActed:
		return event.AlreadyActed(), true, nil

	case MsgTypePlayerNames:
		var p PlayerNamesPayload
		if err := unmarshal(packet, &p); err != nil {
			return event.Event{}, false, err
		}
		return event.PlayerNamesUpdated(p.Names), true, nil

	case MsgTypeTurnAck:
		return event.TurnAck(), true, nil
	}
	return event.Event{}, false, fmt.Errorf("%w: %d", ErrUnknownMessage, packet.MsgID)
}

func unmarshal(packet *Packet, v any) error {
	if err := json.Unmarshal(packet.Data, v); err != nil {
		return fmt.Errorf("message %d: %w", packet.MsgID, err)
	}
	return nil
}
