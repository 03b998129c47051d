package network

import "github.com/wfunc/ludoclient/board"

const (
	MsgTypeHeartbeat = 1

	// client -> server
	MsgTypeJoin      = 101
	MsgTypeRollDice  = 201
	MsgTypeMovePiece = 202
	MsgTypeEndTurn   = 203
	MsgTypeForfeit   = 204

	// server -> client
	MsgTypeAssignment   = 301
	MsgTypeReject       = 302
	MsgTypeTurnAssigned = 303
	MsgTypeRollResult   = 304
	MsgTypePieceMoved   = 305
	MsgTypeAlreadyActed = 306
	MsgTypePlayerNames  = 307
	MsgTypeTurnAck      = 308
)

// JoinRequest opens a session.
type JoinRequest struct {
	Name     string `json:"name"`
	ClientID string `json:"client_id"`
}

// Assignment is the server's answer to a join: the seat this client plays.
type Assignment struct {
	Color board.Color `json:"color"`
	Name  string      `json:"name"`
	// TurnSeconds overrides the local turn limit when the server sets one.
	TurnSeconds int `json:"turn_seconds,omitempty"`
}

type Reject struct {
	Reason string `json:"reason"`
}

type TurnAssignedPayload struct {
	Color board.Color `json:"color"`
}

type RollResultPayload struct {
	Value int `json:"value"`
}

// MovePayload travels both ways: the client's move request and the server's
// broadcast of an applied move.
type MovePayload struct {
	Piece board.PieceID `json:"piece"`
	Roll  int           `json:"roll"`
}

type PlayerNamesPayload struct {
	Names []string `json:"names"`
}
