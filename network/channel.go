package network

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wfunc/ludoclient/board"
	"github.com/wfunc/ludoclient/event"
	"github.com/wfunc/ludoclient/logger"
	"github.com/wfunc/ludoclient/monitor"
)

// ErrRejected is wrapped when the server refuses the session.
var ErrRejected = errors.New("session rejected by server")

// ConnectionError is fatal to the session: dial, handshake, read and write
// failures all end up here.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// Publisher receives decoded inbound events.
type Publisher interface {
	Push(ev event.Event) bool
}

type Options struct {
	Path              string
	HandshakeTimeout  time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	HeartbeatInterval time.Duration
	Monitor           *monitor.Monitor
}

// Channel is the client's single connection to the game server.
type Channel struct {
	opts       Options
	conn       Connection
	assignment Assignment
	// pending holds packets that arrived during the handshake, ahead of the assignment.
	pending []*Packet
}

func NewChannel(opts Options) *Channel {
	if opts.Path == "" {
		opts.Path = "/ws"
	}
	if opts.HandshakeTimeout <= 0 {
		opts.HandshakeTimeout = 5 * time.Second
	}
	return &Channel{opts: opts}
}

// Connect dials the server, joins under name and waits for a seat. It does
// not retry.
func (c *Channel) Connect(ctx context.Context, address, name, clientID string) (Assignment, error) {
	target, err := c.endpoint(address)
	if err != nil {
		return Assignment{}, &ConnectionError{Op: "dial", Err: err}
	}

	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	ws, _, err := dialer.DialContext(ctx, target, nil)
	if err != nil {
		return Assignment{}, &ConnectionError{Op: "dial", Err: err}
	}
	logger.Log.Infof("Connected to %s", target)

	conn := NewWSConnection(ws)
	conn.SetTimeouts(c.opts.HandshakeTimeout, c.opts.WriteTimeout)
	c.conn = conn

	assignment, err := c.handshake(name, clientID)
	if err != nil {
		conn.Close()
		return Assignment{}, err
	}
	conn.SetTimeouts(c.opts.ReadTimeout, c.opts.WriteTimeout)
	c.assignment = assignment
	return assignment, nil
}

func (c *Channel) endpoint(address string) (string, error) {
	if strings.HasPrefix(address, "ws://") || strings.HasPrefix(address, "wss://") {
		return address, nil
	}
	if address == "" {
		return "", errors.New("empty server address")
	}
	u := url.URL{Scheme: "ws", Host: address, Path: c.opts.Path}
	return u.String(), nil
}

func (c *Channel) handshake(name, clientID string) (Assignment, error) {
	if err := c.send(MsgTypeJoin, JoinRequest{Name: name, ClientID: clientID}); err != nil {
		return Assignment{}, &ConnectionError{Op: "handshake", Err: err}
	}
	for {
		packet, err := c.conn.ReadPacket()
		if err != nil {
			return Assignment{}, &ConnectionError{Op: "handshake", Err: err}
		}
		switch packet.MsgID {
		case MsgTypeAssignment:
			var a Assignment
			if err := json.Unmarshal(packet.Data, &a); err != nil {
				return Assignment{}, &ConnectionError{Op: "handshake", Err: err}
			}
			if !a.Color.Valid() {
				return Assignment{}, &ConnectionError{Op: "handshake", Err: fmt.Errorf("invalid seat %d", a.Color)}
			}
			return a, nil
		case MsgTypeReject:
			var r Reject
			_ = json.Unmarshal(packet.Data, &r)
			return Assignment{}, &ConnectionError{Op: "handshake", Err: fmt.Errorf("%w: %s", ErrRejected, r.Reason)}
		case MsgTypeHeartbeat:
		default:
			c.pending = append(c.pending, packet)
		}
	}
}

// Assignment returns the seat received at Connect.
func (c *Channel) Assignment() Assignment {
	return c.assignment
}

// ReadLoop is the only producer of server events. It returns after pushing a
// connection_lost event, or quietly when ctx was cancelled first.
func (c *Channel) ReadLoop(ctx context.Context, out Publisher) error {
	for _, packet := range c.pending {
		c.deliver(packet, out)
	}
	c.pending = nil

	for {
		packet, err := c.conn.ReadPacket()
		if errors.Is(err, ErrMalformedFrame) {
			logger.Log.Warnw("protocol violation: malformed frame", "error", err)
			c.opts.Monitor.IncProtocolViolation("frame")
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			cerr := &ConnectionError{Op: "read", Err: err}
			logger.Log.Errorf("Read from server failed: %v", err)
			out.Push(event.ConnectionLost(cerr))
			return nil
		}
		c.deliver(packet, out)
	}
}

func (c *Channel) deliver(packet *Packet, out Publisher) {
	ev, ok, err := Decode(packet, c.assignment.Color)
	if err != nil {
		logger.Log.Warnw("protocol violation: undecodable message", "msg_id", packet.MsgID, "error", err)
		c.opts.Monitor.IncProtocolViolation("decode")
		return
	}
	if ok {
		out.Push(ev)
	}
}

// HeartbeatLoop keeps the server's read deadline fresh until ctx ends.
func (c *Channel) HeartbeatLoop(ctx context.Context) error {
	if c.opts.HeartbeatInterval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(c.opts.HeartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.conn.Send(MsgTypeHeartbeat, nil); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				return &ConnectionError{Op: "heartbeat", Err: err}
			}
		}
	}
}

func (c *Channel) SendRoll() error {
	return c.sendOp("roll", MsgTypeRollDice, struct{}{})
}

// SendMove asks the server to move piece by roll. Nothing is applied locally
// until the server echoes the move back.
func (c *Channel) SendMove(piece board.PieceID, roll int) error {
	return c.sendOp("move", MsgTypeMovePiece, MovePayload{Piece: piece, Roll: roll})
}

func (c *Channel) SendEndTurn() error {
	return c.sendOp("end turn", MsgTypeEndTurn, struct{}{})
}

func (c *Channel) SendForfeit() error {
	return c.sendOp("forfeit", MsgTypeForfeit, struct{}{})
}

func (c *Channel) sendOp(op string, msgID uint16, payload any) error {
	if err := c.send(msgID, payload); err != nil {
		return &ConnectionError{Op: "send " + op, Err: err}
	}
	return nil
}

func (c *Channel) send(msgID uint16, payload any) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return c.conn.Send(msgID, data)
}

// Close ends the connection; a blocked ReadLoop returns.
func (c *Channel) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}
