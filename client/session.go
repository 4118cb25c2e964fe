package client

import (
	"errors"
	"log"

	"github.com/TyuiX/TicTacToeServer/proto"
)

// Run is the per-connection read loop: it decodes packets with
// proto.Recv and dispatches each to the matching Client operation,
// replying ACK or NACK, until the connection closes or a transport
// failure occurs. It always unregisters and logs out the session
// before returning.
func Run(c *Client, registry *ClientRegistry) {
	registry.Add(c)
	defer func() {
		_ = c.Logout()
		registry.Remove(c)
		_ = c.Close()
	}()

	for {
		pkt, err := proto.Recv(c.conn)
		if err != nil {
			if !errors.Is(err, proto.ErrEOF) {
				log.Printf("client %s: recv: %v", c.Name(), err)
			}
			return
		}

		if err := dispatch(c, registry, pkt); err != nil {
			log.Printf("client %s: %s: %v", c.Name(), pkt.Type, err)
			return
		}
	}
}

// dispatch handles one decoded packet. A non-nil return means the
// connection itself is unusable and the session loop should stop; a
// protocol-level failure (bad payload, illegal state) is reported back
// to the peer as a NACK and does not return an error.
func dispatch(c *Client, registry *ClientRegistry, pkt proto.Packet) error {
	loggedIn := c.Player() != nil

	if pkt.Type == proto.LOGIN {
		if loggedIn {
			return nack(c)
		}
		if err := registry.LoginName(c, string(pkt.Payload)); err != nil {
			return nack(c)
		}
		return ack(c, 0, nil)
	}
	if !loggedIn {
		return nack(c)
	}

	switch pkt.Type {
	case proto.USERS:
		return ack(c, 0, c.Users())

	case proto.INVITE:
		target := registry.Lookup(string(pkt.Payload))
		if target == nil {
			return nack(c)
		}
		id, err := c.MakeInvitation(target, pkt.Role)
		if err != nil {
			return nack(c)
		}
		return ack(c, uint8(id), nil)

	case proto.REVOKE:
		if err := c.RevokeInvitation(int(pkt.Id)); err != nil {
			return nack(c)
		}
		return ack(c, pkt.Id, nil)

	case proto.DECLINE:
		if err := c.DeclineInvitation(int(pkt.Id)); err != nil {
			return nack(c)
		}
		return ack(c, pkt.Id, nil)

	case proto.ACCEPT:
		state, err := c.AcceptInvitation(int(pkt.Id))
		if err != nil {
			return nack(c)
		}
		return ack(c, pkt.Id, state)

	case proto.RESIGN:
		if err := c.ResignGameID(int(pkt.Id)); err != nil {
			return nack(c)
		}
		return ack(c, pkt.Id, nil)

	case proto.MOVE:
		ended, err := c.MakeMove(int(pkt.Id), string(pkt.Payload))
		if err != nil {
			return nack(c)
		}
		if ended {
			// ENDED already sent to both participants by MakeMove; the
			// mover gets no separate ACK.
			return nil
		}
		return ack(c, pkt.Id, nil)

	default:
		return nack(c)
	}
}

func ack(c *Client, id uint8, payload []byte) error {
	return c.SendAck(id, payload)
}

func nack(c *Client) error {
	return c.SendNack()
}
