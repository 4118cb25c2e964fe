// Package proto implements the fixed-header framing used by every packet
// exchanged between a client and the server: a 16-byte header, optionally
// followed by a payload whose length the header carries.
package proto

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	ttt "github.com/TyuiX/TicTacToeServer"
)

// HeaderSize is the fixed size, in bytes, of every packet header.
const HeaderSize = 16

// Type enumerates the packet types carried in a header's type field.
type Type uint8

const (
	_ Type = iota

	// Client to server.
	LOGIN
	USERS
	INVITE
	REVOKE
	ACCEPT
	DECLINE
	MOVE
	RESIGN

	// Server to client.
	ACK
	NACK
	INVITED
	REVOKED
	ACCEPTED
	DECLINED
	MOVED
	RESIGNED
	ENDED
)

func (t Type) String() string {
	switch t {
	case LOGIN:
		return "LOGIN"
	case USERS:
		return "USERS"
	case INVITE:
		return "INVITE"
	case REVOKE:
		return "REVOKE"
	case ACCEPT:
		return "ACCEPT"
	case DECLINE:
		return "DECLINE"
	case MOVE:
		return "MOVE"
	case RESIGN:
		return "RESIGN"
	case ACK:
		return "ACK"
	case NACK:
		return "NACK"
	case INVITED:
		return "INVITED"
	case REVOKED:
		return "REVOKED"
	case ACCEPTED:
		return "ACCEPTED"
	case DECLINED:
		return "DECLINED"
	case MOVED:
		return "MOVED"
	case RESIGNED:
		return "RESIGNED"
	case ENDED:
		return "ENDED"
	default:
		return fmt.Sprintf("Type(%d)", uint8(t))
	}
}

// Header is the 16-byte fixed prefix of every packet.
type Header struct {
	Type Type
	Id   uint8
	Role ttt.Role
	Size uint16
}

// Packet is a decoded header plus its (possibly nil) payload.
type Packet struct {
	Header
	Payload []byte
}

// Errors distinguished by the codec: callers treat each one differently
// when deciding whether to tear down the connection.
var (
	ErrEOF        = errors.New("proto: connection closed")
	ErrShortRead  = errors.New("proto: short read")
	ErrShortWrite = errors.New("proto: short write")
	ErrBadRole    = errors.New("proto: header carries an undefined role")
)

// marshal encodes h and stamps now (Send passes the current wall-clock
// time) into the timestamp fields. The protocol never validates timestamps on receipt;
// they are written in network byte order purely for wire compatibility.
func (h Header) marshal(now time.Time) []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = byte(h.Type)
	buf[1] = h.Id
	buf[2] = byte(h.Role)
	buf[3] = 0
	binary.BigEndian.PutUint16(buf[4:6], h.Size)
	binary.BigEndian.PutUint16(buf[6:8], 0)
	binary.BigEndian.PutUint32(buf[8:12], uint32(now.Unix()))
	binary.BigEndian.PutUint32(buf[12:16], uint32(now.Nanosecond()))
	return buf
}

func unmarshalHeader(buf []byte) Header {
	return Header{
		Type: Type(buf[0]),
		Id:   buf[1],
		Role: ttt.Role(buf[2]),
		Size: binary.BigEndian.Uint16(buf[4:6]),
	}
}

// Send writes a full packet (header + payload) to w, stamping the header
// with the current time and retrying on short writes up to retries times.
func Send(w io.Writer, h Header, payload []byte, retries int) error {
	h.Size = uint16(len(payload))
	buf := append(h.marshal(time.Now()), payload...)

	for len(buf) > 0 {
		n, err := w.Write(buf)
		if err != nil {
			return fmt.Errorf("proto: write: %w", err)
		}
		if n == len(buf) {
			return nil
		}
		buf = buf[n:]
		if retries <= 0 {
			return ErrShortWrite
		}
		retries--
	}
	return nil
}

// Recv reads exactly one packet from r: a 16-byte header, followed by
// Size payload bytes (nil if Size is 0). It returns ErrEOF if the
// connection is closed before any header bytes arrive, ErrShortRead if it
// closes mid-header or mid-payload, and a wrapped I/O error otherwise.
func Recv(r io.Reader) (Packet, error) {
	hdr := make([]byte, HeaderSize)
	n, err := io.ReadFull(r, hdr)
	switch {
	case err == io.EOF && n == 0:
		return Packet{}, ErrEOF
	case errors.Is(err, io.ErrUnexpectedEOF) || (err == io.EOF && n > 0):
		return Packet{}, ErrShortRead
	case err != nil:
		return Packet{}, fmt.Errorf("proto: read header: %w", err)
	}

	h := unmarshalHeader(hdr)
	if !h.Role.Valid() {
		return Packet{}, ErrBadRole
	}
	if h.Size == 0 {
		return Packet{Header: h}, nil
	}

	payload := make([]byte, h.Size)
	_, err = io.ReadFull(r, payload)
	switch {
	case errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF):
		return Packet{}, ErrShortRead
	case err != nil:
		return Packet{}, fmt.Errorf("proto: read payload: %w", err)
	}

	return Packet{Header: h, Payload: payload}, nil
}
