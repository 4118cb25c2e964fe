// Package client implements the per-connection session: login state,
// the invitation slot table, serialized packet sends, and the request
// handlers that cross-reference invitations, games, and peer clients.
package client

import (
	"errors"
	"net"
	"strconv"
	"sync"

	ttt "github.com/TyuiX/TicTacToeServer"
	"github.com/TyuiX/TicTacToeServer/player"
	"github.com/TyuiX/TicTacToeServer/proto"
)

// Errors returned by Client operations. All of them map to a NACK at
// the session layer; none of them tear down the connection.
var (
	ErrAlreadyLoggedIn    = errors.New("client: already logged in")
	ErrNotLoggedIn        = errors.New("client: not logged in")
	ErrNameTaken          = errors.New("client: name already logged in")
	ErrSlotTableFull      = errors.New("client: invitation slot table full")
	ErrInvitationNotFound = errors.New("client: no such invitation")
	ErrNotParticipant     = errors.New("client: not a participant in this invitation")
	ErrSelfInvite         = errors.New("client: cannot invite self")
	ErrBadRole            = errors.New("client: role must be FIRST or SECOND")
	ErrBadName            = errors.New("client: empty username")
)

// Client represents one TCP connection's session.
type Client struct {
	conn     net.Conn
	registry *ClientRegistry
	retries  int

	mu     sync.Mutex
	player *player.Player
	slots  []*Invitation

	sendMu sync.Mutex
}

// New returns an unregistered, logged-out Client wrapping conn. Callers
// should immediately pass it to ClientRegistry.Add.
func New(conn net.Conn, registry *ClientRegistry, maxClients uint, retries int) *Client {
	return &Client{
		conn:     conn,
		registry: registry,
		retries:  retries,
		slots:    make([]*Invitation, maxClients),
	}
}

// Player returns the bound Player, or nil while logged out.
func (c *Client) Player() *player.Player {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.player
}

// Name returns the bound Player's name, or "" while logged out. Used
// for logging and by the registry's name-uniqueness check.
func (c *Client) Name() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player == nil {
		return ""
	}
	return c.player.Name()
}

// Close shuts down the underlying connection. Safe to call more than
// once.
func (c *Client) Close() error {
	return c.conn.Close()
}

// CloseRead issues a read-shutdown on the connection, if it supports
// one, causing the session's blocking Recv to observe EOF without
// touching the write side. Used by ClientRegistry.ShutdownAll.
func (c *Client) CloseRead() error {
	type readCloser interface {
		CloseRead() error
	}
	if rc, ok := c.conn.(readCloser); ok {
		return rc.CloseRead()
	}
	return c.conn.Close()
}

// bindLogin completes the login started by ClientRegistry.Login, once
// the registry has already verified name uniqueness under its own
// lock. Exported only to the registry, never called directly.
func (c *Client) bindLogin(p *player.Player) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.player != nil {
		return ErrAlreadyLoggedIn
	}
	c.player = p
	return nil
}

// Login binds p to this connection. It fails if the connection is
// already logged in, or if the registry already has a Client logged in
// under p's name — both checked atomically by the registry.
func (c *Client) Login(p *player.Player) error {
	return c.registry.login(c, p)
}

// Logout resigns, revokes or declines every invitation this Client still holds,
// then unbinds its Player. It is best-effort over the slot table: a
// slot that another goroutine has already cleared is simply skipped.
func (c *Client) Logout() error {
	c.mu.Lock()
	if c.player == nil {
		c.mu.Unlock()
		return ErrNotLoggedIn
	}
	snapshot := make([]*Invitation, len(c.slots))
	copy(snapshot, c.slots)
	c.mu.Unlock()

	for _, inv := range snapshot {
		if inv == nil {
			continue
		}
		if inv.Game() != nil {
			_ = c.ResignGame(inv.RoleOf(c), inv)
		} else {
			_ = c.closeOpenInvitation(inv)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.player = nil
	return nil
}

// closeOpenInvitation closes an OPEN invitation regardless of which
// side c is on, sending the notification the peer expects (REVOKED if
// c is the source, DECLINED if c is the target). Used by Logout for
// every still-open slot.
func (c *Client) closeOpenInvitation(inv *Invitation) error {
	if inv.Source() == c {
		id, err := c.slotIndexOf(inv)
		if err != nil {
			return err
		}
		return c.RevokeInvitation(id)
	}
	id, err := c.slotIndexOf(inv)
	if err != nil {
		return err
	}
	return c.DeclineInvitation(id)
}

// addInvitation places inv in the lowest-indexed free slot.
func (c *Client) addInvitation(inv *Invitation) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.slots {
		if v == nil {
			c.slots[i] = inv
			return i, nil
		}
	}
	return 0, ErrSlotTableFull
}

// removeInvitation clears the slot holding inv, if any.
func (c *Client) removeInvitation(inv *Invitation) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.slots {
		if v == inv {
			c.slots[i] = nil
			return i, nil
		}
	}
	return 0, ErrInvitationNotFound
}

// slotInvitation returns the invitation at id.
func (c *Client) slotInvitation(id int) (*Invitation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if id < 0 || id >= len(c.slots) || c.slots[id] == nil {
		return nil, ErrInvitationNotFound
	}
	return c.slots[id], nil
}

// slotIndexOf returns the slot holding inv, without removing it.
func (c *Client) slotIndexOf(inv *Invitation) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, v := range c.slots {
		if v == inv {
			return i, nil
		}
	}
	return 0, ErrInvitationNotFound
}

// MakeInvitation creates an OPEN invitation from c to target with c
// playing sourceRole, places it in both slot tables, and notifies
// target. It returns c's local id for the new invitation.
func (c *Client) MakeInvitation(target *Client, sourceRole ttt.Role) (int, error) {
	if target == c {
		return 0, ErrSelfInvite
	}
	if sourceRole != ttt.FIRST && sourceRole != ttt.SECOND {
		return 0, ErrBadRole
	}
	targetRole := sourceRole.Other()

	inv := NewInvitation(c, target, sourceRole, targetRole)

	srcID, err := c.addInvitation(inv)
	if err != nil {
		return 0, err
	}
	tgtID, err := target.addInvitation(inv)
	if err != nil {
		_, _ = c.removeInvitation(inv)
		return 0, err
	}

	_ = target.sendPacket(proto.Header{Type: proto.INVITED, Id: uint8(tgtID), Role: targetRole}, nil)
	return srcID, nil
}

// RevokeInvitation closes the OPEN invitation at id, which c must have
// created, and notifies the target.
func (c *Client) RevokeInvitation(id int) error {
	inv, err := c.slotInvitation(id)
	if err != nil {
		return err
	}
	if inv.Source() != c {
		return ErrNotParticipant
	}
	if inv.State() != Open {
		return ErrInvitationState
	}
	if err := inv.Close(ttt.NONE); err != nil {
		return err
	}

	_, _ = c.removeInvitation(inv)
	tgtID, _ := inv.Target().removeInvitation(inv)
	_ = inv.Target().sendPacket(proto.Header{Type: proto.REVOKED, Id: uint8(tgtID)}, nil)
	return nil
}

// DeclineInvitation closes the OPEN invitation at id, which c must have
// been invited to, and notifies the source.
func (c *Client) DeclineInvitation(id int) error {
	inv, err := c.slotInvitation(id)
	if err != nil {
		return err
	}
	if inv.Target() != c {
		return ErrNotParticipant
	}
	if inv.State() != Open {
		return ErrInvitationState
	}
	if err := inv.Close(ttt.NONE); err != nil {
		return err
	}

	_, _ = c.removeInvitation(inv)
	srcID, _ := inv.Source().removeInvitation(inv)
	_ = inv.Source().sendPacket(proto.Header{Type: proto.DECLINED, Id: uint8(srcID)}, nil)
	return nil
}

// AcceptInvitation accepts the OPEN invitation at id, which c must have
// been invited to, starting the Game. It returns the payload that
// belongs on the session's own ACK: the initial board state when c (the
// target) moves first, or nil when the source moves first (in which
// case the source's ACCEPTED packet carries the state instead).
func (c *Client) AcceptInvitation(id int) ([]byte, error) {
	inv, err := c.slotInvitation(id)
	if err != nil {
		return nil, err
	}
	if inv.Target() != c {
		return nil, ErrNotParticipant
	}
	if err := inv.Accept(); err != nil {
		return nil, err
	}

	state := []byte(inv.Game().UnparseState())
	srcID, _ := inv.Source().slotIndexOf(inv)

	if inv.SourceRole() == ttt.FIRST {
		_ = inv.Source().sendPacket(proto.Header{Type: proto.ACCEPTED, Id: uint8(srcID), Role: inv.SourceRole()}, state)
		return nil, nil
	}

	_ = inv.Source().sendPacket(proto.Header{Type: proto.ACCEPTED, Id: uint8(srcID), Role: inv.SourceRole()}, nil)
	return state, nil
}

// ResignGame resigns the ACCEPTED game held by inv on behalf of role
// (c's own role in that invitation), posts the Elo result, closes the
// invitation, removes it from both slot tables, and notifies the
// opponent.
func (c *Client) ResignGame(role ttt.Role, inv *Invitation) error {
	if inv.State() != Accepted {
		return ErrInvitationState
	}
	if inv.RoleOf(c) != role || role == ttt.NONE {
		return ErrNotParticipant
	}

	opponent := inv.Peer(c)
	player.PostResult(opponent.Player(), c.Player(), player.P1_WON)

	if err := inv.Close(role); err != nil {
		return err
	}

	_, _ = c.removeInvitation(inv)
	oppID, _ := opponent.removeInvitation(inv)
	_ = opponent.sendPacket(proto.Header{Type: proto.RESIGNED, Id: uint8(oppID)}, nil)
	return nil
}

// ResignGameID is the public, slot-id based entry point used by the
// session loop for a RESIGN packet.
func (c *Client) ResignGameID(id int) error {
	inv, err := c.slotInvitation(id)
	if err != nil {
		return err
	}
	role := inv.RoleOf(c)
	if role == ttt.NONE {
		return ErrNotParticipant
	}
	return c.ResignGame(role, inv)
}

// MakeMove parses and applies moveStr as c's move in the ACCEPTED game
// at id. If the game ends, ENDED is sent to both participants and
// ended is true (the session loop must not additionally ACK/NACK).
// Otherwise MOVED is sent to the opponent and ended is false, leaving
// the session loop to ACK the mover.
func (c *Client) MakeMove(id int, moveStr string) (ended bool, err error) {
	inv, err := c.slotInvitation(id)
	if err != nil {
		return false, err
	}
	if inv.State() != Accepted {
		return false, ErrInvitationState
	}
	role := inv.RoleOf(c)
	if role == ttt.NONE {
		return false, ErrNotParticipant
	}

	g := inv.Game()
	mv, err := g.ParseMove(role, moveStr)
	if err != nil {
		return false, err
	}
	if err := g.Apply(mv); err != nil {
		return false, err
	}

	opponent := inv.Peer(c)

	if !g.Over() {
		oppID, _ := opponent.slotIndexOf(inv)
		_ = opponent.sendPacket(proto.Header{Type: proto.MOVED, Id: uint8(oppID), Role: role}, []byte(g.UnparseState()))
		return false, nil
	}

	switch winner := g.Winner(); winner {
	case role:
		player.PostResult(c.Player(), opponent.Player(), player.P1_WON)
	case ttt.NONE:
		player.PostResult(c.Player(), opponent.Player(), player.DRAW)
	default:
		player.PostResult(opponent.Player(), c.Player(), player.P1_WON)
	}

	selfID, _ := c.removeInvitation(inv)
	oppID, _ := opponent.removeInvitation(inv)
	_ = c.sendPacket(proto.Header{Type: proto.ENDED, Id: uint8(selfID)}, nil)
	_ = opponent.sendPacket(proto.Header{Type: proto.ENDED, Id: uint8(oppID)}, nil)
	return true, nil
}

// Users renders every currently logged-in player as "name\trating\n"
// lines, for a USERS request.
func (c *Client) Users() []byte {
	var buf []byte
	for _, p := range c.registry.AllPlayers() {
		buf = append(buf, []byte(p.Name())...)
		buf = append(buf, '\t')
		buf = append(buf, []byte(strconv.Itoa(p.Rating()))...)
		buf = append(buf, '\n')
	}
	return buf
}

// sendPacket serializes writes on the socket via the send lock; the
// timestamp is stamped by proto.Send itself.
func (c *Client) sendPacket(h proto.Header, payload []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return proto.Send(c.conn, h, payload, c.retries)
}

// SendAck sends an ACK carrying id and an optional payload.
func (c *Client) SendAck(id uint8, payload []byte) error {
	return c.sendPacket(proto.Header{Type: proto.ACK, Id: id}, payload)
}

// SendNack sends a bare NACK.
func (c *Client) SendNack() error {
	return c.sendPacket(proto.Header{Type: proto.NACK}, nil)
}
