package client

import (
	"errors"
	"sync"

	ttt "github.com/TyuiX/TicTacToeServer"
	"github.com/TyuiX/TicTacToeServer/game"
)

// State is a position in an Invitation's lifecycle.
type State uint8

const (
	Open State = iota
	Accepted
	Closed
)

func (s State) String() string {
	switch s {
	case Open:
		return "open"
	case Accepted:
		return "accepted"
	case Closed:
		return "closed"
	default:
		return "invalid"
	}
}

// Errors returned by Invitation transitions.
var (
	ErrInvitationClosed = errors.New("invitation: already closed")
	ErrInvitationState  = errors.New("invitation: illegal transition for current state")
)

// Invitation is a two-party offer, and later holder, of one Game. The
// same instance is referenced from a slot in both peers' tables; it is
// only ever removed, never mutated back to an earlier state.
type Invitation struct {
	// Immutable for the lifetime of the Invitation; safe to read
	// without a lock.
	source, target         *Client
	sourceRole, targetRole ttt.Role

	mu    sync.Mutex
	state State
	game  *game.Game
}

// NewInvitation returns a fresh OPEN invitation between source and
// target. The caller is responsible for placing it in both peers' slot
// tables.
func NewInvitation(source, target *Client, sourceRole, targetRole ttt.Role) *Invitation {
	return &Invitation{
		source:     source,
		target:     target,
		sourceRole: sourceRole,
		targetRole: targetRole,
		state:      Open,
	}
}

// Source returns the Client that created the invitation.
func (inv *Invitation) Source() *Client { return inv.source }

// Target returns the Client that was invited.
func (inv *Invitation) Target() *Client { return inv.target }

// SourceRole returns the role assigned to the source.
func (inv *Invitation) SourceRole() ttt.Role { return inv.sourceRole }

// TargetRole returns the role assigned to the target.
func (inv *Invitation) TargetRole() ttt.Role { return inv.targetRole }

// RoleOf returns the role c plays in this invitation, or NONE if c is
// neither participant.
func (inv *Invitation) RoleOf(c *Client) ttt.Role {
	switch c {
	case inv.source:
		return inv.sourceRole
	case inv.target:
		return inv.targetRole
	default:
		return ttt.NONE
	}
}

// Peer returns the other participant.
func (inv *Invitation) Peer(c *Client) *Client {
	switch c {
	case inv.source:
		return inv.target
	case inv.target:
		return inv.source
	default:
		return nil
	}
}

// State returns a snapshot of the current lifecycle state.
func (inv *Invitation) State() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.state
}

// Game returns the invitation's Game. It is only non-nil once Accept
// has succeeded, and remains valid for the lifetime of the invitation.
func (inv *Invitation) Game() *game.Game {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return inv.game
}

// Accept transitions OPEN -> ACCEPTED, creating the Game.
func (inv *Invitation) Accept() error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	switch inv.state {
	case Open:
		inv.state = Accepted
		inv.game = game.New()
		return nil
	case Closed:
		return ErrInvitationClosed
	default:
		return ErrInvitationState
	}
}

// Close transitions the invitation to CLOSED: OPEN with role==NONE is a
// plain revoke/decline, ACCEPTED with role!=NONE resigns the game in
// favor of role's opponent. Any other combination fails.
func (inv *Invitation) Close(role ttt.Role) error {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	switch {
	case inv.state == Closed:
		return ErrInvitationClosed
	case inv.state == Open && role == ttt.NONE:
		inv.state = Closed
		return nil
	case inv.state == Accepted && role != ttt.NONE:
		if err := inv.game.Resign(role); err != nil {
			return err
		}
		inv.state = Closed
		return nil
	default:
		return ErrInvitationState
	}
}
