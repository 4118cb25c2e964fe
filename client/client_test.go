package client

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ttt "github.com/TyuiX/TicTacToeServer"
	"github.com/TyuiX/TicTacToeServer/proto"
)

// wired bundles a Client with the remote end of its connection, so a
// test can observe every packet the server sends it.
type wired struct {
	client *Client
	wire   net.Conn
}

// newWired hands the Client one end of a loopback TCP connection and
// keeps the other end for the test to read from. A real socket (rather
// than net.Pipe) gives the server side's writes kernel-buffered
// delivery, so a Client method that sends a notification can complete
// without the test having to read it concurrently.
func newWired(t *testing.T, reg *ClientRegistry) wired {
	t.Helper()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	acceptErr := make(chan error, 1)
	var server net.Conn
	go func() {
		var err error
		server, err = ln.Accept()
		acceptErr <- err
	}()

	wireConn, err := net.Dial("tcp", ln.Addr().String())
	require.NoError(t, err)
	require.NoError(t, <-acceptErr)

	t.Cleanup(func() { _ = server.Close(); _ = wireConn.Close() })

	c := New(server, reg, 8, 0)
	reg.Add(c)
	return wired{client: c, wire: wireConn}
}

// recv reads exactly one packet off w's wire, failing the test if none
// arrives within a second.
func (w wired) recv(t *testing.T) proto.Packet {
	t.Helper()
	_ = w.wire.SetReadDeadline(time.Now().Add(time.Second))
	pkt, err := proto.Recv(w.wire)
	require.NoError(t, err)
	return pkt
}

func newLoggedIn(t *testing.T, reg *ClientRegistry, name string) wired {
	t.Helper()
	w := newWired(t, reg)
	require.NoError(t, loginAs(reg, w.client, name))
	return w
}

func TestLoginRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	a := newLoggedIn(t, reg, "alice")
	b := newWired(t, reg)

	assert.ErrorIs(t, loginAs(reg, b.client, "alice"), ErrNameTaken)
	assert.Equal(t, "alice", a.client.Name())
}

func TestLoginRejectsAlreadyLoggedIn(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	a := newLoggedIn(t, reg, "alice")
	assert.ErrorIs(t, a.client.Login(a.client.Player()), ErrAlreadyLoggedIn)
}

func TestMakeInvitationNotifiesTarget(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")
	bob := newLoggedIn(t, reg, "bob")

	srcID, err := alice.client.MakeInvitation(bob.client, ttt.FIRST)
	require.NoError(t, err)
	assert.Equal(t, 0, srcID)

	pkt := bob.recv(t)
	assert.Equal(t, proto.INVITED, pkt.Type)
	assert.Equal(t, ttt.SECOND, pkt.Role)
}

func TestMakeInvitationRejectsSelf(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")

	_, err := alice.client.MakeInvitation(alice.client, ttt.FIRST)
	assert.ErrorIs(t, err, ErrSelfInvite)
}

func TestRevokeInvitationRequiresSource(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")
	bob := newLoggedIn(t, reg, "bob")

	srcID, err := alice.client.MakeInvitation(bob.client, ttt.FIRST)
	require.NoError(t, err)
	bob.recv(t) // drain INVITED

	assert.ErrorIs(t, bob.client.RevokeInvitation(0), ErrNotParticipant)
	require.NoError(t, alice.client.RevokeInvitation(srcID))

	pkt := bob.recv(t)
	assert.Equal(t, proto.REVOKED, pkt.Type)
}

func TestAcceptInvitationFirstMoverIsSource(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")
	bob := newLoggedIn(t, reg, "bob")

	_, err := alice.client.MakeInvitation(bob.client, ttt.FIRST)
	require.NoError(t, err)
	invited := bob.recv(t)

	state, err := bob.client.AcceptInvitation(int(invited.Id))
	require.NoError(t, err)
	assert.Empty(t, state) // source moves first: target's ack carries nothing

	accepted := alice.recv(t)
	assert.Equal(t, proto.ACCEPTED, accepted.Type)
	assert.NotEmpty(t, accepted.Payload)
}

func TestAcceptInvitationFirstMoverIsTarget(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")
	bob := newLoggedIn(t, reg, "bob")

	_, err := alice.client.MakeInvitation(bob.client, ttt.SECOND)
	require.NoError(t, err)
	invited := bob.recv(t)

	state, err := bob.client.AcceptInvitation(int(invited.Id))
	require.NoError(t, err)
	assert.NotEmpty(t, state) // target moves first: its own ack carries the board

	accepted := alice.recv(t)
	assert.Equal(t, proto.ACCEPTED, accepted.Type)
	assert.Empty(t, accepted.Payload)
}

func TestMakeMoveEndsGameAndUpdatesRatings(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice") // FIRST, moves first
	bob := newLoggedIn(t, reg, "bob")

	_, err := alice.client.MakeInvitation(bob.client, ttt.FIRST)
	require.NoError(t, err)
	invited := bob.recv(t)

	_, err = bob.client.AcceptInvitation(int(invited.Id))
	require.NoError(t, err)
	alice.recv(t) // ACCEPTED

	// alice: 1, bob: 5, alice: 2, bob: 6, alice: 3 -> alice wins top row.
	for _, mv := range []struct {
		mover wired
		cell  string
	}{
		{alice, "1"}, {bob, "5"}, {alice, "2"}, {bob, "6"}, {alice, "3"},
	} {
		ended, err := mv.mover.client.MakeMove(0, mv.cell)
		require.NoError(t, err)
		if mv.mover.client == alice.client && mv.cell == "3" {
			assert.True(t, ended)
		} else if !ended {
			// drain the MOVED notification sent to the opponent.
			if mv.mover.client == alice.client {
				bob.recv(t)
			} else {
				alice.recv(t)
			}
		}
	}

	aliceEnded := alice.recv(t)
	bobEnded := bob.recv(t)
	assert.Equal(t, proto.ENDED, aliceEnded.Type)
	assert.Equal(t, proto.ENDED, bobEnded.Type)

	assert.Greater(t, alice.client.Player().Rating(), 1500)
	assert.Less(t, bob.client.Player().Rating(), 1500)
}

func TestLogoutResignsAcceptedGames(t *testing.T) {
	reg := NewRegistry(newTestPlayerRegistry())
	alice := newLoggedIn(t, reg, "alice")
	bob := newLoggedIn(t, reg, "bob")

	_, err := alice.client.MakeInvitation(bob.client, ttt.FIRST)
	require.NoError(t, err)
	invited := bob.recv(t)

	_, err = bob.client.AcceptInvitation(int(invited.Id))
	require.NoError(t, err)
	alice.recv(t) // ACCEPTED

	require.NoError(t, alice.client.Logout())

	pkt := bob.recv(t)
	assert.Equal(t, proto.RESIGNED, pkt.Type)
	assert.Greater(t, bob.client.Player().Rating(), 1500)
}
