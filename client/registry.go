package client

import (
	"sync"

	"github.com/TyuiX/TicTacToeServer/player"
)

// ClientRegistry is the process-wide table of connected sessions. It
// owns the name-uniqueness check at login time and supports a clean
// shutdown that waits for every session to finish.
type ClientRegistry struct {
	players *player.Registry

	mu      sync.Mutex
	cond    *sync.Cond
	clients map[*Client]struct{}
}

// NewRegistry returns an empty ClientRegistry backed by players for
// identity lookups and rating storage.
func NewRegistry(players *player.Registry) *ClientRegistry {
	r := &ClientRegistry{
		players: players,
		clients: make(map[*Client]struct{}),
	}
	r.cond = sync.NewCond(&r.mu)
	return r
}

// Add registers a freshly accepted connection.
func (r *ClientRegistry) Add(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[c] = struct{}{}
}

// Remove unregisters c, waking any goroutine blocked in WaitForEmpty.
func (r *ClientRegistry) Remove(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, c)
	if len(r.clients) == 0 {
		r.cond.Broadcast()
	}
}

// login atomically verifies that no other registered Client is logged
// in under p.Name(), then binds p to c. Holding the registry lock for
// the whole check-and-bind keeps the Registry -> Client lock order
// intact and rules out two simultaneous logins racing under the same
// name.
func (r *ClientRegistry) login(c *Client, p *player.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for other := range r.clients {
		if other == c {
			continue
		}
		if other.Name() == p.Name() {
			return ErrNameTaken
		}
	}
	return c.bindLogin(p)
}

// LoginName registers (or reuses) the Player named name and binds it to
// c, the way a LOGIN packet's username payload is handled.
func (r *ClientRegistry) LoginName(c *Client, name string) error {
	if name == "" {
		return ErrBadName
	}
	return c.Login(r.players.Register(name))
}

// Lookup returns the logged-in Client named name, or nil.
func (r *ClientRegistry) Lookup(name string) *Client {
	if name == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for c := range r.clients {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// AllPlayers returns the Player bound to every currently connected
// Client, for a USERS listing. A Client that has not yet logged in
// contributes nothing.
func (r *ClientRegistry) AllPlayers() []*player.Player {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*player.Player, 0, len(r.clients))
	for c := range r.clients {
		if p := c.Player(); p != nil {
			out = append(out, p)
		}
	}
	return out
}

// WaitForEmpty blocks until every Client has been removed.
func (r *ClientRegistry) WaitForEmpty() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for len(r.clients) > 0 {
		r.cond.Wait()
	}
}

// ShutdownAll issues a read-shutdown on every connected Client, causing
// each session loop to observe EOF and tear itself down. It does not
// wait for them to finish; call WaitForEmpty for that.
func (r *ClientRegistry) ShutdownAll() {
	r.mu.Lock()
	snapshot := make([]*Client, 0, len(r.clients))
	for c := range r.clients {
		snapshot = append(snapshot, c)
	}
	r.mu.Unlock()

	for _, c := range snapshot {
		_ = c.CloseRead()
	}
}
