package client

import "github.com/TyuiX/TicTacToeServer/player"

func newTestPlayerRegistry() *player.Registry {
	return player.NewRegistry(player.StartRating)
}

// loginAs registers name with reg's underlying Player registry and
// binds it to c, bypassing the wire protocol for tests that only care
// about post-login behavior.
func loginAs(reg *ClientRegistry, c *Client, name string) error {
	return reg.LoginName(c, name)
}
