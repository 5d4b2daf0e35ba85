package agent

import "sync"

// TokenCell holds the bearer token used for silent notification actions.
//
// The application is the sole writer, via the agent's message handler;
// the push and dispatch subsystems only read. The cell starts empty and is
// reset whenever the agent restarts. An absent token is a valid state: it
// merely disables the silent-action capability, it is never surfaced as an
// error to the user.
type TokenCell struct {
	mu    sync.RWMutex
	token string
}

// Set replaces the held token. An empty token clears the cell.
func (c *TokenCell) Set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Token returns the held token, and whether one is held at all.
func (c *TokenCell) Token() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token, c.token != ""
}
