package hub

import (
	"errors"
	"sync"
	"sync/atomic"
)

var ErrClosed = errors.New("connection closed")

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

type Writer interface {
	Write(message []byte) error
	Close() error
}

var connectionIDs atomic.Uint64

// Connection is one client socket. It moves Connecting -> Authenticating -> Open -> Closed;
// Closed is reachable from every state and is final.
type Connection struct {
	ID     uint64
	Writer Writer

	state     atomic.Int32
	userID    atomic.Value
	tokenID   atomic.Value
	closeOnce sync.Once
}

func NewConnection(w Writer) *Connection {
	return &Connection{ID: connectionIDs.Add(1), Writer: w}
}

func (c *Connection) State() State {
	return State(c.state.Load())
}

// UserID is empty until the connection is opened.
func (c *Connection) UserID() string {
	id, _ := c.userID.Load().(string)
	return id
}

// BeginAuth moves a connecting socket into authentication.
func (c *Connection) BeginAuth() bool {
	return c.state.CompareAndSwap(int32(StateConnecting), int32(StateAuthenticating))
}

// Open marks an authenticated socket as usable for userID. tokenID is the id (jti) of the
// access token the socket authenticated with, so revoking that token can reach it.
func (c *Connection) Open(userID, tokenID string) bool {
	if !c.state.CompareAndSwap(int32(StateAuthenticating), int32(StateOpen)) {
		return false
	}
	c.userID.Store(userID)
	c.tokenID.Store(tokenID)
	return true
}

func (c *Connection) TokenID() string {
	id, _ := c.tokenID.Load().(string)
	return id
}

func (c *Connection) Send(message []byte) error {
	if c.State() == StateClosed {
		return ErrClosed
	}
	return c.Writer.Write(message)
}

// Close closes the writer once. It reports whether this call did the closing.
func (c *Connection) Close() bool {
	closed := false
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosed))
		_ = c.Writer.Close()
		closed = true
	})
	return closed
}
