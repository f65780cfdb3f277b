package conn

import (
	"github.com/danvales/redis-client-core/protocol"
)

// Pipeline batches commands on a connection without awaiting
// individual replies: commands go out immediately, replies are
// collected afterwards in submission order. The type itself carries no
// state; the caller tracks how many commands it queued.
type Pipeline struct{}

// Command writes one command without reading a reply. The connection
// must not be broken.
func (Pipeline) Command(c *Connection, cmd string, args ...string) error {
	if c.Broken() {
		return ErrBroken
	}
	return c.Send(cmd, args...)
}

// Exec reads exactly n queued replies off the wire, in submission
// order. Server error replies are returned in the batch, not as Go
// errors. If the server produces fewer than n replies before EOF or
// the command timeout, Exec fails and leaves the connection broken.
func (Pipeline) Exec(c *Connection, n int) ([]protocol.Reply, error) {
	replies := make([]protocol.Reply, 0, n)
	for i := 0; i < n; i++ {
		rep, err := c.Recv(false)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *rep)
	}
	return replies, nil
}

// Discard abandons queued replies by forcing a reconnect. Draining an
// unknown number of in-flight replies is slower and leaves more room
// for desynchronization than a clean reconnect.
func (Pipeline) Discard(c *Connection) error {
	return c.Reconnect()
}
