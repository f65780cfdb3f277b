package conn

import (
	"github.com/danvales/redis-client-core/protocol"
)

const statusQueued = "QUEUED"

// Transaction wraps the pipeline queuing model in MULTI/EXEC. The
// transaction opens lazily on the first Command and is closed by Exec
// or Discard. In the default mode each command's QUEUED
// acknowledgement is read immediately so a malformed command fails
// before EXEC; in piped mode all acknowledgements are deferred to Exec
// and the whole batch costs one network round trip.
type Transaction struct {
	piped  bool
	inTx   bool
	queued int
}

// NewTransaction creates a transaction. Piped transactions defer the
// MULTI/QUEUED acknowledgements until Exec.
func NewTransaction(piped bool) *Transaction {
	return &Transaction{piped: piped}
}

// Command queues one command in the transaction, opening it with MULTI
// first when needed. Reopening an already-open transaction is a no-op.
func (t *Transaction) Command(c *Connection, cmd string, args ...string) error {
	if c.Broken() {
		return ErrBroken
	}

	if !t.inTx {
		if err := t.open(c); err != nil {
			return err
		}
	}

	if err := c.Send(cmd, args...); err != nil {
		return err
	}

	if !t.piped {
		if err := t.queuedReply(c); err != nil {
			return err
		}
	}
	t.queued++
	return nil
}

// Exec issues EXEC after n queued commands and returns the batched
// reply array in submission order. A nil result with nil error means
// the transaction was aborted by the server (WATCH conflict).
func (t *Transaction) Exec(c *Connection, n int) ([]protocol.Reply, error) {
	defer t.close()

	if t.piped {
		// MULTI's OK plus one QUEUED per command.
		for i := 0; i < n+1; i++ {
			if err := t.queuedReply(c); err != nil {
				return nil, err
			}
		}
	}

	if err := c.Send("EXEC"); err != nil {
		return nil, err
	}
	rep, err := c.Recv(true)
	if err != nil {
		return nil, err
	}

	if rep.Nil() {
		return nil, nil
	}
	if rep.Type != protocol.TypeArray {
		return nil, &protocol.Error{Message: "expect ARRAY reply from EXEC, got " + rep.Type.String()}
	}
	return rep.Elems, nil
}

// Discard abandons the open transaction. On a healthy connection it
// issues DISCARD; a broken connection gets reconnected instead since
// the server-side queue died with the session.
func (t *Transaction) Discard(c *Connection) error {
	defer t.close()

	if !t.inTx {
		return nil
	}
	if c.Broken() {
		return c.Reconnect()
	}

	if t.piped {
		// The deferred MULTI OK and QUEUED acknowledgements are of
		// unknown count from the server's perspective only after
		// DISCARD; a reconnect is the safe way out.
		return c.Reconnect()
	}

	if err := c.Send("DISCARD"); err != nil {
		return c.Reconnect()
	}
	rep, err := c.Recv(true)
	if err != nil {
		return err
	}
	return protocol.AsStatusOK(rep)
}

// InTransaction reports whether a batch is currently open.
func (t *Transaction) InTransaction() bool {
	return t.inTx
}

// Queued returns the number of commands queued since the transaction
// opened.
func (t *Transaction) Queued() int {
	return t.queued
}

func (t *Transaction) open(c *Connection) error {
	if err := c.Send("MULTI"); err != nil {
		return err
	}
	t.inTx = true

	if !t.piped {
		rep, err := c.Recv(true)
		if err != nil {
			return err
		}
		return protocol.AsStatusOK(rep)
	}
	return nil
}

// queuedReply reads one server-side queuing acknowledgement. Both OK
// (for MULTI) and QUEUED are status replies; anything else means the
// queue is out of step.
func (t *Transaction) queuedReply(c *Connection) error {
	rep, err := c.Recv(true)
	if err != nil {
		return err
	}
	if rep.Type != protocol.TypeSimpleString {
		return &protocol.Error{Message: "expect QUEUED reply, got " + rep.Type.String()}
	}
	return nil
}

func (t *Transaction) close() {
	t.inTx = false
	t.queued = 0
}
