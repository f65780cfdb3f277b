package conn

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
)

// PoolOptions is the immutable pool configuration.
type PoolOptions struct {
	// Size is the maximum number of live connections, idle and
	// checked-out combined.
	Size int

	// WaitTimeout bounds how long Get blocks for a free connection
	// when the pool is at capacity. Zero means wait indefinitely.
	WaitTimeout time.Duration
}

// Pool is a bounded set of connections with exclusive checkout. Get
// hands out an idle connection, dials a new one while under capacity,
// or blocks up to the wait timeout. Put returns healthy connections to
// the idle set; broken ones are closed and dropped so a later Get can
// dial a replacement.
type Pool struct {
	connOpts Options
	opts     PoolOptions

	// slots holds one token per checked-out connection; its capacity
	// enforces idle+checked-out <= Size.
	slots chan struct{}

	mu     sync.Mutex
	idle   []*Connection
	closed bool
}

// NewPool creates a pool. Size values below 1 are treated as 1.
func NewPool(connOpts Options, opts PoolOptions) *Pool {
	if opts.Size < 1 {
		opts.Size = 1
	}
	return &Pool{
		connOpts: connOpts,
		opts:     opts,
		slots:    make(chan struct{}, opts.Size),
		idle:     make([]*Connection, 0, opts.Size),
	}
}

// Get checks out a connection for exclusive use. The caller must
// return it with Put exactly once.
func (p *Pool) Get(ctx context.Context) (*Connection, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	var expired <-chan time.Time
	if p.opts.WaitTimeout > 0 {
		timer := time.NewTimer(p.opts.WaitTimeout)
		defer timer.Stop()
		expired = timer.C
	}

	select {
	case p.slots <- struct{}{}:
	case <-expired:
		return nil, ErrPoolExhausted
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		<-p.slots
		return nil, ErrPoolClosed
	}
	var c *Connection
	if n := len(p.idle); n > 0 {
		c = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if c != nil {
		return c, nil
	}

	c, err := Connect(p.connOpts)
	if err != nil {
		<-p.slots
		return nil, err
	}
	return c, nil
}

// Put returns a connection to the pool. A broken connection never
// re-enters the idle set: it is closed and its slot freed, so the pool
// can open a fresh replacement on the next Get.
func (p *Pool) Put(c *Connection) {
	if c == nil {
		return
	}

	if c.Broken() {
		c.Close()
	} else {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			c.Close()
		} else {
			p.idle = append(p.idle, c)
			p.mu.Unlock()
		}
	}

	<-p.slots
}

// IdleCount returns the number of idle connections.
func (p *Pool) IdleCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// InUse returns the number of checked-out connections.
func (p *Pool) InUse() int {
	return len(p.slots)
}

// Close closes every idle connection and rejects further checkouts.
// Connections still checked out are closed by their holders via Put.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	idle := p.idle
	p.idle = nil
	p.mu.Unlock()

	var result error
	for _, c := range idle {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result
}
