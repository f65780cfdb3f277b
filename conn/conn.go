package conn

import (
	"net"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/danvales/redis-client-core/protocol"
)

const readBufferSize = 4096

// Options configures a single connection.
type Options struct {
	// TCP target. Ignored when Path is set.
	Host string
	Port int

	// Path is a Unix domain socket path. Takes precedence over
	// Host/Port when non-empty.
	Path string

	// Credentials for the AUTH handshake. User may be empty for
	// password-only authentication.
	User     string
	Password string

	// DB is selected after authentication when nonzero.
	DB int

	// ConnectTimeout bounds socket establishment, CommandTimeout each
	// read and write. Zero means no deadline.
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
}

// Network returns the dial network, "tcp" or "unix".
func (o *Options) Network() string {
	if o.Path != "" {
		return "unix"
	}
	return "tcp"
}

// Address returns the dial address for Network.
func (o *Options) Address() string {
	if o.Path != "" {
		return o.Path
	}
	return net.JoinHostPort(o.Host, strconv.Itoa(o.Port))
}

// Connection owns one socket plus the incremental protocol reader fed
// from it. A connection has a single logical owner at a time; it is
// not safe for concurrent use. After any I/O or protocol failure it is
// marked broken and refuses commands until Reconnect succeeds.
type Connection struct {
	opts    Options
	nc      net.Conn
	reader  *protocol.Reader
	writer  *protocol.Writer
	readBuf []byte
	broken  atomic.Bool
}

// Connect dials the target and performs the AUTH/SELECT handshake.
func Connect(opts Options) (*Connection, error) {
	c := &Connection{
		opts:    opts,
		readBuf: make([]byte, readBufferSize),
	}
	if err := c.dial(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Connection) dial() error {
	dialer := net.Dialer{Timeout: c.opts.ConnectTimeout}

	nc, err := dialer.Dial(c.opts.Network(), c.opts.Address())
	if err != nil {
		c.broken.Store(true)
		return c.wrapIOError("connect", err)
	}

	c.nc = nc
	c.reader = protocol.NewReader()
	c.writer = protocol.NewWriter(nc)
	c.broken.Store(false)

	if err := c.handshake(); err != nil {
		nc.Close()
		c.broken.Store(true)
		return err
	}

	return nil
}

// handshake authenticates and selects the configured database before
// the connection is handed to its owner.
func (c *Connection) handshake() error {
	if c.opts.Password != "" {
		var err error
		if c.opts.User != "" {
			err = c.roundTripOK("AUTH", c.opts.User, c.opts.Password)
		} else {
			err = c.roundTripOK("AUTH", c.opts.Password)
		}
		if err != nil {
			return err
		}
	}

	if c.opts.DB > 0 {
		if err := c.roundTripOK("SELECT", strconv.Itoa(c.opts.DB)); err != nil {
			return err
		}
	}

	return nil
}

func (c *Connection) roundTripOK(cmd string, args ...string) error {
	if err := c.Send(cmd, args...); err != nil {
		return err
	}
	rep, err := c.Recv(true)
	if err != nil {
		return err
	}
	return protocol.AsStatusOK(rep)
}

// Broken reports whether the connection has failed and must be
// reconnected before further commands.
func (c *Connection) Broken() bool {
	return c.broken.Load()
}

// Addr returns the configured remote address.
func (c *Connection) Addr() string {
	return c.opts.Address()
}

// Send serializes a command onto the wire without waiting for the
// reply. Write errors mark the connection broken.
func (c *Connection) Send(cmd string, args ...string) error {
	if c.Broken() {
		return ErrBroken
	}

	if t := c.opts.CommandTimeout; t > 0 {
		if err := c.nc.SetWriteDeadline(time.Now().Add(t)); err != nil {
			c.broken.Store(true)
			return c.wrapIOError("send", err)
		}
	}

	if err := c.writer.WriteCommand(cmd, args...); err != nil {
		c.broken.Store(true)
		return c.wrapIOError("send", err)
	}
	if err := c.writer.Flush(); err != nil {
		c.broken.Store(true)
		return c.wrapIOError("send", err)
	}

	return nil
}

// Recv blocks, bounded by the command timeout, until one complete
// reply is parsed. When handleErrReply is set, server error replies
// come back as typed Go errors (ReplyError or RedirectionError)
// instead of reply values; pipelines pass false so error replies stay
// in the batch. Timeouts, EOF, and malformed streams mark the
// connection broken.
func (c *Connection) Recv(handleErrReply bool) (*protocol.Reply, error) {
	if c.Broken() {
		return nil, ErrBroken
	}

	for {
		rep, err := c.reader.TryReply()
		if err != nil {
			c.broken.Store(true)
			return nil, err
		}
		if rep != nil {
			if handleErrReply && rep.IsError() {
				return nil, replyToError(rep)
			}
			return rep, nil
		}

		if t := c.opts.CommandTimeout; t > 0 {
			if err := c.nc.SetReadDeadline(time.Now().Add(t)); err != nil {
				c.broken.Store(true)
				return nil, c.wrapIOError("recv", err)
			}
		}

		n, err := c.nc.Read(c.readBuf)
		if n > 0 {
			c.reader.Feed(c.readBuf[:n])
		}
		if err != nil {
			c.broken.Store(true)
			return nil, c.wrapIOError("recv", err)
		}
	}
}

// RoundTrip sends one command and reads its reply.
func (c *Connection) RoundTrip(cmd string, args ...string) (*protocol.Reply, error) {
	if err := c.Send(cmd, args...); err != nil {
		return nil, err
	}
	return c.Recv(true)
}

// Reconnect tears the socket down and establishes a fresh one. The
// broken flag clears only on success.
func (c *Connection) Reconnect() error {
	if c.nc != nil {
		c.nc.Close()
		c.nc = nil
	}
	c.broken.Store(true)

	return c.dial()
}

// Close shuts the socket down. The connection is unusable afterwards
// unless Reconnect is called.
func (c *Connection) Close() error {
	c.broken.Store(true)
	if c.nc == nil {
		return nil
	}
	err := c.nc.Close()
	c.nc = nil
	return err
}

// CloseSocket closes the underlying socket without discarding the
// connection object, forcing any blocked Recv on another goroutine to
// return promptly. This is the cancellation hook subscription loops
// rely on.
func (c *Connection) CloseSocket() {
	c.broken.Store(true)
	if nc := c.nc; nc != nil {
		nc.Close()
	}
}

func (c *Connection) wrapIOError(op string, err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &TimeoutError{Op: op, Err: err}
	}
	return &ConnectionError{Addr: c.opts.Address(), Err: err}
}
