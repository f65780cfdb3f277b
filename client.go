package redisclient

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/danvales/redis-client-core/conn"
	"github.com/danvales/redis-client-core/protocol"
)

// Client is a pooled Redis client. Methods are safe for concurrent use;
// each command checks a connection out of the pool for its duration.
type Client struct {
	config *config
	pool   *conn.Pool

	mu     sync.Mutex
	closed bool

	subscribers []*Subscriber
}

// New creates a new Client with the given options
//
// No connection is established until the first command runs.
//
// Example:
//
//	client, err := redisclient.New(
//		redisclient.WithAddr("localhost", 6379),
//		redisclient.WithPoolSize(4),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//
// Since: v1.0.0
func New(opts ...Option) (*Client, error) {
	cfg := defaultConfig()

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	pool := conn.NewPool(cfg.connOptions(), conn.PoolOptions{
		Size:        cfg.poolSize,
		WaitTimeout: cfg.poolWaitTimeout,
	})

	return &Client{
		config: cfg,
		pool:   pool,
	}, nil
}

// Close stops all subscribers and closes every pooled connection.
// Commands issued afterwards fail with ErrClosed.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	subs := c.subscribers
	c.subscribers = nil
	c.mu.Unlock()

	for _, s := range subs {
		s.Stop()
	}
	return c.pool.Close()
}

// Do sends an arbitrary command and returns the raw reply. Server error
// replies come back as *ReplyError or *RedirectionError.
func (c *Client) Do(ctx context.Context, cmd string, args ...string) (*protocol.Reply, error) {
	return c.do(ctx, cmd, args...)
}

// Ping checks connectivity with a PING round trip.
func (c *Client) Ping(ctx context.Context) error {
	rep, err := c.do(ctx, "PING")
	if err != nil {
		return err
	}
	_, err = protocol.AsString(rep)
	return err
}

// Get fetches a key. The boolean is false when the key does not exist.
func (c *Client) Get(ctx context.Context, key string) (string, bool, error) {
	rep, err := c.do(ctx, "GET", key)
	if err != nil {
		return "", false, err
	}
	if rep.Nil() {
		return "", false, nil
	}
	s, err := protocol.AsString(rep)
	if err != nil {
		return "", false, err
	}
	return s, true, nil
}

// SetCondition restricts when a Set takes effect.
type SetCondition string

const (
	// SetAlways writes unconditionally.
	SetAlways SetCondition = ""

	// SetIfNotExists writes only when the key is absent (NX).
	SetIfNotExists SetCondition = "NX"

	// SetIfExists writes only when the key is present (XX).
	SetIfExists SetCondition = "XX"
)

// SetOptions modifies a Set command.
type SetOptions struct {
	// TTL expires the key after the duration when positive (PX).
	TTL time.Duration

	// Condition gates the write (NX/XX).
	Condition SetCondition
}

// Set stores a value. The boolean mirrors the server outcome: true when
// the value was written, false when a condition such as NX rejected it.
func (c *Client) Set(ctx context.Context, key, value string) (bool, error) {
	return c.SetWithOptions(ctx, key, value, SetOptions{})
}

// SetNX stores a value only when the key does not exist.
func (c *Client) SetNX(ctx context.Context, key, value string) (bool, error) {
	return c.SetWithOptions(ctx, key, value, SetOptions{Condition: SetIfNotExists})
}

// SetWithOptions stores a value with an optional TTL and write
// condition.
func (c *Client) SetWithOptions(ctx context.Context, key, value string, opts SetOptions) (bool, error) {
	args := []string{key, value}
	if opts.TTL > 0 {
		args = append(args, "PX", strconv.FormatInt(opts.TTL.Milliseconds(), 10))
	}
	if opts.Condition != SetAlways {
		args = append(args, string(opts.Condition))
	}
	return c.setWith(ctx, "SET", args...)
}

func (c *Client) setWith(ctx context.Context, cmd string, args ...string) (bool, error) {
	rep, err := c.do(ctx, cmd, args...)
	if err != nil {
		return false, err
	}
	if err := protocol.RewriteSetReply(rep); err != nil {
		return false, err
	}
	return rep.Integer == 1, nil
}

// Del removes keys and returns how many existed.
func (c *Client) Del(ctx context.Context, keys ...string) (int64, error) {
	return c.intCommand(ctx, "DEL", keys...)
}

// Exists returns how many of the given keys exist.
func (c *Client) Exists(ctx context.Context, keys ...string) (int64, error) {
	return c.intCommand(ctx, "EXISTS", keys...)
}

// Incr increments a counter key and returns the new value.
func (c *Client) Incr(ctx context.Context, key string) (int64, error) {
	return c.intCommand(ctx, "INCR", key)
}

// TTL returns a key's remaining time to live. The boolean is false when
// the key does not exist or carries no expiry.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, bool, error) {
	secs, err := c.intCommand(ctx, "TTL", key)
	if err != nil {
		return 0, false, err
	}
	if secs < 0 {
		return 0, false, nil
	}
	return time.Duration(secs) * time.Second, true, nil
}

// Publish posts a message to a channel and returns the receiver count.
func (c *Client) Publish(ctx context.Context, channel, payload string) (int64, error) {
	return c.intCommand(ctx, "PUBLISH", channel, payload)
}

func (c *Client) intCommand(ctx context.Context, cmd string, args ...string) (int64, error) {
	rep, err := c.do(ctx, cmd, args...)
	if err != nil {
		return 0, err
	}
	return protocol.AsInt(rep)
}

// Pipeline returns an empty command batch bound to this client.
func (c *Client) Pipeline() *Pipeline {
	return &Pipeline{client: c}
}

// Tx checks a connection out of the pool and opens a MULTI/EXEC
// transaction on it. The connection is held until Exec or Discard. In
// piped mode command acknowledgements are deferred to Exec, trading
// queue-time error detection for fewer round trips.
func (c *Client) Tx(ctx context.Context, piped bool) (*Tx, error) {
	cn, err := c.checkout(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{
		client: c,
		conn:   cn,
		tx:     conn.NewTransaction(piped),
	}, nil
}

// Subscribe starts a subscriber on a dedicated connection and invokes
// handler for every message received on the given channels. Channel
// names containing glob metacharacters subscribe as patterns. The
// subscriber reconnects with exponential backoff until Stop is called.
func (c *Client) Subscribe(handler func(Message), channels ...string) (*Subscriber, error) {
	if len(channels) == 0 || handler == nil {
		return nil, ErrInvalidConfig
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	s := newSubscriber(c.config, channels, handler)
	c.subscribers = append(c.subscribers, s)
	c.mu.Unlock()

	if err := s.Start(); err != nil {
		c.removeSubscriber(s)
		return nil, err
	}
	return s, nil
}

func (c *Client) removeSubscriber(s *Subscriber) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, sub := range c.subscribers {
		if sub == s {
			c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
			return
		}
	}
}

// do runs one command on a pooled connection.
func (c *Client) do(ctx context.Context, cmd string, args ...string) (*protocol.Reply, error) {
	cn, err := c.checkout(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	rep, err := cn.RoundTrip(cmd, args...)
	c.pool.Put(cn)

	c.observe(cmd, time.Since(start), err)
	return rep, err
}

func (c *Client) checkout(ctx context.Context) (*conn.Connection, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.mu.Unlock()

	cn, err := c.pool.Get(ctx)
	if err != nil {
		if c.config.metrics != nil {
			c.config.metrics.RecordError("checkout")
		}
		return nil, err
	}
	return cn, nil
}

func (c *Client) observe(cmd string, d time.Duration, err error) {
	if c.config.metrics != nil {
		c.config.metrics.RecordCommand(cmd, d)
		if err != nil {
			status, _ := Report(err)
			c.config.metrics.RecordError(status.String())
		}
	}
	if err != nil {
		c.config.logger.Debug("command failed",
			Field{Key: "cmd", Value: cmd},
			Field{Key: "error", Value: err},
		)
	}
}

// Pipeline batches commands and sends them in one burst, reading all
// replies afterwards. Server error replies stay in the returned batch;
// only transport failures abort it.
type Pipeline struct {
	client *Client
	cmds   [][]string
}

// Command appends a command to the batch.
func (p *Pipeline) Command(cmd string, args ...string) *Pipeline {
	entry := make([]string, 0, len(args)+1)
	entry = append(entry, cmd)
	entry = append(entry, args...)
	p.cmds = append(p.cmds, entry)
	return p
}

// Len returns the number of buffered commands.
func (p *Pipeline) Len() int {
	return len(p.cmds)
}

// Exec flushes the batch on one pooled connection and returns the
// replies in command order. The batch is cleared regardless of outcome.
func (p *Pipeline) Exec(ctx context.Context) ([]protocol.Reply, error) {
	cmds := p.cmds
	p.cmds = nil
	if len(cmds) == 0 {
		return nil, nil
	}

	cn, err := p.client.checkout(ctx)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	var pipe conn.Pipeline
	for _, entry := range cmds {
		if err := pipe.Command(cn, entry[0], entry[1:]...); err != nil {
			p.client.pool.Put(cn)
			p.client.observe("pipeline", time.Since(start), err)
			return nil, err
		}
	}

	replies, err := pipe.Exec(cn, len(cmds))
	p.client.pool.Put(cn)
	p.client.observe("pipeline", time.Since(start), err)
	return replies, err
}

// Tx is an open MULTI/EXEC transaction holding one pooled connection.
type Tx struct {
	client *Client
	conn   *conn.Connection
	tx     *conn.Transaction
	done   bool
}

// Command queues a command inside the transaction. In non-piped mode a
// queue-time rejection from the server surfaces here, before Exec.
func (t *Tx) Command(cmd string, args ...string) error {
	if t.done {
		return ErrClosed
	}
	err := t.tx.Command(t.conn, cmd, args...)
	if err != nil {
		t.release(err)
	}
	return err
}

// Exec commits the transaction and returns the queued commands'
// replies. A nil slice with nil error means a WATCH guard aborted the
// transaction. The connection returns to the pool either way.
func (t *Tx) Exec() ([]protocol.Reply, error) {
	if t.done {
		return nil, ErrClosed
	}
	n := t.tx.Queued()
	replies, err := t.tx.Exec(t.conn, n)
	t.release(err)
	return replies, err
}

// Discard abandons the transaction and returns the connection.
func (t *Tx) Discard() error {
	if t.done {
		return nil
	}
	err := t.tx.Discard(t.conn)
	t.release(err)
	return err
}

func (t *Tx) release(opErr error) {
	if t.done {
		return
	}
	t.done = true
	if opErr != nil && !t.conn.Broken() {
		// Any failure may leave an open server-side MULTI or unread
		// acknowledgements on the socket; only a reconnect guarantees
		// the next checkout starts on a clean reply stream.
		t.conn.Reconnect()
	}
	t.client.pool.Put(t.conn)
}
