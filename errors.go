package redisclient

import (
	"errors"

	"github.com/danvales/redis-client-core/conn"
)

// Error types for specific failure scenarios
var (
	// ErrClosed indicates the client has been closed
	ErrClosed = errors.New("client is closed")

	// ErrInvalidConfig indicates invalid configuration options
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = conn.ErrTimeout

	// ErrPoolExhausted indicates no connection became free within the
	// pool wait timeout
	ErrPoolExhausted = conn.ErrPoolExhausted
)

// Typed errors surfaced by commands. All originate in the conn package;
// they are aliased here so callers only need this package for errors.As.
type (
	// ConnectionError wraps a socket-level failure
	ConnectionError = conn.ConnectionError

	// TimeoutError wraps a deadline expiry; errors.Is(err, ErrTimeout)
	// holds for it
	TimeoutError = conn.TimeoutError

	// ReplyError is an error reply from the server; the connection
	// stays healthy
	ReplyError = conn.ReplyError

	// RedirectionError is a parsed MOVED or ASK reply
	RedirectionError = conn.RedirectionError
)
