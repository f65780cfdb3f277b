package conn

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/danvales/redis-client-core/protocol"
)

// Error types for specific failure scenarios
var (
	// ErrBroken indicates the connection has seen an I/O or protocol
	// failure and must be reconnected before reuse
	ErrBroken = errors.New("connection is broken")

	// ErrClosed indicates the connection has been closed
	ErrClosed = errors.New("connection is closed")

	// ErrTimeout indicates a connect or command deadline expired
	ErrTimeout = errors.New("operation timed out")

	// ErrPoolExhausted indicates no connection became available within
	// the pool wait timeout
	ErrPoolExhausted = errors.New("connection pool exhausted")

	// ErrPoolClosed indicates the pool has been closed
	ErrPoolClosed = errors.New("connection pool is closed")
)

// ConnectionError represents a socket-level failure talking to addr.
type ConnectionError struct {
	Addr string
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection error to %s: %v", e.Addr, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TimeoutError marks an operation that exceeded its deadline. It
// matches ErrTimeout under errors.Is, so callers can distinguish
// timeouts from generic I/O failures.
type TimeoutError struct {
	Op  string
	Err error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out: %v", e.Op, e.Err)
}

func (e *TimeoutError) Unwrap() error {
	return e.Err
}

func (e *TimeoutError) Is(target error) bool {
	return target == ErrTimeout
}

// ReplyError is an error reply returned by the server. The connection
// itself is still healthy when one is returned.
type ReplyError struct {
	Message string
}

func (e *ReplyError) Error() string {
	return e.Message
}

// RedirectionError is a cluster redirection reply (MOVED or ASK): the
// key's slot is served by another node. The core surfaces the parsed
// {slot, node} pair; acting on it is the caller's business.
type RedirectionError struct {
	Kind string // "MOVED" or "ASK"
	Slot uint64
	Host string
	Port int
}

func (e *RedirectionError) Error() string {
	return fmt.Sprintf("%s %d %s:%d", e.Kind, e.Slot, e.Host, e.Port)
}

// ParseRedirection parses the "<slot> <host>:<port>" payload of a
// redirection reply. A message missing the space or the colon, or with
// the colon before the space, is malformed and yields a protocol
// error.
func ParseRedirection(kind, msg string) (*RedirectionError, error) {
	spacePos := strings.Index(msg, " ")
	colonPos := strings.Index(msg, ":")
	if spacePos < 0 || colonPos < 0 || colonPos < spacePos {
		return nil, &protocol.Error{Message: "invalid redirection message: " + msg}
	}

	slot, err := strconv.ParseUint(msg[:spacePos], 10, 64)
	if err != nil {
		return nil, &protocol.Error{Message: "invalid redirection slot: " + msg}
	}
	host := msg[spacePos+1 : colonPos]
	port, err := strconv.Atoi(msg[colonPos+1:])
	if err != nil {
		return nil, &protocol.Error{Message: "invalid redirection port: " + msg}
	}

	return &RedirectionError{Kind: kind, Slot: slot, Host: host, Port: port}, nil
}

// replyToError converts a server error reply into a typed Go error,
// upgrading MOVED/ASK replies into RedirectionError.
func replyToError(rep *protocol.Reply) error {
	msg := rep.ErrorText()

	for _, kind := range []string{"MOVED ", "ASK "} {
		if strings.HasPrefix(msg, kind) {
			redir, err := ParseRedirection(strings.TrimSuffix(kind, " "), msg[len(kind):])
			if err != nil {
				return err
			}
			return redir
		}
	}

	return &ReplyError{Message: msg}
}
