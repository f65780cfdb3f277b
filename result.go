package redisclient

import (
	"errors"

	"github.com/danvales/redis-client-core/conn"
	"github.com/danvales/redis-client-core/protocol"
)

// Status classifies a command outcome for callers that report results
// upward instead of branching on error types.
type Status int

const (
	// StatusOK means the command completed.
	StatusOK Status = iota

	// StatusTimeout means a deadline expired before the reply arrived.
	StatusTimeout

	// StatusConnectionLost means the socket failed; the connection was
	// marked broken.
	StatusConnectionLost

	// StatusServerError means the server answered with an error reply.
	StatusServerError

	// StatusMoved means the server redirected the key to another node.
	StatusMoved

	// StatusFailed covers every other failure, including protocol
	// violations and a closed client.
	StatusFailed
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusTimeout:
		return "timeout"
	case StatusConnectionLost:
		return "connection-lost"
	case StatusServerError:
		return "server-error"
	case StatusMoved:
		return "moved"
	default:
		return "failed"
	}
}

// Report maps an error returned by any client operation to a Status and
// a human-readable detail string. A nil error reports StatusOK.
func Report(err error) (Status, string) {
	if err == nil {
		return StatusOK, ""
	}

	var redir *conn.RedirectionError
	if errors.As(err, &redir) {
		return StatusMoved, redir.Error()
	}

	var replyErr *conn.ReplyError
	if errors.As(err, &replyErr) {
		return StatusServerError, replyErr.Message
	}

	if errors.Is(err, conn.ErrTimeout) {
		return StatusTimeout, err.Error()
	}

	var connErr *conn.ConnectionError
	if errors.As(err, &connErr) {
		return StatusConnectionLost, connErr.Error()
	}
	if errors.Is(err, conn.ErrBroken) {
		return StatusConnectionLost, err.Error()
	}

	var protoErr *protocol.Error
	if errors.As(err, &protoErr) {
		return StatusFailed, protoErr.Error()
	}

	return StatusFailed, err.Error()
}
