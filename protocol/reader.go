package protocol

import (
	"bytes"
	"fmt"
	"strconv"
)

const (
	// CRLF is the RESP line terminator
	CRLF = "\r\n"

	// maxLineLength bounds a single reply header line
	maxLineLength = 64 * 1024

	// maxBulkSize is the maximum size for bulk payloads (512MB, the
	// server-side proto-max-bulk-len default)
	maxBulkSize = 512 * 1024 * 1024

	// maxElementCount bounds aggregate reply sizes so a corrupt stream
	// fails fast instead of allocating unbounded memory
	maxElementCount = 1024 * 1024

	// maxRetainedSize is how many consumed bytes may accumulate at the
	// front of the buffer before it is compacted
	maxRetainedSize = 16 * 1024
)

var crlfBytes = []byte(CRLF)

// Error is a RESP protocol error: the byte stream could not be parsed
// as a valid reply. A connection that produced one must be considered
// desynchronized and reconnected before reuse.
type Error struct {
	Message string
}

func (e *Error) Error() string {
	return "protocol error: " + e.Message
}

// frame is one level of an in-progress aggregate reply. Frames live on
// an explicit stack; the element under construction always sits on
// top, its parent immediately below it.
type frame struct {
	reply  Reply
	remain int
}

// Reader is an incremental RESP parser. Bytes are appended with Feed
// and complete replies are drained with TryReply; partial replies
// accumulate across any number of Feed calls, so the reader works with
// arbitrarily fragmented input.
//
// A Reader is not safe for concurrent use.
type Reader struct {
	buf   []byte
	pos   int // start of unconsumed bytes
	stack []frame
	err   *Error // sticky; set on the first malformed byte
}

// NewReader creates an empty incremental reader.
func NewReader() *Reader {
	return &Reader{
		buf:   make([]byte, 0, 4096),
		stack: make([]frame, 0, 8),
	}
}

// Feed appends raw bytes to the internal buffer. It never blocks and
// never parses.
func (r *Reader) Feed(p []byte) {
	r.buf = append(r.buf, p...)
}

// Buffered returns the number of unconsumed bytes.
func (r *Reader) Buffered() int {
	return len(r.buf) - r.pos
}

// TryReply attempts to consume one complete reply from the buffered
// bytes. It returns (reply, nil) on success, (nil, nil) when more data
// is needed, and (nil, *Error) on a malformed stream. After an error
// the reader is poisoned and every subsequent call fails the same way.
func (r *Reader) TryReply() (*Reply, error) {
	if r.err != nil {
		return nil, r.err
	}

	for {
		rep, consumed, err := r.parseElement()
		if err != nil {
			r.err = err
			return nil, err
		}
		if consumed == 0 {
			return nil, nil // need more data
		}
		r.pos += consumed
		if rep == nil {
			continue // opened an aggregate frame
		}

		if out, done := r.deliver(*rep); done {
			r.compact()
			return out, nil
		}
	}
}

// parseElement parses a single element from the unconsumed buffer.
// It returns the element and the bytes it occupies, or (nil, n) after
// pushing an aggregate frame, or (nil, 0) when the buffer holds only a
// partial element. Nothing is consumed until a full element (header
// plus body for blob types) is available, which keeps the parse
// restartable at element granularity.
func (r *Reader) parseElement() (*Reply, int, *Error) {
	b := r.buf[r.pos:]

	line, ok := cutLine(b)
	if !ok {
		if len(b) > maxLineLength {
			return nil, 0, &Error{Message: "reply line too long"}
		}
		return nil, 0, nil
	}
	if len(line) == 0 {
		return nil, 0, &Error{Message: "empty reply line"}
	}

	typ := ReplyType(line[0])
	payload := line[1:]
	consumed := len(line) + len(CRLF)

	switch typ {
	case TypeSimpleString, TypeError:
		return &Reply{Type: typ, Data: copyBytes(payload)}, consumed, nil

	case TypeInteger:
		n, err := parseInt64(payload)
		if err != nil {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid integer: %q", payload)}
		}
		return &Reply{Type: typ, Integer: n}, consumed, nil

	case TypeDouble:
		f, err := strconv.ParseFloat(string(payload), 64)
		if err != nil {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid double: %q", payload)}
		}
		return &Reply{Type: typ, Double: f, Data: copyBytes(payload)}, consumed, nil

	case TypeBoolean:
		if len(payload) != 1 || (payload[0] != 't' && payload[0] != 'f') {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid boolean: %q", payload)}
		}
		return &Reply{Type: typ, Bool: payload[0] == 't'}, consumed, nil

	case TypeBigNumber:
		if !validBigNumber(payload) {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid big number: %q", payload)}
		}
		return &Reply{Type: typ, Data: copyBytes(payload)}, consumed, nil

	case TypeNull:
		if len(payload) != 0 {
			return nil, 0, &Error{Message: "null reply with payload"}
		}
		return &Reply{Type: typ}, consumed, nil

	case TypeBulkString, TypeVerbatim, TypeBlobError:
		length, err := parseInt64(payload)
		if err != nil {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid bulk length: %q", payload)}
		}
		if length == -1 && typ == TypeBulkString {
			return &Reply{Type: typ, IsNull: true}, consumed, nil
		}
		if length < 0 || length > maxBulkSize {
			return nil, 0, &Error{Message: fmt.Sprintf("bulk length out of range: %d", length)}
		}
		total := consumed + int(length) + len(CRLF)
		if len(b) < total {
			return nil, 0, nil // body not buffered yet
		}
		body := b[consumed : consumed+int(length)]
		if !bytes.Equal(b[consumed+int(length):total], crlfBytes) {
			return nil, 0, &Error{Message: "bulk payload missing CRLF terminator"}
		}
		return &Reply{Type: typ, Data: copyBytes(body)}, total, nil

	case TypeArray, TypeMap, TypeSet, TypePush:
		length, err := parseInt64(payload)
		if err != nil {
			return nil, 0, &Error{Message: fmt.Sprintf("invalid aggregate length: %q", payload)}
		}
		if length == -1 && typ == TypeArray {
			return &Reply{Type: typ, IsNull: true}, consumed, nil
		}
		if length < 0 || length > maxElementCount {
			return nil, 0, &Error{Message: fmt.Sprintf("aggregate length out of range: %d", length)}
		}
		count := length
		if typ == TypeMap {
			count *= 2
		}
		if count == 0 {
			return &Reply{Type: typ, Elems: []Reply{}}, consumed, nil
		}
		capHint := count
		if capHint > 64 {
			capHint = 64
		}
		r.stack = append(r.stack, frame{
			reply:  Reply{Type: typ, Elems: make([]Reply, 0, capHint)},
			remain: int(count),
		})
		return nil, consumed, nil

	default:
		return nil, 0, &Error{Message: fmt.Sprintf("malformed type byte: %q (0x%02x)", byte(typ), byte(typ))}
	}
}

// deliver hands a completed element to the innermost open aggregate,
// unwinding every frame it completes. It returns the finished
// top-level reply once the stack is empty.
func (r *Reader) deliver(rep Reply) (*Reply, bool) {
	for {
		if len(r.stack) == 0 {
			out := rep
			return &out, true
		}
		top := &r.stack[len(r.stack)-1]
		top.reply.Elems = append(top.reply.Elems, rep)
		top.remain--
		if top.remain > 0 {
			return nil, false
		}
		rep = top.reply
		r.stack = r.stack[:len(r.stack)-1]
	}
}

// compact drops the consumed prefix once it grows past the retention
// bound, so long-lived connections do not pin old reply bytes.
func (r *Reader) compact() {
	if r.pos == len(r.buf) {
		r.buf = r.buf[:0]
		r.pos = 0
		return
	}
	if r.pos >= maxRetainedSize {
		remaining := make([]byte, len(r.buf)-r.pos, cap(r.buf))
		copy(remaining, r.buf[r.pos:])
		r.buf = remaining
		r.pos = 0
	}
}

// cutLine returns the first CRLF-terminated line (without the
// terminator) of b, if one is fully buffered.
func cutLine(b []byte) ([]byte, bool) {
	i := bytes.IndexByte(b, '\n')
	if i < 1 || b[i-1] != '\r' {
		return nil, false
	}
	return b[:i-1], true
}

func copyBytes(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

// parseInt64 parses a signed decimal from a byte slice without
// allocating.
func parseInt64(b []byte) (int64, error) {
	if len(b) == 0 {
		return 0, strconv.ErrSyntax
	}

	var neg bool
	var i int

	switch b[0] {
	case '-':
		neg = true
		i = 1
	case '+':
		i = 1
	}

	if i >= len(b) {
		return 0, strconv.ErrSyntax
	}

	var n int64
	for ; i < len(b); i++ {
		if b[i] < '0' || b[i] > '9' {
			return 0, strconv.ErrSyntax
		}
		if n > (1<<63-1)/10 {
			return 0, strconv.ErrRange
		}
		n = n*10 + int64(b[i]-'0')
	}

	if neg {
		return -n, nil
	}
	return n, nil
}

func validBigNumber(b []byte) bool {
	if len(b) == 0 {
		return false
	}
	if b[0] == '+' || b[0] == '-' {
		b = b[1:]
	}
	if len(b) == 0 {
		return false
	}
	for _, c := range b {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
