package protocol

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// Writer provides buffered writing of RESP requests and replies.
// Requests are always encoded as arrays of bulk strings, the framing a
// Redis-compatible server expects.
type Writer struct {
	bw *bufio.Writer
}

// NewWriter creates a new RESP writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{
		bw: bufio.NewWriter(w),
	}
}

// WriteCommand writes a command as a RESP array of bulk strings. The
// caller must Flush to push buffered bytes to the underlying writer.
func (w *Writer) WriteCommand(cmd string, args ...string) error {
	if _, err := w.bw.WriteString("*"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(strconv.Itoa(1 + len(args))); err != nil {
		return err
	}
	if err := w.writeCRLF(); err != nil {
		return err
	}

	if err := w.WriteBulkString([]byte(cmd)); err != nil {
		return err
	}
	for _, arg := range args {
		if err := w.WriteBulkString([]byte(arg)); err != nil {
			return err
		}
	}

	return nil
}

// WriteBulkString writes a length-prefixed bulk string.
func (w *Writer) WriteBulkString(data []byte) error {
	if _, err := w.bw.WriteString("$"); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(strconv.Itoa(len(data))); err != nil {
		return err
	}
	if err := w.writeCRLF(); err != nil {
		return err
	}
	if _, err := w.bw.Write(data); err != nil {
		return err
	}
	return w.writeCRLF()
}

// WriteReply serializes a parsed reply back to the wire. This is the
// inverse of Reader parsing and is what a test double of a server uses
// to produce response streams.
func (w *Writer) WriteReply(r *Reply) error {
	switch r.Type {
	case TypeSimpleString, TypeError:
		return w.writeLine(byte(r.Type), string(r.Data))
	case TypeInteger:
		return w.writeLine(byte(r.Type), strconv.FormatInt(r.Integer, 10))
	case TypeDouble:
		if len(r.Data) > 0 {
			return w.writeLine(byte(r.Type), string(r.Data))
		}
		return w.writeLine(byte(r.Type), strconv.FormatFloat(r.Double, 'g', -1, 64))
	case TypeBoolean:
		if r.Bool {
			return w.writeLine(byte(r.Type), "t")
		}
		return w.writeLine(byte(r.Type), "f")
	case TypeBigNumber:
		return w.writeLine(byte(r.Type), string(r.Data))
	case TypeNull:
		return w.writeLine(byte(r.Type), "")
	case TypeBulkString, TypeVerbatim, TypeBlobError:
		if r.IsNull {
			return w.writeLine(byte(TypeBulkString), "-1")
		}
		if err := w.writeLine(byte(r.Type), strconv.Itoa(len(r.Data))); err != nil {
			return err
		}
		if _, err := w.bw.Write(r.Data); err != nil {
			return err
		}
		return w.writeCRLF()
	case TypeArray, TypeMap, TypeSet, TypePush:
		if r.IsNull {
			return w.writeLine(byte(TypeArray), "-1")
		}
		n := len(r.Elems)
		if r.Type == TypeMap {
			if n%2 != 0 {
				return fmt.Errorf("map reply with odd element count: %d", n)
			}
			n /= 2
		}
		if err := w.writeLine(byte(r.Type), strconv.Itoa(n)); err != nil {
			return err
		}
		for i := range r.Elems {
			if err := w.WriteReply(&r.Elems[i]); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported reply type: %c", byte(r.Type))
	}
}

// Flush flushes buffered data to the underlying writer.
func (w *Writer) Flush() error {
	return w.bw.Flush()
}

// Reset discards buffered state and redirects output to a new writer.
func (w *Writer) Reset(writer io.Writer) {
	w.bw.Reset(writer)
}

func (w *Writer) writeLine(prefix byte, body string) error {
	if err := w.bw.WriteByte(prefix); err != nil {
		return err
	}
	if _, err := w.bw.WriteString(body); err != nil {
		return err
	}
	return w.writeCRLF()
}

func (w *Writer) writeCRLF() error {
	_, err := w.bw.WriteString(CRLF)
	return err
}
