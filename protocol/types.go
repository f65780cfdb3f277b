package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// ReplyType identifies the RESP type of a parsed reply. The value is
// the wire prefix byte that introduces replies of that type.
type ReplyType byte

const (
	// RESP2 reply types
	TypeSimpleString ReplyType = '+'
	TypeError        ReplyType = '-'
	TypeInteger      ReplyType = ':'
	TypeBulkString   ReplyType = '$'
	TypeArray        ReplyType = '*'

	// RESP3 reply types
	TypeNull      ReplyType = '_'
	TypeDouble    ReplyType = ','
	TypeBoolean   ReplyType = '#'
	TypeBlobError ReplyType = '!'
	TypeVerbatim  ReplyType = '='
	TypeBigNumber ReplyType = '('
	TypeMap       ReplyType = '%'
	TypeSet       ReplyType = '~'
	TypePush      ReplyType = '>'
)

// String returns a human-readable name for the reply type.
func (t ReplyType) String() string {
	switch t {
	case TypeSimpleString:
		return "simple-string"
	case TypeError:
		return "error"
	case TypeInteger:
		return "integer"
	case TypeBulkString:
		return "bulk-string"
	case TypeArray:
		return "array"
	case TypeNull:
		return "null"
	case TypeDouble:
		return "double"
	case TypeBoolean:
		return "boolean"
	case TypeBlobError:
		return "blob-error"
	case TypeVerbatim:
		return "verbatim-string"
	case TypeBigNumber:
		return "big-number"
	case TypeMap:
		return "map"
	case TypeSet:
		return "set"
	case TypePush:
		return "push"
	default:
		return fmt.Sprintf("unknown(%c)", byte(t))
	}
}

// Reply is a parsed RESP reply. The Type tag selects which payload
// field is active. Aggregate replies (array, map, set, push) own their
// elements; map elements are stored as a flattened key/value sequence.
type Reply struct {
	Type    ReplyType
	Data    []byte  // simple string, error, bulk, verbatim and big number text
	Integer int64   // integer replies
	Double  float64 // double replies
	Bool    bool    // boolean replies
	Elems   []Reply // aggregate elements
	IsNull  bool    // RESP2 null bulk string / null array
}

// IsError reports whether the reply is a server error reply.
func (r *Reply) IsError() bool {
	return r.Type == TypeError || r.Type == TypeBlobError
}

// ErrorText returns the error message of an error reply, or "".
func (r *Reply) ErrorText() string {
	if r.IsError() {
		return string(r.Data)
	}
	return ""
}

// Nil reports whether the reply represents a missing value, either as
// a RESP3 null or a RESP2 null bulk string / null array.
func (r *Reply) Nil() bool {
	return r.Type == TypeNull || r.IsNull
}

// IsAggregate reports whether the reply carries child elements.
func (r *Reply) IsAggregate() bool {
	switch r.Type {
	case TypeArray, TypeMap, TypeSet, TypePush:
		return true
	default:
		return false
	}
}

// String returns a debug representation of the reply.
func (r *Reply) String() string {
	switch r.Type {
	case TypeSimpleString, TypeError, TypeBlobError, TypeVerbatim, TypeBigNumber:
		return string(r.Data)
	case TypeInteger:
		return strconv.FormatInt(r.Integer, 10)
	case TypeDouble:
		return strconv.FormatFloat(r.Double, 'g', -1, 64)
	case TypeBoolean:
		if r.Bool {
			return "true"
		}
		return "false"
	case TypeBulkString:
		if r.IsNull {
			return "(nil)"
		}
		return string(r.Data)
	case TypeNull:
		return "(nil)"
	case TypeArray, TypeMap, TypeSet, TypePush:
		if r.IsNull {
			return "(nil)"
		}
		parts := make([]string, len(r.Elems))
		for i := range r.Elems {
			parts[i] = r.Elems[i].String()
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprintf("unknown type %c", byte(r.Type))
	}
}
