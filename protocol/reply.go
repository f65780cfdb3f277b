package protocol

import (
	"fmt"
	"strconv"
)

// statusOK is the status text every void-returning command must yield.
const statusOK = "OK"

// AsString extracts a string from a bulk string or status reply.
func AsString(r *Reply) (string, error) {
	switch r.Type {
	case TypeBulkString, TypeVerbatim:
		if r.IsNull {
			return "", &Error{Message: "a null string reply"}
		}
		return string(r.Data), nil
	case TypeSimpleString:
		return string(r.Data), nil
	default:
		return "", &Error{Message: "expect STRING reply, got " + r.Type.String()}
	}
}

// AsInt extracts an integer from an integer reply.
func AsInt(r *Reply) (int64, error) {
	if r.Type != TypeInteger {
		return 0, &Error{Message: "expect INTEGER reply, got " + r.Type.String()}
	}
	return r.Integer, nil
}

// AsFloat extracts a double by re-parsing the textual form of the
// reply. Non-numeric and out-of-range text (e.g. "1e400") fail.
func AsFloat(r *Reply) (float64, error) {
	if r.Type == TypeDouble {
		return r.Double, nil
	}
	s, err := AsString(r)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return 0, &Error{Message: "double reply out of range: " + s}
		}
		return 0, &Error{Message: "not a double reply: " + s}
	}
	return f, nil
}

// AsBool extracts a boolean. RESP3 boolean replies convert directly;
// integer replies must be exactly 0 or 1.
func AsBool(r *Reply) (bool, error) {
	if r.Type == TypeBoolean {
		return r.Bool, nil
	}
	n, err := AsInt(r)
	if err != nil {
		return false, err
	}
	switch n {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, &Error{Message: fmt.Sprintf("invalid bool reply: %d", n)}
	}
}

// AsStatusOK checks that the reply is a status reply whose text is
// exactly "OK".
func AsStatusOK(r *Reply) error {
	if r.Type != TypeSimpleString {
		return &Error{Message: "expect STATUS reply, got " + r.Type.String()}
	}
	if string(r.Data) != statusOK {
		return &Error{Message: "NOT ok status reply: " + string(r.Data)}
	}
	return nil
}

// RewriteSetReply normalizes the reply of a SET-style command so
// boolean-minded callers get a uniform integer result: a nil reply
// (condition not met) becomes Integer 0 and an OK status becomes
// Integer 1. Calling it on any other reply is a contract violation and
// reports a protocol error.
func RewriteSetReply(r *Reply) error {
	if r.Nil() {
		*r = Reply{Type: TypeInteger, Integer: 0}
		return nil
	}
	if err := AsStatusOK(r); err != nil {
		return err
	}
	*r = Reply{Type: TypeInteger, Integer: 1}
	return nil
}

// RewriteEmptyArrayReply maps a zero-element array reply to a null
// reply, unifying the "no results" representation. It is the identity
// on every other reply.
func RewriteEmptyArrayReply(r *Reply) {
	if r.Type == TypeArray && !r.IsNull && len(r.Elems) == 0 {
		*r = Reply{Type: TypeNull}
	}
}

// IsFlatArray reports whether the reply is an array with no nested
// aggregate or null elements. Typed decoders for map-like or geo-like
// flattened replies use this to pick a decoding strategy.
func IsFlatArray(r *Reply) bool {
	if r.Type != TypeArray || r.IsNull {
		return false
	}
	for i := range r.Elems {
		e := &r.Elems[i]
		if e.IsAggregate() || e.Nil() {
			return false
		}
	}
	return true
}

// AsStringSlice extracts a flat array of strings.
func AsStringSlice(r *Reply) ([]string, error) {
	if !r.IsFlat() {
		return nil, &Error{Message: "expect flat ARRAY reply"}
	}
	out := make([]string, len(r.Elems))
	for i := range r.Elems {
		s, err := AsString(&r.Elems[i])
		if err != nil {
			return nil, err
		}
		out[i] = s
	}
	return out, nil
}

// AsStringMap extracts a map from a RESP3 map reply or a flat array
// of alternating keys and values.
func AsStringMap(r *Reply) (map[string]string, error) {
	if r.Type != TypeMap && !IsFlatArray(r) {
		return nil, &Error{Message: "expect MAP or flat ARRAY reply"}
	}
	if len(r.Elems)%2 != 0 {
		return nil, &Error{Message: "odd number of map elements"}
	}
	out := make(map[string]string, len(r.Elems)/2)
	for i := 0; i < len(r.Elems); i += 2 {
		k, err := AsString(&r.Elems[i])
		if err != nil {
			return nil, err
		}
		v, err := AsString(&r.Elems[i+1])
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// IsFlat is the method form of IsFlatArray.
func (r *Reply) IsFlat() bool {
	return IsFlatArray(r)
}
