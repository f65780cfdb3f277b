package protocol_test

import (
	"bytes"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/danvales/redis-client-core/protocol"
)

func parseAll(t *testing.T, input string) []*protocol.Reply {
	t.Helper()

	r := protocol.NewReader()
	r.Feed([]byte(input))

	var replies []*protocol.Reply
	for {
		rep, err := r.TryReply()
		if err != nil {
			t.Fatalf("TryReply() error = %v", err)
		}
		if rep == nil {
			return replies
		}
		replies = append(replies, rep)
	}
}

func parseOne(t *testing.T, input string) *protocol.Reply {
	t.Helper()

	replies := parseAll(t, input)
	if len(replies) != 1 {
		t.Fatalf("parsed %d replies, want 1", len(replies))
	}
	return replies[0]
}

func TestReaderScalars(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected protocol.Reply
	}{
		{
			name:     "simple string",
			input:    "+OK\r\n",
			expected: protocol.Reply{Type: protocol.TypeSimpleString, Data: []byte("OK")},
		},
		{
			name:     "error",
			input:    "-ERR unknown command\r\n",
			expected: protocol.Reply{Type: protocol.TypeError, Data: []byte("ERR unknown command")},
		},
		{
			name:     "integer",
			input:    ":42\r\n",
			expected: protocol.Reply{Type: protocol.TypeInteger, Integer: 42},
		},
		{
			name:     "negative integer",
			input:    ":-7\r\n",
			expected: protocol.Reply{Type: protocol.TypeInteger, Integer: -7},
		},
		{
			name:     "bulk string",
			input:    "$5\r\nhello\r\n",
			expected: protocol.Reply{Type: protocol.TypeBulkString, Data: []byte("hello")},
		},
		{
			name:     "empty bulk string",
			input:    "$0\r\n\r\n",
			expected: protocol.Reply{Type: protocol.TypeBulkString, Data: []byte{}},
		},
		{
			name:     "null bulk string",
			input:    "$-1\r\n",
			expected: protocol.Reply{Type: protocol.TypeBulkString, IsNull: true},
		},
		{
			name:     "bulk string with embedded CRLF",
			input:    "$7\r\na\r\nb\r\nc\r\n",
			expected: protocol.Reply{Type: protocol.TypeBulkString, Data: []byte("a\r\nb\r\nc")},
		},
		{
			name:     "null",
			input:    "_\r\n",
			expected: protocol.Reply{Type: protocol.TypeNull},
		},
		{
			name:     "double",
			input:    ",3.14\r\n",
			expected: protocol.Reply{Type: protocol.TypeDouble, Double: 3.14, Data: []byte("3.14")},
		},
		{
			name:     "boolean true",
			input:    "#t\r\n",
			expected: protocol.Reply{Type: protocol.TypeBoolean, Bool: true},
		},
		{
			name:     "boolean false",
			input:    "#f\r\n",
			expected: protocol.Reply{Type: protocol.TypeBoolean, Bool: false},
		},
		{
			name:     "big number",
			input:    "(3492890328409238509324850943850943825024385\r\n",
			expected: protocol.Reply{Type: protocol.TypeBigNumber, Data: []byte("3492890328409238509324850943850943825024385")},
		},
		{
			name:     "verbatim string",
			input:    "=15\r\ntxt:Some string\r\n",
			expected: protocol.Reply{Type: protocol.TypeVerbatim, Data: []byte("txt:Some string")},
		},
		{
			name:     "blob error",
			input:    "!21\r\nSYNTAX invalid syntax\r\n",
			expected: protocol.Reply{Type: protocol.TypeBlobError, Data: []byte("SYNTAX invalid syntax")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := parseOne(t, tt.input)
			if !reflect.DeepEqual(*rep, tt.expected) {
				t.Errorf("reply = %+v, want %+v", *rep, tt.expected)
			}
		})
	}
}

func TestReaderAggregates(t *testing.T) {
	t.Run("flat array", func(t *testing.T) {
		rep := parseOne(t, "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n")
		if rep.Type != protocol.TypeArray {
			t.Fatalf("Type = %v, want array", rep.Type)
		}
		want := []string{"SET", "key", "value"}
		if len(rep.Elems) != len(want) {
			t.Fatalf("len(Elems) = %d, want %d", len(rep.Elems), len(want))
		}
		for i, w := range want {
			if string(rep.Elems[i].Data) != w {
				t.Errorf("Elems[%d] = %q, want %q", rep.Elems[i].Data, rep.Elems[i].Data, w)
			}
		}
	})

	t.Run("nested array", func(t *testing.T) {
		rep := parseOne(t, "*2\r\n*2\r\n:1\r\n:2\r\n*1\r\n+ok\r\n")
		if len(rep.Elems) != 2 {
			t.Fatalf("len(Elems) = %d, want 2", len(rep.Elems))
		}
		inner := rep.Elems[0]
		if inner.Type != protocol.TypeArray || len(inner.Elems) != 2 {
			t.Fatalf("inner = %+v, want 2-element array", inner)
		}
		if inner.Elems[1].Integer != 2 {
			t.Errorf("inner.Elems[1] = %d, want 2", inner.Elems[1].Integer)
		}
	})

	t.Run("empty array", func(t *testing.T) {
		rep := parseOne(t, "*0\r\n")
		if rep.Type != protocol.TypeArray || rep.IsNull || len(rep.Elems) != 0 {
			t.Errorf("reply = %+v, want empty array", rep)
		}
	})

	t.Run("null array", func(t *testing.T) {
		rep := parseOne(t, "*-1\r\n")
		if rep.Type != protocol.TypeArray || !rep.IsNull {
			t.Errorf("reply = %+v, want null array", rep)
		}
	})

	t.Run("map", func(t *testing.T) {
		rep := parseOne(t, "%2\r\n+first\r\n:1\r\n+second\r\n:2\r\n")
		if rep.Type != protocol.TypeMap {
			t.Fatalf("Type = %v, want map", rep.Type)
		}
		if len(rep.Elems) != 4 {
			t.Fatalf("len(Elems) = %d, want 4 (flattened pairs)", len(rep.Elems))
		}
		m, err := protocol.AsStringMap(rep)
		if err != nil {
			t.Fatalf("AsStringMap() error = %v", err)
		}
		if m["second"] != "2" {
			t.Errorf(`m["second"] = %q, want "2"`, m["second"])
		}
	})

	t.Run("set", func(t *testing.T) {
		rep := parseOne(t, "~2\r\n+a\r\n+b\r\n")
		if rep.Type != protocol.TypeSet || len(rep.Elems) != 2 {
			t.Errorf("reply = %+v, want 2-element set", rep)
		}
	})

	t.Run("push", func(t *testing.T) {
		rep := parseOne(t, ">3\r\n$7\r\nmessage\r\n$4\r\nnews\r\n$5\r\nhello\r\n")
		if rep.Type != protocol.TypePush || len(rep.Elems) != 3 {
			t.Errorf("reply = %+v, want 3-element push", rep)
		}
	})
}

// TestReaderChunked verifies that feeding a serialized stream in
// arbitrarily small chunks yields exactly the replies obtained from
// feeding it whole.
func TestReaderChunked(t *testing.T) {
	stream := "+OK\r\n" +
		":1234\r\n" +
		"$6\r\nfoobar\r\n" +
		"*3\r\n$3\r\nfoo\r\n*2\r\n:1\r\n,2.5\r\n#t\r\n" +
		"%1\r\n+k\r\n$1\r\nv\r\n" +
		">2\r\n$7\r\nmessage\r\n$2\r\nhi\r\n" +
		"_\r\n" +
		"(123456789012345678901234567890\r\n" +
		"-MOVED 1234 10.0.0.5:6380\r\n"

	whole := parseAll(t, stream)
	if len(whole) != 9 {
		t.Fatalf("parsed %d replies, want 9", len(whole))
	}

	for _, chunkSize := range []int{1, 2, 3, 5, 7, 16} {
		r := protocol.NewReader()
		var chunked []*protocol.Reply

		drain := func() {
			for {
				rep, err := r.TryReply()
				if err != nil {
					t.Fatalf("chunk=%d TryReply() error = %v", chunkSize, err)
				}
				if rep == nil {
					return
				}
				chunked = append(chunked, rep)
			}
		}

		for i := 0; i < len(stream); i += chunkSize {
			end := i + chunkSize
			if end > len(stream) {
				end = len(stream)
			}
			r.Feed([]byte(stream[i:end]))
			drain()
		}

		if len(chunked) != len(whole) {
			t.Fatalf("chunk=%d parsed %d replies, want %d", chunkSize, len(chunked), len(whole))
		}
		for i := range whole {
			if !reflect.DeepEqual(chunked[i], whole[i]) {
				t.Errorf("chunk=%d reply %d = %+v, want %+v", chunkSize, i, chunked[i], whole[i])
			}
		}
	}
}

func TestReaderPartialResumes(t *testing.T) {
	r := protocol.NewReader()
	r.Feed([]byte("$5\r\nhel"))

	rep, err := r.TryReply()
	if err != nil {
		t.Fatalf("TryReply() error = %v", err)
	}
	if rep != nil {
		t.Fatalf("TryReply() = %+v, want nil (incomplete)", rep)
	}

	r.Feed([]byte("lo\r\n"))
	rep, err = r.TryReply()
	if err != nil {
		t.Fatalf("TryReply() error = %v", err)
	}
	if rep == nil || string(rep.Data) != "hello" {
		t.Fatalf("TryReply() = %+v, want bulk \"hello\"", rep)
	}
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "malformed type byte", input: "@oops\r\n"},
		{name: "bad integer", input: ":12a\r\n"},
		{name: "bad bulk length", input: "$abc\r\n"},
		{name: "negative bulk length", input: "$-2\r\n"},
		{name: "bad boolean", input: "#x\r\n"},
		{name: "bad big number", input: "(12z9\r\n"},
		{name: "element count over bound", input: "*99999999\r\n"},
		{name: "bulk missing terminator", input: "$3\r\nabcXY"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := protocol.NewReader()
			r.Feed([]byte(tt.input))

			_, err := r.TryReply()
			if err == nil {
				t.Fatal("TryReply() error = nil, want protocol error")
			}
			var perr *protocol.Error
			if !errors.As(err, &perr) {
				t.Fatalf("TryReply() error = %T, want *protocol.Error", err)
			}

			// The reader is poisoned: further calls fail the same way.
			if _, err2 := r.TryReply(); err2 == nil {
				t.Error("second TryReply() error = nil, want sticky protocol error")
			}
		})
	}
}

func TestReaderLineTooLong(t *testing.T) {
	r := protocol.NewReader()
	r.Feed([]byte("+" + strings.Repeat("x", 70*1024)))

	_, err := r.TryReply()
	if err == nil {
		t.Fatal("TryReply() error = nil, want line-too-long protocol error")
	}
}

func TestConversions(t *testing.T) {
	t.Run("string accepts bulk and status", func(t *testing.T) {
		for _, in := range []string{"$3\r\nfoo\r\n", "+foo\r\n"} {
			s, err := protocol.AsString(parseOne(t, in))
			if err != nil || s != "foo" {
				t.Errorf("AsString(%q) = %q, %v", in, s, err)
			}
		}
		if _, err := protocol.AsString(parseOne(t, ":1\r\n")); err == nil {
			t.Error("AsString(integer) error = nil, want type error")
		}
	})

	t.Run("int requires integer", func(t *testing.T) {
		n, err := protocol.AsInt(parseOne(t, ":42\r\n"))
		if err != nil || n != 42 {
			t.Errorf("AsInt = %d, %v", n, err)
		}
		if _, err := protocol.AsInt(parseOne(t, "$2\r\n42\r\n")); err == nil {
			t.Error("AsInt(bulk) error = nil, want type error")
		}
	})

	t.Run("float reparses text", func(t *testing.T) {
		f, err := protocol.AsFloat(parseOne(t, "$4\r\n3.14\r\n"))
		if err != nil || math.Abs(f-3.14) > 1e-9 {
			t.Errorf("AsFloat = %v, %v", f, err)
		}
		if _, err := protocol.AsFloat(parseOne(t, "$3\r\nabc\r\n")); err == nil {
			t.Error(`AsFloat("abc") error = nil, want parse error`)
		}
		if _, err := protocol.AsFloat(parseOne(t, "$5\r\n1e400\r\n")); err == nil {
			t.Error(`AsFloat("1e400") error = nil, want range error`)
		}
	})

	t.Run("bool accepts only 0 and 1", func(t *testing.T) {
		b, err := protocol.AsBool(parseOne(t, ":1\r\n"))
		if err != nil || !b {
			t.Errorf("AsBool(1) = %v, %v", b, err)
		}
		b, err = protocol.AsBool(parseOne(t, ":0\r\n"))
		if err != nil || b {
			t.Errorf("AsBool(0) = %v, %v", b, err)
		}
		if _, err := protocol.AsBool(parseOne(t, ":2\r\n")); err == nil {
			t.Error("AsBool(2) error = nil, want error")
		}
		b, err = protocol.AsBool(parseOne(t, "#t\r\n"))
		if err != nil || !b {
			t.Errorf("AsBool(#t) = %v, %v", b, err)
		}
	})

	t.Run("status OK", func(t *testing.T) {
		if err := protocol.AsStatusOK(parseOne(t, "+OK\r\n")); err != nil {
			t.Errorf("AsStatusOK(+OK) error = %v", err)
		}
		if err := protocol.AsStatusOK(parseOne(t, "+QUEUED\r\n")); err == nil {
			t.Error("AsStatusOK(+QUEUED) error = nil, want error")
		}
		if err := protocol.AsStatusOK(parseOne(t, ":1\r\n")); err == nil {
			t.Error("AsStatusOK(integer) error = nil, want error")
		}
	})
}

func TestRewriteSetReply(t *testing.T) {
	rep := parseOne(t, "$-1\r\n")
	if err := protocol.RewriteSetReply(rep); err != nil {
		t.Fatalf("RewriteSetReply(nil reply) error = %v", err)
	}
	if rep.Type != protocol.TypeInteger || rep.Integer != 0 {
		t.Errorf("reply = %+v, want Integer 0", rep)
	}

	rep = parseOne(t, "+OK\r\n")
	if err := protocol.RewriteSetReply(rep); err != nil {
		t.Fatalf("RewriteSetReply(OK) error = %v", err)
	}
	if rep.Type != protocol.TypeInteger || rep.Integer != 1 {
		t.Errorf("reply = %+v, want Integer 1", rep)
	}

	rep = parseOne(t, ":5\r\n")
	if err := protocol.RewriteSetReply(rep); err == nil {
		t.Error("RewriteSetReply(integer) error = nil, want contract violation")
	}
}

func TestRewriteEmptyArrayReply(t *testing.T) {
	rep := parseOne(t, "*0\r\n")
	protocol.RewriteEmptyArrayReply(rep)
	if rep.Type != protocol.TypeNull {
		t.Errorf("empty array rewritten to %v, want null", rep.Type)
	}

	rep = parseOne(t, "*1\r\n:1\r\n")
	protocol.RewriteEmptyArrayReply(rep)
	if rep.Type != protocol.TypeArray || len(rep.Elems) != 1 {
		t.Errorf("non-empty array changed: %+v", rep)
	}

	rep = parseOne(t, "+OK\r\n")
	protocol.RewriteEmptyArrayReply(rep)
	if rep.Type != protocol.TypeSimpleString {
		t.Errorf("status reply changed: %+v", rep)
	}
}

func TestIsFlatArray(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "flat", input: "*2\r\n$1\r\na\r\n:1\r\n", want: true},
		{name: "nested", input: "*2\r\n$1\r\na\r\n*1\r\n:1\r\n", want: false},
		{name: "contains null", input: "*2\r\n$1\r\na\r\n$-1\r\n", want: false},
		{name: "not array", input: "+OK\r\n", want: false},
		{name: "null array", input: "*-1\r\n", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := protocol.IsFlatArray(parseOne(t, tt.input)); got != tt.want {
				t.Errorf("IsFlatArray = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestWriterCommand(t *testing.T) {
	var buf bytes.Buffer
	w := protocol.NewWriter(&buf)

	if err := w.WriteCommand("SET", "key", "value"); err != nil {
		t.Fatalf("WriteCommand() error = %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush() error = %v", err)
	}

	want := "*3\r\n$3\r\nSET\r\n$3\r\nkey\r\n$5\r\nvalue\r\n"
	if buf.String() != want {
		t.Errorf("wire = %q, want %q", buf.String(), want)
	}
}

func TestWriterReplyRoundtrip(t *testing.T) {
	inputs := []string{
		"+OK\r\n",
		"-ERR boom\r\n",
		":7\r\n",
		"$3\r\nfoo\r\n",
		"$-1\r\n",
		"*2\r\n:1\r\n*1\r\n+x\r\n",
		"_\r\n",
		",1.5\r\n",
		"#f\r\n",
		"%1\r\n+k\r\n:9\r\n",
		"~1\r\n+m\r\n",
		">2\r\n$7\r\nmessage\r\n$2\r\nok\r\n",
	}

	for _, in := range inputs {
		orig := parseOne(t, in)

		var buf bytes.Buffer
		w := protocol.NewWriter(&buf)
		if err := w.WriteReply(orig); err != nil {
			t.Fatalf("WriteReply(%q) error = %v", in, err)
		}
		if err := w.Flush(); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}

		back := parseOne(t, buf.String())
		if !reflect.DeepEqual(orig, back) {
			t.Errorf("roundtrip of %q: got %+v, want %+v", in, back, orig)
		}
	}
}
