// Package protocol implements the Redis Serialization Protocol (RESP)
// for the client side: an incremental reply parser and a buffered
// command writer.
//
// The Reader is push-based. Raw bytes go in with Feed, which never
// blocks and never parses; complete replies come out with TryReply,
// which consumes at most one reply per call and reports when the
// buffered bytes end mid-reply. Feeding a stream one byte at a time
// produces exactly the same replies as feeding it whole, which is what
// lets a connection layer pump socket reads of any size through it:
//
//	r := protocol.NewReader()
//	for {
//		reply, err := r.TryReply()
//		if err != nil {
//			// malformed stream, reconnect
//		}
//		if reply != nil {
//			// process reply
//			continue
//		}
//		r.Feed(nextChunkFromSocket())
//	}
//
// The package handles both RESP2 and RESP3 reply types:
//   - Simple Strings, Errors, Integers, Bulk Strings, Arrays
//   - Nulls, Doubles, Booleans, Big Numbers, Verbatim Strings
//   - Maps, Sets, Pushes, Blob Errors
//
// Typed extraction helpers (AsString, AsInt, AsFloat, AsBool,
// AsStatusOK) convert replies into Go values with strict type rules,
// and the rewrite helpers normalize command-specific edge cases.
package protocol
