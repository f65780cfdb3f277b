// Package conn provides the connection discipline a Redis client
// embeds: a single-owner Connection with connect/command timeouts and
// broken-state tracking, pipeline and MULTI/EXEC transaction batching,
// and a bounded connection pool with wait-with-timeout checkout.
//
// A Connection belongs to exactly one logical caller between pool
// checkout and release. Ordering is guaranteed only within one
// connection's command stream; nothing here orders commands across
// connections.
//
// Any I/O, timeout, or protocol failure marks the connection broken.
// Broken connections refuse further commands; recovery is always an
// explicit Reconnect or pool-level eviction, never a silent retry.
package conn
