// Package redisclient provides a pooled Redis client built on an
// incremental RESP2/RESP3 protocol reader.
//
// The client checks connections out of a bounded pool per command,
// supports pipelined batches and MULTI/EXEC transactions, and runs
// pub/sub subscribers on dedicated connections with automatic
// reconnection.
//
// Basic usage:
//
//	client, err := redisclient.New(
//		redisclient.WithAddr("localhost", 6379),
//		redisclient.WithPoolSize(4),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer client.Close()
//
//	ok, err := client.Set(ctx, "greeting", "hello")
//	value, found, err := client.Get(ctx, "greeting")
//
//	sub, err := client.Subscribe(func(msg redisclient.Message) {
//		fmt.Println(msg.Channel, msg.Payload)
//	}, "events.*")
//	defer sub.Stop()
//
// The library supports:
//
//   - RESP2 and RESP3 reply parsing, including maps, sets, and pushes
//   - Connection pooling with wait-with-timeout checkout
//   - Pipelines and MULTI/EXEC transactions with piped queuing
//   - Pub/sub with glob patterns and exponential backoff reconnect
//   - Structured logging and pluggable metrics collection
//
// Lower-level building blocks live in the protocol and conn
// subpackages.
package redisclient
