// Command redis-probe checks a Redis endpoint end to end: it runs a
// PING and a SET/GET/DEL round trip through the pooled client and
// reports per-step latency. With --channel it additionally tails
// pub/sub messages until interrupted.
//
// Usage:
//
//	redis-probe --addr=localhost:6379
//	redis-probe --addr=localhost:6379 --password=secret --db=2
//	redis-probe --addr=localhost:6379 --channel='events.*' --count=10
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	redisclient "github.com/danvales/redis-client-core"
)

func main() {
	var (
		addr     = flag.String("addr", "localhost:6379", "Redis endpoint (host:port)")
		socket   = flag.String("socket", "", "Unix socket path (overrides --addr)")
		user     = flag.String("user", "", "ACL username")
		password = flag.String("password", "", "Password for AUTH")
		db       = flag.Int("db", 0, "Database to SELECT")
		timeout  = flag.Duration("timeout", 5*time.Second, "Connect and command timeout")
		channel  = flag.String("channel", "", "Optional pub/sub channel or pattern to tail")
		count    = flag.Int("count", 0, "Stop tailing after this many messages (0 = until interrupted)")
		verbose  = flag.Bool("verbose", false, "Enable debug logging")
	)
	flag.Parse()

	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	opts := []redisclient.Option{
		redisclient.WithConnectTimeout(*timeout),
		redisclient.WithCommandTimeout(*timeout),
		redisclient.WithLogger(redisclient.NewLogrusLogger(log)),
	}
	if *socket != "" {
		opts = append(opts, redisclient.WithUnixSocket(*socket))
	} else {
		host, portStr, err := net.SplitHostPort(*addr)
		if err != nil {
			log.Fatalf("invalid --addr %q: %v", *addr, err)
		}
		port, err := strconv.Atoi(portStr)
		if err != nil {
			log.Fatalf("invalid port in --addr %q: %v", *addr, err)
		}
		opts = append(opts, redisclient.WithAddr(host, port))
	}
	if *password != "" {
		opts = append(opts, redisclient.WithAuth(*password))
	}
	if *user != "" {
		opts = append(opts, redisclient.WithUser(*user))
	}
	if *db > 0 {
		opts = append(opts, redisclient.WithDB(*db))
	}

	client, err := redisclient.New(opts...)
	if err != nil {
		log.Fatalf("configuration: %v", err)
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := probe(ctx, log, client); err != nil {
		status, detail := redisclient.Report(err)
		log.WithFields(logrus.Fields{
			"status": status.String(),
			"detail": detail,
		}).Fatal("probe failed")
	}
	log.Info("probe succeeded")

	if *channel != "" {
		tail(log, client, *channel, *count)
	}
}

// probe runs the PING and SET/GET/DEL round trip, logging each step's
// latency.
func probe(ctx context.Context, log *logrus.Logger, client *redisclient.Client) error {
	start := time.Now()
	if err := client.Ping(ctx); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	log.WithField("latency", time.Since(start)).Info("PING ok")

	key := fmt.Sprintf("redis-probe:%d", os.Getpid())
	value := time.Now().Format(time.RFC3339Nano)

	start = time.Now()
	if _, err := client.Set(ctx, key, value); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	log.WithField("latency", time.Since(start)).Info("SET ok")

	start = time.Now()
	got, found, err := client.Get(ctx, key)
	if err != nil {
		return fmt.Errorf("get %s: %w", key, err)
	}
	if !found || got != value {
		return fmt.Errorf("get %s: read back %q, wrote %q", key, got, value)
	}
	log.WithField("latency", time.Since(start)).Info("GET ok")

	start = time.Now()
	if _, err := client.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	log.WithField("latency", time.Since(start)).Info("DEL ok")

	return nil
}

// tail subscribes to the channel and prints messages until count is
// reached or the process is interrupted.
func tail(log *logrus.Logger, client *redisclient.Client, channel string, count int) {
	done := make(chan struct{})
	var seen int

	sub, err := client.Subscribe(func(msg redisclient.Message) {
		entry := log.WithFields(logrus.Fields{
			"channel": msg.Channel,
			"payload": msg.Payload,
		})
		if msg.Pattern != "" {
			entry = entry.WithField("pattern", msg.Pattern)
		}
		entry.Info("message")

		seen++
		if count > 0 && seen >= count {
			select {
			case <-done:
			default:
				close(done)
			}
		}
	}, channel)
	if err != nil {
		log.Fatalf("subscribe %s: %v", channel, err)
	}
	defer sub.Stop()

	log.WithField("channel", channel).Info("tailing messages, Ctrl-C to stop")

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)
	select {
	case <-interrupt:
	case <-done:
	}
}
