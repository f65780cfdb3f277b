package redisclient

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/danvales/redis-client-core/conn"
	"github.com/danvales/redis-client-core/protocol"
)

// Message is one pub/sub delivery. Pattern is empty unless the
// subscription was a glob pattern.
type Message struct {
	Channel string
	Pattern string
	Payload string
}

// SubscriberState tracks a subscriber's lifecycle.
type SubscriberState int32

const (
	// StateIdle means Start has not been called.
	StateIdle SubscriberState = iota

	// StateSubscribing means the subscriber is connecting or waiting
	// for subscription confirmations.
	StateSubscribing

	// StateConsuming means all subscriptions are confirmed and messages
	// flow to the handler.
	StateConsuming

	// StateStopped means Stop was called; the subscriber cannot be
	// restarted.
	StateStopped
)

// String returns the state name.
func (s SubscriberState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubscribing:
		return "subscribing"
	case StateConsuming:
		return "consuming"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

const messageBuffer = 128

// Subscriber consumes pub/sub messages on a dedicated connection,
// outside the client's pool. The handler runs on a single dispatch
// goroutine, so callbacks for one subscriber never overlap. A dropped
// connection is reestablished with exponential backoff until Stop.
type Subscriber struct {
	config   *config
	channels []string
	patterns []string
	handler  func(Message)

	state atomic.Int32

	mu      sync.Mutex
	conn    *conn.Connection
	started bool

	stop chan struct{}
	msgs chan Message
	wg   sync.WaitGroup
}

func newSubscriber(cfg *config, channels []string, handler func(Message)) *Subscriber {
	s := &Subscriber{
		config:  cfg,
		handler: handler,
		stop:    make(chan struct{}),
		msgs:    make(chan Message, messageBuffer),
	}
	for _, ch := range channels {
		if strings.ContainsAny(ch, "*?[") {
			s.patterns = append(s.patterns, ch)
		} else {
			s.channels = append(s.channels, ch)
		}
	}
	return s
}

// State returns the subscriber's current lifecycle state.
func (s *Subscriber) State() SubscriberState {
	return SubscriberState(s.state.Load())
}

// Start launches the run loop. Calling Start on an already-running
// subscriber is a no-op; a stopped subscriber cannot be restarted.
func (s *Subscriber) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.State() == StateStopped {
		return ErrClosed
	}
	if s.started {
		return nil
	}
	s.started = true
	s.state.Store(int32(StateSubscribing))

	s.wg.Add(2)
	go s.run()

	// Dispatch goroutine; exits when run closes msgs.
	go func() {
		defer s.wg.Done()
		for msg := range s.msgs {
			s.handler(msg)
		}
	}()

	return nil
}

// Stop terminates the run loop and waits for it to exit. The socket is
// closed out from under any blocked read, so Stop returns promptly.
// Stop is idempotent.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	if s.State() == StateStopped {
		s.mu.Unlock()
		return
	}
	s.state.Store(int32(StateStopped))
	wasStarted := s.started
	close(s.stop)
	if s.conn != nil {
		s.conn.CloseSocket()
	}
	s.mu.Unlock()

	if wasStarted {
		s.wg.Wait()
	} else {
		close(s.msgs)
	}
}

func (s *Subscriber) run() {
	defer s.wg.Done()
	defer close(s.msgs)

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = s.config.retryInitialInterval
	bo.MaxInterval = s.config.retryMaxInterval
	bo.MaxElapsedTime = 0

	for {
		if s.stopped() {
			return
		}

		err := s.consume(bo)
		if s.stopped() {
			return
		}

		wait := bo.NextBackOff()
		s.config.logger.Error("subscriber connection lost",
			Field{Key: "error", Value: err},
			Field{Key: "retry_in", Value: wait},
		)
		if s.config.metrics != nil {
			s.config.metrics.RecordReconnection()
		}

		s.state.Store(int32(StateSubscribing))
		select {
		case <-time.After(wait):
		case <-s.stop:
			return
		}
	}
}

// consume runs one connection's lifetime: dial, subscribe, then pump
// messages until the socket fails or Stop closes it.
func (s *Subscriber) consume(bo *backoff.ExponentialBackOff) error {
	opts := s.config.connOptions()
	// A subscription socket is idle between messages; only the
	// subscribe handshake may carry a read deadline.
	opts.CommandTimeout = 0

	cn, err := conn.Connect(opts)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.State() == StateStopped {
		s.mu.Unlock()
		cn.Close()
		return nil
	}
	s.conn = cn
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()
		cn.Close()
	}()

	if len(s.channels) > 0 {
		if err := cn.Send("SUBSCRIBE", s.channels...); err != nil {
			return err
		}
	}
	if len(s.patterns) > 0 {
		if err := cn.Send("PSUBSCRIBE", s.patterns...); err != nil {
			return err
		}
	}

	pending := len(s.channels) + len(s.patterns)
	for {
		rep, err := cn.Recv(true)
		if err != nil {
			return err
		}

		kind, msg, err := parsePush(rep)
		if err != nil {
			return err
		}

		switch kind {
		case "subscribe", "psubscribe":
			if pending > 0 {
				pending--
				if pending == 0 {
					s.state.Store(int32(StateConsuming))
					bo.Reset()
					s.config.logger.Info("subscriptions established",
						Field{Key: "channels", Value: len(s.channels)},
						Field{Key: "patterns", Value: len(s.patterns)},
					)
				}
			}
		case "message", "pmessage":
			select {
			case s.msgs <- msg:
			case <-s.stop:
				return nil
			}
		default:
			// unsubscribe confirmations and pongs are ignored
		}
	}
}

// parsePush decodes one pub/sub frame. Frames arrive as arrays in
// RESP2 and as push replies in RESP3; both carry the kind first.
func parsePush(rep *protocol.Reply) (string, Message, error) {
	if rep.Type != protocol.TypeArray && rep.Type != protocol.TypePush {
		return "", Message{}, &protocol.Error{
			Message: "expect ARRAY or PUSH reply on subscription, got " + rep.Type.String(),
		}
	}
	if len(rep.Elems) == 0 {
		return "", Message{}, &protocol.Error{Message: "empty subscription frame"}
	}

	kind := string(rep.Elems[0].Data)
	switch kind {
	case "message":
		if len(rep.Elems) != 3 {
			return "", Message{}, &protocol.Error{Message: "malformed message frame"}
		}
		return kind, Message{
			Channel: string(rep.Elems[1].Data),
			Payload: string(rep.Elems[2].Data),
		}, nil
	case "pmessage":
		if len(rep.Elems) != 4 {
			return "", Message{}, &protocol.Error{Message: "malformed pmessage frame"}
		}
		return kind, Message{
			Pattern: string(rep.Elems[1].Data),
			Channel: string(rep.Elems[2].Data),
			Payload: string(rep.Elems[3].Data),
		}, nil
	default:
		return kind, Message{}, nil
	}
}

func (s *Subscriber) stopped() bool {
	return s.State() == StateStopped
}
