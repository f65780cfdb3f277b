package redisclient

import (
	"time"

	"github.com/danvales/redis-client-core/conn"
)

// config holds the configuration for a Client
type config struct {
	// Server connection settings
	host     string
	port     int
	path     string
	user     string
	password string
	db       int

	// Timeouts
	connectTimeout time.Duration
	commandTimeout time.Duration

	// Pool sizing
	poolSize        int
	poolWaitTimeout time.Duration

	// Subscriber reconnect backoff
	retryInitialInterval time.Duration
	retryMaxInterval     time.Duration

	// Observability
	logger  Logger
	metrics MetricsCollector
}

// defaultConfig returns a configuration with sensible defaults
func defaultConfig() *config {
	return &config{
		host:                 "localhost",
		port:                 6379,
		connectTimeout:       5 * time.Second,
		commandTimeout:       5 * time.Second,
		poolSize:             3,
		poolWaitTimeout:      100 * time.Millisecond,
		retryInitialInterval: 500 * time.Millisecond,
		retryMaxInterval:     30 * time.Second,
		logger:               &defaultLogger{},
	}
}

func (c *config) connOptions() conn.Options {
	return conn.Options{
		Host:           c.host,
		Port:           c.port,
		Path:           c.path,
		User:           c.user,
		Password:       c.password,
		DB:             c.db,
		ConnectTimeout: c.connectTimeout,
		CommandTimeout: c.commandTimeout,
	}
}

// Option represents a configuration option for a Client
type Option func(*config) error

// WithAddr sets the Redis server host and port
//
// Example:
//
//	WithAddr("redis.example.com", 6379)
func WithAddr(host string, port int) Option {
	return func(c *config) error {
		if host == "" || port <= 0 || port > 65535 {
			return ErrInvalidConfig
		}
		c.host = host
		c.port = port
		return nil
	}
}

// WithUnixSocket connects over a Unix domain socket instead of TCP
//
// Example:
//
//	WithUnixSocket("/var/run/redis/redis.sock")
func WithUnixSocket(path string) Option {
	return func(c *config) error {
		if path == "" {
			return ErrInvalidConfig
		}
		c.path = path
		return nil
	}
}

// WithAuth sets the password sent during the connect handshake
//
// Example:
//
//	WithAuth("mypassword")
func WithAuth(password string) Option {
	return func(c *config) error {
		c.password = password
		return nil
	}
}

// WithUser sets the ACL username paired with the password
//
// Example:
//
//	WithUser("app"), WithAuth("secret")
func WithUser(user string) Option {
	return func(c *config) error {
		c.user = user
		return nil
	}
}

// WithDB selects a logical database after authentication
//
// Example:
//
//	WithDB(2)
func WithDB(db int) Option {
	return func(c *config) error {
		if db < 0 {
			return ErrInvalidConfig
		}
		c.db = db
		return nil
	}
}

// WithConnectTimeout sets the socket establishment timeout
//
// Example:
//
//	WithConnectTimeout(10 * time.Second)
func WithConnectTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.connectTimeout = timeout
		return nil
	}
}

// WithCommandTimeout sets the per-read and per-write deadline for
// commands
//
// Example:
//
//	WithCommandTimeout(2 * time.Second)
func WithCommandTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.commandTimeout = timeout
		return nil
	}
}

// WithPoolSize sets the maximum number of pooled connections
//
// Example:
//
//	WithPoolSize(8)
func WithPoolSize(size int) Option {
	return func(c *config) error {
		if size < 1 {
			return ErrInvalidConfig
		}
		c.poolSize = size
		return nil
	}
}

// WithPoolWaitTimeout bounds how long a command waits for a free
// connection when the pool is at capacity
//
// Example:
//
//	WithPoolWaitTimeout(250 * time.Millisecond)
func WithPoolWaitTimeout(timeout time.Duration) Option {
	return func(c *config) error {
		if timeout <= 0 {
			return ErrInvalidConfig
		}
		c.poolWaitTimeout = timeout
		return nil
	}
}

// WithSubscribeBackoff sets the exponential backoff bounds used when a
// subscriber reconnects after a dropped connection
//
// Example:
//
//	WithSubscribeBackoff(time.Second, time.Minute)
func WithSubscribeBackoff(initial, max time.Duration) Option {
	return func(c *config) error {
		if initial <= 0 || max < initial {
			return ErrInvalidConfig
		}
		c.retryInitialInterval = initial
		c.retryMaxInterval = max
		return nil
	}
}

// WithLogger sets a custom logger for the client
//
// Example:
//
//	WithLogger(myCustomLogger)
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return ErrInvalidConfig
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics enables metrics collection with the provided collector
//
// Example:
//
//	WithMetrics(myMetricsCollector)
func WithMetrics(collector MetricsCollector) Option {
	return func(c *config) error {
		c.metrics = collector
		return nil
	}
}
