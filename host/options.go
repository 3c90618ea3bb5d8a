package host

import (
	"io"
	"log/slog"
)

// DefaultLocalMemorySize is the linear memory size of a local instance
// (16 wasm pages).
const DefaultLocalMemorySize = 16 * 65536

// DefaultGuestName names an instance when none is given.
const DefaultGuestName = "guest"

type config struct {
	sink             Sink
	logger           *slog.Logger
	stdout           io.Writer
	stderr           io.Writer
	memoryLimitPages uint32
	maxMessageSize   uint32
	localMemorySize  uint32
}

func defaultConfig() config {
	return config{
		logger:          slog.Default(),
		stdout:          io.Discard,
		stderr:          io.Discard,
		localMemorySize: DefaultLocalMemorySize,
	}
}

// Option configures an Executor or a local Instance.
type Option func(*config)

// WithSink sets where guest print messages go. Defaults to LogSink over the
// configured logger.
func WithSink(s Sink) Option {
	return func(c *config) {
		c.sink = s
	}
}

// WithLogger sets the host-side logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithStdio connects the guest's WASI stdout and stderr. A Go guest reports
// the panic behind a trap on stderr.
func WithStdio(stdout, stderr io.Writer) Option {
	return func(c *config) {
		if stdout != nil {
			c.stdout = stdout
		}
		if stderr != nil {
			c.stderr = stderr
		}
	}
}

// WithMemoryLimitPages caps the guest's linear memory, in 64KiB pages.
// Zero keeps the runtime default.
func WithMemoryLimitPages(pages uint32) Option {
	return func(c *config) {
		c.memoryLimitPages = pages
	}
}

// WithMaxMessageSize caps how many bytes of one print message are read.
// Zero keeps the adapter default.
func WithMaxMessageSize(size uint32) Option {
	return func(c *config) {
		c.maxMessageSize = size
	}
}

// WithLocalMemorySize sets the linear memory size of a local instance.
func WithLocalMemorySize(size uint32) Option {
	return func(c *config) {
		if size > 0 {
			c.localMemorySize = size
		}
	}
}

func (c *config) resolvedSink() Sink {
	if c.sink != nil {
		return c.sink
	}
	return LogSink(c.logger)
}
