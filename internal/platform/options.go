package platform

import (
	"log/slog"
	"time"

	"github.com/aretw0/scaledspace/pkg/metrics"
)

// options holds the internal configuration for opening scaledspace.
type options struct {
	repository metrics.Engine
	logger     *slog.Logger
	readOnly   bool
	mustExist  bool
	forceTemp  bool
	devSafety  bool
	maxSize    int64
	timeout    time.Duration
}

// Option defines a functional option for configuring scaledspace.
type Option func(*options)

// defaultOptions returns the default configuration.
func defaultOptions() *options {
	return &options{
		devSafety: true,
		timeout:   time.Second,
	}
}

// WithLogger sets the logger for the store and its engine.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithRepository injects a storage engine. The default bbolt engine is skipped
// and the data directory is ignored.
func WithRepository(repo metrics.Engine) Option {
	return func(o *options) {
		o.repository = repo
	}
}

// WithReadOnly opens the database without write access.
// Writes return core.ErrReadOnly and the dev sandbox is bypassed.
func WithReadOnly(enabled bool) Option {
	return func(o *options) {
		o.readOnly = enabled
	}
}

// WithMustExist refuses to create the data directory.
func WithMustExist(must bool) Option {
	return func(o *options) {
		o.mustExist = must
	}
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return func(o *options) {
		o.forceTemp = force
	}
}

// WithDevSafety controls the sandbox used when running via `go run` or `go test`.
// By default (true), the data directory is re-rooted under the system temp dir.
//
// CAUTION: Only disable this if you are sure your code is safe.
func WithDevSafety(enabled bool) Option {
	return func(o *options) {
		o.devSafety = enabled
	}
}

// WithMaxSize caps the database size in bytes. Zero means unlimited.
func WithMaxSize(bytes int64) Option {
	return func(o *options) {
		o.maxSize = bytes
	}
}

// WithTimeout bounds how long opening waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
