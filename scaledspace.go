package scaledspace

import (
	"context"
	_ "embed"
	"log/slog"
	"time"

	"github.com/aretw0/scaledspace/internal/platform"
	"github.com/aretw0/scaledspace/pkg/metrics"
	"github.com/aretw0/scaledspace/pkg/offline"
	"github.com/aretw0/scaledspace/pkg/store"
	"github.com/aretw0/scaledspace/pkg/typed"
)

// Version exposes the version of the library.
//
//go:embed VERSION
var Version string

// --- Types ---

// Store is the storage API.
type Store = store.Store

// Note is a titled text entry with tags.
type Note = store.Note

// VoiceNote is a titled audio recording.
type VoiceNote = store.VoiceNote

// Reminder is a titled entry scheduled for a point in time.
type Reminder = store.Reminder

// Collection is a public alias for the typed collection.
type Collection[T typed.Record] = typed.Collection[T]

// --- Configuration ---

// Option defines a functional option for configuring scaledspace.
type Option = platform.Option

// Config is the process configuration read from the environment.
type Config = platform.Config

// WithLogger sets the logger for the store and its engine.
func WithLogger(logger *slog.Logger) Option {
	return platform.WithLogger(logger)
}

// WithRepository allows injecting a custom storage engine.
func WithRepository(repo metrics.Engine) Option {
	return platform.WithRepository(repo)
}

// WithReadOnly opens the database without write access.
func WithReadOnly(enabled bool) Option {
	return platform.WithReadOnly(enabled)
}

// WithMustExist refuses to create the data directory.
func WithMustExist(must bool) Option {
	return platform.WithMustExist(must)
}

// WithForceTemp forces the use of a temporary directory (useful for testing).
func WithForceTemp(force bool) Option {
	return platform.WithForceTemp(force)
}

// WithDevSafety controls the sandbox used under `go run` and `go test`.
func WithDevSafety(enabled bool) Option {
	return platform.WithDevSafety(enabled)
}

// WithMaxSize caps the database size in bytes.
func WithMaxSize(bytes int64) Option {
	return platform.WithMaxSize(bytes)
}

// WithTimeout bounds how long opening waits for the file lock.
func WithTimeout(d time.Duration) Option {
	return platform.WithTimeout(d)
}

// LoadConfig reads .env files and SCALEDSPACE_* variables.
func LoadConfig(dotenv ...string) (Config, error) {
	return platform.LoadConfig(dotenv...)
}

// --- Factory ---

// New opens the store under dataDir.
func New(ctx context.Context, dataDir string, opts ...Option) (*Store, error) {
	return platform.New(ctx, dataDir, opts...)
}

// OpenCache opens the offline cache storage under dataDir.
func OpenCache(dataDir string, opts ...Option) (*offline.BoltStorage, error) {
	return platform.OpenCache(dataDir, opts...)
}

// --- Safety & Utils ---

// ResolveDataDir determines the actual data directory based on safety rules.
func ResolveDataDir(userPath string, forceTemp bool) string {
	return platform.ResolveDataDir(userPath, forceTemp)
}

// IsDevRun checks if the current process is running via `go run` or `go test`.
func IsDevRun() bool {
	return platform.IsDevRun()
}

// FindRoot recursively looks upwards for a project root indicator.
func FindRoot(startDir string) (string, error) {
	return platform.FindRoot(startDir)
}
