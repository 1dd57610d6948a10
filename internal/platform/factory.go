package platform

import (
	"context"
	"path/filepath"

	"github.com/aretw0/scaledspace/pkg/adapters/bolt"
	"github.com/aretw0/scaledspace/pkg/metrics"
	"github.com/aretw0/scaledspace/pkg/offline"
	"github.com/aretw0/scaledspace/pkg/store"
)

const (
	// DatabaseFile holds the notes, voice notes and reminders.
	DatabaseFile = "scaledspace.db"
	// CacheFile holds the offline cache generations.
	CacheFile = "cache.db"
)

// New opens the store under dataDir and migrates it to the current schema.
//
//	s, err := platform.New(ctx, ".scaledspace", platform.WithLogger(logger))
func New(ctx context.Context, dataDir string, opts ...Option) (*store.Store, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}

	engine := o.repository
	if engine == nil {
		dir := resolve(dataDir, o)
		engine = bolt.NewRepository(bolt.Config{
			Path:      filepath.Join(dir, DatabaseFile),
			Timeout:   o.timeout,
			ReadOnly:  o.readOnly,
			MustExist: o.mustExist,
			MaxSize:   o.maxSize,
			Logger:    o.logger,
		})
	}

	s := store.New(metrics.InstrumentRepository(engine), store.WithLogger(o.logger))
	if err := s.Init(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// OpenCache opens the offline cache storage under dataDir.
func OpenCache(dataDir string, opts ...Option) (*offline.BoltStorage, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return offline.OpenBoltStorage(filepath.Join(resolve(dataDir, o), CacheFile), o.timeout)
}

// DataDir reports where New and OpenCache will place their files.
func DataDir(dataDir string, opts ...Option) string {
	o := defaultOptions()
	for _, opt := range opts {
		opt(o)
	}
	return resolve(dataDir, o)
}

func resolve(dataDir string, o *options) string {
	bypassSafety := o.readOnly || !o.devSafety
	useTemp := o.forceTemp || (IsDevRun() && !bypassSafety)
	resolved := ResolveDataDir(dataDir, useTemp)

	if o.logger != nil && useTemp {
		o.logger.Warn("running in SAFE MODE (Dev/Test)", "original_path", dataDir, "resolved_path", resolved)
	} else if o.logger != nil && IsDevRun() && bypassSafety {
		if o.readOnly {
			o.logger.Debug("running in READ-ONLY mode (bypassing dev sandbox)", "path", resolved)
		} else {
			o.logger.Warn("running in UNSAFE mode (bypassing dev sandbox)", "path", resolved)
		}
	}
	return resolved
}
