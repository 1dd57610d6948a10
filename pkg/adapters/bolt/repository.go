// Package bolt implements core.Repository on top of an embedded bbolt database.
//
// Layout: every collection is a top-level bucket keyed by record id, each
// secondary index is a sibling bucket named "<collection>#<index>" whose keys
// are core.IndexEntryKey(value, id), and "_meta" holds the schema version.
package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/aretw0/scaledspace/pkg/core"
)

const (
	metaBucket     = "_meta"
	versionKey     = "schema_version"
	indexSep       = "#"
	defaultTimeout = time.Second
)

// Config holds the configuration for the bbolt repository.
type Config struct {
	Path      string
	Timeout   time.Duration // how long to wait for the file lock; defaults to one second
	ReadOnly  bool
	MustExist bool  // refuse to create the parent directory
	MaxSize   int64 // zero means unlimited
	Logger    *slog.Logger
}

// Repository implements core.Repository and core.Transactional.
type Repository struct {
	Path   string
	config Config

	mu      sync.RWMutex
	db      *bbolt.DB
	schema  core.Schema
	version int
}

// NewRepository creates a repository. No I/O happens until Initialize.
func NewRepository(config Config) *Repository {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	return &Repository{
		Path:   config.Path,
		config: config,
	}
}

// Initialize opens the database file and migrates it to the latest version.
// Concurrent and repeated calls share one open handle.
func (r *Repository) Initialize(ctx context.Context, migrations []core.Migration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	schema, steps, err := core.BuildSchema(migrations)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	opened := false
	if r.db == nil {
		db, err := r.open()
		if err != nil {
			return core.NewStorageError("open", "", "", core.ErrStorageUnavailable, err)
		}
		r.db = db
		opened = true
	}

	version, err := r.migrate(steps, schema)
	if err != nil {
		if opened {
			_ = r.db.Close()
			r.db = nil
		}
		return err
	}

	r.schema = schema
	r.version = version
	return nil
}

func (r *Repository) open() (*bbolt.DB, error) {
	if strings.TrimSpace(r.Path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(r.Path)
	dir := filepath.Dir(cleanPath)

	if r.config.MustExist || r.config.ReadOnly {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("storage directory does not exist: %s", dir)
		}
		if !info.IsDir() {
			return nil, fmt.Errorf("storage path parent is not a directory: %s", dir)
		}
	} else if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	if r.config.Logger != nil {
		r.config.Logger.Debug("opening storage", "path", cleanPath, "read_only", r.config.ReadOnly)
	}

	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{
		Timeout:  r.config.Timeout,
		ReadOnly: r.config.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}
	return db, nil
}

// Close closes the underlying database. It is safe to call more than once.
func (r *Repository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.db == nil {
		return nil
	}
	err := r.db.Close()
	r.db = nil
	return err
}

// Version returns the schema version the open database is at.
func (r *Repository) Version() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

// Insert adds a new document, failing with core.ErrDuplicateKey if the id exists.
func (r *Repository) Insert(ctx context.Context, doc core.Document) error {
	return r.write(ctx, "insert", doc.Collection, doc.ID, len(doc.Data), func(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec) error {
		if b.Get([]byte(doc.ID)) != nil {
			return core.ErrDuplicateKey
		}
		return putRecord(tx, b, spec, doc.ID, doc.Data, nil)
	})
}

// Replace overwrites an existing document, failing with core.ErrNotFound if absent.
func (r *Repository) Replace(ctx context.Context, doc core.Document) error {
	return r.write(ctx, "replace", doc.Collection, doc.ID, len(doc.Data), func(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec) error {
		old := b.Get([]byte(doc.ID))
		if old == nil {
			return core.ErrNotFound
		}
		return putRecord(tx, b, spec, doc.ID, doc.Data, old)
	})
}

// Put inserts or overwrites a document.
func (r *Repository) Put(ctx context.Context, doc core.Document) error {
	return r.write(ctx, "put", doc.Collection, doc.ID, len(doc.Data), func(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec) error {
		return putRecord(tx, b, spec, doc.ID, doc.Data, b.Get([]byte(doc.ID)))
	})
}

// Delete removes a document and its index entries. Absent ids are ignored.
func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	return r.write(ctx, "delete", collection, id, 0, func(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec) error {
		return deleteRecord(tx, b, spec, id)
	})
}

// Get retrieves a document by id.
func (r *Repository) Get(ctx context.Context, collection, id string) (core.Document, error) {
	var doc core.Document
	err := r.read(ctx, "get", collection, id, func(tx *bbolt.Tx, b *bbolt.Bucket) error {
		payload := b.Get([]byte(id))
		if payload == nil {
			return core.ErrNotFound
		}
		doc = core.Document{Collection: collection, ID: id, Data: bytes.Clone(payload)}
		return nil
	})
	return doc, err
}

// List returns every document of a collection in key order.
func (r *Repository) List(ctx context.Context, collection string) ([]core.Document, error) {
	var docs []core.Document
	err := r.read(ctx, "list", collection, "", func(tx *bbolt.Tx, b *bbolt.Bucket) error {
		docs = make([]core.Document, 0, b.Stats().KeyN)
		return b.ForEach(func(k, v []byte) error {
			docs = append(docs, core.Document{Collection: collection, ID: string(k), Data: bytes.Clone(v)})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return docs, nil
}

// Scan walks a secondary index in order. Matching documents are collected
// inside one read transaction and handed to fn after it closes, so fn may
// call back into the repository.
func (r *Repository) Scan(ctx context.Context, collection string, rng core.IndexRange, fn func(core.Document) error) error {
	var docs []core.Document
	err := r.read(ctx, "scan", collection, "", func(tx *bbolt.Tx, b *bbolt.Bucket) error {
		ib := tx.Bucket(indexBucketName(collection, rng.Index))
		if ib == nil {
			return fmt.Errorf("index %s is missing", rng.Index)
		}
		c := ib.Cursor()

		collect := func(id []byte) {
			if payload := b.Get(id); payload != nil {
				docs = append(docs, core.Document{Collection: collection, ID: string(id), Data: bytes.Clone(payload)})
			}
		}

		if !rng.Reverse {
			var k, v []byte
			if rng.From != nil {
				k, v = c.Seek(rng.From)
			} else {
				k, v = c.First()
			}
			for ; k != nil && core.InRange(k, nil, rng.To); k, v = c.Next() {
				collect(v)
			}
			return nil
		}

		var k, v []byte
		if rng.To != nil {
			k, v = c.Seek(rng.To)
			if k == nil {
				k, v = c.Last()
			} else {
				k, v = c.Prev()
			}
		} else {
			k, v = c.Last()
		}
		for ; k != nil && core.InRange(k, rng.From, nil); k, v = c.Prev() {
			collect(v)
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, doc := range docs {
		if err := fn(doc); err != nil {
			return err
		}
	}
	return nil
}

func (r *Repository) read(ctx context.Context, op, collection, id string, fn func(tx *bbolt.Tx, b *bbolt.Bucket) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.RLock()
	db := r.db
	r.mu.RUnlock()
	if db == nil {
		return core.NewStorageError(op, collection, id, core.ErrStorageUnavailable, errNotOpen)
	}

	err := db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return errUnknownCollection
		}
		return fn(tx, b)
	})
	return classify(op, collection, id, err)
}

func (r *Repository) write(ctx context.Context, op, collection, id string, size int, fn func(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(id) == "" {
		return core.NewStorageError(op, collection, id, core.ErrInvalidID, nil)
	}

	r.mu.RLock()
	db := r.db
	spec := r.schema.Collections[collection]
	r.mu.RUnlock()
	if db == nil {
		return core.NewStorageError(op, collection, id, core.ErrStorageUnavailable, errNotOpen)
	}
	if r.config.ReadOnly {
		return core.NewStorageError(op, collection, id, core.ErrReadOnly, nil)
	}
	if spec == nil {
		return core.NewStorageError(op, collection, id, core.ErrStorageUnavailable, errUnknownCollection)
	}

	err := db.Update(func(tx *bbolt.Tx) error {
		if err := r.checkQuota(tx, size); err != nil {
			return err
		}
		b := tx.Bucket([]byte(collection))
		if b == nil {
			return errUnknownCollection
		}
		return fn(tx, b, spec)
	})
	if err == nil && r.config.Logger != nil {
		r.config.Logger.Debug("storage write", "op", op, "collection", collection, "id", id)
	}
	return classify(op, collection, id, err)
}

func (r *Repository) checkQuota(tx *bbolt.Tx, size int) error {
	if r.config.MaxSize <= 0 || size == 0 {
		return nil
	}
	if tx.Size()+int64(size) > r.config.MaxSize {
		return core.ErrQuotaExceeded
	}
	return nil
}

func putRecord(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec, id string, data, old []byte) error {
	for _, idx := range spec.Indexes {
		ib := tx.Bucket(indexBucketName(spec.Name, idx.Name))
		if ib == nil {
			return fmt.Errorf("index %s is missing", idx.Name)
		}
		if old != nil {
			oldValue, err := idx.Key(old)
			if err != nil {
				return fmt.Errorf("index %s of stored record: %w", idx.Name, err)
			}
			if err := ib.Delete(core.IndexEntryKey(oldValue, id)); err != nil {
				return err
			}
		}
		value, err := idx.Key(data)
		if err != nil {
			return fmt.Errorf("index %s: %w", idx.Name, err)
		}
		if err := ib.Put(core.IndexEntryKey(value, id), []byte(id)); err != nil {
			return err
		}
	}
	return b.Put([]byte(id), data)
}

func deleteRecord(tx *bbolt.Tx, b *bbolt.Bucket, spec *core.CollectionSpec, id string) error {
	old := b.Get([]byte(id))
	if old == nil {
		return nil
	}
	for _, idx := range spec.Indexes {
		ib := tx.Bucket(indexBucketName(spec.Name, idx.Name))
		if ib == nil {
			continue
		}
		value, err := idx.Key(old)
		if err != nil {
			return fmt.Errorf("index %s of stored record: %w", idx.Name, err)
		}
		if err := ib.Delete(core.IndexEntryKey(value, id)); err != nil {
			return err
		}
	}
	return b.Delete([]byte(id))
}

func indexBucketName(collection, index string) []byte {
	return []byte(collection + indexSep + index)
}

var (
	errNotOpen           = errors.New("storage is not initialized")
	errUnknownCollection = errors.New("collection does not exist")
)

// classify wraps err in a core.StorageError carrying the right kind.
func classify(op, collection, id string, err error) error {
	if err == nil {
		return nil
	}
	for _, kind := range []error{core.ErrDuplicateKey, core.ErrNotFound, core.ErrQuotaExceeded, core.ErrReadOnly} {
		if errors.Is(err, kind) {
			return core.NewStorageError(op, collection, id, kind, nil)
		}
	}
	if errors.Is(err, errUnknownCollection) {
		return core.NewStorageError(op, collection, id, core.ErrStorageUnavailable, err)
	}
	return core.NewStorageError(op, collection, id, core.ErrIOFailure, err)
}
