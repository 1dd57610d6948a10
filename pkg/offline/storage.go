package offline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fxamacker/cbor/v2"
	"go.etcd.io/bbolt"
)

// Entry is one cached response.
type Entry struct {
	Status   int         `cbor:"status"`
	Header   http.Header `cbor:"header"`
	Body     []byte      `cbor:"body"`
	StoredAt int64       `cbor:"storedAt"`
}

// Storage persists cache generations. A generation is a named set of
// entries keyed by request URI.
type Storage interface {
	Generations(ctx context.Context) ([]string, error)
	Has(ctx context.Context, generation string) (bool, error)
	Keys(ctx context.Context, generation string) ([]string, error)
	Match(ctx context.Context, generation, key string) (Entry, bool, error)
	Put(ctx context.Context, generation, key string, entry Entry) error
	// PutAll replaces a generation with entries in one transaction.
	PutAll(ctx context.Context, generation string, entries map[string]Entry) error
	Delete(ctx context.Context, generation string) error
	Close() error
}

// BoltStorage keeps each generation in its own bbolt bucket.
type BoltStorage struct {
	db *bbolt.DB
}

var errNoGeneration = errors.New("generation does not exist")

// OpenBoltStorage opens (creating if needed) a cache database at path.
func OpenBoltStorage(path string, timeout time.Duration) (*BoltStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("cache path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}
	if timeout <= 0 {
		timeout = time.Second
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	return &BoltStorage{db: db}, nil
}

func (s *BoltStorage) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *BoltStorage) Generations(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var names []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.ForEach(func(name []byte, _ *bbolt.Bucket) error {
			names = append(names, string(name))
			return nil
		})
	})
	return names, err
}

func (s *BoltStorage) Has(ctx context.Context, generation string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	found := false
	err := s.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket([]byte(generation)) != nil
		return nil
	})
	return found, err
}

func (s *BoltStorage) Keys(ctx context.Context, generation string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var keys []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(generation))
		if b == nil {
			return errNoGeneration
		}
		return b.ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("cache keys %s: %w", generation, err)
	}
	return keys, nil
}

func (s *BoltStorage) Match(ctx context.Context, generation, key string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	var raw []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(generation))
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			raw = bytes.Clone(v)
		}
		return nil
	})
	if err != nil || raw == nil {
		return Entry{}, false, err
	}
	var entry Entry
	if err := cbor.Unmarshal(raw, &entry); err != nil {
		return Entry{}, false, fmt.Errorf("decode cache entry %s: %w", key, err)
	}
	return entry, true, nil
}

// Put adds one entry to an existing generation.
func (s *BoltStorage) Put(ctx context.Context, generation, key string, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := cbor.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry %s: %w", key, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(generation))
		if b == nil {
			return fmt.Errorf("cache put %s: %w", generation, errNoGeneration)
		}
		return b.Put([]byte(key), raw)
	})
}

func (s *BoltStorage) PutAll(ctx context.Context, generation string, entries map[string]Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	encoded := make(map[string][]byte, len(entries))
	for k, e := range entries {
		raw, err := cbor.Marshal(e)
		if err != nil {
			return fmt.Errorf("encode cache entry %s: %w", k, err)
		}
		encoded[k] = raw
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		name := []byte(generation)
		if tx.Bucket(name) != nil {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		b, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("create generation %s: %w", generation, err)
		}
		for k, raw := range encoded {
			if err := b.Put([]byte(k), raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes a generation. Deleting an absent generation is not an error.
func (s *BoltStorage) Delete(ctx context.Context, generation string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		err := tx.DeleteBucket([]byte(generation))
		if errors.Is(err, bbolt.ErrBucketNotFound) {
			return nil
		}
		return err
	})
}
