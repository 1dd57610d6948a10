package bolt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.etcd.io/bbolt"

	"github.com/aretw0/scaledspace/pkg/core"
)

// Transaction is a writable bbolt transaction scoped to one collection.
// bbolt allows a single writer, so other writes block until it finishes.
type Transaction struct {
	repo       *Repository
	collection string
	spec       *core.CollectionSpec

	mu     sync.Mutex
	tx     *bbolt.Tx
	closed bool
}

var errTxClosed = errors.New("transaction already closed")

// Begin starts a new transaction.
func (r *Repository) Begin(ctx context.Context, collection string) (core.Transaction, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	db := r.db
	spec := r.schema.Collections[collection]
	r.mu.RUnlock()
	if db == nil {
		return nil, core.NewStorageError("begin", collection, "", core.ErrStorageUnavailable, errNotOpen)
	}
	if r.config.ReadOnly {
		return nil, core.NewStorageError("begin", collection, "", core.ErrReadOnly, nil)
	}
	if spec == nil {
		return nil, core.NewStorageError("begin", collection, "", core.ErrStorageUnavailable, errUnknownCollection)
	}

	tx, err := db.Begin(true)
	if err != nil {
		return nil, core.NewStorageError("begin", collection, "", core.ErrIOFailure, err)
	}
	return &Transaction{repo: r, collection: collection, spec: spec, tx: tx}, nil
}

func (t *Transaction) bucket() (*bbolt.Bucket, error) {
	if t.closed {
		return nil, errTxClosed
	}
	b := t.tx.Bucket([]byte(t.collection))
	if b == nil {
		return nil, errUnknownCollection
	}
	return b, nil
}

// Get reads a document, observing writes staged in this transaction.
func (t *Transaction) Get(ctx context.Context, id string) (core.Document, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.bucket()
	if err != nil {
		return core.Document{}, classify("get", t.collection, id, err)
	}
	payload := b.Get([]byte(id))
	if payload == nil {
		return core.Document{}, classify("get", t.collection, id, core.ErrNotFound)
	}
	return core.Document{Collection: t.collection, ID: id, Data: bytes.Clone(payload)}, nil
}

// Put stages an upsert.
func (t *Transaction) Put(ctx context.Context, doc core.Document) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if doc.Collection != "" && doc.Collection != t.collection {
		return fmt.Errorf("transaction is scoped to %s, got %s", t.collection, doc.Collection)
	}
	if strings.TrimSpace(doc.ID) == "" {
		return core.NewStorageError("put", t.collection, doc.ID, core.ErrInvalidID, nil)
	}
	b, err := t.bucket()
	if err != nil {
		return classify("put", t.collection, doc.ID, err)
	}
	if err := t.repo.checkQuota(t.tx, len(doc.Data)); err != nil {
		return classify("put", t.collection, doc.ID, err)
	}
	if err := putRecord(t.tx, b, t.spec, doc.ID, doc.Data, b.Get([]byte(doc.ID))); err != nil {
		return classify("put", t.collection, doc.ID, err)
	}
	return nil
}

// Delete stages a removal.
func (t *Transaction) Delete(ctx context.Context, id string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	b, err := t.bucket()
	if err != nil {
		return classify("delete", t.collection, id, err)
	}
	return classify("delete", t.collection, id, deleteRecord(t.tx, b, t.spec, id))
}

// Commit applies all staged changes.
func (t *Transaction) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return errTxClosed
	}
	t.closed = true
	if err := t.tx.Commit(); err != nil {
		return core.NewStorageError("commit", t.collection, "", core.ErrIOFailure, err)
	}
	return nil
}

// Rollback discards all staged changes.
func (t *Transaction) Rollback(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return nil
	}
	t.closed = true
	return t.tx.Rollback()
}
