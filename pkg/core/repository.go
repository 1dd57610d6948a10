package core

import "context"

// Repository defines the contract for storing and retrieving documents.
// Adhering to this interface allows the domain to be independent of the
// underlying storage mechanism.
type Repository interface {
	// Initialize opens the underlying storage and applies every migration
	// newer than the stored schema version. It must be safe to call again.
	Initialize(ctx context.Context, migrations []Migration) error

	// Insert adds a new document. It fails with ErrDuplicateKey if the ID exists.
	Insert(ctx context.Context, doc Document) error

	// Replace overwrites an existing document. It fails with ErrNotFound if absent.
	Replace(ctx context.Context, doc Document) error

	// Put inserts or overwrites a document.
	Put(ctx context.Context, doc Document) error

	// Delete removes a document. Deleting an absent ID is not an error.
	Delete(ctx context.Context, collection, id string) error

	// Get retrieves a document by its ID. It returns ErrNotFound if absent.
	Get(ctx context.Context, collection, id string) (Document, error)

	// List returns all documents of a collection in no particular order.
	List(ctx context.Context, collection string) ([]Document, error)

	// Close releases the underlying storage handle.
	Close() error
}

// Indexed is implemented by repositories that maintain secondary indexes.
type Indexed interface {
	// Scan walks an index in key order, calling fn for each document in range.
	// Returning a non-nil error from fn stops the scan and is returned as is.
	Scan(ctx context.Context, collection string, r IndexRange, fn func(Document) error) error
}

// Transaction is a unit of work scoped to one collection.
// Reads observe the transaction's own writes.
type Transaction interface {
	Get(ctx context.Context, id string) (Document, error)
	Put(ctx context.Context, doc Document) error
	Delete(ctx context.Context, id string) error

	// Commit applies all staged changes atomically.
	Commit(ctx context.Context) error

	// Rollback discards all staged changes. It is a no-op after Commit.
	Rollback(ctx context.Context) error
}

// Transactional extends Repository to support transactions.
type Transactional interface {
	Repository

	// Begin starts a writable transaction over one collection.
	Begin(ctx context.Context, collection string) (Transaction, error)
}

// WithTransaction runs fn inside a transaction, committing on success.
func WithTransaction(ctx context.Context, repo Repository, collection string, fn func(tx Transaction) error) error {
	tr, ok := repo.(Transactional)
	if !ok {
		return NewStorageError("begin", collection, "", ErrStorageUnavailable, errUnsupported("transactions"))
	}

	tx, err := tr.Begin(ctx, collection)
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

type errUnsupported string

func (e errUnsupported) Error() string {
	return "repository does not support " + string(e)
}
