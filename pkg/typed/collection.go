// Package typed provides type-safe collections over a core.Repository.
package typed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aretw0/scaledspace/pkg/core"
)

// Record is implemented by every type stored in a Collection.
type Record interface {
	RecordID() string
}

// Field names a searchable text field of a record.
// Values returns every string of the field (one for a title, many for tags).
type Field[T any] struct {
	Name   string
	Values func(T) []string
}

// Collection is a typed view of one repository collection.
type Collection[T Record] struct {
	repo   core.Repository
	name   string
	codec  Codec[T]
	fields []Field[T]
}

// Option configures a Collection.
type Option[T Record] func(*Collection[T])

// WithCodec overrides the default CBOR codec.
func WithCodec[T Record](codec Codec[T]) Option[T] {
	return func(c *Collection[T]) {
		c.codec = codec
	}
}

// WithFields registers the fields Search may match against.
func WithFields[T Record](fields ...Field[T]) Option[T] {
	return func(c *Collection[T]) {
		c.fields = append(c.fields, fields...)
	}
}

// NewCollection creates a typed wrapper around a repository collection.
func NewCollection[T Record](repo core.Repository, name string, opts ...Option[T]) *Collection[T] {
	c := &Collection[T]{
		repo:  repo,
		name:  name,
		codec: CBOR[T]{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the collection name.
func (c *Collection[T]) Name() string {
	return c.name
}

// Add stores a new record. It fails with core.ErrDuplicateKey if the id exists.
func (c *Collection[T]) Add(ctx context.Context, rec T) error {
	doc, err := c.encode(rec)
	if err != nil {
		return err
	}
	return c.repo.Insert(ctx, doc)
}

// Update replaces an existing record. It fails with core.ErrNotFound if absent.
func (c *Collection[T]) Update(ctx context.Context, rec T) error {
	doc, err := c.encode(rec)
	if err != nil {
		return err
	}
	return c.repo.Replace(ctx, doc)
}

// Put inserts or replaces a record.
func (c *Collection[T]) Put(ctx context.Context, rec T) error {
	doc, err := c.encode(rec)
	if err != nil {
		return err
	}
	return c.repo.Put(ctx, doc)
}

// Delete removes a record. Deleting an absent id succeeds.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.repo.Delete(ctx, c.name, id)
}

// Get returns the record with the given id. Absence is reported through
// found, not as an error.
func (c *Collection[T]) Get(ctx context.Context, id string) (rec T, found bool, err error) {
	doc, err := c.repo.Get(ctx, c.name, id)
	if errors.Is(err, core.ErrNotFound) {
		return rec, false, nil
	}
	if err != nil {
		return rec, false, err
	}
	rec, err = c.decode(doc)
	if err != nil {
		return rec, false, err
	}
	return rec, true, nil
}

// GetAll returns every record in no particular order.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	docs, err := c.repo.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	result := make([]T, 0, len(docs))
	for _, d := range docs {
		rec, err := c.decode(d)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, nil
}

// Search returns the records where any of the named fields contains query,
// ignoring case. No field names means every registered field. An empty
// query matches every record.
func (c *Collection[T]) Search(ctx context.Context, query string, fields ...string) ([]T, error) {
	selected, err := c.selectFields(fields)
	if err != nil {
		return nil, err
	}
	all, err := c.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	if query == "" {
		return all, nil
	}

	needle := core.Fold(query)
	result := make([]T, 0, len(all))
	for _, rec := range all {
		if matches(rec, needle, selected) {
			result = append(result, rec)
		}
	}
	return result, nil
}

func matches[T any](rec T, needle string, fields []Field[T]) bool {
	for _, f := range fields {
		for _, v := range f.Values(rec) {
			if strings.Contains(core.Fold(v), needle) {
				return true
			}
		}
	}
	return false
}

func (c *Collection[T]) selectFields(names []string) ([]Field[T], error) {
	if len(names) == 0 {
		return c.fields, nil
	}
	selected := make([]Field[T], 0, len(names))
	for _, name := range names {
		found := false
		for _, f := range c.fields {
			if f.Name == name {
				selected = append(selected, f)
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("%s: unknown search field %q", c.name, name)
		}
	}
	return selected, nil
}

// Modify reads a record, applies fn and writes the result in one transaction.
// It fails with core.ErrNotFound if the id is absent.
func (c *Collection[T]) Modify(ctx context.Context, id string, fn func(T) (T, error)) error {
	return core.WithTransaction(ctx, c.repo, c.name, func(tx core.Transaction) error {
		doc, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		rec, err := c.decode(doc)
		if err != nil {
			return err
		}
		rec, err = fn(rec)
		if err != nil {
			return err
		}
		if rec.RecordID() != id {
			return fmt.Errorf("%s: modify must not change the id %q", c.name, id)
		}
		next, err := c.encode(rec)
		if err != nil {
			return err
		}
		return tx.Put(ctx, next)
	})
}

// Scan returns the records selected by an index range, in index order.
func (c *Collection[T]) Scan(ctx context.Context, rng core.IndexRange) ([]T, error) {
	idx, ok := c.repo.(core.Indexed)
	if !ok {
		return nil, core.NewStorageError("scan", c.name, "", core.ErrStorageUnavailable, fmt.Errorf("repository has no indexes"))
	}
	var result []T
	err := idx.Scan(ctx, c.name, rng, func(doc core.Document) error {
		rec, err := c.decode(doc)
		if err != nil {
			return err
		}
		result = append(result, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Collection[T]) encode(rec T) (core.Document, error) {
	id := rec.RecordID()
	data, err := c.codec.Marshal(rec)
	if err != nil {
		return core.Document{}, fmt.Errorf("failed to encode %s %q: %w", c.name, id, err)
	}
	return core.Document{Collection: c.name, ID: id, Data: data}, nil
}

func (c *Collection[T]) decode(doc core.Document) (T, error) {
	rec, err := c.codec.Unmarshal(doc.Data)
	if err != nil {
		return rec, core.NewStorageError("decode", c.name, doc.ID, core.ErrIOFailure, err)
	}
	return rec, nil
}

// Index builds an index spec whose key is computed from the decoded record.
func Index[T any](name string, codec Codec[T], key func(T) []byte) core.IndexSpec {
	return core.IndexSpec{
		Name: name,
		Key: func(data []byte) ([]byte, error) {
			rec, err := codec.Unmarshal(data)
			if err != nil {
				return nil, err
			}
			return key(rec), nil
		},
	}
}
