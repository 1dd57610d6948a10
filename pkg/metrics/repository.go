package metrics

import (
	"context"

	"github.com/aretw0/introspection"

	"github.com/aretw0/scaledspace/pkg/core"
)

// Engine is a repository with indexes and transactions.
type Engine interface {
	core.Transactional
	core.Indexed
}

// Repository counts storage failures of the engine it wraps.
type Repository struct {
	inner Engine
}

// InstrumentRepository wraps an engine so every failed operation is counted.
func InstrumentRepository(inner Engine) *Repository {
	return &Repository{inner: inner}
}

func (r *Repository) Initialize(ctx context.Context, migrations []core.Migration) error {
	err := r.inner.Initialize(ctx, migrations)
	ObserveStorage("initialize", err)
	return err
}

func (r *Repository) Insert(ctx context.Context, doc core.Document) error {
	err := r.inner.Insert(ctx, doc)
	ObserveStorage("insert", err)
	return err
}

func (r *Repository) Replace(ctx context.Context, doc core.Document) error {
	err := r.inner.Replace(ctx, doc)
	ObserveStorage("replace", err)
	return err
}

func (r *Repository) Put(ctx context.Context, doc core.Document) error {
	err := r.inner.Put(ctx, doc)
	ObserveStorage("put", err)
	return err
}

func (r *Repository) Delete(ctx context.Context, collection, id string) error {
	err := r.inner.Delete(ctx, collection, id)
	ObserveStorage("delete", err)
	return err
}

// Get does not count ErrNotFound; absence is an answer, not a failure.
func (r *Repository) Get(ctx context.Context, collection, id string) (core.Document, error) {
	doc, err := r.inner.Get(ctx, collection, id)
	if Kind(err) != "not_found" {
		ObserveStorage("get", err)
	}
	return doc, err
}

func (r *Repository) List(ctx context.Context, collection string) ([]core.Document, error) {
	docs, err := r.inner.List(ctx, collection)
	ObserveStorage("list", err)
	return docs, err
}

func (r *Repository) Scan(ctx context.Context, collection string, rng core.IndexRange, fn func(core.Document) error) error {
	err := r.inner.Scan(ctx, collection, rng, fn)
	ObserveStorage("scan", err)
	return err
}

func (r *Repository) Begin(ctx context.Context, collection string) (core.Transaction, error) {
	tx, err := r.inner.Begin(ctx, collection)
	ObserveStorage("begin", err)
	return tx, err
}

func (r *Repository) Close() error {
	return r.inner.Close()
}

// State forwards introspection to the wrapped engine when it supports it.
func (r *Repository) State() any {
	if s, ok := r.inner.(introspection.Introspectable); ok {
		return s.State()
	}
	return nil
}

func (r *Repository) ComponentType() string {
	if c, ok := r.inner.(introspection.Component); ok {
		return c.ComponentType()
	}
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
