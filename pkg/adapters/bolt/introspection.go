package bolt

import (
	"github.com/aretw0/introspection"
	"go.etcd.io/bbolt"
)

// RepositoryState is a snapshot of the repository for introspection.
type RepositoryState struct {
	Path          string         `json:"path"`
	ReadOnly      bool           `json:"read_only"`
	Open          bool           `json:"open"`
	SchemaVersion int            `json:"schema_version"`
	Collections   map[string]int `json:"collections"`
	Size          int64          `json:"size_bytes"`
}

// State implements introspection.Introspectable.
func (r *Repository) State() any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state := RepositoryState{
		Path:          r.Path,
		ReadOnly:      r.config.ReadOnly,
		Open:          r.db != nil,
		SchemaVersion: r.version,
		Collections:   make(map[string]int, len(r.schema.Collections)),
	}
	if r.db == nil {
		return state
	}

	_ = r.db.View(func(tx *bbolt.Tx) error {
		state.Size = tx.Size()
		for name := range r.schema.Collections {
			if b := tx.Bucket([]byte(name)); b != nil {
				state.Collections[name] = b.Stats().KeyN
			}
		}
		return nil
	})
	return state
}

// ComponentType implements introspection.Component.
func (r *Repository) ComponentType() string {
	return "repository"
}

var _ introspection.Introspectable = (*Repository)(nil)
var _ introspection.Component = (*Repository)(nil)
