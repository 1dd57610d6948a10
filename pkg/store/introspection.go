package store

import (
	"github.com/aretw0/introspection"
)

// State is a snapshot of the store for introspection.
type State struct {
	Ready         bool `json:"ready"`
	SchemaVersion int  `json:"schema_version"`
	Engine        any  `json:"engine,omitempty"`
}

// State implements introspection.Introspectable.
func (s *Store) State() any {
	s.mu.Lock()
	ready := s.ready
	s.mu.Unlock()

	state := State{Ready: ready, SchemaVersion: SchemaVersion}
	if in, ok := s.repo.(introspection.Introspectable); ok {
		state.Engine = in.State()
	}
	return state
}

// ComponentType implements introspection.Component.
func (s *Store) ComponentType() string {
	return "store"
}

var _ introspection.Introspectable = (*Store)(nil)
var _ introspection.Component = (*Store)(nil)
