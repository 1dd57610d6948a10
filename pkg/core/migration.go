package core

import (
	"fmt"
	"sort"
)

// IndexFunc derives an index value from an encoded record.
type IndexFunc func(data []byte) ([]byte, error)

// IndexSpec declares a secondary index of a collection.
type IndexSpec struct {
	Name string
	Key  IndexFunc
}

// CollectionSpec declares a collection and the indexes it must have.
type CollectionSpec struct {
	Name    string
	Indexes []IndexSpec
}

// Migration is one additive schema step.
// Applying a step creates whatever it declares that is missing; it never
// drops or rewrites existing data.
type Migration struct {
	Version     int
	Description string
	Collections []CollectionSpec
}

// Schema is the union of every migration, used at runtime to maintain indexes.
type Schema struct {
	Version     int
	Collections map[string]*CollectionSpec
}

// BuildSchema validates migrations and folds them into a Schema.
// Migrations are returned sorted by version.
func BuildSchema(migrations []Migration) (Schema, []Migration, error) {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })

	schema := Schema{Collections: make(map[string]*CollectionSpec)}
	for i, m := range sorted {
		if m.Version <= 0 {
			return Schema{}, nil, fmt.Errorf("migration version must be positive, got %d", m.Version)
		}
		if i > 0 && sorted[i-1].Version == m.Version {
			return Schema{}, nil, fmt.Errorf("duplicate migration version %d", m.Version)
		}
		for _, c := range m.Collections {
			if c.Name == "" {
				return Schema{}, nil, fmt.Errorf("migration %d: collection name is required", m.Version)
			}
			spec, ok := schema.Collections[c.Name]
			if !ok {
				spec = &CollectionSpec{Name: c.Name}
				schema.Collections[c.Name] = spec
			}
			for _, idx := range c.Indexes {
				if idx.Name == "" || idx.Key == nil {
					return Schema{}, nil, fmt.Errorf("migration %d: index on %s needs a name and key func", m.Version, c.Name)
				}
				if spec.Index(idx.Name) == nil {
					spec.Indexes = append(spec.Indexes, idx)
				}
			}
		}
		schema.Version = m.Version
	}
	return schema, sorted, nil
}

// Index returns the named index spec, or nil.
func (c *CollectionSpec) Index(name string) *IndexSpec {
	for i := range c.Indexes {
		if c.Indexes[i].Name == name {
			return &c.Indexes[i]
		}
	}
	return nil
}
