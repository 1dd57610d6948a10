package bolt

import (
	"encoding/binary"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/aretw0/scaledspace/pkg/core"
)

// migrate brings the open database up to schema.Version and returns the
// version it ended at. All pending steps run in a single write transaction,
// so a failed upgrade leaves the stored version and data untouched.
func (r *Repository) migrate(steps []core.Migration, schema core.Schema) (int, error) {
	if r.config.ReadOnly {
		return r.checkVersion(schema)
	}

	var final int
	err := r.db.Update(func(tx *bbolt.Tx) error {
		meta, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		stored := readVersion(meta)
		if stored > schema.Version {
			return fmt.Errorf("%w: stored schema version %d is newer than %d", core.ErrStorageUnavailable, stored, schema.Version)
		}

		for _, step := range steps {
			if step.Version <= stored {
				continue
			}
			if err := applyStep(tx, step); err != nil {
				return fmt.Errorf("migration %d (%s): %w", step.Version, step.Description, err)
			}
			if r.config.Logger != nil {
				r.config.Logger.Info("applied migration", "version", step.Version, "description", step.Description)
			}
		}

		// Indexes declared by earlier steps are verified on every open so a
		// bucket lost to manual surgery is rebuilt instead of silently empty.
		for _, spec := range schema.Collections {
			if err := ensureCollection(tx, *spec); err != nil {
				return err
			}
		}

		final = schema.Version
		return writeVersion(meta, final)
	})
	if err != nil {
		return 0, core.NewStorageError("migrate", "", "", core.ErrStorageUnavailable, err)
	}
	return final, nil
}

func (r *Repository) checkVersion(schema core.Schema) (int, error) {
	var stored int
	err := r.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(metaBucket))
		if meta == nil {
			return fmt.Errorf("database has no schema")
		}
		stored = readVersion(meta)
		if stored != schema.Version {
			return fmt.Errorf("schema version %d does not match %d and cannot be migrated read-only", stored, schema.Version)
		}
		return nil
	})
	if err != nil {
		return 0, core.NewStorageError("migrate", "", "", core.ErrStorageUnavailable, err)
	}
	return stored, nil
}

func applyStep(tx *bbolt.Tx, step core.Migration) error {
	for _, c := range step.Collections {
		if err := ensureCollection(tx, c); err != nil {
			return err
		}
	}
	return nil
}

// ensureCollection creates the collection bucket and any missing index
// buckets, backfilling new indexes from the records already stored.
func ensureCollection(tx *bbolt.Tx, spec core.CollectionSpec) error {
	b, err := tx.CreateBucketIfNotExists([]byte(spec.Name))
	if err != nil {
		return fmt.Errorf("create bucket %s: %w", spec.Name, err)
	}
	for _, idx := range spec.Indexes {
		name := indexBucketName(spec.Name, idx.Name)
		if tx.Bucket(name) != nil {
			continue
		}
		ib, err := tx.CreateBucket(name)
		if err != nil {
			return fmt.Errorf("create index %s: %w", name, err)
		}
		err = b.ForEach(func(k, v []byte) error {
			value, err := idx.Key(v)
			if err != nil {
				return fmt.Errorf("backfill index %s for %q: %w", idx.Name, k, err)
			}
			return ib.Put(core.IndexEntryKey(value, string(k)), k)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func readVersion(meta *bbolt.Bucket) int {
	raw := meta.Get([]byte(versionKey))
	if len(raw) != 8 {
		return 0
	}
	return int(binary.BigEndian.Uint64(raw))
}

func writeVersion(meta *bbolt.Bucket, version int) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(version))
	return meta.Put([]byte(versionKey), buf)
}
