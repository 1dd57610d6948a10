package bolt_test

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/aretw0/scaledspace/pkg/adapters/bolt"
	"github.com/aretw0/scaledspace/pkg/core"
)

// titleKey indexes the raw payload as a case-folded title.
func titleKey(data []byte) ([]byte, error) {
	return core.StringKey(string(data)), nil
}

// lengthKey indexes the payload length, standing in for a later index.
func lengthKey(data []byte) ([]byte, error) {
	return core.Int64Key(int64(len(data))), nil
}

var v1 = []core.Migration{
	{Version: 1, Description: "notes", Collections: []core.CollectionSpec{
		{Name: "notes", Indexes: []core.IndexSpec{{Name: "title", Key: titleKey}}},
	}},
}

var v2 = append(append([]core.Migration{}, v1...), core.Migration{
	Version: 2, Description: "length index and tags", Collections: []core.CollectionSpec{
		{Name: "notes", Indexes: []core.IndexSpec{{Name: "length", Key: lengthKey}}},
		{Name: "tags"},
	},
})

func openRepo(t *testing.T, cfg bolt.Config, migrations []core.Migration) *bolt.Repository {
	t.Helper()
	if cfg.Path == "" {
		cfg.Path = filepath.Join(t.TempDir(), "data.db")
	}
	repo := bolt.NewRepository(cfg)
	if err := repo.Initialize(context.Background(), migrations); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func doc(id, data string) core.Document {
	return core.Document{Collection: "notes", ID: id, Data: []byte(data)}
}

func scanIDs(t *testing.T, repo *bolt.Repository, rng core.IndexRange) []string {
	t.Helper()
	var ids []string
	err := repo.Scan(context.Background(), "notes", rng, func(d core.Document) error {
		ids = append(ids, d.ID)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	return ids
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestRepository_CRUD(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, bolt.Config{}, v1)

	t.Run("Insert And Get", func(t *testing.T) {
		if err := repo.Insert(ctx, doc("a", "Alpha")); err != nil {
			t.Fatalf("insert: %v", err)
		}
		got, err := repo.Get(ctx, "notes", "a")
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if string(got.Data) != "Alpha" {
			t.Errorf("expected Alpha, got %q", got.Data)
		}
	})

	t.Run("Insert Duplicate Fails", func(t *testing.T) {
		err := repo.Insert(ctx, doc("a", "Other"))
		if !errors.Is(err, core.ErrDuplicateKey) {
			t.Fatalf("expected ErrDuplicateKey, got %v", err)
		}
		got, _ := repo.Get(ctx, "notes", "a")
		if string(got.Data) != "Alpha" {
			t.Errorf("duplicate insert must not overwrite, got %q", got.Data)
		}
	})

	t.Run("Replace Missing Fails", func(t *testing.T) {
		err := repo.Replace(ctx, doc("zzz", "Ghost"))
		if !errors.Is(err, core.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("Put Upserts", func(t *testing.T) {
		if err := repo.Put(ctx, doc("b", "Beta")); err != nil {
			t.Fatalf("put new: %v", err)
		}
		if err := repo.Put(ctx, doc("b", "Bravo")); err != nil {
			t.Fatalf("put existing: %v", err)
		}
		got, _ := repo.Get(ctx, "notes", "b")
		if string(got.Data) != "Bravo" {
			t.Errorf("expected Bravo, got %q", got.Data)
		}
		if ids := scanIDs(t, repo, core.IndexRange{Index: "title"}); !equal(ids, []string{"a", "b"}) {
			t.Errorf("expected stale index entry to be replaced, got %v", ids)
		}
	})

	t.Run("Delete Is Idempotent", func(t *testing.T) {
		if err := repo.Delete(ctx, "notes", "b"); err != nil {
			t.Fatalf("delete: %v", err)
		}
		if err := repo.Delete(ctx, "notes", "b"); err != nil {
			t.Fatalf("second delete: %v", err)
		}
		if _, err := repo.Get(ctx, "notes", "b"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected ErrNotFound after delete, got %v", err)
		}
		if ids := scanIDs(t, repo, core.IndexRange{Index: "title"}); !equal(ids, []string{"a"}) {
			t.Errorf("expected index entry to be removed, got %v", ids)
		}
	})

	t.Run("Empty ID Is Invalid", func(t *testing.T) {
		for _, id := range []string{"", "  "} {
			err := repo.Put(ctx, doc(id, "Blank"))
			if !errors.Is(err, core.ErrInvalidID) {
				t.Errorf("expected ErrInvalidID for %q, got %v", id, err)
			}
			var se *core.StorageError
			if !errors.As(err, &se) || se.Op != "put" {
				t.Errorf("expected a put StorageError, got %#v", err)
			}
		}
	})

	t.Run("Unknown Collection", func(t *testing.T) {
		_, err := repo.Get(ctx, "nope", "a")
		if !errors.Is(err, core.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestRepository_Scan(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, bolt.Config{}, v1)

	for id, title := range map[string]string{"1": "cherry", "2": "Apple", "3": "banana", "4": "apple"} {
		if err := repo.Insert(ctx, doc(id, title)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	t.Run("Forward Order Folds Case", func(t *testing.T) {
		ids := scanIDs(t, repo, core.IndexRange{Index: "title"})
		if !equal(ids, []string{"2", "4", "3", "1"}) {
			t.Errorf("unexpected order %v", ids)
		}
	})

	t.Run("Reverse Order", func(t *testing.T) {
		ids := scanIDs(t, repo, core.IndexRange{Index: "title", Reverse: true})
		if !equal(ids, []string{"1", "3", "4", "2"}) {
			t.Errorf("unexpected order %v", ids)
		}
	})

	t.Run("Bounded Range", func(t *testing.T) {
		rng := core.IndexRange{Index: "title", From: core.StringKey("b"), To: core.StringKey("c")}
		if ids := scanIDs(t, repo, rng); !equal(ids, []string{"3"}) {
			t.Errorf("expected only banana, got %v", ids)
		}
		rng.Reverse = true
		if ids := scanIDs(t, repo, rng); !equal(ids, []string{"3"}) {
			t.Errorf("expected only banana in reverse, got %v", ids)
		}
	})

	t.Run("Callback Error Stops Scan", func(t *testing.T) {
		stop := errors.New("stop")
		calls := 0
		err := repo.Scan(ctx, "notes", core.IndexRange{Index: "title"}, func(core.Document) error {
			calls++
			return stop
		})
		if !errors.Is(err, stop) || calls != 1 {
			t.Errorf("expected scan to stop after first call, got err=%v calls=%d", err, calls)
		}
	})

	t.Run("Callback May Write", func(t *testing.T) {
		err := repo.Scan(ctx, "notes", core.IndexRange{Index: "title"}, func(d core.Document) error {
			return repo.Put(ctx, core.Document{Collection: "notes", ID: d.ID, Data: bytes.ToUpper(d.Data)})
		})
		if err != nil {
			t.Fatalf("scan with writes: %v", err)
		}
	})
}

func TestRepository_Migrations(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "data.db")

	old := bolt.NewRepository(bolt.Config{Path: path})
	if err := old.Initialize(ctx, v1); err != nil {
		t.Fatalf("init v1: %v", err)
	}
	if err := old.Insert(ctx, doc("short", "ab")); err != nil {
		t.Fatal(err)
	}
	if err := old.Insert(ctx, doc("long", "abcdef")); err != nil {
		t.Fatal(err)
	}
	if err := old.Close(); err != nil {
		t.Fatal(err)
	}

	t.Run("Upgrade Keeps Data And Backfills Indexes", func(t *testing.T) {
		repo := bolt.NewRepository(bolt.Config{Path: path})
		if err := repo.Initialize(ctx, v2); err != nil {
			t.Fatalf("init v2: %v", err)
		}
		defer repo.Close()

		if repo.Version() != 2 {
			t.Errorf("expected version 2, got %d", repo.Version())
		}
		docs, err := repo.List(ctx, "notes")
		if err != nil || len(docs) != 2 {
			t.Fatalf("expected 2 notes to survive, got %d (%v)", len(docs), err)
		}
		var ids []string
		err = repo.Scan(ctx, "notes", core.IndexRange{Index: "length", Reverse: true}, func(d core.Document) error {
			ids = append(ids, d.ID)
			return nil
		})
		if err != nil {
			t.Fatalf("scan: %v", err)
		}
		if !equal(ids, []string{"long", "short"}) {
			t.Errorf("expected backfilled index, got %v", ids)
		}
		if _, err := repo.List(ctx, "tags"); err != nil {
			t.Errorf("expected tags collection to exist: %v", err)
		}
	})

	t.Run("Downgrade Is Refused", func(t *testing.T) {
		repo := bolt.NewRepository(bolt.Config{Path: path})
		err := repo.Initialize(ctx, v1)
		if !errors.Is(err, core.ErrStorageUnavailable) {
			t.Fatalf("expected ErrStorageUnavailable, got %v", err)
		}
		if err := repo.Close(); err != nil {
			t.Errorf("close after failed init: %v", err)
		}
	})

	t.Run("Read Only Rejects Writes", func(t *testing.T) {
		repo := bolt.NewRepository(bolt.Config{Path: path, ReadOnly: true})
		if err := repo.Initialize(ctx, v2); err != nil {
			t.Fatalf("init read-only: %v", err)
		}
		defer repo.Close()

		if _, err := repo.Get(ctx, "notes", "short"); err != nil {
			t.Errorf("expected reads to work: %v", err)
		}
		if err := repo.Put(ctx, doc("x", "y")); !errors.Is(err, core.ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got %v", err)
		}
	})
}

func TestRepository_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("Before Initialize", func(t *testing.T) {
		repo := bolt.NewRepository(bolt.Config{Path: filepath.Join(t.TempDir(), "data.db")})
		if _, err := repo.Get(ctx, "notes", "a"); !errors.Is(err, core.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})

	t.Run("Concurrent Calls Share One Handle", func(t *testing.T) {
		repo := bolt.NewRepository(bolt.Config{Path: filepath.Join(t.TempDir(), "data.db")})
		defer repo.Close()

		var wg sync.WaitGroup
		errs := make(chan error, 8)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- repo.Initialize(ctx, v1)
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			if err != nil {
				t.Errorf("concurrent init: %v", err)
			}
		}
	})

	t.Run("Missing Directory With MustExist", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing", "data.db")
		repo := bolt.NewRepository(bolt.Config{Path: path, MustExist: true})
		if err := repo.Initialize(ctx, v1); !errors.Is(err, core.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})
}

func TestRepository_Quota(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, bolt.Config{MaxSize: 1 << 20}, v1)

	if err := repo.Put(ctx, doc("small", "fits")); err != nil {
		t.Fatalf("small write: %v", err)
	}
	big := bytes.Repeat([]byte("x"), 2<<20)
	err := repo.Put(ctx, core.Document{Collection: "notes", ID: "big", Data: big})
	if !errors.Is(err, core.ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}
	if _, err := repo.Get(ctx, "notes", "big"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("rejected write must not be stored, got %v", err)
	}
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()
	repo := openRepo(t, bolt.Config{}, v1)

	t.Run("Commit Applies All", func(t *testing.T) {
		err := core.WithTransaction(ctx, repo, "notes", func(tx core.Transaction) error {
			if err := tx.Put(ctx, doc("t1", "one")); err != nil {
				return err
			}
			if _, err := tx.Get(ctx, "t1"); err != nil {
				t.Errorf("expected to read own write: %v", err)
			}
			return tx.Put(ctx, doc("t2", "two"))
		})
		if err != nil {
			t.Fatalf("transaction: %v", err)
		}
		for _, id := range []string{"t1", "t2"} {
			if _, err := repo.Get(ctx, "notes", id); err != nil {
				t.Errorf("expected %s to be committed: %v", id, err)
			}
		}
	})

	t.Run("Error Rolls Back", func(t *testing.T) {
		boom := errors.New("boom")
		err := core.WithTransaction(ctx, repo, "notes", func(tx core.Transaction) error {
			if err := tx.Put(ctx, doc("t3", "three")); err != nil {
				return err
			}
			return boom
		})
		if !errors.Is(err, boom) {
			t.Fatalf("expected boom, got %v", err)
		}
		if _, err := repo.Get(ctx, "notes", "t3"); !errors.Is(err, core.ErrNotFound) {
			t.Errorf("expected rollback, got %v", err)
		}
	})
}

func TestRepository_State(t *testing.T) {
	repo := openRepo(t, bolt.Config{}, v1)
	_ = repo.Insert(context.Background(), doc("a", "Alpha"))

	state, ok := repo.State().(bolt.RepositoryState)
	if !ok {
		t.Fatalf("unexpected state type %T", repo.State())
	}
	if !state.Open || state.SchemaVersion != 1 || state.Collections["notes"] != 1 {
		t.Errorf("unexpected state %+v", state)
	}
	if repo.ComponentType() != "repository" {
		t.Errorf("unexpected component type %q", repo.ComponentType())
	}
}
