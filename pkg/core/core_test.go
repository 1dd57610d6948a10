package core_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/aretw0/scaledspace/pkg/core"
)

// MockRepository implements core.Repository in memory.
// It deliberately does NOT implement core.Transactional to test fallback/errors.
type MockRepository struct {
	docs map[string]core.Document
}

func NewMockRepository() *MockRepository {
	return &MockRepository{docs: make(map[string]core.Document)}
}

func (m *MockRepository) Initialize(ctx context.Context, migrations []core.Migration) error {
	return nil
}

func (m *MockRepository) Insert(ctx context.Context, doc core.Document) error {
	if _, ok := m.docs[doc.Collection+"/"+doc.ID]; ok {
		return core.ErrDuplicateKey
	}
	return m.Put(ctx, doc)
}

func (m *MockRepository) Replace(ctx context.Context, doc core.Document) error {
	if _, ok := m.docs[doc.Collection+"/"+doc.ID]; !ok {
		return core.ErrNotFound
	}
	return m.Put(ctx, doc)
}

func (m *MockRepository) Put(ctx context.Context, doc core.Document) error {
	m.docs[doc.Collection+"/"+doc.ID] = doc
	return nil
}

func (m *MockRepository) Delete(ctx context.Context, collection, id string) error {
	delete(m.docs, collection+"/"+id)
	return nil
}

func (m *MockRepository) Get(ctx context.Context, collection, id string) (core.Document, error) {
	doc, ok := m.docs[collection+"/"+id]
	if !ok {
		return core.Document{}, core.ErrNotFound
	}
	return doc, nil
}

func (m *MockRepository) List(ctx context.Context, collection string) ([]core.Document, error) {
	var docs []core.Document
	for _, doc := range m.docs {
		if doc.Collection == collection {
			docs = append(docs, doc)
		}
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

func (m *MockRepository) Close() error { return nil }

func TestWithTransaction_Unsupported(t *testing.T) {
	repo := NewMockRepository()

	err := core.WithTransaction(context.TODO(), repo, "notes", func(tx core.Transaction) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected error for non-transactional repo")
	}
	if !errors.Is(err, core.ErrStorageUnavailable) {
		t.Errorf("expected ErrStorageUnavailable, got %v", err)
	}
}

func TestStorageError(t *testing.T) {
	cause := fmt.Errorf("disk on fire")
	err := core.NewStorageError("insert", "notes", "n1", core.ErrIOFailure, cause)

	if !errors.Is(err, core.ErrIOFailure) {
		t.Error("expected error to match its kind")
	}
	if !errors.Is(err, cause) {
		t.Error("expected error to match its cause")
	}
	if errors.Is(err, core.ErrNotFound) {
		t.Error("did not expect error to match an unrelated kind")
	}
	want := `insert notes "n1": storage i/o failure: disk on fire`
	if err.Error() != want {
		t.Errorf("expected %q, got %q", want, err.Error())
	}
}

func TestInt64Key_Order(t *testing.T) {
	values := []int64{-1 << 40, -10, -1, 0, 1, 10, 1 << 40}
	for i := 1; i < len(values); i++ {
		prev, cur := core.Int64Key(values[i-1]), core.Int64Key(values[i])
		if bytes.Compare(prev, cur) >= 0 {
			t.Errorf("expected key(%d) < key(%d)", values[i-1], values[i])
		}
	}
}

func TestIndexEntryKey_Range(t *testing.T) {
	from := core.Int64Key(100)
	to := core.Int64Key(200)

	tests := []struct {
		name  string
		value int64
		want  bool
	}{
		{"below", 99, false},
		{"at lower bound", 100, true},
		{"inside", 150, true},
		{"at upper bound", 200, false},
		{"above", 201, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := core.IndexEntryKey(core.Int64Key(tt.value), "some-id")
			if got := core.InRange(key, from, to); got != tt.want {
				t.Errorf("InRange(%d) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}

func TestStringKey_FoldsCase(t *testing.T) {
	if !bytes.Equal(core.StringKey("Grocery LIST"), core.StringKey("grocery list")) {
		t.Error("expected case-insensitive string keys to match")
	}
}

func TestStringKey_EscapesSeparator(t *testing.T) {
	a := core.IndexEntryKey(core.StringKey("a\x00b"), "c")
	b := core.IndexEntryKey(core.StringKey("a"), "b\x00c")
	if bytes.Equal(a, b) {
		t.Fatal("index keys of different records must not collide")
	}
	if bytes.IndexByte(core.StringKey("x\x00y\x01z"), 0x00) >= 0 {
		t.Error("string keys must not contain the separator byte")
	}

	ordered := []string{"a", "a\x00", "a\x00\x00", "a\x01", "a\x02", "ab"}
	for i := 1; i < len(ordered); i++ {
		prev, cur := core.StringKey(ordered[i-1]), core.StringKey(ordered[i])
		if bytes.Compare(prev, cur) >= 0 {
			t.Errorf("expected key(%q) < key(%q)", ordered[i-1], ordered[i])
		}
	}
}

func TestBuildSchema(t *testing.T) {
	key := func(data []byte) ([]byte, error) { return data, nil }

	t.Run("Folds Migrations In Version Order", func(t *testing.T) {
		schema, sorted, err := core.BuildSchema([]core.Migration{
			{Version: 2, Collections: []core.CollectionSpec{{Name: "notes", Indexes: []core.IndexSpec{{Name: "title", Key: key}}}}},
			{Version: 1, Collections: []core.CollectionSpec{{Name: "notes", Indexes: []core.IndexSpec{{Name: "createdAt", Key: key}}}}},
		})
		if err != nil {
			t.Fatalf("BuildSchema failed: %v", err)
		}
		if sorted[0].Version != 1 || sorted[1].Version != 2 {
			t.Errorf("expected migrations sorted by version, got %d, %d", sorted[0].Version, sorted[1].Version)
		}
		if schema.Version != 2 {
			t.Errorf("expected schema version 2, got %d", schema.Version)
		}
		notes := schema.Collections["notes"]
		if notes == nil || len(notes.Indexes) != 2 {
			t.Fatalf("expected notes with 2 indexes, got %+v", notes)
		}
		if notes.Index("title") == nil || notes.Index("createdAt") == nil {
			t.Error("expected both indexes to be present")
		}
	})

	t.Run("Rejects Duplicate Versions", func(t *testing.T) {
		_, _, err := core.BuildSchema([]core.Migration{{Version: 1}, {Version: 1}})
		if err == nil {
			t.Fatal("expected error for duplicate versions")
		}
	})

	t.Run("Rejects Index Without Key Func", func(t *testing.T) {
		_, _, err := core.BuildSchema([]core.Migration{
			{Version: 1, Collections: []core.CollectionSpec{{Name: "notes", Indexes: []core.IndexSpec{{Name: "title"}}}}},
		})
		if err == nil {
			t.Fatal("expected error for index without key func")
		}
	})
}
