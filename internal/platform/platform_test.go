package platform

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aretw0/scaledspace/pkg/adapters/bolt"
	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/store"
)

func TestNew(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "data")

	t.Run("Creates Database", func(t *testing.T) {
		s, err := New(ctx, dir)
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		if err := s.Notes.Add(ctx, store.Note{ID: "n1", Title: "hello", Tags: []string{}}); err != nil {
			t.Fatalf("Add failed: %v", err)
		}
		if err := s.Close(); err != nil {
			t.Fatal(err)
		}
		if _, err := os.Stat(filepath.Join(dir, DatabaseFile)); err != nil {
			t.Errorf("database file missing: %v", err)
		}
	})

	t.Run("Read Only Reopen", func(t *testing.T) {
		s, err := New(ctx, dir, WithReadOnly(true))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer s.Close()

		if _, found, err := s.Notes.Get(ctx, "n1"); err != nil || !found {
			t.Fatalf("expected note after reopen, found=%v err=%v", found, err)
		}
		err = s.Notes.Add(ctx, store.Note{ID: "n2", Title: "nope"})
		if !errors.Is(err, core.ErrReadOnly) {
			t.Errorf("expected ErrReadOnly, got %v", err)
		}
	})

	t.Run("Must Exist", func(t *testing.T) {
		_, err := New(ctx, filepath.Join(t.TempDir(), "missing"), WithMustExist(true))
		if !errors.Is(err, core.ErrStorageUnavailable) {
			t.Errorf("expected ErrStorageUnavailable, got %v", err)
		}
	})

	t.Run("Injected Repository", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "custom.db")
		s, err := New(ctx, "ignored", WithRepository(bolt.NewRepository(bolt.Config{Path: path})))
		if err != nil {
			t.Fatalf("New failed: %v", err)
		}
		defer s.Close()
		if _, err := os.Stat(path); err != nil {
			t.Errorf("injected engine not used: %v", err)
		}
		if _, err := os.Stat("ignored"); err == nil {
			t.Error("data dir should not be created for an injected engine")
		}
	})
}

func TestOpenCache(t *testing.T) {
	dir := t.TempDir()
	cache, err := OpenCache(dir, WithTimeout(100*time.Millisecond))
	if err != nil {
		t.Fatalf("OpenCache failed: %v", err)
	}
	defer cache.Close()

	if _, err := os.Stat(filepath.Join(dir, CacheFile)); err != nil {
		t.Errorf("cache file missing: %v", err)
	}
	if DataDir(dir) != dir {
		t.Errorf("DataDir(%q) = %q", dir, DataDir(dir))
	}
}

func TestLoadConfig(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env"))
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.DataDir != DefaultDataDir || !cfg.DevSafety || cfg.NotifyInterval != time.Minute || cfg.Addr != "127.0.0.1:8080" {
			t.Errorf("unexpected defaults: %+v", cfg)
		}
	})

	t.Run("Environment And Dotenv", func(t *testing.T) {
		dotenv := filepath.Join(t.TempDir(), ".env")
		content := "SCALEDSPACE_UPSTREAM=http://localhost:5173\nSCALEDSPACE_MAX_SIZE=2048\nSCALEDSPACE_ADDR=from-file:1\n"
		if err := os.WriteFile(dotenv, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
		t.Setenv("SCALEDSPACE_ADDR", ":9090")
		t.Setenv("SCALEDSPACE_NOTIFY_WINDOW", "30s")
		// godotenv sets these; register them so they are restored.
		t.Setenv("SCALEDSPACE_UPSTREAM", "")
		t.Setenv("SCALEDSPACE_MAX_SIZE", "")
		os.Unsetenv("SCALEDSPACE_UPSTREAM")
		os.Unsetenv("SCALEDSPACE_MAX_SIZE")

		cfg, err := LoadConfig(dotenv)
		if err != nil {
			t.Fatalf("LoadConfig failed: %v", err)
		}
		if cfg.Upstream != "http://localhost:5173" || cfg.MaxSize != 2048 {
			t.Errorf("dotenv values not applied: %+v", cfg)
		}
		if cfg.Addr != ":9090" {
			t.Errorf("environment should win over .env, got %q", cfg.Addr)
		}
		if cfg.NotifyWindow != 30*time.Second {
			t.Errorf("NotifyWindow = %v", cfg.NotifyWindow)
		}
		if len(cfg.Options()) != 4 {
			t.Errorf("expected 4 options, got %d", len(cfg.Options()))
		}
	})

	t.Run("Invalid Value", func(t *testing.T) {
		t.Setenv("SCALEDSPACE_MAX_SIZE", "lots")
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "absent.env")); err == nil {
			t.Error("expected parse error")
		}
	})
}
