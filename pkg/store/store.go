// Package store is the storage API of scaledspace: the notes, voice notes
// and reminders collections plus the ordered queries the application runs.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/typed"
)

// Store owns the three collections over one repository.
type Store struct {
	Notes      *typed.Collection[Note]
	VoiceNotes *typed.Collection[VoiceNote]
	Reminders  *typed.Collection[Reminder]

	repo   core.Repository
	logger *slog.Logger

	mu    sync.Mutex
	ready bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates a Store. Call Init before using it.
func New(repo core.Repository, opts ...Option) *Store {
	s := &Store{
		repo:       repo,
		Notes:      typed.NewCollection(repo, NotesCollection, typed.WithFields(noteFields...)),
		VoiceNotes: typed.NewCollection(repo, VoiceNotesCollection, typed.WithFields(voiceFields...)),
		Reminders:  typed.NewCollection(repo, RemindersCollection, typed.WithFields(reminderFields...)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Init opens the repository and migrates it. It is safe to call repeatedly
// and from several goroutines; a failed Init may be retried.
func (s *Store) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ready {
		return nil
	}
	if err := s.repo.Initialize(ctx, Migrations()); err != nil {
		if s.logger != nil {
			s.logger.Error("storage init failed", "error", err)
		}
		return fmt.Errorf("failed to initialize store: %w", err)
	}
	s.ready = true
	if s.logger != nil {
		s.logger.Debug("storage ready", "schema_version", SchemaVersion)
	}
	return nil
}

// Close releases the repository.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ready = false
	return s.repo.Close()
}

// Repository returns the underlying repository.
func (s *Store) Repository() core.Repository {
	return s.repo
}

// Order selects how notes are listed.
type Order int

const (
	OrderNewest Order = iota
	OrderOldest
	OrderTitle
)

func (o Order) String() string {
	switch o {
	case OrderOldest:
		return "oldest"
	case OrderTitle:
		return "title"
	default:
		return "newest"
	}
}

// ParseOrder parses "newest", "oldest" or "title". Empty means newest.
func ParseOrder(s string) (Order, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "newest":
		return OrderNewest, nil
	case "oldest":
		return OrderOldest, nil
	case "title":
		return OrderTitle, nil
	default:
		return OrderNewest, fmt.Errorf("unknown order %q (expected newest, oldest or title)", s)
	}
}

// ListNotes returns every note in the requested order. Ties are broken by id.
func (s *Store) ListNotes(ctx context.Context, order Order) ([]Note, error) {
	switch order {
	case OrderOldest:
		return s.Notes.Scan(ctx, core.IndexRange{Index: IndexCreatedAt})
	case OrderTitle:
		return s.Notes.Scan(ctx, core.IndexRange{Index: IndexTitle})
	default:
		return s.Notes.Scan(ctx, core.IndexRange{Index: IndexCreatedAt, Reverse: true})
	}
}

// SearchNotes matches query against titles and tags, then sorts like ListNotes.
func (s *Store) SearchNotes(ctx context.Context, query string, order Order) ([]Note, error) {
	notes, err := s.Notes.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(notes, func(a, b Note) int {
		switch order {
		case OrderOldest:
			return compareCreated(a.CreatedAt, a.ID, b.CreatedAt, b.ID)
		case OrderTitle:
			if c := strings.Compare(core.Fold(a.Title), core.Fold(b.Title)); c != 0 {
				return c
			}
			return strings.Compare(a.ID, b.ID)
		default:
			return compareCreated(b.CreatedAt, b.ID, a.CreatedAt, a.ID)
		}
	})
	return notes, nil
}

func compareCreated(at int64, aid string, bt int64, bid string) int {
	switch {
	case at < bt:
		return -1
	case at > bt:
		return 1
	default:
		return strings.Compare(aid, bid)
	}
}

// ListVoiceNotes returns every voice note, newest first.
func (s *Store) ListVoiceNotes(ctx context.Context) ([]VoiceNote, error) {
	return s.VoiceNotes.Scan(ctx, core.IndexRange{Index: IndexCreatedAt, Reverse: true})
}

// UpcomingReminders returns reminders scheduled after now, soonest first.
func (s *Store) UpcomingReminders(ctx context.Context, now int64) ([]Reminder, error) {
	return s.Reminders.Scan(ctx, core.IndexRange{
		Index: IndexScheduledAt,
		From:  core.Int64Key(now + 1),
	})
}

// PastReminders returns reminders scheduled at or before now, latest first.
func (s *Store) PastReminders(ctx context.Context, now int64) ([]Reminder, error) {
	return s.Reminders.Scan(ctx, core.IndexRange{
		Index:   IndexScheduledAt,
		To:      core.Int64Key(now + 1),
		Reverse: true,
	})
}

// DueReminders returns reminders with now-window < scheduledAt <= now+window,
// soonest first.
func (s *Store) DueReminders(ctx context.Context, now int64, window time.Duration) ([]Reminder, error) {
	w := window.Milliseconds()
	return s.Reminders.Scan(ctx, core.IndexRange{
		Index: IndexScheduledAt,
		From:  core.Int64Key(now - w + 1),
		To:    core.Int64Key(now + w + 1),
	})
}

// Millis converts t to the millisecond timestamps records carry.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}
