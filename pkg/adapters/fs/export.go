// Package fs exports the store to a directory tree of plain files and
// imports it back.
//
// Layout:
//
//	notes/<id>.<ext>
//	reminders/<id>.<ext>
//	voicenotes/<id>.<ext>     metadata
//	voicenotes/<id>.audio     raw recording
package fs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aretw0/scaledspace/pkg/store"
)

const (
	notesDir     = "notes"
	remindersDir = "reminders"
	voiceDir     = "voicenotes"
	audioExt     = ".audio"
)

// Summary counts the records an export or import touched.
type Summary struct {
	Notes      int `json:"notes"`
	VoiceNotes int `json:"voiceNotes"`
	Reminders  int `json:"reminders"`
}

// Config holds the export/import settings.
type Config struct {
	Dir         string
	Format      string // file extension for export, e.g. ".md"
	Serializers map[string]Serializer
	Logger      *slog.Logger
}

// Archive reads and writes a store snapshot under Dir.
type Archive struct {
	config Config
}

// NewArchive creates an archive rooted at config.Dir.
func NewArchive(config Config) (*Archive, error) {
	if config.Dir == "" {
		return nil, fmt.Errorf("archive directory is required")
	}
	if config.Serializers == nil {
		config.Serializers = DefaultSerializers()
	}
	if config.Format == "" {
		config.Format = ".md"
	}
	if !strings.HasPrefix(config.Format, ".") {
		config.Format = "." + config.Format
	}
	if _, ok := config.Serializers[config.Format]; !ok {
		return nil, fmt.Errorf("unsupported format %q", config.Format)
	}
	return &Archive{config: config}, nil
}

// Export writes every record of s.
func (a *Archive) Export(ctx context.Context, s *store.Store) (Summary, error) {
	var sum Summary
	ser := a.config.Serializers[a.config.Format]

	notes, err := s.Notes.GetAll(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to read notes: %w", err)
	}
	for _, n := range notes {
		fields, body := n, ""
		if ser.Frontmatter() {
			fields.Content, body = "", n.Content
		}
		if err := a.write(notesDir, n.ID, a.config.Format, ser, fields, body); err != nil {
			return sum, err
		}
		sum.Notes++
	}

	reminders, err := s.Reminders.GetAll(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to read reminders: %w", err)
	}
	for _, r := range reminders {
		fields, body := r, ""
		if ser.Frontmatter() {
			fields.Description, body = "", r.Description
		}
		if err := a.write(remindersDir, r.ID, a.config.Format, ser, fields, body); err != nil {
			return sum, err
		}
		sum.Reminders++
	}

	voice, err := s.VoiceNotes.GetAll(ctx)
	if err != nil {
		return sum, fmt.Errorf("failed to read voice notes: %w", err)
	}
	for _, v := range voice {
		if err := a.write(voiceDir, v.ID, a.config.Format, ser, v, ""); err != nil {
			return sum, err
		}
		if err := a.writeRaw(voiceDir, v.ID, audioExt, v.Blob); err != nil {
			return sum, err
		}
		sum.VoiceNotes++
	}

	if a.config.Logger != nil {
		a.config.Logger.Info("export finished", "dir", a.config.Dir, "format", a.config.Format,
			"notes", sum.Notes, "voice_notes", sum.VoiceNotes, "reminders", sum.Reminders)
	}
	return sum, nil
}

func (a *Archive) write(dir, id, ext string, ser Serializer, fields any, body string) error {
	data, err := ser.Serialize(fields, body)
	if err != nil {
		return fmt.Errorf("failed to serialize %s/%s: %w", dir, id, err)
	}
	return a.writeRaw(dir, id, ext, data)
}

func (a *Archive) writeRaw(dir, id, ext string, data []byte) error {
	if err := checkID(id); err != nil {
		return err
	}
	target := filepath.Join(a.config.Dir, dir)
	if err := os.MkdirAll(target, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", target, err)
	}
	return writeFileAtomic(filepath.Join(target, id+ext), data, 0644)
}

// checkID rejects ids that cannot be used as a single file name.
func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) || !filepath.IsLocal(id) {
		return fmt.Errorf("record id %q cannot be exported as a file name", id)
	}
	return nil
}

// Import reads an archive and upserts every record into s.
func (a *Archive) Import(ctx context.Context, s *store.Store) (Summary, error) {
	var sum Summary

	err := a.each(notesDir, func(id string, ser Serializer, data []byte) error {
		var n store.Note
		body, err := ser.Parse(data, &n)
		if err != nil {
			return err
		}
		if ser.Frontmatter() {
			n.Content = body
		}
		if n.ID == "" {
			n.ID = id
		}
		if err := s.Notes.Put(ctx, n); err != nil {
			return err
		}
		sum.Notes++
		return nil
	})
	if err != nil {
		return sum, err
	}

	err = a.each(remindersDir, func(id string, ser Serializer, data []byte) error {
		var r store.Reminder
		body, err := ser.Parse(data, &r)
		if err != nil {
			return err
		}
		if ser.Frontmatter() && body != "" {
			r.Description = body
		}
		if r.ID == "" {
			r.ID = id
		}
		if err := s.Reminders.Put(ctx, r); err != nil {
			return err
		}
		sum.Reminders++
		return nil
	})
	if err != nil {
		return sum, err
	}

	err = a.each(voiceDir, func(id string, ser Serializer, data []byte) error {
		var v store.VoiceNote
		if _, err := ser.Parse(data, &v); err != nil {
			return err
		}
		if v.ID == "" {
			v.ID = id
		}
		blob, err := os.ReadFile(filepath.Join(a.config.Dir, voiceDir, id+audioExt))
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("failed to read audio: %w", err)
		}
		v.Blob = blob
		if err := s.VoiceNotes.Put(ctx, v); err != nil {
			return err
		}
		sum.VoiceNotes++
		return nil
	})
	if err != nil {
		return sum, err
	}

	if a.config.Logger != nil {
		a.config.Logger.Info("import finished", "dir", a.config.Dir,
			"notes", sum.Notes, "voice_notes", sum.VoiceNotes, "reminders", sum.Reminders)
	}
	return sum, nil
}

// each calls fn for every record file of dir, in name order. A missing
// directory means an empty collection.
func (a *Archive) each(dir string, fn func(id string, ser Serializer, data []byte) error) error {
	entries, err := os.ReadDir(filepath.Join(a.config.Dir, dir))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, TempFilePrefix) || strings.HasPrefix(name, ".") {
			continue
		}
		ext := filepath.Ext(name)
		ser, ok := a.config.Serializers[ext]
		if !ok {
			continue
		}
		data, err := os.ReadFile(filepath.Join(a.config.Dir, dir, name))
		if err != nil {
			return fmt.Errorf("failed to read %s/%s: %w", dir, name, err)
		}
		id := strings.TrimSuffix(name, ext)
		if err := fn(id, ser, data); err != nil {
			return fmt.Errorf("failed to import %s/%s: %w", dir, name, err)
		}
	}
	return nil
}
