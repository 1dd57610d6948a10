package store

import (
	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/typed"
)

// Collection names.
const (
	NotesCollection      = "notes"
	VoiceNotesCollection = "voicenotes"
	RemindersCollection  = "reminders"
)

// Index names.
const (
	IndexCreatedAt   = "createdAt"
	IndexTitle       = "title"
	IndexScheduledAt = "scheduledAt"
)

// SchemaVersion is the version Migrations brings a database to.
const SchemaVersion = 3

// Migrations returns the ordered schema history. Each step only adds.
func Migrations() []core.Migration {
	notes := typed.CBOR[Note]{}
	voice := typed.CBOR[VoiceNote]{}
	reminders := typed.CBOR[Reminder]{}

	return []core.Migration{
		{
			Version:     1,
			Description: "notes",
			Collections: []core.CollectionSpec{{
				Name: NotesCollection,
				Indexes: []core.IndexSpec{
					typed.Index(IndexCreatedAt, notes, func(n Note) []byte { return core.Int64Key(n.CreatedAt) }),
					typed.Index(IndexTitle, notes, func(n Note) []byte { return core.StringKey(n.Title) }),
				},
			}},
		},
		{
			Version:     2,
			Description: "voice notes",
			Collections: []core.CollectionSpec{{
				Name: VoiceNotesCollection,
				Indexes: []core.IndexSpec{
					typed.Index(IndexCreatedAt, voice, func(v VoiceNote) []byte { return core.Int64Key(v.CreatedAt) }),
					typed.Index(IndexTitle, voice, func(v VoiceNote) []byte { return core.StringKey(v.Title) }),
				},
			}},
		},
		{
			Version:     3,
			Description: "reminders",
			Collections: []core.CollectionSpec{{
				Name: RemindersCollection,
				Indexes: []core.IndexSpec{
					typed.Index(IndexScheduledAt, reminders, func(r Reminder) []byte { return core.Int64Key(r.ScheduledAt) }),
					typed.Index(IndexCreatedAt, reminders, func(r Reminder) []byte { return core.Int64Key(r.CreatedAt) }),
					typed.Index(IndexTitle, reminders, func(r Reminder) []byte { return core.StringKey(r.Title) }),
				},
			}},
		},
	}
}

// MigrationsUpTo returns the history truncated at version, for opening
// databases written by older releases.
func MigrationsUpTo(version int) []core.Migration {
	all := Migrations()
	out := make([]core.Migration, 0, len(all))
	for _, m := range all {
		if m.Version <= version {
			out = append(out, m)
		}
	}
	return out
}

var (
	noteFields = []typed.Field[Note]{
		{Name: "title", Values: func(n Note) []string { return []string{n.Title} }},
		{Name: "tags", Values: func(n Note) []string { return n.Tags }},
	}
	voiceFields = []typed.Field[VoiceNote]{
		{Name: "title", Values: func(v VoiceNote) []string { return []string{v.Title} }},
	}
	reminderFields = []typed.Field[Reminder]{
		{Name: "title", Values: func(r Reminder) []string { return []string{r.Title} }},
		{Name: "description", Values: func(r Reminder) []string { return []string{r.Description} }},
	}
)
