package store

// Note is a titled text entry with tags.
type Note struct {
	ID        string   `cbor:"id" json:"id" yaml:"id"`
	Title     string   `cbor:"title" json:"title" yaml:"title"`
	Content   string   `cbor:"content" json:"content" yaml:"content,omitempty"`
	Tags      []string `cbor:"tags" json:"tags" yaml:"tags"`
	CreatedAt int64    `cbor:"createdAt" json:"createdAt" yaml:"createdAt"`
}

func (n Note) RecordID() string { return n.ID }

// VoiceNote is a titled audio recording stored by value.
type VoiceNote struct {
	ID        string `cbor:"id" json:"id" yaml:"id"`
	Title     string `cbor:"title" json:"title" yaml:"title"`
	Blob      []byte `cbor:"blob" json:"blob" yaml:"-"`
	MimeType  string `cbor:"mimeType,omitempty" json:"mimeType,omitempty" yaml:"mimeType,omitempty"`
	CreatedAt int64  `cbor:"createdAt" json:"createdAt" yaml:"createdAt"`
}

func (v VoiceNote) RecordID() string { return v.ID }

// Reminder is a titled entry scheduled for a point in time.
type Reminder struct {
	ID          string `cbor:"id" json:"id" yaml:"id"`
	Title       string `cbor:"title" json:"title" yaml:"title"`
	Description string `cbor:"description,omitempty" json:"description,omitempty" yaml:"description,omitempty"`
	ScheduledAt int64  `cbor:"scheduledAt" json:"scheduledAt" yaml:"scheduledAt"`
	CreatedAt   int64  `cbor:"createdAt" json:"createdAt" yaml:"createdAt"`
}

func (r Reminder) RecordID() string { return r.ID }
