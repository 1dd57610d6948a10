// Package scaledspace is the Composition Root for the scaledspace application.
//
// It connects the storage API (notes, voice notes and reminders) with the
// embedded bbolt engine and the offline cache, using the Hexagonal
// Architecture pattern: contracts live in pkg/core, engines in pkg/adapters.
//
// Features:
//
//   - **Versioned Schema**: Collections and indexes are created by ordered migrations.
//   - **Ordered Queries**: Index scans by creation time, title and schedule.
//   - **Typed Collections**: Generic wrapper (`typed.Collection[T]`) over raw records.
//   - **Offline Cache**: Versioned asset generations served through an `http.RoundTripper`.
//   - **Reminders**: A scheduler worker that notifies when reminders come due.
//
// Usage:
//
//	s, err := scaledspace.New(ctx, ".scaledspace",
//		scaledspace.WithLogger(logger),
//	)
//
//	// Save a note
//	err = s.Notes.Add(ctx, scaledspace.Note{ID: "n1", Title: "Groceries"})
package scaledspace
