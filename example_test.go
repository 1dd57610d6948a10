package scaledspace_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/scaledspace"
)

// Example_basic demonstrates how to open a store, save a note, and read it back.
func Example_basic() {
	tmpDir, err := os.MkdirTemp("", "scaledspace-example-*")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(tmpDir)

	ctx := context.Background()

	s, err := scaledspace.New(ctx, tmpDir)
	if err != nil {
		log.Fatal(err)
	}
	defer s.Close()

	// 1. Save a Note
	err = s.Notes.Add(ctx, scaledspace.Note{
		ID:        "hello-world",
		Title:     "Hello",
		Content:   "This is my first note.",
		Tags:      []string{"example"},
		CreatedAt: 1,
	})
	if err != nil {
		log.Fatal(err)
	}

	// 2. Read it back
	note, found, err := s.Notes.Get(ctx, "hello-world")
	if err != nil || !found {
		log.Fatal(err)
	}

	fmt.Printf("Found note: %s\n", note.Title)
	// Output:
	// Found note: Hello
}
