package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/aretw0/scaledspace"
	"github.com/aretw0/scaledspace/pkg/store"
)

func main() {
	count := flag.Int("count", 1000, "Number of notes to generate")
	keep := flag.Bool("keep", false, "Keep the benchmark data dir after running")
	flag.Parse()

	benchDir, err := os.MkdirTemp("", "scaledspace_bench_")
	if err != nil {
		panic(err)
	}
	defer func() {
		if !*keep {
			os.RemoveAll(benchDir)
		} else {
			fmt.Printf("Keeping bench dir: %s\n", benchDir)
		}
	}()

	ctx := context.TODO()
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	s, err := scaledspace.New(ctx, benchDir, scaledspace.WithLogger(logger))
	if err != nil {
		panic(err)
	}

	fmt.Printf("Generating %d notes in %s...\n", *count, benchDir)
	startGen := time.Now()
	base := time.Now().UnixMilli()
	for i := 0; i < *count; i++ {
		note := store.Note{
			ID:        fmt.Sprintf("note_%d", i),
			Title:     fmt.Sprintf("Note %d", i),
			Content:   "This is a test note.",
			Tags:      []string{"benchmark", "test"},
			CreatedAt: base + int64(i),
		}
		if err := s.Notes.Add(ctx, note); err != nil {
			panic(err)
		}
	}
	fmt.Printf("Generation took: %v\n", time.Since(startGen))

	// Run 1: in the process that wrote the data
	fmt.Println("Running List (Run 1 - Same Process)...")
	duration, items := timeList(ctx, s)
	fmt.Printf("Run 1 Result: %v (Items: %d)\n", duration, items)
	if err := s.Close(); err != nil {
		panic(err)
	}

	// Run 2: reopen to simulate a new CLI command run
	s2, err := scaledspace.New(ctx, benchDir, scaledspace.WithLogger(logger))
	if err != nil {
		panic(err)
	}
	defer s2.Close()

	fmt.Println("Running List (Run 2 - Reopened)...")
	duration2, items2 := timeList(ctx, s2)
	fmt.Printf("Run 2 Result: %v (Items: %d)\n", duration2, items2)

	startSearch := time.Now()
	found, err := s2.SearchNotes(ctx, "note 99", store.OrderNewest)
	if err != nil {
		panic(err)
	}
	searchDuration := time.Since(startSearch)

	fmt.Printf("--------------------------------------------------\n")
	fmt.Printf("Benchmark Result (%d notes):\n", *count)
	fmt.Printf("  List:     %v\n", duration)
	fmt.Printf("  Reopened: %v\n", duration2)
	fmt.Printf("  Search:   %v (Matches: %d)\n", searchDuration, len(found))
	fmt.Printf("--------------------------------------------------\n")
}

func timeList(ctx context.Context, s *store.Store) (time.Duration, int) {
	start := time.Now()
	list, err := s.ListNotes(ctx, store.OrderNewest)
	if err != nil {
		panic(err)
	}
	return time.Since(start), len(list)
}
