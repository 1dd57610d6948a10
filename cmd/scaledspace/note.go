package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/pkg/api"
	"github.com/aretw0/scaledspace/pkg/store"
)

var (
	noteTitle   string
	noteContent string
	noteFile    string
	noteTags    []string
	noteOrder   string
	noteJSON    bool
)

var noteCmd = &cobra.Command{
	Use:   "note",
	Short: "Manage text notes",
}

var noteAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Create a note",
	Long:  `Create a note. Content comes from --content, --file, or stdin with --file -.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if strings.TrimSpace(noteTitle) == "" {
			fmt.Println("Error: --title is required")
			cmd.Usage()
			os.Exit(1)
		}
		content, err := readContent(noteContent, noteFile)
		if err != nil {
			fatal("Failed to read content", err)
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		note := store.Note{
			ID:        api.NewID(),
			Title:     noteTitle,
			Content:   content,
			Tags:      nonNilTags(noteTags),
			CreatedAt: time.Now().UnixMilli(),
		}
		if err := s.Notes.Add(ctx, note); err != nil {
			fatal("Failed to save note", err)
		}
		fmt.Printf("Note created: %s\n", note.ID)
	},
}

var noteListCmd = &cobra.Command{
	Use:   "list",
	Short: "List notes",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runNoteQuery("")
	},
}

var noteSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search notes by title and tags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runNoteQuery(args[0])
	},
}

func runNoteQuery(query string) {
	order, err := store.ParseOrder(noteOrder)
	if err != nil {
		fatal("Invalid order", err)
	}

	ctx := context.Background()
	s := openStore(ctx)
	defer s.Close()

	var notes []store.Note
	if query != "" {
		notes, err = s.SearchNotes(ctx, query, order)
	} else {
		notes, err = s.ListNotes(ctx, order)
	}
	if err != nil {
		fatal("Error listing notes", err)
	}

	var filtered []store.Note
	for _, note := range notes {
		if len(noteTags) > 0 && !hasAllTags(note.Tags, noteTags) {
			continue
		}
		filtered = append(filtered, note)
	}

	if noteJSON {
		printJSON(filtered)
		return
	}
	for _, note := range filtered {
		fmt.Printf("%s - %s [%s]\n", note.ID, note.Title, strings.Join(note.Tags, ", "))
	}
}

var noteShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Print a note",
	Long:  `Print a note's content, or the whole record with --json.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		note, found, err := s.Notes.Get(ctx, args[0])
		if err != nil {
			fatal("Error reading note", err)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "Note not found: %s\n", args[0])
			os.Exit(1)
		}

		if noteJSON {
			printJSON(note)
			return
		}
		fmt.Print(note.Content)
	},
}

var noteEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Change a note's title, content or tags",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		flags := cmd.Flags()
		var content string
		if flags.Changed("content") || flags.Changed("file") {
			var err error
			if content, err = readContent(noteContent, noteFile); err != nil {
				fatal("Failed to read content", err)
			}
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		err := s.Notes.Modify(ctx, args[0], func(n store.Note) (store.Note, error) {
			if flags.Changed("title") {
				if strings.TrimSpace(noteTitle) == "" {
					return n, fmt.Errorf("title cannot be empty")
				}
				n.Title = noteTitle
			}
			if flags.Changed("content") || flags.Changed("file") {
				n.Content = content
			}
			if flags.Changed("tag") {
				n.Tags = nonNilTags(noteTags)
			}
			return n, nil
		})
		if err != nil {
			fatal("Failed to update note", err)
		}
		fmt.Printf("Note updated: %s\n", args[0])
	},
}

var noteRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		if err := s.Notes.Delete(ctx, args[0]); err != nil {
			fatal("Error deleting note", err)
		}
		fmt.Printf("Note deleted: %s\n", args[0])
	},
}

func readContent(inline, file string) (string, error) {
	switch file {
	case "":
		return inline, nil
	case "-":
		data, err := io.ReadAll(os.Stdin)
		return string(data), err
	default:
		data, err := os.ReadFile(file)
		return string(data), err
	}
}

func hasAllTags(have, want []string) bool {
	for _, w := range want {
		if !slices.ContainsFunc(have, func(h string) bool { return strings.EqualFold(h, w) }) {
			return false
		}
	}
	return true
}

func nonNilTags(tags []string) []string {
	if tags == nil {
		return []string{}
	}
	return tags
}

func init() {
	rootCmd.AddCommand(noteCmd)
	noteCmd.AddCommand(noteAddCmd, noteListCmd, noteSearchCmd, noteShowCmd, noteEditCmd, noteRmCmd)

	for _, c := range []*cobra.Command{noteAddCmd, noteEditCmd} {
		c.Flags().StringVar(&noteTitle, "title", "", "Note title")
		c.Flags().StringVar(&noteContent, "content", "", "Note content")
		c.Flags().StringVarP(&noteFile, "file", "f", "", "Read content from a file (- for stdin)")
		c.Flags().StringSliceVarP(&noteTags, "tag", "t", nil, "Tag (repeatable)")
	}
	for _, c := range []*cobra.Command{noteListCmd, noteSearchCmd} {
		c.Flags().StringVar(&noteOrder, "order", "newest", "Order: newest, oldest or title")
		c.Flags().StringSliceVarP(&noteTags, "tag", "t", nil, "Only notes carrying every tag")
		c.Flags().BoolVar(&noteJSON, "json", false, "Output in JSON format")
	}
	noteShowCmd.Flags().BoolVar(&noteJSON, "json", false, "Output in JSON format")
}
