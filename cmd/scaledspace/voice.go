package main

import (
	"context"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/pkg/api"
	"github.com/aretw0/scaledspace/pkg/store"
)

var (
	voiceTitle string
	voiceMime  string
	voiceJSON  bool
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Manage voice notes",
}

var voiceAddCmd = &cobra.Command{
	Use:   "add [audio-file]",
	Short: "Store an audio recording as a voice note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			fatal("Failed to read audio", err)
		}

		now := time.Now()
		voice := store.VoiceNote{
			ID:        api.NewID(),
			Title:     voiceTitle,
			Blob:      blob,
			MimeType:  voiceMime,
			CreatedAt: now.UnixMilli(),
		}
		if strings.TrimSpace(voice.Title) == "" {
			voice.Title = fmt.Sprintf("Voice note %s", now.Format("2006-01-02 15:04"))
		}
		if voice.MimeType == "" {
			voice.MimeType = mime.TypeByExtension(filepath.Ext(args[0]))
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		if err := s.VoiceNotes.Add(ctx, voice); err != nil {
			fatal("Failed to save voice note", err)
		}
		fmt.Printf("Voice note created: %s (%d bytes)\n", voice.ID, len(blob))
	},
}

var voiceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List voice notes, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		runVoiceQuery("")
	},
}

var voiceSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search voice notes by title",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		runVoiceQuery(args[0])
	},
}

func runVoiceQuery(query string) {
	ctx := context.Background()
	s := openStore(ctx)
	defer s.Close()

	var (
		voice []store.VoiceNote
		err   error
	)
	if query != "" {
		voice, err = s.VoiceNotes.Search(ctx, query)
	} else {
		voice, err = s.ListVoiceNotes(ctx)
	}
	if err != nil {
		fatal("Error listing voice notes", err)
	}

	if voiceJSON {
		for i := range voice {
			voice[i].Blob = nil
		}
		printJSON(voice)
		return
	}
	for _, v := range voice {
		created := time.UnixMilli(v.CreatedAt).Format(time.DateTime)
		fmt.Printf("%s - %s (%s, %d bytes)\n", v.ID, v.Title, created, len(v.Blob))
	}
}

var voiceSaveCmd = &cobra.Command{
	Use:   "save [id] [file]",
	Short: "Write a voice note's audio to a file",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		voice, found, err := s.VoiceNotes.Get(ctx, args[0])
		if err != nil {
			fatal("Error reading voice note", err)
		}
		if !found {
			fmt.Fprintf(os.Stderr, "Voice note not found: %s\n", args[0])
			os.Exit(1)
		}
		if err := os.WriteFile(args[1], voice.Blob, 0644); err != nil {
			fatal("Failed to write audio", err)
		}
		fmt.Printf("Saved %d bytes to %s\n", len(voice.Blob), args[1])
	},
}

var voiceRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a voice note",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		if err := s.VoiceNotes.Delete(ctx, args[0]); err != nil {
			fatal("Error deleting voice note", err)
		}
		fmt.Printf("Voice note deleted: %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(voiceCmd)
	voiceCmd.AddCommand(voiceAddCmd, voiceListCmd, voiceSearchCmd, voiceSaveCmd, voiceRmCmd)

	voiceAddCmd.Flags().StringVar(&voiceTitle, "title", "", "Title (default: recording time)")
	voiceAddCmd.Flags().StringVar(&voiceMime, "mime", "", "MIME type (default: from the file extension)")
	voiceListCmd.Flags().BoolVar(&voiceJSON, "json", false, "Output metadata in JSON format")
	voiceSearchCmd.Flags().BoolVar(&voiceJSON, "json", false, "Output metadata in JSON format")
}
