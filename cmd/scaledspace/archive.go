package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/pkg/adapters/fs"
)

var (
	archiveDir    string
	archiveFormat string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write every record to a directory of plain files",
	Long: `Export writes notes, reminders and voice notes under --dir.
Markdown keeps a note's content as the body below YAML frontmatter.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		archive, err := fs.NewArchive(fs.Config{Dir: archiveDir, Format: archiveFormat, Logger: slog.Default()})
		if err != nil {
			fatal("Invalid export settings", err)
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		sum, err := archive.Export(ctx, s)
		if err != nil {
			fatal("Export failed", err)
		}
		fmt.Printf("Exported %d notes, %d voice notes, %d reminders to %s\n", sum.Notes, sum.VoiceNotes, sum.Reminders, archiveDir)
	},
}

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load records from an exported directory",
	Long:  `Import upserts every record found under --dir. Existing records with the same id are replaced.`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		archive, err := fs.NewArchive(fs.Config{Dir: archiveDir, Logger: slog.Default()})
		if err != nil {
			fatal("Invalid import settings", err)
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		sum, err := archive.Import(ctx, s)
		if err != nil {
			fatal("Import failed", err)
		}
		fmt.Printf("Imported %d notes, %d voice notes, %d reminders from %s\n", sum.Notes, sum.VoiceNotes, sum.Reminders, archiveDir)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)

	exportCmd.Flags().StringVar(&archiveDir, "dir", "export", "Target directory")
	exportCmd.Flags().StringVar(&archiveFormat, "format", "md", "File format: md, json or yaml")
	importCmd.Flags().StringVar(&archiveDir, "dir", "export", "Source directory")
}
