package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/internal/platform"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the storage state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := resolveDataDir()
		fmt.Printf("data dir: %s\n", platform.DataDir(dir, storageOptions()...))

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		printState(s)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
