package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of scaledspace",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scaledspace version %s\n", strings.TrimSpace(scaledspace.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
