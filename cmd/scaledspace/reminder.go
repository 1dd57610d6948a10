package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/aretw0/scaledspace/pkg/api"
	"github.com/aretw0/scaledspace/pkg/core"
	"github.com/aretw0/scaledspace/pkg/store"
)

var (
	reminderTitle string
	reminderDesc  string
	reminderAt    string
	reminderIn    time.Duration
	reminderWhen  string
	reminderJSON  bool
)

var reminderCmd = &cobra.Command{
	Use:   "reminder",
	Short: "Manage reminders",
}

var reminderAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Schedule a reminder",
	Long:  `Schedule a reminder at an RFC 3339 time (--at) or after a delay (--in).`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if strings.TrimSpace(reminderTitle) == "" {
			fmt.Println("Error: --title is required")
			cmd.Usage()
			os.Exit(1)
		}

		now := time.Now()
		var at time.Time
		switch {
		case reminderAt != "" && reminderIn != 0:
			fatal("Invalid schedule", fmt.Errorf("use either --at or --in"))
		case reminderAt != "":
			parsed, err := time.Parse(time.RFC3339, reminderAt)
			if err != nil {
				fatal("Invalid --at", err)
			}
			at = parsed
		case reminderIn > 0:
			at = now.Add(reminderIn)
		default:
			fatal("Invalid schedule", fmt.Errorf("--at or --in is required"))
		}
		if !at.After(now) {
			fatal("Invalid schedule", fmt.Errorf("reminder must be scheduled in the future"))
		}

		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		reminder := store.Reminder{
			ID:          api.NewID(),
			Title:       reminderTitle,
			Description: reminderDesc,
			ScheduledAt: at.UnixMilli(),
			CreatedAt:   now.UnixMilli(),
		}
		if err := s.Reminders.Add(ctx, reminder); err != nil {
			fatal("Failed to save reminder", err)
		}
		fmt.Printf("Reminder scheduled: %s at %s\n", reminder.ID, at.Format(time.RFC3339))
	},
}

var reminderListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reminders",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		now := time.Now().UnixMilli()
		var (
			reminders []store.Reminder
			err       error
		)
		switch reminderWhen {
		case "upcoming":
			reminders, err = s.UpcomingReminders(ctx, now)
		case "past":
			reminders, err = s.PastReminders(ctx, now)
		case "all":
			reminders, err = s.Reminders.Scan(ctx, core.IndexRange{Index: store.IndexScheduledAt})
		default:
			fatal("Invalid --when", fmt.Errorf("must be upcoming, past or all"))
		}
		if err != nil {
			fatal("Error listing reminders", err)
		}

		if reminderJSON {
			printJSON(reminders)
			return
		}
		for _, r := range reminders {
			at := time.UnixMilli(r.ScheduledAt).Format(time.DateTime)
			fmt.Printf("%s - %s (%s)\n", r.ID, r.Title, at)
		}
	},
}

var reminderRmCmd = &cobra.Command{
	Use:   "rm [id]",
	Short: "Delete a reminder",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		s := openStore(ctx)
		defer s.Close()

		if err := s.Reminders.Delete(ctx, args[0]); err != nil {
			fatal("Error deleting reminder", err)
		}
		fmt.Printf("Reminder deleted: %s\n", args[0])
	},
}

func init() {
	rootCmd.AddCommand(reminderCmd)
	reminderCmd.AddCommand(reminderAddCmd, reminderListCmd, reminderRmCmd)

	reminderAddCmd.Flags().StringVar(&reminderTitle, "title", "", "Reminder title")
	reminderAddCmd.Flags().StringVar(&reminderDesc, "desc", "", "Description shown in the notification")
	reminderAddCmd.Flags().StringVar(&reminderAt, "at", "", "Time, RFC 3339 (e.g. 2026-01-02T15:04:05Z)")
	reminderAddCmd.Flags().DurationVar(&reminderIn, "in", 0, "Delay from now (e.g. 90m)")

	reminderListCmd.Flags().StringVar(&reminderWhen, "when", "upcoming", "upcoming, past or all")
	reminderListCmd.Flags().BoolVar(&reminderJSON, "json", false, "Output in JSON format")
}
