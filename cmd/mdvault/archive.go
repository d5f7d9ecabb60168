package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/lifecycle"
)

var archiveCmd = &cobra.Command{
	Use:   "archive <project-id>",
	Short: "Archive a done project, cancelling its open tasks and moving its tree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := lifecycle.Archive(ctx, e.Deps(), lifecycle.ArchiveParams{ProjectID: args[0]})
		if err != nil {
			return err
		}

		fmt.Printf("archived to %s\n", result.ArchivedPath)
		if len(result.CancelledTasks) > 0 {
			fmt.Printf("  cancelled %d open task(s)\n", len(result.CancelledTasks))
		}
		fmt.Printf("  moved %d file(s), rewrote %d reference(s)\n", len(result.MovedFiles), result.ReferenceUpdates)
		if result.FocusCleared {
			fmt.Println("  cleared focus")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(archiveCmd)
}
