package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/lifecycle"
)

var (
	renameOverwrite bool
	renameForce     bool
	renameDryRun    bool
)

var renameCmd = &cobra.Command{
	Use:   "rename <old-path> <new-path>",
	Short: "Move a note and rewrite every incoming link to it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := lifecycle.Rename(ctx, e.Deps(), lifecycle.RenameParams{
			OldPath:   args[0],
			NewPath:   args[1],
			Overwrite: renameOverwrite,
			Force:     renameForce,
			DryRun:    renameDryRun,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s -> %s (%d links updated across %d files)\n",
			args[0], result.NewPath, result.LinkUpdates, len(result.UpdatedFiles))
		if result.GitHistoryPreserved {
			fmt.Println("  moved with git mv")
		}
		return nil
	},
}

func init() {
	renameCmd.Flags().BoolVarP(&renameOverwrite, "overwrite", "o", false, "overwrite the destination if it exists")
	renameCmd.Flags().BoolVarP(&renameForce, "force", "f", false, "confirm an ambiguous basename resolution instead of refusing")
	renameCmd.Flags().BoolVar(&renameDryRun, "dry-run", false, "report what would change without writing anything")
	rootCmd.AddCommand(renameCmd)
}
