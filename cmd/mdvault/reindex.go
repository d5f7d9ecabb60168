package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/index"
)

var reindexForce bool

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Walk the vault and bring the index up to date",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		result, err := e.Store.Reindex(ctx, e.Walker(), index.IngestOptions{Force: reindexForce})
		if err != nil {
			return err
		}
		fmt.Printf("created %d, updated %d, unchanged %d, removed %d\n",
			result.Created, result.Updated, result.Unchanged, result.Removed)
		for _, warning := range result.Errors {
			fmt.Printf("  warning: %s\n", warning)
		}
		return nil
	},
}

func init() {
	reindexCmd.Flags().BoolVar(&reindexForce, "force", false, "rebuild every row instead of only changed files")
	rootCmd.AddCommand(reindexCmd)
}
