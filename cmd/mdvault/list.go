package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/index"
)

var (
	listKind  string
	listLimit int
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List indexed notes, optionally filtered by kind",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		notes, err := e.Store.List(ctx, index.ListOptions{Kind: index.NoteKind(listKind), Limit: listLimit})
		if err != nil {
			return err
		}
		for _, n := range notes {
			fmt.Printf("%-8s %s\n", n.Type, n.Path)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().StringVarP(&listKind, "kind", "k", "", "restrict to one note kind")
	listCmd.Flags().IntVarP(&listLimit, "limit", "l", 0, "maximum number of notes to list (0 = unlimited)")
	rootCmd.AddCommand(listCmd)
}
