package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var focusCmd = &cobra.Command{
	Use:   "focus",
	Short: "Inspect or change the vault's current focus",
}

var focusShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the note focus currently resolves to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		path, ok, err := e.Focus.Current(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no focus set")
			return nil
		}
		fmt.Println(path)
		return nil
	},
}

var (
	focusSetNote string
)

var focusSetCmd = &cobra.Command{
	Use:   "set <project-id>",
	Short: "Set the current focus to a project (and optionally a specific note within it)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Focus.Set(ctx, args[0], focusSetNote); err != nil {
			return err
		}
		fmt.Printf("focus set to %s\n", args[0])
		return nil
	},
}

var focusClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the current focus",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		if err := e.Focus.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("focus cleared")
		return nil
	},
}

func init() {
	focusSetCmd.Flags().StringVarP(&focusSetNote, "note", "n", "", "a specific note path within the project, instead of the project note itself")
	focusCmd.AddCommand(focusShowCmd, focusSetCmd, focusClearCmd)
	rootCmd.AddCommand(focusCmd)
}
