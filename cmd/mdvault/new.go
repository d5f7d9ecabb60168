package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/engine"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/script"
)

var (
	newType      string
	newVars      map[string]string
	newAppend    bool
	newOverwrite bool
)

var newCmd = &cobra.Command{
	Use:     "new",
	Aliases: []string{"create"},
	Short:   "Create a note from a type definition",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		rt := script.New(&engine.HostAPI{Engine: e, Ctx: ctx}, timeNow(), script.Options{})
		defer rt.Close()

		def, hooks, err := engine.LoadTypeDefinition(rt, engine.DefinitionPath(e.Config.TypesDir(), newType))
		if err != nil {
			return err
		}

		vars := make(map[string]interface{}, len(newVars))
		for k, v := range newVars {
			vars[k] = v
		}

		creator := lifecycle.NoteCreator{Deps: e.Deps(), Registry: e.Registry}
		result, err := creator.Create(ctx, lifecycle.CreateParams{
			Def:       def,
			Vars:      vars,
			Append:    newAppend,
			Overwrite: newOverwrite,
			Hooks:     hooks,
		})
		if err != nil {
			return err
		}

		fmt.Println(result.Note.Path)
		for _, w := range result.Warnings {
			fmt.Printf("  warning: %s\n", w)
		}
		return nil
	},
}

func init() {
	newCmd.Flags().StringVarP(&newType, "type", "t", "", "type definition name (types_dir/<name>.lua)")
	newCmd.Flags().StringToStringVarP(&newVars, "var", "V", nil, "field=value pair, repeatable")
	newCmd.Flags().BoolVarP(&newAppend, "append", "a", false, "append to the note if it already exists")
	newCmd.Flags().BoolVarP(&newOverwrite, "overwrite", "o", false, "overwrite the note if it already exists")
	newCmd.MarkFlagsMutuallyExclusive("append", "overwrite")
	_ = newCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(newCmd)
}
