package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/engine"
	"github.com/mdvault/mdvault/internal/index"
	"github.com/mdvault/mdvault/internal/mderrors"
	"github.com/mdvault/mdvault/internal/script"
	"github.com/mdvault/mdvault/internal/validation"
)

var (
	validateCheckLinks bool
	validateFix        bool
)

var validateCmd = &cobra.Command{
	Use:   "validate <note-path>",
	Short: "Check a note's frontmatter against its type's schema",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		note, _, found, err := e.Store.GetNoteByPath(ctx, args[0])
		if err != nil {
			return err
		}
		if !found {
			return fmt.Errorf("%w: %s", mderrors.ErrNotFound, args[0])
		}

		typeName := string(note.NoteKind)
		if note.NoteKind == index.KindCustom && note.CustomType != "" {
			typeName = note.CustomType
		}

		rt := script.New(&engine.HostAPI{Engine: e, Ctx: ctx}, timeNow(), script.Options{})
		defer rt.Close()
		def, hooks, err := engine.LoadTypeDefinition(rt, engine.DefinitionPath(e.Config.TypesDir(), typeName))
		if err != nil {
			return err
		}

		result, err := validation.Validate(ctx, validation.Deps{VaultRoot: e.Config.ActiveVaultRoot(), Store: e.Store},
			def, hooks, args[0], validation.Options{CheckLinks: validateCheckLinks, Fix: validateFix})
		if err != nil {
			return err
		}

		for _, f := range result.Findings {
			fmt.Printf("%s: %s: %s\n", f.Severity, f.Field, f.Message)
		}
		for _, field := range result.Fixed {
			fmt.Printf("fixed: %s\n", field)
		}
		if result.ErrorCount() > 0 {
			return fmt.Errorf("%d error(s)", result.ErrorCount())
		}
		fmt.Println("ok")
		return nil
	},
}

func init() {
	validateCmd.Flags().BoolVar(&validateCheckLinks, "check-links", false, "also verify every reference in the note resolves")
	validateCmd.Flags().BoolVar(&validateFix, "fix", false, "apply safe corrections (missing defaults, enum case) before reporting")
	rootCmd.AddCommand(validateCmd)
}
