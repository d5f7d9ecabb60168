package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/engine"
	"github.com/mdvault/mdvault/internal/lifecycle"
	"github.com/mdvault/mdvault/internal/script"
)

var (
	captureName string
	captureVars map[string]string
)

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Run a capture definition against the vault",
	Args:  cobra.NoArgs,
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

		def, err := engine.LoadCaptureDefinition(rt, engine.DefinitionPath(e.Config.CapturesDir(), captureName))
		if err != nil {
			return err
		}

		vars := make(map[string]interface{}, len(captureVars))
		for k, v := range captureVars {
			vars[k] = v
		}

		result, err := lifecycle.Capture(ctx, e.Deps(), lifecycle.CaptureParams{Def: def, Vars: vars})
		if err != nil {
			return err
		}
		if result.Aborted {
			fmt.Println("capture aborted by before_insert hook")
			return nil
		}
		fmt.Println(result.Path)
		return nil
	},
}

func init() {
	captureCmd.Flags().StringVarP(&captureName, "name", "n", "", "capture definition name (captures_dir/<name>.lua)")
	captureCmd.Flags().StringToStringVarP(&captureVars, "var", "V", nil, "field=value pair, repeatable")
	_ = captureCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(captureCmd)
}
