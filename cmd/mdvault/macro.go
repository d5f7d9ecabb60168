package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/engine"
)

var (
	macroName  string
	macroVars  map[string]string
	macroTrust bool
)

var macroCmd = &cobra.Command{
	Use:   "macro",
	Short: "Run a macro's sequence of template/capture/shell steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := contextWithTimeout()
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		vars := make(map[string]interface{}, len(macroVars))
		for k, v := range macroVars {
			vars[k] = v
		}

		host := &engine.HostAPI{Engine: e, Ctx: ctx, Trusted: macroTrust}
		ok, err := host.Macro(macroName, vars)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("macro completed with warnings")
			return nil
		}
		fmt.Println("macro completed")
		return nil
	},
}

func init() {
	macroCmd.Flags().StringVarP(&macroName, "name", "n", "", "macro definition name (macros_dir/<name>.lua)")
	macroCmd.Flags().StringToStringVarP(&macroVars, "var", "V", nil, "field=value pair, repeatable")
	macroCmd.Flags().BoolVar(&macroTrust, "trust", false, "allow this macro's shell steps to run (also requires allow_shell=true in config)")
	_ = macroCmd.MarkFlagRequired("name")
	rootCmd.AddCommand(macroCmd)
}
