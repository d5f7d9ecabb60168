package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdvault/mdvault/internal/engine"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:     "mdvault",
	Short:   "mdvault - incrementally indexed Markdown vault engine",
	Version: "v0.1.0",
	Long:    "mdvault - create, capture, rename, archive and query notes in a Markdown vault with a maintained link/activity index.",
}

// Execute runs the root command, mirroring the teacher's cmd.Execute():
// report the error to stderr and exit non-zero rather than letting cobra's
// own usage-printing decide the process's exit behavior.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "mdvault: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	defaultConfig := os.Getenv("MDVAULT_CONFIG")
	if defaultConfig == "" {
		defaultConfig = "mdvault.toml"
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", defaultConfig, "path to the vault's TOML config file")
}

// openEngine loads the config at configPath and opens the vault's index,
// the one piece of setup every subcommand needs before it can call into
// internal/lifecycle.
func openEngine(ctx context.Context) (*engine.Engine, error) {
	e, err := engine.Open(ctx, configPath)
	if err != nil {
		return nil, err
	}
	return e, nil
}

func contextWithTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 30*time.Second)
}

// timeNow samples the single "now" a script.Runtime binds for its whole
// lifetime (spec.md §4.1/§4.3's "one sampled now per top-level request").
func timeNow() time.Time {
	return time.Now()
}
