package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kayz/weave/internal/logger"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "weave",
	Short: "weave prompt template compiler and renderer",
	Long: `weave compiles declarative JSON prompt templates and renders them
into ordered chat messages under a token budget.

Commands:
  weave compile   Validate a template and lint its data references
  weave render    Render a template against a context bundle`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level, err := logger.ParseLevel(logLevel)
		if err != nil {
			return err
		}
		logger.SetLevel(level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info",
		"Log level: trace, debug, info, warn, error, fatal")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
