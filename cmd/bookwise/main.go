package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/kalambet/bookwise/internal/logging"
)

var version = "dev"

var noColor bool

var rootCmd = &cobra.Command{
	Use:           "bookwise",
	Short:         "Book recommendations from a library catalog",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if os.Getenv("NO_COLOR") != "" {
			noColor = true
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(recommendCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(configCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		printError("%v", err)
		os.Exit(1)
	}
}

// installLogger sets up the zap global for commands that run the pipeline.
func installLogger(level string) func() {
	flush, err := logging.Install(level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: logger setup failed: %v\n", err)
		return func() {}
	}
	return flush
}
