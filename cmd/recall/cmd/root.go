// Package cmd provides the CLI commands for Recall.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"recall/internal/rconfig"
	"recall/internal/rlog"
	"recall/pkg/version"
)

var (
	debugMode      bool
	loggingCleanup func()
)

// NewRootCmd creates the root command for the recall CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "recall",
		Short: "A local-first hybrid retrieval engine",
		Long: `Recall stores documents and chunks in a single local store and
answers RQL queries over them with hybrid lexical (BM25-style) and
semantic (vector) search, returning deterministic, paginated,
reproducible results plus an assembled context window.`,
		Version:      version.Short(),
		SilenceUsage: true,
	}
	root.SetVersionTemplate("recall version {{.Version}}\n")

	root.PersistentFlags().BoolVar(&debugMode, "debug", false, "enable debug logging to ~/.recall/logs/")
	root.PersistentPreRunE = startLogging
	root.PersistentPostRunE = stopLogging

	root.AddCommand(newInitCmd())
	root.AddCommand(newQueryCmd())
	root.AddCommand(newRmCmd())
	root.AddCommand(newCompactCmd())
	root.AddCommand(newDoctorCmd())
	root.AddCommand(newConfigCmd())
	root.AddCommand(newVersionCmd())

	return root
}

func startLogging(*cobra.Command, []string) error {
	if !debugMode {
		return nil
	}
	logger, cleanup, err := rlog.Setup(rlog.DebugConfig())
	if err != nil {
		return err
	}
	loggingCleanup = cleanup
	slog.SetDefault(logger)
	return nil
}

func stopLogging(*cobra.Command, []string) error {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// loadConfig loads Recall's configuration for the current directory.
func loadConfig() (*rconfig.Config, error) {
	return rconfig.Load(".")
}
