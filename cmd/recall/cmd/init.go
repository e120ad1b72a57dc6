package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recall/configs"
	"recall/internal/store"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new store and project config",
		Long: `Initialize writes a .recall.yaml project configuration (unless one
already exists) and creates an empty store file at the configured
store_path, ready for an external ingest producer to populate.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing .recall.yaml")
	return cmd
}

func runInit(cmd *cobra.Command, force bool) error {
	configPath := ".recall.yaml"
	if _, err := os.Stat(configPath); err == nil && !force {
		fmt.Fprintf(cmd.OutOrStdout(), "%s already exists; use --force to overwrite\n", configPath)
	} else {
		if err := os.WriteFile(configPath, []byte(configs.ProjectConfigTemplate), 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", configPath, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	s, err := store.Open(context.Background(), cfg.StorePath, store.ModeWrite, cfg.Embedding, cfg.EmbeddingDim, store.DefaultBusyTimeout)
	if err != nil {
		return err
	}
	if err := s.Close(); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "initialized store at %s\n", cfg.StorePath)
	return nil
}
