package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"recall/configs"
	"recall/internal/rconfig"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage Recall configuration",
	}
	cmd.AddCommand(newConfigInitCmd())
	cmd.AddCommand(newConfigShowCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the user (machine-level) configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := rconfig.GetUserConfigPath()
			if _, err := os.Stat(path); err == nil && !force {
				fmt.Fprintf(cmd.OutOrStdout(), "%s already exists; use --force to overwrite\n", path)
				return nil
			}
			if err := os.MkdirAll(rconfig.GetUserConfigDir(), 0o755); err != nil {
				return fmt.Errorf("failed to create config directory: %w", err)
			}
			if err := os.WriteFile(path, []byte(configs.UserConfigTemplate), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", path, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing user config")
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "store_path: %s\n", cfg.StorePath)
			fmt.Fprintf(cmd.OutOrStdout(), "chunk_tokens: %d\n", cfg.ChunkTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "overlap_tokens: %d\n", cfg.OverlapTokens)
			fmt.Fprintf(cmd.OutOrStdout(), "embedding: %s\n", cfg.Embedding)
			fmt.Fprintf(cmd.OutOrStdout(), "embedding_dim: %d\n", cfg.EmbeddingDim)
			fmt.Fprintf(cmd.OutOrStdout(), "bm25_weight: %g\n", cfg.BM25Weight)
			fmt.Fprintf(cmd.OutOrStdout(), "vector_weight: %g\n", cfg.VectorWeight)
			fmt.Fprintf(cmd.OutOrStdout(), "max_limit: %d\n", cfg.MaxLimit)
			return nil
		},
	}
}
