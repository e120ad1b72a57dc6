package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"recall/internal/store"
)

func newCompactCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compact",
		Short: "Permanently remove tombstoned docs/chunks and rebuild indexes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx := context.Background()
			s, err := store.Open(ctx, cfg.StorePath, store.ModeWrite, cfg.Embedding, cfg.EmbeddingDim, store.DefaultBusyTimeout)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.Compact(ctx); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "compaction complete")
			return nil
		},
	}
}
