package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"recall/internal/store"
)

func newRmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <path>",
		Short: "Tombstone the doc at path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
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

			if err := s.Tombstone(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "tombstoned %s\n", args[0])
			return nil
		},
	}
}
