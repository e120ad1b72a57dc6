package cmd

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"recall/internal/store"
)

func newDoctorCmd() *cobra.Command {
	var fix bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check store invariants and optionally repair what can be repaired",
		Long: `Doctor checks for chunks whose doc no longer exists, embeddings whose
length disagrees with the store's configured dimension, and mismatches
between the chunk table and the vector index.

With --fix, orphaned index entries are removed and the vector index is
rebuilt from the chunk rows that remain. Doctor never deletes chunk
data; use compact for that.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDoctor(cmd, fix, jsonOutput)
		},
	}

	cmd.Flags().BoolVar(&fix, "fix", false, "repair what doctor safely can")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	return cmd
}

func runDoctor(cmd *cobra.Command, fix, jsonOutput bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := context.Background()
	mode := store.ModeRead
	if fix {
		mode = store.ModeWrite
	}
	s, err := store.Open(ctx, cfg.StorePath, mode, cfg.Embedding, cfg.EmbeddingDim, store.DefaultBusyTimeout)
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.Doctor(ctx, fix)
	if err != nil {
		return err
	}

	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "orphan chunks: %d\n", len(report.OrphanChunks))
	fmt.Fprintf(out, "dimension mismatches: %d\n", len(report.DimensionMismatch))
	fmt.Fprintf(out, "missing vectors: %d\n", len(report.MissingVectors))
	fmt.Fprintf(out, "stale vectors: %d\n", len(report.StaleVectors))
	if fix {
		fmt.Fprintf(out, "fixed: %v\n", report.Fixed)
	}
	return nil
}
