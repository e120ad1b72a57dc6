package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"recall/internal/envelope"
	"recall/internal/pack"
	"recall/internal/plan"
	"recall/internal/rql"
	"recall/internal/store"
)

func newQueryCmd() *cobra.Command {
	var (
		snapshot     string
		explain      bool
		stream       bool
		withContext  bool
		budgetTokens int
		diversity    int
		file         string
	)

	cmd := &cobra.Command{
		Use:   "query [rql]",
		Short: "Run an RQL query against the store",
		Long: `Query parses and validates an RQL statement, executes it against the
store, and writes a JSON response envelope to stdout (spec.md 6). Pass
--stream to emit JSONL instead: one envelope head line with no results,
followed by one result object per line.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := queryText(args, file)
			if err != nil {
				return err
			}
			return runQuery(cmd, src, queryOptions{
				snapshot:     snapshot,
				explain:      explain,
				stream:       stream,
				withContext:  withContext,
				budgetTokens: budgetTokens,
				diversity:    diversity,
			})
		},
	}

	cmd.Flags().StringVar(&snapshot, "snapshot", "", "pin the query to a previously returned snapshot token")
	cmd.Flags().BoolVar(&explain, "explain", false, "include the explain block in the response")
	cmd.Flags().BoolVar(&stream, "stream", false, "emit JSONL instead of a single JSON object")
	cmd.Flags().BoolVar(&withContext, "pack", false, "assemble a context window from the matched chunks")
	cmd.Flags().IntVar(&budgetTokens, "budget-tokens", 2000, "context packer token budget (with --pack)")
	cmd.Flags().IntVar(&diversity, "diversity", 0, "max packed chunks per doc, 0 means unlimited (with --pack)")
	cmd.Flags().StringVar(&file, "file", "", "read the RQL statement from this file instead of an argument")
	return cmd
}

func queryText(args []string, file string) (string, error) {
	if file != "" {
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", file, err)
		}
		return string(b), nil
	}
	if len(args) == 1 {
		return args[0], nil
	}
	return "", fmt.Errorf("pass an RQL statement as an argument or via --file")
}

type queryOptions struct {
	snapshot     string
	explain      bool
	stream       bool
	withContext  bool
	budgetTokens int
	diversity    int
}

func runQuery(cmd *cobra.Command, src string, opts queryOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	q, parseErr := rql.Parse(src)
	if parseErr != nil {
		return writeEnvelope(cmd, opts.stream, envelope.FromError(parseErr))
	}
	validated, validateErr := rql.Validate(q)
	if validateErr != nil {
		return writeEnvelope(cmd, opts.stream, envelope.FromError(validateErr))
	}

	ctx := context.Background()
	s, err := store.Open(ctx, cfg.StorePath, store.ModeRead, cfg.Embedding, cfg.EmbeddingDim, store.DefaultBusyTimeout)
	if err != nil {
		return writeEnvelope(cmd, opts.stream, envelope.FromError(err))
	}
	defer s.Close()

	planner := plan.NewPlanner(s)
	result, execErr := planner.Execute(ctx, validated, plan.Options{
		Weights:     plan.Weights{Lexical: cfg.BM25Weight, Semantic: cfg.VectorWeight}.Normalize(),
		MaxLimit:    cfg.MaxLimit,
		Snapshot:    opts.snapshot,
		LexicalMode: "fts5",
		Explain:     opts.explain,
	})
	if execErr != nil {
		return writeEnvelope(cmd, opts.stream, envelope.FromError(execErr))
	}

	var packed *pack.Context
	if opts.withContext {
		packed = pack.Pack(resultRowsToPackRows(result.Rows), pack.Options{
			BudgetTokens: opts.budgetTokens,
			Diversity:    opts.diversity,
		})
	}

	env := envelope.FromResult(result, packed, envelope.BuildOptions{
		QueryText: src,
		Table:     validated.Query.Table,
	})
	return writeEnvelope(cmd, opts.stream, env)
}

func resultRowsToPackRows(rows []plan.ResultRow) []pack.Row {
	out := make([]pack.Row, 0, len(rows))
	for _, r := range rows {
		if r.Chunk == nil || r.Doc == nil {
			continue
		}
		out = append(out, pack.Row{
			DocPath:  r.Doc.Path,
			DocHash:  r.Doc.Hash,
			DocMTime: r.Doc.MTime,
			ChunkID:  r.Chunk.ID,
			Offset:   r.Chunk.Offset,
			Tokens:   r.Chunk.Tokens,
			Text:     r.Chunk.Text,
		})
	}
	return out
}

func writeEnvelope(cmd *cobra.Command, stream bool, env *envelope.Envelope) error {
	out := cmd.OutOrStdout()
	if stream {
		if err := envelope.WriteStream(out, env); err != nil {
			return err
		}
	} else {
		enc := json.NewEncoder(out)
		if err := enc.Encode(env); err != nil {
			return err
		}
	}
	if !env.OK {
		return fmt.Errorf("query failed: %s", strings.TrimSpace(env.Error.Message))
	}
	return nil
}
