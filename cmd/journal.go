package cmd

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bnema/continuity/internal/domain"
	"github.com/spf13/cobra"
)

func newJournalCmd(app *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Append records to the durable chunk/embedding log",
	}

	cmd.AddCommand(
		newJournalChunkCmd(app),
		newJournalEmbeddingCmd(app),
		newJournalFlushCmd(app),
		newJournalStatusCmd(app),
	)

	return cmd
}

func newJournalChunkCmd(app *app) *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "chunk <content>",
		Short: "Append a content chunk and flush",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.journal.AddChunk(domain.ChunkRecord{Content: args[0], Source: source}); err != nil {
				return err
			}
			return app.journal.Close()
		},
	}

	cmd.Flags().StringVar(&source, "source", "cli", "Chunk source tag")
	return cmd
}

func newJournalEmbeddingCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "embedding <v1,v2,...>",
		Short: "Append an embedding vector and flush",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			vector, err := parseVector(args[0])
			if err != nil {
				return err
			}
			if err := app.journal.AddEmbedding(domain.EmbeddingRecord{Vector: vector}); err != nil {
				return err
			}
			return app.journal.Close()
		},
	}
}

func newJournalFlushCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "flush",
		Short: "Flush buffered journal records now",
		RunE: func(*cobra.Command, []string) error {
			return app.journal.Flush()
		},
	}
}

func newJournalStatusCmd(app *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show journal counters",
		RunE: func(cmd *cobra.Command, _ []string) error {
			stats := app.journal.Stats()
			fmt.Fprintf(cmd.OutOrStdout(), "flushes:             %d\n", stats.Flushes)
			fmt.Fprintf(cmd.OutOrStdout(), "chunks buffered:     %d\n", stats.ChunksBuffered)
			fmt.Fprintf(cmd.OutOrStdout(), "embeddings buffered: %d\n", stats.EmbeddingsBuffered)
			fmt.Fprintf(cmd.OutOrStdout(), "chunks written:      %d\n", stats.ChunksWritten)
			fmt.Fprintf(cmd.OutOrStdout(), "embeddings written:  %d\n", stats.EmbeddingsWritten)
			fmt.Fprintf(cmd.OutOrStdout(), "records dropped:     %d\n", stats.RecordsDropped)
			fmt.Fprintf(cmd.OutOrStdout(), "recoveries:          %d\n", stats.Recoveries)
			return nil
		},
	}
}

func parseVector(raw string) ([]float32, error) {
	parts := strings.Split(raw, ",")
	vector := make([]float32, 0, len(parts))
	for _, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", part, err)
		}
		vector = append(vector, float32(f))
	}
	return vector, nil
}
