package ragctl

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"pdfrag/types"
)

var (
	ingestTitle    string
	ingestChunking types.ChunkParams
	ingestOverlap  int
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [file.pdf]",
	Short: "Ingest a PDF document",
	Long: `Extracts the text of every page, splits it into overlapping chunks,
embeds them and stores the document with all chunks in one transaction.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestTitle, "title", "", "document title (default derived from the file name)")
	ingestCmd.Flags().IntVar(&ingestChunking.MaxChars, "max-chars", 0, "maximum characters per chunk")
	ingestCmd.Flags().IntVar(&ingestOverlap, "overlap", 0, "characters carried over between chunks")
	ingestCmd.Flags().StringVar(&ingestChunking.Strategy, "strategy", "", "chunking strategy: sentence or window")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if services.Ingester == nil {
		return errors.New("ingestion service not configured")
	}
	if cmd.Flags().Changed("overlap") {
		ingestChunking.Overlap = &ingestOverlap
	}
	if errs := types.Validate(&ingestChunking); len(errs) > 0 {
		return fmt.Errorf("invalid chunking flags: %s", formatErrors(errs))
	}

	path := args[0]
	res, err := services.Ingester.IngestFile(cmd.Context(), path, filepath.Base(path), ingestTitle, ingestChunking.Apply(services.Chunking))
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, res)
	}
	cmd.Printf("Ingested %q as document %d (%d chunks)\n", res.Title, res.DocumentID, res.NumChunks)
	return nil
}

func formatErrors(errs map[string]string) string {
	parts := make([]string, 0, len(errs))
	for field, msg := range errs {
		parts = append(parts, field+" "+msg)
	}
	return strings.Join(parts, ", ")
}
