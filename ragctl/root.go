// Package ragctl is the command line client of the knowledge base.
package ragctl

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/types"
)

type Ingester interface {
	IngestFile(ctx context.Context, path, filename, title string, chunking types.ChunkConfig) (types.IngestResult, error)
}

type Querier interface {
	Query(ctx context.Context, params types.QueryParams) ([]types.SearchResult, error)
}

type DocumentReader interface {
	DocumentsByRecency(ctx context.Context, limit int) ([]types.Document, error)
	DocumentByID(ctx context.Context, id int64) (types.Document, error)
	ChunksByDocument(ctx context.Context, documentID int64) ([]types.Chunk, error)
}

// Services are the backends the commands run against.
type Services struct {
	Ingester  Ingester
	Querier   Querier
	Documents DocumentReader
	Chunking  types.ChunkConfig
}

var (
	services   Services
	outputJSON bool
)

var rootCmd = &cobra.Command{
	Use:           "ragctl",
	Short:         "Ingest PDFs and query the knowledge base",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON")
}

func SetServices(s Services) {
	services = s
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
