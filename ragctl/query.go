package ragctl

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"pdfrag/types"
)

const snippetLen = 200

var (
	queryTopK     int
	queryDocument int64
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Find the chunks closest to a query",
	Args:  cobra.ExactArgs(1),
	RunE:  runQuery,
}

func init() {
	queryCmd.Flags().IntVarP(&queryTopK, "top-k", "k", 0, "maximum number of results (default DEFAULT_TOP_K)")
	queryCmd.Flags().Int64Var(&queryDocument, "document", 0, "restrict results to one document id")
	rootCmd.AddCommand(queryCmd)
}

func runQuery(cmd *cobra.Command, args []string) error {
	if services.Querier == nil {
		return errors.New("query service not configured")
	}

	params := types.QueryParams{Text: args[0], TopK: queryTopK}
	if queryDocument > 0 {
		params.DocumentID = &queryDocument
	}
	if errs := types.Validate(&params); len(errs) > 0 {
		return fmt.Errorf("invalid query: %s", formatErrors(errs))
	}

	results, err := services.Querier.Query(cmd.Context(), params)
	if err != nil {
		return fmt.Errorf("query failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, results)
	}
	if len(results) == 0 {
		cmd.Println("No results found.")
		return nil
	}
	for i, r := range results {
		c := r.Chunk
		cmd.Printf("  [%d] document %d, chunk %d, pages %d-%d (%.4f)\n", i+1, c.DocumentID, c.Index, c.PageStart, c.PageEnd, r.Distance)
		cmd.Printf("      %s\n\n", snippet(c.Text))
	}
	return nil
}

func snippet(text string) string {
	runes := []rune(text)
	if len(runes) <= snippetLen {
		return text
	}
	return string(runes[:snippetLen]) + "..."
}
