package ragctl

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var docsLimit int

var docsCmd = &cobra.Command{
	Use:   "docs",
	Short: "List documents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runDocs,
}

var chunksCmd = &cobra.Command{
	Use:   "chunks [document-id]",
	Short: "Show the chunks of a document in order",
	Args:  cobra.ExactArgs(1),
	RunE:  runChunks,
}

func init() {
	docsCmd.Flags().IntVarP(&docsLimit, "limit", "n", 100, "maximum number of documents")
	rootCmd.AddCommand(docsCmd)
	rootCmd.AddCommand(chunksCmd)
}

func runDocs(cmd *cobra.Command, _ []string) error {
	if services.Documents == nil {
		return errors.New("document store not configured")
	}
	if docsLimit <= 0 {
		return errors.New("limit must be positive")
	}

	docs, err := services.Documents.DocumentsByRecency(cmd.Context(), docsLimit)
	if err != nil {
		return fmt.Errorf("list documents failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, docs)
	}
	if len(docs) == 0 {
		cmd.Println("No documents.")
		return nil
	}
	for _, d := range docs {
		cmd.Printf("  %d\t%s\t%s\t%d chunks\t%s\n", d.ID, d.Title, d.Filename, d.ChunkCount, d.CreatedAt.Format("2006-01-02 15:04"))
	}
	return nil
}

func runChunks(cmd *cobra.Command, args []string) error {
	if services.Documents == nil {
		return errors.New("document store not configured")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return fmt.Errorf("invalid document id %q", args[0])
	}

	doc, err := services.Documents.DocumentByID(cmd.Context(), id)
	if err != nil {
		return err
	}
	chunks, err := services.Documents.ChunksByDocument(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("list chunks failed: %w", err)
	}

	if outputJSON {
		return printJSON(cmd, chunks)
	}
	cmd.Printf("%s (%d chunks)\n\n", doc.Title, len(chunks))
	for _, c := range chunks {
		cmd.Printf("  #%d pages %d-%d\n      %s\n\n", c.Index, c.PageStart, c.PageEnd, snippet(c.Text))
	}
	return nil
}
