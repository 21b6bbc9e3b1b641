package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var clearExisting bool

var ingestCmd = &cobra.Command{
	Use:   "ingest [folder]",
	Short: "Ingest course documents from a folder",
	Long: `Ingest parses every supported file (.txt, .pdf, .docx) in the folder
and indexes courses not yet present. Already indexed courses are skipped;
use --clear to rebuild the index from scratch.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().BoolVar(&clearExisting, "clear", false, "clear existing index data before ingesting")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	added, chunks, err := a.Ingestor.AddCourseFolder(ctx, args[0], clearExisting)
	if err != nil {
		return err
	}

	fmt.Printf("Ingested %d new courses (%d chunks).\n", len(added), chunks)
	for _, c := range added {
		fmt.Printf("  - %s (%d lessons)\n", c.Title, len(c.Lessons))
	}
	return nil
}
