package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <batch.json>",
	Short: "Submit an extraction batch from a JSON file",
	Long: `Read a JSON array of extraction results (one element per screenshot)
and submit it to the ingest endpoint. Resubmitting a file is safe:
already-processed screenshots are skipped and reported back.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

type ingestReport struct {
	Status  string `json:"status"`
	BatchID string `json:"batch_id"`
	Players int    `json:"players"`
	Report  struct {
		PlayersUpdated int      `json:"players_updated"`
		PlayersAdded   int      `json:"players_added"`
		ImagesSkipped  int      `json:"images_skipped"`
		Warnings       []string `json:"warnings"`
	} `json:"report"`
}

func runIngest(cmd *cobra.Command, args []string) error {
	payload, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("read batch file: %w", err)
	}

	var rep ingestReport
	if err := postJSON("/api/v1/ingest/batch", payload, &rep); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "Batch %s: %s\n", rep.BatchID, rep.Status)
	fmt.Fprintf(os.Stdout, "  Players updated : %d\n", rep.Report.PlayersUpdated)
	fmt.Fprintf(os.Stdout, "  Players added   : %d\n", rep.Report.PlayersAdded)
	fmt.Fprintf(os.Stdout, "  Images skipped  : %d\n", rep.Report.ImagesSkipped)
	fmt.Fprintf(os.Stdout, "  Leaderboard size: %d\n", rep.Players)
	for _, warn := range rep.Report.Warnings {
		fmt.Fprintf(os.Stdout, "  warning: %s\n", warn)
	}
	return nil
}
