package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

var lbLimit int

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Show the current leaderboard",
	Args:  cobra.NoArgs,
	RunE:  runLeaderboard,
}

func init() {
	leaderboardCmd.Flags().IntVar(&lbLimit, "limit", 25, "number of entries to show (max 100)")
}

type apiEntry struct {
	Rank              int      `json:"rank"`
	Username          string   `json:"username"`
	Aliases           []string `json:"aliases"`
	GamesPlayed       int      `json:"games_played"`
	TotalEliminations int      `json:"total_eliminations"`
	TotalAssists      int      `json:"total_assists"`
	TotalDeaths       int      `json:"total_deaths"`
	Victories         int      `json:"victories"`
	Defeats           int      `json:"defeats"`
	Team              string   `json:"team"`
	Derived           struct {
		AvgEliminations float64 `json:"avg_eliminations"`
		AvgAssists      float64 `json:"avg_assists"`
		AvgDeaths       float64 `json:"avg_deaths"`
		KDRatio         float64 `json:"kd_ratio"`
	} `json:"derived"`
}

type leaderboardResponse struct {
	Version int64      `json:"version"`
	Total   int        `json:"total"`
	Entries []apiEntry `json:"entries"`
}

func runLeaderboard(cmd *cobra.Command, args []string) error {
	var lb leaderboardResponse
	if err := getJSON(fmt.Sprintf("/api/v1/leaderboard?limit=%d", lbLimit), &lb); err != nil {
		return err
	}
	if lb.Total == 0 {
		fmt.Fprintln(os.Stdout, "Leaderboard is empty. Ingest a batch with 'scorecard ingest <batch.json>'.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "\n=== Leaderboard (v%d, %d players) ===\n\n", lb.Version, lb.Total)
	t := tablewriter.NewTable(os.Stdout, tablewriter.WithConfig(tablewriter.Config{
		Row:    tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignRight}},
		Header: tw.CellConfig{Alignment: tw.CellAlignment{Global: tw.AlignCenter}},
	}))
	t.Header("#", "PLAYER", "GAMES", "ELIMS", "ASSISTS", "DEATHS", "K/D", "W-L", "TEAM", "ALIASES")
	for _, e := range lb.Entries {
		t.Append(
			fmt.Sprintf("%d", e.Rank),
			e.Username,
			fmt.Sprintf("%d", e.GamesPlayed),
			fmt.Sprintf("%d", e.TotalEliminations),
			fmt.Sprintf("%d", e.TotalAssists),
			fmt.Sprintf("%d", e.TotalDeaths),
			fmt.Sprintf("%.2f", e.Derived.KDRatio),
			fmt.Sprintf("%d-%d", e.Victories, e.Defeats),
			e.Team,
			strings.Join(e.Aliases, ", "),
		)
	}
	t.Render()
	return nil
}
