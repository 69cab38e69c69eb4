package cmd

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var playerCmd = &cobra.Command{
	Use:   "player <name>",
	Short: "Show one player's aggregated stats",
	Long: `Look up a player by any of their known spellings. The name is resolved
server-side with the same normalization used during merges, so
'scorecard player TTV_Heart' and 'scorecard player heart' hit the
same identity.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlayer,
}

func runPlayer(cmd *cobra.Command, args []string) error {
	var e apiEntry
	if err := getJSON("/api/v1/players/"+url.PathEscape(args[0]), &e); err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "\n=== %s (rank #%d) ===\n\n", e.Username, e.Rank)
	fmt.Fprintf(os.Stdout, "  Aliases       : %s\n", strings.Join(e.Aliases, ", "))
	fmt.Fprintf(os.Stdout, "  Games played  : %d\n", e.GamesPlayed)
	fmt.Fprintf(os.Stdout, "  Eliminations  : %d (%.2f avg)\n", e.TotalEliminations, e.Derived.AvgEliminations)
	fmt.Fprintf(os.Stdout, "  Assists       : %d (%.2f avg)\n", e.TotalAssists, e.Derived.AvgAssists)
	fmt.Fprintf(os.Stdout, "  Deaths        : %d (%.2f avg)\n", e.TotalDeaths, e.Derived.AvgDeaths)
	fmt.Fprintf(os.Stdout, "  K/D ratio     : %.2f\n", e.Derived.KDRatio)
	fmt.Fprintf(os.Stdout, "  Record        : %d-%d\n", e.Victories, e.Defeats)
	fmt.Fprintf(os.Stdout, "  Last team     : %s\n", e.Team)
	return nil
}
