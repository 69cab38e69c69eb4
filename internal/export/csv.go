package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/ballistic/scorecard-api/internal/models"
)

// WriteCSV streams the snapshot as delimited text, header first.
func WriteCSV(w io.Writer, lb models.Leaderboard) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range Rows(lb) {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	cw.Flush()
	return cw.Error()
}
