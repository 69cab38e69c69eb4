package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/ballistic/scorecard-api/internal/models"
)

// SheetsPusher replaces a worksheet's contents with the current leaderboard.
// The sheet is only ever written from a committed snapshot, so a failed push
// can simply be retried.
type SheetsPusher struct {
	svc       *sheets.Service
	sheetID   string
	worksheet string
	logger    *zap.SugaredLogger
}

// NewSheetsPusher builds a pusher from a service-account credentials file.
func NewSheetsPusher(ctx context.Context, credentialsFile, sheetID, worksheet string, logger *zap.Logger) (*SheetsPusher, error) {
	if sheetID == "" {
		return nil, fmt.Errorf("google sheet id not configured")
	}
	svc, err := sheets.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(sheets.SpreadsheetsScope),
	)
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}
	if worksheet == "" {
		worksheet = "Leaderboard"
	}
	return &SheetsPusher{
		svc:       svc,
		sheetID:   sheetID,
		worksheet: worksheet,
		logger:    logger.Sugar(),
	}, nil
}

// Push clears the worksheet and writes header plus all rows in one update.
func (p *SheetsPusher) Push(ctx context.Context, lb models.Leaderboard) error {
	rng := p.worksheet + "!A1"

	if _, err := p.svc.Spreadsheets.Values.Clear(p.sheetID, p.worksheet, &sheets.ClearValuesRequest{}).
		Context(ctx).Do(); err != nil {
		return fmt.Errorf("clear worksheet %q: %w", p.worksheet, err)
	}

	values := make([][]interface{}, 0, len(lb.Entries)+1)
	headerRow := make([]interface{}, len(Header))
	for i, h := range Header {
		headerRow[i] = h
	}
	values = append(values, headerRow)
	for _, row := range Rows(lb) {
		cells := make([]interface{}, len(row))
		for i, c := range row {
			cells[i] = c
		}
		values = append(values, cells)
	}

	_, err := p.svc.Spreadsheets.Values.Update(p.sheetID, rng, &sheets.ValueRange{Values: values}).
		ValueInputOption("USER_ENTERED").
		Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("update worksheet %q: %w", p.worksheet, err)
	}

	p.logger.Infow("Leaderboard pushed to Google Sheets",
		"sheet", p.sheetID,
		"worksheet", p.worksheet,
		"players", len(lb.Entries),
	)
	return nil
}
