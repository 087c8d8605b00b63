package ledger

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/clubops/pobot/internal/config"
)

// NewSheetsLedger opens the configured spreadsheet with service-account
// credentials and returns a Repository over it.
func NewSheetsLedger(ctx context.Context, cfg config.LedgerConfig) (*SheetsLedger, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	jsonKey, err := os.ReadFile(cfg.ServiceAccountPath)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}

	jwtConfig, err := google.JWTConfigFromJSON(jsonKey, sheets.SpreadsheetsReadonlyScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}

	svc, err := sheets.NewService(ctx, option.WithTokenSource(jwtConfig.TokenSource(ctx)))
	if err != nil {
		return nil, fmt.Errorf("create sheets service: %w", err)
	}

	src := &sheetsSource{
		svc:           svc,
		spreadsheetID: cfg.SpreadsheetID,
		timeout:       cfg.Timeout(),
	}
	return newLedger(src, cfg), nil
}

// NewWithSource builds a ledger over a custom row source. Used by tests.
func NewWithSource(src RowSource, cfg config.LedgerConfig) *SheetsLedger {
	return newLedger(src, cfg)
}

type sheetsSource struct {
	svc           *sheets.Service
	spreadsheetID string
	timeout       time.Duration
}

func (s *sheetsSource) Rows(ctx context.Context, tab string) ([][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, tab).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", ErrUnavailable, tab, err)
	}

	rows := make([][]string, 0, len(resp.Values))
	for _, raw := range resp.Values {
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}
