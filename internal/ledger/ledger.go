// Package ledger provides read-only queries over the budget and actuals
// tabs of the club's budget spreadsheet.
package ledger

import (
	"context"
	"errors"
	"strings"

	"github.com/clubops/pobot/internal/config"
	"github.com/clubops/pobot/internal/metrics"
)

var (
	// ErrUnavailable wraps transport failures to the underlying sheet; the
	// caller re-prompts the user rather than advancing the conversation.
	ErrUnavailable = errors.New("ledger unavailable")

	// ErrNotFound means no row matched a (department, cost item) lookup.
	ErrNotFound = errors.New("cost item not found")
)

// CostItemRecord is one budget row resolved for a department.
type CostItemRecord struct {
	Department string
	Name       string
	Account    string
	Tracking   string
	FinanceRef string
	Budgeted   float64
}

// Repository is the query surface the conversation flow depends on. Every
// call re-reads the sheet: figures reflect the ledger at read time.
type Repository interface {
	ListCostItems(ctx context.Context, department string) ([]string, error)
	ResolveCostItem(ctx context.Context, department, name string) (*CostItemRecord, error)
	AccountTotal(ctx context.Context, account, department string) (float64, error)
	ActualsTotal(ctx context.Context, account, department string) (float64, error)
}

// RowSource fetches the raw cell rows of one tab. The production source is
// the Sheets API; tests use in-memory fixtures.
type RowSource interface {
	Rows(ctx context.Context, tab string) ([][]string, error)
}

// SheetsLedger implements Repository over a RowSource using the configured
// column layout.
type SheetsLedger struct {
	src RowSource
	cfg config.LedgerConfig
}

func newLedger(src RowSource, cfg config.LedgerConfig) *SheetsLedger {
	return &SheetsLedger{src: src, cfg: cfg}
}

func (l *SheetsLedger) budgetRows(ctx context.Context) ([][]string, error) {
	rows, err := l.src.Rows(ctx, l.cfg.BudgetTab)
	if err != nil {
		return nil, err
	}
	if len(rows) <= l.cfg.BudgetHeaderRows {
		return nil, nil
	}
	return rows[l.cfg.BudgetHeaderRows:], nil
}

func (l *SheetsLedger) ListCostItems(ctx context.Context, department string) ([]string, error) {
	rows, err := l.budgetRows(ctx)
	if err != nil {
		return nil, err
	}

	cols := l.cfg.Budget
	seen := make(map[string]struct{})
	items := make([]string, 0)
	for _, row := range rows {
		if !fieldEquals(row, cols.Department, department) {
			continue
		}
		name := cell(row, cols.CostItem)
		if name == "" {
			continue
		}
		key := strings.ToLower(name)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		items = append(items, name)
	}
	return items, nil
}

// ResolveCostItem returns the first row in ledger order matching the
// department and cost item, both case-insensitively. Duplicate
// (department, cost item) pairs do occur in the source data; first-row-wins
// is the documented tie-break.
func (l *SheetsLedger) ResolveCostItem(ctx context.Context, department, name string) (*CostItemRecord, error) {
	rows, err := l.budgetRows(ctx)
	if err != nil {
		return nil, err
	}

	cols := l.cfg.Budget
	for _, row := range rows {
		if !fieldEquals(row, cols.Department, department) || !fieldEquals(row, cols.CostItem, name) {
			continue
		}
		amount, ok := parseAmount(cell(row, cols.Total))
		if !ok {
			metrics.IncMalformedAmount(l.cfg.BudgetTab)
		}
		rec := &CostItemRecord{
			Department: cell(row, cols.Department),
			Name:       cell(row, cols.CostItem),
			Account:    cell(row, cols.Account),
			Tracking:   cell(row, cols.Tracking),
			Budgeted:   amount,
		}
		if cols.FinanceRef >= 0 {
			rec.FinanceRef = cell(row, cols.FinanceRef)
		}
		return rec, nil
	}
	return nil, ErrNotFound
}

func (l *SheetsLedger) AccountTotal(ctx context.Context, account, department string) (float64, error) {
	rows, err := l.budgetRows(ctx)
	if err != nil {
		return 0, err
	}

	cols := l.cfg.Budget
	total := 0.0
	for _, row := range rows {
		if !fieldEquals(row, cols.Account, account) || !fieldEquals(row, cols.Department, department) {
			continue
		}
		amount, ok := parseAmount(cell(row, cols.Total))
		if !ok {
			metrics.IncMalformedAmount(l.cfg.BudgetTab)
			continue
		}
		total += amount
	}
	return total, nil
}

func (l *SheetsLedger) ActualsTotal(ctx context.Context, account, department string) (float64, error) {
	rows, err := l.src.Rows(ctx, l.cfg.ActualsTab)
	if err != nil {
		return 0, err
	}
	if len(rows) <= l.cfg.ActualsHeaderRows {
		return 0, nil
	}

	cols := l.cfg.Actuals
	total := 0.0
	for _, row := range rows[l.cfg.ActualsHeaderRows:] {
		if !fieldEquals(row, cols.Account, account) || !fieldEquals(row, cols.Department, department) {
			continue
		}
		amount, ok := parseAmount(cell(row, cols.Amount))
		if !ok {
			metrics.IncMalformedAmount(l.cfg.ActualsTab)
			continue
		}
		total += amount
	}
	return total, nil
}

// cell returns the trimmed value at idx, or "" when the row is short.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func fieldEquals(row []string, idx int, want string) bool {
	return strings.EqualFold(cell(row, idx), strings.TrimSpace(want))
}
