package ledger

import (
	"strconv"
	"strings"
)

// parseAmount normalizes a ledger cell and parses it as a float. Cells carry
// thousands separators, currency prefixes ("$78", "BD 1,200"), and
// occasionally a typographic minus sign. Empty cells are zero. The second
// return value is false only for non-empty cells that still fail to parse;
// those contribute zero to any total.
func parseAmount(raw string) (float64, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, true
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, "−", "-")

	// Strip currency symbols and unit suffixes from either end.
	s = strings.TrimFunc(s, func(r rune) bool {
		return !isAmountRune(r)
	})

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func isAmountRune(r rune) bool {
	return (r >= '0' && r <= '9') || r == '.' || r == '-'
}
