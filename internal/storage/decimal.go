package storage

import (
	"github.com/shopspring/decimal"

	"github.com/tradecore/backend/pkg/errs"
)

// parseDecimal parses a NUMERIC column scanned as a Postgres text
// representation into a decimal.Decimal, preserving the precision
// guarantee in SPEC_FULL.md (no float64 round-trip).
func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, errs.Wrap(errs.KindInternal, "failed to parse decimal column", err)
	}
	return d, nil
}
