package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Market is a spot market descriptor as published by the exchange indexer.
type Market struct {
	ID                  string          `json:"marketId"`
	Ticker              string          `json:"ticker"`
	BaseDenom           string          `json:"baseDenom"`
	QuoteDenom          string          `json:"quoteDenom"`
	MakerFeeRate        decimal.Decimal `json:"makerFeeRate"`
	TakerFeeRate        decimal.Decimal `json:"takerFeeRate"`
	MinPriceTickSize    decimal.Decimal `json:"minPriceTickSize"`
	MinQuantityTickSize decimal.Decimal `json:"minQuantityTickSize"`
	Status              string          `json:"marketStatus"`
}

// MatchesTicker reports whether ticker names this market. Comparison ignores
// case and treats "-" and "/" as the same base/quote separator.
func (m Market) MatchesTicker(ticker string) bool {
	return NormalizeTicker(m.Ticker) == NormalizeTicker(ticker)
}

// NormalizeTicker folds a ticker to its comparison form, e.g. "inj/usdt"
// becomes "INJ-USDT".
func NormalizeTicker(t string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(t), "/", "-"))
}
