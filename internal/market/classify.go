package market

import (
	"strings"

	"github.com/tradecore/backend/pkg/models"
)

// cryptoQuoteAssets are the quote currencies that mark a symbol as a
// crypto pair when suffixed (glossary: "crypto uses <BASE><QUOTE>
// without separator").
var cryptoQuoteAssets = []string{"USDT", "USDC", "BUSD", "BTC", "ETH"}

// forexPairs is the explicit allowlist for six-letter FX pairs
// (glossary: "forex uses six-letter pairs").
var forexPairs = map[string]bool{
	"EURUSD": true, "GBPUSD": true, "USDJPY": true, "USDCHF": true,
	"AUDUSD": true, "USDCAD": true, "NZDUSD": true, "EURGBP": true,
}

// commodityAllowlist covers the handful of commodity tickers the system
// recognizes explicitly (spec §3 asset_class enum includes commodity).
var commodityAllowlist = map[string]bool{
	"XAUUSD": true, "XAGUSD": true, "WTIUSD": true, "BRENTUSD": true,
}

// indexAllowlist covers recognized index tickers.
var indexAllowlist = map[string]bool{
	"SPX": true, "NDX": true, "DJI": true, "UKX": true,
}

// Classify determines a symbol's AssetClass by suffix rules and the
// explicit allowlists above (§4.2). Symbols that match nothing fall
// through to AssetStock, the widest catch-all class, since equity
// tickers have no reliable suffix convention.
func Classify(symbol string) models.AssetClass {
	upper := strings.ToUpper(symbol)

	if commodityAllowlist[upper] {
		return models.AssetCommodity
	}
	if indexAllowlist[upper] {
		return models.AssetIndex
	}
	if forexPairs[upper] {
		return models.AssetForex
	}
	for _, quote := range cryptoQuoteAssets {
		if strings.HasSuffix(upper, quote) && len(upper) > len(quote) {
			return models.AssetCrypto
		}
	}
	if len(upper) == 6 && isAllLetters(upper) {
		return models.AssetForex
	}
	return models.AssetStock
}

func isAllLetters(s string) bool {
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return false
		}
	}
	return true
}
