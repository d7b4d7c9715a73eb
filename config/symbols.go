package config

import "strings"

// NormalizeSymbol turns the pair spellings used across venues into the
// lower-case, separator-free form the stream endpoints expect:
// "BTC-USDT", "btc/usdt", "XBT_USDT" and "BTCUSDT-SWAP" all become "btcusdt".
func NormalizeSymbol(sym string) string {
	sym = strings.ToUpper(strings.TrimSpace(sym))
	sym = strings.TrimSuffix(sym, "-SWAP")
	sym = strings.NewReplacer("-", "", "/", "", "_", "", " ", "").Replace(sym)
	if strings.HasPrefix(sym, "XBT") {
		sym = "BTC" + sym[3:]
	}
	return strings.ToLower(sym)
}
