package market

import (
	"fmt"
	"strings"
)

const (
	DepthStream = "depth"
	TradeStream = "trades"
)

// DepthURL is the partial book depth endpoint, e.g.
// wss://stream.binance.com:9443/ws/btcusdt@depth20@100ms.
func DepthURL(base, symbol string, levels, intervalMs int) string {
	return fmt.Sprintf("%s/%s@depth%d@%dms", strings.TrimRight(base, "/"), strings.ToLower(symbol), levels, intervalMs)
}

// TradeURL is the aggregate trade endpoint, e.g.
// wss://stream.binance.com:9443/ws/btcusdt@aggTrade.
func TradeURL(base, symbol string) string {
	return fmt.Sprintf("%s/%s@aggTrade", strings.TrimRight(base, "/"), strings.ToLower(symbol))
}
