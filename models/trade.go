package models

// RawTradeMessage holds the aggregate trade fields the tape cares about.
// Prices and quantities stay as text until the reducer parses them.
type RawTradeMessage struct {
	TradeID      int64
	Price        string
	Quantity     string
	TradeTimeMs  int64
	BuyerIsMaker bool
}

// ProcessedTrade is one entry of the trade tape.
type ProcessedTrade struct {
	ID           int64   `json:"id"`
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	TimeMs       int64   `json:"time"`
	IsBuyerMaker bool    `json:"isBuyerMaker"`
}

// DefaultTapeCapacity is the number of trades kept on the tape.
const DefaultTapeCapacity = 100

// TradeTape is a bounded newest-first sequence of trades.
type TradeTape []ProcessedTrade

// Latest returns the most recent trade, if any.
func (t TradeTape) Latest() (ProcessedTrade, bool) {
	if len(t) == 0 {
		return ProcessedTrade{}, false
	}
	return t[0], true
}
