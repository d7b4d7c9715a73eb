package models

// PriceLevelText is one [price, quantity] pair exactly as the feed delivers it.
type PriceLevelText struct {
	Price    string
	Quantity string
}

// RawDepthMessage is a partial book depth payload (top N levels per side).
// It is consumed once by the order book reducer and then discarded.
type RawDepthMessage struct {
	LastUpdateID int64
	Bids         []PriceLevelText
	Asks         []PriceLevelText
}

// OrderBookLevel is a single display-ready book level.
// CumulativeNotional is the running sum of price*quantity over every level at or
// before this one, best price first.
type OrderBookLevel struct {
	Price              float64 `json:"price"`
	Quantity           float64 `json:"quantity"`
	CumulativeNotional float64 `json:"total"`
}

// OrderBookSnapshot is the complete book view built from one depth message.
// Bids are ordered by descending price, asks by ascending price.
type OrderBookSnapshot struct {
	Bids     []OrderBookLevel `json:"bids"`
	Asks     []OrderBookLevel `json:"asks"`
	UpdateID int64            `json:"lastUpdateId"`
}

// Clone returns a deep copy so callers can never mutate a published snapshot.
func (s OrderBookSnapshot) Clone() OrderBookSnapshot {
	out := OrderBookSnapshot{UpdateID: s.UpdateID}
	if s.Bids != nil {
		out.Bids = append([]OrderBookLevel(nil), s.Bids...)
	}
	if s.Asks != nil {
		out.Asks = append([]OrderBookLevel(nil), s.Asks...)
	}
	return out
}
