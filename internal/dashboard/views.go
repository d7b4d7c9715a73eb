package dashboard

import (
	"marketview/internal/display"
	"marketview/internal/stream"
	"marketview/logger"
	"marketview/models"
	"marketview/processor"
)

type levelView struct {
	Price        float64 `json:"price"`
	Quantity     float64 `json:"quantity"`
	Total        float64 `json:"total"`
	PriceText    string  `json:"priceText"`
	QuantityText string  `json:"quantityText"`
	DepthPercent float64 `json:"depthPercent"`
}

type spreadView struct {
	Value   float64 `json:"value"`
	Percent float64 `json:"percent"`
	Text    string  `json:"text"`
}

type orderBookView struct {
	Symbol       string      `json:"symbol"`
	LastUpdateID int64       `json:"lastUpdateId"`
	Bids         []levelView `json:"bids"`
	Asks         []levelView `json:"asks"`
	Spread       *spreadView `json:"spread,omitempty"`
}

type tradeView struct {
	models.ProcessedTrade
	Side         string `json:"side"`
	PriceText    string `json:"priceText"`
	QuantityText string `json:"quantityText"`
	TimeText     string `json:"timeText"`
}

type tradesView struct {
	Symbol string      `json:"symbol"`
	Trades []tradeView `json:"trades"`
}

type statusView struct {
	App       string                         `json:"app"`
	Symbol    string                         `json:"symbol"`
	Streams   []stream.Status                `json:"streams"`
	Book      processor.ReducerStats         `json:"book"`
	Tape      processor.ReducerStats         `json:"tape"`
	TapeSize  int                            `json:"tapeSize"`
	UpdateID  int64                          `json:"lastUpdateId"`
	Counters  map[string]logger.StreamReport `json:"counters"`
	Resources *hostSample                    `json:"resources,omitempty"`
}

func (s *Server) orderBookView() orderBookView {
	snap := s.feed.Book.Snapshot()
	view := orderBookView{
		Symbol:       s.feed.Symbol(),
		LastUpdateID: snap.UpdateID,
		Bids:         levelViews(snap.Bids),
		Asks:         levelViews(snap.Asks),
	}
	if value, percent, ok := display.Spread(snap); ok {
		view.Spread = &spreadView{Value: value, Percent: percent, Text: display.FormatPrice(value)}
	}
	return view
}

func levelViews(levels []models.OrderBookLevel) []levelView {
	max := display.MaxCumulative(levels)
	out := make([]levelView, len(levels))
	for i, l := range levels {
		out[i] = levelView{
			Price:        l.Price,
			Quantity:     l.Quantity,
			Total:        l.CumulativeNotional,
			PriceText:    display.FormatPrice(l.Price),
			QuantityText: display.FormatQuantity(l.Quantity),
			DepthPercent: display.DepthRatio(l, max),
		}
	}
	return out
}

// tradesView renders the newest limit trades; 0 means the whole tape.
func (s *Server) tradesView(limit int) tradesView {
	tape := s.feed.Tape.Tape()
	if limit > 0 && limit < len(tape) {
		tape = tape[:limit]
	}
	out := make([]tradeView, len(tape))
	for i, t := range tape {
		out[i] = tradeView{
			ProcessedTrade: t,
			Side:           display.Side(t.IsBuyerMaker),
			PriceText:      display.FormatPrice(t.Price),
			QuantityText:   display.FormatQuantity(t.Quantity),
			TimeText:       display.FormatTime(t.TimeMs, s.loc),
		}
	}
	return tradesView{Symbol: s.feed.Symbol(), Trades: out}
}

func (s *Server) statusView() statusView {
	managers := s.feed.Streams()
	streams := make([]stream.Status, len(managers))
	for i, m := range managers {
		streams[i] = m.Status()
	}
	view := statusView{
		App:      s.appName,
		Symbol:   s.feed.Symbol(),
		Streams:  streams,
		Book:     s.feed.Book.Stats(),
		Tape:     s.feed.Tape.Stats(),
		TapeSize: len(s.feed.Tape.Tape()),
		UpdateID: s.feed.Book.UpdateID(),
		Counters: logger.StreamReports(),
	}
	if sample, ok := s.sampler.latest(); ok {
		view.Resources = &sample
	}
	return view
}
