// Package display holds the pure helpers the rendering side uses to turn
// reducer output into text and bar widths.
package display

import (
	"math"
	"strconv"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"marketview/models"
)

var printer = message.NewPrinter(language.AmericanEnglish)

func decimal(v float64, minFrac, maxFrac int) string {
	return printer.Sprint(number.Decimal(v, number.MinFractionDigits(minFrac), number.MaxFractionDigits(maxFrac)))
}

// FormatPrice groups thousands and keeps more decimals the smaller the price.
func FormatPrice(price float64) string {
	switch {
	case price >= 1000:
		return decimal(price, 2, 2)
	case price >= 1:
		return decimal(price, 2, 4)
	default:
		return decimal(price, 2, 8)
	}
}

func FormatQuantity(quantity float64) string {
	if quantity >= 1 {
		return decimal(quantity, 2, 5)
	}
	return decimal(quantity, 2, 8)
}

// FormatTime renders a millisecond timestamp as HH:MM:SS in loc (local time when nil).
func FormatTime(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format("15:04:05")
}

// PercentageChange is the change from previous to current in percent, 0 when previous is 0.
func PercentageChange(current, previous float64) float64 {
	if previous == 0 {
		return 0
	}
	return (current - previous) / previous * 100
}

// AbbreviateNumber renders 1500 as 1.50K and 2500000 as 2.50M.
func AbbreviateNumber(n float64) string {
	switch {
	case n >= 1_000_000:
		return strconv.FormatFloat(n/1_000_000, 'f', 2, 64) + "M"
	case n >= 1_000:
		return strconv.FormatFloat(n/1_000, 'f', 2, 64) + "K"
	}
	return strconv.FormatFloat(n, 'f', 2, 64)
}

// IsBuy classifies a trade as a buy when the buyer was the taker.
func IsBuy(isBuyerMaker bool) bool {
	return !isBuyerMaker
}

func Side(isBuyerMaker bool) string {
	if IsBuy(isBuyerMaker) {
		return "buy"
	}
	return "sell"
}

// Spread is lowest ask minus highest bid, and that gap as a percent of the
// highest bid. ok is false when either side is empty.
func Spread(snap models.OrderBookSnapshot) (value, percent float64, ok bool) {
	if len(snap.Bids) == 0 || len(snap.Asks) == 0 {
		return 0, 0, false
	}
	bid := snap.Bids[0].Price
	value = snap.Asks[0].Price - bid
	if bid != 0 {
		percent = value / bid * 100
	}
	return value, percent, true
}

// MaxCumulative is the largest cumulative notional on a side.
func MaxCumulative(levels []models.OrderBookLevel) float64 {
	max := 0.0
	for _, l := range levels {
		max = math.Max(max, l.CumulativeNotional)
	}
	return max
}

// DepthRatio is the depth bar width of level in percent of maxTotal, clamped to [0, 100].
func DepthRatio(level models.OrderBookLevel, maxTotal float64) float64 {
	if maxTotal <= 0 {
		return 0
	}
	r := level.CumulativeNotional / maxTotal * 100
	return math.Min(math.Max(r, 0), 100)
}
