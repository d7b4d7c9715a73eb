package display

import (
	"math"
	"testing"
	"time"

	"marketview/models"
)

func TestIsBuy(t *testing.T) {
	for _, maker := range []bool{true, false} {
		if IsBuy(maker) == maker {
			t.Fatalf("IsBuy(%v) must be %v", maker, !maker)
		}
	}
	if Side(false) != "buy" || Side(true) != "sell" {
		t.Fatalf("unexpected side labels")
	}
}

func TestFormatPrice(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{43250.5, "43,250.50"},
		{1234567.891, "1,234,567.89"},
		{12.5, "12.50"},
		{1.23456, "1.2346"},
		{0.5, "0.50"},
		{0.00012345, "0.00012345"},
	}
	for _, tt := range tests {
		if got := FormatPrice(tt.in); got != tt.want {
			t.Errorf("FormatPrice(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{2, "2.00"},
		{1.234567, "1.23457"},
		{0.0012, "0.0012"},
	}
	for _, tt := range tests {
		if got := FormatQuantity(tt.in); got != tt.want {
			t.Errorf("FormatQuantity(%v) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	ms := time.Date(2024, 3, 9, 7, 5, 3, 0, time.UTC).UnixMilli()
	if got := FormatTime(ms, time.UTC); got != "07:05:03" {
		t.Fatalf("unexpected time %q", got)
	}
}

func TestPercentageChange(t *testing.T) {
	if got := PercentageChange(110, 100); math.Abs(got-10) > 1e-9 {
		t.Fatalf("expected 10%%, got %v", got)
	}
	if got := PercentageChange(5, 0); got != 0 {
		t.Fatalf("expected 0 for zero base, got %v", got)
	}
}

func TestAbbreviateNumber(t *testing.T) {
	tests := map[float64]string{
		999:       "999.00",
		1500:      "1.50K",
		2_500_000: "2.50M",
	}
	for in, want := range tests {
		if got := AbbreviateNumber(in); got != want {
			t.Errorf("AbbreviateNumber(%v) = %q, want %q", in, got, want)
		}
	}
}

func TestSpreadAndDepth(t *testing.T) {
	snap := models.OrderBookSnapshot{
		Bids: []models.OrderBookLevel{{Price: 100, Quantity: 2, CumulativeNotional: 200}, {Price: 99, Quantity: 1, CumulativeNotional: 299}},
		Asks: []models.OrderBookLevel{{Price: 101, Quantity: 1, CumulativeNotional: 101}},
	}
	value, percent, ok := Spread(snap)
	if !ok || value != 1 || math.Abs(percent-1) > 1e-9 {
		t.Fatalf("unexpected spread %v %v %v", value, percent, ok)
	}
	if _, _, ok := Spread(models.OrderBookSnapshot{Bids: snap.Bids}); ok {
		t.Fatalf("spread needs both sides")
	}

	max := MaxCumulative(snap.Bids)
	if max != 299 {
		t.Fatalf("expected max 299, got %v", max)
	}
	if got := DepthRatio(snap.Bids[1], max); got != 100 {
		t.Fatalf("expected full bar, got %v", got)
	}
	if got := DepthRatio(snap.Bids[0], 0); got != 0 {
		t.Fatalf("expected empty bar for zero max, got %v", got)
	}
}
