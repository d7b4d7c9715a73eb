package models

import "testing"

func TestOrderBookSnapshotCloneIsIndependent(t *testing.T) {
	orig := OrderBookSnapshot{
		Bids:     []OrderBookLevel{{Price: 100, Quantity: 2, CumulativeNotional: 200}},
		Asks:     []OrderBookLevel{{Price: 101, Quantity: 1, CumulativeNotional: 101}},
		UpdateID: 7,
	}
	cp := orig.Clone()
	cp.Bids[0].Price = 1
	cp.Asks[0].Quantity = 9

	if orig.Bids[0].Price != 100 || orig.Asks[0].Quantity != 1 {
		t.Fatalf("clone shares backing arrays with original: %+v", orig)
	}
	if cp.UpdateID != 7 {
		t.Fatalf("update id not copied: %d", cp.UpdateID)
	}
}

func TestOrderBookSnapshotCloneKeepsNilSides(t *testing.T) {
	cp := OrderBookSnapshot{}.Clone()
	if cp.Bids != nil || cp.Asks != nil {
		t.Fatalf("expected nil sides, got %+v", cp)
	}
}

func TestTradeTapeLatest(t *testing.T) {
	if _, ok := TradeTape(nil).Latest(); ok {
		t.Fatal("empty tape reported a latest trade")
	}
	tape := TradeTape{{ID: 3}, {ID: 2}}
	got, ok := tape.Latest()
	if !ok || got.ID != 3 {
		t.Fatalf("latest = %+v, %v; want id 3", got, ok)
	}
}
