package processor

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"marketview/logger"
	"marketview/models"
)

// OrderBookReducer turns depth messages into display snapshots. Each message
// replaces the previous snapshot wholesale. Readers get the latest published
// snapshot without locking.
type OrderBookReducer struct {
	log *logger.Log

	mu      sync.Mutex
	current atomic.Pointer[models.OrderBookSnapshot]

	messagesProcessed atomic.Int64
	errorsCount       atomic.Int64
}

func NewOrderBookReducer(log *logger.Log) *OrderBookReducer {
	if log == nil {
		log = logger.GetLogger()
	}
	r := &OrderBookReducer{log: log}
	r.current.Store(&models.OrderBookSnapshot{})
	return r
}

// Reduce builds a snapshot from msg and publishes it. On error nothing is
// published and the previous snapshot stays visible.
func (r *OrderBookReducer) Reduce(msg models.RawDepthMessage) (models.OrderBookSnapshot, error) {
	snap, err := BuildSnapshot(msg)
	if err != nil {
		r.errorsCount.Add(1)
		r.log.WithComponent("orderbook_reducer").WithError(err).WithFields(logger.Fields{
			"last_update_id": msg.LastUpdateID,
		}).Warn("failed to reduce depth message")
		return models.OrderBookSnapshot{}, err
	}
	r.mu.Lock()
	r.current.Store(&snap)
	r.mu.Unlock()
	r.messagesProcessed.Add(1)
	return snap.Clone(), nil
}

// Seed publishes snap only when nothing newer has been published yet. It
// returns whether the seed was applied.
func (r *OrderBookReducer) Seed(snap models.OrderBookSnapshot) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	cur := r.current.Load()
	if cur.UpdateID != 0 && cur.UpdateID >= snap.UpdateID {
		return false
	}
	seeded := snap.Clone()
	r.current.Store(&seeded)
	return true
}

// Snapshot returns a copy of the latest published snapshot.
func (r *OrderBookReducer) Snapshot() models.OrderBookSnapshot {
	return r.current.Load().Clone()
}

func (r *OrderBookReducer) UpdateID() int64 {
	return r.current.Load().UpdateID
}

// Reset drops the published snapshot back to the empty book.
func (r *OrderBookReducer) Reset() {
	r.mu.Lock()
	r.current.Store(&models.OrderBookSnapshot{})
	r.mu.Unlock()
}

type ReducerStats struct {
	MessagesProcessed int64 `json:"messagesProcessed"`
	ErrorsCount       int64 `json:"errorsCount"`
}

func (r *OrderBookReducer) Stats() ReducerStats {
	return ReducerStats{
		MessagesProcessed: r.messagesProcessed.Load(),
		ErrorsCount:       r.errorsCount.Load(),
	}
}

// BuildSnapshot converts one depth message. Level order is preserved and
// every level carries the running price*quantity total of its side.
func BuildSnapshot(msg models.RawDepthMessage) (models.OrderBookSnapshot, error) {
	bids, err := buildSide("bid", msg.Bids)
	if err != nil {
		return models.OrderBookSnapshot{}, err
	}
	asks, err := buildSide("ask", msg.Asks)
	if err != nil {
		return models.OrderBookSnapshot{}, err
	}
	return models.OrderBookSnapshot{Bids: bids, Asks: asks, UpdateID: msg.LastUpdateID}, nil
}

func buildSide(side string, levels []models.PriceLevelText) ([]models.OrderBookLevel, error) {
	out := make([]models.OrderBookLevel, 0, len(levels))
	var total float64
	for i, lvl := range levels {
		price, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("%s level %d price %q: %w", side, i+1, lvl.Price, err)
		}
		quantity, err := strconv.ParseFloat(lvl.Quantity, 64)
		if err != nil {
			return nil, fmt.Errorf("%s level %d quantity %q: %w", side, i+1, lvl.Quantity, err)
		}
		total += price * quantity
		out = append(out, models.OrderBookLevel{
			Price:              price,
			Quantity:           quantity,
			CumulativeNotional: total,
		})
	}
	return out, nil
}
