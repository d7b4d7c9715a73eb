package processor

import (
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"marketview/logger"
	"marketview/models"
)

// TradeTapeReducer keeps the newest trades first, bounded by capacity.
// Every accepted trade publishes a fresh slice; published slices are never
// modified afterwards.
type TradeTapeReducer struct {
	log      *logger.Log
	capacity int

	mu   sync.Mutex
	tape atomic.Pointer[models.TradeTape]

	messagesProcessed atomic.Int64
	errorsCount       atomic.Int64
}

func NewTradeTapeReducer(capacity int, log *logger.Log) *TradeTapeReducer {
	if capacity <= 0 {
		capacity = models.DefaultTapeCapacity
	}
	if log == nil {
		log = logger.GetLogger()
	}
	r := &TradeTapeReducer{log: log, capacity: capacity}
	empty := models.TradeTape{}
	r.tape.Store(&empty)
	return r
}

func (r *TradeTapeReducer) Capacity() int { return r.capacity }

// Reduce parses msg and prepends it to the tape, evicting the oldest trade
// once the tape is full. On error the tape is left unchanged.
func (r *TradeTapeReducer) Reduce(msg models.RawTradeMessage) (models.ProcessedTrade, error) {
	trade, err := ProcessTrade(msg)
	if err != nil {
		r.errorsCount.Add(1)
		r.log.WithComponent("tape_reducer").WithError(err).WithFields(logger.Fields{
			"trade_id": msg.TradeID,
		}).Warn("failed to reduce trade message")
		return models.ProcessedTrade{}, err
	}

	r.mu.Lock()
	prev := *r.tape.Load()
	keep := len(prev)
	if keep > r.capacity-1 {
		keep = r.capacity - 1
	}
	next := make(models.TradeTape, 0, keep+1)
	next = append(next, trade)
	next = append(next, prev[:keep]...)
	r.tape.Store(&next)
	r.mu.Unlock()

	r.messagesProcessed.Add(1)
	return trade, nil
}

// Tape returns the latest published tape. The slice must not be modified.
func (r *TradeTapeReducer) Tape() models.TradeTape {
	return *r.tape.Load()
}

func (r *TradeTapeReducer) Reset() {
	r.mu.Lock()
	empty := models.TradeTape{}
	r.tape.Store(&empty)
	r.mu.Unlock()
}

func (r *TradeTapeReducer) Stats() ReducerStats {
	return ReducerStats{
		MessagesProcessed: r.messagesProcessed.Load(),
		ErrorsCount:       r.errorsCount.Load(),
	}
}

// ProcessTrade converts one trade message. The maker flag is copied as is.
func ProcessTrade(msg models.RawTradeMessage) (models.ProcessedTrade, error) {
	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil {
		return models.ProcessedTrade{}, fmt.Errorf("trade %d price %q: %w", msg.TradeID, msg.Price, err)
	}
	quantity, err := strconv.ParseFloat(msg.Quantity, 64)
	if err != nil {
		return models.ProcessedTrade{}, fmt.Errorf("trade %d quantity %q: %w", msg.TradeID, msg.Quantity, err)
	}
	return models.ProcessedTrade{
		ID:           msg.TradeID,
		Price:        price,
		Quantity:     quantity,
		TimeMs:       msg.TradeTimeMs,
		IsBuyerMaker: msg.BuyerIsMaker,
	}, nil
}
