// Package decoder turns raw feed payloads into typed market messages.
package decoder

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"

	binance "github.com/adshao/go-binance/v2"

	"marketview/models"
)

// DecodeError reports a payload that does not match the expected message shape.
// Payload is the original bytes as received.
type DecodeError struct {
	Kind    string
	Payload []byte
	Cause   error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s payload: %v", e.Kind, e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

const (
	KindDepth = "depth"
	KindTrade = "trade"
)

var (
	errMissingField = errors.New("missing required field")
	errLevelShape   = errors.New("price level must be a [price, quantity] pair")
)

func fail(kind string, payload []byte, cause error) *DecodeError {
	return &DecodeError{Kind: kind, Payload: append([]byte(nil), payload...), Cause: cause}
}

// envelope is the combined-stream wrapper: {"stream": "...", "data": {...}}.
type envelope struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// unwrap returns the inner data of a combined-stream frame, or payload unchanged.
func unwrap(payload []byte) []byte {
	trimmed := bytes.TrimSpace(payload)
	if !bytes.Contains(trimmed, []byte(`"stream"`)) {
		return trimmed
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil || env.Stream == "" || len(env.Data) == 0 {
		return trimmed
	}
	return env.Data
}

type depthPayload struct {
	LastUpdateID *int64     `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// DecodeDepth parses a partial book depth payload.
func DecodeDepth(payload []byte) (models.RawDepthMessage, error) {
	var p depthPayload
	if err := json.Unmarshal(unwrap(payload), &p); err != nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, err)
	}
	if p.LastUpdateID == nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, fmt.Errorf("%w: lastUpdateId", errMissingField))
	}
	if p.Bids == nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, fmt.Errorf("%w: bids", errMissingField))
	}
	if p.Asks == nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, fmt.Errorf("%w: asks", errMissingField))
	}

	bids, err := levels("bids", p.Bids)
	if err != nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, err)
	}
	asks, err := levels("asks", p.Asks)
	if err != nil {
		return models.RawDepthMessage{}, fail(KindDepth, payload, err)
	}

	return models.RawDepthMessage{
		LastUpdateID: *p.LastUpdateID,
		Bids:         bids,
		Asks:         asks,
	}, nil
}

func levels(side string, raw [][]string) ([]models.PriceLevelText, error) {
	out := make([]models.PriceLevelText, 0, len(raw))
	for i, pair := range raw {
		if len(pair) != 2 {
			return nil, fmt.Errorf("%s[%d]: %w", side, i, errLevelShape)
		}
		if _, err := ParseNumber(pair[0]); err != nil {
			return nil, fmt.Errorf("%s[%d] price: %w", side, i, err)
		}
		if _, err := ParseNumber(pair[1]); err != nil {
			return nil, fmt.Errorf("%s[%d] quantity: %w", side, i, err)
		}
		out = append(out, models.PriceLevelText{Price: pair[0], Quantity: pair[1]})
	}
	return out, nil
}

// tradePresence detects fields that would silently zero-fill in WsAggTradeEvent.
// Ignore holds "M" so the case-insensitive key match cannot fill BuyerMaker.
type tradePresence struct {
	AggTradeID *int64 `json:"a"`
	TradeTime  *int64 `json:"T"`
	BuyerMaker *bool  `json:"m"`
	Ignore     *bool  `json:"M"`
}

// DecodeTrade parses an aggregate trade payload.
func DecodeTrade(payload []byte) (models.RawTradeMessage, error) {
	data := unwrap(payload)

	var event binance.WsAggTradeEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return models.RawTradeMessage{}, fail(KindTrade, payload, err)
	}
	var seen tradePresence
	if err := json.Unmarshal(data, &seen); err != nil {
		return models.RawTradeMessage{}, fail(KindTrade, payload, err)
	}
	switch {
	case seen.AggTradeID == nil:
		return models.RawTradeMessage{}, fail(KindTrade, payload, fmt.Errorf("%w: a", errMissingField))
	case seen.TradeTime == nil:
		return models.RawTradeMessage{}, fail(KindTrade, payload, fmt.Errorf("%w: T", errMissingField))
	case seen.BuyerMaker == nil:
		return models.RawTradeMessage{}, fail(KindTrade, payload, fmt.Errorf("%w: m", errMissingField))
	}
	if _, err := ParseNumber(event.Price); err != nil {
		return models.RawTradeMessage{}, fail(KindTrade, payload, fmt.Errorf("price: %w", err))
	}
	if _, err := ParseNumber(event.Quantity); err != nil {
		return models.RawTradeMessage{}, fail(KindTrade, payload, fmt.Errorf("quantity: %w", err))
	}

	return models.RawTradeMessage{
		TradeID:      event.AggTradeID,
		Price:        event.Price,
		Quantity:     event.Quantity,
		TradeTimeMs:  event.TradeTime,
		BuyerIsMaker: event.IsBuyerMaker,
	}, nil
}

// ParseNumber parses decimal text into a finite float64.
func ParseNumber(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid number %q", s)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite number %q", s)
	}
	return v, nil
}
