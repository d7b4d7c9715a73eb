package market

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	binance "github.com/adshao/go-binance/v2"

	"marketview/logger"
	"marketview/models"
)

// DepthSeeder fetches a one-off depth snapshot over REST.
type DepthSeeder interface {
	Depth(ctx context.Context, symbol string, limit int) (models.RawDepthMessage, error)
}

// BinanceSeeder reads spot depth through the go-binance REST client.
type BinanceSeeder struct {
	client *binance.Client
	log    *logger.Log
}

func NewBinanceSeeder(baseURL string, timeout time.Duration, log *logger.Log) *BinanceSeeder {
	if log == nil {
		log = logger.GetLogger()
	}
	client := binance.NewClient("", "")
	client.HTTPClient = &http.Client{Timeout: timeout}
	if baseURL != "" {
		client.BaseURL = strings.TrimRight(baseURL, "/")
	}
	log.WithComponent("depth_seeder").WithFields(logger.Fields{
		"base_url": client.BaseURL,
		"timeout":  timeout,
	}).Info("depth seeder initialized")
	return &BinanceSeeder{client: client, log: log}
}

func (s *BinanceSeeder) Depth(ctx context.Context, symbol string, limit int) (models.RawDepthMessage, error) {
	log := s.log.WithComponent("depth_seeder").WithFields(logger.Fields{
		"symbol":    symbol,
		"operation": "fetch_depth",
	})

	start := time.Now()
	res, err := s.client.NewDepthService().
		Symbol(strings.ToUpper(symbol)).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return models.RawDepthMessage{}, fmt.Errorf("fetch depth %s: %w", symbol, err)
	}
	logger.LogPerformanceEntry(log, "depth_seeder", "api_request", time.Since(start), logger.Fields{"symbol": symbol})

	msg := models.RawDepthMessage{
		LastUpdateID: res.LastUpdateID,
		Bids:         make([]models.PriceLevelText, len(res.Bids)),
		Asks:         make([]models.PriceLevelText, len(res.Asks)),
	}
	for i, b := range res.Bids {
		msg.Bids[i] = models.PriceLevelText{Price: b.Price, Quantity: b.Quantity}
	}
	for i, a := range res.Asks {
		msg.Asks[i] = models.PriceLevelText{Price: a.Price, Quantity: a.Quantity}
	}
	return msg, nil
}
