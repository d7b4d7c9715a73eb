package market

import (
	"context"
	"time"

	"marketview/config"
	"marketview/internal/decoder"
	"marketview/internal/metrics"
	"marketview/internal/notify"
	"marketview/internal/stream"
	"marketview/logger"
	"marketview/processor"
)

// Options wires a Feed. Only Config is required.
type Options struct {
	Config    *config.Config
	Sink      notify.Sink
	Metrics   *metrics.Metrics
	Dialer    stream.Dialer
	Scheduler stream.Scheduler
	Seeder    DepthSeeder
	Log       *logger.Log
}

// Feed owns the order book and trade subscriptions of one symbol together
// with the reducers they publish into.
type Feed struct {
	Book   *processor.OrderBookReducer
	Tape   *processor.TradeTapeReducer
	Depth  *stream.Manager
	Trades *stream.Manager

	cfg     *config.Config
	metrics *metrics.Metrics
	seeder  DepthSeeder
	log     *logger.Log
}

func NewFeed(opts Options) *Feed {
	cfg := opts.Config
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	log := opts.Log
	if log == nil {
		log = logger.GetLogger()
	}
	sink := opts.Sink
	if sink == nil {
		sink = notify.Discard
	}
	dialer := opts.Dialer
	if dialer == nil {
		dialer = stream.NewWebsocketDialer(cfg.Stream.HandshakeTimeout, cfg.Stream.LocalIP)
	}

	f := &Feed{
		Book:    processor.NewOrderBookReducer(log),
		Tape:    processor.NewTradeTapeReducer(cfg.Tape.Capacity, log),
		cfg:     cfg,
		metrics: opts.Metrics,
		seeder:  opts.Seeder,
		log:     log,
	}
	if f.seeder == nil && cfg.Seed.Enabled {
		f.seeder = NewBinanceSeeder(cfg.Seed.RestURL, cfg.Seed.Timeout, log)
	}

	sc := cfg.Stream
	backoff := stream.Backoff{
		Base:        sc.Reconnect.BaseDelay,
		Max:         sc.Reconnect.MaxDelay,
		Multiplier:  sc.Reconnect.Multiplier,
		MaxAttempts: sc.Reconnect.MaxAttempts,
	}

	f.Depth = stream.NewManager(stream.Options{
		Name:        DepthStream,
		Label:       "Order book",
		RetryTarget: "order book",
		DataKind:    "order book",
		URL:         DepthURL(sc.BaseURL, sc.Symbol, sc.DepthLevels, sc.DepthIntervalMs),
		Dialer:      dialer,
		Handler:     f.handleDepth,
		Sink:        sink,
		Backoff:     backoff,
		StartDelay:  sc.StartDelay,
		Scheduler:   opts.Scheduler,
		OnPhase:     f.phaseHook(DepthStream),
		OnReconnect: f.reconnectHook(DepthStream),
		Log:         log,
	})
	f.Trades = stream.NewManager(stream.Options{
		Name:        TradeStream,
		Label:       "Aggregate trades",
		RetryTarget: "trades stream",
		DataKind:    "trade",
		URL:         TradeURL(sc.BaseURL, sc.Symbol),
		Dialer:      dialer,
		Handler:     f.handleTrade,
		Sink:        sink,
		Backoff:     backoff,
		StartDelay:  sc.StartDelay,
		Scheduler:   opts.Scheduler,
		OnPhase:     f.phaseHook(TradeStream),
		OnReconnect: f.reconnectHook(TradeStream),
		Log:         log,
	})
	return f
}

func (f *Feed) Symbol() string { return f.cfg.Stream.Symbol }

// Streams returns the managers in a stable order.
func (f *Feed) Streams() []*stream.Manager {
	return []*stream.Manager{f.Depth, f.Trades}
}

// Stream looks a manager up by name.
func (f *Feed) Stream(name string) (*stream.Manager, bool) {
	switch name {
	case DepthStream:
		return f.Depth, true
	case TradeStream:
		return f.Trades, true
	}
	return nil, false
}

// Launch schedules both subscriptions. When seeding is enabled the order book
// is first filled from REST so the view is not empty until the first push.
func (f *Feed) Launch(ctx context.Context) {
	if f.seeder != nil {
		if err := f.Seed(ctx); err != nil {
			f.log.WithComponent("feed").WithError(err).Warn("depth seed failed")
		}
	}
	f.Depth.Launch()
	f.Trades.Launch()
	f.log.WithComponent("feed").WithFields(logger.Fields{
		"symbol":    f.cfg.Stream.Symbol,
		"depth_url": DepthURL(f.cfg.Stream.BaseURL, f.cfg.Stream.Symbol, f.cfg.Stream.DepthLevels, f.cfg.Stream.DepthIntervalMs),
		"trade_url": TradeURL(f.cfg.Stream.BaseURL, f.cfg.Stream.Symbol),
	}).Info("feed launched")
}

// Seed fills the order book from a REST snapshot unless a newer stream
// snapshot already arrived.
func (f *Feed) Seed(ctx context.Context) error {
	if f.seeder == nil {
		return nil
	}
	if f.cfg.Seed.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.Seed.Timeout)
		defer cancel()
	}
	msg, err := f.seeder.Depth(ctx, f.cfg.Stream.Symbol, f.cfg.Stream.DepthLevels)
	if err != nil {
		return err
	}
	snap, err := processor.BuildSnapshot(msg)
	if err != nil {
		return err
	}
	if f.Book.Seed(snap) {
		f.metrics.SetUpdateID(snap.UpdateID)
		f.log.WithComponent("feed").WithField("last_update_id", snap.UpdateID).Info("order book seeded")
	}
	return nil
}

// Stop tears down both subscriptions.
func (f *Feed) Stop() {
	f.Depth.Stop()
	f.Trades.Stop()
}

func (f *Feed) handleDepth(payload []byte) error {
	f.metrics.ObserveMessage(DepthStream, len(payload))
	logger.RecordStreamMessage(DepthStream, len(payload))

	msg, err := decoder.DecodeDepth(payload)
	if err == nil {
		if _, err = f.Book.Reduce(msg); err == nil {
			f.metrics.SetUpdateID(f.Book.UpdateID())
			return nil
		}
	}
	f.metrics.ObserveDecodeError(DepthStream)
	logger.RecordDecodeError(DepthStream)
	return err
}

func (f *Feed) handleTrade(payload []byte) error {
	f.metrics.ObserveMessage(TradeStream, len(payload))
	logger.RecordStreamMessage(TradeStream, len(payload))

	msg, err := decoder.DecodeTrade(payload)
	if err == nil {
		if _, err = f.Tape.Reduce(msg); err == nil {
			f.metrics.SetTapeLength(len(f.Tape.Tape()))
			return nil
		}
	}
	f.metrics.ObserveDecodeError(TradeStream)
	logger.RecordDecodeError(TradeStream)
	return err
}

func (f *Feed) phaseHook(name string) func(stream.Phase) {
	all := make([]string, len(stream.Phases))
	for i, p := range stream.Phases {
		all[i] = p.String()
	}
	return func(p stream.Phase) {
		f.metrics.SetPhase(name, p.String(), all)
	}
}

func (f *Feed) reconnectHook(name string) func(int, time.Duration) {
	return func(attempt int, delay time.Duration) {
		f.metrics.ObserveReconnect(name, delay)
		logger.RecordReconnect(name)
	}
}
