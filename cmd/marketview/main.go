package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"marketview/config"
	"marketview/internal/dashboard"
	"marketview/internal/market"
	"marketview/internal/metrics"
	"marketview/internal/notify"
	"marketview/logger"
)

func main() {
	log := logger.GetLogger()

	// Load environment variables from .env if present
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.WithError(err).Warn("Error loading .env file")
	}

	configPath := flag.String("config", config.DefaultPath, "Path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.WithError(err).Error("Failed to load configuration")
		os.Exit(1)
	}

	if err := log.Configure(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output, cfg.Logging.MaxAge); err != nil {
		log.WithError(err).Error("Failed to configure logger")
		os.Exit(1)
	}

	log.WithFields(logger.Fields{
		"service": cfg.MarketView.Name,
		"version": cfg.MarketView.Version,
		"symbol":  cfg.Stream.Symbol,
		"env":     config.AppEnvironment(),
	}).Info("starting marketview")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.CloudWatch.Enabled {
		logger.InitCloudWatch(ctx, cfg.Metrics.CloudWatch.Region, cfg.Metrics.CloudWatch.Namespace)
	}
	if strings.ToLower(cfg.Logging.Level) == "report" || cfg.Metrics.Enabled {
		logger.StartReport(ctx, log, cfg.Metrics.ReportInterval)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New()
	}

	var wg sync.WaitGroup

	toasts := notify.NewQueue(cfg.Notifications.History, cfg.Notifications.DefaultTTL)
	sinks := notify.Multi{toasts, notify.NewLogSink(log)}

	if tc := cfg.Notifications.Telegram; tc.Enabled {
		minSeverity, err := notify.ParseSeverity(tc.MinSeverity)
		if err != nil {
			log.WithError(err).Error("invalid telegram min_severity")
			os.Exit(1)
		}
		tg, err := notify.NewTelegram(notify.TelegramOptions{
			BotToken:      tc.BotToken,
			ChatID:        tc.ChatID,
			MinSeverity:   minSeverity,
			RatePerSecond: tc.RatePerSecond,
			Burst:         tc.Burst,
			QueueSize:     tc.QueueSize,
			MaxRetries:    tc.MaxRetries,
			RetryDelay:    tc.RetryDelay,
			Label:         strings.ToUpper(cfg.Stream.Symbol),
		}, log)
		if err != nil {
			log.WithError(err).Warn("telegram forwarding disabled")
		} else {
			sinks = append(sinks, tg)
			wg.Add(1)
			go func() {
				defer wg.Done()
				tg.Run(ctx)
			}()
		}
	}

	feed := market.NewFeed(market.Options{
		Config:  cfg,
		Sink:    sinks,
		Metrics: m,
		Log:     log,
	})
	feed.Launch(ctx)

	srv, err := dashboard.NewServer(cfg.Dashboard, feed, toasts, m, log)
	if err != nil {
		log.WithError(err).Error("failed to create dashboard")
		os.Exit(1)
	}
	if srv != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Run(ctx, cfg.MarketView.Name); err != nil {
				log.WithError(err).Error("dashboard stopped")
				cancel()
			}
		}()
	} else {
		log.WithComponent("main").Info("dashboard disabled")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		log.WithFields(logger.Fields{"signal": sig.String()}).Info("shutdown signal received")
	case <-ctx.Done():
	}

	log.Info("starting graceful shutdown")
	feed.Stop()
	cancel()
	wg.Wait()
	log.Info("marketview stopped")
}
