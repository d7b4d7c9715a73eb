package dashboard

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"marketview/config"
	"marketview/internal/market"
	"marketview/internal/metrics"
	"marketview/internal/notify"
	"marketview/logger"
)

// Server exposes the feed view state over HTTP and pushes it to websocket
// clients at the configured interval.
type Server struct {
	cfg     config.DashboardConfig
	log     *logger.Log
	feed    *market.Feed
	toasts  *notify.Queue
	metrics *metrics.Metrics
	loc     *time.Location

	logs       *logBuffer
	sampler    *resourceSampler
	hub        *hub
	httpServer *http.Server
	appName    string
}

// NewServer returns nil when the dashboard is disabled.
func NewServer(cfg config.DashboardConfig, feed *market.Feed, toasts *notify.Queue, m *metrics.Metrics, log *logger.Log) (*Server, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if feed == nil {
		return nil, errors.New("dashboard requires a feed")
	}
	if log == nil {
		log = logger.GetLogger()
	}

	cfg.Address = normalizeAddress(cfg.Address)
	if cfg.PushInterval <= 0 {
		cfg.PushInterval = 250 * time.Millisecond
	}

	logs := newLogBuffer(cfg.LogHistory, logrus.InfoLevel)
	log.AddHook(logs)

	return &Server{
		cfg:     cfg,
		log:     log,
		feed:    feed,
		toasts:  toasts,
		metrics: m,
		loc:     time.Local,
		logs:    logs,
		sampler: newResourceSampler(cfg.ResourceHistory, cfg.ResourceInterval, log),
		hub:     newHub(log),
		appName: "marketview",
	}, nil
}

// Run serves until ctx is cancelled or the listener fails.
func (s *Server) Run(ctx context.Context, appName string) error {
	if s == nil {
		return nil
	}
	defer s.cleanup()
	if appName != "" {
		s.appName = appName
	}

	router, err := s.buildRouter(ctx)
	if err != nil {
		return err
	}

	s.sampler.start(ctx)
	go s.hub.run(ctx)
	go s.pushLoop(ctx)

	s.httpServer = &http.Server{
		Addr:              s.cfg.Address,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.WithComponent("dashboard").WithField("address", s.cfg.Address).Info("dashboard listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		<-errCh
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) cleanup() {
	s.logs.close()
	s.sampler.stop()
}

// Address reports the network address the dashboard listens on.
func (s *Server) Address() string {
	if s == nil {
		return ""
	}
	return s.cfg.Address
}

func (s *Server) pushLoop(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.PushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.toasts != nil {
				s.toasts.Prune()
			}
			if s.hub.clientCount(ctx) == 0 {
				continue
			}
			s.hub.publish("orderbook", s.orderBookView())
			s.hub.publish("trades", s.tradesView(0))
			s.hub.publish("status", s.statusView())
			s.hub.publish("notifications", s.activeToasts())
		}
	}
}

func (s *Server) buildRouter(ctx context.Context) (*gin.Engine, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if err := router.SetTrustedProxies(nil); err != nil {
		return nil, err
	}

	api := router.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.statusView())
	})
	api.GET("/orderbook", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.orderBookView())
	})
	api.GET("/trades", func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
				return
			}
			limit = n
		}
		c.JSON(http.StatusOK, s.tradesView(limit))
	})
	api.GET("/notifications", func(c *gin.Context) {
		payload := gin.H{"active": s.activeToasts()}
		if c.Query("history") == "true" && s.toasts != nil {
			payload["history"] = s.toasts.History()
		}
		c.JSON(http.StatusOK, payload)
	})
	api.DELETE("/notifications/:id", func(c *gin.Context) {
		if s.toasts == nil || !s.toasts.Dismiss(c.Param("id")) {
			c.JSON(http.StatusNotFound, gin.H{"error": "notification not found"})
			return
		}
		c.Status(http.StatusNoContent)
	})
	api.POST("/streams/:name/:action", s.handleStreamAction)
	api.GET("/logs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"logs": s.logs.snapshot()})
	})
	api.GET("/resources", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"resources": s.sampler.snapshot()})
	})

	if s.metrics != nil {
		router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	}
	router.GET("/ws", func(c *gin.Context) {
		s.hub.serveWS(ctx, c.Writer, c.Request)
	})

	return router, nil
}

func (s *Server) handleStreamAction(c *gin.Context) {
	m, ok := s.feed.Stream(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown stream"})
		return
	}
	switch action := c.Param("action"); action {
	case "start":
		m.Start()
	case "stop":
		m.Stop()
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "action must be start or stop"})
		return
	}
	s.log.WithComponent("dashboard").WithFields(logger.Fields{
		"stream": m.Name(),
		"action": c.Param("action"),
	}).Info("stream action requested")
	c.JSON(http.StatusAccepted, m.Status())
}

func (s *Server) activeToasts() []notify.Toast {
	if s.toasts == nil {
		return []notify.Toast{}
	}
	return s.toasts.Active()
}

func normalizeAddress(addr string) string {
	addr = strings.TrimSpace(addr)

	if addr == "" {
		return "0.0.0.0:8080"
	}

	if strings.Contains(addr, "://") {
		if parsed, err := url.Parse(addr); err == nil {
			if host := parsed.Host; host != "" {
				addr = host
			} else if parsed.Opaque != "" {
				addr = parsed.Opaque
			}
		}
	}

	if strings.HasPrefix(addr, ":") {
		if len(addr) > 1 && addr[1] >= '0' && addr[1] <= '9' {
			return "0.0.0.0" + addr
		}
	}

	host, port, err := net.SplitHostPort(addr)
	if err == nil {
		if host == "" || host == "*" {
			host = "0.0.0.0"
		}
		if port == "" {
			port = "8080"
		}
		return net.JoinHostPort(host, port)
	}

	if ip := net.ParseIP(addr); ip != nil {
		return net.JoinHostPort(addr, "8080")
	}

	if !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, "8080")
	}

	return addr
}
