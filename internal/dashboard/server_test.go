package dashboard

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"marketview/config"
	"marketview/internal/market"
	"marketview/internal/metrics"
	"marketview/internal/notify"
	"marketview/internal/stream"
	"marketview/logger"
	"marketview/models"
)

func quietLog() *logger.Log {
	l := logger.Logger()
	l.SetOutput(io.Discard)
	l.SetLevel(logrus.PanicLevel)
	return l
}

// blockingDialer never completes until the dial is cancelled.
type blockingDialer struct{}

func (blockingDialer) Dial(ctx context.Context, url string) (stream.Conn, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type fixture struct {
	srv    *Server
	feed   *market.Feed
	toasts *notify.Queue
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := config.Default()
	log := quietLog()
	feed := market.NewFeed(market.Options{Config: &cfg, Dialer: blockingDialer{}, Log: log})
	t.Cleanup(feed.Stop)
	toasts := notify.NewQueue(10, time.Minute)

	srv, err := NewServer(config.DashboardConfig{Enabled: true, Address: ":0", PushInterval: 5 * time.Millisecond}, feed, toasts, metrics.New(), log)
	if err != nil {
		t.Fatalf("NewServer error: %v", err)
	}
	t.Cleanup(srv.cleanup)
	srv.loc = time.UTC

	router, err := srv.buildRouter(context.Background())
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	return &fixture{srv: srv, feed: feed, toasts: toasts, router: router}
}

func (f *fixture) do(t *testing.T, method, path string, out interface{}) int {
	t.Helper()
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(method, path, nil))
	if out != nil && res.Code < 300 {
		if err := json.Unmarshal(res.Body.Bytes(), out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return res.Code
}

func TestNormalizeAddress(t *testing.T) {
	cases := map[string]string{
		"":                               "0.0.0.0:8080",
		"  :9090  ":                      "0.0.0.0:9090",
		"localhost":                      "localhost:8080",
		"0.0.0.0:80":                     "0.0.0.0:80",
		"[::1]:443":                      "[::1]:443",
		"::1":                            "[::1]:8080",
		"*:8080":                         "0.0.0.0:8080",
		"http://13.200.112.203:8080":     "13.200.112.203:8080",
		"http://:7070":                   "0.0.0.0:7070",
		"https://dashboard.example.com/": "dashboard.example.com:8080",
	}

	for input, want := range cases {
		if got := normalizeAddress(input); got != want {
			t.Fatalf("normalizeAddress(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNewServerDisabled(t *testing.T) {
	srv, err := NewServer(config.DashboardConfig{Enabled: false}, nil, nil, nil, quietLog())
	if err != nil || srv != nil {
		t.Fatalf("expected nil server and nil error, got %v, %v", srv, err)
	}
	if srv.Address() != "" {
		t.Fatalf("nil server must report an empty address")
	}
	if _, err := NewServer(config.DashboardConfig{Enabled: true}, nil, nil, nil, quietLog()); err == nil {
		t.Fatalf("expected error without a feed")
	}
}

func TestNewServerNormalizesConfiguredAddress(t *testing.T) {
	f := newFixture(t)
	if got := f.srv.Address(); got != "0.0.0.0:0" {
		t.Fatalf("server address = %q, want %q", got, "0.0.0.0:0")
	}
}

func TestOrderBookEndpoint(t *testing.T) {
	f := newFixture(t)
	if _, err := f.feed.Book.Reduce(models.RawDepthMessage{
		LastUpdateID: 77,
		Bids:         []models.PriceLevelText{{Price: "100.00", Quantity: "2"}, {Price: "99.00", Quantity: "1"}},
		Asks:         []models.PriceLevelText{{Price: "101.00", Quantity: "1"}},
	}); err != nil {
		t.Fatalf("reduce: %v", err)
	}

	var view orderBookView
	if code := f.do(t, http.MethodGet, "/api/orderbook", &view); code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", code)
	}
	if view.LastUpdateID != 77 || view.Symbol != "btcusdt" || len(view.Bids) != 2 || len(view.Asks) != 1 {
		t.Fatalf("unexpected view %+v", view)
	}
	if view.Bids[1].Total != 299 || view.Bids[1].DepthPercent != 100 || view.Bids[0].PriceText != "100.00" {
		t.Fatalf("unexpected bid levels %+v", view.Bids)
	}
	if view.Spread == nil || view.Spread.Value != 1 {
		t.Fatalf("unexpected spread %+v", view.Spread)
	}
}

func TestTradesEndpoint(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC).UnixMilli()
	for i := int64(1); i <= 3; i++ {
		if _, err := f.feed.Tape.Reduce(models.RawTradeMessage{
			TradeID:      i,
			Price:        "42000.5",
			Quantity:     "0.5",
			TradeTimeMs:  base,
			BuyerIsMaker: i%2 == 1,
		}); err != nil {
			t.Fatalf("apply: %v", err)
		}
	}

	var view tradesView
	if code := f.do(t, http.MethodGet, "/api/trades?limit=2", &view); code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", code)
	}
	if len(view.Trades) != 2 || view.Trades[0].ID != 3 || view.Trades[1].ID != 2 {
		t.Fatalf("unexpected trades %+v", view.Trades)
	}
	if view.Trades[0].Side != "sell" || view.Trades[1].Side != "buy" {
		t.Fatalf("unexpected sides %+v", view.Trades)
	}
	if view.Trades[0].TimeText != "15:04:05" || view.Trades[0].PriceText != "42,000.50" {
		t.Fatalf("unexpected formatting %+v", view.Trades[0])
	}

	if code := f.do(t, http.MethodGet, "/api/trades?limit=x", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for bad limit, got %d", code)
	}
}

func TestNotificationEndpoints(t *testing.T) {
	f := newFixture(t)
	f.toasts.Notify("Order book WebSocket disconnected", notify.Warning, time.Minute)

	var list struct {
		Active []struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"active"`
	}
	if code := f.do(t, http.MethodGet, "/api/notifications", &list); code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", code)
	}
	if len(list.Active) != 1 || list.Active[0].Type != "warning" {
		t.Fatalf("unexpected notifications %+v", list.Active)
	}

	path := "/api/notifications/" + list.Active[0].ID
	if code := f.do(t, http.MethodDelete, path, nil); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if code := f.do(t, http.MethodDelete, path, nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 on second dismiss, got %d", code)
	}
}

func TestStreamActionEndpoints(t *testing.T) {
	f := newFixture(t)

	if code := f.do(t, http.MethodPost, "/api/streams/klines/start", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown stream, got %d", code)
	}
	if code := f.do(t, http.MethodPost, "/api/streams/depth/restart", nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown action, got %d", code)
	}

	var st struct {
		Name  string `json:"name"`
		Phase string `json:"phase"`
	}
	if code := f.do(t, http.MethodPost, "/api/streams/depth/start", &st); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if st.Name != "depth" || st.Phase != "connecting" {
		t.Fatalf("unexpected status after start %+v", st)
	}
	if code := f.do(t, http.MethodPost, "/api/streams/depth/stop", &st); code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if st.Phase != "disconnected" || f.feed.Depth.Phase() != stream.Disconnected {
		t.Fatalf("unexpected status after stop %+v", st)
	}
}

func TestStatusEndpoint(t *testing.T) {
	f := newFixture(t)
	var view struct {
		Symbol  string `json:"symbol"`
		Streams []struct {
			Name string `json:"name"`
			URL  string `json:"url"`
		} `json:"streams"`
	}
	if code := f.do(t, http.MethodGet, "/api/status", &view); code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", code)
	}
	if view.Symbol != "btcusdt" || len(view.Streams) != 2 {
		t.Fatalf("unexpected status %+v", view)
	}
	if view.Streams[0].URL != "wss://stream.binance.com:9443/ws/btcusdt@depth20@100ms" {
		t.Fatalf("unexpected depth url %s", view.Streams[0].URL)
	}
	if view.Streams[1].URL != "wss://stream.binance.com:9443/ws/btcusdt@aggTrade" {
		t.Fatalf("unexpected trade url %s", view.Streams[1].URL)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("unexpected status code: %d", res.Code)
	}
	if !strings.Contains(res.Body.String(), "marketview_orderbook_update_id") {
		t.Fatalf("expected marketview metrics in exposition")
	}
}

func TestWebsocketPushesFrames(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	router, err := f.srv.buildRouter(ctx)
	if err != nil {
		t.Fatalf("buildRouter error: %v", err)
	}
	go f.srv.hub.run(ctx)
	go f.srv.pushLoop(ctx)

	ts := httptest.NewServer(router)
	defer ts.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	seen := map[string]bool{}
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	for !(seen["orderbook"] && seen["trades"] && seen["status"] && seen["notifications"]) {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v (seen %v)", err, seen)
		}
		var msg struct {
			Type string          `json:"type"`
			Data json.RawMessage `json:"data"`
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		seen[msg.Type] = true
	}
}
