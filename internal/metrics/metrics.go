// Registers:
//
//	#marketview_stream_messages_total
//	#marketview_stream_bytes_total
//	#marketview_decode_errors_total
//	#marketview_reconnect_attempts_total
//	#marketview_reconnect_delay_seconds
//	#marketview_connection_phase
//	#marketview_orderbook_update_id
//	#marketview_tape_trades
//	#go_* and process_* system metrics
//
// Exposed through Handler, which the dashboard mounts on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors for the feed. A nil *Metrics ignores every call.
type Metrics struct {
	registry *prometheus.Registry

	messages       *prometheus.CounterVec
	bytes          *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	reconnectDelay *prometheus.HistogramVec
	phase          *prometheus.GaugeVec
	updateID       prometheus.Gauge
	tapeTrades     prometheus.Gauge
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messages: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketview_stream_messages_total",
				Help: "Number of payloads received per stream",
			},
			[]string{"stream"},
		),
		bytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketview_stream_bytes_total",
				Help: "Payload bytes received per stream",
			},
			[]string{"stream"},
		),
		decodeErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketview_decode_errors_total",
				Help: "Payloads rejected by the decoder or reducer",
			},
			[]string{"stream"},
		),
		reconnects: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketview_reconnect_attempts_total",
				Help: "Reconnect attempts scheduled per stream",
			},
			[]string{"stream"},
		),
		reconnectDelay: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketview_reconnect_delay_seconds",
				Help:    "Backoff delay before each reconnect",
				Buckets: []float64{1, 2, 4, 8, 16, 30},
			},
			[]string{"stream"},
		),
		phase: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketview_connection_phase",
				Help: "1 for the current connection phase of a stream, 0 otherwise",
			},
			[]string{"stream", "phase"},
		),
		updateID: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketview_orderbook_update_id",
			Help: "lastUpdateId of the published order book snapshot",
		}),
		tapeTrades: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketview_tape_trades",
			Help: "Trades currently held on the tape",
		}),
	}
	m.registry.MustRegister(
		m.messages,
		m.bytes,
		m.decodeErrors,
		m.reconnects,
		m.reconnectDelay,
		m.phase,
		m.updateID,
		m.tapeTrades,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) ObserveMessage(stream string, size int) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(stream).Inc()
	m.bytes.WithLabelValues(stream).Add(float64(size))
}

func (m *Metrics) ObserveDecodeError(stream string) {
	if m == nil {
		return
	}
	m.decodeErrors.WithLabelValues(stream).Inc()
}

func (m *Metrics) ObserveReconnect(stream string, delay time.Duration) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(stream).Inc()
	m.reconnectDelay.WithLabelValues(stream).Observe(delay.Seconds())
}

// SetPhase marks current as the active phase of stream among all phases.
func (m *Metrics) SetPhase(stream, current string, all []string) {
	if m == nil {
		return
	}
	for _, p := range all {
		v := 0.0
		if p == current {
			v = 1
		}
		m.phase.WithLabelValues(stream, p).Set(v)
	}
}

func (m *Metrics) SetUpdateID(id int64) {
	if m == nil {
		return
	}
	m.updateID.Set(float64(id))
}

func (m *Metrics) SetTapeLength(n int) {
	if m == nil {
		return
	}
	m.tapeTrades.Set(float64(n))
}
