package stream

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"marketview/internal/notify"
	"marketview/logger"
)

// ErrRetryBudgetExhausted is reported by Err once the reconnect policy gave up.
var ErrRetryBudgetExhausted = errors.New("reconnect attempts exhausted")

// DefaultStartDelay defers the first connection after Launch.
const DefaultStartDelay = 100 * time.Millisecond

const (
	connectedTTL    = 3 * time.Second
	disconnectedTTL = 3 * time.Second
	reconnectTTL    = 2 * time.Second
)

// Handler consumes one inbound payload. Returning an error (or panicking)
// surfaces an error notification; the subscription stays up.
type Handler func(payload []byte) error

// Options configures a Manager.
type Options struct {
	// Name identifies the stream in logs and metrics, e.g. "depth".
	Name string
	// Label prefixes lifecycle notifications, e.g. "Order book".
	Label string
	// RetryTarget names the stream in reconnect notices, e.g. "order book".
	RetryTarget string
	// DataKind names the payload in parse failures, e.g. "trade".
	DataKind string

	URL        string
	Dialer     Dialer
	Handler    Handler
	Sink       notify.Sink
	Backoff    Backoff
	StartDelay time.Duration
	Scheduler  Scheduler

	OnPhase     func(Phase)
	OnReconnect func(attempt int, delay time.Duration)

	Log *logger.Log
}

// Status is a point-in-time view of a Manager.
type Status struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	Phase          Phase  `json:"phase"`
	Attempt        int    `json:"attempt"`
	RetryExhausted bool   `json:"retryExhausted"`
}

// Manager owns one streaming subscription: it opens the connection, feeds
// every payload to the handler in arrival order, reports lifecycle changes
// to the sink and reconnects with exponential backoff.
type Manager struct {
	opts Options
	log  *logger.Entry

	mu        sync.Mutex
	phase     Phase
	attempt   int
	exhausted bool
	pending   Timer
	conn      Conn
	dialing   bool
	cancel    context.CancelFunc
	gen       uint64
}

func NewManager(opts Options) *Manager {
	if opts.Dialer == nil {
		opts.Dialer = NewWebsocketDialer(10*time.Second, "")
	}
	if opts.Handler == nil {
		opts.Handler = func([]byte) error { return nil }
	}
	if opts.Sink == nil {
		opts.Sink = notify.Discard
	}
	if opts.Backoff == (Backoff{}) {
		opts.Backoff = DefaultBackoff()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = WallClock
	}
	if opts.Label == "" {
		opts.Label = opts.Name
	}
	if opts.RetryTarget == "" {
		opts.RetryTarget = opts.Name
	}
	if opts.DataKind == "" {
		opts.DataKind = opts.Name
	}
	if opts.Log == nil {
		opts.Log = logger.GetLogger()
	}
	return &Manager{
		opts:  opts,
		log:   opts.Log.WithComponent("stream_manager").WithField("stream", opts.Name),
		phase: Connecting,
	}
}

func (m *Manager) Name() string { return m.opts.Name }

func (m *Manager) Phase() Phase {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.phase
}

func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Status{
		Name:           m.opts.Name,
		URL:            m.opts.URL,
		Phase:          m.phase,
		Attempt:        m.attempt,
		RetryExhausted: m.exhausted,
	}
}

// Attempt is the number of retries scheduled since the last successful open.
func (m *Manager) Attempt() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempt
}

// Err returns ErrRetryBudgetExhausted once reconnecting stopped for good.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.exhausted {
		return ErrRetryBudgetExhausted
	}
	return nil
}

// Launch schedules Start after the configured start delay. Stop cancels it.
func (m *Manager) Launch() {
	m.run(func(fx *effects) {
		if m.activeLocked() || m.pending != nil {
			return
		}
		gen := m.gen
		m.pending = m.opts.Scheduler.AfterFunc(m.opts.StartDelay, func() {
			m.run(func(fx *effects) {
				if gen != m.gen {
					return
				}
				m.pending = nil
				m.attempt = 0
				m.exhausted = false
				m.connectLocked(fx)
			})
		})
	})
}

// Start opens the subscription now. It is a no-op while a connection is
// being opened or is open. Otherwise any pending retry is dropped and the
// attempt counter starts again from zero.
func (m *Manager) Start() {
	m.run(func(fx *effects) {
		if m.activeLocked() {
			return
		}
		// a timer that already fired may be waiting on mu
		m.gen++
		m.cancelPendingLocked()
		m.attempt = 0
		m.exhausted = false
		m.connectLocked(fx)
	})
}

// Stop closes the connection and cancels every pending timer. No reconnect
// happens afterwards until Start or Launch is called again.
func (m *Manager) Stop() {
	m.run(func(fx *effects) {
		m.gen++
		m.cancelPendingLocked()
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		m.dialing = false
		if c := m.conn; c != nil {
			m.conn = nil
			fx.add(func() { _ = c.Close() })
		}
		m.attempt = 0
		m.exhausted = false
		m.setPhaseLocked(fx, Disconnected)
	})
	m.log.Info("stream stopped")
}

func (m *Manager) activeLocked() bool {
	return m.dialing || m.conn != nil
}

func (m *Manager) cancelPendingLocked() {
	if m.pending != nil {
		m.pending.Stop()
		m.pending = nil
	}
}

func (m *Manager) connectLocked(fx *effects) {
	if m.activeLocked() {
		return
	}
	m.setPhaseLocked(fx, Connecting)
	m.dialing = true
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	gen := m.gen
	go m.dial(ctx, gen)
}

func (m *Manager) dial(ctx context.Context, gen uint64) {
	start := time.Now()
	conn, err := m.opts.Dialer.Dial(ctx, m.opts.URL)
	m.run(func(fx *effects) {
		if gen != m.gen {
			if conn != nil {
				fx.add(func() { _ = conn.Close() })
			}
			return
		}
		m.dialing = false
		if m.cancel != nil {
			m.cancel()
			m.cancel = nil
		}
		if err != nil {
			var openErr *OpenError
			if !errors.As(err, &openErr) {
				openErr = &OpenError{URL: m.opts.URL, Err: err}
			}
			m.log.WithError(openErr).Warn("connection failed")
			m.setPhaseLocked(fx, Error)
			fx.notify(m.opts.Sink, fmt.Sprintf("Error creating WebSocket connection: %v", openErr.Err), notify.Error, 0)
			m.closedLocked(fx)
			return
		}
		m.conn = conn
		m.attempt = 0
		m.exhausted = false
		m.setPhaseLocked(fx, Connected)
		fx.notify(m.opts.Sink, m.opts.Label+" WebSocket connected", notify.Success, connectedTTL)
		logger.LogPerformanceEntry(m.log, "stream_manager", "dial", time.Since(start), logger.Fields{"url": m.opts.URL})
		go m.readLoop(conn, gen)
	})
}

func (m *Manager) readLoop(conn Conn, gen uint64) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			m.readFailed(conn, gen, err)
			return
		}
		if !m.current(gen) {
			return
		}
		m.deliver(payload)
	}
}

func (m *Manager) current(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return gen == m.gen
}

func (m *Manager) deliver(payload []byte) {
	if err := m.handle(payload); err != nil {
		m.log.WithError(err).Warn("payload rejected")
		notify.Safe(m.opts.Sink, fmt.Sprintf("Error parsing %s data: %v", m.opts.DataKind, err), notify.Error, 0)
	}
}

func (m *Manager) handle(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return m.opts.Handler(payload)
}

func (m *Manager) readFailed(conn Conn, gen uint64, err error) {
	m.run(func(fx *effects) {
		if gen != m.gen || m.conn != conn {
			return
		}
		m.conn = nil
		fx.add(func() { _ = conn.Close() })
		if !isCleanClose(err) {
			m.log.WithError(err).Warn("connection error")
			m.setPhaseLocked(fx, Error)
			fx.notify(m.opts.Sink, m.opts.Label+" WebSocket error occurred", notify.Error, 0)
		}
		m.closedLocked(fx)
	})
}

// closedLocked handles the end of a connection attempt or session.
func (m *Manager) closedLocked(fx *effects) {
	m.setPhaseLocked(fx, Disconnected)
	fx.notify(m.opts.Sink, m.opts.Label+" WebSocket disconnected", notify.Warning, disconnectedTTL)

	if m.opts.Backoff.Exhausted(m.attempt) {
		m.exhausted = true
		m.log.WithField("attempts", m.attempt).Error(ErrRetryBudgetExhausted.Error())
		return
	}
	delay := m.opts.Backoff.NextDelay(m.attempt)
	m.attempt++
	attempt := m.attempt
	gen := m.gen
	m.log.WithFields(logger.Fields{"attempt": attempt, "delay": delay.String()}).Info("reconnect scheduled")
	if hook := m.opts.OnReconnect; hook != nil {
		fx.add(func() { hook(attempt, delay) })
	}
	m.pending = m.opts.Scheduler.AfterFunc(delay, func() {
		m.run(func(fx *effects) {
			if gen != m.gen {
				return
			}
			m.pending = nil
			msg := fmt.Sprintf("Reconnecting to %s (attempt %d)...", m.opts.RetryTarget, attempt)
			fx.notify(m.opts.Sink, msg, notify.Info, reconnectTTL)
			m.connectLocked(fx)
		})
	})
}

func (m *Manager) setPhaseLocked(fx *effects, p Phase) {
	if m.phase == p {
		return
	}
	m.phase = p
	if hook := m.opts.OnPhase; hook != nil {
		fx.add(func() { hook(p) })
	}
}

// run executes f under the lock, then performs the side effects it queued.
// Sinks and hooks therefore never run while the lock is held.
func (m *Manager) run(f func(fx *effects)) {
	var fx effects
	m.mu.Lock()
	f(&fx)
	m.mu.Unlock()
	fx.flush()
}

type effects []func()

func (fx *effects) add(f func()) {
	*fx = append(*fx, f)
}

func (fx *effects) notify(sink notify.Sink, message string, severity notify.Severity, ttl time.Duration) {
	fx.add(func() { notify.Safe(sink, message, severity, ttl) })
}

func (fx effects) flush() {
	for _, f := range fx {
		f()
	}
}
