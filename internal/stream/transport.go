package stream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// Conn is one open transport connection. ReadMessage blocks until the next
// frame arrives or the connection fails; Close unblocks it.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// Dialer opens transport connections.
type Dialer interface {
	Dial(ctx context.Context, url string) (Conn, error)
}

// OpenError is a failure to establish the transport connection.
type OpenError struct {
	URL string
	Err error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("open %s: %v", e.URL, e.Err)
}

func (e *OpenError) Unwrap() error {
	return e.Err
}

// WebsocketDialer dials with gorilla/websocket.
type WebsocketDialer struct {
	dialer *websocket.Dialer
	header http.Header
}

// NewWebsocketDialer builds a dialer with the given handshake timeout. When
// localIP is set, outbound connections are bound to it.
func NewWebsocketDialer(handshakeTimeout time.Duration, localIP string) *WebsocketDialer {
	d := &websocket.Dialer{
		Proxy:             http.ProxyFromEnvironment,
		HandshakeTimeout:  handshakeTimeout,
		EnableCompression: true,
	}
	if ip := net.ParseIP(localIP); ip != nil {
		nd := &net.Dialer{LocalAddr: &net.TCPAddr{IP: ip}}
		d.NetDialContext = nd.DialContext
	}
	return &WebsocketDialer{dialer: d, header: http.Header{"User-Agent": []string{"marketview"}}}
}

func (d *WebsocketDialer) Dial(ctx context.Context, url string) (Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, url, d.header)
	if err != nil {
		if resp != nil {
			resp.Body.Close()
			err = fmt.Errorf("%w (http status %d)", err, resp.StatusCode)
		}
		return nil, &OpenError{URL: url, Err: err}
	}
	return &wsConn{Conn: conn}, nil
}

type wsConn struct {
	*websocket.Conn
}

// Close sends a normal-closure frame before tearing the socket down.
func (c *wsConn) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.Conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
	return c.Conn.Close()
}

// isCleanClose reports whether err is the peer closing the connection normally.
func isCleanClose(err error) bool {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		return true
	}
	return errors.Is(err, net.ErrClosed)
}
