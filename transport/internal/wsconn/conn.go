// Package wsconn provides the WebSocket connection used by discrete-message
// transports. It covers dial, framed writes, the read loop, heartbeat and
// graceful close, leaving message encoding to the caller.
package wsconn

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	mserrors "github.com/AltairaLabs/mediasession/errors"
)

// Default connection constants.
const (
	DefaultDialTimeout      = 10 * time.Second
	DefaultWriteWait        = 10 * time.Second
	DefaultMaxMessageSize   = 16 * 1024 * 1024 // 16MB
	DefaultCloseGracePeriod = 5 * time.Second
)

const component = "wsconn"

var (
	// ErrNotConnected is returned by writes before Connect or after Close.
	ErrNotConnected = errors.New("websocket is not connected")
	// ErrClosed is returned by Connect after Close.
	ErrClosed = errors.New("connection is closed")
)

// Config configures the WebSocket connection behavior.
type Config struct {
	// URL is the WebSocket endpoint URL.
	URL string

	// Headers are sent during the WebSocket handshake.
	Headers http.Header

	// DialTimeout is the handshake timeout. Defaults to DefaultDialTimeout.
	DialTimeout time.Duration

	// WriteWait is the write deadline for each message. Defaults to DefaultWriteWait.
	WriteWait time.Duration

	// MaxMessageSize is the read limit. Defaults to DefaultMaxMessageSize.
	MaxMessageSize int64

	// CloseGracePeriod is the deadline for writing the close frame.
	// Defaults to DefaultCloseGracePeriod.
	CloseGracePeriod time.Duration

	// Logger receives debug/warn/error log messages. Optional.
	Logger Logger
}

// Logger is an optional interface for structured logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(_ string, _ ...any) {}
func (noopLogger) Info(_ string, _ ...any)  {}
func (noopLogger) Warn(_ string, _ ...any)  {}
func (noopLogger) Error(_ string, _ ...any) {}

func (c *Config) defaults() {
	if c.DialTimeout == 0 {
		c.DialTimeout = DefaultDialTimeout
	}
	if c.WriteWait == 0 {
		c.WriteWait = DefaultWriteWait
	}
	if c.MaxMessageSize == 0 {
		c.MaxMessageSize = DefaultMaxMessageSize
	}
	if c.CloseGracePeriod == 0 {
		c.CloseGracePeriod = DefaultCloseGracePeriod
	}
	if c.Logger == nil {
		c.Logger = noopLogger{}
	}
}

// CloseInfo describes how the peer closed the connection.
type CloseInfo struct {
	Code   int
	Reason string
}

// Conn is a single-use WebSocket connection. Once closed it cannot be reopened.
type Conn struct {
	cfg Config

	conn       *websocket.Conn
	mu         sync.Mutex
	writeMu    sync.Mutex // gorilla/websocket allows one concurrent writer
	closed     bool
	closeCh    chan struct{}
	dialCancel context.CancelFunc
	pending    net.Conn // raw socket of an in-flight handshake
}

// New creates a Conn. Call Connect to establish the connection.
func New(cfg Config) *Conn {
	cfg.defaults()
	return &Conn{
		cfg:     cfg,
		closeCh: make(chan struct{}),
	}
}

// Connect dials the endpoint. A failed handshake returns a KindHandshakeFailed
// error carrying the HTTP status when the server answered. Close aborts an
// in-flight dial.
func (c *Conn) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	dialCtx, cancel := context.WithTimeout(ctx, c.cfg.DialTimeout)
	c.dialCancel = cancel
	c.mu.Unlock()
	defer cancel()

	dialer := websocket.Dialer{
		HandshakeTimeout: c.cfg.DialTimeout,
		TLSClientConfig:  &tls.Config{MinVersion: tls.VersionTLS12},
		NetDialContext:   c.netDial,
	}

	c.cfg.Logger.Debug("connecting to WebSocket", "url", c.cfg.URL)

	conn, resp, err := dialer.DialContext(dialCtx, c.cfg.URL, c.cfg.Headers)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		herr := mserrors.New(mserrors.KindHandshakeFailed, component, "Connect", err)
		if resp != nil {
			herr = herr.WithStatusCode(resp.StatusCode)
			c.cfg.Logger.Error("WebSocket dial failed", "error", err, "status", resp.StatusCode)
		} else {
			c.cfg.Logger.Error("WebSocket dial failed", "error", err)
		}
		return herr
	}

	conn.SetReadLimit(c.cfg.MaxMessageSize)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pending = nil
	if c.closed {
		_ = conn.Close()
		return ErrClosed
	}
	c.conn = conn
	c.cfg.Logger.Info("WebSocket connected")
	return nil
}

// netDial records the raw socket so Close can abort a stalled handshake.
func (c *Conn) netDial(ctx context.Context, network, addr string) (net.Conn, error) {
	var d net.Dialer
	nc, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		_ = nc.Close()
		return nil, ErrClosed
	}
	c.pending = nc
	return nc, nil
}

// Send JSON-encodes msg and writes it as a text frame.
func (c *Conn) Send(msg any) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return c.SendRaw(data)
}

// SendRaw writes pre-encoded data as a text frame.
func (c *Conn) SendRaw(data []byte) error {
	conn := c.current()
	if conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// ReadMessage blocks until one text or binary message arrives or the
// connection fails. It is intended for handshakes before ReadLoop starts.
func (c *Conn) ReadMessage(ctx context.Context) ([]byte, error) {
	conn := c.current()
	if conn == nil {
		return nil, ErrNotConnected
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetReadDeadline(deadline)
		defer func() { _ = conn.SetReadDeadline(time.Time{}) }()
	}
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, err
		}
		if mt == websocket.TextMessage || mt == websocket.BinaryMessage {
			return data, nil
		}
	}
}

// ReadLoop delivers every inbound message to handle until the connection ends.
// It returns nil with the peer's close info on a normal close or after Close,
// and the read error otherwise.
func (c *Conn) ReadLoop(handle func([]byte)) (*CloseInfo, error) {
	conn := c.current()
	if conn == nil {
		return nil, ErrNotConnected
	}
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			var ce *websocket.CloseError
			if errors.As(err, &ce) {
				info := &CloseInfo{Code: ce.Code, Reason: ce.Text}
				if ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway {
					return info, nil
				}
				return info, err
			}
			if c.IsClosed() {
				return &CloseInfo{Code: websocket.CloseNormalClosure}, nil
			}
			return nil, err
		}
		if mt != websocket.TextMessage && mt != websocket.BinaryMessage {
			continue
		}
		handle(data)
	}
}

// StartHeartbeat sends ping frames at interval until the context ends or the
// connection closes.
func (c *Conn) StartHeartbeat(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	go c.heartbeatLoop(ctx, interval)
}

func (c *Conn) heartbeatLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.closeCh:
			return
		case <-ticker.C:
			if !c.sendPing() {
				return
			}
		}
	}
}

func (c *Conn) sendPing() bool {
	conn := c.current()
	if conn == nil {
		return false
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait)); err != nil {
		c.cfg.Logger.Warn("failed to set write deadline for ping", "error", err)
		return true
	}
	if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
		c.cfg.Logger.Warn("ping failed", "error", err)
		return false
	}
	return true
}

// Close sends a close frame and releases the socket. It aborts an in-flight
// dial, is safe before Connect, and is idempotent.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.closeCh)
	if c.dialCancel != nil {
		c.dialCancel()
	}
	if c.pending != nil {
		_ = c.pending.Close()
		c.pending = nil
	}
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		return nil
	}

	c.writeMu.Lock()
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = conn.SetWriteDeadline(time.Now().Add(c.cfg.CloseGracePeriod))
	_ = conn.WriteMessage(websocket.CloseMessage, closeMsg)
	c.writeMu.Unlock()

	return conn.Close()
}

// Done is closed when Close is called.
func (c *Conn) Done() <-chan struct{} {
	return c.closeCh
}

// IsClosed reports whether Close has been called.
func (c *Conn) IsClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// IsConnected reports whether the connection is established and not closed.
func (c *Conn) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn != nil && !c.closed
}

func (c *Conn) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	return c.conn
}
