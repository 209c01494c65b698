// Package wsconn provides a WebSocket client with keepalive and dial retry.
package wsconn

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/coder/websocket"
	json "github.com/goccy/go-json"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
)

const meterName = "wsconn"

// State represents the connection state.
type State string

const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateClosed       State = "closed"
)

// Config holds WebSocket client configuration.
type Config struct {
	URL  string
	Name string

	// PingInterval is the keepalive period. Zero disables pings.
	PingInterval time.Duration
	// PongTimeout bounds the wait for a pong. Defaults to PingInterval.
	PongTimeout time.Duration
	// ReadTimeout bounds the wait for each inbound frame. Zero waits forever.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	MaxMessageSize int64

	// Dial retry for ConnectWithRetry.
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	MaxRetries     uint // 0 = until ctx ends
}

// DefaultConfig returns sensible defaults.
func DefaultConfig(rawURL, name string) Config {
	return Config{
		URL:            rawURL,
		Name:           name,
		PingInterval:   30 * time.Second,
		WriteTimeout:   10 * time.Second,
		MaxMessageSize: 1 << 20,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     30 * time.Second,
	}
}

// MessageHandler receives every inbound data frame.
type MessageHandler func(ctx context.Context, msg []byte)

// StateHandler observes state transitions. err is set when a transition was caused by a failure.
type StateHandler func(state State, err error)

type clientMetrics struct {
	messagesIn  metric.Int64Counter
	messagesOut metric.Int64Counter
	disconnects metric.Int64Counter
}

// session is one dialed connection. A Client may dial many over its life.
type session struct {
	conn   *websocket.Conn
	ctx    context.Context
	cancel context.CancelFunc
}

// Client is a WebSocket client safe for concurrent use.
type Client struct {
	config Config

	mu      sync.Mutex
	current *session

	state   atomic.Value // State
	closed  atomic.Bool
	onMsg   atomic.Pointer[MessageHandler]
	onState atomic.Pointer[StateHandler]

	metrics *clientMetrics
	attrs   metric.MeasurementOption
}

// New creates a new WebSocket client.
func New(cfg Config) (*Client, error) {
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err), apperror.WithContext("invalid websocket url"))
	}
	if u.Scheme != "ws" && u.Scheme != "wss" {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithContext(fmt.Sprintf("unsupported websocket scheme %q", u.Scheme)))
	}
	if cfg.PongTimeout == 0 {
		cfg.PongTimeout = cfg.PingInterval
	}
	if cfg.Name == "" {
		cfg.Name = u.Host
	}

	c := &Client{
		config: cfg,
		attrs:  metric.WithAttributes(attribute.String("conn", cfg.Name)),
	}
	c.state.Store(StateDisconnected)

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.messagesIn, err = meter.Int64Counter(
		"ws_messages_received_total",
		metric.WithDescription("Inbound websocket frames"),
	)
	if err != nil {
		return err
	}

	c.metrics.messagesOut, err = meter.Int64Counter(
		"ws_messages_sent_total",
		metric.WithDescription("Outbound websocket frames"),
	)
	if err != nil {
		return err
	}

	c.metrics.disconnects, err = meter.Int64Counter(
		"ws_disconnects_total",
		metric.WithDescription("Unexpected websocket disconnects"),
	)
	return err
}

// OnMessage registers the inbound frame handler. It runs on the read goroutine.
func (c *Client) OnMessage(h MessageHandler) {
	c.onMsg.Store(&h)
}

// OnStateChange registers the state observer.
func (c *Client) OnStateChange(h StateHandler) {
	c.onState.Store(&h)
}

// State returns the current connection state.
func (c *Client) State() State {
	return c.state.Load().(State)
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Connect dials once.
func (c *Client) Connect(ctx context.Context) error {
	if c.closed.Load() {
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}

	c.mu.Lock()
	if c.current != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	c.setState(StateConnecting, nil)

	conn, _, err := websocket.Dial(ctx, c.config.URL, nil)
	if err != nil {
		wrapped := apperror.New(apperror.CodeWebSocketConnectionError,
			apperror.WithCause(err), apperror.WithContext(c.config.Name))
		c.setState(StateDisconnected, wrapped)
		return wrapped
	}
	if c.config.MaxMessageSize > 0 {
		conn.SetReadLimit(c.config.MaxMessageSize)
	}

	sctx, cancel := context.WithCancel(context.Background())
	s := &session{conn: conn, ctx: sctx, cancel: cancel}

	c.mu.Lock()
	if c.closed.Load() {
		c.mu.Unlock()
		cancel()
		conn.Close(websocket.StatusNormalClosure, "")
		return apperror.New(apperror.CodeWebSocketClosed, apperror.WithContext(c.config.Name))
	}
	c.current = s
	c.mu.Unlock()

	c.setState(StateConnected, nil)

	go c.readLoop(s)
	if c.config.PingInterval > 0 {
		go c.pingLoop(s)
	}
	return nil
}

// ConnectWithRetry dials with exponential backoff until success, ctx end, or MaxRetries.
func (c *Client) ConnectWithRetry(ctx context.Context) error {
	b := backoff.NewExponentialBackOff()
	if c.config.InitialBackoff > 0 {
		b.InitialInterval = c.config.InitialBackoff
	}
	if c.config.MaxBackoff > 0 {
		b.MaxInterval = c.config.MaxBackoff
	}

	opts := []backoff.RetryOption{backoff.WithBackOff(b)}
	if c.config.MaxRetries > 0 {
		opts = append(opts, backoff.WithMaxTries(c.config.MaxRetries))
	}

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		err := c.Connect(ctx)
		if apperror.HasCode(err, apperror.CodeWebSocketClosed) {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	}, opts...)
	return err
}

// Send writes a text frame.
func (c *Client) Send(ctx context.Context, msg []byte) error {
	s := c.active()
	if s == nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithContext(c.config.Name+": not connected"))
	}

	if c.config.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.WriteTimeout)
		defer cancel()
	}

	if err := s.conn.Write(ctx, websocket.MessageText, msg); err != nil {
		return apperror.New(apperror.CodeWebSocketSendError,
			apperror.WithCause(err), apperror.WithContext(c.config.Name))
	}
	c.metrics.messagesOut.Add(ctx, 1, c.attrs)
	return nil
}

// SendJSON encodes v and writes it as a text frame.
func (c *Client) SendJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("wsconn: marshal: %w", err)
	}
	return c.Send(ctx, data)
}

// Close closes the connection for good. It is idempotent.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}

	c.mu.Lock()
	s := c.current
	c.current = nil
	c.mu.Unlock()

	if s != nil {
		// The peer may already be gone; a failed close handshake is not an error here.
		_ = s.conn.Close(websocket.StatusNormalClosure, "")
		s.cancel()
	}

	c.setState(StateClosed, nil)
	return nil
}

// Disconnect drops the current connection but leaves the client usable for
// another Connect. Observers see StateDisconnected with a nil error.
func (c *Client) Disconnect() {
	if s := c.active(); s != nil {
		c.drop(s, context.Canceled)
	}
}

func (c *Client) active() *session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *Client) readLoop(s *session) {
	for {
		ctx := s.ctx
		var cancel context.CancelFunc = func() {}
		if c.config.ReadTimeout > 0 {
			ctx, cancel = context.WithTimeout(s.ctx, c.config.ReadTimeout)
		}

		_, data, err := s.conn.Read(ctx)
		cancel()
		if err != nil {
			c.drop(s, err)
			return
		}

		c.metrics.messagesIn.Add(s.ctx, 1, c.attrs)
		if h := c.onMsg.Load(); h != nil {
			(*h)(s.ctx, data)
		}
	}
}

func (c *Client) pingLoop(s *session) {
	ticker := time.NewTicker(c.config.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(s.ctx, c.config.PongTimeout)
			err := s.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.drop(s, fmt.Errorf("keepalive: %w", err))
				return
			}
		}
	}
}

// drop tears down s if it is still current and reports the disconnect.
func (c *Client) drop(s *session, cause error) {
	c.mu.Lock()
	if c.current != s {
		c.mu.Unlock()
		return
	}
	c.current = nil
	c.mu.Unlock()

	s.cancel()
	_ = s.conn.CloseNow()

	if c.closed.Load() {
		return
	}

	c.metrics.disconnects.Add(context.Background(), 1, c.attrs)

	var err error = apperror.New(apperror.CodeWebSocketClosed,
		apperror.WithCause(cause), apperror.WithContext(c.config.Name))
	if errors.Is(cause, context.Canceled) {
		err = nil
	}
	c.setState(StateDisconnected, err)
}

func (c *Client) setState(state State, err error) {
	c.state.Store(state)
	if h := c.onState.Load(); h != nil {
		(*h)(state, err)
	}
}
