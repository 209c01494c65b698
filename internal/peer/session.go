// Package peer is a client for an authenticated peer-to-peer messaging
// network: a websocket session that signs a challenge to log in and then
// exchanges id-correlated JSON-RPC calls with other addresses.
package peer

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/perich/ethereum-dex-prices-service/internal/apperror"
	"github.com/perich/ethereum-dex-prices-service/internal/logger"
	"github.com/perich/ethereum-dex-prices-service/internal/wsconn"
)

const (
	tracerName = "peer"
	meterName  = "peer"

	frameOK            = "ok"
	frameNotAuthorized = "not authorized"
)

// State is the session lifecycle state.
type State string

const (
	StateDisconnected              State = "disconnected"
	StateConnecting                State = "connecting"
	StateAwaitingChallengeResponse State = "awaiting_challenge_response"
	StateAuthenticated             State = "authenticated"
)

// Config holds session settings.
type Config struct {
	URL               string
	CallTimeout       time.Duration
	KeepAliveInterval time.Duration
	Reconnect         bool
	ReconnectDelay    time.Duration
	// DialBackoff is the first pause between dial attempts in ConnectWithRetry.
	DialBackoff time.Duration
}

// DefaultConfig returns the network's customary timings.
func DefaultConfig(url string) Config {
	return Config{
		URL:               url,
		CallTimeout:       6 * time.Second,
		KeepAliveInterval: 30 * time.Second,
		ReconnectDelay:    10 * time.Second,
	}
}

// HandlerFunc serves a method invoked by another peer. A non-nil result is
// sent back to the caller.
type HandlerFunc func(ctx context.Context, sender string, params json.RawMessage) (any, error)

type callResult struct {
	result json.RawMessage
	err    error
}

// pendingCall is one in-flight request. It leaves the table exactly once.
type pendingCall struct {
	done  chan callResult
	timer *time.Timer
}

type sessionMetrics struct {
	calls       metric.Int64Counter
	callErrors  metric.Int64Counter
	callLatency metric.Float64Histogram
	reconnects  metric.Int64Counter
}

// Session is an authenticated connection to the messaging network.
type Session struct {
	cfg     Config
	signer  Signer
	address string
	logger  logger.LoggerInterface
	ws      *wsconn.Client

	// connectMu serialises handshakes.
	connectMu sync.Mutex

	stateMu sync.RWMutex
	state   State
	authCh  chan error

	pendingMu sync.Mutex
	pending   map[string]*pendingCall

	handlersMu sync.RWMutex
	handlers   map[string]HandlerFunc

	// stayConnected is set once authenticated and cleared by rejection or Close.
	stayConnected atomic.Bool
	closed        atomic.Bool

	reconnectMu    sync.Mutex
	reconnectTimer *time.Timer

	tracer  trace.Tracer
	metrics *sessionMetrics
}

// New creates a disconnected session.
func New(cfg Config, signer Signer, log logger.LoggerInterface) (*Session, error) {
	def := DefaultConfig(cfg.URL)
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = def.CallTimeout
	}
	if cfg.KeepAliveInterval <= 0 {
		cfg.KeepAliveInterval = def.KeepAliveInterval
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = def.ReconnectDelay
	}

	wsCfg := wsconn.DefaultConfig(cfg.URL, "peer")
	wsCfg.PingInterval = cfg.KeepAliveInterval
	wsCfg.PongTimeout = cfg.KeepAliveInterval
	if cfg.DialBackoff > 0 {
		wsCfg.InitialBackoff = cfg.DialBackoff
	}

	ws, err := wsconn.New(wsCfg)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:      cfg,
		signer:   signer,
		address:  strings.ToLower(signer.Address().Hex()),
		logger:   log,
		ws:       ws,
		state:    StateDisconnected,
		pending:  make(map[string]*pendingCall),
		handlers: make(map[string]HandlerFunc),
		tracer:   otel.Tracer(tracerName),
	}
	if err := s.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	ws.OnMessage(s.onFrame)
	ws.OnStateChange(s.onTransportState)
	return s, nil
}

func (s *Session) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	s.metrics = &sessionMetrics{}

	s.metrics.calls, err = meter.Int64Counter(
		"peer_calls_total",
		metric.WithDescription("Total RPC calls sent to peers"),
	)
	if err != nil {
		return err
	}

	s.metrics.callErrors, err = meter.Int64Counter(
		"peer_call_errors_total",
		metric.WithDescription("RPC calls that were rejected or timed out"),
	)
	if err != nil {
		return err
	}

	s.metrics.callLatency, err = meter.Float64Histogram(
		"peer_call_latency_ms",
		metric.WithDescription("RPC round-trip latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return err
	}

	s.metrics.reconnects, err = meter.Int64Counter(
		"peer_reconnects_total",
		metric.WithDescription("Scheduled reconnect attempts"),
	)
	return err
}

// Address returns the session's lower-cased hex address.
func (s *Session) Address() string {
	return s.address
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

// IsAuthenticated reports whether calls can be made.
func (s *Session) IsAuthenticated() bool {
	return s.State() == StateAuthenticated
}

// Pending returns the number of in-flight calls.
func (s *Session) Pending() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}

// Handle registers a handler for a method other peers may invoke.
func (s *Session) Handle(method string, h HandlerFunc) {
	s.handlersMu.Lock()
	defer s.handlersMu.Unlock()
	s.handlers[method] = h
}

// Connect dials and completes the challenge handshake. It returns once the
// session is authenticated, rejected, or ctx ends. Connecting an
// authenticated session is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	return s.connect(ctx, s.ws.Connect)
}

// ConnectWithRetry is Connect with exponential backoff between failed dials.
// A rejected or failed handshake is returned without retrying.
func (s *Session) ConnectWithRetry(ctx context.Context) error {
	return s.connect(ctx, s.ws.ConnectWithRetry)
}

func (s *Session) connect(ctx context.Context, dial func(context.Context) error) error {
	if s.closed.Load() {
		return apperror.New(apperror.CodeTransportClosed, apperror.WithContext("session closed"))
	}

	s.connectMu.Lock()
	defer s.connectMu.Unlock()

	if s.IsAuthenticated() {
		return nil
	}

	authCh := make(chan error, 1)
	s.stateMu.Lock()
	s.state = StateConnecting
	s.authCh = authCh
	s.stateMu.Unlock()

	if err := dial(ctx); err != nil {
		s.clearHandshake(authCh)
		return err
	}

	select {
	case err := <-authCh:
		s.clearHandshake(authCh)
		if err != nil {
			return err
		}
		s.stayConnected.Store(true)
		s.logger.Info(ctx, "peer session authenticated", "address", s.address)
		return nil
	case <-ctx.Done():
		s.clearHandshake(authCh)
		s.ws.Disconnect()
		return apperror.New(apperror.CodeServiceTimeout,
			apperror.WithCause(ctx.Err()), apperror.WithContext("handshake"))
	}
}

func (s *Session) clearHandshake(ch chan error) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.authCh == ch {
		s.authCh = nil
	}
}

// signalHandshake reports the handshake outcome to a waiting Connect.
func (s *Session) signalHandshake(err error) {
	s.stateMu.RLock()
	ch := s.authCh
	s.stateMu.RUnlock()
	if ch == nil {
		return
	}
	select {
	case ch <- err:
	default:
	}
}

func (s *Session) setState(state State) State {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	prev := s.state
	s.state = state
	return prev
}

// Call sends method to receiver and waits for its response.
func (s *Session) Call(ctx context.Context, receiver, method string, params any) (json.RawMessage, error) {
	ctx, span := s.tracer.Start(ctx, "peer.call",
		trace.WithAttributes(
			attribute.String("method", method),
			attribute.String("receiver", receiver),
		),
	)
	defer span.End()

	attrs := metric.WithAttributes(attribute.String("method", method))
	s.metrics.calls.Add(ctx, 1, attrs)
	start := time.Now()

	result, err := s.call(ctx, receiver, method, params)

	s.metrics.callLatency.Record(ctx, float64(time.Since(start).Milliseconds()), attrs)
	if err != nil {
		s.metrics.callErrors.Add(ctx, 1, attrs)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return result, nil
}

func (s *Session) call(ctx context.Context, receiver, method string, params any) (json.RawMessage, error) {
	if !s.IsAuthenticated() {
		return nil, apperror.New(apperror.CodeNotConnected, apperror.WithContext(method))
	}

	id := uuid.NewString()
	env, err := encodeEnvelope(s.address, receiver, uuid.NewString(), Request{
		JSONRPC: jsonRPCVersion,
		Method:  method,
		Params:  params,
		ID:      id,
	})
	if err != nil {
		return nil, err
	}

	pc := &pendingCall{done: make(chan callResult, 1)}
	s.pendingMu.Lock()
	s.pending[id] = pc
	pc.timer = time.AfterFunc(s.cfg.CallTimeout, func() {
		s.settle(id, callResult{err: apperror.New(apperror.CodeCallTimeout,
			apperror.WithMessage(fmt.Sprintf("Request timed out. [%s]", id)))})
	})
	s.pendingMu.Unlock()

	if err := s.ws.SendJSON(ctx, env); err != nil {
		s.settle(id, callResult{err: apperror.New(apperror.CodeTransportClosed, apperror.WithCause(err))})
	}

	select {
	case r := <-pc.done:
		return r.result, r.err
	case <-ctx.Done():
		s.settle(id, callResult{err: ctx.Err()})
		r := <-pc.done
		return r.result, r.err
	}
}

// settle completes the call with id if it is still pending.
func (s *Session) settle(id string, r callResult) bool {
	s.pendingMu.Lock()
	pc, ok := s.pending[id]
	if ok {
		delete(s.pending, id)
	}
	s.pendingMu.Unlock()

	if !ok {
		return false
	}
	pc.timer.Stop()
	pc.done <- r
	return true
}

// rejectAll fails every in-flight call with err.
func (s *Session) rejectAll(err error) int {
	s.pendingMu.Lock()
	calls := s.pending
	s.pending = make(map[string]*pendingCall)
	s.pendingMu.Unlock()

	for _, pc := range calls {
		pc.timer.Stop()
		pc.done <- callResult{err: err}
	}
	return len(calls)
}

// Close ends the session for good and fails every in-flight call.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	s.stayConnected.Store(false)

	s.reconnectMu.Lock()
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
	s.reconnectMu.Unlock()

	err := s.ws.Close()
	s.setState(StateDisconnected)
	s.rejectAll(apperror.New(apperror.CodeTransportClosed, apperror.WithContext("session closed")))
	return err
}

func (s *Session) onTransportState(state wsconn.State, cause error) {
	switch state {
	case wsconn.StateConnecting:
		s.setState(StateConnecting)
	case wsconn.StateConnected:
		s.setState(StateAwaitingChallengeResponse)
	case wsconn.StateDisconnected, wsconn.StateClosed:
		prev := s.setState(StateDisconnected)
		closedErr := apperror.New(apperror.CodeTransportClosed, apperror.WithCause(cause))
		n := s.rejectAll(closedErr)
		// A failed dial is reported by the dial itself.
		if prev == StateAwaitingChallengeResponse {
			s.signalHandshake(closedErr)
		}

		if prev != StateDisconnected {
			s.logger.Warn(context.Background(), "peer session disconnected",
				"previous_state", prev,
				"rejected_calls", n,
				"error", cause,
			)
		}
		if state == wsconn.StateDisconnected {
			s.scheduleReconnect()
		}
	}
}

func (s *Session) scheduleReconnect() {
	if !s.cfg.Reconnect || !s.stayConnected.Load() || s.closed.Load() {
		return
	}

	s.reconnectMu.Lock()
	defer s.reconnectMu.Unlock()
	if s.reconnectTimer != nil {
		return
	}

	s.logger.Info(context.Background(), "peer session reconnecting", "delay", s.cfg.ReconnectDelay)
	s.reconnectTimer = time.AfterFunc(s.cfg.ReconnectDelay, func() {
		s.reconnectMu.Lock()
		s.reconnectTimer = nil
		s.reconnectMu.Unlock()

		if s.closed.Load() {
			return
		}
		s.metrics.reconnects.Add(context.Background(), 1)

		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
		defer cancel()
		if err := s.Connect(ctx); err != nil {
			// Transport failures re-arm through onTransportState.
			s.logger.Warn(ctx, "peer reconnect failed", "error", err)
		}
	})
}

func (s *Session) onFrame(ctx context.Context, frame []byte) {
	if s.State() != StateAuthenticated {
		s.handshake(ctx, string(frame))
		return
	}

	env, msg, err := decodeEnvelope(frame)
	if err != nil {
		s.logger.Warn(ctx, "dropping unreadable peer frame", "error", err)
		return
	}

	if msg.Method != "" {
		go s.serve(env, msg)
		return
	}

	id := msg.callID()
	if id == "" {
		return
	}
	if msg.Error != nil {
		s.settle(id, callResult{err: msg.Error})
		return
	}
	s.settle(id, callResult{result: msg.Result})
}

func (s *Session) handshake(ctx context.Context, frame string) {
	switch frame {
	case frameOK:
		s.setState(StateAuthenticated)
		s.signalHandshake(nil)
	case frameNotAuthorized:
		s.stayConnected.Store(false)
		s.signalHandshake(apperror.New(apperror.CodeAuthRejected, apperror.WithContext(s.address)))
		s.ws.Disconnect()
	default:
		s.setState(StateAwaitingChallengeResponse)
		sig, err := s.signer.SignChallenge(frame)
		if err != nil {
			s.signalHandshake(apperror.New(apperror.CodeSigningFailed, apperror.WithCause(err)))
			s.ws.Disconnect()
			return
		}
		if err := s.ws.Send(ctx, []byte(sig)); err != nil {
			s.logger.Warn(ctx, "failed to answer challenge", "error", err)
		}
	}
}

// serve runs a handler for a peer-initiated call and replies with its result.
func (s *Session) serve(env *Envelope, msg *message) {
	s.handlersMu.RLock()
	h, ok := s.handlers[msg.Method]
	s.handlersMu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.CallTimeout)
	defer cancel()

	if !ok {
		s.logger.Debug(ctx, "no handler for peer method", "method", msg.Method, "sender", env.Sender)
		return
	}

	result, err := h(ctx, env.Sender, msg.Params)
	resp := Response{JSONRPC: jsonRPCVersion, ID: msg.ID}
	switch {
	case err != nil:
		resp.Error = &RPCError{Code: -32603, Message: err.Error()}
	case result != nil:
		resp.Result = result
	default:
		return
	}

	out, err := encodeEnvelope(s.address, env.Sender, uuid.NewString(), resp)
	if err != nil {
		s.logger.Error(ctx, "failed to encode peer response", "method", msg.Method, "error", err)
		return
	}
	if err := s.ws.SendJSON(ctx, out); err != nil {
		s.logger.Warn(ctx, "failed to send peer response", "method", msg.Method, "error", err)
	}
}
