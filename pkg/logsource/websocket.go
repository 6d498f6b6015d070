package logsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/ava-labs/competition-indexer/internal/types"
)

const (
	methodLogsSubscribe    = "logsSubscribe"
	methodLogsUnsubscribe  = "logsUnsubscribe"
	methodLogsNotification = "logsNotification"

	writeTimeout = 10 * time.Second
)

// WebSocketConfig configures the push source.
type WebSocketConfig struct {
	URL        string
	Address    string // program whose mentions are streamed
	Commitment string

	PingInterval time.Duration
	MinBackoff   time.Duration
	MaxBackoff   time.Duration
}

func DefaultWebSocketConfig() WebSocketConfig {
	return WebSocketConfig{
		Commitment:   "confirmed",
		PingInterval: 30 * time.Second,
		MinBackoff:   500 * time.Millisecond,
		MaxBackoff:   30 * time.Second,
	}
}

// WebSocket is the push LogSource. It streams logsNotification messages and
// reconnects with capped exponential backoff when the connection drops.
type WebSocket struct {
	log    *zap.SugaredLogger
	cfg    WebSocketConfig
	opts   options
	dialer *websocket.Dialer
	lc     lifecycle

	// connMu guards the live connection and its subscription id so
	// Unsubscribe can send logsUnsubscribe on it.
	connMu  sync.Mutex
	conn    *websocket.Conn
	subID   *uint64
	writeMu sync.Mutex
}

var _ LogSource = (*WebSocket)(nil)

func NewWebSocket(log *zap.SugaredLogger, cfg WebSocketConfig, opts ...Option) (*WebSocket, error) {
	if log == nil {
		return nil, ErrInvalidLogger
	}
	if cfg.URL == "" {
		return nil, errors.New("invalid url: must not be empty")
	}
	if cfg.Address == "" {
		return nil, errors.New("invalid address: must not be empty")
	}
	def := DefaultWebSocketConfig()
	if cfg.Commitment == "" {
		cfg.Commitment = def.Commitment
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = def.PingInterval
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = def.MinBackoff
	}
	if cfg.MaxBackoff < cfg.MinBackoff {
		cfg.MaxBackoff = max(def.MaxBackoff, cfg.MinBackoff)
	}
	return &WebSocket{
		log:  log,
		cfg:  cfg,
		opts: buildOptions(opts),
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 10 * time.Second,
		},
	}, nil
}

func (s *WebSocket) Mode() Mode { return ModePush }

func (s *WebSocket) IsSubscribed() bool { return s.lc.running() }

func (s *WebSocket) Subscribe(ctx context.Context, onBatch BatchHandler) error {
	if onBatch == nil {
		return errors.New("invalid batch handler: must not be nil")
	}
	s.lc.start(ctx, func(ctx context.Context) {
		s.run(ctx, onBatch)
	})
	return nil
}

func (s *WebSocket) Unsubscribe() bool {
	s.sendUnsubscribe()
	return s.lc.stop()
}

func (s *WebSocket) run(ctx context.Context, onBatch BatchHandler) {
	defer s.opts.metrics.SetSourceConnected(string(ModePush), false)

	backoff := s.cfg.MinBackoff
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			s.opts.metrics.RecordSourceReconnect(string(ModePush))
		}
		err := s.session(ctx, onBatch, func() { backoff = s.cfg.MinBackoff })
		if ctx.Err() != nil {
			return
		}
		s.log.Warnw("log stream disconnected", "url", s.cfg.URL, "attempt", attempt, "retryIn", backoff, "error", err)
		s.opts.report(err)

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, s.cfg.MaxBackoff)
	}
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type logsNotification struct {
	Subscription uint64 `json:"subscription"`
	Result       struct {
		Context struct {
			Slot uint64 `json:"slot"`
		} `json:"context"`
		Value struct {
			Signature string   `json:"signature"`
			Err       any      `json:"err"`
			Logs      []string `json:"logs"`
		} `json:"value"`
	} `json:"result"`
}

type wsMessage struct {
	ID     *uint64           `json:"id"`
	Result json.RawMessage   `json:"result"`
	Error  *rpcError         `json:"error"`
	Method string            `json:"method"`
	Params *logsNotification `json:"params"`
}

// session runs one connection until it fails or ctx is done. subscribed is
// called once the feed is confirmed.
func (s *WebSocket) session(ctx context.Context, onBatch BatchHandler, subscribed func()) error {
	conn, _, err := s.dialer.DialContext(ctx, s.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("dial %s: %w", s.cfg.URL, err)
	}
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer func() {
		stop()
		s.setConn(nil, nil)
		conn.Close()
		s.opts.metrics.SetSourceConnected(string(ModePush), false)
	}()

	readTimeout := 2 * s.cfg.PingInterval
	conn.SetReadDeadline(time.Now().Add(readTimeout)) //nolint:errcheck // deadline errors surface on read
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readTimeout))
	})

	s.setConn(conn, nil)
	const subscribeID = 1
	err = s.writeJSON(conn, rpcRequest{
		JSONRPC: "2.0",
		ID:      subscribeID,
		Method:  methodLogsSubscribe,
		Params: []any{
			map[string]any{"mentions": []string{s.cfg.Address}},
			map[string]any{"commitment": s.cfg.Commitment},
		},
	})
	if err != nil {
		return fmt.Errorf("send %s: %w", methodLogsSubscribe, err)
	}

	pingDone := make(chan struct{})
	defer close(pingDone)
	go s.ping(conn, pingDone)

	for {
		var msg wsMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return fmt.Errorf("read: %w", err)
		}
		conn.SetReadDeadline(time.Now().Add(readTimeout)) //nolint:errcheck // deadline errors surface on read

		switch {
		case msg.ID != nil && *msg.ID == subscribeID:
			if msg.Error != nil {
				return fmt.Errorf("%s: %w", methodLogsSubscribe, msg.Error)
			}
			var id uint64
			if err := json.Unmarshal(msg.Result, &id); err != nil {
				return fmt.Errorf("%s: decode subscription id: %w", methodLogsSubscribe, err)
			}
			s.setConn(conn, &id)
			subscribed()
			s.opts.metrics.SetSourceConnected(string(ModePush), true)
			s.log.Infow("subscribed to program logs", "url", s.cfg.URL, "address", s.cfg.Address, "subscription", id)
		case msg.Method == methodLogsNotification && msg.Params != nil:
			v := msg.Params.Result.Value
			if v.Err != nil || v.Signature == "" {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			onBatch(types.TxBatch{
				Signature: v.Signature,
				Slot:      msg.Params.Result.Context.Slot,
				Logs:      v.Logs,
			})
		}
	}
}

func (s *WebSocket) ping(conn *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(s.cfg.PingInterval)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout)); err != nil {
				s.log.Debugw("ping failed", "error", err)
				return
			}
		}
	}
}

func (s *WebSocket) setConn(conn *websocket.Conn, subID *uint64) {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	s.conn, s.subID = conn, subID
}

func (s *WebSocket) writeJSON(conn *websocket.Conn, v any) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeTimeout)) //nolint:errcheck // deadline errors surface on write
	return conn.WriteJSON(v)
}

// sendUnsubscribe is best-effort: the connection is closed right after.
func (s *WebSocket) sendUnsubscribe() {
	s.connMu.Lock()
	conn, subID := s.conn, s.subID
	s.connMu.Unlock()
	if conn == nil || subID == nil {
		return
	}
	err := s.writeJSON(conn, rpcRequest{
		JSONRPC: "2.0",
		ID:      2,
		Method:  methodLogsUnsubscribe,
		Params:  []any{*subID},
	})
	if err != nil {
		s.log.Debugw("failed to send unsubscribe", "error", err)
	}
}
