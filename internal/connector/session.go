package connector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradecore/pkg/model"
)

// Session manages one exchange's WebSocket connection lifecycle:
// subscribe, frame loop, heartbeat, and exponential-backoff reconnect,
// split into Run/connectAndRead/heartbeatLoop across the three sealed
// exchanges.
type Session struct {
	cfg    Config
	logger *slog.Logger

	connMu sync.Mutex
	conn   *websocket.Conn

	events chan Event

	errorCount   atomic.Int64
	lastActivity atomic.Int64 // unix millis
}

// NewSession builds a Session for cfg.Exchange. eventBuffer sizes the
// output channel.
func NewSession(cfg Config, eventBuffer int, logger *slog.Logger) *Session {
	return &Session{
		cfg:    cfg,
		logger: logger.With("component", "connector", "exchange", string(cfg.Exchange)),
		events: make(chan Event, eventBuffer),
	}
}

// Events returns the read-only normalized event stream.
func (s *Session) Events() <-chan Event { return s.events }

// ErrorCount returns the number of frames dropped to parse failures so far.
func (s *Session) ErrorCount() int64 { return s.errorCount.Load() }

// Run connects and maintains the connection with exponential backoff,
// per spec.md §4.4. Blocks until ctx is cancelled.
func (s *Session) Run(ctx context.Context) error {
	attempt := 0
	for {
		err := s.connectAndRead(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		s.emitStatus(model.ConnStateDisconnected)
		if s.cfg.MaxReconnectAttempts > 0 && attempt >= s.cfg.MaxReconnectAttempts {
			return fmt.Errorf("connector: exceeded max reconnect attempts (%d): %w", s.cfg.MaxReconnectAttempts, err)
		}

		backoff := NextBackoff(s.cfg, attempt)
		s.logger.Warn("websocket disconnected, reconnecting", "error", err, "backoff", backoff, "attempt", attempt)
		attempt++

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
}

// Close closes the active connection, if any, unblocking Run's read loop.
func (s *Session) Close() error {
	s.connMu.Lock()
	defer s.connMu.Unlock()
	if s.conn != nil {
		return s.conn.Close()
	}
	return nil
}

func (s *Session) connectAndRead(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, s.cfg.WSURL, nil)
	if err != nil {
		s.emitStatus(model.ConnStateError)
		return fmt.Errorf("dial: %w", err)
	}

	s.connMu.Lock()
	s.conn = conn
	s.connMu.Unlock()
	defer func() {
		s.connMu.Lock()
		conn.Close()
		s.conn = nil
		s.connMu.Unlock()
	}()

	if err := s.subscribe(conn); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}

	s.emitStatus(model.ConnStateConnected)
	s.logger.Info("connector connected", "streams", len(GenerateStreams(s.cfg)))
	s.touch()

	heartbeatCtx, heartbeatCancel := context.WithCancel(ctx)
	defer heartbeatCancel()
	go s.heartbeatLoop(heartbeatCtx, conn)

	deadline := s.cfg.PingInterval + s.cfg.PongTimeout
	conn.SetPongHandler(func(string) error {
		s.touch()
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		conn.SetReadDeadline(time.Now().Add(deadline))

		msgType, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		s.touch()

		switch msgType {
		case websocket.PingMessage:
			if err := conn.WriteControl(websocket.PongMessage, data, time.Now().Add(5*time.Second)); err != nil {
				return fmt.Errorf("pong: %w", err)
			}
		case websocket.CloseMessage:
			return fmt.Errorf("server closed connection")
		case websocket.TextMessage, websocket.BinaryMessage:
			s.dispatch(data)
		}
	}
}

// dispatch parses one frame. Every wire format carries its own symbol
// field, so the parser resolves Symbol from the payload itself rather than
// the session guessing across its configured set. A parse failure never
// propagates — spec.md §4.4: "Parse failures increment an error counter and
// are dropped (never crash the connector)."
func (s *Session) dispatch(data []byte) {
	event, err := ParseFrame(s.cfg.Exchange, data)
	if err != nil {
		s.errorCount.Add(1)
		return
	}
	select {
	case s.events <- event:
	default:
		s.logger.Warn("event channel full, dropping frame")
	}
}

func (s *Session) subscribe(conn *websocket.Conn) error {
	streams := GenerateStreams(s.cfg)
	msg := map[string]interface{}{
		"method": "SUBSCRIBE",
		"params": streams,
		"id":     time.Now().UnixNano(),
	}
	conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
	return conn.WriteJSON(msg)
}

func (s *Session) heartbeatLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(s.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.connMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
			s.connMu.Unlock()
			if err != nil {
				s.logger.Warn("ping failed", "error", err)
				return
			}

			last := time.UnixMilli(s.lastActivity.Load())
			if time.Since(last) > s.cfg.PingInterval+s.cfg.PongTimeout {
				s.logger.Warn("no activity within ping_interval+pong_timeout, cycling connection")
				conn.Close()
				return
			}
		}
	}
}

func (s *Session) touch() {
	s.lastActivity.Store(time.Now().UnixMilli())
}

func (s *Session) emitStatus(state model.ConnectionState) {
	event := Event{Kind: EventConnectionStatus, ConnectionStatus: &model.ConnectionStatus{
		Exchange: s.cfg.Exchange, State: state, Timestamp: time.Now().UTC(),
	}}
	select {
	case s.events <- event:
	default:
	}
}
