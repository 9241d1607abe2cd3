package proxy

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"tradecore/internal/circuitbreaker"
	"tradecore/internal/gatewayauth"
	"tradecore/internal/registry"
)

const (
	wsIdleTimeout = 90 * time.Second
	wsWriteWait   = 10 * time.Second
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsConnStats tracks per-connection counters named in spec.md §4.3.
type wsConnStats struct {
	messages     atomic.Int64
	errors       atomic.Int64
	lastActivity atomic.Int64 // unix millis
}

func (s *wsConnStats) touch() {
	s.messages.Add(1)
	s.lastActivity.Store(time.Now().UnixMilli())
}

// proxyWebSocket upgrades the inbound connection, dials the upstream, and
// pumps frames bidirectionally until either side closes. Control frames
// (ping/pong/close) forward unchanged; a watchdog enforces wsIdleTimeout.
func (p *Proxy) proxyWebSocket(w http.ResponseWriter, r *http.Request, svc registry.ServiceInfo, uc gatewayauth.UserContext, requestID, service string, breaker *circuitbreaker.Breaker) {
	upstreamURL := toWSURL(svc.URL) + r.URL.Path
	if r.URL.RawQuery != "" {
		upstreamURL += "?" + r.URL.RawQuery
	}

	upstreamHeaders := http.Header{}
	injectUpstreamHeaders(upstreamHeaders, uc, requestID, service, time.Now().UTC().Format(time.RFC3339))

	upstreamConn, _, err := websocket.DefaultDialer.Dial(upstreamURL, upstreamHeaders)
	if err != nil {
		breaker.RecordFailure(time.Now())
		http.Error(w, "bad gateway", http.StatusBadGateway)
		return
	}
	defer upstreamConn.Close()

	clientConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer clientConn.Close()

	breaker.RecordSuccess()

	stats := &wsConnStats{}
	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() { closeOnce.Do(func() { close(done) }) }

	for _, pair := range [][2]*websocket.Conn{{clientConn, upstreamConn}, {upstreamConn, clientConn}} {
		src, dst := pair[0], pair[1]
		src.SetPingHandler(func(data string) error {
			return dst.WriteControl(websocket.PingMessage, []byte(data), time.Now().Add(wsWriteWait))
		})
		src.SetPongHandler(func(data string) error {
			return dst.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(wsWriteWait))
		})
		src.SetCloseHandler(func(code int, text string) error {
			return dst.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), time.Now().Add(wsWriteWait))
		})
	}

	go p.watchdog(done, stats, clientConn, upstreamConn)
	go p.pump(clientConn, upstreamConn, stats, closeDone)
	go p.pump(upstreamConn, clientConn, stats, closeDone)

	<-done
}

// pump forwards data frames from src to dst until a read or write fails;
// closing either connection ends it.
func (p *Proxy) pump(src, dst *websocket.Conn, stats *wsConnStats, closeDone func()) {
	defer closeDone()
	for {
		msgType, data, err := src.ReadMessage()
		if err != nil {
			stats.errors.Add(1)
			return
		}
		stats.touch()

		dst.SetWriteDeadline(time.Now().Add(wsWriteWait))
		if err := dst.WriteMessage(msgType, data); err != nil {
			stats.errors.Add(1)
			return
		}
	}
}

// watchdog closes the connection pair if no activity is observed within
// wsIdleTimeout, which unblocks the pumps' ReadMessage calls.
func (p *Proxy) watchdog(done chan struct{}, stats *wsConnStats, conns ...*websocket.Conn) {
	stats.touch()
	ticker := time.NewTicker(wsIdleTimeout / 3)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			last := time.UnixMilli(stats.lastActivity.Load())
			if time.Since(last) > wsIdleTimeout {
				for _, c := range conns {
					c.Close()
				}
				return
			}
		}
	}
}

func toWSURL(httpURL string) string {
	u, err := url.Parse(httpURL)
	if err != nil {
		return httpURL
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	return strings.TrimSuffix(u.String(), "/")
}
