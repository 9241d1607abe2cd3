// Package ingest implements the Ingestion Manager: it owns a set of
// exchange connector sessions, runs continuity detection over their K-line
// output, and dispatches every normalized event onto the event bus. Per
// spec.md §4.4/§4.5's split, the connector's own reader/heartbeat tasks
// never block on a slow downstream — this package absorbs that pressure
// with one bounded queue per event-bus topic that drops the oldest queued
// event (and counts the drop) rather than ever blocking the exchange reader
// goroutine. A topic's queue is shared by every session, so the dropped
// event may come from a different exchange than the one being pushed.
package ingest

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"tradecore/internal/connector"
	"tradecore/internal/continuity"
	"tradecore/internal/eventbus"
	"tradecore/pkg/model"
)

// Config tunes the manager.
type Config struct {
	// QueueSize bounds each per-topic drop-oldest queue between the
	// connectors' event channels and the event bus publisher.
	QueueSize int
}

// DefaultConfig bounds each topic queue at 256 events.
func DefaultConfig() Config {
	return Config{QueueSize: 256}
}

// Manager runs one connector Session per configured exchange and fans their
// normalized events out to the event bus, tagging K-line data quality via a
// shared continuity Detector.
type Manager struct {
	cfg      Config
	bus      *eventbus.Bus
	detector *continuity.Detector
	logger   *slog.Logger

	sessions []*connector.Session

	mu     sync.Mutex
	ready  map[model.Exchange]bool
	queues map[eventbus.Topic]*dropOldestQueue

	totalProcessed atomic.Int64
	totalDropped   atomic.Int64
}

// New builds a Manager over sessions, one per configured exchange.
func New(cfg Config, sessions []*connector.Session, bus *eventbus.Bus, detector *continuity.Detector, logger *slog.Logger) *Manager {
	return &Manager{
		cfg:      cfg,
		bus:      bus,
		detector: detector,
		logger:   logger.With("component", "ingest"),
		sessions: sessions,
		ready:    make(map[model.Exchange]bool, len(sessions)),
		queues:   make(map[eventbus.Topic]*dropOldestQueue),
	}
}

// Run starts every session and blocks dispatching their events until ctx is
// cancelled. Each session runs in its own goroutine, as does the publisher
// for each distinct topic, so a slow Redis write on one stream never stalls
// another.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup

	for _, sess := range m.sessions {
		sess := sess
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sess.Run(ctx); err != nil && ctx.Err() == nil {
				m.logger.Warn("connector session exited", "error", err)
			}
		}()

		wg.Add(1)
		go func() {
			defer wg.Done()
			m.dispatchLoop(ctx, sess)
		}()
	}

	wg.Wait()
	return ctx.Err()
}

func (m *Manager) dispatchLoop(ctx context.Context, sess *connector.Session) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sess.Events():
			if !ok {
				return
			}
			m.handle(event)
		}
	}
}

func (m *Manager) handle(event connector.Event) {
	m.totalProcessed.Add(1)

	switch event.Kind {
	case connector.EventTick:
		m.publish(eventbus.TopicMarketTicks, "connector", "tick", event.Tick)
	case connector.EventKline:
		m.observeContinuity(event.Kline)
		m.publish(eventbus.TopicMarketKlines, "connector", "kline", event.Kline)
	case connector.EventOrderBook:
		m.publish(eventbus.TopicMarketOrderbook, "connector", "orderbook", event.OrderBook)
	case connector.EventTrade:
		m.publish(eventbus.TopicMarketTrades, "connector", "trade", event.Trade)
	case connector.EventConnectionStatus:
		m.markReady(event.ConnectionStatus)
		m.publish(eventbus.TopicSystemEvents, "connector", "connection_status", event.ConnectionStatus)
	case connector.EventHeartbeat:
		m.publish(eventbus.TopicSystemEvents, "connector", "heartbeat", event.Heartbeat)
	case connector.EventError:
		m.publish(eventbus.TopicSystemEvents, "connector", "stream_error", event.Error)
	}
}

func (m *Manager) observeContinuity(kline *model.Kline) {
	if kline == nil {
		return
	}
	key := continuity.Key{Exchange: kline.Exchange, Symbol: kline.Symbol, Interval: kline.Interval}
	obs := m.detector.Observe(key, kline.OpenTime.UnixMilli())
	kline.Quality = obs.Quality
}

func (m *Manager) markReady(status *model.ConnectionStatus) {
	if status == nil || status.State != model.ConnStateConnected {
		return
	}
	m.mu.Lock()
	m.ready[status.Exchange] = true
	m.mu.Unlock()
}

// publish enqueues payload on topic's drop-oldest queue, spinning up that
// topic's publisher goroutine on first use.
func (m *Manager) publish(topic eventbus.Topic, source, eventType string, payload any) {
	q := m.queueFor(topic)
	q.push(queuedEnvelope{source: source, eventType: eventType, payload: payload})
}

func (m *Manager) queueFor(topic eventbus.Topic) *dropOldestQueue {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.queues[topic]
	if ok {
		return q
	}
	q = newDropOldestQueue(m.cfg.QueueSize)
	m.queues[topic] = q
	go m.publishLoop(topic, q)
	return q
}

func (m *Manager) publishLoop(topic eventbus.Topic, q *dropOldestQueue) {
	for item := range q.out {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := m.bus.PublishEvent(ctx, topic, item.source, item.eventType, item.payload, nil)
		cancel()
		if err != nil {
			m.logger.Warn("event bus publish failed", "topic", topic, "error", err)
		}
	}
}

// Ready reports whether every configured connector has completed its first
// successful subscribe (spec.md supplement #1: readiness handler).
func (m *Manager) Ready() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.ready) < len(m.sessions) {
		return false
	}
	for _, ok := range m.ready {
		if !ok {
			return false
		}
	}
	return true
}

// Stats is a point-in-time snapshot of ingestion counters.
type Stats struct {
	TotalProcessed int64
	TotalDropped   int64
	Continuity     continuity.Stats
}

// Stats returns the manager's running counters.
func (m *Manager) Stats() Stats {
	var dropped int64
	m.mu.Lock()
	for _, q := range m.queues {
		dropped += q.dropped.Load()
	}
	m.mu.Unlock()

	return Stats{
		TotalProcessed: m.totalProcessed.Load(),
		TotalDropped:   dropped,
		Continuity:     m.detector.Stats(),
	}
}
