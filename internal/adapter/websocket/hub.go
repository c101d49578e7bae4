package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/ishworii/jobboard/internal/adapter/metrics"
	"github.com/ishworii/jobboard/internal/querycache"
)

const (
	maxClientsPerTopic = 50
	sendBuffer         = 16
	writeTimeout       = 5 * time.Second
)

var ErrHubStopped = errors.New("hub stopped")

// Source is the cache surface the hub streams from.
type Source interface {
	Subscribe(key querycache.Key) *querycache.Subscription
	Peek(key querycache.Key) (querycache.Snapshot, bool)
	Refetch(ctx context.Context, key querycache.Key)
}

// Message is the JSON frame pushed to a screen on every state change of its
// cache key.
type Message struct {
	Key       string           `json:"key"`
	State     querycache.State `json:"state"`
	Value     any              `json:"value,omitempty"`
	Error     string           `json:"error,omitempty"`
	UpdatedAt *time.Time       `json:"updated_at,omitempty"`
}

func encodeSnapshot(snap querycache.Snapshot) ([]byte, error) {
	msg := Message{Key: snap.Key.String(), State: snap.State}
	if snap.HasValue {
		msg.Value = snap.Value
	}
	if snap.Err != nil {
		msg.Error = snap.Err.Error()
	}
	if !snap.UpdatedAt.IsZero() {
		t := snap.UpdatedAt
		msg.UpdatedAt = &t
	}
	return json.Marshal(msg)
}

// --- Command types ---

type hubCmd interface{ hubCmd() }

type cmdRegister struct {
	key   querycache.Key
	conn  *websocket.Conn
	errCh chan error
}

func (cmdRegister) hubCmd() {}

type cmdUnregister struct {
	key  querycache.Key
	conn *websocket.Conn
}

func (cmdUnregister) hubCmd() {}

type cmdPublish struct {
	key  querycache.Key
	data []byte
}

func (cmdPublish) hubCmd() {}

type cmdClientCount struct {
	key     querycache.Key
	replyCh chan int
}

func (cmdClientCount) hubCmd() {}

type cmdDisconnectAll struct {
	done chan struct{}
}

func (cmdDisconnectAll) hubCmd() {}

type cmdStop struct{}

func (cmdStop) hubCmd() {}

// --- Per-connection writer ---

type clientWriter struct {
	conn   *websocket.Conn
	sendCh chan []byte
	done   chan struct{}
}

func newClientWriter(conn *websocket.Conn) *clientWriter {
	cw := &clientWriter{
		conn:   conn,
		sendCh: make(chan []byte, sendBuffer),
		done:   make(chan struct{}),
	}
	go cw.run()
	return cw
}

func (cw *clientWriter) run() {
	for {
		select {
		case msg := <-cw.sendCh:
			_ = cw.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := cw.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-cw.done:
			return
		}
	}
}

func (cw *clientWriter) stop() {
	close(cw.done)
	_ = cw.conn.Close()
}

// --- Hub ---

// topic is one cache key with at least one connected screen. The cache
// subscription lives exactly as long as the topic.
type topic struct {
	sub     *querycache.Subscription
	stop    chan struct{}
	clients map[*websocket.Conn]*clientWriter
}

// Hub fans cache snapshots out to websocket connections grouped by cache
// key. All state is owned by the run goroutine.
type Hub struct {
	cmdCh   chan hubCmd
	done    chan struct{}
	source  Source
	metrics *metrics.WebSocketMetrics
	topics  map[querycache.Key]*topic
}

// NewHub starts a hub streaming from source. m may be nil.
func NewHub(source Source, m *metrics.WebSocketMetrics) *Hub {
	h := &Hub{
		cmdCh:   make(chan hubCmd, 256),
		done:    make(chan struct{}),
		source:  source,
		metrics: m,
		topics:  make(map[querycache.Key]*topic),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for cmd := range h.cmdCh {
		switch c := cmd.(type) {
		case cmdRegister:
			c.errCh <- h.handleRegister(c)
		case cmdUnregister:
			h.handleUnregister(c.key, c.conn)
		case cmdPublish:
			h.handlePublish(c)
		case cmdClientCount:
			if t, ok := h.topics[c.key]; ok {
				c.replyCh <- len(t.clients)
			} else {
				c.replyCh <- 0
			}
		case cmdDisconnectAll:
			h.dropTopics()
			close(c.done)
		case cmdStop:
			h.dropTopics()
			close(h.done)
			return
		}
	}
}

func (h *Hub) handleRegister(c cmdRegister) error {
	t, exists := h.topics[c.key]
	if exists && len(t.clients) >= maxClientsPerTopic {
		slog.Warn("Rejecting live client, topic full", "key", c.key.String(), "max", maxClientsPerTopic)
		_ = c.conn.Close()
		return fmt.Errorf("max clients per topic (%d) reached", maxClientsPerTopic)
	}

	if !exists {
		t = &topic{
			sub:     h.source.Subscribe(c.key),
			stop:    make(chan struct{}),
			clients: make(map[*websocket.Conn]*clientWriter),
		}
		h.topics[c.key] = t
		go h.forward(c.key, t)
	}

	cw := newClientWriter(c.conn)
	t.clients[c.conn] = cw
	if h.metrics != nil {
		h.metrics.ActiveConnections.Inc()
	}
	slog.Debug("Live client registered", "key", c.key.String(), "clients", len(t.clients))

	// The new screen gets the current state right away; an idle or stale
	// entry is refreshed and the result arrives through the subscription.
	snap, _ := h.source.Peek(c.key)
	if data, err := encodeSnapshot(snap); err == nil {
		cw.sendCh <- data
	}
	if snap.State == querycache.StateIdle || snap.State == querycache.StateStale {
		h.source.Refetch(context.Background(), c.key)
	}
	return nil
}

func (h *Hub) handleUnregister(key querycache.Key, conn *websocket.Conn) {
	t, exists := h.topics[key]
	if !exists {
		return
	}
	cw, exists := t.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(t.clients, conn)
	if h.metrics != nil {
		h.metrics.ActiveConnections.Dec()
	}

	if len(t.clients) == 0 {
		close(t.stop)
		t.sub.Close()
		delete(h.topics, key)
		slog.Debug("Last live client disconnected", "key", key.String())
	}
}

func (h *Hub) handlePublish(c cmdPublish) {
	t, exists := h.topics[c.key]
	if !exists {
		return
	}

	var slow []*websocket.Conn
	for conn, cw := range t.clients {
		select {
		case cw.sendCh <- c.data:
			if h.metrics != nil {
				h.metrics.MessagesPublished.Inc()
			}
		default:
			slow = append(slow, conn)
		}
	}

	for _, conn := range slow {
		slog.Warn("Disconnecting slow live client", "key", c.key.String())
		if h.metrics != nil {
			h.metrics.SlowClientDrops.Inc()
		}
		h.handleUnregister(c.key, conn)
	}
}

// dropTopics disconnects every client and releases every cache subscription.
func (h *Hub) dropTopics() {
	for key, t := range h.topics {
		for _, cw := range t.clients {
			cw.stop()
			if h.metrics != nil {
				h.metrics.ActiveConnections.Dec()
			}
		}
		close(t.stop)
		t.sub.Close()
		delete(h.topics, key)
	}
}

// forward relays the topic's cache snapshots into the hub until the topic
// is torn down.
func (h *Hub) forward(key querycache.Key, t *topic) {
	for {
		select {
		case snap := <-t.sub.C():
			data, err := encodeSnapshot(snap)
			if err != nil {
				slog.Error("Failed to encode cache snapshot", "key", key.String(), "error", err)
				continue
			}
			h.send(cmdPublish{key: key, data: data})
		case <-t.stop:
			return
		}
	}
}

func (h *Hub) send(cmd hubCmd) bool {
	select {
	case h.cmdCh <- cmd:
		return true
	case <-h.done:
		return false
	}
}

// --- Public API ---

// Register attaches conn to the topic of key and pushes the current snapshot.
func (h *Hub) Register(key querycache.Key, conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	if !h.send(cmdRegister{key: key, conn: conn, errCh: errCh}) {
		_ = conn.Close()
		return ErrHubStopped
	}
	select {
	case err := <-errCh:
		return err
	case <-h.done:
		return ErrHubStopped
	}
}

func (h *Hub) Unregister(key querycache.Key, conn *websocket.Conn) {
	h.send(cmdUnregister{key: key, conn: conn})
}

// Publish pushes a raw frame to every client of key.
func (h *Hub) Publish(key querycache.Key, data []byte) {
	h.send(cmdPublish{key: key, data: data})
}

func (h *Hub) ClientCount(key querycache.Key) int {
	replyCh := make(chan int, 1)
	if !h.send(cmdClientCount{key: key, replyCh: replyCh}) {
		return 0
	}
	select {
	case n := <-replyCh:
		return n
	case <-h.done:
		return 0
	}
}

// DisconnectAll closes every live connection while the hub keeps running.
// Screens reconnect through the guard, so a connection opened under an ended
// session never outlives it.
func (h *Hub) DisconnectAll() {
	done := make(chan struct{})
	if h.send(cmdDisconnectAll{done: done}) {
		select {
		case <-done:
		case <-h.done:
		}
	}
}

// Stop disconnects every client and releases all cache subscriptions.
func (h *Hub) Stop() {
	if h.send(cmdStop{}) {
		<-h.done
	}
}
