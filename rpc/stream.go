package rpc

import (
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/tolelom/tolbracket/events"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origin is enforced by the CORS layer and the bearer token.
	CheckOrigin: func(*http.Request) bool { return true },
}

// Stream fans committed ledger events out to websocket subscribers. A
// client that falls behind by more than its send buffer is disconnected.
type Stream struct {
	mu      sync.RWMutex
	clients map[uuid.UUID]*streamClient
	closed  bool
}

type streamClient struct {
	id         uuid.UUID
	conn       *websocket.Conn
	send       chan []byte
	tournament *uint32 // nil → every event
	once       sync.Once
}

// NewStream creates a Stream fed by every event emitter publishes.
func NewStream(emitter *events.Emitter) *Stream {
	s := &Stream{clients: make(map[uuid.UUID]*streamClient)}
	emitter.SubscribeAll(s.publish)
	return s
}

// ServeWS upgrades the request. ?tournament=<id> limits the feed to events
// about that tournament.
func (s *Stream) ServeWS(w http.ResponseWriter, r *http.Request) {
	var filter *uint32
	if q := r.URL.Query().Get("tournament"); q != "" {
		n, err := strconv.ParseUint(q, 10, 32)
		if err != nil {
			http.Error(w, "invalid tournament id", http.StatusBadRequest)
			return
		}
		id := uint32(n)
		filter = &id
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logrus.WithError(err).Warn("websocket upgrade failed")
		return
	}
	c := &streamClient{
		id:         uuid.New(),
		conn:       conn,
		send:       make(chan []byte, sendBuffer),
		tournament: filter,
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.clients[c.id] = c
	s.mu.Unlock()
	logrus.WithField("client", c.id).Debug("stream client connected")

	go s.writePump(c)
	go s.readPump(c)
}

// Clients returns the number of connected subscribers.
func (s *Stream) Clients() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// Close disconnects every client and refuses new ones.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	clients := s.clients
	s.clients = make(map[uuid.UUID]*streamClient)
	s.mu.Unlock()
	for _, c := range clients {
		c.close()
	}
}

func (s *Stream) publish(ev events.Event) {
	msg, err := json.Marshal(ev)
	if err != nil {
		logrus.WithError(err).WithField("event", ev.Type).Error("stream marshal failed")
		return
	}
	id, hasID := ev.Data["tournament_id"].(uint32)

	s.mu.RLock()
	var slow []*streamClient
	for _, c := range s.clients {
		if c.tournament != nil && (!hasID || id != *c.tournament) {
			continue
		}
		select {
		case c.send <- msg:
		default:
			slow = append(slow, c)
		}
	}
	s.mu.RUnlock()

	for _, c := range slow {
		logrus.WithField("client", c.id).Warn("stream client too slow, disconnecting")
		s.remove(c)
	}
}

func (s *Stream) remove(c *streamClient) {
	s.mu.Lock()
	delete(s.clients, c.id)
	s.mu.Unlock()
	c.close()
}

func (c *streamClient) close() {
	c.once.Do(func() { close(c.send) })
}

// readPump discards inbound frames; it exists to service pongs and notice
// disconnects.
func (s *Stream) readPump(c *streamClient) {
	defer func() {
		s.remove(c)
		_ = c.conn.Close()
		logrus.WithField("client", c.id).Debug("stream client disconnected")
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithError(err).WithField("client", c.id).Debug("stream read error")
			}
			return
		}
	}
}

func (s *Stream) writePump(c *streamClient) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One event per frame so clients can decode each message on its own.
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
