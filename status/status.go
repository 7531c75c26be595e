// Package status broadcasts export progress to websocket clients and logs.
package status

import (
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	INFO = iota
	ERROR
	PROGRESS
	DONE
)

const CLIENT_QUEUE = 32

type Status struct {
	Message  string
	Time     time.Time
	Type     int
	Progress float32
	Path     string `json:",omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	gone chan struct{}
	hub  *Hub
}

func (c *client) writePump() {
	ticker := time.NewTicker(time.Second * 30)
	defer func() {
		ticker.Stop()
		c.hub.unregisterClient(c)
		c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				c.hub.log.Debug("ws write msg error", zap.Error(err))
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(40 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.hub.log.Debug("ws write ping error", zap.Error(err))
				return
			}
		case <-c.gone:
			return
		}
	}
}

// readPump drains client frames so close and pong control messages are
// handled. When the connection dies it stops writePump through gone.
func (c *client) readPump() {
	defer func() {
		close(c.gone)
		c.conn.Close()
	}()
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Hub fans status messages out to every connected client. New clients get
// the last message right away. Slow clients lose messages instead of
// blocking the broadcaster.
type Hub struct {
	log       *zap.Logger
	broadcast chan *Status
	clients   map[*client]bool
	lock      sync.Mutex
	last      []byte
	upgrader  websocket.Upgrader
	done      chan struct{}
	closeOnce sync.Once
}

func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	h := &Hub{
		log:       log.Named("status"),
		broadcast: make(chan *Status, 16),
		clients:   make(map[*client]bool),
		done:      make(chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case s := <-h.broadcast:
			data, err := json.Marshal(s)
			if err != nil {
				h.log.Error("status marshal", zap.Error(err))
				continue
			}
			h.lock.Lock()
			h.last = data
			for c := range h.clients {
				select {
				case c.send <- data:
				default:
					h.log.Debug("client queue full, message dropped")
				}
			}
			h.lock.Unlock()
		case <-h.done:
			h.lock.Lock()
			for c := range h.clients {
				close(c.send)
				delete(h.clients, c)
			}
			h.lock.Unlock()
			return
		}
	}
}

// Close disconnects every client and stops the broadcaster.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) registerClient(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	h.clients[c] = true
	if h.last != nil {
		c.send <- h.last
	}
}

func (h *Hub) unregisterClient(c *client) {
	h.lock.Lock()
	defer h.lock.Unlock()
	delete(h.clients, c)
}

func (h *Hub) ClientCount() int {
	h.lock.Lock()
	defer h.lock.Unlock()
	return len(h.clients)
}

// ServeWS upgrades the request and subscribes the connection.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("ws upgrade", zap.Error(err))
		return
	}
	c := &client{conn: conn, send: make(chan []byte, CLIENT_QUEUE), gone: make(chan struct{}), hub: h}
	h.registerClient(c)
	go c.writePump()
	go c.readPump()
}

func (h *Hub) Status(msg string, _type int, progress float32, path string) {
	if math.IsNaN(float64(progress)) || math.IsInf(float64(progress), 0) {
		progress = 0
	}
	s := &Status{
		Message:  msg,
		Time:     time.Now(),
		Type:     _type,
		Progress: progress,
		Path:     path,
	}
	select {
	case h.broadcast <- s:
	case <-h.done:
	}
}

func (h *Hub) Info(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), INFO, 0.0, "")
}

func (h *Hub) Error(format string, a ...interface{}) {
	h.Status(fmt.Sprintf(format, a...), ERROR, 0.0, "")
}

func (h *Hub) Progress(stage string, percent int) {
	h.Status(stage, PROGRESS, float32(percent)/100, "")
}

func (h *Hub) Notify(success bool, path string) {
	if success {
		h.Status("Exported", DONE, 1, path)
	} else {
		h.Status("Export failed", ERROR, 0, path)
	}
}
