package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"example.com/tavolo/possync/internal/notify"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// changeMessage is what the hub pushes to terminal UIs: the topic tag only.
// Clients re-read the snapshot endpoints; no payload ever rides the socket.
type changeMessage struct {
	Topic string `json:"topic"`
}

// Hub fans notifier events out to connected websocket clients.
type Hub struct {
	bus     *notify.Bus
	mu      sync.Mutex
	clients map[*wsClient]struct{}
	done    chan struct{}
	once    sync.Once
}

// NewHub creates a hub and starts forwarding the three change topics.
func NewHub(bus *notify.Bus) *Hub {
	h := &Hub{
		bus:     bus,
		clients: make(map[*wsClient]struct{}),
		done:    make(chan struct{}),
	}
	for _, topic := range []notify.Topic{
		notify.TopicOrdersChanged,
		notify.TopicMenuChanged,
		notify.TopicSettingsChanged,
	} {
		go h.forward(topic)
	}
	return h
}

func (h *Hub) forward(topic notify.Topic) {
	ch := h.bus.Subscribe(topic)
	for {
		select {
		case <-h.done:
			return
		case _, ok := <-ch:
			if !ok {
				return
			}
			h.broadcast(topic)
		}
	}
}

func (h *Hub) broadcast(topic notify.Topic) {
	data, err := json.Marshal(changeMessage{Topic: string(topic)})
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			log.Debug().Str("topic", string(topic)).Msg("Websocket buffer full, dropping change message")
		}
	}
}

// HandleWS upgrades the connection and registers the client.
func (h *Hub) HandleWS(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to upgrade websocket connection")
		return
	}

	client := &wsClient{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 16),
	}
	h.mu.Lock()
	h.clients[client] = struct{}{}
	h.mu.Unlock()

	go client.writePump()
	go client.readPump()
}

// Close stops the forwarders and disconnects every client.
func (h *Hub) Close() {
	h.once.Do(func() { close(h.done) })
	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		delete(h.clients, client)
	}
}

func (h *Hub) drop(client *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[client]; ok {
		close(client.send)
		delete(h.clients, client)
	}
}

type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// readPump drains client frames. Terminals never send anything meaningful;
// the loop exists to notice disconnects and answer pings.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.drop(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Debug().Err(err).Msg("Websocket read error")
			}
			return
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
