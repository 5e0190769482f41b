package realtime

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"taskboard-backend/pkg/models"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser origin checks happen in the CORS layer; the socket itself
	// is gated by the auth middleware in front of it.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// clientFrame is what a connected client may send.
type clientFrame struct {
	Action  string          `json:"action"` // subscribe | unsubscribe | typing
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// wsClient bridges one websocket connection onto hub subscriptions.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	user *models.User

	mu       sync.Mutex
	subs     map[string]*Subscription
	outbound chan Event
	done     chan struct{}
}

// ServeWS upgrades the request and runs the bridge until the client
// disconnects. The caller has already authenticated the user.
func ServeWS(hub *Hub, user *models.User, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &wsClient{
		hub:      hub,
		conn:     conn,
		user:     user,
		subs:     make(map[string]*Subscription),
		outbound: make(chan Event, defaultBuffer),
		done:     make(chan struct{}),
	}

	go c.writeLoop()
	c.readLoop()
}

func (c *wsClient) readLoop() {
	defer c.shutdown()

	c.conn.SetReadLimit(maxMsgSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug().Err(err).Str("user", c.user.ID).Msg("websocket closed unexpectedly")
			}
			return
		}

		var frame clientFrame
		if err := json.Unmarshal(data, &frame); err != nil || frame.Topic == "" {
			continue
		}

		switch frame.Action {
		case "subscribe":
			c.subscribe(frame.Topic)
		case "unsubscribe":
			c.unsubscribe(frame.Topic)
		case "typing":
			// Typing indicators are rebroadcast to the topic and carry
			// the sender so clients can filter their own echo.
			c.hub.Publish(frame.Topic, EventTyping, map[string]interface{}{
				"user_id": c.user.ID,
				"payload": frame.Payload,
			})
		}
	}
}

func (c *wsClient) subscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.subs[topic]; ok {
		return
	}
	sub := c.hub.Subscribe(topic)
	c.subs[topic] = sub

	go func() {
		for ev := range sub.C() {
			select {
			case c.outbound <- ev:
			case <-c.done:
				return
			default:
				// Connection not draining; drop rather than block the
				// forwarder.
			}
		}
	}()
}

func (c *wsClient) unsubscribe(topic string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sub, ok := c.subs[topic]; ok {
		sub.Close()
		delete(c.subs, topic)
	}
}

func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case ev := <-c.outbound:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(ev); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

func (c *wsClient) shutdown() {
	c.mu.Lock()
	for topic, sub := range c.subs {
		sub.Close()
		delete(c.subs, topic)
	}
	c.mu.Unlock()

	close(c.done)
	c.conn.Close()
}
