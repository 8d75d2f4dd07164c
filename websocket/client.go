package websocket

import (
	"log"
	"net/http"
	"net/url"
	"scdl/types"
	"strings"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// subscribers only ever send control frames
	maxMessageSize = 512
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	writeWait      = 10 * time.Second
	sendBuffer     = 256
)

// NewUpgrader returns an upgrader accepting handshakes from the given
// origins. A "*" entry accepts any origin. Requests without an Origin
// header come from non-browser clients and are always accepted, as are
// same-host requests.
func NewUpgrader(origins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[strings.ToLower(strings.TrimRight(origin, "/"))] = true
	}

	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || allowed["*"] {
				return true
			}
			if allowed[strings.ToLower(origin)] {
				return true
			}

			u, err := url.Parse(origin)
			if err == nil && strings.EqualFold(u.Host, r.Host) {
				return true
			}
			log.Printf("WebSocket origin rejected: %s", origin)
			return false
		},
	}
}

// Client is one progress subscriber. It only writes; anything the peer
// sends other than control frames is read and discarded.
type Client struct {
	hub        Hub
	conn       *websocket.Conn
	send       chan types.ProgressMessage
	downloadID string
}

// NewClient creates a client subscribed to downloadID (or AllDownloads)
func NewClient(hub Hub, conn *websocket.Conn, downloadID string) *Client {
	return &Client{
		hub:        hub,
		conn:       conn,
		send:       make(chan types.ProgressMessage, sendBuffer),
		downloadID: downloadID,
	}
}

// Serve registers the client with its hub and starts pumping messages
func (c *Client) Serve() {
	c.hub.RegisterClient(c)
	go c.pushProgress()
	go c.awaitClose()
}

// awaitClose keeps the read side alive for pongs and close frames, and
// unregisters the client once the peer goes away.
func (c *Client) awaitClose() {
	defer func() {
		c.hub.UnregisterClient(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.NextReader(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				log.Printf("WebSocket read error for download %s: %v", c.downloadID, err)
			}
			return
		}
	}
}

// pushProgress writes queued progress messages and keeps the connection
// alive with pings. It returns when the hub closes the send channel.
func (c *Client) pushProgress() {
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
				c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}

			if err := c.conn.WriteJSON(message); err != nil {
				log.Printf("WebSocket write error for download %s: %v", c.downloadID, err)
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
