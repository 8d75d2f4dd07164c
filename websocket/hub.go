package websocket

import (
	"log"
	"scdl/types"
	"sync"
	"time"
)

// Hub interface defines the methods for managing WebSocket connections
type Hub interface {
	Run()
	BroadcastProgress(downloadID, msgType string, status types.Phase, currentFile, message string, progress float64)
	RegisterClient(client *Client)
	UnregisterClient(client *Client)
	ClientCount(key string) int
}

// hub maintains the set of active clients and broadcasts messages to them
type hub struct {
	// Registered clients mapped by download ID, plus AllDownloads
	clients map[string]map[*Client]bool

	// Broadcast channel for sending messages to all clients of a download
	broadcast chan types.ProgressMessage

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	mu sync.RWMutex
}

// AllDownloads is the subscription key receiving updates for every download
const AllDownloads = "all"

// NewHub creates a new WebSocket hub
func NewHub() Hub {
	return &hub{
		clients:    make(map[string]map[*Client]bool),
		broadcast:  make(chan types.ProgressMessage, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main event loop
func (h *hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.downloadID] == nil {
				h.clients[client.downloadID] = make(map[*Client]bool)
			}
			h.clients[client.downloadID][client] = true
			h.mu.Unlock()
			log.Printf("WebSocket client connected for download %s", client.downloadID)

		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client.downloadID, client)
			h.mu.Unlock()
			log.Printf("WebSocket client disconnected for download %s", client.downloadID)

		case message := <-h.broadcast:
			h.mu.Lock()
			h.deliver(message.DownloadID, message)
			h.deliver(AllDownloads, message)
			h.mu.Unlock()
		}
	}
}

// deliver sends message to the clients subscribed under key, dropping
// clients whose buffer is full. Callers hold h.mu.
func (h *hub) deliver(key string, message types.ProgressMessage) {
	for client := range h.clients[key] {
		select {
		case client.send <- message:
		default:
			h.remove(key, client)
		}
	}
}

// remove drops client and closes its send channel. Callers hold h.mu.
func (h *hub) remove(key string, client *Client) {
	clients, ok := h.clients[key]
	if !ok {
		return
	}
	if _, ok := clients[client]; !ok {
		return
	}

	delete(clients, client)
	close(client.send)
	if len(clients) == 0 {
		delete(h.clients, key)
	}
}

// ClientCount reports how many clients are subscribed under key
func (h *hub) ClientCount(key string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[key])
}

// BroadcastProgress queues a progress message for the clients of a download
func (h *hub) BroadcastProgress(downloadID, msgType string, status types.Phase, currentFile, message string, progress float64) {
	progressMsg := types.ProgressMessage{
		DownloadID:  downloadID,
		Type:        msgType,
		Progress:    progress,
		Status:      status,
		CurrentFile: currentFile,
		Message:     message,
		Timestamp:   time.Now(),
	}

	select {
	case h.broadcast <- progressMsg:
	default:
		log.Printf("WebSocket broadcast channel full, dropping message for download %s", downloadID)
	}
}

// RegisterClient registers a new client with the hub
func (h *hub) RegisterClient(client *Client) {
	h.register <- client
}

// UnregisterClient unregisters a client from the hub
func (h *hub) UnregisterClient(client *Client) {
	h.unregister <- client
}