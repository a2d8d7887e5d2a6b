package websocket

import (
	"encoding/json"
	"log"
	"sync"

	"github.com/gofiber/contrib/websocket"

	"github.com/tracklight/api/internal/model"
)

// Client is one subscriber watching a work.
type Client struct {
	WorkID string
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans stage events out to clients subscribed per work ID. Push is a
// supplement to polling: clients without a socket still converge by
// re-reading the work row.
type Hub struct {
	clients    map[string]map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan *broadcastMessage

	mu sync.RWMutex
}

type broadcastMessage struct {
	WorkID  string
	Message []byte
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *broadcastMessage, 256),
	}
}

// Run is the hub's main loop; start it once in its own goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.clients[client.WorkID] == nil {
				h.clients[client.WorkID] = make(map[*Client]bool)
			}
			h.clients[client.WorkID][client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.clients[client.WorkID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					close(client.Send)
					if len(clients) == 0 {
						delete(h.clients, client.WorkID)
					}
				}
			}
			h.mu.Unlock()

		case msg := <-h.broadcast:
			h.mu.RLock()
			if clients, ok := h.clients[msg.WorkID]; ok {
				for client := range clients {
					select {
					case client.Send <- msg.Message:
					default:
						close(client.Send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// HandleConnection pumps outbound messages until the peer goes away.
func (h *Hub) HandleConnection(conn *websocket.Conn, workID string) {
	client := &Client{WorkID: workID, Conn: conn, Send: make(chan []byte, 16)}
	h.Register(client)
	defer h.Unregister(client)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case msg, ok := <-client.Send:
			if !ok {
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

// BroadcastStage announces a stage status change.
func (h *Hub) BroadcastStage(workID string, stage model.Stage, status model.JobStatus) {
	h.send(workID, model.WSStageMessage{
		Type:   model.WSMessageTypeStage,
		WorkID: workID,
		Stage:  stage,
		Status: status,
	})
}

// BroadcastComplete pushes a stage result to subscribers.
func (h *Hub) BroadcastComplete(workID string, stage model.Stage, result interface{}) {
	h.send(workID, model.WSCompleteMessage{
		Type:   model.WSMessageTypeComplete,
		WorkID: workID,
		Stage:  stage,
		Result: result,
	})
}

// BroadcastError reports a stage failure.
func (h *Hub) BroadcastError(workID, code, message string) {
	h.send(workID, model.WSErrorMessage{
		Type:   model.WSMessageTypeError,
		WorkID: workID,
		Error:  model.WSError{Code: code, Message: message},
	})
}

func (h *Hub) send(workID string, msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("Failed to marshal ws message: %v", err)
		return
	}
	h.broadcast <- &broadcastMessage{WorkID: workID, Message: data}
}
