package ws

import (
	"encoding/json"

	"github.com/sirupsen/logrus"

	"atlas-civico/models"
)

// snapshotMessage is the payload pushed to every connected client when the
// issue feed publishes a new collection snapshot.
type snapshotMessage struct {
	Type   string         `json:"type"`
	Issues []models.Issue `json:"issues"`
}

// Hub maintains the set of active clients and broadcasts issue snapshots.
// New clients immediately receive the most recent snapshot so they do not
// have to wait for the next upstream change.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	last       []byte
	log        *logrus.Logger
}

func NewHub(log *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		log:        log,
	}
}

// Run starts the hub's processing loop.
func (h *Hub) Run() {
	h.log.Info("WebSocket hub started")
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			if h.last != nil {
				select {
				case client.send <- h.last:
				default:
				}
			}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			h.last = message
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer; drop it rather than block the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
		}
	}
}

// BroadcastSnapshot publishes the full normalized issue list to every
// connected client.
func (h *Hub) BroadcastSnapshot(issues []models.Issue) {
	payload, err := json.Marshal(snapshotMessage{Type: "issues", Issues: issues})
	if err != nil {
		h.log.Errorf("failed to encode issue snapshot: %v", err)
		return
	}
	h.broadcast <- payload
}

// Notify pushes an arbitrary event (for example an upvote failure) to every
// connected client.
func (h *Hub) Notify(event interface{}) {
	payload, err := json.Marshal(event)
	if err != nil {
		h.log.Errorf("failed to encode notification: %v", err)
		return
	}
	h.broadcast <- payload
}
