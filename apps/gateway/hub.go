package main

import (
	"context"
	"log/slog"
)

// Hub tracks connected viewers by conversation so events can wake them.
// Clients never receive event payloads from the hub; a wake-up only makes
// them poll sooner.
type Hub struct {
	clients    map[int64]map[*Client]bool // conversation_id -> clients
	register   chan *Client
	unregister chan *Client
	wake       chan int64
	count      chan chan int
	done       chan struct{}
	logger     *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		wake:       make(chan int64, 256),
		count:      make(chan chan int),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Wake nudges every viewer of a conversation. It never blocks; when the
// queue is full the viewers still catch up on their next tick.
func (h *Hub) Wake(conversationID int64) {
	select {
	case h.wake <- conversationID:
	default:
		h.logger.Debug("wake queue full, dropping", "conversation_id", conversationID)
	}
}

// Count returns how many clients are connected.
func (h *Hub) Count(ctx context.Context) int {
	reply := make(chan int, 1)
	select {
	case h.count <- reply:
		return <-reply
	case <-ctx.Done():
	case <-h.done:
	}
	return 0
}

func (h *Hub) add(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
	}
}

func (h *Hub) remove(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			if h.clients[client.conversationID] == nil {
				h.clients[client.conversationID] = make(map[*Client]bool)
			}
			h.clients[client.conversationID][client] = true
			h.logger.Info("client registered", "identity", client.identity, "role", client.role,
				"conversation_id", client.conversationID)

		case client := <-h.unregister:
			if clients, ok := h.clients[client.conversationID]; ok {
				if _, ok := clients[client]; ok {
					delete(clients, client)
					if len(clients) == 0 {
						delete(h.clients, client.conversationID)
					}
					h.logger.Info("client unregistered", "identity", client.identity,
						"conversation_id", client.conversationID)
				}
			}

		case id := <-h.wake:
			for client := range h.clients[id] {
				client.nudge()
			}

		case reply := <-h.count:
			n := 0
			for _, clients := range h.clients {
				n += len(clients)
			}
			reply <- n
		}
	}
}
