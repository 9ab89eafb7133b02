package ws

import (
	"errors"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrClientClosed is returned when sending to a closed client.
var ErrClientClosed = errors.New("client is closed")

// ClientInterface is the minimal surface the hub needs from a connection.
type ClientInterface interface {
	ID() string
	LoanID() int64
	Send(data []byte) error
	Close() error
}

// Hub manages connections organized by the loan they watch.
// Safe for concurrent use.
type Hub struct {
	loans map[int64]map[string]ClientInterface
	mu    sync.RWMutex
}

// NewHub creates an empty Hub.
func NewHub() *Hub {
	return &Hub{loans: make(map[int64]map[string]ClientInterface)}
}

// Register adds a client under its loan.
func (h *Hub) Register(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	loanID := client.LoanID()
	if h.loans[loanID] == nil {
		h.loans[loanID] = make(map[string]ClientInterface)
	}
	h.loans[loanID][client.ID()] = client

	log.Debug().
		Int64("loan_id", loanID).
		Str("client_id", client.ID()).
		Msg("WebSocket client registered")
}

// Unregister removes a client from the hub.
func (h *Hub) Unregister(client ClientInterface) {
	h.mu.Lock()
	defer h.mu.Unlock()

	loanID := client.LoanID()
	if clients, ok := h.loans[loanID]; ok {
		if _, exists := clients[client.ID()]; exists {
			delete(clients, client.ID())
			if len(clients) == 0 {
				delete(h.loans, loanID)
			}
		}
	}
}

// Broadcast sends an event to every client watching the loan.
func (h *Hub) Broadcast(loanID int64, event Event) {
	data, err := event.ToJSON()
	if err != nil {
		log.Error().
			Err(err).
			Int64("loan_id", loanID).
			Str("event_type", event.Type).
			Msg("Failed to serialize event")
		return
	}

	h.mu.RLock()
	clients, ok := h.loans[loanID]
	if !ok || len(clients) == 0 {
		h.mu.RUnlock()
		return
	}
	clientsCopy := make([]ClientInterface, 0, len(clients))
	for _, client := range clients {
		clientsCopy = append(clientsCopy, client)
	}
	h.mu.RUnlock()

	for _, client := range clientsCopy {
		go func(c ClientInterface) {
			if err := c.Send(data); err != nil {
				log.Warn().
					Err(err).
					Int64("loan_id", loanID).
					Str("client_id", c.ID()).
					Msg("Failed to send to client")
			}
		}(client)
	}
}

// ClientCount returns the number of clients watching a loan.
func (h *Hub) ClientCount(loanID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.loans[loanID])
}
