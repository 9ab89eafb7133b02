package ws

// EventPublisher publishes ledger events to clients watching a loan.
type EventPublisher interface {
	Publish(loanID int64, event Event)
}

// Ensure Hub implements EventPublisher
var _ EventPublisher = (*Hub)(nil)

// Publish implements EventPublisher by broadcasting to the loan's clients.
func (h *Hub) Publish(loanID int64, event Event) {
	h.Broadcast(loanID, event)
}

// NoOpPublisher discards events (tests, or when the socket layer is disabled).
type NoOpPublisher struct{}

// Publish does nothing.
func (n *NoOpPublisher) Publish(loanID int64, event Event) {}
