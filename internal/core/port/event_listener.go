package port

import "context"

// EventListenerPort is the contract for inbound message listeners. Start
// blocks until the context is cancelled or the listener fails.
type EventListenerPort interface {
	Start(ctx context.Context) error
	Close() error
}
