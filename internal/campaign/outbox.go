package campaign

import "context"

// Outbox queues outbound notifications in the same unit of work as the state
// transition that produced them. Delivery happens later, in the dispatcher
// sweep; a delivery failure never rolls back the transition.
type Outbox interface {
	Enqueue(ctx context.Context, recipient, subject, body string) error
}

// NopOutbox drops every notification. Used when mail is disabled.
type NopOutbox struct{}

func (NopOutbox) Enqueue(context.Context, string, string, string) error { return nil }
