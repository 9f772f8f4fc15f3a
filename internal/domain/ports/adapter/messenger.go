package adapter

import "context"

// MessengerAdapter is the port for the outbound side of the messaging provider.
// Delivery is best-effort: implementations make a single attempt and return the
// failure instead of retrying, so callers decide whether it matters.
type MessengerAdapter interface {
	SendText(ctx context.Context, recipientID, text string) error
}
