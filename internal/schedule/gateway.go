package schedule

import "context"

// Gateway delivers text to a destination. Failures should be *DeliveryError.
type Gateway interface {
	Send(ctx context.Context, destinationID string, text string) error
}

// GatewayFunc adapts a function to Gateway.
type GatewayFunc func(ctx context.Context, destinationID string, text string) error

func (f GatewayFunc) Send(ctx context.Context, destinationID string, text string) error {
	return f(ctx, destinationID, text)
}
