package domain

import (
	"context"
	"io"
)

// Replier sends a composed reply back through the transport the event came from.
type Replier interface {
	Reply(ctx context.Context, msg ReplyMessage) error
}

// MediaSource resolves a MediaRef into its binary payload. The caller closes
// the returned reader.
type MediaSource interface {
	Open(ctx context.Context, ref MediaRef) (io.ReadCloser, error)
}

// EventHandler consumes inbound events. Implemented by the dispatcher.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev InboundEvent)
}
