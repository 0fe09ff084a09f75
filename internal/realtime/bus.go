package realtime

import (
	"context"
	"encoding/json"
)

// Bus fans broadcast frames out to the other instances of the service. The
// hub delivers to its local rooms directly; the bus only carries frames
// across instance boundaries.
type Bus interface {
	// Publish sends a frame for a board's room to the other instances.
	Publish(ctx context.Context, boardID string, frame Frame) error
	// Subscribe invokes handler for every frame published by another
	// instance. It blocks until ctx is done.
	Subscribe(ctx context.Context, handler func(boardID string, frame Frame)) error
	// Close releases bus resources.
	Close() error
}

// busMessage is the wire format frames travel in between instances. Origin
// lets an instance skip its own publications.
type busMessage struct {
	Origin  string          `json:"origin"`
	BoardID string          `json:"board_id"`
	Frame   json.RawMessage `json:"frame"`
}

// NoopBus is the single-instance bus. Local room delivery already reaches
// every connection, so there is nothing to forward.
type NoopBus struct{}

// NewNoopBus creates a bus that drops everything.
func NewNoopBus() *NoopBus { return &NoopBus{} }

func (b *NoopBus) Publish(ctx context.Context, boardID string, frame Frame) error { return nil }

func (b *NoopBus) Subscribe(ctx context.Context, handler func(boardID string, frame Frame)) error {
	<-ctx.Done()
	return ctx.Err()
}

func (b *NoopBus) Close() error { return nil }
