package port

import (
	"context"

	"github.com/garyjia/caseflow/internal/domain/event"
)

// EventSink receives events after the case change that produced them is committed
type EventSink interface {
	Emit(ctx context.Context, evt *event.Event) error
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ctx context.Context, evt *event.Event) error

// Emit calls f(ctx, evt)
func (f EventSinkFunc) Emit(ctx context.Context, evt *event.Event) error {
	return f(ctx, evt)
}
