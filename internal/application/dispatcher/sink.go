package dispatcher

import (
	"context"

	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/event"
)

// AsSink exposes the dispatcher as a port.EventSink.
// Synchronous sinks return handler errors so the outbox relay can retry;
// asynchronous sinks never fail.
func AsSink(d Dispatcher, async bool) port.EventSink {
	return port.EventSinkFunc(func(ctx context.Context, evt *event.Event) error {
		if async {
			d.DispatchAsync(ctx, evt)
			return nil
		}
		return d.Dispatch(ctx, evt)
	})
}
