package dispatcher

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/caseflow/internal/domain/event"
)

// AllEvents is the wildcard type used by SubscribeAll
const AllEvents event.Type = "*"

// ErrClosed is returned by Dispatch after Close
var ErrClosed = errors.New("dispatcher is closed")

// Handler processes one committed case event
type Handler func(ctx context.Context, evt *event.Event) error

type subscription struct {
	name    string
	handler Handler
}

// HandlerError names the subscriber that failed on an event
type HandlerError struct {
	Handler string
	EventID string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("handler %s failed on event %s: %v", e.Handler, e.EventID, e.Err)
}

func (e *HandlerError) Unwrap() error {
	return e.Err
}
