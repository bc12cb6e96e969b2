// Package notification turns committed case events into per-user deliveries.
package notification

import (
	"context"
	"errors"
	"fmt"

	"github.com/garyjia/caseflow/internal/application/dispatcher"
	"github.com/garyjia/caseflow/internal/application/port"
	"github.com/garyjia/caseflow/internal/domain/entity"
	"github.com/garyjia/caseflow/internal/domain/event"
)

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

// Deliverer sends one notification to one user
type Deliverer interface {
	Deliver(ctx context.Context, recipient *entity.User, n *entity.NotificationRequest) error
}

// LogDeliverer records deliveries in the log; transport is outside this system
type LogDeliverer struct {
	Logger Logger
}

// Deliver logs the notification
func (d LogDeliverer) Deliver(ctx context.Context, recipient *entity.User, n *entity.NotificationRequest) error {
	d.Logger.Info("Notification delivered",
		"case_id", n.CaseID,
		"recipient", recipient.ID,
		"email", recipient.Email,
		"subject", n.Subject,
	)
	return nil
}

// Handler resolves recipients of notification.requested events and delivers to each
type Handler struct {
	identity  port.IdentityProvider
	deliverer Deliverer
	logger    Logger
}

// NewHandler creates a notification handler
func NewHandler(identity port.IdentityProvider, deliverer Deliverer, logger Logger) *Handler {
	return &Handler{
		identity:  identity,
		deliverer: deliverer,
		logger:    logger,
	}
}

// Register subscribes the handler and the audit logger to the dispatcher
func (h *Handler) Register(d dispatcher.Dispatcher) {
	d.Subscribe(event.TypeNotificationRequested, "notification-delivery", h.HandleNotification)
	d.SubscribeAll("audit-trail", h.HandleAudit)
}

// HandleNotification delivers to every active recipient. Unknown or inactive
// recipients are skipped; delivery errors are joined and returned so the
// outbox relay retries the event.
func (h *Handler) HandleNotification(ctx context.Context, evt *event.Event) error {
	n := Request(evt)
	if len(n.Recipients) == 0 {
		h.logger.Info("Notification without recipients ignored", "event_id", evt.ID, "case_id", evt.CaseID)
		return nil
	}

	var errs []error
	for _, id := range n.Recipients {
		u, err := h.identity.Resolve(ctx, id)
		if err != nil {
			errs = append(errs, fmt.Errorf("resolve %s: %w", id, err))
			continue
		}
		if u == nil || !u.Active {
			h.logger.Info("Skipping unavailable recipient", "case_id", n.CaseID, "recipient", id)
			continue
		}
		if err := h.deliverer.Deliver(ctx, u, n); err != nil {
			h.logger.Error("Notification delivery failed", "case_id", n.CaseID, "recipient", id, "error", err)
			errs = append(errs, fmt.Errorf("deliver to %s: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

// HandleAudit logs every audit event that passes through the dispatcher
func (h *Handler) HandleAudit(ctx context.Context, evt *event.Event) error {
	if !evt.Type.IsAudit() {
		return nil
	}
	h.logger.Info("Case event",
		"event_type", evt.Type,
		"case_id", evt.CaseID,
		"actor", evt.ActorID,
		"from", evt.GetPayloadString("from_status"),
		"to", evt.GetPayloadString("to_status"),
		"correlation_id", evt.CorrelationID,
	)
	return nil
}

// Request rebuilds the NotificationRequest carried by an event payload
func Request(evt *event.Event) *entity.NotificationRequest {
	return &entity.NotificationRequest{
		CaseID:     evt.CaseID,
		Recipients: evt.GetPayloadStrings("recipients"),
		Subject:    evt.GetPayloadString("subject"),
		Message:    evt.GetPayloadString("message"),
	}
}
