// Package hooks consumes order lifecycle events published by the order
// engine on the event bus and applies them to the order's service.
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/service"
)

// TopicPrefix is the subject prefix the order engine publishes under. The
// last token names the event ("billing.order.suspend").
const TopicPrefix = "billing.order."

// EventCreate provisions the service instead of dispatching an action.
const EventCreate = "create"

// OrderEvent is the payload published for an order lifecycle event.
type OrderEvent struct {
	OrderID int64  `json:"order_id"`
	Event   string `json:"event,omitempty"` // defaults to the topic suffix
	Actor   string `json:"actor,omitempty"`
}

// Dispatcher is the part of the service layer the handler drives.
type Dispatcher interface {
	GetOrder(ctx context.Context, orderID int64) (*model.Order, error)
	Create(ctx context.Context, order *model.Order) (*model.Service, error)
	Action(ctx context.Context, event string, order *model.Order) (bool, error)
}

// Handler applies order events to services.
type Handler struct {
	svc    Dispatcher
	logger *slog.Logger
}

// NewHandler creates a hook handler backed by the given dispatcher.
func NewHandler(svc Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// HandleOrderEvent loads the order and applies the event to it.
func (h *Handler) HandleOrderEvent(ctx context.Context, event OrderEvent) error {
	if event.OrderID == 0 || event.Event == "" {
		return fmt.Errorf("hooks: order_id and event are required")
	}

	order, err := h.svc.GetOrder(ctx, event.OrderID)
	if err != nil {
		return err
	}

	if event.Event == EventCreate {
		svc, err := h.svc.Create(ctx, order)
		if err != nil {
			return err
		}
		h.logger.Info("hooks: service created", "order_id", order.ID, "service_id", svc.ID)
		return nil
	}

	if _, err := h.svc.Action(ctx, event.Event, order); err != nil {
		return err
	}
	h.logger.Info("hooks: order event applied", "order_id", order.ID, "event", event.Event)
	return nil
}

// StartSubscriber listens for order events on the event bus and applies
// them. It blocks until ctx is cancelled.
func (h *Handler) StartSubscriber(ctx context.Context, sub events.Subscriber) error {
	ch, cancel, err := sub.Subscribe(TopicPrefix + ">")
	if err != nil {
		return fmt.Errorf("hooks: subscribe: %w", err)
	}
	defer cancel()

	h.logger.Info("hooks: subscriber started")

	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hooks: subscriber stopping")
			return nil
		case msg, ok := <-ch:
			if !ok {
				h.logger.Info("hooks: subscription channel closed")
				return nil
			}

			var event OrderEvent
			if err := json.Unmarshal(msg.Data, &event); err != nil {
				h.logger.Warn("hooks: bad event payload", "topic", msg.Topic, "err", err)
				continue
			}
			if event.Event == "" {
				event.Event = strings.TrimPrefix(msg.Topic, TopicPrefix)
			}

			evCtx := ctx
			if event.Actor != "" {
				evCtx = service.WithActor(ctx, event.Actor)
			}
			if err := h.HandleOrderEvent(evCtx, event); err != nil {
				h.logger.Error("hooks: order event failed",
					"order_id", event.OrderID, "event", event.Event, "err", err)
			}
		}
	}
}
