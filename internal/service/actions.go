package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/plugin"
	"github.com/alfredjeanlab/svcbackup/internal/store"
)

// ActionPrefix is the prefix order engines put in front of lifecycle event
// names ("action_activate"). Action accepts names with or without it.
const ActionPrefix = "action_"

type actionFunc func(ctx context.Context, order *model.Order) error

func (s *Service) actionTable() map[string]actionFunc {
	t := map[string]actionFunc{
		plugin.MethodActivate: s.activate,
		plugin.MethodDelete:   s.delete,
	}
	for _, m := range []string{
		plugin.MethodRenew, plugin.MethodSuspend, plugin.MethodUnsuspend,
		plugin.MethodCancel, plugin.MethodUncancel,
	} {
		t[m] = s.touchAction(m)
	}
	return t
}

// Actions returns the lifecycle event names Action accepts, sorted.
func (s *Service) Actions() []string {
	names := make([]string, 0, len(s.actions))
	for name := range s.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Action applies a lifecycle event to the service of order.
func (s *Service) Action(ctx context.Context, event string, order *model.Order) (bool, error) {
	name := strings.TrimPrefix(event, ActionPrefix)
	fn, ok := s.actions[name]
	if !ok {
		return false, invalidf("Unknown order event %s", event)
	}
	err := fn(ctx, order)
	s.metrics.ObserveAction(name, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) activate(ctx context.Context, order *model.Order) error {
	svc, err := s.orderService(ctx, order)
	if err != nil {
		if KindOf(err) == KindNotFound {
			return &Error{
				Kind:    KindNotFound,
				Code:    CodeServiceNotCreated,
				Message: "Could not activate order. Service was not created",
			}
		}
		return err
	}

	if _, err := s.callOnAdapter(ctx, svc, order, plugin.MethodActivate, nil); err != nil {
		return err
	}

	s.recordAndPublish(ctx, events.TopicServiceActivated, svc.ID, events.ServiceAction{
		Action:    plugin.MethodActivate,
		OrderID:   order.ID,
		Service:   svc,
		ServiceID: svc.ID,
	})
	return nil
}

// touchAction returns the handler shared by renew, suspend, unsuspend,
// cancel and uncancel: call the adapter, then bump updated_at.
func (s *Service) touchAction(method string) actionFunc {
	return func(ctx context.Context, order *model.Order) error {
		svc, err := s.orderService(ctx, order)
		if err != nil {
			return err
		}

		if _, err := s.callOnAdapter(ctx, svc, order, method, nil); err != nil {
			return err
		}

		svc.UpdatedAt = s.now().UTC()
		err = s.store.TouchService(ctx, svc.ID, svc.UpdatedAt)
		if errors.Is(err, sql.ErrNoRows) {
			return notFoundf("Order %d has no active service", order.ID)
		}
		if err != nil {
			return internal("failed to update service", err)
		}

		s.recordAndPublish(ctx, events.ActionTopics[method], svc.ID, events.ServiceAction{
			Action:    method,
			OrderID:   order.ID,
			Service:   svc,
			ServiceID: svc.ID,
		})
		return nil
	}
}

// delete removes the service of order. A missing service is logged and
// treated as already deleted; a link left pointing at it is cleared.
func (s *Service) delete(ctx context.Context, order *model.Order) error {
	svc, err := s.orderService(ctx, order)
	if err != nil {
		s.logger.ErrorContext(ctx, "delete: service lookup failed", "order_id", order.ID, "error", err)
		if KindOf(err) == KindNotFound && order.ServiceID != nil {
			s.clearStaleLink(ctx, order)
		}
		return nil
	}

	if _, err := s.callOnAdapter(ctx, svc, order, plugin.MethodDelete, nil); err != nil {
		return err
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.DeleteService(ctx, svc.ID); err != nil {
			return err
		}
		return tx.SwapOrderService(ctx, order.ID, &svc.ID, nil)
	})
	if err != nil {
		return internal("failed to delete service", err)
	}
	order.ServiceID = nil

	s.recordAndPublish(ctx, events.TopicServiceDeleted, svc.ID, events.ServiceAction{
		Action:    plugin.MethodDelete,
		OrderID:   order.ID,
		ServiceID: svc.ID,
	})
	return nil
}

func (s *Service) clearStaleLink(ctx context.Context, order *model.Order) {
	err := s.store.SwapOrderService(ctx, order.ID, order.ServiceID, nil)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		s.logger.ErrorContext(ctx, "delete: clearing order link failed", "order_id", order.ID, "error", err)
		return
	}
	order.ServiceID = nil
}
