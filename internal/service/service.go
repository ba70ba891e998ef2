// Package service manages backup service records owned by client orders and
// delegates their lifecycle to plugin adapters.
package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/plugin"
	"github.com/alfredjeanlab/svcbackup/internal/store"
)

// Service applies order lifecycle events to service rows.
type Service struct {
	store          store.Store
	migrator       store.Migrator
	plugins        *plugin.Registry
	publisher      events.Publisher
	logger         *slog.Logger
	metrics        *metrics.Collector
	now            func() time.Time
	pluginDefaults map[string]map[string]any

	actions map[string]actionFunc
}

// Option configures a Service.
type Option func(*Service)

// WithMigrator sets the schema migrator used by Install and Uninstall.
func WithMigrator(m store.Migrator) Option {
	return func(s *Service) { s.migrator = m }
}

// WithRegistry sets the plugin registry. Defaults to plugin.Default.
func WithRegistry(r *plugin.Registry) Option {
	return func(s *Service) { s.plugins = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithMetrics(c *metrics.Collector) Option {
	return func(s *Service) { s.metrics = c }
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithPluginDefaults sets per-plugin config that a row's plugin_config is
// overlaid onto.
func WithPluginDefaults(d map[string]map[string]any) Option {
	return func(s *Service) { s.pluginDefaults = d }
}

// New returns a Service backed by st. A nil publisher disables event
// publishing.
func New(st store.Store, pub events.Publisher, opts ...Option) *Service {
	if pub == nil {
		pub = events.Discard
	}
	s := &Service{
		store:     st,
		publisher: pub,
		plugins:   plugin.Default,
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.actions = s.actionTable()
	return s
}

// Plugins returns the registered adapter names.
func (s *Service) Plugins() []string {
	return s.plugins.Names()
}

// Install applies the schema migrations.
func (s *Service) Install(ctx context.Context) error {
	if s.migrator == nil {
		return errors.New("no migrator configured")
	}
	if err := s.migrator.MigrateUp(); err != nil {
		return fmt.Errorf("install: %w", err)
	}
	s.logger.InfoContext(ctx, "service module installed")
	return nil
}

// Uninstall drops the service table.
func (s *Service) Uninstall(ctx context.Context) error {
	if s.migrator == nil {
		return errors.New("no migrator configured")
	}
	if err := s.migrator.MigrateDown(); err != nil {
		return fmt.Errorf("uninstall: %w", err)
	}
	s.logger.InfoContext(ctx, "service module uninstalled")
	return nil
}

// errLinkTaken aborts the create transaction when the order gained a
// service after it was read.
var errLinkTaken = errors.New("order link taken")

// Create provisions the service row for order and links the order to it.
// Plugin settings are inherited from the product config. A link to a service
// row that no longer exists is replaced.
func (s *Service) Create(ctx context.Context, order *model.Order) (svc *model.Service, err error) {
	defer func() { s.metrics.ObserveAction("create", err) }()

	if raw, err := json.Marshal(order); err == nil {
		s.logger.InfoContext(ctx, "creating service", "order", string(raw))
	}
	if order.ServiceID != nil {
		_, err := s.store.GetService(ctx, *order.ServiceID)
		switch {
		case err == nil:
			return nil, invalidf("Order %d already has a service", order.ID)
		case errors.Is(err, sql.ErrNoRows):
			s.logger.WarnContext(ctx, "replacing link to missing service", "order_id", order.ID, "service_id", *order.ServiceID)
		default:
			return nil, internal("failed to get service", err)
		}
	}

	product, err := s.store.GetProduct(ctx, order.ProductID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundf("Product not found")
	}
	if err != nil {
		return nil, internal("failed to get product", err)
	}

	now := s.now().UTC()
	svc = &model.Service{
		ClientID:  order.ClientID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	svc.Plugin, svc.PluginConfig = product.PluginDefaults()
	if err := model.ValidateService(svc); err != nil {
		return nil, &Error{Kind: KindInvalid, Message: err.Error()}
	}

	err = s.store.RunInTransaction(ctx, func(tx store.Store) error {
		if err := tx.CreateService(ctx, svc); err != nil {
			return fmt.Errorf("create service: %w", err)
		}
		err := tx.SwapOrderService(ctx, order.ID, order.ServiceID, &svc.ID)
		if errors.Is(err, sql.ErrNoRows) {
			if _, gerr := tx.GetOrder(ctx, order.ID); errors.Is(gerr, sql.ErrNoRows) {
				return notFoundf("Order not found")
			}
			return errLinkTaken
		}
		if err != nil {
			return fmt.Errorf("link order: %w", err)
		}
		return nil
	})
	var serr *Error
	switch {
	case errors.Is(err, errLinkTaken):
		return nil, invalidf("Order %d already has a service", order.ID)
	case errors.As(err, &serr):
		return nil, err
	case err != nil:
		return nil, internal("failed to create service", err)
	}
	order.ServiceID = &svc.ID

	s.recordAndPublish(ctx, events.TopicServiceCreated, svc.ID, events.ServiceCreated{Service: svc, OrderID: order.ID})
	return svc, nil
}

// GetConfig returns the decoded config of svc, empty when unset or invalid.
func (s *Service) GetConfig(svc *model.Service) map[string]any {
	return svc.ConfigMap()
}

// UpdateConfig replaces the config of the service owned by orderID. config
// must be a JSON object.
func (s *Service) UpdateConfig(ctx context.Context, orderID int64, config any) error {
	cfg, ok := config.(map[string]any)
	if !ok {
		return invalidf("Config must be an array")
	}

	svc, _, err := s.serviceByOrderID(ctx, orderID)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(cfg)
	if err != nil {
		return invalidf("Config is not serializable: %v", err)
	}
	svc.Config = raw
	svc.UpdatedAt = s.now().UTC()

	err = s.store.UpdateServiceConfig(ctx, svc.ID, svc.Config, svc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return notFoundf("Order %d has no active service", orderID)
	}
	if err != nil {
		return internal("failed to update service", err)
	}
	s.logger.InfoContext(ctx, fmt.Sprintf("Custom service updated #%d", svc.ID), "order_id", orderID)

	s.recordAndPublish(ctx, events.TopicServiceConfigUpdated, svc.ID, events.ServiceConfigUpdated{
		ServiceID: svc.ID,
		OrderID:   orderID,
		Config:    cfg,
	})
	return nil
}

// GetByOrderID returns the service owned by the order.
func (s *Service) GetByOrderID(ctx context.Context, orderID int64) (*model.Service, error) {
	svc, _, err := s.serviceByOrderID(ctx, orderID)
	return svc, err
}

// GetOrder returns an order by id.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundf("Order not found")
	}
	if err != nil {
		return nil, internal("failed to get order", err)
	}
	return order, nil
}

func (s *Service) serviceByOrderID(ctx context.Context, orderID int64) (*model.Service, *model.Order, error) {
	order, err := s.GetOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	svc, err := s.orderService(ctx, order)
	if err != nil {
		return nil, nil, err
	}
	return svc, order, nil
}

// orderService loads the service linked to order, or a not-found error.
func (s *Service) orderService(ctx context.Context, order *model.Order) (*model.Service, error) {
	if order.ServiceID == nil {
		return nil, notFoundf("Order %d has no active service", order.ID)
	}
	svc, err := s.store.GetService(ctx, *order.ServiceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundf("Order %d has no active service", order.ID)
	}
	if err != nil {
		return nil, internal("failed to get service", err)
	}
	return svc, nil
}

// ToAPIMap is the admin-facing representation of svc: its config with the
// row metadata overlaid.
func (s *Service) ToAPIMap(svc *model.Service) map[string]any {
	data := svc.ConfigMap()
	data["id"] = svc.ID
	data["client_id"] = svc.ClientID
	data["updated_at"] = svc.UpdatedAt
	data["created_at"] = svc.CreatedAt
	return data
}

// CustomCall forwards an arbitrary method to the service's adapter.
func (s *Service) CustomCall(ctx context.Context, svc *model.Service, method string, params map[string]any) (any, error) {
	order, err := s.store.GetOrderByService(ctx, svc.ID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFoundf("Order not found")
	}
	if err != nil {
		return nil, internal("failed to get service order", err)
	}
	return s.callOnAdapter(ctx, svc, order, method, params)
}

// Events returns the event log of a service.
func (s *Service) Events(ctx context.Context, serviceID int64) ([]*model.Event, error) {
	evts, err := s.store.GetEvents(ctx, serviceID)
	if err != nil {
		return nil, internal("failed to get events", err)
	}
	return evts, nil
}

// recordAndPublish persists an event and publishes it to NATS. Both are
// best-effort; failures are logged.
func (s *Service) recordAndPublish(ctx context.Context, topic string, serviceID int64, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn("failed to marshal event", "topic", topic, "service_id", serviceID, "error", err)
		return
	}
	if err := s.store.RecordEvent(ctx, &model.Event{
		Topic:     topic,
		ServiceID: serviceID,
		Actor:     ActorFromContext(ctx),
		Payload:   payload,
	}); err != nil {
		s.logger.Warn("failed to record event", "topic", topic, "service_id", serviceID, "error", err)
	}
	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Warn("failed to publish event", "topic", topic, "service_id", serviceID, "error", err)
	}
}

type actorKey struct{}

// WithActor tags ctx with the identity recorded on events.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor, or "".
func ActorFromContext(ctx context.Context) string {
	a, _ := ctx.Value(actorKey{}).(string)
	return a
}
