package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/plugin"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

// stubAdapter records every call it receives.
type stubAdapter struct {
	plugin.Methods
	config map[string]any
	calls  []*plugin.Call
}

func (a *stubAdapter) Name() string { return "Stub" }

type fixture struct {
	svc     *Service
	store   *mockStore
	metrics *metrics.Collector
	adapter *stubAdapter
	failErr error
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: newMockStore(), metrics: metrics.NewCollector()}

	reg := plugin.NewRegistry()
	if err := reg.Register("Stub", func(_ context.Context, cfg map[string]any) (plugin.Adapter, error) {
		a := &stubAdapter{config: cfg}
		record := func(_ context.Context, call *plugin.Call) (any, error) {
			a.calls = append(a.calls, call)
			if f.failErr != nil {
				return nil, f.failErr
			}
			return map[string]any{"ok": call.Method}, nil
		}
		a.Methods = plugin.Methods{"ping": record}
		for _, m := range plugin.LifecycleMethods {
			a.Methods[m] = record
		}
		f.adapter = a
		return a, nil
	}); err != nil {
		t.Fatal(err)
	}
	if err := reg.Register("Partial", func(context.Context, map[string]any) (plugin.Adapter, error) {
		return &stubAdapter{Methods: plugin.Methods{
			plugin.MethodActivate: func(context.Context, *plugin.Call) (any, error) { return true, nil },
		}}, nil
	}); err != nil {
		t.Fatal(err)
	}

	f.store.products[2] = &model.Product{ID: 2, Title: "Backup", Type: "proxmoxbackup",
		Config: json.RawMessage(`{"plugin":"Stub","plugin_config":{"region":"eu","quota":10}}`)}
	f.store.products[3] = &model.Product{ID: 3, Title: "Plain", Type: "proxmoxbackup"}
	f.store.orders[11] = &model.Order{ID: 11, ClientID: 7, ProductID: 2, Status: model.OrderPendingSetup}
	f.store.orders[12] = &model.Order{ID: 12, ClientID: 8, ProductID: 3, Status: model.OrderPendingSetup}

	f.svc = New(f.store, nil,
		WithRegistry(reg),
		WithMetrics(f.metrics),
		WithClock(func() time.Time { return fixedNow }),
		WithPluginDefaults(map[string]map[string]any{
			"Stub": {"endpoint": "https://pbs.example", "quota": 1},
		}),
	)
	return f
}

func (f *fixture) create(t *testing.T, orderID int64) (*model.Service, *model.Order) {
	t.Helper()
	order, err := f.store.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatal(err)
	}
	svc, err := f.svc.Create(context.Background(), order)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return svc, order
}

func requireKind(t *testing.T, err error, kind Kind, code int) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %v error, got nil", kind)
	}
	if KindOf(err) != kind {
		t.Fatalf("expected kind=%v, got %v (%v)", kind, KindOf(err), err)
	}
	if CodeOf(err) != code {
		t.Fatalf("expected code=%d, got %d", code, CodeOf(err))
	}
}

func metricValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	_ = c.Write(m)
	return m.GetCounter().GetValue()
}

// counterValue returns the error count of a lifecycle action.
func counterValue(c *metrics.Collector, action string) float64 {
	return metricValue(c.ActionCounter(action, metrics.ResultError))
}

func TestCreate(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)

	if svc.ID == 0 || svc.ClientID != 7 {
		t.Fatalf("unexpected service %+v", svc)
	}
	if !svc.CreatedAt.Equal(fixedNow) || !svc.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("timestamps = %v / %v", svc.CreatedAt, svc.UpdatedAt)
	}
	if svc.Plugin != "Stub" {
		t.Fatalf("plugin = %q, want Stub", svc.Plugin)
	}
	if pc := svc.PluginConfigMap(); pc["region"] != "eu" {
		t.Fatalf("plugin_config = %v", pc)
	}
	if order.ServiceID == nil || *order.ServiceID != svc.ID {
		t.Fatalf("order not linked: %v", order.ServiceID)
	}
	if stored := f.store.orders[11]; stored.ServiceID == nil || *stored.ServiceID != svc.ID {
		t.Fatal("stored order not linked")
	}
	if got := f.store.topics(); len(got) != 1 || got[0] != events.TopicServiceCreated {
		t.Fatalf("events = %v", got)
	}
}

func TestCreate_ProductNotFound(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), &model.Order{ID: 99, ClientID: 1, ProductID: 404})
	requireKind(t, err, KindNotFound, 0)
	if err.Error() != "Product not found" {
		t.Fatalf("message = %q", err.Error())
	}
	if len(f.store.services) != 0 {
		t.Fatal("service row created for missing product")
	}
}

func TestCreate_LinkFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	// Order 50 is not in the store, so linking fails inside the transaction.
	_, err := f.svc.Create(context.Background(), &model.Order{ID: 50, ClientID: 7, ProductID: 2})
	requireKind(t, err, KindNotFound, 0)
	if err.Error() != "Order not found" {
		t.Fatalf("message = %q", err.Error())
	}
	if len(f.store.services) != 0 {
		t.Fatalf("service row survived rollback: %v", f.store.services)
	}
}

func TestCreate_OrderAlreadyLinked(t *testing.T) {
	f := newFixture(t)
	_, order := f.create(t, 11)
	_, err := f.svc.Create(context.Background(), order)
	requireKind(t, err, KindInvalid, 0)
}

func TestCreate_ConcurrentCreateLosesLink(t *testing.T) {
	f := newFixture(t)
	// Both callers read order 11 before either links it.
	first, _ := f.store.GetOrder(context.Background(), 11)
	second, _ := f.store.GetOrder(context.Background(), 11)

	svc, err := f.svc.Create(context.Background(), first)
	if err != nil {
		t.Fatalf("first Create: %v", err)
	}
	_, err = f.svc.Create(context.Background(), second)
	requireKind(t, err, KindInvalid, 0)
	if err.Error() != "Order 11 already has a service" {
		t.Fatalf("message = %q", err.Error())
	}
	if len(f.store.services) != 1 {
		t.Fatalf("services = %d, want only the linked one", len(f.store.services))
	}
	if got := f.store.orders[11].ServiceID; got == nil || *got != svc.ID {
		t.Fatalf("order link = %v, want %d", got, svc.ID)
	}
}

func TestCreate_ReplacesLinkToMissingService(t *testing.T) {
	f := newFixture(t)
	gone := int64(999)
	f.store.orders[12].ServiceID = &gone
	order, _ := f.store.GetOrder(context.Background(), 12)

	svc, err := f.svc.Create(context.Background(), order)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got := f.store.orders[12].ServiceID; got == nil || *got != svc.ID {
		t.Fatalf("order link = %v, want %d", got, svc.ID)
	}
}

func TestCreate_CountsFailures(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), &model.Order{ID: 99, ClientID: 1, ProductID: 404})
	requireKind(t, err, KindNotFound, 0)
	if v := counterValue(f.metrics, "create"); v != 1 {
		t.Fatalf("create error counter = %v", v)
	}

	f.create(t, 11)
	if v := metricValue(f.metrics.ActionCounter("create", metrics.ResultOK)); v != 1 {
		t.Fatalf("create ok counter = %v", v)
	}
}

func TestAction_Activate(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)

	ok, err := f.svc.Action(context.Background(), "action_activate", order)
	if err != nil || !ok {
		t.Fatalf("Action = %v, %v", ok, err)
	}
	if len(f.adapter.calls) != 1 {
		t.Fatalf("adapter calls = %d", len(f.adapter.calls))
	}
	call := f.adapter.calls[0]
	if call.Method != plugin.MethodActivate || !strings.HasPrefix(call.ID, "call-") {
		t.Fatalf("call = %+v", call)
	}
	if call.Service["id"] != svc.ID || call.Order["id"] != int64(11) {
		t.Fatalf("call maps service=%v order=%v", call.Service, call.Order)
	}

	// Row config overrides file defaults key by key.
	if f.adapter.config["endpoint"] != "https://pbs.example" || f.adapter.config["quota"] != float64(10) {
		t.Fatalf("adapter config = %v", f.adapter.config)
	}

	stored := f.store.services[svc.ID]
	if !stored.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("activate touched updated_at: %v", stored.UpdatedAt)
	}
	want := []string{events.TopicServiceCreated, events.TopicPluginCalled, events.TopicServiceActivated}
	if got := f.store.topics(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("events = %v, want %v", got, want)
	}
}

func TestAction_ActivateWithoutService(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Action(context.Background(), "activate", f.store.orders[11])
	requireKind(t, err, KindNotFound, CodeServiceNotCreated)
	if err.Error() != "Could not activate order. Service was not created" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAction_TouchActions(t *testing.T) {
	for _, action := range []string{"renew", "suspend", "unsuspend", "cancel", "uncancel"} {
		t.Run(action, func(t *testing.T) {
			f := newFixture(t)
			svc, order := f.create(t, 11)
			later := fixedNow.Add(time.Hour)
			f.svc.now = func() time.Time { return later }

			ok, err := f.svc.Action(context.Background(), action, order)
			if err != nil || !ok {
				t.Fatalf("Action = %v, %v", ok, err)
			}
			if got := f.adapter.calls[0].Method; got != action {
				t.Fatalf("adapter method = %q", got)
			}
			if !f.store.services[svc.ID].UpdatedAt.Equal(later) {
				t.Fatal("updated_at not bumped")
			}
			topics := f.store.topics()
			if topics[len(topics)-1] != events.ActionTopics[action] {
				t.Fatalf("last topic = %q", topics[len(topics)-1])
			}
		})
	}
}

func TestAction_TouchWithoutService(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Action(context.Background(), "suspend", f.store.orders[11])
	requireKind(t, err, KindNotFound, 0)
	if err.Error() != "Order 11 has no active service" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestAction_AdapterFailureLeavesRow(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)
	f.failErr = errBoom
	f.svc.now = func() time.Time { return fixedNow.Add(time.Hour) }

	_, err := f.svc.Action(context.Background(), "suspend", order)
	if !errors.Is(err, errBoom) {
		t.Fatalf("expected adapter error, got %v", err)
	}
	if !f.store.services[svc.ID].UpdatedAt.Equal(fixedNow) {
		t.Fatal("updated_at bumped despite adapter failure")
	}
	if v := counterValue(f.metrics, "suspend"); v != 1 {
		t.Fatalf("error counter = %v", v)
	}
}

func TestAction_Unknown(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Action(context.Background(), "action_reboot", f.store.orders[11])
	requireKind(t, err, KindInvalid, 0)
}

func TestAction_Delete(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)

	ok, err := f.svc.Action(context.Background(), "delete", order)
	if err != nil || !ok {
		t.Fatalf("Action = %v, %v", ok, err)
	}
	if _, exists := f.store.services[svc.ID]; exists {
		t.Fatal("service row not deleted")
	}
	if f.store.orders[11].ServiceID != nil || order.ServiceID != nil {
		t.Fatal("order link not cleared")
	}
	if f.adapter.calls[0].Method != plugin.MethodDelete {
		t.Fatalf("adapter method = %q", f.adapter.calls[0].Method)
	}
}

func TestAction_DeleteWithoutServiceSucceeds(t *testing.T) {
	f := newFixture(t)
	ok, err := f.svc.Action(context.Background(), "delete", f.store.orders[11])
	if err != nil || !ok {
		t.Fatalf("Action = %v, %v", ok, err)
	}
}

func TestAction_DeleteClearsLinkToMissingService(t *testing.T) {
	f := newFixture(t)
	gone := int64(999)
	f.store.orders[12].ServiceID = &gone
	order, _ := f.store.GetOrder(context.Background(), 12)

	ok, err := f.svc.Action(context.Background(), "delete", order)
	if err != nil || !ok {
		t.Fatalf("Action = %v, %v", ok, err)
	}
	if f.store.orders[12].ServiceID != nil || order.ServiceID != nil {
		t.Fatal("link to missing service not cleared")
	}
	if _, err := f.svc.Create(context.Background(), order); err != nil {
		t.Fatalf("Create after delete: %v", err)
	}
}

func TestAction_TouchKeepsConcurrentConfigUpdate(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)
	later := fixedNow.Add(time.Hour)
	f.svc.now = func() time.Time { return later }

	// The adapter is still working when an admin update commits.
	slow := &stubAdapter{Methods: plugin.Methods{
		plugin.MethodSuspend: func(ctx context.Context, _ *plugin.Call) (any, error) {
			return nil, f.svc.UpdateConfig(ctx, 11, map[string]any{"quota": 99})
		},
	}}
	reg := plugin.NewRegistry()
	if err := reg.Register("Stub", func(context.Context, map[string]any) (plugin.Adapter, error) {
		return slow, nil
	}); err != nil {
		t.Fatal(err)
	}
	f.svc.plugins = reg

	if _, err := f.svc.Action(context.Background(), "suspend", order); err != nil {
		t.Fatalf("Action: %v", err)
	}
	stored := f.store.services[svc.ID]
	if got := stored.ConfigMap()["quota"]; got != float64(99) {
		t.Fatalf("config after suspend = %s", stored.Config)
	}
	if !stored.UpdatedAt.Equal(later) {
		t.Fatalf("updated_at = %v", stored.UpdatedAt)
	}
}

func TestAction_NoPlugin(t *testing.T) {
	f := newFixture(t)
	_, order := f.create(t, 12)

	if _, err := f.svc.Action(context.Background(), "activate", order); err != nil {
		t.Fatalf("activate: %v", err)
	}
	for _, topic := range f.store.topics() {
		if topic == events.TopicPluginCalled {
			t.Fatal("plugin call recorded for service without plugin")
		}
	}
}

func TestAction_UnregisteredPluginIsSkipped(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)
	f.store.services[svc.ID].Plugin = "Gone"

	if _, err := f.svc.Action(context.Background(), "renew", order); err != nil {
		t.Fatalf("renew: %v", err)
	}
	v := metricValue(f.metrics.PluginCallCounter("Gone", "renew", metrics.ResultSkip))
	if v != 1 {
		t.Fatalf("skipped counter = %v", v)
	}
}

func TestAction_UnsupportedMethod(t *testing.T) {
	f := newFixture(t)
	svc, order := f.create(t, 11)
	f.store.services[svc.ID].Plugin = "Partial"

	_, err := f.svc.Action(context.Background(), "suspend", order)
	requireKind(t, err, KindUnsupported, CodeActionUnsupported)
	if err.Error() != "Plugin Partial does not support action suspend" {
		t.Fatalf("message = %q", err.Error())
	}
}

func TestActions(t *testing.T) {
	f := newFixture(t)
	want := "activate,cancel,delete,renew,suspend,uncancel,unsuspend"
	if got := strings.Join(f.svc.Actions(), ","); got != want {
		t.Fatalf("Actions = %s", got)
	}
}

func TestUpdateConfig(t *testing.T) {
	f := newFixture(t)
	svc, _ := f.create(t, 11)
	later := fixedNow.Add(time.Minute)
	f.svc.now = func() time.Time { return later }

	if err := f.svc.UpdateConfig(context.Background(), 11, map[string]any{"datastore": "main"}); err != nil {
		t.Fatalf("UpdateConfig: %v", err)
	}
	stored := f.store.services[svc.ID]
	if stored.ConfigMap()["datastore"] != "main" || !stored.UpdatedAt.Equal(later) {
		t.Fatalf("stored = %+v", stored)
	}
	topics := f.store.topics()
	if topics[len(topics)-1] != events.TopicServiceConfigUpdated {
		t.Fatalf("last topic = %q", topics[len(topics)-1])
	}
}

func TestUpdateConfig_Errors(t *testing.T) {
	f := newFixture(t)
	f.create(t, 11)

	err := f.svc.UpdateConfig(context.Background(), 11, []any{"a"})
	requireKind(t, err, KindInvalid, 0)
	if err.Error() != "Config must be an array" {
		t.Fatalf("message = %q", err.Error())
	}

	err = f.svc.UpdateConfig(context.Background(), 404, map[string]any{})
	requireKind(t, err, KindNotFound, 0)
	if err.Error() != "Order not found" {
		t.Fatalf("message = %q", err.Error())
	}

	requireKind(t, f.svc.UpdateConfig(context.Background(), 12, map[string]any{}), KindNotFound, 0)
}

func TestGetConfigAndToAPIMap(t *testing.T) {
	f := newFixture(t)
	svc := &model.Service{ID: 5, ClientID: 9, Config: json.RawMessage(`{"a":1,"id":"spoofed"}`),
		CreatedAt: fixedNow, UpdatedAt: fixedNow}

	if got := f.svc.GetConfig(svc); got["a"] != float64(1) {
		t.Fatalf("GetConfig = %v", got)
	}
	if got := f.svc.GetConfig(&model.Service{Config: json.RawMessage(`[1]`)}); len(got) != 0 {
		t.Fatalf("GetConfig(array) = %v", got)
	}

	m := f.svc.ToAPIMap(svc)
	if m["id"] != int64(5) || m["client_id"] != int64(9) || m["a"] != float64(1) {
		t.Fatalf("ToAPIMap = %v", m)
	}
	if m["created_at"] != fixedNow || m["updated_at"] != fixedNow {
		t.Fatalf("timestamps = %v / %v", m["created_at"], m["updated_at"])
	}
}

func TestGetByOrderID(t *testing.T) {
	f := newFixture(t)
	svc, _ := f.create(t, 11)

	got, err := f.svc.GetByOrderID(context.Background(), 11)
	if err != nil || got.ID != svc.ID {
		t.Fatalf("GetByOrderID = %v, %v", got, err)
	}
	_, err = f.svc.GetByOrderID(context.Background(), 404)
	requireKind(t, err, KindNotFound, 0)
	_, err = f.svc.GetByOrderID(context.Background(), 12)
	requireKind(t, err, KindNotFound, 0)
}

func TestCustomCall(t *testing.T) {
	f := newFixture(t)
	svc, _ := f.create(t, 11)

	res, err := f.svc.CustomCall(context.Background(), svc, "ping", map[string]any{"x": 1})
	if err != nil {
		t.Fatalf("CustomCall: %v", err)
	}
	if res.(map[string]any)["ok"] != "ping" {
		t.Fatalf("result = %v", res)
	}
	if f.adapter.calls[0].Params["x"] != 1 {
		t.Fatalf("params = %v", f.adapter.calls[0].Params)
	}

	_, err = f.svc.CustomCall(context.Background(), svc, "reboot", nil)
	requireKind(t, err, KindUnsupported, CodeActionUnsupported)
}

func TestEventsCarryActor(t *testing.T) {
	f := newFixture(t)
	ctx := WithActor(context.Background(), "admin@example.com")
	order, _ := f.store.GetOrder(ctx, 11)
	svc, err := f.svc.Create(ctx, order)
	if err != nil {
		t.Fatal(err)
	}
	evts, err := f.svc.Events(ctx, svc.ID)
	if err != nil || len(evts) != 1 {
		t.Fatalf("Events = %v, %v", evts, err)
	}
	if evts[0].Actor != "admin@example.com" {
		t.Fatalf("actor = %q", evts[0].Actor)
	}
}

func TestInstallUninstall(t *testing.T) {
	f := newFixture(t)
	if err := f.svc.Install(context.Background()); err == nil {
		t.Fatal("expected error without migrator")
	}

	mig := &mockMigrator{}
	f.svc.migrator = mig
	if err := f.svc.Install(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := f.svc.Uninstall(context.Background()); err != nil {
		t.Fatal(err)
	}
	if mig.up != 1 || mig.down != 1 {
		t.Fatalf("up=%d down=%d", mig.up, mig.down)
	}

	mig.err = errBoom
	if err := f.svc.Install(context.Background()); !errors.Is(err, errBoom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}
