package service

import (
	"context"
	"fmt"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/events"
	"github.com/alfredjeanlab/svcbackup/internal/idgen"
	"github.com/alfredjeanlab/svcbackup/internal/metrics"
	"github.com/alfredjeanlab/svcbackup/internal/model"
	"github.com/alfredjeanlab/svcbackup/internal/plugin"
)

// callOnAdapter invokes method on the adapter named by svc.Plugin. It returns
// a nil result without error when the service uses no plugin or the plugin
// is not registered.
func (s *Service) callOnAdapter(ctx context.Context, svc *model.Service, order *model.Order, method string, params map[string]any) (any, error) {
	if !svc.HasPlugin() {
		return nil, nil
	}
	log := s.logger.With("service_id", svc.ID, "plugin", svc.Plugin, "method", method)

	if _, ok := s.plugins.Lookup(svc.Plugin); !ok {
		log.ErrorContext(ctx, fmt.Sprintf("Plugin %s was not found", svc.Plugin), "code", CodePluginNotFound)
		s.metrics.ObservePluginCall(svc.Plugin, method, metrics.ResultSkip, 0)
		return nil, nil
	}

	cfg := plugin.Merge(s.pluginDefaults[svc.Plugin], svc.PluginConfigMap())
	adapter, err := s.plugins.Open(ctx, svc.Plugin, cfg)
	if err != nil {
		s.metrics.ObservePluginCall(svc.Plugin, method, metrics.ResultError, 0)
		return nil, internal("failed to open plugin", err)
	}

	fn, ok := adapter.Method(method)
	if !ok {
		s.metrics.ObservePluginCall(svc.Plugin, method, metrics.ResultError, 0)
		return nil, &Error{
			Kind:    KindUnsupported,
			Code:    CodeActionUnsupported,
			Message: fmt.Sprintf("Plugin %s does not support action %s", svc.Plugin, method),
		}
	}

	call := &plugin.Call{
		ID:      idgen.MustCallID(),
		Method:  method,
		Service: s.ToAPIMap(svc),
		Order:   order.APIMap(),
		Params:  params,
	}
	log = log.With("call_id", call.ID)

	start := time.Now()
	result, err := fn(ctx, call)
	elapsed := time.Since(start)

	ev := events.PluginCalled{
		CallID:    call.ID,
		ServiceID: svc.ID,
		Plugin:    svc.Plugin,
		Method:    method,
	}
	if err != nil {
		ev.Error = err.Error()
		log.ErrorContext(ctx, "plugin call failed", "duration", elapsed, "error", err)
		s.metrics.ObservePluginCall(svc.Plugin, method, metrics.ResultError, elapsed)
	} else {
		log.InfoContext(ctx, "plugin call completed", "duration", elapsed)
		s.metrics.ObservePluginCall(svc.Plugin, method, metrics.ResultOK, elapsed)
	}
	s.recordAndPublish(ctx, events.TopicPluginCalled, svc.ID, ev)

	if err != nil {
		return nil, internal(fmt.Sprintf("plugin %s %s", svc.Plugin, method), err)
	}
	return result, nil
}
