package events

import (
	"context"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// Topic prefix shared by every service lifecycle subject.
const TopicPrefix = "svcbackup.service."

// Event topic constants
const (
	TopicServiceCreated       = TopicPrefix + "created"
	TopicServiceActivated     = TopicPrefix + "activated"
	TopicServiceRenewed       = TopicPrefix + "renewed"
	TopicServiceSuspended     = TopicPrefix + "suspended"
	TopicServiceUnsuspended   = TopicPrefix + "unsuspended"
	TopicServiceCanceled      = TopicPrefix + "canceled"
	TopicServiceUncanceled    = TopicPrefix + "uncanceled"
	TopicServiceDeleted       = TopicPrefix + "deleted"
	TopicServiceConfigUpdated = TopicPrefix + "config_updated"
	TopicPluginCalled         = TopicPrefix + "plugin_called"
)

// ActionTopics maps lifecycle action names to the topic they emit.
var ActionTopics = map[string]string{
	"activate":  TopicServiceActivated,
	"renew":     TopicServiceRenewed,
	"suspend":   TopicServiceSuspended,
	"unsuspend": TopicServiceUnsuspended,
	"cancel":    TopicServiceCanceled,
	"uncancel":  TopicServiceUncanceled,
	"delete":    TopicServiceDeleted,
}

// Event types

type ServiceCreated struct {
	Service *model.Service `json:"service"`
	OrderID int64          `json:"order_id"`
}

// ServiceAction is emitted for every lifecycle action applied to a service.
type ServiceAction struct {
	Action    string         `json:"action"`
	OrderID   int64          `json:"order_id"`
	Service   *model.Service `json:"service,omitempty"`
	ServiceID int64          `json:"service_id"`
}

type ServiceConfigUpdated struct {
	ServiceID int64          `json:"service_id"`
	OrderID   int64          `json:"order_id"`
	Config    map[string]any `json:"config"`
}

// PluginCalled records a delegated adapter call and its outcome.
type PluginCalled struct {
	CallID    string `json:"call_id"`
	ServiceID int64  `json:"service_id"`
	Plugin    string `json:"plugin"`
	Method    string `json:"method"`
	Error     string `json:"error,omitempty"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}
