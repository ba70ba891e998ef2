package model

import (
	"encoding/json"
	"time"
)

// OrderStatus mirrors the order engine's status column.
type OrderStatus string

const (
	OrderPendingSetup OrderStatus = "pending_setup"
	OrderActive       OrderStatus = "active"
	OrderSuspended    OrderStatus = "suspended"
	OrderCanceled     OrderStatus = "canceled"
)

// Order is a client's purchase record. ServiceID links the order to the
// service row it owns; nil until the service is created.
type Order struct {
	ID          int64       `json:"id"`
	ClientID    int64       `json:"client_id"`
	ProductID   int64       `json:"product_id"`
	ServiceID   *int64      `json:"service_id,omitempty"`
	ServiceType string      `json:"service_type"`
	Title       string      `json:"title"`
	Status      OrderStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// APIMap is the order representation handed to plugin adapters.
func (o *Order) APIMap() map[string]any {
	m := map[string]any{
		"id":           o.ID,
		"client_id":    o.ClientID,
		"product_id":   o.ProductID,
		"service_type": o.ServiceType,
		"title":        o.Title,
		"status":       string(o.Status),
		"created_at":   o.CreatedAt,
		"updated_at":   o.UpdatedAt,
	}
	if o.ServiceID != nil {
		m["service_id"] = *o.ServiceID
	}
	return m
}

// Product is the catalogue entry an order was placed for.
type Product struct {
	ID     int64           `json:"id"`
	Title  string          `json:"title"`
	Type   string          `json:"type"`
	Config json.RawMessage `json:"config,omitempty"`
}

// PluginDefaults returns the plugin name and plugin config a new service
// inherits from its product. Missing or malformed values are zero.
func (p *Product) PluginDefaults() (string, json.RawMessage) {
	cfg := decodeObject(p.Config)
	name, _ := cfg["plugin"].(string)
	pc, ok := cfg["plugin_config"].(map[string]any)
	if !ok {
		return name, nil
	}
	raw, err := json.Marshal(pc)
	if err != nil {
		return name, nil
	}
	return name, raw
}
