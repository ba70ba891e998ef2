package model

import (
	"encoding/json"
	"time"
)

// Service is a provisioned backup service, one row of service_proxmoxbackup.
// Config and PluginConfig are opaque JSON objects owned by the admin and the
// plugin adapter respectively.
type Service struct {
	ID           int64           `json:"id"`
	ClientID     int64           `json:"client_id"`
	Config       json.RawMessage `json:"config,omitempty"`
	Plugin       string          `json:"plugin,omitempty"`
	PluginConfig json.RawMessage `json:"plugin_config,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// ConfigMap decodes Config. Anything that is not a JSON object yields an
// empty map.
func (s *Service) ConfigMap() map[string]any {
	return decodeObject(s.Config)
}

// PluginConfigMap decodes PluginConfig with the same rules as ConfigMap.
func (s *Service) PluginConfigMap() map[string]any {
	return decodeObject(s.PluginConfig)
}

// HasPlugin reports whether lifecycle actions should be delegated.
func (s *Service) HasPlugin() bool {
	return s.Plugin != ""
}

func decodeObject(raw json.RawMessage) map[string]any {
	out := map[string]any{}
	if len(raw) == 0 || !json.Valid(raw) {
		return out
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil || m == nil {
		return out
	}
	return m
}
