package postgres

import (
	"database/sql"
	"encoding/json"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// scannable is the interface satisfied by both *sql.Row and *sql.Rows.
type scannable interface {
	Scan(dest ...any) error
}

// scanService scans a single row into a model.Service.
// The row must contain columns in the order defined by serviceColumns.
func scanService(row scannable) (*model.Service, error) {
	var s model.Service
	var (
		clientID     sql.NullInt64
		config       []byte
		plugin       sql.NullString
		pluginConfig []byte
	)

	err := row.Scan(
		&s.ID,
		&clientID,
		&config,
		&plugin,
		&pluginConfig,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	s.ClientID = clientID.Int64
	s.Plugin = plugin.String
	if len(config) > 0 {
		s.Config = json.RawMessage(config)
	}
	if len(pluginConfig) > 0 {
		s.PluginConfig = json.RawMessage(pluginConfig)
	}
	return &s, nil
}

// scanServices scans multiple rows into a slice of model.Service pointers.
func scanServices(rows *sql.Rows) ([]*model.Service, error) {
	var services []*model.Service
	for rows.Next() {
		s, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

// scanOrder scans a single row into a model.Order.
func scanOrder(row scannable) (*model.Order, error) {
	var o model.Order
	var (
		productID sql.NullInt64
		serviceID sql.NullInt64
	)
	err := row.Scan(
		&o.ID,
		&o.ClientID,
		&productID,
		&serviceID,
		&o.ServiceType,
		&o.Title,
		&o.Status,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.ProductID = productID.Int64
	if serviceID.Valid {
		id := serviceID.Int64
		o.ServiceID = &id
	}
	return &o, nil
}

// scanProduct scans a single row into a model.Product.
func scanProduct(row scannable) (*model.Product, error) {
	var p model.Product
	var config []byte
	if err := row.Scan(&p.ID, &p.Title, &p.Type, &config); err != nil {
		return nil, err
	}
	if len(config) > 0 {
		p.Config = json.RawMessage(config)
	}
	return &p, nil
}

// scanEvent scans a single row into a model.Event.
func scanEvent(row scannable) (*model.Event, error) {
	var e model.Event
	var (
		actor   sql.NullString
		payload []byte
	)
	err := row.Scan(&e.ID, &e.Topic, &e.ServiceID, &actor, &payload, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	e.Actor = actor.String
	if len(payload) > 0 {
		e.Payload = json.RawMessage(payload)
	}
	return &e, nil
}

// scanEvents scans multiple rows into a slice of model.Event pointers.
func scanEvents(rows *sql.Rows) ([]*model.Event, error) {
	var events []*model.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return events, nil
}

// nullString converts a string to sql.NullString; empty string is null.
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// nullInt64Ptr converts a *int64 to sql.NullInt64.
func nullInt64Ptr(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

// jsonbBytes converts json.RawMessage to a []byte suitable for JSONB columns.
func jsonbBytes(m json.RawMessage) []byte {
	if len(m) == 0 {
		return nil
	}
	return []byte(m)
}
