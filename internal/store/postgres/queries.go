package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/alfredjeanlab/svcbackup/internal/model"
)

// serviceColumns is the column list used for SELECT statements on the service table.
const serviceColumns = `id, client_id, config, plugin, plugin_config, created_at, updated_at`

// orderColumns is the column list used for SELECT statements on client_orders.
const orderColumns = `id, client_id, product_id, service_id, service_type, title,
	status, created_at, updated_at`

// executor is the interface satisfied by both *sql.DB and *sql.Tx.
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func queryCreateService(ctx context.Context, db executor, s *model.Service) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO service_proxmoxbackup (
			client_id, config, plugin, plugin_config, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		s.ClientID,
		jsonbBytes(s.Config),
		nullString(s.Plugin),
		jsonbBytes(s.PluginConfig),
		s.CreatedAt,
		s.UpdatedAt,
	).Scan(&s.ID)
}

func queryGetService(ctx context.Context, db executor, id int64) (*model.Service, error) {
	row := db.QueryRowContext(ctx, `SELECT `+serviceColumns+` FROM service_proxmoxbackup WHERE id = $1`, id)
	return scanService(row)
}

func queryListServices(ctx context.Context, db executor) ([]*model.Service, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+serviceColumns+` FROM service_proxmoxbackup ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanServices(rows)
}

func queryTouchService(ctx context.Context, db executor, id int64, at time.Time) error {
	res, err := db.ExecContext(ctx, `UPDATE service_proxmoxbackup SET updated_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryUpdateServiceConfig(ctx context.Context, db executor, id int64, config json.RawMessage, at time.Time) error {
	res, err := db.ExecContext(ctx, `
		UPDATE service_proxmoxbackup SET config = $2, updated_at = $3
		WHERE id = $1`,
		id, jsonbBytes(config), at,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryDeleteService(ctx context.Context, db executor, id int64) error {
	res, err := db.ExecContext(ctx, `DELETE FROM service_proxmoxbackup WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryGetOrder(ctx context.Context, db executor, id int64) (*model.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM client_orders WHERE id = $1`, id)
	return scanOrder(row)
}

func queryGetOrderByService(ctx context.Context, db executor, serviceID int64) (*model.Order, error) {
	row := db.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM client_orders WHERE service_id = $1`, serviceID)
	return scanOrder(row)
}

// querySwapOrderService is a compare-and-set on client_orders.service_id.
func querySwapOrderService(ctx context.Context, db executor, orderID int64, old, next *int64) error {
	res, err := db.ExecContext(ctx, `
		UPDATE client_orders SET service_id = $3, updated_at = NOW()
		WHERE id = $1 AND service_id IS NOT DISTINCT FROM $2`,
		orderID, nullInt64Ptr(old), nullInt64Ptr(next),
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func queryGetProduct(ctx context.Context, db executor, id int64) (*model.Product, error) {
	row := db.QueryRowContext(ctx, `SELECT id, title, type, config FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

func queryRecordEvent(ctx context.Context, db executor, e *model.Event) error {
	return db.QueryRowContext(ctx, `
		INSERT INTO service_events (service_id, topic, actor, payload)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at`,
		e.ServiceID, e.Topic, nullString(e.Actor), jsonbBytes(e.Payload),
	).Scan(&e.ID, &e.CreatedAt)
}

func queryGetEvents(ctx context.Context, db executor, serviceID int64) ([]*model.Event, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, topic, service_id, actor, payload, created_at
		FROM service_events WHERE service_id = $1
		ORDER BY created_at, id`, serviceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanEvents(rows)
}

// expectOneRow maps a zero-row write to sql.ErrNoRows.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
