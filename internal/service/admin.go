package service

import (
	"context"
	"encoding/json"
	"math"
	"strconv"
)

// Admin is the administrator API of the module.
type Admin struct {
	svc *Service
}

// NewAdmin returns the admin API backed by svc.
func NewAdmin(svc *Service) *Admin {
	return &Admin{svc: svc}
}

// Update replaces the config of the service owned by data["order_id"]. A
// config that is not a JSON object is ignored.
func (a *Admin) Update(ctx context.Context, data map[string]any) (bool, error) {
	orderID, err := orderIDFrom(data)
	if err != nil {
		return false, err
	}
	if cfg, ok := data["config"].(map[string]any); ok {
		if err := a.svc.UpdateConfig(ctx, orderID, cfg); err != nil {
			return false, err
		}
	}
	return true, nil
}

// Call forwards method to the plugin of the service owned by
// args[0]["order_id"]. The whole argument map is passed as params.
func (a *Admin) Call(ctx context.Context, method string, args ...map[string]any) (any, error) {
	if len(args) == 0 || args[0] == nil {
		return nil, &Error{Kind: KindInvalid, Code: CodeMissingArguments, Message: "API call is missing arguments"}
	}
	data := args[0]

	orderID, err := orderIDFrom(data)
	if err != nil {
		return nil, err
	}
	svc, err := a.svc.GetByOrderID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return a.svc.CustomCall(ctx, svc, method, data)
}

func orderIDFrom(data map[string]any) (int64, error) {
	v, ok := data["order_id"]
	if !ok || v == nil {
		return 0, invalidf("Order ID is required")
	}
	var (
		id  int64
		err error
	)
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, invalidf("Order ID must be an integer")
		}
		id = int64(n)
	case int:
		id = int64(n)
	case int64:
		id = n
	case json.Number:
		id, err = n.Int64()
	case string:
		id, err = strconv.ParseInt(n, 10, 64)
	default:
		return 0, invalidf("Order ID must be an integer")
	}
	if err != nil {
		return 0, invalidf("Order ID must be an integer")
	}
	return id, nil
}
