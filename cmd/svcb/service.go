package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var serviceCmd = &cobra.Command{
	Use:     "service",
	Short:   "Administer backup services",
	GroupID: "admin",
}

var serviceShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show a service by its order",
	Args:  cobra.ExactArgs(1),
	RunE:  orderShowCmd.RunE,
}

var serviceUpdateCmd = &cobra.Command{
	Use:   "update <order-id>",
	Short: "Replace the service config",
	Long: `Replace the config of the service owned by an order.

The new config is built from --config (a JSON object) with --set pairs
applied on top. Values given to --set are parsed as JSON when possible:

  svcb service update 42 --set datastore=tank --set retention=14`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("config")
		sets, _ := cmd.Flags().GetStringToString("set")
		cfg, err := buildObject(raw, sets)
		if err != nil {
			return err
		}

		ok, err := apiClient.AdminUpdate(context.Background(), map[string]any{"order_id": id, "config": cfg})
		if err != nil {
			return err
		}
		printResult(ok)
		return nil
	},
}

var serviceCallCmd = &cobra.Command{
	Use:   "call <method> <order-id>",
	Short: "Call a plugin method on the service of an order",
	Long: `Forward a method to the plugin of the service owned by an order.
Every --param pair and --data key is passed to the plugin.

  svcb service call status 42
  svcb service call prune 42 --param keep_last=7`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[1])
		if err != nil {
			return err
		}
		raw, _ := cmd.Flags().GetString("data")
		params, _ := cmd.Flags().GetStringToString("param")
		data, err := buildObject(raw, params)
		if err != nil {
			return err
		}
		data["order_id"] = id

		result, err := apiClient.AdminCall(context.Background(), args[0], data)
		if err != nil {
			return err
		}
		printResult(result)
		return nil
	},
}

// buildObject decodes raw (a JSON object, may be empty) and applies sets on
// top. Set values that are valid JSON are decoded, others kept as strings.
func buildObject(raw string, sets map[string]string) (map[string]any, error) {
	obj := map[string]any{}
	if raw != "" {
		if err := json.Unmarshal([]byte(raw), &obj); err != nil || obj == nil {
			return nil, fmt.Errorf("expected a JSON object, got %q", raw)
		}
	}
	for k, v := range sets {
		var decoded any
		if err := json.Unmarshal([]byte(v), &decoded); err == nil {
			obj[k] = decoded
		} else {
			obj[k] = v
		}
	}
	return obj, nil
}

func init() {
	serviceUpdateCmd.Flags().String("config", "", "config as a JSON object")
	serviceUpdateCmd.Flags().StringToString("set", nil, "config key=value (repeatable)")
	serviceCallCmd.Flags().String("data", "", "parameters as a JSON object")
	serviceCallCmd.Flags().StringToString("param", nil, "parameter key=value (repeatable)")

	serviceCmd.AddCommand(serviceShowCmd, serviceUpdateCmd, serviceCallCmd)
}
