package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/svcbackup/internal/plugin"
)

var orderCmd = &cobra.Command{
	Use:     "order",
	Short:   "Drive order lifecycle events",
	GroupID: "orders",
}

var orderCreateCmd = &cobra.Command{
	Use:   "create <order-id>",
	Short: "Create the backup service of an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		svc, err := apiClient.CreateService(context.Background(), id)
		if err != nil {
			return err
		}
		printService(svc)
		return nil
	},
}

var orderShowCmd = &cobra.Command{
	Use:   "show <order-id>",
	Short: "Show the backup service of an order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		svc, err := apiClient.GetService(context.Background(), id)
		if err != nil {
			return err
		}
		printService(svc)
		return nil
	},
}

var orderActionCmd = &cobra.Command{
	Use:   "action <order-id> <event>",
	Short: "Apply a lifecycle event (" + strings.Join(plugin.LifecycleMethods, ", ") + ")",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		ok, err := apiClient.Action(context.Background(), id, args[1])
		if err != nil {
			return err
		}
		printResult(ok)
		return nil
	},
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func init() {
	orderCmd.AddCommand(orderCreateCmd, orderShowCmd, orderActionCmd)
}
