package main

import (
	"context"

	"github.com/spf13/cobra"
)

var eventsCmd = &cobra.Command{
	Use:     "events <service-id>",
	Short:   "Show the event log of a service",
	GroupID: "admin",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		evts, err := apiClient.GetEvents(context.Background(), id)
		if err != nil {
			return err
		}
		printEvents(evts)
		return nil
	},
}
