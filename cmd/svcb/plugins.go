package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var pluginsCmd = &cobra.Command{
	Use:     "plugins",
	Short:   "List the plugin adapters registered on the server",
	GroupID: "admin",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		names, err := apiClient.ListPlugins(context.Background())
		if err != nil {
			return err
		}
		if jsonOutput {
			if names == nil {
				names = []string{}
			}
			printJSON(names)
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}
