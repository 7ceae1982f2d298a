package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rickgao/jobportal-notify/internal/version"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show notifywatch version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Fprintf(cmd.OutOrStdout(), "notifywatch %s\n", version.String())
			return nil
		},
	}
}
