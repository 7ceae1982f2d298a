package main

import (
	"github.com/spf13/cobra"

	"github.com/rickgao/jobportal-notify/internal/credential"
)

type options struct {
	configPath string
	creds      *credential.Store
}

func newRootCmd() *cobra.Command {
	opts := &options{creds: credential.New()}

	cmd := &cobra.Command{
		Use:           "notifywatch",
		Short:         "Watch job portal notifications from the terminal",
		Long:          "notifywatch keeps a reconnecting notification channel open, prints incoming notifications as toasts, and lets you mark or delete them.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "configs/notifywatch.local.yaml", "path to config file")

	cmd.AddCommand(newWatchCmd(opts))
	cmd.AddCommand(newLoginCmd(opts))
	cmd.AddCommand(newLogoutCmd(opts))
	cmd.AddCommand(newSendCmd(opts))
	cmd.AddCommand(newVersionCmd())
	return cmd
}
