package main

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rickgao/jobportal-notify/internal/api"
	"github.com/rickgao/jobportal-notify/internal/protocol"
)

func newSendCmd(opts *options) *cobra.Command {
	var (
		server string
		token  string
		userID string
		level  string
	)

	cmd := &cobra.Command{
		Use:   "send <message...>",
		Short: "Create a notification through the server's publish endpoint",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if server == "" {
				server = os.Getenv("NOTIFY_API_URL")
			}
			if token == "" {
				token = os.Getenv("NOTIFY_PUBLISH_TOKEN")
			}
			if server == "" {
				return errors.New("--server or NOTIFY_API_URL is required")
			}
			if !protocol.Level(level).Valid() {
				return fmt.Errorf("invalid --level %q", level)
			}

			user, err := resolveUser(opts, userID)
			if err != nil {
				return err
			}

			client := api.NewClient(server, token, api.WithTimeout(10*time.Second))
			n, err := client.Notify(cmd.Context(), user, protocol.Notification{
				Type:    protocol.Level(level),
				Message: strings.Join(args, " "),
			})
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "sent %s to %s\n", n.ID, user)
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "", "server base URL, e.g. http://localhost:5000 (env NOTIFY_API_URL)")
	cmd.Flags().StringVar(&token, "token", "", "publish token (env NOTIFY_PUBLISH_TOKEN)")
	cmd.Flags().StringVar(&userID, "user", "", "recipient user id (defaults to session.user_id from the config)")
	cmd.Flags().StringVar(&level, "level", string(protocol.LevelInfo), "info, success, error or warning")
	return cmd
}
