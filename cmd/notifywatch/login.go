package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/credential"
)

func newLoginCmd(opts *options) *cobra.Command {
	var userID, token string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Store a session token in the system keyring",
		Long:  "Store the session token for a user in the system keyring. The token is read from --token or, when omitted, from the first line of stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := resolveUser(opts, userID)
			if err != nil {
				return err
			}

			if token == "" {
				fmt.Fprint(cmd.ErrOrStderr(), "token: ")
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && line == "" {
					return fmt.Errorf("reading token: %w", err)
				}
				token = strings.TrimSpace(line)
			}
			if token == "" {
				return errors.New("empty token")
			}

			if err := opts.creds.Set(credential.TokenKey(user), token); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token stored for %s\n", user)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to session.user_id from the config)")
	cmd.Flags().StringVar(&token, "token", "", "session token")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	var userID string

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Remove the stored session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := resolveUser(opts, userID)
			if err != nil {
				return err
			}
			if err := opts.creds.Delete(credential.TokenKey(user)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "token removed for %s\n", user)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "user id (defaults to session.user_id from the config)")
	return cmd
}

// resolveUser prefers the flag and falls back to the config file.
func resolveUser(opts *options, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	cfg, err := config.LoadClient(opts.configPath)
	if err != nil {
		return "", fmt.Errorf("no --user given and config unreadable: %w", err)
	}
	if cfg.Session.UserID == "" {
		return "", errors.New("no --user given and session.user_id is empty")
	}
	return cfg.Session.UserID, nil
}
