package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/connection"
	"github.com/rickgao/jobportal-notify/internal/credential"
	"github.com/rickgao/jobportal-notify/internal/notification"
	"github.com/rickgao/jobportal-notify/internal/toast"
	"github.com/rickgao/jobportal-notify/internal/version"
)

func newWatchCmd(opts *options) *cobra.Command {
	var quiet bool

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Open the notification channel and print notifications as they arrive",
		Long:  "Open the notification channel and print notifications as they arrive. Type `help` for the commands accepted on stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClientAndValidate(opts.configPath)
			if err != nil {
				return err
			}

			token, err := sessionToken(cfg, opts.creds)
			if err != nil {
				return err
			}

			level, _ := config.ParseLogLevel(cfg.Log.Level)
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{
				Level: level,
			}))

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			var stdin io.Reader = cmd.InOrStdin()
			if quiet {
				stdin = nil
			}
			return watch(ctx, cfg, token, stdin, cmd.OutOrStdout(), logger)
		},
	}
	cmd.Flags().BoolVar(&quiet, "no-input", false, "do not read commands from stdin")
	return cmd
}

// sessionToken prefers the config value and falls back to the keyring.
func sessionToken(cfg *config.ClientConfig, creds *credential.Store) (string, error) {
	if cfg.Session.Token != "" {
		return cfg.Session.Token, nil
	}
	token, err := creds.Get(credential.TokenKey(cfg.Session.UserID))
	if errors.Is(err, credential.ErrNotFound) {
		return "", fmt.Errorf("no token for %s: run `notifywatch login` or set session.token", cfg.Session.UserID)
	}
	return token, err
}

// managerConfig maps client configuration onto the connection manager.
func managerConfig(cfg *config.ClientConfig, url string) connection.ManagerConfig {
	cc := cfg.Connection
	return connection.ManagerConfig{
		Client: connection.ClientConfig{
			URL:            url,
			UserAgent:      version.UserAgent(),
			ConnectTimeout: cc.ConnectTimeout,
			PingInterval:   cc.PingInterval,
			WriteTimeout:   cc.WriteTimeout,
			BufferSize:     cc.BufferSize,
		},
		ReconnectInitial: cc.ReconnectInitial,
		ReconnectFactor:  cc.ReconnectFactor,
		ReconnectMax:     cc.ReconnectMax,
	}
}

func watch(ctx context.Context, cfg *config.ClientConfig, token string, stdin io.Reader, out io.Writer, logger *slog.Logger) error {
	url := config.ResolveURL(cfg.Endpoint, os.Getenv)

	// Toasts arrive on the connection goroutine while the console writes
	// from its own.
	out = &lockedWriter{w: out}

	svc := notification.NewService(notification.NewStore(), nil,
		notification.WithNotifier(toast.NewTerminal(out)),
		notification.WithLogger(logger),
	)

	mgr := connection.NewManager(
		managerConfig(cfg, url),
		connection.Session{UserID: cfg.Session.UserID, Token: token},
		nil,
		svc.HandleFrame,
		logger,
	)
	svc.SetSender(mgr)

	logger.Info("connecting", "url", url, "user_id", cfg.Session.UserID)
	mgr.Connect()
	defer mgr.Close()

	done := ctx.Done()
	if stdin != nil {
		quit := make(chan struct{})
		c := &console{svc: svc, channel: mgr, out: out}
		go func() {
			c.run(stdin)
			close(quit)
		}()
		select {
		case <-done:
		case <-quit:
		}
		return nil
	}

	<-done
	return nil
}

// lockedWriter serializes writes from concurrent goroutines.
type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}

// channelControl is the part of the connection manager the console drives.
type channelControl interface {
	ReconnectNow()
	Stats() connection.ManagerStats
}

// console executes line commands against the local notification list.
type console struct {
	svc     *notification.Service
	channel channelControl
	out     io.Writer
}

// run reads commands until EOF or quit.
func (c *console) run(in io.Reader) {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if c.exec(scanner.Text()) {
			return
		}
	}
}

// exec runs one command line and reports whether the console should exit.
// A command's output reaches c.out in a single Write.
func (c *console) exec(line string) bool {
	var buf bytes.Buffer
	quit := c.execTo(&buf, line)
	if buf.Len() > 0 {
		c.out.Write(buf.Bytes())
	}
	return quit
}

func (c *console) execTo(w io.Writer, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch cmd, args := fields[0], fields[1:]; cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprintln(w, consoleHelp)
	case "list", "ls":
		c.list(w)
	case "read":
		if len(args) != 1 {
			fmt.Fprintln(w, "usage: read <id>|all")
			break
		}
		if args[0] == "all" {
			fmt.Fprintf(w, "%d marked read\n", c.svc.MarkAllAsRead())
			break
		}
		if !c.svc.MarkAsRead(args[0]) {
			fmt.Fprintf(w, "no notification %s\n", args[0])
		}
	case "delete", "rm":
		if len(args) != 1 {
			fmt.Fprintln(w, "usage: delete <id>")
			break
		}
		if !c.svc.Delete(args[0]) {
			fmt.Fprintf(w, "no notification %s\n", args[0])
		}
	case "clear":
		fmt.Fprintf(w, "%d removed\n", c.svc.ClearAll())
	case "status":
		st := c.channel.Stats()
		fmt.Fprintf(w, "channel %s, attempts %d, reconnects %d, next delay %s, unread %d\n",
			st.State, st.Attempts, st.Reconnects, st.NextDelay, c.svc.Store().UnreadCount())
	case "reconnect":
		c.channel.ReconnectNow()
	default:
		fmt.Fprintf(w, "unknown command %q, try help\n", cmd)
	}
	return false
}

func (c *console) list(w io.Writer) {
	snap := c.svc.Store().Snapshot()
	if len(snap.Notifications) == 0 {
		fmt.Fprintln(w, "no notifications")
		return
	}
	for _, n := range snap.Notifications {
		mark := "*"
		if n.Read {
			mark = " "
		}
		fmt.Fprintf(w, "%s %s  %-7s %s  %s\n", mark, n.ID, n.Type, n.Timestamp.Local().Format("Jan 02 15:04"), n.Message)
	}
	fmt.Fprintf(w, "%d unread\n", snap.UnreadCount)
}

const consoleHelp = `commands:
  list              show notifications, newest first (* = unread)
  read <id>|all     mark one or every notification read
  delete <id>       remove one notification
  clear             remove every notification
  status            show channel state
  reconnect         reconnect now with a fresh backoff
  quit              exit`
