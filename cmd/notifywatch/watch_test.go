package main

import (
	"bytes"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/99designs/keyring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/jobportal-notify/internal/config"
	"github.com/rickgao/jobportal-notify/internal/connection"
	"github.com/rickgao/jobportal-notify/internal/credential"
	"github.com/rickgao/jobportal-notify/internal/notification"
	"github.com/rickgao/jobportal-notify/internal/protocol"
	"github.com/rickgao/jobportal-notify/internal/toast"
)

type fakeChannel struct {
	reconnects int
	stats      connection.ManagerStats
}

func (f *fakeChannel) ReconnectNow()                  { f.reconnects++ }
func (f *fakeChannel) Stats() connection.ManagerStats { return f.stats }

func newTestConsole(t *testing.T) (*console, *bytes.Buffer, *[]protocol.ClientMessage, *fakeChannel) {
	t.Helper()

	var sent []protocol.ClientMessage
	svc := notification.NewService(notification.NewStore(), notification.SenderFunc(func(m protocol.ClientMessage) bool {
		sent = append(sent, m)
		return true
	}))

	ts := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	svc.HandleFrame(protocol.NotificationFrame{Notification: protocol.Notification{ID: "n1", Type: protocol.LevelInfo, Message: "first", Timestamp: ts}})
	svc.HandleFrame(protocol.NotificationFrame{Notification: protocol.Notification{ID: "n2", Type: protocol.LevelSuccess, Message: "second", Timestamp: ts.Add(time.Minute)}})

	out := &bytes.Buffer{}
	ch := &fakeChannel{stats: connection.ManagerStats{State: connection.StateOpen, Attempts: 1}}
	return &console{svc: svc, channel: ch, out: out}, out, &sent, ch
}

func TestConsole_List(t *testing.T) {
	c, out, _, _ := newTestConsole(t)

	assert.False(t, c.exec("list"))

	text := out.String()
	assert.Contains(t, text, "n1")
	assert.Contains(t, text, "2 unread")
	assert.Less(t, bytes.Index(out.Bytes(), []byte("n2")), bytes.Index(out.Bytes(), []byte("n1")), "newest first")
}

func TestConsole_ReadAndDelete(t *testing.T) {
	c, out, sent, _ := newTestConsole(t)

	c.exec("read n1")
	assert.Equal(t, 1, c.svc.Store().UnreadCount())

	c.exec("delete n2")
	assert.Equal(t, 1, c.svc.Store().Len())
	assert.Equal(t, 0, c.svc.Store().UnreadCount())

	c.exec("read missing")
	assert.Contains(t, out.String(), "no notification missing")

	require.Len(t, *sent, 2)
	assert.Equal(t, protocol.MarkRead{NotificationID: "n1"}, (*sent)[0])
	assert.Equal(t, protocol.DeleteNotification{NotificationID: "n2"}, (*sent)[1])
}

func TestConsole_ReadAllAndClear(t *testing.T) {
	c, out, sent, _ := newTestConsole(t)

	c.exec("read all")
	assert.Contains(t, out.String(), "2 marked read")
	assert.Equal(t, 0, c.svc.Store().UnreadCount())

	c.exec("clear")
	assert.Contains(t, out.String(), "2 removed")
	assert.Equal(t, 0, c.svc.Store().Len())

	require.Len(t, *sent, 2)
	assert.Equal(t, protocol.MarkAllRead{}, (*sent)[0])
	assert.Equal(t, protocol.ClearAllNotifications{}, (*sent)[1])
}

func TestConsole_ChannelCommands(t *testing.T) {
	c, out, _, ch := newTestConsole(t)

	c.exec("status")
	assert.Contains(t, out.String(), "attempts 1")

	c.exec("reconnect")
	assert.Equal(t, 1, ch.reconnects)

	assert.True(t, c.exec("quit"))
	assert.False(t, c.exec("bogus"))
	assert.Contains(t, out.String(), `unknown command "bogus"`)
}

func TestConsole_RunStopsAtQuit(t *testing.T) {
	c, _, sent, _ := newTestConsole(t)

	c.run(bytes.NewBufferString("read n1\nquit\nread n2\n"))

	assert.Len(t, *sent, 1)
}

func TestSessionToken(t *testing.T) {
	creds := credential.NewWithKeyring(keyring.NewArrayKeyring(nil))

	cfg := &config.ClientConfig{Session: config.SessionConfig{UserID: "u1", Token: "inline"}}
	tok, err := sessionToken(cfg, creds)
	require.NoError(t, err)
	assert.Equal(t, "inline", tok)

	cfg.Session.Token = ""
	_, err = sessionToken(cfg, creds)
	assert.ErrorContains(t, err, "notifywatch login")

	require.NoError(t, creds.Set(credential.TokenKey("u1"), "stored"))
	tok, err = sessionToken(cfg, creds)
	require.NoError(t, err)
	assert.Equal(t, "stored", tok)
}

func TestManagerConfig(t *testing.T) {
	cfg := &config.ClientConfig{}
	cfg.ApplyDefaults()

	mc := managerConfig(cfg, "ws://example.test/ws")
	assert.Equal(t, "ws://example.test/ws", mc.Client.URL)
	assert.Contains(t, mc.Client.UserAgent, "jobportal-notify/")
	assert.Equal(t, config.DefaultPingInterval, mc.Client.PingInterval)
	assert.Equal(t, config.DefaultReconnectFactor, mc.ReconnectFactor)
	assert.Equal(t, config.DefaultReconnectMax, mc.ReconnectMax)
}

func TestVersionCommand(t *testing.T) {
	cmd := newRootCmd()
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, out.String(), "notifywatch dev")
}

// writeRecorder records each Write and flags overlapping calls.
type writeRecorder struct {
	inFlight atomic.Int32
	overlap  atomic.Bool

	mu     sync.Mutex
	writes []string
}

func (r *writeRecorder) Write(p []byte) (int, error) {
	if r.inFlight.Add(1) > 1 {
		r.overlap.Store(true)
	}
	defer r.inFlight.Add(-1)

	time.Sleep(50 * time.Microsecond)
	r.mu.Lock()
	r.writes = append(r.writes, string(p))
	r.mu.Unlock()
	return len(p), nil
}

func (r *writeRecorder) Writes() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func TestConsole_ListIsOneWrite(t *testing.T) {
	c, _, _, _ := newTestConsole(t)
	rec := &writeRecorder{}
	c.out = rec

	c.exec("list")

	writes := rec.Writes()
	require.Len(t, writes, 1)
	assert.Equal(t, 3, strings.Count(writes[0], "\n"), "two notifications plus the unread line")
}

func TestConsole_SharesWriterWithToasts(t *testing.T) {
	c, _, _, _ := newTestConsole(t)
	rec := &writeRecorder{}
	out := &lockedWriter{w: rec}
	c.out = out
	term := toast.NewTerminal(out)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			c.exec("list")
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			term.Toast(toast.Toast{Level: toast.Info, Message: "New job match"})
		}
	}()
	wg.Wait()

	assert.False(t, rec.overlap.Load(), "writes overlapped")
	for _, w := range rec.Writes() {
		if strings.Contains(w, "New job match") {
			assert.NotContains(t, w, "unread", "toast merged into console output")
		}
	}
	assert.Len(t, rec.Writes(), 100)
}
