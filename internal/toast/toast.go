// Package toast renders transient user feedback for notification events.
package toast

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
)

// Level controls toast styling.
type Level string

const (
	Info    Level = "info"
	Success Level = "success"
	Error   Level = "error"
	Warning Level = "warning"
)

// ParseLevel maps a notification type to a toast level. Unknown values are Info.
func ParseLevel(s string) Level {
	switch Level(s) {
	case Success, Error, Warning:
		return Level(s)
	}
	return Info
}

// Toast is a single transient message.
type Toast struct {
	Level   Level
	Title   string
	Message string
	At      time.Time
}

// Notifier displays toasts.
type Notifier interface {
	Toast(t Toast)
}

// NotifierFunc is a function adapter for Notifier.
type NotifierFunc func(Toast)

func (f NotifierFunc) Toast(t Toast) {
	f(t)
}

// Discard drops every toast.
var Discard Notifier = NotifierFunc(func(Toast) {})

var (
	infoColor    = lipgloss.Color("#8B949E")
	successColor = lipgloss.Color("#22C55E")
	errorColor   = lipgloss.Color("#EF4444")
	warningColor = lipgloss.Color("#F59E0B")
	dimColor     = lipgloss.Color("#6B7280")

	levelStyles = map[Level]lipgloss.Style{
		Info:    lipgloss.NewStyle().Foreground(infoColor).Bold(true),
		Success: lipgloss.NewStyle().Foreground(successColor).Bold(true),
		Error:   lipgloss.NewStyle().Foreground(errorColor).Bold(true),
		Warning: lipgloss.NewStyle().Foreground(warningColor).Bold(true),
	}

	levelIcons = map[Level]string{
		Info:    "ℹ",
		Success: "✓",
		Error:   "✗",
		Warning: "!",
	}

	timeStyle  = lipgloss.NewStyle().Foreground(dimColor)
	titleStyle = lipgloss.NewStyle().Bold(true)
)

// Terminal writes styled toasts, one per line, to an io.Writer.
type Terminal struct {
	mu  sync.Mutex
	out io.Writer
}

// NewTerminal creates a Terminal notifier.
func NewTerminal(out io.Writer) *Terminal {
	return &Terminal{out: out}
}

// Toast renders t.
func (n *Terminal) Toast(t Toast) {
	n.mu.Lock()
	defer n.mu.Unlock()
	fmt.Fprintln(n.out, Render(t))
}

// Render formats a toast without writing it.
func Render(t Toast) string {
	style, ok := levelStyles[t.Level]
	if !ok {
		style = levelStyles[Info]
	}
	icon := levelIcons[t.Level]
	if icon == "" {
		icon = levelIcons[Info]
	}

	at := t.At
	if at.IsZero() {
		at = time.Now()
	}

	line := timeStyle.Render(at.Format("15:04:05")) + " " + style.Render(icon)
	if t.Title != "" {
		line += " " + titleStyle.Render(t.Title)
	}
	if t.Message != "" {
		line += " " + t.Message
	}
	return line
}
