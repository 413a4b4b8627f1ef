// Package logging provides the colored console handler used for every log line.
//
// Output: 15:04:05 [WARN] [PLAYBACK] Message guild=123 track=abc
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

var (
	debugColor = color.New(color.FgHiBlack)
	infoColor  = color.New(color.FgWhite)
	warnColor  = color.New(color.FgHiYellow)
	errorColor = color.New(color.FgHiRed)
	attrColor  = color.New(color.FgHiBlack)

	componentColors = map[string]*color.Color{
		"PLAYBACK":   color.New(color.FgHiMagenta),
		"DISPATCHER": color.New(color.FgMagenta),
		"MUSIC":      color.New(color.FgHiCyan),
		"VOICE":      color.New(color.FgHiBlue),
		"RESOLVER":   color.New(color.FgBlue),
		"DISCORD":    color.New(color.FgHiGreen),
		"STORAGE":    color.New(color.FgHiBlack),
		"JOBS":       color.New(color.FgGreen),
	}
)

// ParseLevel maps debug, info, warn and error to slog levels; anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup installs a console logger on stdout as the slog default and returns it.
func Setup(level string) *slog.Logger {
	l := slog.New(NewHandler(os.Stdout, ParseLevel(level)))
	slog.SetDefault(l)
	return l
}

type Handler struct {
	w         io.Writer
	level     slog.Leveler
	mu        *sync.Mutex
	component string
	attrs     []slog.Attr
}

func NewHandler(w io.Writer, level slog.Leveler) *Handler {
	return &Handler{w: w, level: level, mu: &sync.Mutex{}}
}

func (h *Handler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	component := h.component
	var b strings.Builder

	appendAttr := func(a slog.Attr) {
		if a.Key == "component" {
			component = strings.ToUpper(a.Value.String())
			return
		}
		if a.Equal(slog.Attr{}) {
			return
		}
		fmt.Fprintf(&b, " %s=%s", a.Key, quote(a.Value.Resolve().String()))
	}
	for _, a := range h.attrs {
		appendAttr(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		appendAttr(a)
		return true
	})

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	levelStr, levelColor := levelStyle(r.Level)

	line := ts.Format("15:04:05")
	if levelStr != "INFO" {
		line += " " + levelColor.Sprintf("[%s]", levelStr)
	}
	if component != "" {
		c, ok := componentColors[component]
		if !ok {
			c = color.New(color.FgCyan)
		}
		line += " " + c.Sprintf("[%s] %s", component, r.Message)
	} else {
		line += " " + levelColor.Sprint(r.Message)
	}
	if b.Len() > 0 {
		line += attrColor.Sprint(b.String())
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, line+"\n")
	return err
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = slices.Clone(h.attrs)
	for _, a := range attrs {
		if a.Key == "component" {
			next.component = strings.ToUpper(a.Value.String())
			continue
		}
		next.attrs = append(next.attrs, a)
	}
	return &next
}

// WithGroup is not supported; attributes stay flat.
func (h *Handler) WithGroup(string) slog.Handler { return h }

func levelStyle(l slog.Level) (string, *color.Color) {
	switch {
	case l >= slog.LevelError:
		return "ERROR", errorColor
	case l >= slog.LevelWarn:
		return "WARN", warnColor
	case l >= slog.LevelInfo:
		return "INFO", infoColor
	default:
		return "DEBUG", debugColor
	}
}

func quote(s string) string {
	if s == "" || strings.ContainsAny(s, " \t\"=") {
		return fmt.Sprintf("%q", s)
	}
	return s
}
