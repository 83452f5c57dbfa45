package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fatih/color"
)

// prettyHandler renders records as one key=value line for local development:
//
//	ts=15:04:05.000 lvl=[INFO] msg=http.request method=GET path=/api/bugs status=200 ...
type prettyHandler struct {
	w      io.Writer
	opts   slog.HandlerOptions
	attrs  []slog.Attr
	groups []string
	color  bool
	mu     *sync.Mutex
}

func newPrettyHandler(w io.Writer, opts *slog.HandlerOptions, colored bool) slog.Handler {
	h := &prettyHandler{
		w:     w,
		color: colored,
		mu:    &sync.Mutex{},
	}
	if opts != nil {
		h.opts = *opts
	}
	return h
}

func (h *prettyHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

func (h *prettyHandler) Handle(_ context.Context, r slog.Record) error {
	var b strings.Builder

	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	b.WriteString("ts=")
	b.WriteString(h.paint(ts.Format("15:04:05.000"), color.Faint))
	b.WriteString(" lvl=")
	b.WriteString(h.levelTag(r.Level))
	b.WriteString(" msg=")
	b.WriteString(h.paint(quoteIfNeeded(stripANSI(r.Message)), color.Bold))

	if h.opts.AddSource && r.PC != 0 {
		frames := runtime.CallersFrames([]uintptr{r.PC})
		frame, _ := frames.Next()
		if frame.File != "" {
			b.WriteString(" src=")
			b.WriteString(h.paint(fmt.Sprintf("%s:%d", filepath.Base(frame.File), frame.Line), color.Faint))
		}
	}

	for _, a := range h.attrs {
		h.appendAttr(&b, a, "")
	}
	r.Attrs(func(a slog.Attr) bool {
		h.appendAttr(&b, a, "")
		return true
	})

	b.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	_, err := io.WriteString(h.w, b.String())
	return err
}

func (h *prettyHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *prettyHandler) WithGroup(name string) slog.Handler {
	if strings.TrimSpace(name) == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string{}, h.groups...), name)
	return &cp
}

func (h *prettyHandler) appendAttr(b *strings.Builder, a slog.Attr, parent string) {
	a.Value = a.Value.Resolve()
	if a.Equal(slog.Attr{}) {
		return
	}

	key := strings.TrimSpace(a.Key)
	if key == "" {
		return
	}

	fullKey := key
	if parent != "" {
		fullKey = parent + "." + key
	} else if len(h.groups) > 0 {
		fullKey = strings.Join(h.groups, ".") + "." + key
	}

	if a.Value.Kind() == slog.KindGroup {
		for _, ga := range a.Value.Group() {
			h.appendAttr(b, ga, fullKey)
		}
		return
	}

	b.WriteByte(' ')
	b.WriteString(remapPrettyKey(fullKey))
	b.WriteByte('=')
	b.WriteString(h.prettyValue(fullKey, a.Value))
}

func (h *prettyHandler) prettyValue(key string, v slog.Value) string {
	switch key {
	case "method":
		m := strings.ToUpper(strings.TrimSpace(v.String()))
		return h.paint(m, methodColor(m))
	case "path":
		return h.paint(quoteIfNeeded(stripANSI(v.String())), color.FgCyan)
	case "status":
		if n, ok := valueToInt64(v); ok {
			return h.paint(strconv.FormatInt(n, 10), statusColor(int(n)))
		}
	case "status_class":
		class := strings.TrimSpace(v.String())
		return h.paint(class, classColor(class))
	case "duration_ms":
		if n, ok := valueToInt64(v); ok {
			return h.paint(strconv.FormatInt(n, 10)+"ms", durationColor(n))
		}
	case "result":
		res := strings.ToLower(strings.TrimSpace(v.String()))
		return h.paint(res, resultColor(res))
	}

	// Attribute values may carry client input (user agents, paths).
	return quoteIfNeeded(stripANSI(valueToString(v)))
}

func remapPrettyKey(k string) string {
	switch k {
	case "status_class":
		return "class"
	case "duration_ms":
		return "duration"
	default:
		return k
	}
}

func (h *prettyHandler) levelTag(level slog.Level) string {
	switch {
	case level >= slog.LevelError:
		return h.paint("[ERROR]", color.FgRed, color.Bold)
	case level >= slog.LevelWarn:
		return h.paint("[WARN]", color.FgYellow)
	case level < slog.LevelInfo:
		return h.paint("[DEBUG]", color.FgMagenta)
	default:
		return h.paint("[INFO]", color.FgBlue)
	}
}

// paint colors s when the handler has colors on, regardless of the global
// color.NoColor switch (tests and non-tty writers decide per handler).
func (h *prettyHandler) paint(s string, attrs ...color.Attribute) string {
	if !h.color || len(attrs) == 0 {
		return s
	}
	c := color.New(attrs...)
	c.EnableColor()
	return c.Sprint(s)
}

func methodColor(m string) color.Attribute {
	switch m {
	case "GET", "HEAD":
		return color.FgGreen
	case "POST":
		return color.FgBlue
	case "PUT", "PATCH":
		return color.FgYellow
	case "DELETE":
		return color.FgRed
	default:
		return color.FgWhite
	}
}

func statusColor(code int) color.Attribute {
	return classColor(statusClass(code))
}

func classColor(class string) color.Attribute {
	switch class {
	case "2xx":
		return color.FgGreen
	case "3xx":
		return color.FgCyan
	case "4xx":
		return color.FgYellow
	case "5xx":
		return color.FgRed
	default:
		return color.FgWhite
	}
}

func durationColor(ms int64) color.Attribute {
	switch {
	case ms >= 1000:
		return color.FgRed
	case ms >= 250:
		return color.FgYellow
	default:
		return color.FgGreen
	}
}

func resultColor(result string) color.Attribute {
	switch result {
	case "success", "redirect":
		return color.FgGreen
	case "client_error":
		return color.FgYellow
	case "server_error":
		return color.FgRed
	default:
		return color.FgWhite
	}
}

func valueToInt64(v slog.Value) (int64, bool) {
	switch v.Kind() {
	case slog.KindInt64:
		return v.Int64(), true
	case slog.KindUint64:
		u := v.Uint64()
		if u > uint64(1<<63-1) {
			return 0, false
		}
		return int64(u), true
	case slog.KindFloat64:
		return int64(v.Float64()), true
	default:
		n, err := strconv.ParseInt(strings.TrimSpace(v.String()), 10, 64)
		return n, err == nil
	}
}

func valueToString(v slog.Value) string {
	switch v.Kind() {
	case slog.KindString:
		return v.String()
	case slog.KindInt64:
		return strconv.FormatInt(v.Int64(), 10)
	case slog.KindUint64:
		return strconv.FormatUint(v.Uint64(), 10)
	case slog.KindFloat64:
		return strconv.FormatFloat(v.Float64(), 'f', -1, 64)
	case slog.KindBool:
		return strconv.FormatBool(v.Bool())
	case slog.KindDuration:
		return v.Duration().String()
	case slog.KindTime:
		return v.Time().Format(time.RFC3339)
	default:
		return fmt.Sprint(v.Any())
	}
}

func quoteIfNeeded(s string) string {
	if s == "" {
		return `""`
	}
	if strings.ContainsAny(s, " \t\r\n\"=") {
		return strconv.Quote(s)
	}
	return s
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)

// stripANSI removes terminal escape sequences.
func stripANSI(s string) string {
	if !strings.ContainsRune(s, '\x1b') {
		return s
	}
	return ansiRe.ReplaceAllString(s, "")
}
