package authapi

import (
	"context"
	"log/slog"
	"net"

	"github.com/prometheus/client_golang/prometheus"
)

// EventsTotal counts auth API outcomes by action (auth.login.success, ...).
var EventsTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "bugtrack_auth_api_events_total",
		Help: "Auth API outcomes by action.",
	},
	[]string{"action"},
)

func init() {
	prometheus.MustRegister(EventsTotal)
}

// audit emits one structured security event. Passwords and tokens never reach
// it.
func (h *Handler) audit(ctx context.Context, action string, ip net.IP, attrs ...any) {
	EventsTotal.WithLabelValues(action).Inc()

	args := []any{"action", action}
	if ip != nil {
		args = append(args, "ip", ip.String())
	}
	args = append(args, attrs...)

	level := slog.LevelInfo
	switch action {
	case actionLoginFailed, actionLoginRateLimited, actionRegisterConflict:
		level = slog.LevelWarn
	}
	h.log.Log(ctx, level, "auth.audit", args...)
}

const (
	actionLoginSuccess     = "auth.login.success"
	actionLoginFailed      = "auth.login.failed"
	actionLoginRateLimited = "auth.login.rate_limited"
	actionRegister         = "auth.register"
	actionRegisterConflict = "auth.register.conflict"
)
