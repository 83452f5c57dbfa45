package app

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// feedPath serves the realtime bug feed.
const feedPath = "/api/bugs/events"

func (a *App) registerHTTP(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		pool := a.stores.pool
		if a.cfg.ReadinessRequireDB && pool == nil {
			http.Error(w, "db not configured", http.StatusServiceUnavailable)
			return
		}

		if pool != nil {
			if err := PingDB(r.Context(), pool, 2*time.Second); err != nil {
				http.Error(w, "db not ready", http.StatusServiceUnavailable)
				a.log.Info("readyz.db.not_ready", "err", err)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready\n"))
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	a.authAPI.Register(mux)
	a.bugsAPI.Register(mux)

	mux.HandleFunc("GET "+feedPath, func(w http.ResponseWriter, r *http.Request) {
		// The server's read/write deadlines would otherwise cut long-lived
		// feed connections.
		rc := http.NewResponseController(w)
		_ = rc.SetReadDeadline(time.Time{})
		_ = rc.SetWriteDeadline(time.Time{})
		a.gateway.ServeHTTP(w, r)
	})
}

// chain applies the middleware stack, outermost first:
// request id, security headers, CORS, metrics, request logging.
func chain(h http.Handler, cfg Config, log Logger) http.Handler {
	h = WithRequestLogging(h, log)
	h = WithMetrics(h)
	h = WithCORS(h, cfg, log)
	h = WithSecurityHeaders(h)
	h = WithRequestID(h)
	return h
}
