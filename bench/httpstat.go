package bench

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/omartijn/ozo/logger"
)

// statServer exposes the in-flight benchmark counters over HTTP while a
// run is in progress.
type statServer struct {
	srv     *http.Server
	runner  *runner
	started time.Time
}

type statsPayload struct {
	Scenario string  `json:"scenario"`
	Query    string  `json:"query"`
	Uptime   float64 `json:"uptime_seconds"`
	Requests int64   `json:"requests"`
	Rows     int64   `json:"rows"`
	Errors   int64   `json:"errors"`
}

func serveStats(addr string, r *runner) *statServer {
	s := &statServer{runner: r, started: time.Now()}

	router := chi.NewRouter()
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/stats", func(w http.ResponseWriter, _ *http.Request) {
		requests, rows, errors := r.step.Snapshot()
		payload := statsPayload{
			Scenario: r.opts.Scenario,
			Query:    r.opts.Query,
			Uptime:   time.Since(s.started).Seconds(),
			Requests: requests,
			Rows:     rows,
			Errors:   errors,
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(payload)
	})

	s.srv = &http.Server{Addr: addr, Handler: router}
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Warn("stats endpoint failed", "error", err.Error())
		}
	}()
	return s
}

func (s *statServer) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_ = s.srv.Shutdown(ctx)
}
