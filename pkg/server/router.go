package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-logr/logr"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/intothevoid/keenonqr/pkg/history"
	"github.com/intothevoid/keenonqr/pkg/scan"
)

const (
	defaultDetectionLimit = 50
	shutdownTimeout       = 5 * time.Second
)

// StatsProvider is the running scan session.
type StatsProvider interface {
	Stats() scan.Stats
}

// NewRouter serves /health, /stats, /detections and /metrics. stats and
// store may be nil, in which case their routes answer 503 and 404.
func NewRouter(stats StatsProvider, store *history.Store, gatherer prometheus.Gatherer) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, "OK")
	}).Methods("GET")

	r.HandleFunc("/stats", func(w http.ResponseWriter, r *http.Request) {
		if stats == nil {
			http.Error(w, "no scan session", http.StatusServiceUnavailable)
			return
		}
		writeJSON(w, stats.Stats())
	}).Methods("GET")

	r.HandleFunc("/detections", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history is disabled", http.StatusNotFound)
			return
		}
		limit := defaultDetectionLimit
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				http.Error(w, "invalid limit", http.StatusBadRequest)
				return
			}
			limit = n
		}
		writeJSON(w, store.Recent(limit))
	}).Methods("GET")

	r.HandleFunc("/detections/{id}", func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			http.Error(w, "history is disabled", http.StatusNotFound)
			return
		}
		rec, ok := store.Get(mux.Vars(r)["id"])
		if !ok {
			http.Error(w, "detection not found", http.StatusNotFound)
			return
		}
		writeJSON(w, rec)
	}).Methods("GET")

	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods("GET")
	}
	return r
}

// Serve runs handler on addr until ctx is done.
func Serve(ctx context.Context, addr string, handler http.Handler, logger logr.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Status server listening", "addr", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("status server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop status server: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}
