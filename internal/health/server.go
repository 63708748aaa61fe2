// Package health serves liveness and readiness probes for the consumer.
package health

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"sceneflow-go/internal/logger"
	"sceneflow-go/internal/queue"
)

// StateSource reports the consumer's connection state.
type StateSource interface {
	State() queue.State
}

// Handler returns the probe mux.
func Handler(src StateSource, log *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		log.WithRequest(r).Debug("health check")
		fmt.Fprint(w, "ok")
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		state := src.State()
		reqLog := log.WithRequest(r).WithField("state", state.String())

		w.Header().Set("Content-Type", "application/json")
		if !state.Ready() {
			reqLog.Warn("not ready")
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		if err := json.NewEncoder(w).Encode(map[string]string{"state": state.String()}); err != nil {
			reqLog.WithError(err).Error("failed to write response")
		}
	})
	return mux
}

// Serve runs the probe server on addr until ctx is cancelled.
func Serve(ctx context.Context, addr string, src StateSource, log *logger.Logger) error {
	log = log.With("component", "health")
	srv := &http.Server{
		Addr:         addr,
		Handler:      Handler(src, log),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.WithField("addr", addr).Info("probe server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}
