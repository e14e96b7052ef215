// Copyright 2025 AxonFlow
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"github.com/spf13/cobra"

	"ormbridge/registry"
	"ormbridge/shared/logger"
)

// serveCmd runs the admin HTTP server
func serveCmd(opts *globalOptions) *cobra.Command {
	var addr, jwtSecret string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve connection status and metrics over HTTP",
		Long: `Start an admin HTTP server exposing:

  GET /health                 liveness and connection count
  GET /connections            all connections, passwords masked
  GET /connections/{name}     one connection
  GET /connections/{name}/ping  open the connection and ping it
  GET /metrics                Prometheus metrics

Everything except /health requires an HS256 bearer token when
--jwt-secret is set.

Examples:
  ormctl serve --addr :8090
  ORMCTL_JWT_SECRET=... ormctl serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, cleanup, err := bootstrap(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer cleanup()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, addr, newHandler(reg, []byte(jwtSecret)), logger.New("ormctl"))
		},
	}

	cmd.Flags().StringVar(&addr, "addr", envOrDefault("ORMCTL_ADDR", ":8090"), "Listen address")
	cmd.Flags().StringVar(&jwtSecret, "jwt-secret", os.Getenv("ORMCTL_JWT_SECRET"), "HS256 secret for bearer token auth")
	return cmd
}

func serve(ctx context.Context, addr string, handler http.Handler, log *logger.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("", "Admin server listening", map[string]interface{}{"addr": addr})
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("", "Admin server shutting down", nil)
	return srv.Shutdown(shutdownCtx)
}

// newHandler builds the admin router wrapped in token auth and CORS
func newHandler(reg *registry.Registry, jwtSecret []byte) http.Handler {
	router := mux.NewRouter()

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"status":      "healthy",
			"connections": len(reg.Connections()),
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
		})
	}).Methods("GET")

	router.HandleFunc("/connections", func(w http.ResponseWriter, r *http.Request) {
		sendJSON(w, http.StatusOK, describeAll(reg))
	}).Methods("GET")

	router.HandleFunc("/connections/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !hasConnection(reg, name) {
			sendJSON(w, http.StatusNotFound, map[string]string{"error": "connection not found: " + name})
			return
		}
		sendJSON(w, http.StatusOK, reg.Describe(name))
	}).Methods("GET")

	router.HandleFunc("/connections/{name}/ping", func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !hasConnection(reg, name) {
			sendJSON(w, http.StatusNotFound, map[string]string{"error": "connection not found: " + name})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		start := time.Now()
		db, err := reg.Engine().DB(ctx, name)
		if err == nil {
			err = db.PingContext(ctx)
		}
		if err != nil {
			sendJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"connection": name,
				"healthy":    false,
				"error":      err.Error(),
			})
			return
		}
		sendJSON(w, http.StatusOK, map[string]interface{}{
			"connection": name,
			"healthy":    true,
			"latency_ms": time.Since(start).Milliseconds(),
		})
	}).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(requireToken(jwtSecret, router))
}

func hasConnection(reg *registry.Registry, name string) bool {
	for _, n := range reg.Connections() {
		if n == name {
			return true
		}
	}
	return false
}

func sendJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
