package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/fluxbase/flux-go/pkg/client"
	"github.com/fluxbase/flux-go/pkg/protocol"
)

var (
	flagDeployment string
	flagAuth       string
	flagTimeout    time.Duration
	flagDebugAddr  string
	flagVerbose    bool
)

// newClient builds a sync client from the global flags, optionally exposing
// its metrics on the debug listener.
func newClient() (*client.Client, error) {
	if flagDeployment == "" {
		return nil, errors.New("no deployment URL: pass --deployment or set FLUX_DEPLOYMENT")
	}

	level := slog.LevelWarn
	if flagVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := client.DefaultConfig()
	cfg.Logger = logger
	if flagTimeout > 0 {
		cfg.RequestTimeout = flagTimeout
	}
	if flagDebugAddr != "" {
		registry := prometheus.NewRegistry()
		cfg.MetricsRegistry = registry
		go serveDebug(flagDebugAddr, registry, logger)
	}

	c, err := client.New(flagDeployment, cfg)
	if err != nil {
		return nil, err
	}
	if flagAuth != "" {
		c.SetAuth(flagAuth)
	}
	return c, nil
}

// serveDebug runs the metrics and health endpoints for the lifetime of the
// process.
func serveDebug(addr string, registry *prometheus.Registry, logger *slog.Logger) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	if err := http.ListenAndServe(addr, r); err != nil {
		logger.Error("debug server failed", "addr", addr, "error", err)
	}
}

// parseArgs parses the optional positional JSON argument object.
func parseArgs(args []string) (protocol.Value, error) {
	if len(args) < 2 {
		return protocol.EmptyObject(), nil
	}
	v, err := protocol.ParseValue([]byte(args[1]))
	if err != nil {
		return protocol.Value{}, fmt.Errorf("invalid args JSON: %w", err)
	}
	if v.Kind() != protocol.KindObject {
		return protocol.Value{}, errors.New("args must be a JSON object")
	}
	return v, nil
}

// printResult writes a value as indented JSON on stdout.
func printResult(v protocol.Value) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
