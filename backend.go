// ABOUTME: Backend, device and engine setup shared by the playback commands
// ABOUTME: Opens the configured host, resolves the device and serves metrics
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Resonate-Protocol/playout/internal/config"
	"github.com/Resonate-Protocol/playout/pkg/audio/output"
	"github.com/Resonate-Protocol/playout/pkg/engine"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const metricsShutdownTimeout = 2 * time.Second

// openHost creates the audio backend named in cfg
func openHost(cfg *config.Config) (output.Host, error) {
	switch cfg.Backend {
	case "malgo":
		m, err := output.NewMalgo()
		if err != nil {
			return nil, err
		}
		return m, nil
	case "oto":
		return output.NewOto(cfg.BufferDuration()), nil
	case "null":
		return output.NewNull(output.NullConfig{Period: cfg.BufferDuration()}), nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// findDevice resolves query against the host's devices. An empty query
// selects the default device; otherwise an exact ID match wins over a
// case-insensitive name match.
func findDevice(host output.Host, query string) (output.Device, error) {
	if query == "" {
		return host.DefaultDevice()
	}

	devices, err := host.Devices()
	if err != nil {
		return nil, err
	}
	for _, d := range devices {
		if string(d.ID()) == query {
			return d, nil
		}
	}
	q := strings.ToLower(query)
	for _, d := range devices {
		if strings.Contains(strings.ToLower(d.Name()), q) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("no output device matches %q", query)
}

// startEngine starts an engine on loop and, when configured, the metrics
// endpoint. The returned stop function shuts both down.
func (a *app) startEngine(loop output.EventLoop) (*engine.Engine, func()) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	eng := engine.New(loop,
		engine.WithLogger(a.logger),
		engine.WithRegisterer(reg),
		engine.WithPriority(a.cfg.Priority))

	var srv *http.Server
	if a.cfg.MetricsAddr != "" {
		srv = serveMetrics(a.cfg.MetricsAddr, reg, a.logger)
	}

	return eng, func() {
		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				a.logger.Warn("Metrics server shutdown failed", zap.Error(err))
			}
		}
		if err := eng.Close(); err != nil {
			a.logger.Warn("Engine shutdown failed", zap.Error(err))
		}
	}
}

// serveMetrics exposes reg on /metrics at addr
func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{
		ErrorLog:      zap.NewStdLog(logger),
		ErrorHandling: promhttp.HTTPErrorOnError,
	}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
