// Package main implements the frontier service.
// Frontier polls the timestamp series written by parallel producers, works
// out which time buckets every producer has finished, and surfaces that
// ready set on stdout and over HTTP until it receives SIGHUP, SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/frontier/cmd/frontier/config"
	"github.com/HatiCode/frontier/cmd/frontier/logger"
	"github.com/HatiCode/frontier/cmd/frontier/metrics"
	"github.com/HatiCode/frontier/cmd/frontier/router"
	"github.com/HatiCode/frontier/cmd/frontier/server"
	"github.com/HatiCode/frontier/cmd/frontier/store"
	"github.com/HatiCode/frontier/pkg/httpx"
	"github.com/HatiCode/frontier/pkg/shutdown"
	"github.com/HatiCode/frontier/pkg/sink"
	"github.com/HatiCode/frontier/pkg/telemetry"
)

const version = "v0.1.0"

func main() {
	os.Exit(run(os.Args[1:], shutdown.New(), prometheus.DefaultRegisterer))
}

// run starts frontier and blocks until shutdown is requested on sig or a
// component fails. It returns the process exit status.
func run(args []string, sig *shutdown.Signal, reg prometheus.Registerer) int {
	cfg, err := config.Parse(args)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}

	log := logger.New(cfg)
	slog.SetDefault(log)

	names := make([]string, len(cfg.Series))
	for i, s := range cfg.Series {
		names[i] = s.Name
	}
	log.Info("starting frontier",
		"version", version,
		"storage", cfg.Storage,
		"series", names,
		"margin", cfg.Margin,
		"interval", cfg.Interval,
	)

	stopSignals := shutdown.Notify(sig)
	defer stopSignals()

	ctx := context.Background()

	shutdownTracing, err := telemetry.Setup(ctx, "frontier", cfg.OTLPEndpoint)
	if err != nil {
		log.Error("tracing setup failed", "error", err)
		return 1
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			log.Error("tracing shutdown failed", "error", err)
		}
	}()

	st, err := store.New(cfg, log)
	if err != nil {
		log.Error("storage initialization failed", "error", err)
		return 1
	}
	defer st.Close()

	holder := sink.NewHolder()
	out := sink.Multi{holder}
	if cfg.Output == "stdout" {
		out = append(out, sink.NewPrinter(os.Stdout))
	}

	poller, err := NewPoller(
		st,
		cfg.Series,
		Timing{
			Margin:       cfg.Margin,
			Interval:     cfg.Interval,
			QueryTimeout: cfg.QueryTimeout,
			MaxBackoff:   cfg.MaxBackoff,
		},
		out,
		metrics.New(reg),
		log,
	)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		return 1
	}

	g, gctx := errgroup.WithContext(ctx)
	loopDone := make(chan struct{})

	if cfg.Listen != "" {
		mux := router.SetupRoutes(holder, sig, 2*cfg.Interval, log)
		handler := httpx.RecoveryMiddleware(log)(httpx.LoggingMiddleware(log)(mux))
		httpServer := httpx.NewServer(cfg.Listen, handler, log)

		g.Go(httpServer.Start)
		g.Go(func() error {
			waitDrained(sig, loopDone, gctx.Done())
			return httpServer.Stop(10 * time.Second)
		})
	}

	if cfg.GRPCListen != "" {
		healthServer := server.NewHealthServer(cfg.GRPCListen, log)

		g.Go(healthServer.Start)
		g.Go(func() error {
			drainHealth(healthServer, sig, loopDone, gctx.Done())
			return nil
		})
	}

	g.Go(func() error {
		defer close(loopDone)
		return poller.Run(gctx, sig)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("frontier failed", "error", err)
		return 1
	}

	log.Info("shutdown complete")
	return 0
}

// waitDrained blocks until shutdown was requested and the poll loop has
// returned, or until abort fires.
func waitDrained(sig *shutdown.Signal, loopDone, abort <-chan struct{}) {
	select {
	case <-sig.Done():
	case <-abort:
		return
	}
	select {
	case <-loopDone:
	case <-abort:
	}
}

type healthReporter interface {
	SetServing(serving bool)
	Stop()
}

// drainHealth reports NOT_SERVING as soon as shutdown is requested and stops
// the server once the poll loop has returned.
func drainHealth(h healthReporter, sig *shutdown.Signal, loopDone, abort <-chan struct{}) {
	select {
	case <-sig.Done():
		h.SetServing(false)
	case <-abort:
	}
	waitDrained(sig, loopDone, abort)
	h.Stop()
}
