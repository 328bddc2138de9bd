// Copyright (c) 2025 Li Jinling. All rights reserved.
// This software may be modified and distributed under the terms
// of the BSD-3 Clause License. See the LICENSE file for details.

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/ffutop/modbus-master/internal/config"
	"github.com/ffutop/modbus-master/internal/image"
	"github.com/ffutop/modbus-master/internal/poller"
	"github.com/ffutop/modbus-master/transport"
	"github.com/ffutop/modbus-master/transport/rtu"
	rtuovertcp "github.com/ffutop/modbus-master/transport/rtu-over-tcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const reconnectDelay = time.Second

func main() {
	cfg, args, err := config.Load(os.Args[1:])
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(2)
	}
	if len(args) == 0 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	setupLogger(cfg.Log)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	link, err := newLink(cfg.Link)
	if err != nil {
		slog.Error("Invalid link", "err", err)
		os.Exit(2)
	}
	if err := link.Connect(ctx); err != nil {
		slog.Error("Failed to connect link", "link", cfg.Link.Name, "err", err)
		os.Exit(1)
	}

	client := rtu.NewClient(link, rtu.Options{
		Timeout:   cfg.Client.Timeout,
		QueueSize: cfg.Client.QueueSize,
		Logger:    slog.Default(),
		Name:      cfg.Link.Name,
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		runLink(ctx, link, client, cfg.Link.Name)
	}()

	if args[0] == "poll" {
		err = poll(ctx, cfg, client)
	} else {
		err = runOperation(ctx, client, args, os.Stdout)
	}

	cancel()
	link.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("Operation failed", "op", args[0], "err", err)
		os.Exit(1)
	}
}

func newLink(cfg config.LinkConfig) (transport.Link, error) {
	switch cfg.Type {
	case "rtu":
		return rtu.NewSerialLink(cfg.Serial, slog.Default()), nil
	case "rtu-over-tcp":
		return rtuovertcp.NewLink(cfg.Tcp.Address, cfg.Tcp.Timeout, slog.Default()), nil
	default:
		return nil, fmt.Errorf("unknown link type %q", cfg.Type)
	}
}

// runLink feeds the client from link until ctx is done, reconnecting after
// read failures.
func runLink(ctx context.Context, link transport.Link, sink transport.Sink, name string) {
	for {
		err := link.Run(ctx, sink)
		if ctx.Err() != nil {
			return
		}
		slog.Error("Link stopped, reconnecting", "link", name, "err", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(reconnectDelay):
		}
	}
}

// poll runs the poller until ctx is done, serving metrics if configured.
func poll(ctx context.Context, cfg *config.Config, client *rtu.Client) error {
	targets, err := poller.NewTargets(cfg.Poll.Targets)
	if err != nil {
		return err
	}
	if len(targets) == 0 {
		return errors.New("no poll targets configured")
	}

	img, err := image.Open(cfg.Image.Persistence)
	if err != nil {
		return err
	}
	defer func() {
		if err := img.Close(); err != nil {
			slog.Error("Failed to close process image", "err", err)
		}
	}()

	if cfg.Metrics.Address != "" {
		srv := &http.Server{Addr: cfg.Metrics.Address, Handler: metricsHandler()}
		go func() {
			slog.Info("Serving metrics", "address", cfg.Metrics.Address)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("Metrics server stopped", "err", err)
			}
		}()
		defer srv.Close()
	}

	slog.Info("Starting poller", "link", cfg.Link.Name, "targets", len(targets), "interval", cfg.Poll.Interval)
	return poller.NewPoller(cfg.Link.Name, client, img, targets, cfg.Poll.Interval, slog.Default()).Run(ctx)
}

func metricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func setupLogger(cfg config.LogConfig) {
	opts := &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}
	switch cfg.Level {
	case "debug":
		opts.Level = slog.LevelDebug
	case "warn":
		opts.Level = slog.LevelWarn
	case "error":
		opts.Level = slog.LevelError
	}

	var handler slog.Handler
	if cfg.File != "" && cfg.File != "-" {
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			fmt.Printf("Failed to open log file, falling back to stderr: %v\n", err)
			handler = slog.NewTextHandler(os.Stderr, opts)
		} else {
			handler = slog.NewTextHandler(f, opts)
		}
	} else {
		// Operation results go to stdout.
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
