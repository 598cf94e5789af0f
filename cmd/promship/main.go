package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/promship/promship/internal/config"
	"github.com/promship/promship/internal/pusher"
	"github.com/promship/promship/internal/textfile"
	"github.com/promship/promship/push"
)

func main() {
	configPath := flag.String("config", "promship.yaml", "path to config file")
	once := flag.Bool("once", false, "push a single snapshot and exit")
	flag.Parse()

	// Optional .env for auth secrets; absence is fine.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("promship starting", "config", *configPath)

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err)
		os.Exit(1)
	}
	slog.Info("config loaded",
		"gateway", cfg.Gateway,
		"job", cfg.Job,
		"mode", cfg.Mode,
		"push_interval", cfg.PushInterval,
		"textfile_dir", cfg.TextfileDir,
	)

	client, err := buildClient(cfg)
	if err != nil {
		slog.Error("failed to build push client", "err", err)
		os.Exit(1)
	}

	src, err := buildSource(cfg)
	if err != nil {
		slog.Error("failed to load textfile metrics", "err", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	p := pusher.New(client, src.merged, pusher.Options{
		Mode:         cfg.Mode,
		Interval:     cfg.PushInterval,
		DeleteOnStop: cfg.DeleteOnShutdown,
	})

	if *once {
		if err := p.PushOnce(ctx); err != nil {
			slog.Error("push failed", "err", err)
			os.Exit(1)
		}
		slog.Info("snapshot pushed", "url", client.URL())
		return
	}

	// Keep the snapshot current as files change.
	go func() {
		if err := src.textfiles.Watch(ctx); err != nil {
			slog.Error("textfile watcher stopped", "err", err)
		}
	}()

	// Watch config file for hot-reload. Applying a new gateway or grouping key
	// means rebuilding the immutable client, so reloads only log for now.
	go func() {
		if err := config.Watch(ctx, *configPath, func(updated *config.Config) {
			slog.Info("config changed on disk — restart to apply", "gateway", updated.Gateway)
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	p.Run(ctx)
	slog.Info("promship shutting down")
}

// buildClient constructs the push client from config: credentials embedded in
// the gateway URL, grouping key, timeouts and optional TLS settings.
func buildClient(cfg *config.Config) (*push.Client, error) {
	gateway, err := cfg.GatewayURL()
	if err != nil {
		return nil, err
	}
	opts := []push.Option{
		push.WithGateway(gateway),
		push.WithGroupingKey(cfg.GroupingKey),
		push.WithTimeouts(cfg.OpenTimeout, cfg.ReadTimeout),
	}
	if tlsCfg, err := cfg.ClientTLS(); err != nil {
		return nil, err
	} else if tlsCfg != nil {
		opts = append(opts, push.WithTLSConfig(tlsCfg))
	}
	return push.New(cfg.Job, opts...)
}

// sources bundles the textfile source (which needs its watcher started) with
// the final merged source handed to the pusher.
type sources struct {
	textfiles *textfile.Source
	merged    push.MetricsSource
}

// buildSource loads the textfile directory and, when enabled, folds in the
// bridge's own runtime metrics.
func buildSource(cfg *config.Config) (*sources, error) {
	tf, err := textfile.New(cfg.TextfileDir)
	if err != nil {
		return nil, err
	}

	merged := push.MetricsSource(tf)
	if cfg.SelfMetrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		merged = push.MergeSources(tf, reg)
	}
	return &sources{textfiles: tf, merged: merged}, nil
}
