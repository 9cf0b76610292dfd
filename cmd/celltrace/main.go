package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/celltrace-lab/celltrace/internal/core/config"
	cellerr "github.com/celltrace-lab/celltrace/internal/core/errors"
	"github.com/celltrace-lab/celltrace/internal/core/profile"
	"github.com/celltrace-lab/celltrace/internal/emitter"
	"github.com/celltrace-lab/celltrace/internal/loader"
	"github.com/celltrace-lab/celltrace/internal/pipeline"
	"github.com/celltrace-lab/celltrace/internal/server"
	"github.com/celltrace-lab/celltrace/internal/watch"
)

func main() {
	configPath := flag.String("config", "celltrace.yaml", "Path to configuration file")
	inputDir := flag.String("input", "", "Override input.dir from config")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	path := *configPath
	if _, err := os.Stat(path); os.IsNotExist(err) && !isFlagSet("config") {
		// default config file is optional; built-in defaults apply
		path = ""
	}

	cfg, err := config.Load(path)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if *inputDir != "" {
		cfg.Input.Dir = *inputDir
	}

	profiles, err := profile.LoadDir(cfg.Profiles.ConfigDir, cfg.Processing.ZeroInvalid)
	if err != nil {
		slog.Error("Failed to load channel profiles", "error", err)
		os.Exit(1)
	}
	slog.Info("Loaded channel profiles", "count", len(profiles.Profiles()))

	p := pipeline.New(
		pipeline.OptionsFromConfig(cfg),
		profiles,
		loader.NewXLSX(),
		emitter.New(cfg.Output.Dir),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !cfg.Watch.Enabled {
		if _, err := p.Run(ctx, cfg.Input.Dir); err != nil {
			if errors.Is(err, cellerr.ErrNoSequences) {
				slog.Error("No valid sequences found", "dir", cfg.Input.Dir)
			} else {
				slog.Error("Run failed", "error", err)
			}
			os.Exit(1)
		}
		return
	}

	store := &server.ReportStore{}
	srv := server.New(cfg.Watch.ServerAddr, store, cfg.Watch.Mode)
	go func() {
		if err := srv.Run(ctx); err != nil {
			slog.Error("Status server failed", "error", err)
			stop()
		}
	}()

	w := watch.New(cfg.Input.Dir, cfg.DebounceInterval(), func(runCtx context.Context) {
		report, err := p.Run(runCtx, cfg.Input.Dir)
		if err != nil && !errors.Is(err, cellerr.ErrNoSequences) {
			slog.Error("Run failed", "error", err)
		}
		if report != nil {
			store.Publish(report)
		}
	})
	if err := w.Start(ctx); err != nil {
		slog.Error("Watcher failed", "error", err)
		os.Exit(1)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
