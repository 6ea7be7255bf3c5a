package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/zephyrtronium/calculator/internal/auth"
	"github.com/zephyrtronium/calculator/internal/config"
	"github.com/zephyrtronium/calculator/internal/jobs"
	"github.com/zephyrtronium/calculator/internal/results"
	"github.com/zephyrtronium/calculator/internal/server"
)

func main() {
	log.SetFlags(0)
	var cfgname string
	flag.StringVar(&cfgname, "config", "", "JSON configuration file (default built-in settings)")
	flag.Parse()

	cfg := config.Default()
	if cfgname != "" {
		var err error
		cfg, err = config.Load(cfgname)
		if err != nil {
			log.Fatal(err)
		}
	}
	cfg.ApplyEnv(os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}
	slog.SetDefault(slog.New(cfg.Log.Handler(os.Stderr)))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := run(ctx, cfg); err != nil {
		slog.Error("calcd stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config) error {
	store := results.Open(ctx, cfg.Results)
	if r, ok := store.(*results.Redis); ok {
		defer r.Close()
	}
	queue := jobs.New(cfg.Queue.Capacity, cfg.Queue.Workers, store)
	authn := auth.New(auth.NewStatic(cfg.Auth.Users))
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      server.New(cfg, queue, store, authn),
		ReadTimeout:  cfg.Server.ReadTimeout.Std(),
		WriteTimeout: cfg.Server.WriteTimeout.Std(),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down")
		err := server.Shutdown(srv, cfg.Server)
		queue.Close()
		return err
	})
	g.Go(func() error {
		// Run returns once Close has been called and queued jobs are done.
		return queue.Run(context.WithoutCancel(ctx))
	})
	if m, ok := store.(*results.Memory); ok {
		g.Go(func() error {
			err := m.Run(gctx, cfg.Results.SweepInterval.Std())
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}
