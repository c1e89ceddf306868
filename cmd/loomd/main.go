package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lc/loom/internal/config"
	"github.com/lc/loom/internal/log"
	"github.com/lc/loom/internal/lookup"
	"github.com/lc/loom/internal/workpool"
	"github.com/lc/loom/pkg/api"
	"github.com/lc/loom/pkg/loop"
	"github.com/lc/loom/pkg/resolve"
)

func main() {
	// load config
	cfg, err := config.New().Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	// build deps
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	lp := loop.New()
	lp.Run(ctx)

	pool := workpool.New(cfg.Pool.Workers, cfg.Pool.QueueSize)
	backend := newBackend(cfg)

	resolver := resolve.New(lp, pool, backend.HostByName)
	adapter := resolve.NewAdapter(resolver, resolve.WithTimeout(cfg.Resolve.DefaultTimeout))

	// start the api over unix socket
	apiSrv := api.New(resolver, adapter, lp, pool, cfg.Resolve.DefaultTimeout)
	sockPath := cfg.Socket.Path

	go func() {
		if err := apiSrv.ListenAndServe(sockPath); err != nil {
			log.Fatalf("api listen: %v", err)
		}
	}()
	log.Infof("loomd: serving on %s (backend %s)", sockPath, cfg.DNS.Backend)

	// graceful shutdown
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	<-sig
	log.Info("shutting down…")

	shutdownCtx, done := context.WithTimeout(ctx, 5*time.Second)
	defer done()

	if err := apiSrv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("api shutdown error: %v", err)
	}
	cancel()
	lp.Close()
	pool.Close()
}

// newBackend builds the blocking lookup selected by config, instrumented
// with lookup metrics.
func newBackend(cfg *config.Config) lookup.Backend {
	switch cfg.DNS.Backend {
	case config.BackendDNS:
		opts := []lookup.Opt{lookup.WithRetries(cfg.DNS.Retries)}
		if len(cfg.DNS.Resolvers) > 0 {
			opts = append(opts, lookup.WithResolvers(cfg.DNS.Resolvers))
		}
		return lookup.Instrument(config.BackendDNS, lookup.NewClient(cfg.DNS.Timeout, opts...))
	default:
		return lookup.Instrument(config.BackendSystem, lookup.NewSystem(cfg.DNS.Timeout))
	}
}
