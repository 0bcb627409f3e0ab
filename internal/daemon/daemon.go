package daemon

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuentas-labs/cuentas/internal/api"
	"github.com/cuentas-labs/cuentas/internal/app/orchestrator"
	"github.com/cuentas-labs/cuentas/internal/health"
	"github.com/cuentas-labs/cuentas/internal/infra/driver"
	_ "github.com/cuentas-labs/cuentas/internal/infra/metrics" // register Prometheus metrics
	"github.com/cuentas-labs/cuentas/internal/infra/sqlite"
	"github.com/cuentas-labs/cuentas/internal/security"
)

// Daemon is the core Cuentas runtime. It wires together all services;
// everything is constructed here once and passed by reference — no
// package-level singletons.
type Daemon struct {
	Config   Config
	DB       *sqlite.DB
	Registry *driver.Registry
	Runner   *driver.Runner
	Cards    *security.Gateway
	Orch     *orchestrator.Orchestrator
	Server   *api.Server
	Health   *health.Checker

	cancel context.CancelFunc
}

// New creates a Daemon from the on-disk configuration.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	homeDir := cuentasHome()

	db, err := sqlite.Open(homeDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	driversDir := cfg.Drivers.Dir
	if driversDir == "" {
		driversDir = DefaultConfig().Drivers.Dir
	}
	if err := os.MkdirAll(driversDir, 0755); err != nil {
		db.Close()
		return nil, fmt.Errorf("create drivers dir: %w", err)
	}
	registry := driver.NewRegistry(driversDir)

	runner := driver.NewRunner(registry)
	if cfg.Drivers.TimeoutSeconds > 0 {
		runner.Timeout = time.Duration(cfg.Drivers.TimeoutSeconds) * time.Second
	}

	cards := security.NewGateway(cfg.CardKey())
	if cfg.CardKey() == "" {
		log.Printf("[daemon] WARNING: no card encryption key configured — payment methods disabled (run `cuentas keygen`)")
	}

	orch := orchestrator.New(orchestrator.Config{
		MaxConcurrent: cfg.Drivers.MaxConcurrent,
	}, db, registry, runner, cards)

	srv := api.NewServer(db, orch, cards)
	if cfg.API.Metrics {
		srv.EnableMetrics()
	}

	checker := health.NewChecker(db, driversDir, homeDir)
	srv.SetHealthChecker(checker)

	return &Daemon{
		Config:   cfg,
		DB:       db,
		Registry: registry,
		Runner:   runner,
		Cards:    cards,
		Orch:     orch,
		Server:   srv,
		Health:   checker,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown. On SIGINT /
// SIGTERM the server stops accepting requests, then in-flight tasks
// get a bounded window to drain before the database closes.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  2 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		_ = httpServer.Shutdown(shutdownCtx)

		// Drain running tasks so none is stranded mid-transition.
		if err := d.Orch.Wait(shutdownCtx); err != nil {
			log.Printf("[daemon] shutdown with tasks still running: %v", err)
		}
		_ = d.DB.Close()
	}()

	fmt.Printf("Cuentas serving on http://%s\n", addr)
	fmt.Printf("  Drivers: %s\n", d.Config.Drivers.Dir)
	if d.Config.API.Metrics {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close shuts down all daemon resources.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Orch != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		_ = d.Orch.Wait(ctx)
		cancel()
	}
	if d.DB != nil {
		_ = d.DB.Close()
	}
}
