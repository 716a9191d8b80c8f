// Package wire provides dependency injection for the warden application.
// It creates singleton services with lazy initialization.
package wire

import (
	"context"
	"io"
	"log"
	"os"
	"sync"
	"time"

	cliadapter "github.com/example/warden/internal/adapters/cli"
	"github.com/example/warden/internal/adapters/shell"
	"github.com/example/warden/internal/adapters/sqlite"
	"github.com/example/warden/internal/app"
	"github.com/example/warden/internal/bridge"
	"github.com/example/warden/internal/config"
	"github.com/example/warden/internal/core/breaker"
	"github.com/example/warden/internal/db"
	"github.com/example/warden/internal/ports/primary"
)

var (
	cfg              *config.Config
	storageBridge    *bridge.Bridge
	registry         *breaker.Registry
	executionService primary.ExecutionService
	adminService     primary.AdminService
	once             sync.Once
)

// Config returns the loaded configuration.
func Config() *config.Config {
	once.Do(initServices)
	return cfg
}

// ExecutionService returns the singleton ExecutionService instance.
func ExecutionService() primary.ExecutionService {
	once.Do(initServices)
	return executionService
}

// AdminService returns the singleton AdminService instance.
func AdminService() primary.AdminService {
	once.Do(initServices)
	return adminService
}

// StatusAdapter returns a new StatusAdapter writing to stdout.
// Each call creates a new adapter (adapters are stateless translators).
func StatusAdapter() *cliadapter.StatusAdapter {
	return StatusAdapterWithOutput(os.Stdout)
}

// StatusAdapterWithOutput returns a new StatusAdapter writing to the given output.
// This variant allows testing or alternate output destinations.
func StatusAdapterWithOutput(out io.Writer) *cliadapter.StatusAdapter {
	once.Do(initServices)
	return cliadapter.NewStatusAdapter(adminService, out)
}

// Shutdown flushes breaker state and drains the storage bridge.
// Safe to call when services were never initialized.
func Shutdown(ctx context.Context) error {
	if registry == nil {
		return nil
	}
	err := registry.Shutdown(ctx)
	if cerr := storageBridge.Close(); err == nil {
		err = cerr
	}
	return err
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to get working directory: %v", err)
	}

	// Missing config is not fatal: breaker and admin commands work with
	// defaults, only `run` needs backend definitions.
	cfg, err = config.Load(cwd)
	if err != nil {
		cfg = config.Default()
	}

	path, err := db.DefaultPath()
	if err != nil {
		log.Fatalf("failed to resolve database path: %v", err)
	}
	conn, err := db.Open(path)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	// The bridge takes exclusive ownership of the connection; everything
	// below reaches the database only through it.
	storageBridge = bridge.New(conn, bridge.DefaultQueueSize)

	healthStore := sqlite.NewHealthStore(storageBridge)
	auditLog := sqlite.NewAuditLog(storageBridge)
	metrics := sqlite.NewMetricsSink(storageBridge)

	settings := breaker.Settings{
		FailureThreshold: cfg.BreakerThreshold(),
		ResetTimeout:     time.Duration(cfg.BreakerResetMs()) * time.Millisecond,
	}
	registry, err = breaker.NewRegistry(context.Background(), healthStore, settings)
	if err != nil {
		log.Fatalf("failed to initialize circuit breaker registry: %v", err)
	}

	invoker := shell.NewInvoker()
	executionService = app.NewExecutionService(cfg, registry, invoker, auditLog, metrics)
	adminService = app.NewAdminService(registry, auditLog, metrics)
}
