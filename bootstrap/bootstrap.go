// Package bootstrap assembles a runnable kernel: configuration, the
// structured logger, the record-layer environment, the type store and
// operator registry (with built-ins registered), the catalog, and the
// transaction manager, wired together the way internal/app.Application
// wires its service providers -- except the kernel's dependency graph is
// small, static, and known at compile time, so bootstrap builds it with
// a concrete typed constructor instead of the reflection-based
// container that graph would be overkill for. The container is still
// used for the one thing it is actually good for here: letting a caller
// (an admin tool, a REPL, a future HTTP front-end) look components up by
// name without bootstrap hard-wiring every consumer.
package bootstrap

import (
	"context"
	"fmt"

	"reld/builtin"
	"reld/catalog"
	"reld/config"
	"reld/execctx"
	"reld/internal/container"
	"reld/logging"
	"reld/opregistry"
	"reld/query"
	"reld/record"
	"reld/record/rmem"
	"reld/rtype"
	"reld/txn"
)

// Kernel is a fully wired, ready-to-use instance of every subsystem
// SPEC_FULL.md names: typed storage, the operator registry, the query
// engine's environment, the system catalog, and the transaction
// manager.
type Kernel struct {
	Config  *config.KernelConfig
	Logger  *logging.Logger
	RecEnv  record.Environment
	Store   *rtype.Store
	Reg     *opregistry.Registry
	Env     *query.Env
	Catalog *catalog.Catalog
	Txn     *txn.Manager

	services *container.Container
	detector *txn.Detector
}

// Options overrides individual pieces of the default wiring, mainly for
// tests that want an in-memory record environment or a pre-built
// config.
type Options struct {
	Config *config.KernelConfig
	RecEnv record.Environment // defaults to rmem.New() if nil
}

// Start assembles a Kernel: loads configuration, opens the record
// environment, bootstraps the catalog within a dedicated startup
// transaction (committed before Start returns), and starts the
// deadlock detector.
func Start(ctx context.Context, opts Options) (*Kernel, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultKernelConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("bootstrap: invalid configuration: %w", err)
	}

	logger, err := logging.NewFromConfig(cfg.Logging, "kernel")
	if err != nil {
		return nil, fmt.Errorf("bootstrap: logger: %w", err)
	}

	recEnv := opts.RecEnv
	if recEnv == nil {
		recEnv = rmem.New()
	}
	if err := recEnv.Create(cfg.Storage.DataDir); err != nil {
		return nil, fmt.Errorf("bootstrap: create record environment: %w", err)
	}

	store := rtype.NewStore()
	reg := opregistry.New(store)
	builtin.RegisterAll(reg)
	errTypes := builtin.RegisterErrorTypes(store)

	locks := txn.NewLockManager(cfg.Txn.LockTimeout)
	txnMgr := txn.NewManager(recEnv, locks)

	sess, rtx, berr := txnMgr.Begin(ctx, nil, txn.ParseIsolation(cfg.Txn.DefaultIsolation))
	if berr != nil {
		return nil, fmt.Errorf("bootstrap: begin startup transaction: %w", berr)
	}

	env := &query.Env{Store: store, Reg: reg, RecEnv: recEnv, ErrorTypes: errTypes}
	cat, cerr := catalog.New(env, rtx)
	if cerr != nil {
		txnMgr.Abort(sess)
		return nil, fmt.Errorf("bootstrap: catalog: %w", cerr)
	}
	env.Idx = cat

	if cerr := txnMgr.Commit(sess); cerr != nil {
		return nil, fmt.Errorf("bootstrap: commit startup transaction: %w", cerr)
	}

	detector := txn.NewDetector(locks, txnMgr, cfg.Txn.DeadlockCheckPeriod)
	detector.Start()

	k := &Kernel{
		Config:   cfg,
		Logger:   logger,
		RecEnv:   recEnv,
		Store:    store,
		Reg:      reg,
		Env:      env,
		Catalog:  cat,
		Txn:      txnMgr,
		services: container.NewContainer(),
		detector: detector,
	}
	k.services.Register("kernel.config", k.Config)
	k.services.Register("kernel.logger", k.Logger)
	k.services.Register("kernel.catalog", k.Catalog)
	k.services.Register("kernel.txn", k.Txn)

	logger.InfoMeta("kernel started", map[string]interface{}{
		"storage_backend": cfg.Storage.Backend,
		"isolation":       cfg.Txn.DefaultIsolation,
	})
	return k, nil
}

// Service looks a component up by name from the bootstrap's service
// registry, for callers that only know the string key (an admin REPL
// command, a future plugin loader).
func (k *Kernel) Service(name string) (interface{}, error) {
	return k.services.Get(name)
}

// Stop stops the deadlock detector, closes the transaction manager
// (aborting anything still open), and closes the record environment.
func (k *Kernel) Stop() error {
	k.detector.Stop()
	if err := k.Txn.Close(); err != nil {
		k.Logger.ErrorMeta("transaction manager close failed", map[string]interface{}{"error": err.Error()})
	}
	if err := k.RecEnv.Close(); err != nil {
		return fmt.Errorf("bootstrap: close record environment: %w", err)
	}
	k.Logger.Info("kernel stopped")
	return k.Logger.Close()
}

// BeginTx is a convenience wrapper over Kernel.Txn.Begin using the
// kernel's configured default isolation level.
func (k *Kernel) BeginTx(ctx context.Context) (*txn.Session, record.Transaction, *execctx.Error) {
	return k.Txn.Begin(ctx, nil, txn.ParseIsolation(k.Config.Txn.DefaultIsolation))
}
