// Package app wires the stunt engine together: storage, resource ledger,
// game system adapters and the orchestrator, configured from the
// environment.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/storage/memory"
	"github.com/louisbranch/improv.engine/internal/storage/sqlite"
	"github.com/louisbranch/improv.engine/internal/stunt/audit"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/ledger"
	"github.com/louisbranch/improv.engine/internal/stunt/service"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
	"github.com/louisbranch/improv.engine/internal/systems/dnd5e"
	"github.com/louisbranch/improv.engine/internal/systems/pf2e"
)

// Ports are the host-runtime integrations. Every field is optional: missing
// ports fall back to log-backed implementations so the engine still runs
// standalone (scenario runner, playtesting).
type Ports struct {
	Engine     domain.RollEngine
	Conditions domain.ConditionApplier
	Notifier   domain.Notifier
	Presenter  service.Presenter
	Riders     domain.RiderChooser
	Crits      domain.CritChooser
}

// Engine is the assembled stunt engine.
type Engine struct {
	cfg          Config
	store        storage.FlagStore
	ledger       *ledger.Ledger
	registry     *systems.Registry
	orchestrator *service.Orchestrator
	logger       *slog.Logger
	close        func() error
}

// NewEngine assembles the engine from configuration and host ports.
func NewEngine(ctx context.Context, cfg Config, ports Ports, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store      storage.FlagStore
		auditStore storage.AuditStore
		closeStore func() error
	)
	if cfg.DBPath != "" {
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		store, auditStore, closeStore = db, db, db.Close
	} else {
		mem := memory.NewStore()
		store, auditStore, closeStore = mem, mem, func() error { return nil }
	}

	if err := weakness.EnsureTemplates(ctx, store); err != nil {
		return nil, fmt.Errorf("seed weakness templates: %w", err)
	}

	if ports.Notifier == nil {
		ports.Notifier = logNotifier{logger: logger}
	}
	if ports.Conditions == nil {
		ports.Conditions = logConditions{logger: logger}
	}
	if ports.Engine == nil {
		seed := cfg.DiceSeed
		if seed == 0 {
			seed = time.Now().UnixNano()
		}
		ports.Engine = dice.NewEngine(seed)
	}
	if ports.Presenter == nil {
		ports.Presenter = service.NewWriterPresenter(os.Stdout, cfg.GMView)
	}

	registry := systems.NewRegistry()

	dndConfig := dnd5e.DefaultConfig()
	if cfg.SuccessCondition != "" {
		dndConfig.SuccessConditionSlug = cfg.SuccessCondition
	}
	if cfg.FailureCondition != "" {
		dndConfig.FailureConditionSlug = cfg.FailureCondition
	}
	if len(cfg.SuccessRiders) > 0 {
		dndConfig.SuccessRiders = cfg.SuccessRiders
	}
	if len(cfg.FailureSetbacks) > 0 {
		dndConfig.FailureSetbacks = cfg.FailureSetbacks
	}
	if err := registry.Register(dnd5e.New(dnd5e.Deps{
		Engine:     ports.Engine,
		Conditions: ports.Conditions,
		Notifier:   ports.Notifier,
		Riders:     ports.Riders,
		Flags:      store,
	}, dndConfig)); err != nil {
		return nil, err
	}

	pfConfig := pf2e.DefaultConfig()
	if cfg.SuccessCondition != "" {
		pfConfig.SuccessConditionSlug = cfg.SuccessCondition
	}
	if cfg.FailureCondition != "" {
		pfConfig.FailureConditionSlug = cfg.FailureCondition
	}
	if len(cfg.SuccessRiders) > 0 {
		pfConfig.SuccessRiders = cfg.SuccessRiders
	}
	if len(cfg.FailureSetbacks) > 0 {
		pfConfig.FailureSetbacks = cfg.FailureSetbacks
	}
	pfConfig.CritPrompt = cfg.CritPrompt
	if err := registry.Register(pf2e.New(pf2e.Deps{
		Engine:     ports.Engine,
		Conditions: ports.Conditions,
		Notifier:   ports.Notifier,
		Riders:     ports.Riders,
		Crits:      ports.Crits,
		Flags:      store,
	}, pfConfig)); err != nil {
		return nil, err
	}

	adapter, err := registry.Get(cfg.System)
	if err != nil {
		return nil, fmt.Errorf("select game system: %w", err)
	}

	resources := ledger.New(store)
	orchestrator, err := service.New(service.Deps{
		Adapter:   adapter,
		Ledger:    resources,
		Flags:     store,
		Notifier:  ports.Notifier,
		Presenter: ports.Presenter,
		Audit:     audit.NewEmitter(auditStore),
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}

	logger.Info("stunt engine ready", "system", adapter.ID(), "db", cfg.DBPath != "")
	return &Engine{
		cfg:          cfg,
		store:        store,
		ledger:       resources,
		registry:     registry,
		orchestrator: orchestrator,
		logger:       logger,
		close:        closeStore,
	}, nil
}

// ResolveStunt runs the pipeline for one stunt.
func (e *Engine) ResolveStunt(ctx context.Context, actor, target domain.Character, opts domain.Options) error {
	return e.orchestrator.ResolveStunt(ctx, actor, target, opts)
}

// StartEncounter initializes the resource ledgers for a new encounter.
func (e *Engine) StartEncounter(ctx context.Context, encounterID string) error {
	return e.ledger.StartEncounter(ctx, encounterID, ledger.Pool{
		Enabled: e.cfg.PoolEnabled,
		Size:    e.cfg.PoolSize,
	})
}

// ResetPool refills the cinematic pool for an encounter.
func (e *Engine) ResetPool(ctx context.Context, encounterID string) error {
	return e.ledger.ResetPool(ctx, encounterID)
}

// PoolState reports the cinematic pool for an encounter.
func (e *Engine) PoolState(ctx context.Context, encounterID string) (ledger.Pool, error) {
	return e.ledger.PoolState(ctx, encounterID)
}

// Flags exposes the underlying flag store for weakness authoring.
func (e *Engine) Flags() storage.FlagStore { return e.store }

// SystemIDs lists the registered game systems.
func (e *Engine) SystemIDs() []string { return e.registry.IDs() }

// Close releases storage resources.
func (e *Engine) Close() error {
	if e == nil || e.close == nil {
		return nil
	}
	return e.close()
}

// logNotifier routes user-facing messages to the logger when no host
// notification channel is wired.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) Warn(_ context.Context, message string) { n.logger.Warn(message) }
func (n logNotifier) Info(_ context.Context, message string) { n.logger.Info(message) }

// logConditions narrates condition applications instead of mutating host
// state; standalone runs have no actor documents to mutate.
type logConditions struct {
	logger *slog.Logger
}

func (c logConditions) ApplyCondition(_ context.Context, target domain.Character, slug string, value int) error {
	c.logger.Info("condition applied", "target", target.Name(), "condition", slug, "value", value)
	return nil
}

func (c logConditions) ApplyEffectNote(_ context.Context, target domain.Character, label, note string, rounds int) error {
	c.logger.Info("effect noted", "target", target.Name(), "label", label, "note", note, "rounds", rounds)
	return nil
}
