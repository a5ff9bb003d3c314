// Package service owns the outcome-resolution pipeline.
//
// # Concept
//
// A player declares an improvised stunt; the orchestrator turns it into a
// roll, a degree of success, and a mechanical outcome. The pipeline itself is
// system-agnostic: every rules question is answered by the configured game
// system adapter, every resource question by the encounter ledger, and every
// user interaction by injected host ports. Steps run strictly in order, and
// sub-step failures degrade to user-facing warnings instead of propagating.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/stunt/audit"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/ledger"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
)

const tracerName = "github.com/louisbranch/improv.engine/internal/stunt/service"

// Deps wires the orchestrator's collaborators. Adapter, Flags, Notifier and
// Presenter are required; Ledger is required only when resource options are
// in play, and Audit may be nil.
type Deps struct {
	Adapter   systems.Adapter
	Ledger    *ledger.Ledger
	Flags     storage.FlagStore
	Notifier  domain.Notifier
	Presenter Presenter
	Audit     *audit.Emitter
	Logger    *slog.Logger
}

// Orchestrator runs the stunt pipeline.
type Orchestrator struct {
	deps   Deps
	logger *slog.Logger
	tracer trace.Tracer
}

// New creates an orchestrator, validating the required collaborators.
func New(deps Deps) (*Orchestrator, error) {
	if deps.Adapter == nil {
		return nil, fmt.Errorf("game system adapter is required")
	}
	if deps.Flags == nil {
		return nil, fmt.Errorf("flag store is required")
	}
	if deps.Notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if deps.Presenter == nil {
		return nil, fmt.Errorf("presenter is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		deps:   deps,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}, nil
}

// ResolveStunt resolves one stunt end to end and presents the result.
//
// The pipeline never propagates adapter failures: precondition problems warn
// the user and return cleanly, resource denials clear the option and
// continue, and a nil roll result is the sole full abort signal.
func (o *Orchestrator) ResolveStunt(ctx context.Context, actor, target domain.Character, opts domain.Options) error {
	ctx, span := o.tracer.Start(ctx, "stunt.resolve")
	defer span.End()

	if actor == nil {
		o.deps.Notifier.Warn(ctx, "Select an acting character first.")
		o.logger.Warn("stunt aborted", "reason", domain.ErrMissingActor)
		return nil
	}

	tier := domain.NormalizeFlavorTier(int(opts.FlavorTier))
	if !opts.Plausible && tier == domain.FlavorNone {
		o.deps.Notifier.Warn(ctx, "That stunt is a stretch and not even flashy. Rolling anyway.")
	}

	var notices []string
	useAdvantage := o.gateAdvantage(ctx, actor, &opts, &notices)
	poolSpent := o.gatePool(ctx, actor, &opts, &notices)

	sc, err := o.deps.Adapter.BuildContext(ctx, systems.BuildInput{
		Actor:   actor,
		Target:  target,
		Options: opts,
	})
	if err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Could not set up the stunt: %v", err))
		return nil
	}

	o.resolveTrigger(ctx, sc, target, opts.TriggerID)

	if err := o.deps.Adapter.ApplyPreRollAdjustments(ctx, sc, systems.Adjustments{
		FlavorTier:      tier,
		UseAdvantage:    useAdvantage,
		TacticalRisk:    opts.TacticalRisk,
		EncounterActive: opts.EncounterID != "",
	}); err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Could not prepare the roll: %v", err))
		return nil
	}

	result, err := o.deps.Adapter.Roll(ctx, sc)
	if err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Stunt roll failed: %v", err))
		return nil
	}
	if result == nil {
		// The adapter has already told the user why.
		o.logger.Debug("stunt roll aborted", "actor", actor.ID(), "system", o.deps.Adapter.ID())
		return nil
	}

	degree := o.deps.Adapter.DegreeOfSuccess(result, sc)
	degree = o.deps.Adapter.ApplyCinematicUpgrade(degree, sc, poolSpent)
	degree = o.deps.Adapter.ApplyTacticalUpgrade(degree, sc)

	summary := Summary{
		System:     o.deps.Adapter.ID(),
		ActorName:  actor.Name(),
		Formula:    result.Formula,
		Total:      result.Total,
		Difficulty: sc.EffectiveDifficulty(),
		Notices:    notices,
	}
	if target != nil {
		summary.TargetName = target.Name()
	}

	outcome, err := o.deps.Adapter.ApplyOutcome(ctx, systems.OutcomeInput{
		Context:      sc,
		Degree:       degree,
		TacticalRisk: opts.TacticalRisk,
	})
	if err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Could not apply the outcome: %v", err))
	}
	if outcome != nil {
		degree = outcome.Degree
		summary.Outcomes = outcome.Descriptions
		summary.Deferred = outcome.Deferred
	}
	summary.Degree = degree

	span.SetAttributes(
		attribute.String("stunt.system", summary.System),
		attribute.String("stunt.degree", degree.String()),
		attribute.Bool("stunt.pool_spent", poolSpent),
		attribute.Bool("stunt.advantage", useAdvantage),
		attribute.Bool("stunt.tactical_risk", opts.TacticalRisk),
	)
	o.logger.Info("stunt resolved",
		"system", summary.System,
		"actor", actor.ID(),
		"degree", degree.String(),
		"total", result.Total,
		"difficulty", summary.Difficulty,
	)

	if err := o.deps.Presenter.Present(ctx, summary); err != nil {
		o.logger.Warn("present stunt result", "error", err)
	}

	record := storage.StuntAudit{
		EncounterID:  opts.EncounterID,
		SystemID:     summary.System,
		ActorID:      actor.ID(),
		RollKind:     string(sc.RollKind),
		RollKey:      sc.RollKey,
		Total:        result.Total,
		Degree:       degree,
		PoolSpent:    poolSpent,
		AdvantageUse: useAdvantage,
		TacticalRisk: opts.TacticalRisk,
	}
	if target != nil {
		record.TargetID = target.ID()
	}
	if err := o.deps.Audit.Emit(ctx, record); err != nil {
		o.logger.Warn("record stunt audit", "error", err)
	}
	return nil
}

// gateAdvantage reserves the once-per-encounter advantage token before the
// roll happens, so a quick retry cannot double-spend. Denials clear the
// option and warn; the stunt still resolves.
func (o *Orchestrator) gateAdvantage(ctx context.Context, actor domain.Character, opts *domain.Options, notices *[]string) bool {
	if !opts.UseAdvantage {
		return false
	}
	opts.UseAdvantage = false

	if o.deps.Ledger == nil || opts.EncounterID == "" {
		o.deps.Notifier.Warn(ctx, "Advantage requires an active encounter.")
		return false
	}
	result, err := o.deps.Ledger.TryConsumeAdvantage(ctx, opts.EncounterID, actor.ID())
	if err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Could not spend advantage: %v", err))
		return false
	}
	if !result.OK {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("%s already used advantage this encounter.", actor.Name()))
		return false
	}
	*notices = append(*notices, "Advantage spent.")
	return true
}

// gatePool spends one cinematic pool token up front. Denials warn with the
// ledger's reason and the stunt resolves without the upgrade.
func (o *Orchestrator) gatePool(ctx context.Context, actor domain.Character, opts *domain.Options, notices *[]string) bool {
	if !opts.SpendPool {
		return false
	}
	opts.SpendPool = false

	if o.deps.Ledger == nil {
		o.deps.Notifier.Warn(ctx, "No encounter")
		return false
	}
	result, err := o.deps.Ledger.TrySpendPoolToken(ctx, opts.EncounterID, actor.ID())
	if err != nil {
		o.deps.Notifier.Warn(ctx, fmt.Sprintf("Could not spend a pool token: %v", err))
		return false
	}
	if !result.OK {
		o.deps.Notifier.Warn(ctx, result.Reason)
		return false
	}
	*notices = append(*notices, "Cinematic pool token spent.")
	return true
}

// resolveTrigger turns a pre-selected weakness id into a concrete rule from
// the target's list. A missing or disabled rule is ignored.
func (o *Orchestrator) resolveTrigger(ctx context.Context, sc *domain.StuntContext, target domain.Character, triggerID string) {
	if triggerID == "" || target == nil {
		return
	}
	rule, err := weakness.FindRule(ctx, o.deps.Flags, target.ID(), triggerID)
	if err != nil {
		o.logger.Warn("resolve stunt trigger", "trigger", triggerID, "error", err)
		return
	}
	if rule == nil {
		return
	}
	normalized := systems.NormalizeRuleKeys([]weakness.Rule{*rule})
	sc.Trigger = &normalized[0]
}
