// Package dnd5e adapts stunts to the flat-comparison d20 rule set: one
// armor-class-style target number, natural 1 and 20 forcing the critical
// degrees, and advantage as the roll-twice resource.
package dnd5e

import (
	"context"
	"fmt"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
)

// SystemID is the registry identifier for this adapter.
const SystemID = "dnd5e"

const defaultSkill = "ath"

// Config tunes the adapter. Condition slugs are configuration because the
// upstream rule terminology drifts across editions.
type Config struct {
	// DefaultDifficulty is the untargeted baseline target number.
	DefaultDifficulty int
	// RiskDifficultyIncrease is added to the target number under tactical risk.
	RiskDifficultyIncrease int
	// SuccessConditionSlug is the fallback debuff applied to the target.
	SuccessConditionSlug string
	// FailureConditionSlug is the fallback self-effect applied to the actor.
	FailureConditionSlug string
	// SuccessRiders and FailureSetbacks are the configurable choice menus,
	// entries shaped "slug", "slug:value" or the narrative "drop-item".
	SuccessRiders   []string
	FailureSetbacks []string
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		DefaultDifficulty:      12,
		RiskDifficultyIncrease: 2,
		SuccessConditionSlug:   "restrained",
		FailureConditionSlug:   "prone",
		SuccessRiders:          []string{"restrained", "blinded", "frightened", "drop-item"},
		FailureSetbacks:        []string{"prone", "drop-item"},
	}
}

// Deps are the host-runtime ports the adapter calls.
type Deps struct {
	Engine     domain.RollEngine
	Conditions domain.ConditionApplier
	Notifier   domain.Notifier
	Riders     domain.RiderChooser
	Flags      storage.FlagStore
}

// Adapter implements systems.Adapter for the flat-comparison rule set.
type Adapter struct {
	deps Deps
	cfg  Config
}

// New creates the adapter.
func New(deps Deps, cfg Config) *Adapter {
	if cfg.DefaultDifficulty == 0 {
		cfg.DefaultDifficulty = 12
	}
	if cfg.RiskDifficultyIncrease == 0 {
		cfg.RiskDifficultyIncrease = 2
	}
	return &Adapter{deps: deps, cfg: cfg}
}

// ID implements systems.Adapter.
func (a *Adapter) ID() string { return SystemID }

// BuildContext resolves the roll key, statistic and target number.
// Difficulty precedence: explicit override, then the target's armor class,
// then the configured baseline.
func (a *Adapter) BuildContext(ctx context.Context, in systems.BuildInput) (*domain.StuntContext, error) {
	if in.Actor == nil {
		return nil, domain.ErrMissingActor
	}

	kind := in.Options.RollKind
	if kind == "" {
		kind = domain.RollSkill
	}
	key := systems.NormalizeSkillKey(in.Options.RollKey)
	if key == "" && kind == domain.RollSkill {
		key = defaultSkill
	}
	if key == "" && kind == domain.RollSpell {
		key = weakness.SpellAttackKey
	}

	sc := &domain.StuntContext{
		Actor:     in.Actor,
		Target:    in.Target,
		RollKind:  kind,
		RollKey:   key,
		RollLabel: fmt.Sprintf("Stunt (%s)", key),
	}
	if modifier, ok := a.resolveModifier(sc); ok {
		sc.StatModifier = modifier
	}

	switch {
	case in.Options.DifficultyOverride != nil:
		sc.Difficulty = *in.Options.DifficultyOverride
	case in.Target != nil:
		if ac, ok := in.Target.ArmorClass(); ok {
			sc.Difficulty = ac
		} else {
			sc.Difficulty = a.cfg.DefaultDifficulty
		}
	default:
		sc.Difficulty = a.cfg.DefaultDifficulty
	}
	return sc, nil
}

// ApplyPreRollAdjustments folds flavor, approved advantage and tactical risk
// into the context. Roll-twice here is the once-per-encounter resource; when
// it was not granted, tier 2 degrades to a flat +2 so a flavorful stunt is
// never worse than an unflavored one. A flat bonus and roll-twice never
// coexist.
func (a *Adapter) ApplyPreRollAdjustments(ctx context.Context, sc *domain.StuntContext, adj systems.Adjustments) error {
	if adj.UseAdvantage {
		sc.RollTwiceKeepHigher = true
	}

	switch adj.FlavorTier {
	case domain.FlavorLight:
		if !sc.RollTwiceKeepHigher {
			sc.FlavorBonus = 1
			sc.FlavorBonusType = "flavor"
		}
	case domain.FlavorFull:
		if !sc.RollTwiceKeepHigher {
			sc.FlavorBonus = 2
			sc.FlavorBonusType = "flavor"
		}
	}

	if adj.TacticalRisk {
		sc.TacticalRisk = true
		sc.Difficulty += a.cfg.RiskDifficultyIncrease
		sc.DifficultyAdjust = a.cfg.RiskDifficultyIncrease
	}
	return nil
}

// Roll performs the check through the injected engine. A nil result with a
// nil error aborts the pipeline; the user has already been warned.
func (a *Adapter) Roll(ctx context.Context, sc *domain.StuntContext) (*dice.CheckResult, error) {
	modifier, ok := a.resolveModifier(sc)
	if !ok {
		a.warn(ctx, fmt.Sprintf("%s has no usable statistic for %s %q.", sc.Actor.Name(), sc.RollKind, sc.RollKey))
		return nil, nil
	}

	request := dice.CheckRequest{
		Label:               sc.RollLabel,
		Modifier:            modifier,
		RollTwiceKeepHigher: sc.RollTwiceKeepHigher,
	}
	if sc.FlavorBonus != 0 {
		request.Modifiers = append(request.Modifiers, dice.Modifier{
			Label: "Flavor",
			Type:  sc.FlavorBonusType,
			Value: sc.FlavorBonus,
		})
	}

	result, err := a.deps.Engine.RollCheck(request)
	if err != nil {
		a.warn(ctx, fmt.Sprintf("Stunt roll failed: %v", err))
		return nil, nil
	}
	return result, nil
}

// DegreeOfSuccess classifies by flat comparison: natural 1 and 20 force the
// critical degrees, the total otherwise only decides success or failure.
func (a *Adapter) DegreeOfSuccess(result *dice.CheckResult, sc *domain.StuntContext) check.Degree {
	natural, _ := dice.NaturalD20(result.Dice)
	return check.DegreeByTarget(result.Total, sc.EffectiveDifficulty(), natural)
}

// ApplyCinematicUpgrade promotes miss to hit and hit to critical; critical
// degrees are left alone.
func (a *Adapter) ApplyCinematicUpgrade(degree check.Degree, _ *domain.StuntContext, poolSpent bool) check.Degree {
	if !poolSpent {
		return degree
	}
	switch degree {
	case check.DegreeFailure:
		return check.DegreeSuccess
	case check.DegreeSuccess:
		return check.DegreeCriticalSuccess
	default:
		return degree
	}
}

// ApplyTacticalUpgrade is a no-op: the risk already raised the target number.
func (a *Adapter) ApplyTacticalUpgrade(degree check.Degree, _ *domain.StuntContext) check.Degree {
	return degree
}

func (a *Adapter) resolveModifier(sc *domain.StuntContext) (int, bool) {
	switch sc.RollKind {
	case domain.RollAttack:
		strikes := sc.Actor.Strikes()
		if len(strikes) == 0 {
			return 0, false
		}
		return strikes[0].AttackModifier(), true
	default:
		return sc.Actor.SkillModifier(sc.RollKey)
	}
}

func (a *Adapter) warn(ctx context.Context, message string) {
	if a.deps.Notifier != nil {
		a.deps.Notifier.Warn(ctx, message)
	}
}
