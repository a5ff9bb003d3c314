// Package pf2e adapts stunts to the margin-based d20 rule set: degrees of
// success from a ±10 margin with natural 20/1 steps, typed circumstance
// bonuses, and rolls carried by the character's native strikes so downstream
// tooling (critical-effect decks) keeps firing.
package pf2e

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/improv.engine/internal/core/check"
	"github.com/louisbranch/improv.engine/internal/core/dice"
	"github.com/louisbranch/improv.engine/internal/storage"
	"github.com/louisbranch/improv.engine/internal/stunt/domain"
	"github.com/louisbranch/improv.engine/internal/stunt/weakness"
	"github.com/louisbranch/improv.engine/internal/systems"
)

// SystemID is the registry identifier for this adapter.
const SystemID = "pf2e"

const (
	defaultSkill = "ath"
	// fallbackDifficulty applies when a target exists but exposes no usable
	// defense statistic.
	fallbackDifficulty = 20
)

// Config tunes the adapter. Condition slugs are configuration because the
// upstream renamed several of them between editions ("flat-footed" became
// "off-guard").
type Config struct {
	// RiskPenalty is subtracted from the roll under tactical risk.
	RiskPenalty int
	// SuccessConditionSlug is the fallback debuff applied to the target.
	SuccessConditionSlug string
	// FailureConditionSlug is the fallback self-effect applied to the actor.
	FailureConditionSlug string
	// SuccessRiders and FailureSetbacks are the configurable choice menus,
	// entries shaped "slug", "slug:value" or the narrative "drop-item".
	SuccessRiders   []string
	FailureSetbacks []string
	// CritPrompt asks the user how to resolve critical degrees instead of
	// always deferring to the deck.
	CritPrompt bool
}

// DefaultConfig returns the shipped defaults.
func DefaultConfig() Config {
	return Config{
		RiskPenalty:          2,
		SuccessConditionSlug: "off-guard",
		FailureConditionSlug: "prone",
		SuccessRiders:        []string{"off-guard", "frightened:1", "prone", "clumsy:1"},
		FailureSetbacks:      []string{"prone", "drop-item", "off-guard", "stunned:1"},
	}
}

// Deps are the host-runtime ports the adapter calls.
type Deps struct {
	Engine     domain.RollEngine
	Conditions domain.ConditionApplier
	Notifier   domain.Notifier
	Riders     domain.RiderChooser
	Crits      domain.CritChooser
	Flags      storage.FlagStore
}

// Adapter implements systems.Adapter for the margin-based rule set.
type Adapter struct {
	deps Deps
	cfg  Config
}

// New creates the adapter.
func New(deps Deps, cfg Config) *Adapter {
	if cfg.RiskPenalty == 0 {
		cfg.RiskPenalty = 2
	}
	return &Adapter{deps: deps, cfg: cfg}
}

// ID implements systems.Adapter.
func (a *Adapter) ID() string { return SystemID }

// skillDefense maps a skill onto the defense statistic it is opposed by.
// Skills without an entry oppose will.
var skillDefense = map[string]domain.SaveKind{
	"acr": domain.SaveReflex,
	"ath": domain.SaveFortitude,
	"cra": domain.SaveFortitude,
	"med": domain.SaveFortitude,
	"thi": domain.SaveReflex,
}

// perceptionSkills oppose the target's perception instead of a save.
var perceptionSkills = map[string]bool{
	"ste": true,
	"sur": true,
}

// levelDifficulty is the untargeted baseline by character level.
var levelDifficulty = []int{
	14, 15, 16, 18, 19, 20, 22, 23, 24, 26, 27,
	28, 30, 31, 32, 34, 35, 36, 38, 39, 40,
}

// BuildContext resolves the roll key, statistic and target number.
// Difficulty precedence: explicit override; the target's opposed defense
// (explicit difficulty first, 10+modifier as fallback); a level-based
// baseline when no target is selected.
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
		sc.Difficulty = a.opposedDifficulty(sc, in.Target)
	default:
		sc.Difficulty = LevelDifficulty(in.Actor.Level())
	}
	return sc, nil
}

// opposedDifficulty resolves the defense the stunt rolls against, preferring
// an explicitly stored difficulty and falling back to 10 plus the modifier.
func (a *Adapter) opposedDifficulty(sc *domain.StuntContext, target domain.Character) int {
	if sc.RollKind == domain.RollAttack {
		if ac, ok := target.ArmorClass(); ok {
			return ac
		}
		return fallbackDifficulty
	}

	if perceptionSkills[sc.RollKey] {
		if dc, ok := target.PerceptionDifficulty(); ok {
			return dc
		}
		if mod, ok := target.PerceptionModifier(); ok {
			return 10 + mod
		}
		return fallbackDifficulty
	}

	save := domain.SaveWill
	if kind, ok := skillDefense[sc.RollKey]; ok && sc.RollKind == domain.RollSkill {
		save = kind
	}
	if dc, ok := target.SaveDifficulty(save); ok {
		return dc
	}
	if mod, ok := target.SaveModifier(save); ok {
		return 10 + mod
	}
	return fallbackDifficulty
}

// LevelDifficulty returns the baseline target number for a character level,
// clamped to the published 0..20 table.
func LevelDifficulty(level int) int {
	if level < 0 {
		level = 0
	}
	if level >= len(levelDifficulty) {
		level = len(levelDifficulty) - 1
	}
	return levelDifficulty[level]
}

// ApplyPreRollAdjustments folds flavor, approved advantage and tactical risk
// into the context. The flavor bonus is a typed circumstance bonus and never
// stacks with roll-twice; roll-twice itself requires an active encounter.
// Tactical risk becomes an explicit roll penalty applied at roll time.
func (a *Adapter) ApplyPreRollAdjustments(ctx context.Context, sc *domain.StuntContext, adj systems.Adjustments) error {
	if adj.UseAdvantage {
		if adj.EncounterActive {
			sc.RollTwiceKeepHigher = true
		} else {
			a.warn(ctx, "Advantage requires an active encounter.")
		}
	}

	if adj.FlavorTier > domain.FlavorNone && !sc.RollTwiceKeepHigher {
		sc.FlavorBonus = int(adj.FlavorTier)
		sc.FlavorBonusType = "circumstance"
	}

	if adj.TacticalRisk {
		sc.TacticalRisk = true
	}
	return nil
}

// Roll performs the check. Skill and spell stunts roll through a native
// strike when one exists: the strike machinery posts the attack card and
// triggers downstream crit tooling, while a labeled modifier equal to the
// skill-versus-strike delta keeps the total identical to a plain skill
// check. Without a strike the roll degrades to a synthetic plain check.
// A nil result with a nil error aborts the pipeline.
func (a *Adapter) Roll(ctx context.Context, sc *domain.StuntContext) (*dice.CheckResult, error) {
	modifier, ok := a.resolveModifier(sc)
	if !ok {
		a.warn(ctx, fmt.Sprintf("%s has no usable statistic for %s %q.", sc.Actor.Name(), sc.RollKind, sc.RollKey))
		return nil, nil
	}

	extra := a.rollModifiers(sc)

	if sc.RollKind == domain.RollAttack {
		strike := selectStrike(sc.Actor.Strikes())
		if strike == nil {
			a.warn(ctx, fmt.Sprintf("%s has no strike to attack with.", sc.Actor.Name()))
			return nil, nil
		}
		return a.rollStrike(ctx, sc, strike, nil, extra)
	}

	if strike := selectStrike(sc.Actor.Strikes()); strike != nil {
		delta := modifier - strike.AttackModifier()
		deltaMod := []dice.Modifier{{
			Label: fmt.Sprintf("%s (skill)", strings.ToUpper(sc.RollKey)),
			Type:  "untyped",
			Value: delta,
		}}
		result, err := a.rollStrike(ctx, sc, strike, deltaMod, extra)
		if result != nil || err != nil {
			return result, err
		}
		// Strike machinery failed; degrade to a plain check.
	}

	sc.SyntheticRoll = true
	result, err := a.deps.Engine.RollCheck(dice.CheckRequest{
		Label:               sc.RollLabel,
		Modifier:            modifier,
		Modifiers:           extra,
		RollTwiceKeepHigher: sc.RollTwiceKeepHigher,
	})
	if err != nil {
		a.warn(ctx, fmt.Sprintf("Stunt roll failed: %v", err))
		return nil, nil
	}
	return result, nil
}

// rollStrike drives the native attack sequence and shims the defense: the
// degree is judged against the mapped difficulty, with the delta to the
// target's armor class recorded for display.
func (a *Adapter) rollStrike(ctx context.Context, sc *domain.StuntContext, strike domain.Strike, deltaMod, extra []dice.Modifier) (*dice.CheckResult, error) {
	sc.AttackModifier = strike.AttackModifier()
	sc.StrikeDifficulty = sc.Difficulty
	if sc.Target != nil {
		if ac, ok := sc.Target.ArmorClass(); ok {
			sc.DifficultyAdjust = sc.Difficulty - ac
		}
	}

	result, err := strike.Roll(ctx, domain.StrikeRollRequest{
		Modifiers:           append(deltaMod, extra...),
		RollTwiceKeepHigher: sc.RollTwiceKeepHigher,
		CreateMessage:       true,
	})
	if err != nil {
		a.warn(ctx, fmt.Sprintf("Strike roll failed, using a plain check: %v", err))
		sc.StrikeDifficulty = 0
		sc.DifficultyAdjust = 0
		return nil, nil
	}
	return result, nil
}

// rollModifiers builds the labeled situational modifiers shared by strike
// and synthetic rolls.
func (a *Adapter) rollModifiers(sc *domain.StuntContext) []dice.Modifier {
	var modifiers []dice.Modifier
	if sc.FlavorBonus != 0 {
		modifiers = append(modifiers, dice.Modifier{
			Label: "Cool",
			Type:  sc.FlavorBonusType,
			Value: sc.FlavorBonus,
		})
	}
	if sc.TacticalRisk {
		modifiers = append(modifiers, dice.Modifier{
			Label: "Tactical risk",
			Type:  "circumstance",
			Value: -a.cfg.RiskPenalty,
		})
	}
	return modifiers
}

// DegreeOfSuccess classifies by the margin rule, then steps once for a
// natural 20 or 1 on the kept die.
func (a *Adapter) DegreeOfSuccess(result *dice.CheckResult, sc *domain.StuntContext) check.Degree {
	natural, _ := dice.NaturalD20(result.Dice)
	return check.DegreeByMargin(result.Total, sc.EffectiveDifficulty(), natural)
}

// ApplyCinematicUpgrade bumps the degree one step, capped.
func (a *Adapter) ApplyCinematicUpgrade(degree check.Degree, _ *domain.StuntContext, poolSpent bool) check.Degree {
	if !poolSpent {
		return degree
	}
	return degree.Shift(1)
}

// ApplyTacticalUpgrade is a no-op: the risk was already a roll penalty.
func (a *Adapter) ApplyTacticalUpgrade(degree check.Degree, _ *domain.StuntContext) check.Degree {
	return degree
}

// selectStrike picks the strike that carries a stunt roll: an unarmed strike
// reads most naturally for improvised actions, then any melee strike, then
// whatever the character has.
func selectStrike(strikes []domain.Strike) domain.Strike {
	for _, strike := range strikes {
		if strings.Contains(strings.ToLower(strike.Label()), "unarmed") {
			return strike
		}
		for _, trait := range strike.Traits() {
			if strings.EqualFold(trait, "unarmed") {
				return strike
			}
		}
	}
	for _, strike := range strikes {
		if !strike.Ranged() {
			return strike
		}
	}
	if len(strikes) > 0 {
		return strikes[0]
	}
	return nil
}

func (a *Adapter) resolveModifier(sc *domain.StuntContext) (int, bool) {
	switch sc.RollKind {
	case domain.RollAttack:
		strike := selectStrike(sc.Actor.Strikes())
		if strike == nil {
			return 0, false
		}
		return strike.AttackModifier(), true
	case domain.RollSpell:
		if mod, ok := sc.Actor.SkillModifier(sc.RollKey); ok {
			return mod, true
		}
		return sc.Actor.SkillModifier(weakness.SpellAttackKey)
	default:
		return sc.Actor.SkillModifier(sc.RollKey)
	}
}

func (a *Adapter) warn(ctx context.Context, message string) {
	if a.deps.Notifier != nil {
		a.deps.Notifier.Warn(ctx, message)
	}
}
